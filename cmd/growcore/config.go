package main

import (
	"os"
	"strconv"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	HistoryCapacity int
	TaskTimeoutSec  int
	Workers         int

	// MQTT bridge (optional)
	MQTTEnabled  bool
	MQTTHost     string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string

	// Influx sink (enabled when a token is set)
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getenvBool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

func loadConfig() Config {
	return Config{
		Port:      getenv("PORT", "5080"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		HistoryCapacity: getenvInt("HISTORY_CAPACITY", 1000),
		TaskTimeoutSec:  getenvInt("TASK_TIMEOUT_SEC", 300),
		Workers:         getenvInt("TASK_WORKERS", 4),

		MQTTEnabled:  getenvBool("MQTT_ENABLED", false),
		MQTTHost:     getenv("MQTT_HOST", "localhost"),
		MQTTPort:     getenvInt("MQTT_PORT", 1883),
		MQTTUser:     getenv("MQTT_USER", "guest"),
		MQTTPassword: getenv("MQTT_PASSWORD", "guest"),
		MQTTClientID: getenv("MQTT_CLIENT_ID", "growcore"),

		InfluxURL:    getenv("INFLUX_URL", "http://influxdb:8086"),
		InfluxToken:  getenv("INFLUX_TOKEN", ""),
		InfluxOrg:    getenv("INFLUX_ORG", "growlab"),
		InfluxBucket: getenv("INFLUX_BUCKET", "growcore"),
	}
}
