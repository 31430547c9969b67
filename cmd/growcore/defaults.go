package main

import (
	"time"

	"github.com/growlab/growcore/internal/model"
)

// defaultDevices is the simulated fleet a fresh install starts with: two
// rooms with environmental, soil, hydroponic and lighting sensors.
func defaultDevices() []model.DeviceProfile {
	return []model.DeviceProfile{
		{
			ID:     "veg-env-1",
			Name:   "Veg Room Climate",
			RoomID: "veg-room",
			Type:   model.DeviceEnvironmental,
			Ranges: map[string]float64{
				"temperature": 35,
				"humidity":    70,
				"co2":         1500,
			},
			UpdateInterval: 10 * time.Second,
			Enabled:        true,
		},
		{
			ID:     "veg-soil-1",
			Name:   "Veg Room Soil Probe",
			RoomID: "veg-room",
			Type:   model.DeviceSoil,
			Ranges: map[string]float64{
				"soil_moisture": 80,
				"soil_temp":     25,
			},
			UpdateInterval: 30 * time.Second,
			Enabled:        true,
		},
		{
			ID:     "flower-env-1",
			Name:   "Flower Room Climate",
			RoomID: "flower-room",
			Type:   model.DeviceEnvironmental,
			Ranges: map[string]float64{
				"temperature": 32,
				"humidity":    60,
				"co2":         1400,
			},
			UpdateInterval: 10 * time.Second,
			Enabled:        true,
		},
		{
			ID:     "flower-hydro-1",
			Name:   "Flower Room Reservoir",
			RoomID: "flower-room",
			Type:   model.DeviceHydroponic,
			Ranges: map[string]float64{
				"ph":         6.5,
				"ec":         2.2,
				"water_temp": 22,
			},
			UpdateInterval: 20 * time.Second,
			Enabled:        true,
		},
		{
			ID:     "flower-light-1",
			Name:   "Flower Room PAR Meter",
			RoomID: "flower-room",
			Type:   model.DeviceLighting,
			Ranges: map[string]float64{
				"ppfd": 900,
			},
			UpdateInterval: 15 * time.Second,
			Enabled:        true,
		},
	}
}

// defaultTasks builds the standing background work. Payloads carry the data
// the isolated handlers operate on; the device snapshot is taken once at
// startup.
func defaultTasks(devices []model.DeviceProfile) []model.ScheduledTask {
	now := time.Now()

	deviceList := make([]any, 0, len(devices))
	rules := make([]any, 0)
	for _, d := range devices {
		deviceList = append(deviceList, map[string]any{
			"id":      d.ID,
			"room_id": d.RoomID,
			"type":    string(d.Type),
			"enabled": d.Enabled,
		})
		for metric, max := range d.Ranges {
			rules = append(rules, map[string]any{
				"metric": d.ID + "/" + metric,
				"value":  d.CurrentValues[metric],
				"max":    max,
			})
		}
	}

	return []model.ScheduledTask{
		{
			ID:          "monitoring-sweep",
			Kind:        model.TaskMonitoring,
			Data:        map[string]any{"devices": deviceList},
			ScheduledAt: now.Add(time.Minute),
			Interval:    time.Minute,
			Recurring:   true,
			Enabled:     true,
		},
		{
			ID:          "automation-check",
			Kind:        model.TaskAutomationCheck,
			Data:        map[string]any{"rules": rules},
			ScheduledAt: now.Add(2 * time.Minute),
			Interval:    2 * time.Minute,
			Recurring:   true,
			Enabled:     true,
		},
		{
			ID:          "reading-rollup",
			Kind:        model.TaskProcessing,
			Data:        map[string]any{"samples": []any{}},
			ScheduledAt: now.Add(5 * time.Minute),
			Interval:    5 * time.Minute,
			Recurring:   true,
			Enabled:     true,
		},
		{
			ID:          "trend-analysis",
			Kind:        model.TaskAnalysis,
			Data:        map[string]any{"samples": []any{}},
			ScheduledAt: now.Add(15 * time.Minute),
			Interval:    15 * time.Minute,
			Recurring:   true,
			Enabled:     true,
		},
		{
			ID:          "history-cleanup",
			Kind:        model.TaskCleanup,
			Data:        map[string]any{"retention_hours": 72},
			ScheduledAt: now.Add(6 * time.Hour),
			Interval:    6 * time.Hour,
			Recurring:   true,
			Enabled:     true,
		},
		{
			ID:          "backup-daily",
			Kind:        model.TaskBackup,
			Data:        map[string]any{},
			ScheduledAt: now.Add(24 * time.Hour),
			Interval:    24 * time.Hour,
			Recurring:   true,
			Enabled:     true,
		},
	}
}
