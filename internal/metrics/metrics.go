// Package metrics exposes the Prometheus instruments shared by the hub,
// the simulator and the task coordinator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growcore_events_published_total",
			Help: "Events published on the hub by type",
		},
		[]string{"type"},
	)

	SubscriberPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "growcore_subscriber_panics_total",
			Help: "Subscriber callbacks that panicked during delivery",
		},
	)

	ReadingsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growcore_readings_generated_total",
			Help: "Synthetic sensor readings generated per device",
		},
		[]string{"device"},
	)

	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growcore_alerts_raised_total",
			Help: "Threshold alerts raised by alert type",
		},
		[]string{"alert_type"},
	)

	TaskRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growcore_task_runs_total",
			Help: "Task executions by kind and status",
		},
		[]string{"kind", "status"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "growcore_task_duration_seconds",
			Help:    "Task execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	BridgeDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "growcore_bridge_dropped_total",
			Help: "Events dropped by the MQTT bridge while the breaker was open",
		},
	)
)
