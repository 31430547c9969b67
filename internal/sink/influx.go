// Package sink adapts the persistence collaborator: it consumes hub events
// read-only and writes them to InfluxDB for history and analytics.
package sink

import (
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/growlab/growcore/internal/eventbus"
	"github.com/growlab/growcore/internal/model"
)

// measurement is the single measurement all events land in; the event type
// is a tag.
const measurement = "grow_event"

// Sink wraps the async WriteAPI and tracks the last write error for health
// reporting.
type Sink struct {
	api api.WriteAPI
	log *zap.Logger

	mu      sync.RWMutex
	lastErr time.Time

	sub *eventbus.Subscription
}

// New builds a sink over an async write API and starts the listener draining
// its error channel.
func New(writeAPI api.WriteAPI, log *zap.Logger) *Sink {
	s := &Sink{
		api: writeAPI,
		log: log,
		// Start "long ago" so a fresh sink reports healthy.
		lastErr: time.Now().Add(-24 * time.Hour),
	}
	go func() {
		for err := range writeAPI.Errors() {
			if err == nil {
				continue
			}
			s.mu.Lock()
			s.lastErr = time.Now()
			s.mu.Unlock()
			s.log.Error("influx write failed", zap.Error(err))
		}
	}()
	return s
}

// Attach subscribes the sink to the hub. Call at most once.
func (s *Sink) Attach(bus eventbus.Bus) {
	s.sub = bus.Subscribe(nil, s.handle)
}

func (s *Sink) handle(e model.Event) {
	if p := EventToPoint(e); p != nil {
		s.api.WritePoint(p)
	}
}

// LastErrorAge returns how long the sink has been writing without errors.
func (s *Sink) LastErrorAge() time.Duration {
	s.mu.RLock()
	t := s.lastErr
	s.mu.RUnlock()
	return time.Since(t)
}

// Close detaches from the hub and flushes buffered writes.
func (s *Sink) Close() {
	if s.sub != nil {
		s.sub.Cancel()
	}
	s.api.Flush()
}

// EventToPoint normalizes one event into an Influx point, or nil for
// variants the sink does not persist.
func EventToPoint(e model.Event) *write.Point {
	tags := map[string]string{"event_type": string(e.Type())}
	if d := e.Device(); d != "" {
		tags["device_id"] = d
	}
	if r := e.Room(); r != "" {
		tags["room_id"] = r
	}

	fields := map[string]interface{}{}
	switch evt := e.(type) {
	case model.SensorReading:
		for metric, value := range evt.Metrics {
			fields[metric] = value
		}
	case model.SensorAlert:
		tags["severity"] = string(evt.Severity)
		tags["alert_type"] = evt.AlertType
		fields["message"] = evt.Message
	case model.AutomationResult:
		tags["automation_id"] = evt.AutomationID
		fields["success"] = evt.Success
		if evt.Error != "" {
			fields["error"] = evt.Error
		}
	case model.Generic:
		if e.Type() != model.EventTaskCompleted {
			return nil
		}
		if id, ok := evt.Metadata["task_id"].(string); ok {
			tags["task_id"] = id
		}
		if success, ok := evt.Metadata["success"].(bool); ok {
			fields["success"] = success
		}
	default:
		return nil
	}

	// Guarantee at least one field so the point is writable.
	if _, ok := fields["count"]; !ok && len(fields) == 0 {
		fields["count"] = int64(1)
	}

	return influxdb2.NewPoint(measurement, tags, fields, e.Timestamp())
}
