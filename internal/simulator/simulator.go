// Package simulator synthesizes multi-device sensor readings and publishes
// them on the event hub, standing in for the hardware fleet the mobile client
// would otherwise talk to.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/growlab/growcore/internal/eventbus"
	"github.com/growlab/growcore/internal/metrics"
	"github.com/growlab/growcore/internal/model"
)

// ErrUnknownDevice is returned for operations on an unregistered device ID.
var ErrUnknownDevice = errors.New("simulator: unknown device")

const defaultUpdateInterval = 10 * time.Second

type device struct {
	profile model.DeviceProfile
	cancel  context.CancelFunc // nil unless its tick loop is running
}

// Simulator owns the device registry. Profiles are mutated only by tick loops
// and the public configuration calls, both of which hold the simulator lock,
// so concurrent ticks for the same device are serialized.
type Simulator struct {
	bus eventbus.Bus
	gen *Generator
	log *zap.Logger

	mu        sync.Mutex
	devices   map[string]*device
	anomalies map[string][]*time.Timer // roomID -> pending revert timers
	running   bool
}

func New(bus eventbus.Bus, gen *Generator, log *zap.Logger) *Simulator {
	return &Simulator{
		bus:       bus,
		gen:       gen,
		log:       log,
		devices:   make(map[string]*device),
		anomalies: make(map[string][]*time.Timer),
	}
}

// RegisterDevice adds a profile to the registry. If the simulator is running
// and the device is enabled, its tick loop starts at the profile's interval.
func (s *Simulator) RegisterDevice(p model.DeviceProfile) error {
	if p.ID == "" {
		return errors.New("simulator: device id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.devices[p.ID]; exists {
		return fmt.Errorf("simulator: device %q already registered", p.ID)
	}
	d := &device{profile: p.Clone()}
	s.seedCurrentValues(&d.profile)
	s.devices[p.ID] = d

	if s.running && d.profile.Enabled {
		s.startDeviceLocked(d)
	}
	s.log.Info("device registered",
		zap.String("device", p.ID),
		zap.String("room", p.RoomID),
		zap.String("type", string(p.Type)))
	return nil
}

// UpdateDevice replaces a device's profile, restarting its tick loop so the
// new interval and enabled flag take effect.
func (s *Simulator) UpdateDevice(id string, p model.DeviceProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	s.stopDeviceLocked(d)

	p.ID = id
	d.profile = p.Clone()
	s.seedCurrentValues(&d.profile)

	if s.running && d.profile.Enabled {
		s.startDeviceLocked(d)
	}
	return nil
}

// RemoveDevice stops the device's tick loop and drops it from the registry.
func (s *Simulator) RemoveDevice(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	s.stopDeviceLocked(d)
	delete(s.devices, id)
	s.log.Info("device removed", zap.String("device", id))
	return nil
}

// Device returns a snapshot of one profile.
func (s *Simulator) Device(id string) (model.DeviceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[id]
	if !ok {
		return model.DeviceProfile{}, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	return d.profile.Clone(), nil
}

// Devices returns snapshots of all registered profiles.
func (s *Simulator) Devices() []model.DeviceProfile {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.DeviceProfile, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d.profile.Clone())
	}
	return out
}

// Start launches tick loops for every enabled device. Idempotent.
func (s *Simulator) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	for _, d := range s.devices {
		if d.profile.Enabled {
			s.startDeviceLocked(d)
		}
	}
	s.log.Info("simulator started", zap.Int("devices", len(s.devices)))
}

// Stop cancels all tick loops and pending anomaly reverts. Idempotent.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	for _, d := range s.devices {
		s.stopDeviceLocked(d)
	}
	for room, timers := range s.anomalies {
		for _, t := range timers {
			t.Stop()
		}
		delete(s.anomalies, room)
	}
	s.log.Info("simulator stopped")
}

// startDeviceLocked launches the per-device tick goroutine. Caller holds s.mu.
func (s *Simulator) startDeviceLocked(d *device) {
	interval := d.profile.UpdateInterval
	if interval <= 0 {
		interval = defaultUpdateInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	id := d.profile.ID

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(id)
			}
		}
	}()
}

// stopDeviceLocked cancels the device's tick goroutine. Caller holds s.mu.
func (s *Simulator) stopDeviceLocked(d *device) {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// seedCurrentValues fills missing current values from the metric's pattern
// base, falling back to the configured maximum. Caller holds s.mu.
func (s *Simulator) seedCurrentValues(p *model.DeviceProfile) {
	if p.CurrentValues == nil {
		p.CurrentValues = make(map[string]float64, len(p.Ranges))
	}
	for metric, max := range p.Ranges {
		if _, ok := p.CurrentValues[metric]; ok {
			continue
		}
		if pat, ok := s.gen.patterns[metric]; ok && pat.Base > 0 {
			p.CurrentValues[metric] = pat.Base
		} else {
			p.CurrentValues[metric] = max
		}
	}
}

// tick advances every metric of one device and publishes the resulting
// reading plus any threshold alerts. A failure here is contained to this
// device and logged; other devices keep ticking.
func (s *Simulator) tick(id string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("device tick failed", zap.String("device", id), zap.Any("panic", r))
		}
	}()

	now := time.Now()

	s.mu.Lock()
	d, ok := s.devices[id]
	if !ok || !d.profile.Enabled {
		s.mu.Unlock()
		return
	}
	for metric, max := range d.profile.Ranges {
		prev := d.profile.CurrentValues[metric]
		d.profile.CurrentValues[metric] = s.gen.Next(metric, prev, max, now)
	}
	applyDerivedMetrics(d.profile.CurrentValues)

	reading := model.NewSensorReading(d.profile.ID, d.profile.RoomID, snapshotValues(d.profile.CurrentValues), nil)
	alerts := checkThresholds(d.profile)
	s.mu.Unlock()

	metrics.ReadingsGenerated.WithLabelValues(id).Inc()
	for _, a := range alerts {
		metrics.AlertsRaised.WithLabelValues(a.AlertType).Inc()
		s.bus.Publish(a)
	}
	s.bus.Publish(reading)
}

// applyDerivedMetrics computes VPD and heat index when both temperature and
// humidity are tracked.
func applyDerivedMetrics(values map[string]float64) {
	temp, hasTemp := values["temperature"]
	hum, hasHum := values["humidity"]
	if !hasTemp || !hasHum {
		return
	}
	values["vpd"] = VaporPressureDeficit(temp, hum)
	values["heat_index"] = HeatIndex(temp, hum)
}

func snapshotValues(values map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

// InjectAnomaly immediately offsets temperature and humidity on every device
// in the room, publishes the offset readings, and schedules the exact inverse
// offset (also published) once duration elapses.
func (s *Simulator) InjectAnomaly(roomID string, tempDelta, humidityDelta float64, duration time.Duration) {
	readings := s.applyRoomOffset(roomID, tempDelta, humidityDelta)
	for _, r := range readings {
		s.bus.Publish(r)
	}
	if len(readings) == 0 {
		s.log.Warn("anomaly targeted empty room", zap.String("room", roomID))
		return
	}
	s.log.Info("anomaly injected",
		zap.String("room", roomID),
		zap.Float64("temp_delta", tempDelta),
		zap.Float64("humidity_delta", humidityDelta),
		zap.Duration("duration", duration))

	s.mu.Lock()
	var timer *time.Timer
	timer = time.AfterFunc(duration, func() {
		restored := s.applyRoomOffset(roomID, -tempDelta, -humidityDelta)
		s.forgetAnomalyTimer(roomID, timer)
		for _, r := range restored {
			s.bus.Publish(r)
		}
		s.log.Info("anomaly reverted", zap.String("room", roomID))
	})
	s.anomalies[roomID] = append(s.anomalies[roomID], timer)
	s.mu.Unlock()
}

// applyRoomOffset shifts the matching metrics on every device in the room and
// returns the readings to publish. Offsets are applied unclamped so the
// scheduled reversal restores values exactly.
func (s *Simulator) applyRoomOffset(roomID string, tempDelta, humidityDelta float64) []model.SensorReading {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.SensorReading
	for _, d := range s.devices {
		if d.profile.RoomID != roomID {
			continue
		}
		touched := false
		if _, ok := d.profile.CurrentValues["temperature"]; ok && tempDelta != 0 {
			d.profile.CurrentValues["temperature"] += tempDelta
			touched = true
		}
		if _, ok := d.profile.CurrentValues["humidity"]; ok && humidityDelta != 0 {
			d.profile.CurrentValues["humidity"] += humidityDelta
			touched = true
		}
		if !touched {
			continue
		}
		applyDerivedMetrics(d.profile.CurrentValues)
		out = append(out, model.NewSensorReading(
			d.profile.ID, roomID,
			snapshotValues(d.profile.CurrentValues),
			map[string]any{"anomaly": true},
		))
	}
	return out
}

// forgetAnomalyTimer drops a fired timer from the room's pending list.
func (s *Simulator) forgetAnomalyTimer(roomID string, timer *time.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	timers := s.anomalies[roomID]
	for i, t := range timers {
		if t == timer {
			s.anomalies[roomID] = append(timers[:i], timers[i+1:]...)
			break
		}
	}
	if len(s.anomalies[roomID]) == 0 {
		delete(s.anomalies, roomID)
	}
}
