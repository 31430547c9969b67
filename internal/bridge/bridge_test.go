package bridge

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/growlab/growcore/internal/eventbus"
	"github.com/growlab/growcore/internal/model"
)

type fakePublisher struct {
	mu       sync.Mutex
	payloads map[string][][]byte
	err      error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{payloads: map[string][][]byte{}}
}

func (p *fakePublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.payloads[topic] = append(p.payloads[topic], payload)
	return nil
}

func (p *fakePublisher) Close() {}

func (p *fakePublisher) published(topic string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.payloads[topic]
}

func TestBridgeForwardsEventsAsJSON(t *testing.T) {
	bus := eventbus.New(100, zap.NewNop())
	pub := newFakePublisher()

	b := New(pub, zap.NewNop())
	b.Attach(bus)
	defer b.Close()

	bus.Publish(model.NewSensorReading("d1", "veg-room", map[string]float64{"temperature": 24}, nil))

	got := pub.published(EventTopicPrefix + "sensor_reading")
	require.Len(t, got, 1)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(got[0], &decoded))
	require.Equal(t, "sensor_reading", decoded["type"])
	require.Equal(t, "d1", decoded["device_id"])
}

func TestBridgeBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	bus := eventbus.New(100, zap.NewNop())
	pub := newFakePublisher()
	pub.err = errors.New("broker down")

	b := New(pub, zap.NewNop())
	b.Attach(bus)
	defer b.Close()

	for i := 0; i < 10; i++ {
		bus.Publish(model.NewSensorReading("d1", "veg-room", map[string]float64{"temperature": 24}, nil))
	}

	// Broker recovers, but the open breaker keeps dropping.
	pub.mu.Lock()
	pub.err = nil
	pub.mu.Unlock()
	bus.Publish(model.NewSensorReading("d1", "veg-room", map[string]float64{"temperature": 24}, nil))

	require.Empty(t, pub.published(EventTopicPrefix+"sensor_reading"))
}

func TestBridgeCloseStopsForwarding(t *testing.T) {
	bus := eventbus.New(100, zap.NewNop())
	pub := newFakePublisher()

	b := New(pub, zap.NewNop())
	b.Attach(bus)
	b.Close()

	bus.Publish(model.NewSensorReading("d1", "veg-room", map[string]float64{"temperature": 24}, nil))
	require.Empty(t, pub.published(EventTopicPrefix+"sensor_reading"))
}

type fakeInjector struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeInjector) InjectAnomaly(roomID string, _, _ float64, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, roomID)
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeRunner) RunNow(id string) (model.TaskOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	return model.TaskOutcome{TaskID: id, Success: true}, f.err
}

func TestCommandHandlerInjectAnomaly(t *testing.T) {
	inj := &fakeInjector{}
	h := NewCommandHandler(inj, &fakeRunner{}, zap.NewNop())

	payload := []byte(`{"type":"inject_anomaly","room_id":"flower-room","temp_delta":5,"humidity_delta":10,"duration_seconds":60}`)
	require.NoError(t, h.Handle(CommandTopic, payload))
	require.Equal(t, []string{"flower-room"}, inj.calls)
}

func TestCommandHandlerDeduplicatesRedelivery(t *testing.T) {
	inj := &fakeInjector{}
	h := NewCommandHandler(inj, &fakeRunner{}, zap.NewNop())

	payload := []byte(`{"type":"inject_anomaly","room_id":"veg-room","temp_delta":2,"duration_seconds":30}`)
	require.NoError(t, h.Handle(CommandTopic, payload))
	require.NoError(t, h.Handle(CommandTopic, payload)) // QoS1 redelivery
	require.Len(t, inj.calls, 1)
}

func TestCommandHandlerRunTask(t *testing.T) {
	runner := &fakeRunner{}
	h := NewCommandHandler(&fakeInjector{}, runner, zap.NewNop())

	require.NoError(t, h.Handle(CommandTopic, []byte(`{"type":"run_task","task_id":"backup-daily"}`)))
	require.Equal(t, []string{"backup-daily"}, runner.calls)
}

func TestCommandHandlerRejectsBadInput(t *testing.T) {
	h := NewCommandHandler(&fakeInjector{}, &fakeRunner{}, zap.NewNop())

	require.Error(t, h.Handle(CommandTopic, []byte(`not json`)))
	require.Error(t, h.Handle(CommandTopic, []byte(`{"type":"inject_anomaly"}`)))
	require.Error(t, h.Handle(CommandTopic, []byte(`{"type":"run_task"}`)))
	require.Error(t, h.Handle(CommandTopic, []byte(`{"type":"launch_rocket"}`)))
}
