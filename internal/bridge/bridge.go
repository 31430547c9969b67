// Package bridge republishes hub events to the MQTT broker for off-process
// collaborators, and accepts inbound commands from them. It is a consumer of
// the hub like any other; the core never depends on it.
package bridge

import (
	"encoding/json"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/growlab/growcore/internal/eventbus"
	"github.com/growlab/growcore/internal/metrics"
	"github.com/growlab/growcore/internal/model"
	"github.com/growlab/growcore/pkg/broker"
)

// EventTopicPrefix is where events land, suffixed with the event type.
const EventTopicPrefix = "growcore/events/"

// Bridge forwards every hub event as JSON to MQTT. Publishing is protected
// by a circuit breaker so a dead broker cannot stall event delivery; while
// the breaker is open events are dropped and counted.
type Bridge struct {
	pub broker.Publisher
	cb  *gobreaker.CircuitBreaker
	log *zap.Logger
	sub *eventbus.Subscription
}

func New(pub broker.Publisher, log *zap.Logger) *Bridge {
	return &Bridge{
		pub: pub,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "mqtt-bridge",
			Interval: 30 * time.Second,
			Timeout:  10 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
		log: log,
	}
}

// Attach subscribes the bridge to the hub. Call at most once.
func (b *Bridge) Attach(bus eventbus.Bus) {
	b.sub = bus.Subscribe(nil, b.forward)
}

func (b *Bridge) forward(e model.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		b.log.Error("event marshal failed", zap.String("event_id", e.ID()), zap.Error(err))
		return
	}
	topic := EventTopicPrefix + string(e.Type())

	_, err = b.cb.Execute(func() (any, error) {
		return nil, b.pub.Publish(topic, payload)
	})
	if err != nil {
		metrics.BridgeDropped.Inc()
		b.log.Debug("event dropped by bridge", zap.String("topic", topic), zap.Error(err))
	}
}

// Close detaches from the hub.
func (b *Bridge) Close() {
	if b.sub != nil {
		b.sub.Cancel()
	}
}
