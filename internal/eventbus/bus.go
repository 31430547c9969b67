// Package eventbus is the in-process hub decoupling event producers from
// consumers. Delivery is synchronous: a publish call fans the event out to
// every matching subscription, in registration order, before returning.
package eventbus

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/growlab/growcore/internal/metrics"
	"github.com/growlab/growcore/internal/model"
	"github.com/growlab/growcore/pkg/ring"
)

// DefaultHistoryCapacity bounds the retained event history.
const DefaultHistoryCapacity = 1000

// Filter selects a subset of events. Zero-valued fields are wildcards; set
// fields are ANDed together.
type Filter struct {
	Type     model.EventType
	DeviceID string
	RoomID   string
}

// Matches reports whether e passes the filter.
func (f Filter) Matches(e model.Event) bool {
	if f.Type != "" && e.Type() != f.Type {
		return false
	}
	if f.DeviceID != "" && e.Device() != f.DeviceID {
		return false
	}
	if f.RoomID != "" && e.Room() != f.RoomID {
		return false
	}
	return true
}

// Callback is invoked synchronously for each delivered event. A panic inside
// a callback is recovered and logged; it never reaches the publisher.
type Callback func(model.Event)

// Subscription is a registered, cancellable interest in a subset of events.
type Subscription struct {
	bus       *bus
	filter    *Filter
	fn        Callback
	cancelled atomic.Bool
}

// Cancel unregisters the subscription. Safe to call multiple times and from
// within the subscription's own callback.
func (s *Subscription) Cancel() {
	if !s.cancelled.CompareAndSwap(false, true) {
		return
	}
	s.bus.remove(s)
}

// Bus is the publish/subscribe hub.
type Bus interface {
	Publish(e model.Event)
	Subscribe(filter *Filter, fn Callback) *Subscription
	RecentEvents(filter *Filter, limit int) []model.Event
	Clear()
	Shutdown()
}

type bus struct {
	log *zap.Logger

	mu      sync.Mutex
	history *ring.Buffer[model.Event]
	subs    []*Subscription
	closed  bool
}

// New builds a hub retaining at most capacity events; capacity <= 0 selects
// DefaultHistoryCapacity.
func New(capacity int, log *zap.Logger) Bus {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &bus{log: log, history: ring.New[model.Event](capacity)}
}

// Publish appends e to the history and delivers it to all matching
// subscriptions before returning. After Shutdown it is a logged no-op.
func (b *bus) Publish(e model.Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.log.Debug("publish after shutdown dropped", zap.String("type", string(e.Type())))
		return
	}
	b.history.Push(e)
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	metrics.EventsPublished.WithLabelValues(string(e.Type())).Inc()

	for _, s := range subs {
		// Re-check before each callback so a cancellation performed during
		// this very delivery still takes effect.
		if s.cancelled.Load() {
			continue
		}
		if s.filter != nil && !s.filter.Matches(e) {
			continue
		}
		b.dispatch(s, e)
	}
}

func (b *bus) dispatch(s *Subscription, e model.Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SubscriberPanics.Inc()
			b.log.Error("subscriber panicked",
				zap.String("event_id", e.ID()),
				zap.String("type", string(e.Type())),
				zap.Any("panic", r))
		}
	}()
	s.fn(e)
}

// Subscribe registers fn for every future event matching filter (nil matches
// everything). After Shutdown the returned subscription is already cancelled.
func (b *bus) Subscribe(filter *Filter, fn Callback) *Subscription {
	s := &Subscription{bus: b, filter: filter, fn: fn}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.cancelled.Store(true)
		return s
	}
	b.subs = append(b.subs, s)
	return s
}

func (b *bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cur := range b.subs {
		if cur == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// RecentEvents returns up to limit matching events, newest first. The result
// is a fresh slice; events themselves are immutable.
func (b *bus) RecentEvents(filter *Filter, limit int) []model.Event {
	if limit <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]model.Event, 0, limit)
	for i := b.history.Len() - 1; i >= 0 && len(out) < limit; i-- {
		e := b.history.At(i)
		if filter != nil && !filter.Matches(e) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Clear drops the retained history. Subscriptions stay registered.
func (b *bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history.Clear()
}

// Shutdown cancels every subscription, drops the history and turns further
// publishes into no-ops.
func (b *bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.subs {
		s.cancelled.Store(true)
	}
	b.subs = nil
	b.history.Clear()
}
