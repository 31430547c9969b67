// Package dedup suppresses duplicate message IDs within a TTL window. It is
// used to absorb QoS1 redeliveries on the command topic.
package dedup

import (
	"sync"
	"time"
)

const (
	defaultTTL = 10 * time.Minute
	defaultCap = 10000
)

type Deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	cap  int
	seen map[string]time.Time // id -> expiry
}

func New(ttl time.Duration, cap int) *Deduper {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if cap <= 0 {
		cap = defaultCap
	}
	return &Deduper{ttl: ttl, cap: cap, seen: make(map[string]time.Time, cap)}
}

// ShouldProcess reports whether id has not been seen within the TTL window,
// recording it as seen. Empty IDs are always processed.
func (d *Deduper) ShouldProcess(id string) bool {
	if id == "" {
		return true
	}
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.seen[id]; ok && now.Before(exp) {
		return false
	}
	d.seen[id] = now.Add(d.ttl)
	if len(d.seen) > d.cap {
		d.prune(now)
	}
	return true
}

// Len returns the number of IDs currently tracked, expired entries included.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// prune drops expired entries. Caller holds d.mu.
func (d *Deduper) prune(now time.Time) {
	for id, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, id)
		}
		if len(d.seen) <= d.cap {
			return
		}
	}
}
