package executor

import (
	"sync"
	"time"
)

// Dedup drops trade signals that were already processed within a TTL window.
// Strategies may re-emit a signal after a reconnect or a replayed fill; acting
// on it twice would double a position. Safe for concurrent use.
type Dedup struct {
	mu   sync.Mutex
	seen map[string]time.Time // signal ID -> first seen
	ttl  time.Duration
	now  func() time.Time
}

// NewDedup creates a Dedup that treats a signal ID as a duplicate when it was
// seen within ttl.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// IsDuplicate reports whether the signal ID was seen within the TTL window.
// An unseen or expired ID is recorded and reported as fresh.
func (d *Dedup) IsDuplicate(signalID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if first, ok := d.seen[signalID]; ok && now.Sub(first) < d.ttl {
		return true
	}
	d.seen[signalID] = now
	return false
}

// Cleanup drops entries older than the TTL. Called periodically by the
// executor loop to bound memory.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for id, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, id)
		}
	}
}

// Len returns the number of tracked signal IDs.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
