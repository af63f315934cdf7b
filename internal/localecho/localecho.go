// Package localecho tracks recently self-initiated note mutations so the
// matching push notification can be recognized and skipped instead of
// triggering a redundant refresh.
package localecho

import (
	"sync"
	"time"
)

// DefaultWindow is how long a local update shadows its own push event.
const DefaultWindow = 2 * time.Second

// Deduplicator is a self-expiring set of note identifiers keyed by the
// time they were last updated locally. Entries for distinct identifiers
// are independent.
type Deduplicator struct {
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time
}

// New creates a Deduplicator with the given window. A non-positive window
// falls back to DefaultWindow.
func New(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Deduplicator{
		window:  window,
		now:     time.Now,
		entries: make(map[string]time.Time),
	}
}

// Mark records that id was just updated locally and schedules removal of
// the entry once the window elapses.
func (d *Deduplicator) Mark(id string) {
	d.mu.Lock()
	d.entries[id] = d.now()
	d.mu.Unlock()

	time.AfterFunc(d.window, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if ts, ok := d.entries[id]; ok && d.now().Sub(ts) >= d.window {
			delete(d.entries, id)
		}
	})
}

// WasRecent reports whether id was marked within the window.
func (d *Deduplicator) WasRecent(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	ts, ok := d.entries[id]
	if !ok {
		return false
	}
	return d.now().Sub(ts) < d.window
}
