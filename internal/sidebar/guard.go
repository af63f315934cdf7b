package sidebar

import "sync"

// flightGuard coalesces concurrent calls per operation key: the first call
// claims the key, later calls are dropped until the first releases it.
// Dropped, not queued — callers must not assume fairness.
type flightGuard struct {
	mu       sync.Mutex
	inFlight map[string]bool
}

func newFlightGuard() *flightGuard {
	return &flightGuard{inFlight: make(map[string]bool)}
}

// begin claims op. It returns false when op is already in flight.
func (g *flightGuard) begin(op string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight[op] {
		return false
	}
	g.inFlight[op] = true
	return true
}

// end releases op. Always called, success or not.
func (g *flightGuard) end(op string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, op)
}

// active reports whether op is currently claimed.
func (g *flightGuard) active(op string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight[op]
}
