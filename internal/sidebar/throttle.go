package sidebar

import (
	"sync"
	"time"
)

// throttle rate-limits calls to fn on the trailing edge: the first call in
// a quiet period starts the interval, further calls replace the pending
// argument, and fn runs once with the last argument when the interval
// elapses. This keeps the limiting policy separate from the work itself.
type throttle struct {
	interval time.Duration
	fn       func(string)

	mu      sync.Mutex
	timer   *time.Timer
	pending string
}

func newThrottle(interval time.Duration, fn func(string)) *throttle {
	return &throttle{interval: interval, fn: fn}
}

// Call schedules fn(arg); within one interval only the last arg survives.
func (t *throttle) Call(arg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending = arg
	if t.timer != nil {
		return
	}
	t.timer = time.AfterFunc(t.interval, func() {
		t.mu.Lock()
		arg := t.pending
		t.timer = nil
		t.mu.Unlock()
		t.fn(arg)
	})
}

// Stop cancels a pending invocation.
func (t *throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
