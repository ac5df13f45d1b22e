package search

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid successive triggers into one call with the
// latest value, after a quiet period. Typing "Du" then "Dune" inside
// the window issues a single query, for "Dune".
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	fn    func(string)
	timer *time.Timer
}

func NewDebouncer(delay time.Duration, fn func(string)) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger schedules fn with q after the quiet period, superseding any
// pending trigger.
func (d *Debouncer) Trigger(q string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.fn(q)
	})
}

// Stop cancels any pending trigger.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
