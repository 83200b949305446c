package watch

import (
	"sync"
	"time"
)

// DefaultWatchDelay is how long a watched file must stay quiet before it is re-run.
const DefaultWatchDelay = 200 * time.Millisecond

// Debouncer collapses bursts of events into one call made after the burst ends.
// Editors typically emit several write/rename events per save.
type Debouncer struct {
	mu      sync.Mutex
	timer   *time.Timer
	delay   time.Duration
	pending bool
}

// NewDebouncer creates a debouncer that fires delay after the last trigger.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultWatchDelay
	}
	return &Debouncer{delay: delay}
}

// Trigger schedules fn, replacing any call scheduled earlier and restarting the delay.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = true
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		d.pending = false
		d.mu.Unlock()
		fn()
	})
}

// Pending reports whether a call is scheduled and has not fired yet.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop drops the scheduled call, if any.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = false
}
