package engine

import (
	"sync"
	"time"

	"github.com/roach88/draftkeep/internal/clock"
)

// Debouncer runs the most recently triggered function once delay has passed
// without another Trigger.
//
// Each Trigger bumps a generation counter; a timer whose generation is no
// longer current returns without running its function, even if Stop lost
// the race with the clock.
//
// Thread-safety: all methods are safe for concurrent use. fn runs without
// the debouncer's lock held.
type Debouncer struct {
	name  string
	clock clock.Clock
	delay time.Duration

	mu    sync.Mutex
	timer clock.Timer
	gen   uint64
}

// NewDebouncer creates a debouncer for one named concern.
func NewDebouncer(name string, c clock.Clock, delay time.Duration) *Debouncer {
	return &Debouncer{name: name, clock: c, delay: delay}
}

// Name returns the concern this debouncer owns.
func (d *Debouncer) Name() string {
	return d.name
}

// Delay returns the debounce delay.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Trigger (re)starts the timer. Only the fn of the last Trigger before the
// timer fires is run.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.gen != gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
}

// Cancel drops any pending run. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	return true
}

// Pending reports whether a run is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
