package syncer

import (
	"sync"
	"time"
)

// Debouncer runs fn once after delay has passed without another Trigger.
// A Trigger while a run is pending cancels that run and starts the delay over.
type Debouncer struct {
	delay time.Duration
	fn    func()

	mu         sync.Mutex
	timer      *time.Timer
	gen        uint64
	pending    bool
	stopped    bool
	superseded int
	onReplace  func()
	running    sync.WaitGroup
}

// NewDebouncer creates a debouncer for fn. onReplace, if set, is called each time
// a pending run is superseded.
func NewDebouncer(delay time.Duration, fn func(), onReplace func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn, onReplace: onReplace}
}

// Trigger schedules a run, superseding any pending one
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.pending {
		d.timer.Stop()
		d.superseded++
		if d.onReplace != nil {
			d.onReplace()
		}
	}
	d.gen++
	gen := d.gen
	d.pending = true
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen || !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.running.Add(1)
	d.mu.Unlock()

	defer d.running.Done()
	d.fn()
}

// Cancel drops a pending run and reports whether there was one
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.pending {
		return false
	}
	d.timer.Stop()
	d.gen++
	d.pending = false
	return true
}

// Pending reports whether a run is scheduled
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Superseded returns how many scheduled runs were replaced before firing
func (d *Debouncer) Superseded() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.superseded
}

// Stop cancels any pending run, rejects further triggers and waits for a run in progress
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.pending {
		d.timer.Stop()
		d.pending = false
	}
	d.mu.Unlock()

	d.running.Wait()
}
