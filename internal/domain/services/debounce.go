package services

import (
	"sync"
	"time"
)

// Debouncer coalesces calls within a quiescence window into one execution.
// Every Schedule cancels the pending task and restarts the window; only the
// most recently scheduled function runs. Tasks never run concurrently, and
// Flush and Stop return only after a task already running has finished.
type Debouncer struct {
	delay time.Duration

	// run is held while a task executes. Lock order: run, then mu.
	run sync.Mutex

	mu      sync.Mutex
	timer   *time.Timer
	pending func()
	gen     uint64
	stopped bool
}

// NewDebouncer creates a Debouncer with the given window.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Schedule replaces the pending task with fn and restarts the window.
// It returns false once the debouncer has been stopped.
func (d *Debouncer) Schedule(fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = fn
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
	return true
}

// Pending reports whether a task is waiting to run.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Flush runs the pending task now, if any, after waiting for a task that
// is already running.
func (d *Debouncer) Flush() {
	d.run.Lock()
	defer d.run.Unlock()

	d.mu.Lock()
	fn := d.take()
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Stop flushes the pending task and refuses further scheduling.
func (d *Debouncer) Stop() {
	d.run.Lock()
	defer d.run.Unlock()

	d.mu.Lock()
	d.stopped = true
	fn := d.take()
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (d *Debouncer) fire(gen uint64) {
	d.run.Lock()
	defer d.run.Unlock()

	d.mu.Lock()
	if gen != d.gen {
		// Superseded by a later Schedule or already flushed.
		d.mu.Unlock()
		return
	}
	fn := d.take()
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// take clears the pending task. Caller holds mu.
func (d *Debouncer) take() func() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	fn := d.pending
	d.pending = nil
	d.gen++
	return fn
}
