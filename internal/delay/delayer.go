// Package delay provides a per-key coalescing scheduler.
//
// A Delayer collapses bursts of trigger requests into a single deferred
// execution. Each trigger replaces the previously queued task, so after a
// burst settles exactly one task runs and it is always the most recently
// submitted one. While a task is executing, further triggers queue a single
// replacement task that runs immediately after the in-flight one completes.
//
// There is no external cancel; superseding is the only cancellation
// mechanism. A task that panics is recovered and leaves the Delayer usable.
package delay

import (
	"log/slog"
	"sync"
	"time"
)

// Task is a unit of deferred work.
type Task func()

// Delayer coalesces triggers for a single key. It is safe for concurrent use.
type Delayer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	pending Task
	running bool
}

// New creates a Delayer with the given settle delay. A zero delay coalesces
// only bursts that arrive before the scheduler runs; separated triggers each
// execute promptly.
func New(d time.Duration) *Delayer {
	if d < 0 {
		d = 0
	}
	return &Delayer{delay: d}
}

// Delay returns the configured settle delay.
func (d *Delayer) Delay() time.Duration {
	return d.delay
}

// Trigger records task as the latest pending work for this delayer.
//
// If no execution is pending, one is scheduled after the settle delay; each
// further trigger restarts the settle window. If an execution is pending but
// not yet started, task replaces the previously queued one, which never runs.
// If an execution is in flight, task is queued to run immediately after it
// completes, itself subject to the same replacement rule.
func (d *Delayer) Trigger(task Task) {
	if task == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = task
	if d.running {
		// Picked up by the execution loop when the in-flight task completes.
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

// Pending reports whether a task is queued but not yet started.
func (d *Delayer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil && !d.running
}

// fire runs on the timer goroutine when the settle window elapses. It drains
// pending tasks until none remain, so a task queued during execution runs
// back-to-back without a fresh delay.
func (d *Delayer) fire() {
	d.mu.Lock()
	if d.running || d.pending == nil {
		d.mu.Unlock()
		return
	}
	task := d.pending
	d.pending = nil
	d.timer = nil
	d.running = true
	d.mu.Unlock()

	for {
		runTask(task)

		d.mu.Lock()
		task = d.pending
		d.pending = nil
		if task == nil {
			d.running = false
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()
	}
}

// runTask executes a task, absorbing panics so a failing task cannot corrupt
// the delayer for subsequent triggers.
func runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("delayed task panicked", "panic", r)
		}
	}()
	task()
}
