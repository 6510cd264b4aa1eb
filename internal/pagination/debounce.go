package pagination

import (
	"context"
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into one run after a quiet period.
// A new Trigger supersedes a pending one. A run already in flight is not
// interrupted; runs never overlap.
type Debouncer struct {
	delay time.Duration
	fn    func(ctx context.Context)

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	stopped bool

	runMu sync.Mutex
	wg    sync.WaitGroup
	ctx   context.Context
	stop  context.CancelFunc
}

func NewDebouncer(delay time.Duration, fn func(ctx context.Context)) *Debouncer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer{delay: delay, fn: fn, ctx: ctx, stop: cancel}
}

// Trigger schedules a run after the delay, replacing any pending one.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.seq++
	seq := d.seq
	if d.timer != nil && d.timer.Stop() {
		d.wg.Done()
	}
	d.wg.Add(1)
	d.timer = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		current := seq == d.seq && !d.stopped
		d.mu.Unlock()
		if !current {
			return
		}
		d.runMu.Lock()
		defer d.runMu.Unlock()
		d.fn(d.ctx)
	})
}

// Stop drops any pending run and waits for an in-flight one to finish.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil && d.timer.Stop() {
		// the timer never fired, so its callback will not call Done
		d.wg.Done()
	}
	d.mu.Unlock()
	d.stop()
	d.wg.Wait()
}
