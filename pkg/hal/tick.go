package hal

import (
	"sync"
	"time"
)

// Ticker is anything that advances the scheduler's tick counter;
// pkg/sched.Scheduler satisfies it without hal importing sched.
type Ticker interface{ Tick() }

// TickSource runs t.Tick() on a fixed interval, the one goroutine in the
// whole program standing in for a host timer ISR (spec.md §6's "a tick
// source must call the scheduler's tick() every TICK_UNIT ms"). Stop via
// the returned func; safe to call more than once.
func TickSource(t Ticker, unit time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(unit)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				t.Tick()
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
