package app

import (
	"sync"
	"time"
)

// timerSleep is swapped in tests to keep auto-advance delays fast.
var timerSleep = time.Sleep

// countdown is a cancellable per-question timer. It ticks once per interval
// and calls expire when the remaining time reaches zero. Stop is idempotent
// and prevents any further callbacks from being scheduled; a callback already
// in flight is made harmless by the session's generation guard.
type countdown struct {
	stop chan struct{}
	once sync.Once
}

// startCountdown runs a timer goroutine for the given number of seconds.
// tick receives the remaining seconds after each elapsed interval; expire
// fires at most once, when the count reaches zero.
func startCountdown(seconds int, interval time.Duration, tick func(remaining int), expire func()) *countdown {
	c := &countdown{stop: make(chan struct{})}
	go func() {
		remaining := seconds
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-t.C:
				remaining--
				if remaining <= 0 {
					expire()
					return
				}
				tick(remaining)
			}
		}
	}()
	return c
}

// Stop cancels the countdown. Safe to call multiple times and from any
// goroutine.
func (c *countdown) Stop() {
	c.once.Do(func() { close(c.stop) })
}
