package app

import (
	"sync"
	"time"
)

// Timer is the countdown for timed sessions. Remaining time is always
// derived from the deadline against the injected clock, never from
// counting ticks, so slow or missed ticks cannot drift the countdown.
type Timer struct {
	now      func() time.Time
	deadline time.Time
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

func newTimer(limit time.Duration, now func() time.Time, interval time.Duration) *Timer {
	if interval <= 0 {
		interval = time.Second
	}
	return &Timer{
		now:      now,
		deadline: now().Add(limit),
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Run drives the countdown until expiry or Stop. onTick receives the
// remaining duration roughly once per interval; onExpire fires at most
// once, when the deadline passes. Run blocks and is meant to be launched
// on its own goroutine.
func (t *Timer) Run(onTick func(remaining time.Duration), onExpire func()) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			remaining := t.Remaining()
			if remaining <= 0 {
				onExpire()
				return
			}
			if onTick != nil {
				onTick(remaining)
			}
		}
	}
}

// Remaining returns the time left on the countdown, clamped at zero.
func (t *Timer) Remaining() time.Duration {
	remaining := t.deadline.Sub(t.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Stop cancels the countdown. The run loop exits on its next wakeup; any
// tick that races Stop is discarded by the session's state guard. Safe to
// call multiple times and after expiry.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}
