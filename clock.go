package main

import (
	"sync"
	"time"
)

// Clock is the time source for every timer in the server. Production code
// uses realClock; tests drive a manual clock so tick scheduling, grace
// periods and janitor sweeps are deterministic.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f once after d.
	AfterFunc(d time.Duration, f func()) Timer
	// Every runs f every d until the returned timer is stopped. Invocations
	// of f never overlap.
	Every(d time.Duration, f func()) Timer
}

// Timer cancels a scheduled callback. Stop reports whether the call
// prevented a pending invocation.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (realClock) Every(d time.Duration, f func()) Timer {
	t := &tickerTimer{
		ticker: time.NewTicker(d),
		stop:   make(chan struct{}),
	}
	go func() {
		defer t.ticker.Stop()
		for {
			select {
			case <-t.ticker.C:
				f()
			case <-t.stop:
				return
			}
		}
	}()
	return t
}

type tickerTimer struct {
	ticker *time.Ticker
	once   sync.Once
	stop   chan struct{}
}

func (t *tickerTimer) Stop() bool {
	stopped := false
	t.once.Do(func() {
		close(t.stop)
		stopped = true
	})
	return stopped
}
