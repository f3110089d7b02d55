package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"
)

// manualClock is a Clock whose time only moves when Advance is called.
// Due callbacks run synchronously inside Advance, in deadline order.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	every   time.Duration
	f       func()
	seq     int
	stopped bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	return c.schedule(d, 0, f)
}

func (c *manualClock) Every(d time.Duration, f func()) Timer {
	return c.schedule(d, d, f)
}

func (c *manualClock) schedule(d, every time.Duration, f func()) *manualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{clock: c, at: c.now.Add(d), every: every, f: f, seq: c.seq}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// Advance moves time forward by d, firing every callback that falls due.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		live := c.timers[:0]
		for _, t := range c.timers {
			if !t.stopped {
				live = append(live, t)
			}
		}
		c.timers = live
		sort.SliceStable(c.timers, func(i, j int) bool {
			if c.timers[i].at.Equal(c.timers[j].at) {
				return c.timers[i].seq < c.timers[j].seq
			}
			return c.timers[i].at.Before(c.timers[j].at)
		})
		if len(c.timers) == 0 || c.timers[0].at.After(target) {
			c.now = target
			c.mu.Unlock()
			return
		}
		next := c.timers[0]
		if next.at.After(c.now) {
			c.now = next.at
		}
		if next.every > 0 {
			next.at = next.at.Add(next.every)
		} else {
			next.stopped = true
		}
		f := next.f
		c.mu.Unlock()
		f()
	}
}

// pending counts timers that have not fired or been stopped
func (c *manualClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeTransport records frames instead of writing to a socket
type fakeTransport struct {
	mu     sync.Mutex
	text   [][]byte
	bin    [][]byte
	closed bool
	fail   bool
}

func (f *fakeTransport) SendText(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("%w: test transport", ErrSendFailure)
	}
	f.text = append(f.text, data)
	return nil
}

func (f *fakeTransport) SendBinary(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("%w: test transport", ErrSendFailure)
	}
	f.bin = append(f.bin, data)
	return nil
}

func (f *fakeTransport) Open() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeTransport) isClosed() bool {
	return !f.Open()
}

// ofType decodes every text frame whose type field equals typ
func (f *fakeTransport) ofType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, raw := range f.text {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func TestManualClockOrdering(t *testing.T) {
	c := newManualClock()
	var got []string
	c.AfterFunc(3*time.Second, func() { got = append(got, "late") })
	c.AfterFunc(time.Second, func() { got = append(got, "early") })
	tick := c.Every(time.Second, func() { got = append(got, "tick") })

	c.Advance(2 * time.Second)
	tick.Stop()
	c.Advance(2 * time.Second)

	want := []string{"early", "tick", "tick", "late"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if c.pending() != 0 {
		t.Errorf("expected no pending timers, got %d", c.pending())
	}
}
