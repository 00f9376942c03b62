package agent

import (
	"sync"
	"time"

	"github.com/agentmesh/platform/internal/clock"
)

// fakeClock is a manually-driven clock.Clock double: Now() returns the start
// time moved forward by every Advance so far, and tickers only fire when
// Advance is called with them in scope. It exists only to make Base's loop-tick and heartbeat timing
// deterministic in tests.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Now().Add(d)
	return ch
}

func (c *fakeClock) NewTicker(d time.Duration) clock.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{c: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

// WaitForTicker blocks until at least one ticker has been created, so callers
// don't race StartLoops' goroutine scheduling before calling Advance.
func (c *fakeClock) WaitForTicker() {
	for {
		c.mu.Lock()
		n := len(c.tickers)
		c.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// Advance moves the clock forward and fires every live ticker once.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	tickers := append([]*fakeTicker{}, c.tickers...)
	c.mu.Unlock()

	for _, t := range tickers {
		if t.stopped() {
			continue
		}
		select {
		case t.c <- now:
		default:
		}
	}
}

type fakeTicker struct {
	mu   sync.Mutex
	c    chan time.Time
	done bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
}

func (t *fakeTicker) stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}
