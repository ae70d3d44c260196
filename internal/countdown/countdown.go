// Package countdown implements a one-second-granularity countdown with
// pause/resume and an expiry callback.
package countdown

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrInvalidDuration is returned when Start is given a non-positive duration.
	ErrInvalidDuration = errors.New("countdown duration must be positive")
	// ErrAlreadyRunning is returned when Start is called on a running countdown.
	ErrAlreadyRunning = errors.New("countdown already running")
)

// Ticker is the periodic tick source driving a Countdown.
type Ticker interface {
	C() <-chan time.Time
	Reset(d time.Duration)
	Stop()
}

// TickerFactory creates a Ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time    { return s.t.C }
func (s stdTicker) Reset(d time.Duration) { s.t.Reset(d) }
func (s stdTicker) Stop()                 { s.t.Stop() }

// RealTicker is the TickerFactory backed by time.Ticker.
func RealTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// Countdown counts whole seconds down to zero. Callbacks run on the
// countdown's goroutine, never while its lock is held, so they may call back
// into the Countdown. The part of a second that elapsed before a Pause is
// carried over, so the first tick after Resume comes early by that amount.
type Countdown struct {
	newTicker TickerFactory
	now       func() time.Time

	mu        sync.Mutex
	duration  int
	remaining int
	onTick    func(remaining int)
	onExpire  func()
	started   bool
	running   bool
	expired   bool
	gen       uint64
	stop      chan struct{}

	// secondStart is when the current second began; carry is the part of
	// it already spent when the countdown was halted
	secondStart time.Time
	carry       time.Duration
}

// Option configures a Countdown.
type Option func(*Countdown)

// WithClock replaces time.Now for measuring partial seconds.
func WithClock(now func() time.Time) Option {
	return func(c *Countdown) { c.now = now }
}

// New creates an idle countdown. A nil factory uses RealTicker.
func New(factory TickerFactory, opts ...Option) *Countdown {
	if factory == nil {
		factory = RealTicker
	}
	c := &Countdown{newTicker: factory, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins counting down from seconds. onTick receives the remaining
// seconds once per elapsed second; onExpire fires exactly once when the
// remaining time reaches zero.
func (c *Countdown) Start(seconds int, onTick func(remaining int), onExpire func()) error {
	if seconds <= 0 {
		return ErrInvalidDuration
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrAlreadyRunning
	}
	c.duration = seconds
	c.remaining = seconds
	c.onTick = onTick
	c.onExpire = onExpire
	c.started = true
	c.expired = false
	c.carry = 0
	c.runLocked()
	return nil
}

// Pause suspends the countdown without losing elapsed time.
func (c *Countdown) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.haltLocked()
}

// Resume continues a paused countdown. It is a no-op once expired or stopped.
func (c *Countdown) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running || c.expired || !c.started {
		return
	}
	c.runLocked()
}

// Reset returns the countdown to its original duration, keeping it running
// if it was running.
func (c *Countdown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	wasRunning := c.running
	c.haltLocked()
	c.remaining = c.duration
	c.expired = false
	c.carry = 0
	if wasRunning {
		c.runLocked()
	}
}

// Stop halts the countdown for good; Resume no longer restarts it.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.haltLocked()
	c.started = false
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Running reports whether ticks are currently being counted.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Expired reports whether the countdown reached zero.
func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

func (c *Countdown) runLocked() {
	c.gen++
	stop := make(chan struct{})
	c.stop = stop
	c.running = true
	c.secondStart = c.now().Add(-c.carry)
	first := time.Second - c.carry
	if first <= 0 {
		first = time.Millisecond
	}
	go c.loop(c.gen, c.newTicker(first), first != time.Second, stop)
}

func (c *Countdown) haltLocked() {
	if !c.running {
		return
	}
	c.running = false
	close(c.stop)
	c.stop = nil
	c.carry = c.now().Sub(c.secondStart)
	switch {
	case c.carry < 0:
		c.carry = 0
	case c.carry >= time.Second:
		c.carry = time.Second - time.Millisecond
	}
}

func (c *Countdown) loop(gen uint64, ticker Ticker, shortFirst bool, stop <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if shortFirst {
				ticker.Reset(time.Second)
				shortFirst = false
			}
			if done := c.advance(gen); done {
				return
			}
		}
	}
}

// advance consumes one tick for the loop identified by gen.
func (c *Countdown) advance(gen uint64) bool {
	c.mu.Lock()
	if gen != c.gen || !c.running {
		c.mu.Unlock()
		return true
	}
	c.remaining--
	c.secondStart = c.now()
	remaining := c.remaining
	onTick, onExpire := c.onTick, c.onExpire
	expired := remaining <= 0
	if expired {
		c.remaining = 0
		remaining = 0
		c.expired = true
		c.haltLocked()
	}
	c.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
	if expired {
		if onExpire != nil {
			onExpire()
		}
		return true
	}
	return false
}
