package countdown

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualTicker struct {
	c      chan time.Time
	period time.Duration
	resets chan time.Duration
}

func (m *manualTicker) C() <-chan time.Time     { return m.c }
func (m *manualTicker) Reset(d time.Duration) { m.resets <- d }
func (m *manualTicker) Stop()                 {}

type manualClock struct {
	tickers chan *manualTicker
}

func newManualClock() *manualClock {
	return &manualClock{tickers: make(chan *manualTicker, 8)}
}

func (m *manualClock) factory(d time.Duration) Ticker {
	t := &manualTicker{c: make(chan time.Time), period: d, resets: make(chan time.Duration, 4)}
	m.tickers <- t
	return t
}

// fakeNow is a settable wall clock.
type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func (m *manualClock) next(t *testing.T) *manualTicker {
	t.Helper()
	select {
	case tk := <-m.tickers:
		return tk
	case <-time.After(time.Second):
		t.Fatalf("no ticker created")
		return nil
	}
}

type recorder struct {
	ticks   chan int
	expires chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ticks: make(chan int, 16), expires: make(chan struct{}, 4)}
}

func (r *recorder) onTick(remaining int) { r.ticks <- remaining }
func (r *recorder) onExpire()            { r.expires <- struct{}{} }

func (r *recorder) take(t *testing.T, n int) []int {
	t.Helper()
	out := make([]int, 0, n)
	for len(out) < n {
		select {
		case v := <-r.ticks:
			out = append(out, v)
		case <-time.After(time.Second):
			t.Fatalf("expected %d ticks, got %v", n, out)
		}
	}
	return out
}

func (r *recorder) waitExpire(t *testing.T) {
	t.Helper()
	select {
	case <-r.expires:
	case <-time.After(time.Second):
		t.Fatalf("expected expiry")
	}
}

func (r *recorder) assertQuiet(t *testing.T) {
	t.Helper()
	select {
	case v := <-r.ticks:
		t.Fatalf("unexpected tick %d", v)
	case <-r.expires:
		t.Fatalf("unexpected expiry")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCountdownRunsToCompletion(t *testing.T) {
	clock := newManualClock()
	rec := newRecorder()
	c := New(clock.factory)

	require.NoError(t, c.Start(5, rec.onTick, rec.onExpire))
	tk := clock.next(t)
	for i := 0; i < 5; i++ {
		tk.c <- time.Now()
	}

	assert.Equal(t, []int{4, 3, 2, 1, 0}, rec.take(t, 5))
	rec.waitExpire(t)
	rec.assertQuiet(t)
	assert.True(t, c.Expired())
	assert.False(t, c.Running())
}

func TestCountdownPauseDoesNotCountPausedTime(t *testing.T) {
	clock := newManualClock()
	rec := newRecorder()
	c := New(clock.factory)

	require.NoError(t, c.Start(5, rec.onTick, rec.onExpire))
	first := clock.next(t)
	first.c <- time.Now()
	first.c <- time.Now()
	assert.Equal(t, []int{4, 3}, rec.take(t, 2))

	c.Pause()
	assert.False(t, c.Running())
	assert.Equal(t, 3, c.Remaining())
	c.Resume()

	second := clock.next(t)
	for i := 0; i < 3; i++ {
		second.c <- time.Now()
	}
	assert.Equal(t, []int{2, 1, 0}, rec.take(t, 3))
	rec.waitExpire(t)
	rec.assertQuiet(t)
}

func TestCountdownStopPreventsExpiry(t *testing.T) {
	clock := newManualClock()
	rec := newRecorder()
	c := New(clock.factory)

	require.NoError(t, c.Start(1, rec.onTick, rec.onExpire))
	tk := clock.next(t)
	c.Stop()

	select {
	case tk.c <- time.Now():
	case <-time.After(50 * time.Millisecond):
	}
	rec.assertQuiet(t)

	c.Resume()
	select {
	case <-clock.tickers:
		t.Fatalf("resume after stop must not restart")
	default:
	}
}

func TestCountdownReset(t *testing.T) {
	clock := newManualClock()
	rec := newRecorder()
	c := New(clock.factory)

	require.NoError(t, c.Start(3, rec.onTick, rec.onExpire))
	tk := clock.next(t)
	tk.c <- time.Now()
	rec.take(t, 1)

	c.Reset()
	assert.Equal(t, 3, c.Remaining())
	fresh := clock.next(t)
	fresh.c <- time.Now()
	assert.Equal(t, []int{2}, rec.take(t, 1))
}

func TestCountdownStartValidation(t *testing.T) {
	c := New(newManualClock().factory)
	assert.ErrorIs(t, c.Start(0, nil, nil), ErrInvalidDuration)
	require.NoError(t, c.Start(2, nil, nil))
	assert.ErrorIs(t, c.Start(2, nil, nil), ErrAlreadyRunning)
	c.Stop()
}

func TestCountdownResumeKeepsPartialSecond(t *testing.T) {
	clock := newManualClock()
	wall := &fakeNow{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	rec := newRecorder()
	c := New(clock.factory, WithClock(wall.now))

	require.NoError(t, c.Start(5, rec.onTick, rec.onExpire))
	first := clock.next(t)
	assert.Equal(t, time.Second, first.period)

	wall.advance(time.Second)
	first.c <- time.Now()
	assert.Equal(t, []int{4}, rec.take(t, 1))

	wall.advance(400 * time.Millisecond)
	c.Pause()
	wall.advance(10 * time.Second)
	c.Resume()

	second := clock.next(t)
	assert.Equal(t, 600*time.Millisecond, second.period)
	wall.advance(600 * time.Millisecond)
	second.c <- time.Now()
	assert.Equal(t, []int{3}, rec.take(t, 1))
	select {
	case d := <-second.resets:
		assert.Equal(t, time.Second, d)
	case <-time.After(time.Second):
		t.Fatalf("ticker not reset to a full second")
	}

	// a pause right on a second boundary carries nothing
	c.Pause()
	c.Resume()
	third := clock.next(t)
	assert.Equal(t, time.Second, third.period)
	c.Stop()
}
