package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct{ got []Event }

func (r *recorder) Observe(e Event) { r.got = append(r.got, e) }

func TestEmitDropsTickOlderThanDeliveredEvent(t *testing.T) {
	rec := &recorder{}
	m := NewMachine(nil, "quiz-1", WithObserver(rec))
	defer m.Release()

	m.mu.Lock()
	m.status = StatusInProgress
	tick := m.eventLocked(EventTick, nil)
	m.status = StatusCompleted
	completed := m.eventLocked(EventCompleted, nil)
	m.mu.Unlock()

	// the timer goroutine loses the race to the submitting goroutine
	m.emit(completed)
	m.emit(tick)

	if assert.Len(t, rec.got, 1) {
		assert.Equal(t, EventCompleted, rec.got[0].Type)
	}

	m.mu.Lock()
	m.status = StatusInProgress
	next := m.eventLocked(EventTick, nil)
	m.mu.Unlock()
	m.emit(next)
	assert.Len(t, rec.got, 2)
	assert.Greater(t, rec.got[1].Seq, rec.got[0].Seq)
}
