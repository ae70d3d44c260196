package app

import "time"

// EventType names a lifecycle event emitted by a Machine.
type EventType string

const (
	EventOverviewLoaded   EventType = "overview_loaded"
	EventStarted          EventType = "started"
	EventAnswerChanged    EventType = "answer_changed"
	EventCursorMoved      EventType = "cursor_moved"
	EventTick             EventType = "tick"
	EventSubmitting       EventType = "submitting"
	EventSubmissionFailed EventType = "submission_failed"
	EventCompleted        EventType = "completed"
	EventReviewStarted    EventType = "review_started"
	EventRestarted        EventType = "restarted"
	EventReleased         EventType = "released"
)

// Event is a snapshot of the machine taken right after a change. Seq grows
// with every snapshot of one machine.
type Event struct {
	Seq   uint64
	Type  EventType
	At    time.Time
	State State
	Err   error
}

// Observer receives machine events in Seq order; a tick whose snapshot is
// older than an event already delivered is dropped. Observe is called without
// the machine lock held and may read the machine's state, but must not drive
// the machine.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }
