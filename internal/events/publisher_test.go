package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublisherForwardsLifecycleEvents(t *testing.T) {
	logger := discardLogger()
	pubsub := NewGoChannel(logger)
	defer pubsub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	received := make(chan AttemptEvent, 8)
	done := make(chan error, 1)
	go func() {
		done <- Consume(ctx, pubsub, "", logger, func(ev AttemptEvent) { received <- ev })
	}()
	// gochannel only delivers to subscribers present at publish time
	time.Sleep(50 * time.Millisecond)

	pub := NewPublisher(pubsub, "", logger)
	at := time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC)
	pub.Observe(app.Event{Type: app.EventTick, At: at, State: app.State{QuizID: "quiz-1"}})
	pub.Observe(app.Event{
		Type: app.EventCompleted,
		At:   at,
		State: app.State{
			Status:    app.StatusCompleted,
			QuizID:    "quiz-1",
			AttemptID: "att-1",
			Progress:  app.Progress{Total: 3, Answered: []int{0, 1}},
			Verdict:   &domain.Verdict{AttemptID: "att-1", Percentage: 66.67, Passed: true},
		},
	})
	pub.Observe(app.Event{
		Type:  app.EventSubmissionFailed,
		At:    at,
		State: app.State{QuizID: "quiz-1", AttemptID: "att-2"},
		Err:   errors.New("backend down"),
	})

	byType := map[app.EventType]AttemptEvent{}
	for i := 0; i < 2; i++ {
		ev := waitEvent(t, received)
		byType[ev.Type] = ev
	}

	completed, ok := byType[app.EventCompleted]
	require.True(t, ok)
	assert.Equal(t, "att-1", completed.AttemptID)
	assert.Equal(t, 2, completed.Answered)
	assert.Equal(t, 3, completed.Total)
	require.NotNil(t, completed.Verdict)
	assert.True(t, completed.Verdict.Passed)
	assert.True(t, completed.OccurredAt.Equal(at))

	failed, ok := byType[app.EventSubmissionFailed]
	require.True(t, ok)
	assert.Equal(t, "backend down", failed.Error)

	select {
	case ev := <-received:
		t.Fatalf("unexpected extra event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("consumer did not stop")
	}
}

func TestObserveDoesNotWaitForSubscriberAck(t *testing.T) {
	logger := discardLogger()
	pubsub := NewGoChannel(logger)

	ctx, cancel := context.WithCancel(context.Background())
	// subscribed but never acking
	_, err := pubsub.Subscribe(ctx, DefaultTopic)
	require.NoError(t, err)

	pub := NewPublisher(pubsub, "", logger)
	observed := make(chan struct{})
	go func() {
		defer close(observed)
		for i := 0; i < 10; i++ {
			pub.Observe(app.Event{Type: app.EventAnswerChanged, State: app.State{QuizID: "quiz-1", AttemptID: "att-1"}})
		}
	}()
	select {
	case <-observed:
	case <-time.After(time.Second):
		t.Fatalf("Observe blocked on an unacked subscriber")
	}

	cancel()
	closed := make(chan error, 1)
	go func() { closed <- pub.Close() }()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(2 * drainTimeout):
		t.Fatalf("Close did not return")
	}

	pub.Observe(app.Event{Type: app.EventCompleted, State: app.State{QuizID: "quiz-1"}})
	assert.NoError(t, pub.Close())
}

func TestAuditLogIgnoresOtherEvents(t *testing.T) {
	handle := AuditLog(discardLogger())
	handle(AttemptEvent{Type: app.EventStarted})
	handle(AttemptEvent{Type: app.EventCompleted})
	handle(AttemptEvent{Type: app.EventCompleted, Verdict: &domain.Verdict{Passed: true}})
}

func waitEvent(t *testing.T, ch <-chan AttemptEvent) AttemptEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("no event received")
		return AttemptEvent{}
	}
}
