// Package events publishes attempt lifecycle events through watermill.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// DefaultTopic is the topic attempt events are published to.
const DefaultTopic = "quiz.attempts"

// AttemptEvent is the published form of an app.Event.
type AttemptEvent struct {
	ID         string          `json:"id"`
	Type       app.EventType   `json:"type"`
	QuizID     string          `json:"quiz_id"`
	AttemptID  string          `json:"attempt_id,omitempty"`
	Status     app.Status      `json:"status"`
	Answered   int             `json:"answered"`
	Total      int             `json:"total"`
	Remaining  int             `json:"remaining_seconds"`
	Expired    bool            `json:"expired"`
	Verdict    *domain.Verdict `json:"verdict,omitempty"`
	Error      string          `json:"error,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

const (
	queueSize    = 256
	drainTimeout = 5 * time.Second
)

// Publisher forwards machine events to a watermill topic. Ticks are skipped.
// Observe only enqueues; a background worker publishes, so a slow subscriber
// never stalls the machine. Events are dropped when the queue is full.
type Publisher struct {
	publisher message.Publisher
	topic     string
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan AttemptEvent
	done   chan struct{}
	once   sync.Once
}

func NewPublisher(publisher message.Publisher, topic string, logger *slog.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		publisher: publisher,
		topic:     topic,
		logger:    logger.With("component", "events"),
		queue:     make(chan AttemptEvent, queueSize),
		done:      make(chan struct{}),
	}
	go p.run()
	return p
}

// NewGoChannel creates the in-process pub/sub used when no broker is configured.
func NewGoChannel(logger *slog.Logger) *gochannel.GoChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64, BlockPublishUntilSubscriberAck: true}, watermill.NewSlogLogger(logger))
}

// Observe implements app.Observer.
func (p *Publisher) Observe(ev app.Event) {
	if ev.Type == app.EventTick {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- fromEvent(ev):
	default:
		p.logger.Warn("attempt event dropped, queue full", "event_type", ev.Type, "attempt_id", ev.State.AttemptID)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.queue {
		if err := p.Publish(event); err != nil {
			p.logger.Error("failed to publish attempt event", "event_type", event.Type, "attempt_id", event.AttemptID, "error", err)
		}
	}
}

// Publish sends one event.
func (p *Publisher) Publish(event AttemptEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal attempt event: %w", err)
	}
	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("quiz_id", event.QuizID)
	msg.Metadata.Set("timestamp", event.OccurredAt.Format(time.RFC3339))

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("publish attempt event: %w", err)
	}
	p.logger.Debug("published attempt event", "event_id", event.ID, "event_type", event.Type, "topic", p.topic)
	return nil
}

// Close stops accepting events, waits a bounded time for queued ones to be
// published and closes the underlying publisher.
func (p *Publisher) Close() error {
	var err error
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		select {
		case <-p.done:
		case <-time.After(drainTimeout):
			p.logger.Warn("closing with undelivered attempt events", "pending", len(p.queue))
		}
		err = p.publisher.Close()
	})
	return err
}

func fromEvent(ev app.Event) AttemptEvent {
	out := AttemptEvent{
		ID:         watermill.NewUUID(),
		Type:       ev.Type,
		QuizID:     ev.State.QuizID,
		AttemptID:  ev.State.AttemptID,
		Status:     ev.State.Status,
		Answered:   len(ev.State.Progress.Answered),
		Total:      ev.State.Progress.Total,
		Remaining:  ev.State.RemainingSeconds,
		Expired:    ev.State.Expired,
		Verdict:    ev.State.Verdict,
		OccurredAt: ev.At,
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	return out
}
