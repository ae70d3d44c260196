package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"

	"quiz-attempt-service/internal/app"
)

// Consume subscribes to topic and hands every decoded event to handle until
// ctx is done. Undecodable messages are acked and dropped.
func Consume(ctx context.Context, sub message.Subscriber, topic string, logger *slog.Logger, handle func(AttemptEvent)) error {
	if topic == "" {
		topic = DefaultTopic
	}
	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var ev AttemptEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				logger.Warn("dropping malformed attempt event", "message_id", msg.UUID, "error", err)
				msg.Ack()
				continue
			}
			handle(ev)
			msg.Ack()
		}
	}
}

// AuditLog returns a handler that records finished attempts in the log.
func AuditLog(logger *slog.Logger) func(AttemptEvent) {
	logger = logger.With("component", "attempt_audit")
	return func(ev AttemptEvent) {
		switch ev.Type {
		case app.EventCompleted:
			if ev.Verdict == nil {
				return
			}
			logger.Info("attempt finished",
				"quiz_id", ev.QuizID,
				"attempt_id", ev.AttemptID,
				"percentage", ev.Verdict.Percentage,
				"passed", ev.Verdict.Passed,
				"expired", ev.Expired,
			)
		case app.EventSubmissionFailed:
			logger.Warn("attempt submission failed", "quiz_id", ev.QuizID, "attempt_id", ev.AttemptID, "error", ev.Error)
		}
	}
}
