package app

import (
	"context"

	"quiz-attempt-service/internal/codec"
	"quiz-attempt-service/internal/domain"
)

// Backend is the external scoring authority an attempt talks to. It owns
// persistence and canonical grading.
type Backend interface {
	Overview(ctx context.Context, quizID string) (domain.Overview, error)
	CreateAttempt(ctx context.Context, quizID string) (domain.AttemptTicket, error)
	SubmitAttempt(ctx context.Context, req codec.SubmitRequest) (codec.VerdictPayload, error)
	ReplayAttempt(ctx context.Context, attemptID string) (codec.ReplayPayload, error)
}
