package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quiz-attempt-service/internal/authority"
	"quiz-attempt-service/internal/codec"
	"quiz-attempt-service/internal/domain"
)

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts"`

	ID          string                `bun:"id,pk"`
	QuizID      string                `bun:"quiz_id,notnull"`
	Questions   []domain.Question     `bun:"questions,type:jsonb,notnull"`
	StartedAt   time.Time             `bun:"started_at,notnull"`
	SubmittedAt bun.NullTime          `bun:"submitted_at"`
	Answers     []codec.Record        `bun:"answers,type:jsonb"`
	Verdict     *codec.VerdictPayload `bun:"verdict,type:jsonb"`
}

// AttemptRepository stores authority attempts in the attempts table.
type AttemptRepository struct {
	db *bun.DB
}

func NewAttemptRepository(db *bun.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Create takes a transaction-scoped advisory lock on the quiz so that the
// limit holds across every instance sharing the database.
func (r *AttemptRepository) Create(ctx context.Context, rec authority.AttemptRecord, limit int) error {
	row := toRow(rec)
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if limit > 0 {
			if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", rec.QuizID); err != nil {
				return fmt.Errorf("lock quiz attempts: %w", err)
			}
			count, err := tx.NewSelect().Model((*attemptRow)(nil)).Where("quiz_id = ?", rec.QuizID).Count(ctx)
			if err != nil {
				return fmt.Errorf("count attempts: %w", err)
			}
			if count >= limit {
				return domain.ErrAttemptLimitExceeded
			}
		}
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		return nil
	})
}

func (r *AttemptRepository) CountForQuiz(ctx context.Context, quizID string) (int, error) {
	count, err := r.db.NewSelect().Model((*attemptRow)(nil)).Where("quiz_id = ?", quizID).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return count, nil
}

func (r *AttemptRepository) Get(ctx context.Context, attemptID string) (authority.AttemptRecord, error) {
	var row attemptRow
	err := r.db.NewSelect().Model(&row).Where("id = ?", attemptID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return authority.AttemptRecord{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return authority.AttemptRecord{}, fmt.Errorf("select attempt: %w", err)
	}
	return fromRow(row), nil
}

func (r *AttemptRepository) MarkSubmitted(ctx context.Context, rec authority.AttemptRecord) error {
	row := toRow(rec)
	res, err := r.db.NewUpdate().
		Model(&row).
		Column("submitted_at", "answers", "verdict").
		Where("id = ?", rec.ID).
		Where("submitted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return nil
	}
	if _, err := r.Get(ctx, rec.ID); err != nil {
		return err
	}
	return domain.ErrAttemptAlreadySubmitted
}

func toRow(rec authority.AttemptRecord) attemptRow {
	row := attemptRow{
		ID:        rec.ID,
		QuizID:    rec.QuizID,
		Questions: rec.Questions,
		StartedAt: rec.StartedAt,
		Answers:   rec.Answers,
		Verdict:   rec.Verdict,
	}
	if !rec.SubmittedAt.IsZero() {
		row.SubmittedAt = bun.NullTime{Time: rec.SubmittedAt}
	}
	return row
}

func fromRow(row attemptRow) authority.AttemptRecord {
	return authority.AttemptRecord{
		ID:          row.ID,
		QuizID:      row.QuizID,
		Questions:   row.Questions,
		StartedAt:   row.StartedAt,
		SubmittedAt: row.SubmittedAt.Time,
		Answers:     row.Answers,
		Verdict:     row.Verdict,
	}
}
