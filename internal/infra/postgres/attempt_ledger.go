package postgres

import (
	"context"
	"fmt"

	"brandquiz-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AttemptLedger is the Postgres-backed record of plays per (email, quiz).
// The unique index on (email, quiz_id) makes the at-most-one-row invariant
// hard instead of best-effort: a racing duplicate insert becomes a no-op.
type AttemptLedger struct {
	pool *pgxpool.Pool
}

func NewAttemptLedger(pool *pgxpool.Pool) *AttemptLedger {
	return &AttemptLedger{pool: pool}
}

func (l *AttemptLedger) EmailUsed(ctx context.Context, email, quizID string) (bool, error) {
	var exists bool
	err := l.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM attempts WHERE email=$1 AND quiz_id=$2)`,
		domain.NormalizeEmail(email), quizID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attempt: %w", err)
	}
	return exists, nil
}

func (l *AttemptLedger) InsertAttempt(ctx context.Context, attempt domain.Attempt) error {
	if attempt.Score != nil && (*attempt.Score < 0 || *attempt.Score > 100) {
		return domain.ErrInvalidScore
	}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO attempts (email, quiz_id, score, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (email, quiz_id) DO NOTHING`,
		domain.NormalizeEmail(attempt.Email), attempt.QuizID, attempt.Score, attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (l *AttemptLedger) UpdateScore(ctx context.Context, email, quizID string, score int) error {
	if score < 0 || score > 100 {
		return domain.ErrInvalidScore
	}
	_, err := l.pool.Exec(ctx,
		`UPDATE attempts SET score=$3 WHERE email=$1 AND quiz_id=$2`,
		domain.NormalizeEmail(email), quizID, score,
	)
	if err != nil {
		return fmt.Errorf("update score: %w", err)
	}
	return nil
}
