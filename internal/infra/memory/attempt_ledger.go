package memory

import (
	"context"
	"sync"

	"brandquiz-service/internal/domain"
)

// AttemptLedger is an in-memory implementation of app.AttemptLedger. Inserts
// are first-write-wins per (email, quiz), mirroring the unique index of the
// Postgres backend.
type AttemptLedger struct {
	mu       sync.Mutex
	attempts map[attemptKey]domain.Attempt
}

type attemptKey struct {
	email  string
	quizID string
}

func NewAttemptLedger() *AttemptLedger {
	return &AttemptLedger{attempts: make(map[attemptKey]domain.Attempt)}
}

func (l *AttemptLedger) EmailUsed(_ context.Context, email, quizID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.attempts[attemptKey{domain.NormalizeEmail(email), quizID}]
	return ok, nil
}

func (l *AttemptLedger) InsertAttempt(_ context.Context, attempt domain.Attempt) error {
	if attempt.Score != nil && (*attempt.Score < 0 || *attempt.Score > 100) {
		return domain.ErrInvalidScore
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := attemptKey{domain.NormalizeEmail(attempt.Email), attempt.QuizID}
	if _, ok := l.attempts[key]; ok {
		return nil
	}
	attempt.Email = key.email
	l.attempts[key] = attempt
	return nil
}

func (l *AttemptLedger) UpdateScore(_ context.Context, email, quizID string, score int) error {
	if score < 0 || score > 100 {
		return domain.ErrInvalidScore
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := attemptKey{domain.NormalizeEmail(email), quizID}
	attempt, ok := l.attempts[key]
	if !ok {
		return nil
	}
	attempt.Score = &score
	l.attempts[key] = attempt
	return nil
}

// Attempt returns the stored row, for tests.
func (l *AttemptLedger) Attempt(email, quizID string) (domain.Attempt, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	attempt, ok := l.attempts[attemptKey{domain.NormalizeEmail(email), quizID}]
	return attempt, ok
}
