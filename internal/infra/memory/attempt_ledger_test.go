package memory

import (
	"context"
	"testing"
	"time"

	"brandquiz-service/internal/domain"
)

func TestAttemptLedgerInsertAndLookup(t *testing.T) {
	ctx := context.Background()
	ledger := NewAttemptLedger()

	used, err := ledger.EmailUsed(ctx, "a@b.com", "sardines-1")
	if err != nil || used {
		t.Fatalf("expected unused email, got %v %v", used, err)
	}

	if err := ledger.InsertAttempt(ctx, domain.Attempt{Email: " A@B.com ", QuizID: "sardines-1", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	used, err = ledger.EmailUsed(ctx, "a@b.com", "sardines-1")
	if err != nil || !used {
		t.Fatalf("expected normalized email found, got %v %v", used, err)
	}
	if used, _ := ledger.EmailUsed(ctx, "a@b.com", "sardines-2"); used {
		t.Fatalf("expected lookup scoped to quiz id")
	}
}

func TestAttemptLedgerDuplicateInsertIsNoop(t *testing.T) {
	ctx := context.Background()
	ledger := NewAttemptLedger()
	first := 10

	if err := ledger.InsertAttempt(ctx, domain.Attempt{Email: "a@b.com", QuizID: "sardines-1", Score: &first}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := ledger.InsertAttempt(ctx, domain.Attempt{Email: "a@b.com", QuizID: "sardines-1"}); err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}

	attempt, ok := ledger.Attempt("a@b.com", "sardines-1")
	if !ok || attempt.Score == nil || *attempt.Score != 10 {
		t.Fatalf("expected first row kept, got %+v", attempt)
	}
}

func TestAttemptLedgerScoreValidation(t *testing.T) {
	ctx := context.Background()
	ledger := NewAttemptLedger()

	if err := ledger.InsertAttempt(ctx, domain.Attempt{Email: "a@b.com", QuizID: "sardines-1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := ledger.UpdateScore(ctx, "a@b.com", "sardines-1", 101); err != domain.ErrInvalidScore {
		t.Fatalf("expected invalid score, got %v", err)
	}
	if err := ledger.UpdateScore(ctx, "a@b.com", "sardines-1", 75); err != nil {
		t.Fatalf("update: %v", err)
	}

	attempt, _ := ledger.Attempt("a@b.com", "sardines-1")
	if attempt.Score == nil || *attempt.Score != 75 {
		t.Fatalf("expected score 75, got %+v", attempt)
	}
}
