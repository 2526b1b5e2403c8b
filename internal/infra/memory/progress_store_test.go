package memory

import (
	"context"
	"testing"
	"time"
)

func TestProgressLevelCompletionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()

	done, err := store.IsLevelCompleted(ctx, "c1", "plants", 1)
	if err != nil || done {
		t.Fatalf("expected fresh level incomplete, got %v %v", done, err)
	}

	if err := store.MarkLevelCompleted(ctx, "c1", "plants", 1); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	done, err = store.IsLevelCompleted(ctx, "c1", "plants", 1)
	if err != nil || !done {
		t.Fatalf("expected level completed, got %v %v", done, err)
	}

	// Idempotent: marking twice yields the same completed set.
	if err := store.MarkLevelCompleted(ctx, "c1", "plants", 1); err != nil {
		t.Fatalf("mark completed again: %v", err)
	}
	if levels := store.Progress("c1", "plants").CompletedLevels; len(levels) != 1 {
		t.Fatalf("expected one completed level, got %v", levels)
	}
}

func TestProgressWrongAnswersRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()

	if err := store.SaveWrongAnswers(ctx, "c1", "plants", 1, []string{"a", "b"}); err != nil {
		t.Fatalf("save wrong: %v", err)
	}
	if err := store.SaveWrongAnswers(ctx, "c1", "plants", 2, []string{"b", "c"}); err != nil {
		t.Fatalf("save wrong: %v", err)
	}

	ids, err := store.WrongQuestionIDs(ctx, "c1", "plants", 2)
	if err != nil {
		t.Fatalf("get wrong: %v", err)
	}
	want := map[string]bool{"a": true, "b": true, "c": true}
	if len(ids) != len(want) {
		t.Fatalf("expected union of saves, got %v", ids)
	}
	for _, id := range ids {
		if !want[id] {
			t.Fatalf("unexpected id %s in %v", id, ids)
		}
	}
}

func TestProgressRemoveWrongQuestion(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()

	if err := store.SaveWrongAnswers(ctx, "c1", "plants", 1, []string{"q7", "q8"}); err != nil {
		t.Fatalf("save wrong: %v", err)
	}
	if err := store.RemoveWrongQuestion(ctx, "c1", "plants", "q7"); err != nil {
		t.Fatalf("remove wrong: %v", err)
	}

	ids, _ := store.WrongQuestionIDs(ctx, "c1", "plants", 1)
	if len(ids) != 1 || ids[0] != "q8" {
		t.Fatalf("expected q7 removed, got %v", ids)
	}
}

func TestProgressTouchesLastAttempt(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewProgressStoreWithClock(func() time.Time { return now })

	if err := store.SaveWrongAnswers(ctx, "c1", "plants", 1, []string{"a"}); err != nil {
		t.Fatalf("save wrong: %v", err)
	}
	if got := store.Progress("c1", "plants").LastAttempt; !got.Equal(now) {
		t.Fatalf("expected last attempt %v, got %v", now, got)
	}
}

func TestProgressIsolatedPerClientAndCategory(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()

	if err := store.MarkLevelCompleted(ctx, "c1", "plants", 1); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if done, _ := store.IsLevelCompleted(ctx, "c2", "plants", 1); done {
		t.Fatalf("expected other client unaffected")
	}
	if done, _ := store.IsLevelCompleted(ctx, "c1", "micronutrition", 1); done {
		t.Fatalf("expected other category unaffected")
	}
}
