package redis

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestProgressStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewProgressStore(newClient(mr))

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
		t.Fatalf("expected set union across saves, got %v", ids)
	}
	for _, id := range ids {
		if !want[id] {
			t.Fatalf("unexpected id %s", id)
		}
	}

	if err := store.RemoveWrongQuestion(ctx, "c1", "plants", "b"); err != nil {
		t.Fatalf("remove wrong: %v", err)
	}
	ids, _ = store.WrongQuestionIDs(ctx, "c1", "plants", 1)
	if len(ids) != 2 {
		t.Fatalf("expected b removed, got %v", ids)
	}
}

func TestProgressStoreLevelCompletion(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewProgressStore(newClient(mr))

	if done, _ := store.IsLevelCompleted(ctx, "c1", "plants", 3); done {
		t.Fatalf("expected level incomplete")
	}
	if err := store.MarkLevelCompleted(ctx, "c1", "plants", 3); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if err := store.MarkLevelCompleted(ctx, "c1", "plants", 3); err != nil {
		t.Fatalf("mark completed twice: %v", err)
	}
	done, err := store.IsLevelCompleted(ctx, "c1", "plants", 3)
	if err != nil || !done {
		t.Fatalf("expected level completed, got %v %v", done, err)
	}

	members, _ := mr.SMembers("progress:c1:plants:levels")
	if len(members) != 1 {
		t.Fatalf("expected idempotent set add, got %v", members)
	}
	if !mr.Exists("progress:c1:plants:last") {
		t.Fatalf("expected last-attempt timestamp set")
	}
}
