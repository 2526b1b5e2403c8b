package memory

import (
	"context"
	"testing"
	"time"

	"brandquiz-service/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.QuizDefinition{
			"sardines": sampleDefinition(),
		}),
	}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "sardines"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetQuiz(context.Background(), "sardines"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestStaticLoaderUnknownCategory(t *testing.T) {
	loader := NewStaticQuizLoader(map[string]domain.QuizDefinition{})
	if _, err := loader.LoadQuiz(context.Background(), "minerals"); err != domain.ErrQuizNotFound {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

type countingLoader struct {
	QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, category string) (domain.QuizDefinition, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, category)
}

func sampleDefinition() domain.QuizDefinition {
	return domain.QuizDefinition{
		Category: "sardines",
		Levels: []domain.Level{
			{
				Number:        1,
				QuestionCount: 1,
				Questions: []domain.Question{
					{
						ID:           "q1",
						Prompt:       domain.LocalizedText{"fr": "Quelle est la bonne réponse ?"},
						Options:      domain.LocalizedOptions{"fr": {"celle-ci", "pas celle-là"}},
						CorrectIndex: 0,
					},
				},
			},
		},
	}
}
