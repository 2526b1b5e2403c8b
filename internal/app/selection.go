package app

import (
	"math/rand"

	"brandquiz-service/internal/domain"
)

// pickedQuestion is a question resolved for one run, tagged with its trap
// provenance. sourceID is the originally-missed question id a trap re-asks;
// answering the trap correctly redeems that id.
type pickedQuestion struct {
	domain.Question
	trap     bool
	sourceID string
}

// buildQuestionSet assembles the question list for a run of the given level.
// For levels beyond the first, previously-missed ids with a trap variant are
// injected first (capped at trapLimit), the remainder is backfilled from the
// level's regular list, and the combined set is shuffled and truncated to the
// level's fixed question count. The result never contains duplicate ids.
func buildQuestionSet(def domain.QuizDefinition, level domain.Level, wrongIDs []string, trapLimit int, rnd *rand.Rand) []pickedQuestion {
	count := level.QuestionCount
	if count <= 0 {
		count = len(level.Questions)
	}
	picked := make([]pickedQuestion, 0, count)
	used := make(map[string]bool)

	if level.Number > 1 && trapLimit > 0 {
		traps := 0
		for _, id := range wrongIDs {
			if traps == trapLimit || len(picked) == count {
				break
			}
			if used[id] {
				continue
			}
			q, ok := def.FindQuestion(id)
			if !ok || q.Trap == nil {
				continue
			}
			picked = append(picked, pickedQuestion{Question: *q.Trap, trap: true, sourceID: id})
			used[id] = true
			used[q.Trap.ID] = true
			traps++
		}
	}

	for _, q := range level.Questions {
		if len(picked) == count {
			break
		}
		if used[q.ID] {
			continue
		}
		picked = append(picked, pickedQuestion{Question: q})
		used[q.ID] = true
	}

	shuffleQuestions(picked, rnd)
	if len(picked) > count {
		picked = picked[:count]
	}
	return picked
}

// shuffleQuestions applies a Fisher-Yates shuffle in place.
func shuffleQuestions(qs []pickedQuestion, rnd *rand.Rand) {
	for i := len(qs) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		qs[i], qs[j] = qs[j], qs[i]
	}
}
