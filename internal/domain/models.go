package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// LocalizedText maps a locale code ("fr", "en") to rendered text.
type LocalizedText map[string]string

// Resolve returns the text for locale, falling back to fallback, then to
// any available translation.
func (t LocalizedText) Resolve(locale, fallback string) string {
	if s, ok := t[locale]; ok {
		return s
	}
	if s, ok := t[fallback]; ok {
		return s
	}
	for _, s := range t {
		return s
	}
	return ""
}

// LocalizedOptions maps a locale code to an ordered option list. Option order
// is significant: CorrectIndex refers to it.
type LocalizedOptions map[string][]string

// Resolve returns the option list for locale with the same fallback rules as
// LocalizedText.
func (o LocalizedOptions) Resolve(locale, fallback string) []string {
	if opts, ok := o[locale]; ok {
		return opts
	}
	if opts, ok := o[fallback]; ok {
		return opts
	}
	for _, opts := range o {
		return opts
	}
	return nil
}

// Question is an author-supplied MCQ. Trap, when present, is an alternate
// harder phrasing of the same concept, re-asked after the user missed the
// original.
type Question struct {
	ID           string           `json:"id"`
	Prompt       LocalizedText    `json:"prompt"`
	Options      LocalizedOptions `json:"options"`
	CorrectIndex int              `json:"correctIndex"`
	Explanation  LocalizedText    `json:"explanation,omitempty"`
	Source       LocalizedText    `json:"source,omitempty"`
	Trap         *Question        `json:"trap,omitempty"`
}

// Level is a fixed-size question set within a category.
type Level struct {
	Number        int        `json:"number"`
	QuestionCount int        `json:"questionCount"`
	Questions     []Question `json:"questions"`
}

// QuizDefinition is the static content for one topic category. Loaded
// wholesale, never mutated at runtime.
type QuizDefinition struct {
	Category string  `json:"category"`
	Levels   []Level `json:"levels"`
}

// Level returns the level with the given number.
func (d QuizDefinition) Level(number int) (Level, bool) {
	for _, l := range d.Levels {
		if l.Number == number {
			return l, true
		}
	}
	return Level{}, false
}

// FindQuestion locates a question by id anywhere in the definition.
func (d QuizDefinition) FindQuestion(id string) (Question, bool) {
	for _, l := range d.Levels {
		for _, q := range l.Questions {
			if q.ID == id {
				return q, true
			}
		}
	}
	return Question{}, false
}

// QuizID is the ledger identifier for one playable level, e.g. "sardines-1".
func QuizID(category string, level int) string {
	return fmt.Sprintf("%s-%d", category, level)
}

// WrongAnswer captures a miss with all display text resolved in the locale
// active at the time of the error, so the results review is stable.
type WrongAnswer struct {
	QuestionID    string  `json:"questionId"`
	Prompt        string  `json:"prompt"`
	UserAnswer    *string `json:"userAnswer"` // nil when the timer expired
	CorrectAnswer string  `json:"correctAnswer"`
	Explanation   string  `json:"explanation,omitempty"`
	Trap          bool    `json:"trap"`
}

// Attempt is one recorded play of a quiz by an email address.
type Attempt struct {
	Email     string    `json:"email"`
	QuizID    string    `json:"quizId"`
	Score     *int      `json:"score,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Progress is the per-category record of completed levels and missed
// question ids. The wrong-id set is deliberately not partitioned by level:
// trap questions are sourced from misses anywhere in the category.
type Progress struct {
	CompletedLevels  []int     `json:"completedLevels"`
	WrongQuestionIDs []string  `json:"wrongQuestionIds"`
	LastAttempt      time.Time `json:"lastAttemptDate"`
}

// ConsentStatus is the user's data-processing choice.
type ConsentStatus string

const (
	ConsentPending  ConsentStatus = "pending"
	ConsentAccepted ConsentStatus = "accepted"
	ConsentRefused  ConsentStatus = "refused"
)

// ConsentTTL is how long an accepted/refused choice stays valid.
const ConsentTTL = 30 * 24 * time.Hour

// Consent is the persisted choice plus its expiry.
type Consent struct {
	Status    ConsentStatus `json:"status"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// Effective returns the status as of now: an expired choice reverts to
// pending.
func (c Consent) Effective(now time.Time) ConsentStatus {
	if c.Status == "" {
		return ConsentPending
	}
	if !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt) {
		return ConsentPending
	}
	return c.Status
}

// Phase enumerates the session state machine states.
type Phase string

const (
	PhaseIdentity   Phase = "identity"
	PhaseReading    Phase = "reading"
	PhasePresenting Phase = "presenting"
	PhaseAnswered   Phase = "answered"
	PhaseResults    Phase = "results"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like an email address. Display-side
// check only; the ledger backend re-validates independently.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// NormalizeEmail lowercases and trims an address before any lookup or write.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
