package app

import (
	"context"
	"log"
	"math/rand"
	"time"

	"brandquiz-service/internal/domain"
	"github.com/google/uuid"
)

// ProgressStore persists per-client, per-category play history: completed
// levels and previously-missed question ids. Backends are last-writer-wins;
// concurrent sessions for the same client can race, accepted for this
// traffic pattern.
type ProgressStore interface {
	// WrongQuestionIDs returns the missed ids for a category. The level
	// argument is part of the contract but the store is keyed by category
	// only: traps are sourced from misses anywhere in the category.
	WrongQuestionIDs(ctx context.Context, clientID, category string, level int) ([]string, error)
	// SaveWrongAnswers merges ids into the category's wrong set and touches
	// the last-attempt timestamp.
	SaveWrongAnswers(ctx context.Context, clientID, category string, level int, ids []string) error
	// MarkLevelCompleted adds the level to the completed set. Idempotent.
	MarkLevelCompleted(ctx context.Context, clientID, category string, level int) error
	// RemoveWrongQuestion redeems a previously-missed id after its trap
	// variant was answered correctly.
	RemoveWrongQuestion(ctx context.Context, clientID, category, questionID string) error
	IsLevelCompleted(ctx context.Context, clientID, category string, level int) (bool, error)
}

// AttemptLedger is the remote record of "this email has played this quiz".
type AttemptLedger interface {
	EmailUsed(ctx context.Context, email, quizID string) (bool, error)
	InsertAttempt(ctx context.Context, attempt domain.Attempt) error
	UpdateScore(ctx context.Context, email, quizID string, score int) error
}

// IdentityStore keeps the per-category remembered email and the client's
// consent choice.
type IdentityStore interface {
	RememberedEmail(ctx context.Context, clientID, category string) (string, error)
	PersistEmail(ctx context.Context, clientID, category, email string) error
	Consent(ctx context.Context, clientID string) (domain.Consent, error)
	SetConsent(ctx context.Context, clientID string, status domain.ConsentStatus) error
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, category string) (domain.QuizDefinition, error)
}

// SessionRepository tracks live sessions by id.
type SessionRepository interface {
	Put(id string, s *Session)
	Get(id string) (*Session, bool)
	Delete(id string)
}

// LedgerOutcome is the typed result of a best-effort ledger write. Gameplay
// never blocks on the ledger; the outcome makes the fire-and-forget policy
// visible and testable.
type LedgerOutcome string

const (
	LedgerSaved          LedgerOutcome = "saved"
	LedgerSkippedConsent LedgerOutcome = "skipped"
	LedgerFailed         LedgerOutcome = "failed"
)

// SessionConfig parametrizes the generic session machine per quiz variant.
type SessionConfig struct {
	// QuestionSeconds is the per-question countdown; zero disables the timer.
	QuestionSeconds int
	// ReadingSeconds enables a timed memorization phase before the question
	// loop when non-zero.
	ReadingSeconds int
	// TrapLimit caps injected trap questions per run.
	TrapLimit int
	// AutoAdvance, when non-zero, advances past the answered phase after a
	// fixed display delay instead of an explicit continue.
	AutoAdvance time.Duration
	// EnforceSinglePlay blocks emails that already played this quiz.
	EnforceSinglePlay bool
	// DefaultLocale is the fallback for text resolution.
	DefaultLocale string
	// TickInterval is the real duration of one countdown second. Shortened
	// in tests; normalized to one second when zero.
	TickInterval time.Duration
}

func (c SessionConfig) normalized() SessionConfig {
	if c.TrapLimit == 0 {
		c.TrapLimit = 2
	}
	if c.DefaultLocale == "" {
		c.DefaultLocale = "fr"
	}
	if c.TickInterval == 0 {
		c.TickInterval = time.Second
	}
	return c
}

// QuizService contains the quiz use cases shared by every variant.
type QuizService struct {
	quizzes  QuizRepository
	progress ProgressStore
	ledger   AttemptLedger
	identity IdentityStore
	sessions SessionRepository
	cfg      SessionConfig
	now      func() time.Time
	newRand  func() *rand.Rand
}

func NewQuizService(quizzes QuizRepository, progress ProgressStore, ledger AttemptLedger, identity IdentityStore, sessions SessionRepository, cfg SessionConfig) *QuizService {
	return &QuizService{
		quizzes:  quizzes,
		progress: progress,
		ledger:   ledger,
		identity: identity,
		sessions: sessions,
		cfg:      cfg.normalized(),
		now:      time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *QuizService) WithClock(now func() time.Time) *QuizService {
	s.now = now
	return s
}

// WithRand is test-only for deterministic shuffles.
func (s *QuizService) WithRand(newRand func() *rand.Rand) *QuizService {
	s.newRand = newRand
	return s
}

// NewClientID issues an opaque id for first-time visitors; the client stores
// it and presents it on later visits.
func (s *QuizService) NewClientID() string {
	return uuid.NewString()
}

// Open creates a session for one playable level. The initial phase depends
// on stored state: a valid remembered email skips identity capture.
func (s *QuizService) Open(ctx context.Context, clientID, category string, level int, locale string) (*Session, error) {
	def, err := s.quizzes.GetQuiz(ctx, category)
	if err != nil {
		return nil, err
	}
	lvl, ok := def.Level(level)
	if !ok {
		return nil, domain.ErrLevelNotFound
	}
	// Authored content is not validated on write; a level with no questions
	// must fail here rather than crash the question loop.
	if len(lvl.Questions) == 0 {
		return nil, domain.ErrLevelNotFound
	}

	// Progress read failures never block gameplay; the run simply starts
	// without trap injection.
	wrongIDs, err := s.progress.WrongQuestionIDs(ctx, clientID, category, level)
	if err != nil {
		log.Printf("progress read failed for %s/%s: %v", clientID, category, err)
		wrongIDs = nil
	}

	email := ""
	if stored, err := s.identity.RememberedEmail(ctx, clientID, category); err == nil && domain.ValidEmail(stored) {
		email = domain.NormalizeEmail(stored)
	}

	sess := newSession(uuid.NewString(), s, def, lvl, clientID, locale, email, wrongIDs)
	s.sessions.Put(sess.ID, sess)
	return sess, nil
}

// Session returns a live session by id.
func (s *QuizService) Session(id string) (*Session, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// Close stops a session's timer and forgets it.
func (s *QuizService) Close(sess *Session) {
	sess.shutdown()
	s.sessions.Delete(sess.ID)
}

// EmailUsed checks the ledger for a prior attempt. Permissive on transport
// errors: a broken backend must not lock users out of the quiz.
func (s *QuizService) EmailUsed(ctx context.Context, email, quizID string) bool {
	used, err := s.ledger.EmailUsed(ctx, domain.NormalizeEmail(email), quizID)
	if err != nil {
		log.Printf("ledger lookup failed for %s: %v", quizID, err)
		return false
	}
	return used
}

// SetConsent records the client's choice with the standard expiry.
func (s *QuizService) SetConsent(ctx context.Context, clientID string, status domain.ConsentStatus) error {
	return s.identity.SetConsent(ctx, clientID, status)
}

// recordAttempt inserts a new attempt row, gated by consent. Failures are
// logged and reported as an outcome, never as an error to the caller.
func (s *QuizService) recordAttempt(ctx context.Context, clientID, email, quizID string) LedgerOutcome {
	if !s.consentAccepted(ctx, clientID) {
		return LedgerSkippedConsent
	}
	attempt := domain.Attempt{
		Email:     domain.NormalizeEmail(email),
		QuizID:    quizID,
		CreatedAt: s.now(),
	}
	if err := s.ledger.InsertAttempt(ctx, attempt); err != nil {
		log.Printf("attempt save failed for %s: %v", quizID, err)
		return LedgerFailed
	}
	return LedgerSaved
}

// recordScore updates the attempt's score, gated by consent.
func (s *QuizService) recordScore(ctx context.Context, clientID, email, quizID string, score int) LedgerOutcome {
	if !s.consentAccepted(ctx, clientID) {
		return LedgerSkippedConsent
	}
	if err := s.ledger.UpdateScore(ctx, domain.NormalizeEmail(email), quizID, score); err != nil {
		log.Printf("score update failed for %s: %v", quizID, err)
		return LedgerFailed
	}
	return LedgerSaved
}

func (s *QuizService) consentAccepted(ctx context.Context, clientID string) bool {
	consent, err := s.identity.Consent(ctx, clientID)
	if err != nil {
		log.Printf("consent read failed for %s: %v", clientID, err)
		return false
	}
	return consent.Effective(s.now()) == domain.ConsentAccepted
}
