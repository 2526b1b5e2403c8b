package app

import (
	"context"
	"log"
	"math/rand"
	"sync"

	"brandquiz-service/internal/domain"
)

// EventType tags the session events pushed to subscribers.
type EventType string

const (
	EventPhase    EventType = "phase"
	EventQuestion EventType = "question"
	EventTick     EventType = "tick"
	EventAnswered EventType = "answered"
	EventResults  EventType = "results"
)

// QuestionView is a question rendered for display: text resolved in the
// session locale, correct index withheld.
type QuestionView struct {
	Index      int      `json:"index"`
	Total      int      `json:"total"`
	QuestionID string   `json:"questionId"`
	Prompt     string   `json:"prompt"`
	Options    []string `json:"options"`
	Seconds    int      `json:"seconds"`
	Trap       bool     `json:"trap"`
}

// AnswerOutcome reports how one question resolved.
type AnswerOutcome struct {
	QuestionID    string `json:"questionId"`
	Correct       bool   `json:"correct"`
	Selected      *int   `json:"selected"`
	CorrectIndex  int    `json:"correctIndex"`
	CorrectAnswer string `json:"correctAnswer"`
	Explanation   string `json:"explanation,omitempty"`
	TimedOut      bool   `json:"timedOut"`
}

// ResultsView is the end-of-run report.
type ResultsView struct {
	Score        int                  `json:"score"`
	Total        int                  `json:"total"`
	Perfect      bool                 `json:"perfect"`
	WrongAnswers []domain.WrongAnswer `json:"wrongAnswers"`
	Ledger       LedgerOutcome        `json:"ledger"`
}

// Event is one session update delivered to subscribers.
type Event struct {
	Type      EventType     `json:"type"`
	Phase     domain.Phase  `json:"phase,omitempty"`
	Remaining int           `json:"remaining,omitempty"`
	Question  *QuestionView `json:"question,omitempty"`
	Outcome   *AnswerOutcome `json:"outcome,omitempty"`
	Results   *ResultsView  `json:"results,omitempty"`
}

// Session is one run of one quiz level by one client. All mutation happens
// under mu; the countdown goroutine re-enters through generation-guarded
// handlers so a cancelled timer can never retroactively fire a timeout.
type Session struct {
	ID string

	svc      *QuizService
	def      domain.QuizDefinition
	level    domain.Level
	clientID string
	category string
	locale   string
	cfg      SessionConfig

	mu          sync.Mutex
	phase       domain.Phase
	began       bool
	closed      bool
	email       string
	questions   []pickedQuestion
	index       int
	selected    *int
	score       int
	wrong       []domain.WrongAnswer
	missedIDs   []string
	timer       *countdown
	timerGen    int
	rnd         *rand.Rand
	subscribers map[chan Event]struct{}
}

func newSession(id string, svc *QuizService, def domain.QuizDefinition, level domain.Level, clientID, locale, email string, wrongIDs []string) *Session {
	rnd := svc.newRand()
	s := &Session{
		ID:          id,
		svc:         svc,
		def:         def,
		level:       level,
		clientID:    clientID,
		category:    def.Category,
		locale:      locale,
		cfg:         svc.cfg,
		email:       email,
		questions:   buildQuestionSet(def, level, wrongIDs, svc.cfg.TrapLimit, rnd),
		rnd:         rnd,
		subscribers: make(map[chan Event]struct{}),
	}
	if email == "" {
		s.phase = domain.PhaseIdentity
	} else if s.cfg.ReadingSeconds > 0 {
		s.phase = domain.PhaseReading
	} else {
		s.phase = domain.PhasePresenting
	}
	return s
}

// Subscribe returns a channel of session events. The caller must invoke the
// returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Begin publishes the initial phase and starts the first timer. Call after
// Subscribe so no event is lost.
func (s *Session) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.began || s.closed {
		return
	}
	s.began = true
	switch s.phase {
	case domain.PhaseIdentity:
		s.publishLocked(Event{Type: EventPhase, Phase: s.phase})
	case domain.PhaseReading:
		s.enterReadingLocked()
	default:
		s.presentLocked()
	}
}

// Phase returns the current phase.
func (s *Session) Phase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Score returns the running correct-answer count.
func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// WrongAnswers returns a copy of the wrong-answer report so far.
func (s *Session) WrongAnswers() []domain.WrongAnswer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.WrongAnswer, len(s.wrong))
	copy(out, s.wrong)
	return out
}

// SubmitEmail validates and persists the identity, checks the ledger for a
// prior play, and advances out of the identity phase. The session stays in
// identity capture when the email is invalid or already used.
func (s *Session) SubmitEmail(ctx context.Context, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseIdentity {
		return domain.ErrWrongPhase
	}
	if !domain.ValidEmail(raw) {
		return domain.ErrInvalidEmail
	}
	email := domain.NormalizeEmail(raw)
	quizID := domain.QuizID(s.category, s.level.Number)

	if s.cfg.EnforceSinglePlay && s.svc.EmailUsed(ctx, email, quizID) {
		return domain.ErrEmailAlreadyUsed
	}

	if err := s.svc.identity.PersistEmail(ctx, s.clientID, s.category, email); err != nil {
		log.Printf("email persist failed for %s/%s: %v", s.clientID, s.category, err)
	}
	s.email = email
	s.svc.recordAttempt(ctx, s.clientID, email, quizID)

	if s.cfg.ReadingSeconds > 0 {
		s.enterReadingLocked()
	} else {
		s.presentLocked()
	}
	return nil
}

// Answer records an explicit option selection for the current question.
// Exactly one of Answer or the timeout may resolve a question; the timer is
// cancelled before scoring so a scheduled timeout becomes a no-op.
func (s *Session) Answer(ctx context.Context, option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhasePresenting {
		return domain.ErrWrongPhase
	}
	q := s.questions[s.index]
	options := q.Options.Resolve(s.locale, s.cfg.DefaultLocale)
	if option < 0 || option >= len(options) {
		return domain.ErrOptionOutOfRange
	}
	s.stopTimerLocked()
	s.selected = &option

	correct := option == q.CorrectIndex
	if correct {
		s.score++
		if q.trap {
			if err := s.svc.progress.RemoveWrongQuestion(ctx, s.clientID, s.category, q.sourceID); err != nil {
				log.Printf("wrong-id redeem failed for %s/%s: %v", s.clientID, s.category, err)
			}
		}
	} else {
		s.recordMissLocked(&option)
	}

	s.phase = domain.PhaseAnswered
	s.publishLocked(Event{Type: EventAnswered, Phase: s.phase, Outcome: s.outcomeLocked(q, &option, false)})
	s.scheduleAutoAdvanceLocked()
	return nil
}

// Continue moves the session forward: reading → question loop, or answered →
// next question or results.
func (s *Session) Continue(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.phase {
	case domain.PhaseReading:
		s.stopTimerLocked()
		s.presentLocked()
		return nil
	case domain.PhaseAnswered:
		s.advanceLocked(ctx)
		return nil
	default:
		return domain.ErrWrongPhase
	}
}

// Retry regenerates the question set from fresh progress and restarts the
// run with counters reset.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.PhaseResults {
		return domain.ErrWrongPhase
	}
	wrongIDs, err := s.svc.progress.WrongQuestionIDs(ctx, s.clientID, s.category, s.level.Number)
	if err != nil {
		log.Printf("progress read failed for %s/%s: %v", s.clientID, s.category, err)
		wrongIDs = nil
	}
	s.questions = buildQuestionSet(s.def, s.level, wrongIDs, s.cfg.TrapLimit, s.rnd)
	s.index = 0
	s.selected = nil
	s.score = 0
	s.wrong = nil
	s.missedIDs = nil
	if s.cfg.ReadingSeconds > 0 {
		s.enterReadingLocked()
	} else {
		s.presentLocked()
	}
	return nil
}

// shutdown stops the timer and closes all subscriber channels.
func (s *Session) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopTimerLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) enterReadingLocked() {
	s.phase = domain.PhaseReading
	s.publishLocked(Event{Type: EventPhase, Phase: s.phase, Remaining: s.cfg.ReadingSeconds})
	s.startTimerLocked(s.cfg.ReadingSeconds)
}

func (s *Session) presentLocked() {
	s.phase = domain.PhasePresenting
	s.selected = nil
	view := s.questionViewLocked()
	s.publishLocked(Event{Type: EventQuestion, Phase: s.phase, Question: view})
	if s.cfg.QuestionSeconds > 0 {
		s.startTimerLocked(s.cfg.QuestionSeconds)
	}
}

// startTimerLocked replaces the active countdown. The generation counter
// makes callbacks from a superseded timer no-ops.
func (s *Session) startTimerLocked(seconds int) {
	s.stopTimerLocked()
	s.timerGen++
	gen := s.timerGen
	s.timer = startCountdown(seconds, s.cfg.TickInterval,
		func(remaining int) { s.handleTick(gen, remaining) },
		func() { s.handleExpiry(gen) },
	)
}

func (s *Session) stopTimerLocked() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) handleTick(gen, remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.timerGen {
		return
	}
	s.publishLocked(Event{Type: EventTick, Phase: s.phase, Remaining: remaining})
}

// handleExpiry is the forced transition on timer expiry: a reading phase
// rolls into the question loop, a presented question resolves as a synthetic
// no-answer miss.
func (s *Session) handleExpiry(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.timerGen {
		return
	}
	switch s.phase {
	case domain.PhaseReading:
		s.presentLocked()
	case domain.PhasePresenting:
		if s.selected != nil {
			return
		}
		q := s.questions[s.index]
		s.recordMissLocked(nil)
		s.phase = domain.PhaseAnswered
		s.publishLocked(Event{Type: EventAnswered, Phase: s.phase, Outcome: s.outcomeLocked(q, nil, true)})
		s.scheduleAutoAdvanceLocked()
	}
}

func (s *Session) advanceLocked(ctx context.Context) {
	s.index++
	if s.index < len(s.questions) {
		s.presentLocked()
		return
	}
	s.finishLocked(ctx)
}

func (s *Session) scheduleAutoAdvanceLocked() {
	if s.cfg.AutoAdvance <= 0 {
		return
	}
	idx := s.index
	go func() {
		timerSleep(s.cfg.AutoAdvance)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || s.phase != domain.PhaseAnswered || s.index != idx {
			return
		}
		s.advanceLocked(context.Background())
	}()
}

func (s *Session) finishLocked(ctx context.Context) {
	s.phase = domain.PhaseResults
	s.stopTimerLocked()

	total := len(s.questions)
	perfect := total > 0 && s.score == total
	if perfect {
		if err := s.svc.progress.MarkLevelCompleted(ctx, s.clientID, s.category, s.level.Number); err != nil {
			log.Printf("level completion save failed for %s/%s: %v", s.clientID, s.category, err)
		}
	}
	if len(s.missedIDs) > 0 {
		if err := s.svc.progress.SaveWrongAnswers(ctx, s.clientID, s.category, s.level.Number, dedupe(s.missedIDs)); err != nil {
			log.Printf("wrong-answer save failed for %s/%s: %v", s.clientID, s.category, err)
		}
	}

	ledger := LedgerSkippedConsent
	if s.email != "" && total > 0 {
		pct := s.score * 100 / total
		ledger = s.svc.recordScore(ctx, s.clientID, s.email, domain.QuizID(s.category, s.level.Number), pct)
	}

	wrong := make([]domain.WrongAnswer, len(s.wrong))
	copy(wrong, s.wrong)
	s.publishLocked(Event{Type: EventResults, Phase: s.phase, Results: &ResultsView{
		Score:        s.score,
		Total:        total,
		Perfect:      perfect,
		WrongAnswers: wrong,
		Ledger:       ledger,
	}})
}

// recordMissLocked appends a WrongAnswer with display text frozen in the
// active locale, and tracks the id to persist. For traps the originating id
// is tracked, keeping the stored set keyed by original questions.
func (s *Session) recordMissLocked(selected *int) {
	q := s.questions[s.index]
	options := q.Options.Resolve(s.locale, s.cfg.DefaultLocale)
	var userAnswer *string
	if selected != nil && *selected < len(options) {
		text := options[*selected]
		userAnswer = &text
	}
	correctText := ""
	if q.CorrectIndex < len(options) {
		correctText = options[q.CorrectIndex]
	}
	s.wrong = append(s.wrong, domain.WrongAnswer{
		QuestionID:    q.ID,
		Prompt:        q.Prompt.Resolve(s.locale, s.cfg.DefaultLocale),
		UserAnswer:    userAnswer,
		CorrectAnswer: correctText,
		Explanation:   q.Explanation.Resolve(s.locale, s.cfg.DefaultLocale),
		Trap:          q.trap,
	})
	missedID := q.ID
	if q.trap {
		missedID = q.sourceID
	}
	s.missedIDs = append(s.missedIDs, missedID)
}

func (s *Session) questionViewLocked() *QuestionView {
	q := s.questions[s.index]
	return &QuestionView{
		Index:      s.index,
		Total:      len(s.questions),
		QuestionID: q.ID,
		Prompt:     q.Prompt.Resolve(s.locale, s.cfg.DefaultLocale),
		Options:    q.Options.Resolve(s.locale, s.cfg.DefaultLocale),
		Seconds:    s.cfg.QuestionSeconds,
		Trap:       q.trap,
	}
}

func (s *Session) outcomeLocked(q pickedQuestion, selected *int, timedOut bool) *AnswerOutcome {
	options := q.Options.Resolve(s.locale, s.cfg.DefaultLocale)
	correctText := ""
	if q.CorrectIndex < len(options) {
		correctText = options[q.CorrectIndex]
	}
	return &AnswerOutcome{
		QuestionID:    q.ID,
		Correct:       selected != nil && *selected == q.CorrectIndex,
		Selected:      selected,
		CorrectIndex:  q.CorrectIndex,
		CorrectAnswer: correctText,
		Explanation:   q.Explanation.Resolve(s.locale, s.cfg.DefaultLocale),
		TimedOut:      timedOut,
	}
}

// publishLocked fans the event out to subscribers, dropping the oldest
// buffered event for a slow consumer rather than blocking the session.
func (s *Session) publishLocked(ev Event) {
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
