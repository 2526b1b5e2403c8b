package memory

import (
	"context"
	"sync"
	"time"

	"brandquiz-service/internal/domain"
)

// ProgressStore is an in-memory implementation of app.ProgressStore, one
// record per (client, category). Read-modify-write under a single mutex,
// last writer wins.
type ProgressStore struct {
	mu      sync.Mutex
	clock   func() time.Time
	records map[progressKey]*progressRecord
}

type progressKey struct {
	clientID string
	category string
}

type progressRecord struct {
	completed   map[int]struct{}
	wrongIDs    map[string]struct{}
	lastAttempt time.Time
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		clock:   time.Now,
		records: make(map[progressKey]*progressRecord),
	}
}

// NewProgressStoreWithClock is test-only for deterministic timestamps.
func NewProgressStoreWithClock(now func() time.Time) *ProgressStore {
	s := NewProgressStore()
	s.clock = now
	return s
}

// WrongQuestionIDs ignores the level argument: the wrong set covers the
// whole category so traps can re-ask misses from any earlier level.
func (s *ProgressStore) WrongQuestionIDs(_ context.Context, clientID, category string, _ int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[progressKey{clientID, category}]
	if !ok {
		return nil, nil
	}
	ids := make([]string, 0, len(rec.wrongIDs))
	for id := range rec.wrongIDs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *ProgressStore) SaveWrongAnswers(_ context.Context, clientID, category string, _ int, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordLocked(clientID, category)
	for _, id := range ids {
		rec.wrongIDs[id] = struct{}{}
	}
	rec.lastAttempt = s.clock()
	return nil
}

func (s *ProgressStore) MarkLevelCompleted(_ context.Context, clientID, category string, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordLocked(clientID, category)
	rec.completed[level] = struct{}{}
	rec.lastAttempt = s.clock()
	return nil
}

func (s *ProgressStore) RemoveWrongQuestion(_ context.Context, clientID, category, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[progressKey{clientID, category}]; ok {
		delete(rec.wrongIDs, questionID)
	}
	return nil
}

func (s *ProgressStore) IsLevelCompleted(_ context.Context, clientID, category string, level int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[progressKey{clientID, category}]
	if !ok {
		return false, nil
	}
	_, done := rec.completed[level]
	return done, nil
}

// Progress returns a snapshot of one record, for tests and admin surfaces.
func (s *ProgressStore) Progress(clientID, category string) domain.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[progressKey{clientID, category}]
	if !ok {
		return domain.Progress{}
	}
	out := domain.Progress{LastAttempt: rec.lastAttempt}
	for lvl := range rec.completed {
		out.CompletedLevels = append(out.CompletedLevels, lvl)
	}
	for id := range rec.wrongIDs {
		out.WrongQuestionIDs = append(out.WrongQuestionIDs, id)
	}
	return out
}

func (s *ProgressStore) recordLocked(clientID, category string) *progressRecord {
	key := progressKey{clientID, category}
	rec, ok := s.records[key]
	if !ok {
		rec = &progressRecord{
			completed: make(map[int]struct{}),
			wrongIDs:  make(map[string]struct{}),
		}
		s.records[key] = rec
	}
	return rec
}
