package memory

import (
	"context"
	"sync"
	"time"

	"brandquiz-service/internal/domain"
)

// IdentityStore is an in-memory implementation of app.IdentityStore:
// remembered emails per (client, category) and the consent choice per client
// with its 30-day expiry.
type IdentityStore struct {
	mu       sync.Mutex
	clock    func() time.Time
	emails   map[emailKey]string
	consents map[string]domain.Consent
}

type emailKey struct {
	clientID string
	category string
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{
		clock:    time.Now,
		emails:   make(map[emailKey]string),
		consents: make(map[string]domain.Consent),
	}
}

// NewIdentityStoreWithClock is test-only for deterministic expiry.
func NewIdentityStoreWithClock(now func() time.Time) *IdentityStore {
	s := NewIdentityStore()
	s.clock = now
	return s
}

func (s *IdentityStore) RememberedEmail(_ context.Context, clientID, category string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emails[emailKey{clientID, category}], nil
}

func (s *IdentityStore) PersistEmail(_ context.Context, clientID, category, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails[emailKey{clientID, category}] = domain.NormalizeEmail(email)
	return nil
}

func (s *IdentityStore) Consent(_ context.Context, clientID string) (domain.Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	consent, ok := s.consents[clientID]
	if !ok {
		return domain.Consent{Status: domain.ConsentPending}, nil
	}
	if consent.Effective(s.clock()) == domain.ConsentPending {
		return domain.Consent{Status: domain.ConsentPending}, nil
	}
	return consent, nil
}

func (s *IdentityStore) SetConsent(_ context.Context, clientID string, status domain.ConsentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consents[clientID] = domain.Consent{
		Status:    status,
		ExpiresAt: s.clock().Add(domain.ConsentTTL),
	}
	return nil
}
