package redis

import (
	"context"
	"errors"
	"time"

	"brandquiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// IdentityStore is a Redis-backed implementation of app.IdentityStore.
// Remembered emails live under email:{client}:{category}; the consent choice
// under consent:{client} with the 30-day expiry enforced by a key TTL, so an
// expired choice reads back as pending.
type IdentityStore struct {
	client *redis.Client
	clock  func() time.Time
}

func NewIdentityStore(client *redis.Client) *IdentityStore {
	return &IdentityStore{client: client, clock: time.Now}
}

func (s *IdentityStore) RememberedEmail(ctx context.Context, clientID, category string) (string, error) {
	email, err := s.client.Get(ctx, s.emailKey(clientID, category)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return email, err
}

func (s *IdentityStore) PersistEmail(ctx context.Context, clientID, category, email string) error {
	return s.client.Set(ctx, s.emailKey(clientID, category), domain.NormalizeEmail(email), 0).Err()
}

func (s *IdentityStore) Consent(ctx context.Context, clientID string) (domain.Consent, error) {
	status, err := s.client.Get(ctx, s.consentKey(clientID)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Consent{Status: domain.ConsentPending}, nil
	}
	if err != nil {
		return domain.Consent{}, err
	}
	ttl, err := s.client.TTL(ctx, s.consentKey(clientID)).Result()
	if err != nil {
		return domain.Consent{}, err
	}
	consent := domain.Consent{Status: domain.ConsentStatus(status)}
	if ttl > 0 {
		consent.ExpiresAt = s.clock().Add(ttl)
	}
	return consent, nil
}

func (s *IdentityStore) SetConsent(ctx context.Context, clientID string, status domain.ConsentStatus) error {
	return s.client.Set(ctx, s.consentKey(clientID), string(status), domain.ConsentTTL).Err()
}

func (s *IdentityStore) emailKey(clientID, category string) string {
	return "email:" + clientID + ":" + category
}

func (s *IdentityStore) consentKey(clientID string) string {
	return "consent:" + clientID
}
