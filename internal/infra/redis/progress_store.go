package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProgressStore is a Redis-backed implementation of app.ProgressStore.
// Layout per (client, category):
//
//	SADD progress:{client}:{category}:levels {level}
//	SADD progress:{client}:{category}:wrong  {questionID}
//	SET  progress:{client}:{category}:last   {RFC3339 timestamp}
//
// Sets make the union/idempotence semantics native; no cross-key
// transactionality, last writer wins.
type ProgressStore struct {
	client *redis.Client
	clock  func() time.Time
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client, clock: time.Now}
}

// WrongQuestionIDs ignores the level argument: the wrong set covers the
// whole category so traps can re-ask misses from any earlier level.
func (s *ProgressStore) WrongQuestionIDs(ctx context.Context, clientID, category string, _ int) ([]string, error) {
	return s.client.SMembers(ctx, s.wrongKey(clientID, category)).Result()
}

func (s *ProgressStore) SaveWrongAnswers(ctx context.Context, clientID, category string, _ int, ids []string) error {
	if len(ids) == 0 {
		return s.touch(ctx, clientID, category)
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, s.wrongKey(clientID, category), members...)
	pipe.Set(ctx, s.lastKey(clientID, category), s.clock().Format(time.RFC3339), 0)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *ProgressStore) MarkLevelCompleted(ctx context.Context, clientID, category string, level int) error {
	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, s.levelsKey(clientID, category), strconv.Itoa(level))
	pipe.Set(ctx, s.lastKey(clientID, category), s.clock().Format(time.RFC3339), 0)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *ProgressStore) RemoveWrongQuestion(ctx context.Context, clientID, category, questionID string) error {
	return s.client.SRem(ctx, s.wrongKey(clientID, category), questionID).Err()
}

func (s *ProgressStore) IsLevelCompleted(ctx context.Context, clientID, category string, level int) (bool, error) {
	return s.client.SIsMember(ctx, s.levelsKey(clientID, category), strconv.Itoa(level)).Result()
}

func (s *ProgressStore) touch(ctx context.Context, clientID, category string) error {
	return s.client.Set(ctx, s.lastKey(clientID, category), s.clock().Format(time.RFC3339), 0).Err()
}

func (s *ProgressStore) levelsKey(clientID, category string) string {
	return "progress:" + clientID + ":" + category + ":levels"
}

func (s *ProgressStore) wrongKey(clientID, category string) string {
	return "progress:" + clientID + ":" + category + ":wrong"
}

func (s *ProgressStore) lastKey(clientID, category string) string {
	return "progress:" + clientID + ":" + category + ":last"
}
