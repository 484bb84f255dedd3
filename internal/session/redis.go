package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/quorumai/quorum/internal/models"
)

// RedisStore keeps session history in a Redis list per session, trimmed
// to the cap on every append so memory stays bounded server-side too.
type RedisStore struct {
	client   *redis.Client
	maxTurns int
	prefix   string
}

// NewRedisStore creates a Redis-backed store. maxTurns <= 0 uses the
// default cap.
func NewRedisStore(client *redis.Client, maxTurns int) *RedisStore {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &RedisStore{
		client:   client,
		maxTurns: maxTurns,
		prefix:   "quorum:session:",
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *RedisStore) Tail(ctx context.Context, sessionID string, k int) ([]models.Turn, error) {
	if k <= 0 {
		return nil, nil
	}
	raw, err := s.client.LRange(ctx, s.key(sessionID), int64(-k), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	turns := make([]models.Turn, 0, len(raw))
	for _, item := range raw {
		var turn models.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			// A corrupt entry is dropped rather than failing the read.
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, turns ...models.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(turns))
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("marshal turn: %w", err)
		}
		values = append(values, data)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key(sessionID), values...)
	pipe.LTrim(ctx, s.key(sessionID), int64(-s.maxTurns), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append: %w", err)
	}
	return nil
}
