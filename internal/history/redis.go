package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each tenant/contact/deal log as a Redis list. RPUSH is
// append-only and atomic, so concurrent writers interleave but never lose
// or reorder their own turns.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis using REDIS_URL.
func NewRedisStore(ctx context.Context) (*RedisStore, error) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client. Used by tests.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func logKey(tenantID, contactID, dealID string) string {
	return fmt.Sprintf("chat:%s:%s:%s", tenantID, contactID, dealID)
}

func (r *RedisStore) Append(ctx context.Context, turn Turn) error {
	if turn.TenantID == "" {
		return ErrMissingTenant
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}
	key := logKey(turn.TenantID, turn.ContactID, turn.DealID)
	if err := r.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

func (r *RedisStore) Recent(ctx context.Context, tenantID, contactID, dealID string, limit int) ([]Turn, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if limit <= 0 {
		return []Turn{}, nil
	}

	key := logKey(tenantID, contactID, dealID)
	raw, err := r.client.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}

	turns := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var turn Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Close releases the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
