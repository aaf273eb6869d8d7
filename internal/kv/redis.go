package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the production Store backed by go-redis, shared by every
// gateway replica so rate limits and mute state are consistent across the
// fleet.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore dials addr (e.g. "localhost:6379") eagerly via a PING so
// callers see connection failures at startup rather than on first use.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("kv: connect redis %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("kv: incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("kv: exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *RedisStore) GetQuietHours(ctx context.Context, userID string) (int, int, bool, error) {
	key := fmt.Sprintf("quiet_hours:%s", userID)
	vals, err := s.client.HMGet(ctx, key, "start", "end").Result()
	if err != nil {
		return 0, 0, false, fmt.Errorf("kv: get quiet hours %s: %w", userID, err)
	}
	if vals[0] == nil || vals[1] == nil {
		return 0, 0, false, nil
	}
	var start, end int
	if _, err := fmt.Sscanf(fmt.Sprint(vals[0]), "%d", &start); err != nil {
		return 0, 0, false, fmt.Errorf("kv: parse quiet hours start: %w", err)
	}
	if _, err := fmt.Sscanf(fmt.Sprint(vals[1]), "%d", &end); err != nil {
		return 0, 0, false, fmt.Errorf("kv: parse quiet hours end: %w", err)
	}
	return start, end, true, nil
}

func (s *RedisStore) IsPlanActive(ctx context.Context, accountID string) (bool, error) {
	val, err := s.client.Get(ctx, fmt.Sprintf("plan_active:%s", accountID)).Result()
	if err == redis.Nil {
		return true, nil // no record means unmetered/default account, fail open
	}
	if err != nil {
		return false, fmt.Errorf("kv: get plan status %s: %w", accountID, err)
	}
	return val == "1" || val == "true", nil
}

func (s *RedisStore) IsBotIdentifier(ctx context.Context, platform, identifier string) (bool, error) {
	return s.Exists(ctx, fmt.Sprintf("bot_identifier:%s:%s", platform, identifier))
}

func (s *RedisStore) IsGroupAllowed(ctx context.Context, platform, groupID string) (bool, error) {
	return s.Exists(ctx, fmt.Sprintf("group_allowlist:%s:%s", platform, groupID))
}

func (s *RedisStore) BotNames(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, "bot_names").Result()
	if err != nil {
		return nil, fmt.Errorf("kv: get bot names: %w", err)
	}
	return names, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
