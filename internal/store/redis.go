package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"belgaum-backend/internal/models"
)

const redisKeyPrefix = "chat:messages:"

// RedisOpener stores each scope as a sorted set scored by message timestamp.
// Keys expire after the retention window so abandoned scopes do not linger.
type RedisOpener struct {
	client    *redis.Client
	retention time.Duration
	opts      options
}

func NewRedisOpener(client *redis.Client, retention time.Duration, opts ...Option) *RedisOpener {
	return &RedisOpener{client: client, retention: retention, opts: buildOptions(opts)}
}

func (o *RedisOpener) Open(scope string) (MessageStore, error) {
	if scope == "" {
		return nil, ErrEmptyScope
	}
	return &redisStore{
		client:    o.client,
		key:       redisKeyPrefix + scope,
		seqKey:    redisKeyPrefix + scope + ":seq",
		retention: o.retention,
		now:       o.opts.now,
	}, nil
}

// EvictAll walks every scope key with SCAN and trims expired members. Key TTLs
// already drop abandoned scopes; this catches active scopes with old history.
func (o *RedisOpener) EvictAll(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := "(" + strconv.FormatInt(threshold(o.opts.now(), maxAge), 10)

	var total int64
	iter := o.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasSuffix(key, ":seq") {
			continue
		}
		n, err := o.client.ZRemRangeByScore(ctx, key, "-inf", cutoff).Result()
		if err != nil {
			return total, fmt.Errorf("failed to evict messages from %s: %w", key, err)
		}
		total += n
	}
	if err := iter.Err(); err != nil {
		return total, fmt.Errorf("failed to scan message keys: %w", err)
	}
	return total, nil
}

type redisStore struct {
	client    *redis.Client
	key       string
	seqKey    string
	retention time.Duration
	now       func() time.Time
}

func (s *redisStore) Save(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	id, err := s.client.Incr(ctx, s.seqKey).Result()
	if err != nil {
		return msg, fmt.Errorf("failed to allocate message id: %w", err)
	}
	msg.ID = id

	data, err := json.Marshal(msg)
	if err != nil {
		return msg, fmt.Errorf("failed to marshal message: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, s.key, redis.Z{Score: float64(msg.Timestamp), Member: data})
		if s.retention > 0 {
			pipe.Expire(ctx, s.key, s.retention)
			pipe.Expire(ctx, s.seqKey, s.retention)
		}
		return nil
	})
	if err != nil {
		return msg, fmt.Errorf("failed to save message: %w", err)
	}
	return msg, nil
}

func (s *redisStore) GetAll(ctx context.Context) ([]models.ChatMessage, error) {
	members, err := s.client.ZRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	msgs := make([]models.ChatMessage, 0, len(members))
	for _, m := range members {
		var msg models.ChatMessage
		if err := json.Unmarshal([]byte(m), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	// Members with equal scores sort lexicographically in Redis, not by id.
	sortMessages(msgs)
	return msgs, nil
}

func (s *redisStore) EvictOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := threshold(s.now(), maxAge)
	n, err := s.client.ZRemRangeByScore(ctx, s.key, "-inf", "("+strconv.FormatInt(cutoff, 10)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to evict messages: %w", err)
	}
	return n, nil
}

func (s *redisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	return nil
}
