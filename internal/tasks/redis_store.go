// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisTaskPrefix = "footage:task:"
	redisIndexKey   = "footage:tasks"
	redisMaxRetries = 16
)

// RedisConfig holds Redis connection configuration for the task store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL expires task keys after their last update. 0 keeps them forever.
	TTL time.Duration
}

// RedisStore keeps tasks as JSON strings with a sorted-set index ordered by
// creation time, so several relay instances can share task state.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	owned  bool
}

// OpenRedisStore connects to Redis and verifies the connection.
func OpenRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	s := NewRedisStore(client, cfg.TTL)
	s.owned = true
	return s, nil
}

// NewRedisStore wraps an existing client. Close does not close it.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisTaskKey(id string) string { return redisTaskPrefix + id }

func (s *RedisStore) Create(ctx context.Context, t Task) error {
	buf, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	ok, err := s.client.SetNX(ctx, redisTaskKey(t.ID), buf, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return ErrExists
	}
	if err := s.client.ZAdd(ctx, redisIndexKey, redis.Z{
		Score:  float64(t.CreatedAt.UnixNano()),
		Member: t.ID,
	}).Err(); err != nil {
		return fmt.Errorf("redis zadd: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Task, error) {
	return s.get(ctx, s.client, id)
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) get(ctx context.Context, c redisGetter, id string) (Task, error) {
	val, err := c.Get(ctx, redisTaskKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("redis get: %w", err)
	}
	var t Task
	if err := json.Unmarshal(val, &t); err != nil {
		return Task{}, fmt.Errorf("decode task %s: %w", id, err)
	}
	return t, nil
}

// Update uses WATCH/MULTI so concurrent writers from other instances retry.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*Task) error) (Task, error) {
	key := redisTaskKey(id)
	var out Task
	txf := func(tx *redis.Tx) error {
		t, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(&t); err != nil {
			return err
		}
		buf, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal task: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, buf, s.ttl)
			return nil
		})
		if err == nil {
			out = t
		}
		return err
	}

	for i := 0; i < redisMaxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Task{}, err
		}
		return out, nil
	}
	return Task{}, fmt.Errorf("update task %s: too much contention", id)
}

func (s *RedisStore) List(ctx context.Context, limit int) ([]Task, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.ZRevRange(ctx, redisIndexKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange: %w", err)
	}
	out := make([]Task, 0, len(ids))
	for _, id := range ids {
		t, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// expired by TTL; drop the stale index entry
			_ = s.client.ZRem(ctx, redisIndexKey, id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *RedisStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.client.ZRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zrange: %w", err)
	}
	n := 0
	for _, id := range ids {
		t, getErr := s.Get(ctx, id)
		switch {
		case errors.Is(getErr, ErrNotFound):
			// already expired; only the index entry is left
		case getErr != nil:
			return n, getErr
		case !t.UpdatedAt.Before(cutoff):
			continue
		default:
			if err := s.client.Del(ctx, redisTaskKey(id)).Err(); err != nil {
				return n, fmt.Errorf("redis del: %w", err)
			}
			n++
		}
		if err := s.client.ZRem(ctx, redisIndexKey, id).Err(); err != nil {
			return n, fmt.Errorf("redis zrem: %w", err)
		}
	}
	return n, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
