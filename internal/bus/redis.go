// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/footage/internal/log"
	"github.com/ManuGH/footage/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	redisBackend = "redis"
	// ChannelPrefix namespaces footage channels on a shared Redis.
	ChannelPrefix = "footage:"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Buffer   int
}

// RedisBus relays messages through Redis pub/sub so several relay
// instances can serve streams for tasks processed elsewhere.
type RedisBus struct {
	client *redis.Client
	owned  bool
	buffer int
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
	subs   map[*redisSub]struct{}
}

// NewRedisBus connects to Redis and verifies the connection.
func NewRedisBus(ctx context.Context, cfg RedisConfig) (*RedisBus, error) {
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

	b := NewRedisBusFromClient(client, cfg.Buffer)
	b.owned = true
	b.logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis event bus")
	return b, nil
}

// NewRedisBusFromClient wraps an existing client. Close does not close it.
func NewRedisBusFromClient(client *redis.Client, buffer int) *RedisBus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &RedisBus{
		client: client,
		buffer: buffer,
		logger: log.WithComponent("bus"),
		subs:   make(map[*redisSub]struct{}),
	}
}

// Publish sends msg to the topic channel.
func (b *RedisBus) Publish(ctx context.Context, topic string, msg Message) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	if err := b.client.Publish(ctx, ChannelPrefix+topic, []byte(msg)).Err(); err != nil {
		reason := "error"
		if ctx.Err() != nil {
			reason = publishDropReason(ctx.Err())
		}
		metrics.IncBusDrop(redisBackend, reason)
		return fmt.Errorf("publish topic %q: %w", topic, err)
	}
	metrics.IncBusPublished(redisBackend)
	return nil
}

// Subscribe returns once Redis has confirmed the subscription.
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (Subscriber, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.mu.Unlock()

	ps := b.client.Subscribe(ctx, ChannelPrefix+topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe topic %q: %w", topic, err)
	}

	s := &redisSub{
		b:    b,
		ps:   ps,
		out:  make(chan Message, b.buffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = ps.Close()
		return nil, ErrClosed
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	s.wg.Add(1)
	go s.forward(ps.Channel(redis.WithChannelSize(b.buffer)))
	return s, nil
}

// Close closes every subscription, and the client when the bus created it.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*redisSub, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		_ = s.Close()
	}
	if b.owned {
		return b.client.Close()
	}
	return nil
}

type redisSub struct {
	b    *RedisBus
	ps   *redis.PubSub
	out  chan Message
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func (s *redisSub) forward(in <-chan *redis.Message) {
	defer s.wg.Done()
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.out <- Message(m.Payload):
			case <-s.done:
				return
			}
		}
	}
}

func (s *redisSub) C() <-chan Message {
	return s.out
}

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
		s.wg.Wait()

		s.b.mu.Lock()
		delete(s.b.subs, s)
		s.b.mu.Unlock()
	})
	return err
}

var _ Bus = (*RedisBus)(nil)
