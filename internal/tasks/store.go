// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/footage/internal/config"
)

var (
	// ErrNotFound is returned for unknown task ids.
	ErrNotFound = errors.New("task not found")
	// ErrExists is returned when creating a task whose id is taken.
	ErrExists = errors.New("task already exists")
)

// Store persists tasks. Implementations are safe for concurrent use.
type Store interface {
	Create(ctx context.Context, t Task) error
	Get(ctx context.Context, id string) (Task, error)
	// Update runs fn on the current task and stores the result atomically.
	// An error from fn aborts the update and is returned unchanged.
	Update(ctx context.Context, id string, fn func(*Task) error) (Task, error)
	// List returns up to limit tasks, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Task, error)
	// DeleteBefore removes tasks last updated before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// Pinger is implemented by stores with a backend worth probing for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpenStore creates a Store for the configured backend.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.StoreMemory, "":
		return NewMemoryStore(), nil
	case config.StoreSQLite:
		return OpenSQLiteStore(ctx, cfg.Path)
	case config.StoreBadger:
		return OpenBadgerStore(cfg.Path)
	case config.StoreRedis:
		return OpenRedisStore(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.TTL,
		})
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}
