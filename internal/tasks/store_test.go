// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/footage/internal/config"
	"github.com/ManuGH/footage/internal/contract"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T) Store

func storeBackends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "tasks.db"))
			require.NoError(t, err)
			return s
		},
		"badger": func(t *testing.T) Store {
			s, err := OpenInMemoryBadgerStore()
			require.NoError(t, err)
			return s
		},
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return NewRedisStore(client, time.Hour)
		},
	}
}

func TestStoreConformance(t *testing.T) {
	for name, open := range storeBackends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			ctx := context.Background()
			base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

			_, err := s.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)
			_, err = s.Update(ctx, "missing", func(*Task) error { return nil })
			require.ErrorIs(t, err, ErrNotFound)

			for i := 0; i < 3; i++ {
				task := NewTask(fmt.Sprintf("t%d", i), fmt.Sprintf("v%d.mp4", i), fmt.Sprintf("v%d.mp4", i), base.Add(time.Duration(i)*time.Minute))
				require.NoError(t, s.Create(ctx, task))
			}
			require.ErrorIs(t, s.Create(ctx, NewTask("t0", "dup", "dup", base)), ErrExists)

			got, err := s.Get(ctx, "t1")
			require.NoError(t, err)
			assert.Equal(t, "v1.mp4", got.Filename)
			assert.True(t, got.CreatedAt.Equal(base.Add(time.Minute)))

			updated, err := s.Update(ctx, "t1", func(task *Task) error {
				task.Apply(contract.ProgressEvent{Message: "Step 2", Progress: contract.Percent(40)}, base.Add(time.Hour))
				task.Properties = &contract.VideoProperties{Width: 1280, Height: 720, FPS: 30, TotalFrames: 900}
				return nil
			})
			require.NoError(t, err)
			assert.InDelta(t, 40, updated.Progress, 0.001)

			got, err = s.Get(ctx, "t1")
			require.NoError(t, err)
			assert.Equal(t, contract.StatusRunning, got.Status)
			require.NotNil(t, got.Properties)
			assert.Equal(t, 900, got.Properties.TotalFrames)

			boom := errors.New("boom")
			_, err = s.Update(ctx, "t1", func(task *Task) error {
				task.Message = "should not persist"
				return boom
			})
			require.ErrorIs(t, err, boom)
			got, err = s.Get(ctx, "t1")
			require.NoError(t, err)
			assert.Equal(t, "Step 2", got.Message)

			list, err := s.List(ctx, 0)
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, []string{"t2", "t1", "t0"}, ids(list))

			list, err = s.List(ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, []string{"t2", "t1"}, ids(list))

			n, err := s.DeleteBefore(ctx, base.Add(30*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, 2, n, "t0 and t2 were last updated before the cutoff")
			_, err = s.Get(ctx, "t1")
			require.NoError(t, err)
			_, err = s.Get(ctx, "t0")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreConcurrentUpdates(t *testing.T) {
	for name, open := range storeBackends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			ctx := context.Background()
			require.NoError(t, s.Create(ctx, NewTask("c", "c.mp4", "c.mp4", time.Now())))

			const writers = 8
			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.Update(ctx, "c", func(task *Task) error {
						task.Progress++
						return nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			got, err := s.Get(ctx, "c")
			require.NoError(t, err)
			assert.InDelta(t, writers, got.Progress, 0.001)
		})
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	s, err := OpenStore(ctx, config.StoreConfig{Backend: config.StoreMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = OpenStore(ctx, config.StoreConfig{Backend: config.StoreSQLite, Path: filepath.Join(t.TempDir(), "x", "t.db")})
	require.NoError(t, err)
	require.NoError(t, s.(Pinger).Ping(ctx))
	require.NoError(t, s.Close())

	mr := miniredis.RunT(t)
	s, err = OpenStore(ctx, config.StoreConfig{Backend: config.StoreRedis, RedisAddr: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = OpenStore(ctx, config.StoreConfig{Backend: "mongo"})
	require.Error(t, err)
}

func ids(ts []Task) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}
