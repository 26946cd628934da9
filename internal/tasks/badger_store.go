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

	"github.com/dgraph-io/badger/v4"
)

const badgerPrefix = "task:"

// BadgerStore keeps tasks in an embedded Badger database, key "task:<id>".
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens the database directory at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// OpenInMemoryBadgerStore opens a non-persistent Badger database.
func OpenInMemoryBadgerStore() (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func badgerKey(id string) []byte { return []byte(badgerPrefix + id) }

func (s *BadgerStore) Create(_ context.Context, t Task) error {
	buf, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(badgerKey(t.ID)); err == nil {
			return ErrExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(badgerKey(t.ID), buf)
	})
}

func (s *BadgerStore) Get(_ context.Context, id string) (Task, error) {
	var out Task
	err := s.db.View(func(txn *badger.Txn) error {
		return readBadgerTask(txn, id, &out)
	})
	if err != nil {
		return Task{}, err
	}
	return out, nil
}

func readBadgerTask(txn *badger.Txn, id string, out *Task) error {
	item, err := txn.Get(badgerKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func (s *BadgerStore) Update(ctx context.Context, id string, fn func(*Task) error) (Task, error) {
	for {
		var out Task
		err := s.db.Update(func(txn *badger.Txn) error {
			if err := readBadgerTask(txn, id, &out); err != nil {
				return err
			}
			if err := fn(&out); err != nil {
				return err
			}
			buf, err := json.Marshal(out)
			if err != nil {
				return err
			}
			return txn.Set(badgerKey(id), buf)
		})
		if errors.Is(err, badger.ErrConflict) {
			if ctx.Err() != nil {
				return Task{}, ctx.Err()
			}
			continue
		}
		if err != nil {
			return Task{}, err
		}
		return out, nil
	}
}

func (s *BadgerStore) scan(fn func(Task) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var t Task
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &t)
			}); err != nil {
				return err
			}
			if err := fn(t); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) List(_ context.Context, limit int) ([]Task, error) {
	var out []Task
	if err := s.scan(func(t Task) error {
		out = append(out, t)
		return nil
	}); err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *BadgerStore) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	var ids []string
	if err := s.scan(func(t Task) error {
		if t.UpdatedAt.Before(cutoff) {
			ids = append(ids, t.ID)
		}
		return nil
	}); err != nil {
		return 0, err
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, id := range ids {
		if err := wb.Delete(badgerKey(id)); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Ping fails once the database has been closed.
func (s *BadgerStore) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

var _ Store = (*BadgerStore)(nil)
