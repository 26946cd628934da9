// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package client

import (
	"errors"
	"io"
	"sync"

	"github.com/ManuGH/footage/internal/contract"
	"github.com/ManuGH/footage/internal/sse"
)

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("subscription closed")

// Subscription is an open event stream. Next must be called from one
// goroutine; Close may be called from any goroutine, any number of times.
type Subscription struct {
	body   io.ReadCloser
	reader *sse.Reader
	cancel func()

	once   sync.Once
	mu     sync.Mutex
	closed bool
}

// Next blocks for the next event. It returns io.EOF when the relay ends the
// stream, ErrClosed after Close, and a *StreamError on transport or decode
// failures.
func (s *Subscription) Next() (contract.ProgressEvent, error) {
	for {
		ev, err := s.reader.Next()
		if err != nil {
			if s.isClosed() {
				return contract.ProgressEvent{}, ErrClosed
			}
			if errors.Is(err, io.EOF) {
				return contract.ProgressEvent{}, io.EOF
			}
			return contract.ProgressEvent{}, &StreamError{Err: err}
		}
		if len(ev.Data) == 0 {
			continue
		}
		pe, err := decodeEvent(ev.Data)
		if err != nil {
			return contract.ProgressEvent{}, &StreamError{Err: err}
		}
		return pe, nil
	}
}

func (s *Subscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close aborts the stream and unblocks a pending Next.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cancel()
		err = s.body.Close()
	})
	return err
}
