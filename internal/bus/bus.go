// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bus fans task events out to stream subscribers, in process or
// across relay instances through Redis pub/sub.
package bus

import (
	"context"
	"errors"
)

// Message is an opaque, already encoded payload.
type Message []byte

// Subscriber receives messages for one topic until closed. C is closed after
// Close returns.
type Subscriber interface {
	C() <-chan Message
	Close() error
}

// Bus publishes messages to topic subscribers. A subscription is active when
// Subscribe returns, so messages published afterwards are delivered.
type Bus interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
	Close() error
}

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("bus closed")

// TaskTopic is the topic carrying events of one task.
func TaskTopic(taskID string) string {
	return "task." + taskID
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}
