// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sse

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"
)

// MaxEventSize bounds a single line and the data of a single event.
const MaxEventSize = 1 << 20

// ErrEventTooLarge is returned when a line or an event exceeds MaxEventSize.
var ErrEventTooLarge = errors.New("sse: event exceeds size limit")

// Reader parses an event stream. It is not safe for concurrent use.
type Reader struct {
	sc     *bufio.Scanner
	lastID string
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), MaxEventSize)
	return &Reader{sc: sc}
}

// LastEventID returns the most recent id field seen on the stream.
func (r *Reader) LastEventID() string { return r.lastID }

// Next blocks until the next complete event and returns it. It returns
// io.EOF when the stream ends; a trailing event without its terminating
// blank line is discarded.
func (r *Reader) Next() (Event, error) {
	var (
		ev      Event
		data    bytes.Buffer
		hasData bool
	)
	for {
		if !r.sc.Scan() {
			switch err := r.sc.Err(); {
			case err == nil:
				return Event{}, io.EOF
			case errors.Is(err, bufio.ErrTooLong):
				return Event{}, ErrEventTooLarge
			default:
				return Event{}, err
			}
		}
		line := r.sc.Text()

		if line == "" {
			if !hasData {
				ev = Event{}
				continue
			}
			ev.ID = r.lastID
			ev.Data = data.Bytes()
			return ev, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if found {
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			if data.Len()+len(value) > MaxEventSize {
				return Event{}, ErrEventTooLarge
			}
			data.WriteString(value)
			hasData = true
		case "event":
			ev.Type = value
		case "id":
			if !strings.ContainsRune(value, 0) {
				r.lastID = value
			}
		case "retry":
			if ms, err := strconv.ParseUint(value, 10, 63); err == nil {
				ev.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
}
