// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
)

// ErrStreamingUnsupported is returned when the response cannot be flushed.
var ErrStreamingUnsupported = errors.New("sse: response writer does not support flushing")

// Writer writes events to an HTTP response and flushes after each one.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
	rc *http.ResponseController
}

// NewWriter prepares w for streaming: it sets the event-stream headers,
// writes the status line and flushes it.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	rc := http.NewResponseController(w)

	h := w.Header()
	h.Set("Content-Type", ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := rc.Flush(); err != nil {
		if errors.Is(err, http.ErrNotSupported) {
			return nil, ErrStreamingUnsupported
		}
		return nil, fmt.Errorf("sse: flush headers: %w", err)
	}
	return &Writer{w: w, rc: rc}, nil
}

// Send writes one event. Multi-line data is split over several data fields.
func (sw *Writer) Send(ev Event) error {
	var buf bytes.Buffer
	if ev.ID != "" {
		buf.WriteString("id: ")
		buf.WriteString(ev.ID)
		buf.WriteByte('\n')
	}
	if ev.Type != "" {
		buf.WriteString("event: ")
		buf.WriteString(ev.Type)
		buf.WriteByte('\n')
	}
	if ev.Retry > 0 {
		buf.WriteString("retry: ")
		buf.WriteString(strconv.FormatInt(ev.Retry.Milliseconds(), 10))
		buf.WriteByte('\n')
	}
	for _, line := range bytes.Split(ev.Data, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return sw.write(buf.Bytes())
}

// JSON sends v marshalled as the data of an unnamed event.
func (sw *Writer) JSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: marshal: %w", err)
	}
	return sw.Send(Event{Data: data})
}

// Comment writes a comment line. Clients ignore it; proxies see traffic.
func (sw *Writer) Comment(text string) error {
	return sw.write([]byte(": " + text + "\n\n"))
}

func (sw *Writer) write(p []byte) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if _, err := sw.w.Write(p); err != nil {
		return fmt.Errorf("sse: write: %w", err)
	}
	if err := sw.rc.Flush(); err != nil {
		return fmt.Errorf("sse: flush: %w", err)
	}
	return nil
}
