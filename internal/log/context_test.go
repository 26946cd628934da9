// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestContextIDs(t *testing.T) {
	tests := []struct {
		name string
		set  func(context.Context, string) context.Context
		get  func(context.Context) string
	}{
		{"request", ContextWithRequestID, RequestIDFromContext},
		{"task", ContextWithTaskID, TaskIDFromContext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := tt.set(nil, "id-123") //nolint:staticcheck // nil context is tolerated
			assert.Equal(t, "id-123", tt.get(ctx))
			assert.Empty(t, tt.get(context.Background()))
			assert.Empty(t, tt.get(nil)) //nolint:staticcheck
		})
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "test"})
	t.Cleanup(func() { Configure(Config{}) })

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithTaskID(ctx, "task-9")

	logger := WithComponentFromContext(ctx, "upload")
	logger.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry[FieldRequestID])
	assert.Equal(t, "task-9", entry[FieldTaskID])
	assert.Equal(t, "upload", entry[FieldComponent])
	assert.Equal(t, "test", entry["service"])
}

func TestWithContextAddsTraceID(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "info", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	traceID := trace.TraceID{0x01, 0x02, 0x03}
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: trace.SpanID{0x04}})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger := WithContext(ctx, Base())
	logger.Info().Msg("traced")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, traceID.String(), entry[FieldTraceID])
	assert.NotContains(t, entry, FieldRequestID)
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { Configure(Config{}) })
	assert.True(t, SetLevel("warn"))
	assert.False(t, SetLevel("loud"))
	assert.False(t, SetLevel(""))
}

func TestMiddlewareLogsStatus(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "info", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pot", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request.handled", entry[FieldEvent])
	assert.EqualValues(t, http.StatusTeapot, entry[FieldStatus])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "/pot", entry["route"])
}
