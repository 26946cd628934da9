// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/footage/internal/bus"
	"github.com/ManuGH/footage/internal/contract"
	"github.com/ManuGH/footage/internal/processor"
	"github.com/ManuGH/footage/internal/relay/middleware"
	"github.com/ManuGH/footage/internal/sse"
	"github.com/ManuGH/footage/internal/tasks"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/stretchr/testify/require"
)

var (
	openapiOnce sync.Once
	openapiDoc  *openapi3.T
	openapiErr  error
)

func loadOpenAPIDoc(t *testing.T) *openapi3.T {
	t.Helper()
	openapiOnce.Do(func() {
		openapiDoc, openapiErr = contract.Load(context.Background())
	})
	require.NoError(t, openapiErr, "openapi load")
	return openapiDoc
}

// validateResponse checks rr against the documented response for req.
func validateResponse(t *testing.T, req *http.Request, rr *httptest.ResponseRecorder, opts *openapi3filter.Options) {
	t.Helper()
	router, err := legacy.NewRouter(loadOpenAPIDoc(t))
	require.NoError(t, err, "openapi router init")

	route, pathParams, err := router.FindRoute(req)
	require.NoError(t, err, "openapi route lookup")

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
		},
		Status:  rr.Code,
		Header:  rr.Header(),
		Options: opts,
	}
	input.SetBodyBytes(rr.Body.Bytes())
	require.NoError(t, openapi3filter.ValidateResponse(context.Background(), input), "openapi response validation")
}

type testRelay struct {
	srv     *Server
	handler http.Handler
	hub     *tasks.Hub
	dir     string
}

type relayOption func(*Config, *Deps)

// newTestRelay wires a relay over memory backends with a running pool.
func newTestRelay(t *testing.T, opts ...relayOption) *testRelay {
	t.Helper()
	dir := t.TempDir()
	b := bus.NewMemoryBus(64)
	hub := tasks.NewHub(tasks.NewMemoryStore(), b)
	annotator := processor.NewAnnotator(nil, 4, 0)
	pool := processor.NewPool(hub, annotator, processor.PoolConfig{Workers: 2, QueueSize: 8})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = pool.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-pool.Done()
		_ = b.Close()
	})

	cfg := Config{
		UploadsDir:     dir,
		MaxUploadBytes: 1 << 20,
		LegacyMaxBytes: 1 << 20,
		PublicURL:      "http://relay.test",
		KeepAlive:      time.Second,
	}
	deps := Deps{
		Hub:      hub,
		Pool:     pool,
		Detector: annotator,
		CORS:     middleware.NewOriginPolicy([]string{"http://localhost:3000", "https://*.vercel.app"}, true),
	}
	for _, o := range opts {
		o(&cfg, &deps)
	}
	srv := New(cfg, deps)
	srv.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return &testRelay{srv: srv, handler: srv.Handler(), hub: hub, dir: dir}
}

func (tr *testRelay) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	tr.handler.ServeHTTP(rr, req)
	return rr
}

func multipartRequest(t *testing.T, target, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("note", "ignored"))
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeJSON[T any](t *testing.T, r io.Reader) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(r).Decode(&v))
	return v
}

// readEvents consumes an event stream until the relay closes it.
func readEvents(t *testing.T, client *http.Client, url string) []contract.ProgressEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, sse.ContentType, resp.Header.Get("Content-Type"))

	r := sse.NewReader(resp.Body)
	var events []contract.ProgressEvent
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		var pe contract.ProgressEvent
		require.NoError(t, json.Unmarshal(ev.Data, &pe))
		events = append(events, pe)
	}
}
