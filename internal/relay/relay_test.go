// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package relay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/footage/internal/contract"
	"github.com/ManuGH/footage/internal/processor"
	"github.com/ManuGH/footage/internal/tasks"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestUploadStreamAndDownload(t *testing.T) {
	tr := newTestRelay(t)
	content := bytes.Repeat([]byte("frame"), 20)

	req := multipartRequest(t, "/upload", contract.UploadField, "My Match.mp4", content)
	rr := tr.do(req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	validateResponse(t, req, rr, nil)
	up := decodeJSON[contract.UploadResponse](t, rr.Body)
	require.NotEmpty(t, up.TaskID)

	srv := httptest.NewServer(tr.handler)
	defer srv.Close()

	events := readEvents(t, srv.Client(), srv.URL+"/events/"+up.TaskID)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, contract.StatusCompleted, last.Status)
	assert.Equal(t, "http://relay.test/uploads/processed_My_Match.mp4", last.ResultURL)
	for _, ev := range events[:len(events)-1] {
		assert.False(t, ev.Terminal(), "only the last event is terminal")
	}

	resp, err := srv.Client().Get(srv.URL + "/uploads/processed_My_Match.mp4")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))
	assert.Equal(t, content, got)

	task, err := tr.hub.Get(context.Background(), up.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "My Match.mp4", task.Filename)
	assert.Equal(t, "My_Match.mp4", task.StoredName)
}

func TestUploadRejections(t *testing.T) {
	tr := newTestRelay(t, func(c *Config, _ *Deps) { c.MaxUploadBytes = 16 })

	notMultipart := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("{}"))
	notMultipart.Header.Set("Content-Type", "application/json")

	tests := []struct {
		name    string
		req     *http.Request
		code    int
		message string
	}{
		{"not multipart", notMultipart, http.StatusBadRequest, "No file provided"},
		{"wrong field", multipartRequest(t, "/upload", "video", "a.mp4", []byte("x")), http.StatusBadRequest, "No file provided"},
		{"empty filename", multipartRequest(t, "/upload", "file", "", []byte("x")), http.StatusBadRequest, "No filename provided"},
		{"unusable filename", multipartRequest(t, "/upload", "file", "日本.", []byte("x")), http.StatusBadRequest, "Invalid filename"},
		{"too large", multipartRequest(t, "/upload", "file", "big.mp4", bytes.Repeat([]byte("x"), 64)), http.StatusRequestEntityTooLarge, "File too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := tr.do(tt.req)
			require.Equal(t, tt.code, rr.Code)
			validateResponse(t, tt.req, rr, nil)
			assert.Equal(t, tt.message, decodeJSON[contract.ErrorResponse](t, rr.Body).Error)
		})
	}

	_, err := os.Stat(filepath.Join(tr.dir, "big.mp4"))
	assert.True(t, os.IsNotExist(err), "oversized upload is not kept")
}

type rejectingPool struct{}

func (rejectingPool) Submit(processor.Job) error { return processor.ErrQueueFull }

func TestUploadQueueFull(t *testing.T) {
	tr := newTestRelay(t, func(_ *Config, d *Deps) { d.Pool = rejectingPool{} })

	req := multipartRequest(t, "/upload", "file", "a.mp4", []byte("data"))
	rr := tr.do(req)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	validateResponse(t, req, rr, nil)

	list, err := tr.hub.Store().List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, contract.StatusError, list[0].Status)
}

func TestUploadRateLimited(t *testing.T) {
	tr := newTestRelay(t, func(c *Config, _ *Deps) { c.UploadRatePerMinute = 1 })

	first := tr.do(multipartRequest(t, "/upload", "file", "a.mp4", []byte("a")))
	require.Equal(t, http.StatusOK, first.Code)

	req := multipartRequest(t, "/upload", "file", "b.mp4", []byte("b"))
	rr := tr.do(req)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	validateResponse(t, req, rr, nil)
}

func TestEventsUnknownTask(t *testing.T) {
	tr := newTestRelay(t)
	req := httptest.NewRequest(http.MethodGet, "/events/nope", nil)
	rr := tr.do(req)
	require.Equal(t, http.StatusNotFound, rr.Code)
	validateResponse(t, req, rr, nil)
}

func TestEventsReplayFinishedTask(t *testing.T) {
	tr := newTestRelay(t)
	ctx := context.Background()
	task, err := tr.hub.Create(ctx, "a.mp4", "a.mp4")
	require.NoError(t, err)
	_, _, err = tr.hub.Emit(ctx, task.ID, contract.ProgressEvent{Message: "bad frame", Status: contract.StatusError})
	require.NoError(t, err)

	srv := httptest.NewServer(tr.handler)
	defer srv.Close()

	events := readEvents(t, srv.Client(), srv.URL+"/events/"+task.ID)
	require.Len(t, events, 1)
	assert.Equal(t, "bad frame", events[0].Message)
	assert.Equal(t, contract.StatusError, events[0].Status)
}

func TestEventsResyncAfterMissedEvent(t *testing.T) {
	tr := newTestRelay(t, func(c *Config, _ *Deps) { c.KeepAlive = 20 * time.Millisecond })
	ctx := context.Background()
	task, err := tr.hub.Create(ctx, "a.mp4", "a.mp4")
	require.NoError(t, err)

	srv := httptest.NewServer(tr.handler)
	defer srv.Close()

	done := make(chan []contract.ProgressEvent, 1)
	go func() { done <- readEvents(t, srv.Client(), srv.URL+"/events/"+task.ID) }()

	// Finish the task behind the bus's back; only the store knows.
	time.Sleep(50 * time.Millisecond)
	_, err = tr.hub.Store().Update(ctx, task.ID, func(task *tasks.Task) error {
		task.Apply(contract.ProgressEvent{Message: "Done", Status: contract.StatusCompleted, ResultURL: "http://relay.test/x"}, time.Now())
		return nil
	})
	require.NoError(t, err)

	select {
	case events := <-done:
		require.Len(t, events, 2)
		assert.Equal(t, contract.StatusQueued, events[0].Status)
		assert.Equal(t, contract.StatusCompleted, events[1].Status)
		assert.Equal(t, "http://relay.test/x", events[1].ResultURL)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end after the task finished")
	}
}

func TestGetTask(t *testing.T) {
	tr := newTestRelay(t)
	task, err := tr.hub.Create(context.Background(), "a.mp4", "a.mp4")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/tasks/"+task.ID, nil)
	rr := tr.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	validateResponse(t, req, rr, nil)
	got := decodeJSON[tasks.Task](t, rr.Body)
	assert.Equal(t, task.ID, got.ID)

	req = httptest.NewRequest(http.MethodGet, "/tasks/missing", nil)
	rr = tr.do(req)
	require.Equal(t, http.StatusNotFound, rr.Code)
	validateResponse(t, req, rr, nil)
}

func TestServeFile(t *testing.T) {
	tr := newTestRelay(t)
	require.NoError(t, os.WriteFile(filepath.Join(tr.dir, "clip.mp4"), []byte("0123456789"), 0o600))
	skipBody := &openapi3filter.Options{ExcludeResponseBody: true}

	req := httptest.NewRequest(http.MethodGet, "/uploads/clip.mp4", nil)
	rr := tr.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "video/mp4", rr.Header().Get("Content-Type"))
	validateResponse(t, req, rr, skipBody)

	req = httptest.NewRequest(http.MethodGet, "/uploads/clip.mp4", nil)
	req.Header.Set("Range", "bytes=2-5")
	rr = tr.do(req)
	require.Equal(t, http.StatusPartialContent, rr.Code)
	assert.Equal(t, "2345", rr.Body.String())
	validateResponse(t, req, rr, skipBody)

	for _, name := range []string{"missing.mp4", "..%2Fsecret"} {
		req = httptest.NewRequest(http.MethodGet, "/uploads/"+name, nil)
		rr = tr.do(req)
		require.Equal(t, http.StatusNotFound, rr.Code, name)
		assert.Equal(t, "File not found", decodeJSON[contract.ErrorResponse](t, rr.Body).Error)
	}
}

func TestDetect(t *testing.T) {
	tr := newTestRelay(t)
	require.NoError(t, os.WriteFile(filepath.Join(tr.dir, "clip.mp4"), []byte("0123456789"), 0o600))

	post := func(body string) (*http.Request, *httptest.ResponseRecorder) {
		req := httptest.NewRequest(http.MethodPost, "/detect", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return req, tr.do(req)
	}

	req, rr := post(`{}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	validateResponse(t, req, rr, nil)
	assert.Equal(t, "No video URL provided", decodeJSON[contract.VideoProcessingResponse](t, rr.Body).Error)

	req, rr = post(`{"videoUrl":"http://relay.test/uploads/nope.mp4"}`)
	require.Equal(t, http.StatusNotFound, rr.Code)
	validateResponse(t, req, rr, nil)
	assert.Equal(t, "Video file not found: nope.mp4", decodeJSON[contract.VideoProcessingResponse](t, rr.Body).Error)

	req, rr = post(`{"videoUrl":"http://relay.test/uploads/clip.mp4"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	validateResponse(t, req, rr, nil)
	res := decodeJSON[contract.VideoProcessingResponse](t, rr.Body)
	assert.True(t, res.Success)
	assert.Equal(t, "/uploads/processed_1700000000.mp4", res.AnnotatedVideoURL)
	require.NotNil(t, res.ProcessingTime)
	require.NotNil(t, res.TotalFrames)
	assert.FileExists(t, filepath.Join(tr.dir, "processed_1700000000.mp4"))
}

type failingProcessor struct{}

func (failingProcessor) Process(context.Context, processor.Job, processor.Reporter) (processor.Result, error) {
	return processor.Result{}, errors.New("decoder crashed")
}

func TestDetectFailure(t *testing.T) {
	tr := newTestRelay(t, func(_ *Config, d *Deps) { d.Detector = failingProcessor{} })
	require.NoError(t, os.WriteFile(filepath.Join(tr.dir, "clip.mp4"), []byte("x"), 0o600))

	req := httptest.NewRequest(http.MethodPost, "/detect", strings.NewReader(`{"videoUrl":"clip.mp4"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := tr.do(req)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	validateResponse(t, req, rr, nil)
	res := decodeJSON[contract.VideoProcessingResponse](t, rr.Body)
	assert.False(t, res.Success)
	assert.Equal(t, "decoder crashed", res.Error)
}

func TestLegacyUpload(t *testing.T) {
	tr := newTestRelay(t)

	req := multipartRequest(t, "/api/uploadVideo", contract.LegacyUploadField, "match.mp4", []byte("video"))
	rr := tr.do(req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	validateResponse(t, req, rr, nil)
	res := decodeJSON[contract.LegacyUploadResponse](t, rr.Body)
	assert.Equal(t, "Video processed successfully", res.Message)
	assert.Equal(t, "http://relay.test/uploads/match_annotated.mp4", res.VideoURL)
	assert.FileExists(t, filepath.Join(tr.dir, "match_annotated.mp4"))
	assert.NoFileExists(t, filepath.Join(tr.dir, "1700000000000_match.mp4"))

	req = multipartRequest(t, "/api/uploadVideo", "file", "match.mp4", []byte("video"))
	rr = tr.do(req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	validateResponse(t, req, rr, nil)
	assert.JSONEq(t, `{"message":"No video file found."}`, rr.Body.String())
}

func TestPreflight(t *testing.T) {
	tr := newTestRelay(t)
	req := httptest.NewRequest(http.MethodOptions, "/upload", nil)
	req.Header.Set("Origin", "https://psac-preview.vercel.app")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := tr.do(req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://psac-preview.vercel.app", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}

func TestOpenAPIAndProbes(t *testing.T) {
	tr := newTestRelay(t)

	rr := tr.do(httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, contract.OpenAPI(), rr.Body.Bytes())

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr = tr.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestServeShutsDownWithContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := HTTPConfig{Addr: "127.0.0.1:0", MaxConnections: 4, ReadHeaderTimeout: time.Second, ShutdownTimeout: time.Second}
	ln, err := Listen(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Serve(ctx, ln, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}), cfg)
	}()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}
