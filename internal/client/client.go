// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package client talks to the relay: it uploads a video as multipart form
// data and follows the task's server-sent event stream.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/ManuGH/footage/internal/contract"
	"github.com/ManuGH/footage/internal/log"
	"github.com/ManuGH/footage/internal/platform/httpx"
	"github.com/ManuGH/footage/internal/sse"
	"github.com/rs/zerolog"
)

const maxErrorBody = 64 << 10

// ProgressFunc receives bytes sent so far and the total, which is zero
// when unknown.
type ProgressFunc func(sent, total int64)

// Client is safe for concurrent use.
type Client struct {
	base   string
	http   *http.Client
	logger zerolog.Logger
}

// New returns a client for the relay at apiURL. A nil hc gets a traced
// streaming client.
func New(apiURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = httpx.NewStreamingClient(0)
	}
	return &Client{
		base:   strings.TrimRight(apiURL, "/"),
		http:   hc,
		logger: log.WithComponent("client"),
	}
}

// APIURL returns the relay base URL without a trailing slash.
func (c *Client) APIURL() string { return c.base }

// ResultURL returns the processed video location for a completed event:
// result_url when the relay sent one, otherwise the uploads convention.
func (c *Client) ResultURL(ev contract.ProgressEvent, filename string) string {
	if ev.ResultURL != "" {
		return ev.ResultURL
	}
	return c.base + "/uploads/" + url.PathEscape("processed_"+filename)
}

// Upload posts f as the "file" field of a multipart form and returns the
// task id. The body is streamed; progress is called as bytes are handed to
// the transport and never after Upload returns.
func (c *Client) Upload(ctx context.Context, f File, progress ProgressFunc) (string, error) {
	if f.Open == nil {
		return "", &ValidationError{Message: MsgNoFile, Err: ErrNoFile}
	}
	src, err := f.Open()
	if err != nil {
		return "", &UploadError{Message: MsgUploadFailed, Err: fmt.Errorf("open %s: %w", f.Name, err)}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() { _ = src.Close() }()
		pw.CloseWithError(writeForm(mw, f, &countingReader{r: src, total: f.Size, fn: progress}))
	}()
	// The writer goroutine must be gone before Upload returns.
	defer func() {
		_ = pr.Close()
		<-done
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/upload", pr)
	if err != nil {
		return "", &UploadError{Message: MsgUploadFailed, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			err = errors.Join(ctx.Err(), err)
		}
		return "", &UploadError{Message: MsgUploadFailed, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return "", &UploadError{Status: resp.StatusCode, Message: MsgUploadFailed, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := MsgUploadFailed
		var env contract.ErrorResponse
		if json.Unmarshal(body, &env) == nil && env.Error != "" {
			msg = env.Error
		}
		c.logger.Debug().Int(log.FieldStatus, resp.StatusCode).Str("reason", msg).Msg("upload rejected")
		return "", &UploadError{Status: resp.StatusCode, Message: msg}
	}

	var out contract.UploadResponse
	if err := json.Unmarshal(body, &out); err != nil || out.TaskID == "" {
		if err == nil {
			err = errors.New("response has no task_id")
		}
		return "", &UploadError{Status: resp.StatusCode, Message: MsgUploadFailed, Err: err}
	}
	c.logger.Debug().Str(log.FieldTaskID, out.TaskID).Str(log.FieldFilename, f.Name).Msg("upload accepted")
	return out.TaskID, nil
}

func writeForm(mw *multipart.Writer, f File, src io.Reader) error {
	part, err := mw.CreateFormFile(contract.UploadField, f.Name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	return mw.Close()
}

type countingReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    ProgressFunc
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.sent += int64(n)
		if c.fn != nil {
			c.fn(c.sent, c.total)
		}
	}
	return n, err
}

// Subscribe opens the event stream of taskID. The caller owns the returned
// Subscription and must Close it.
func (c *Client) Subscribe(ctx context.Context, taskID string) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/events/"+url.PathEscape(taskID), nil)
	if err != nil {
		cancel()
		return nil, &StreamError{Err: err}
	}
	req.Header.Set("Accept", sse.ContentType)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, &StreamError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		cancel()
		return nil, &StreamError{Status: resp.StatusCode, Err: fmt.Errorf("event stream: HTTP %d", resp.StatusCode)}
	}
	return &Subscription{
		body:   resp.Body,
		reader: sse.NewReader(resp.Body),
		cancel: cancel,
	}, nil
}
