// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package httpx builds the outbound HTTP clients used by the upload client.
// Every client is traced with otelhttp; http.DefaultClient is never used.
package httpx

import (
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultClientTimeout         = 5 * time.Second
	defaultDialTimeout           = 3 * time.Second
	defaultResponseHeaderTimeout = 3 * time.Second
	defaultStreamHeaderTimeout   = 30 * time.Second
	defaultIdleConnTimeout       = 30 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultMaxIdleConns          = 16
	defaultMaxIdleConnsPerHost   = 4
)

// NewTransport returns the tuned base transport. Dial and TLS handshake are
// capped at the dial default; headerTimeout bounds the wait for response
// headers once the request is written.
func NewTransport(dialTimeout, headerTimeout time.Duration) *http.Transport {
	if dialTimeout <= 0 || dialTimeout > defaultDialTimeout {
		dialTimeout = defaultDialTimeout
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: headerTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}
}

// NewClient returns a client for short request/response calls.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	header := min(timeout, defaultResponseHeaderTimeout)
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(NewTransport(timeout, header)),
	}
}

// NewStreamingClient returns a client without an overall timeout, for
// uploads and event streams whose lifetime is bounded by the request
// context instead.
func NewStreamingClient(headerTimeout time.Duration) *http.Client {
	if headerTimeout <= 0 {
		headerTimeout = defaultStreamHeaderTimeout
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(NewTransport(defaultDialTimeout, headerTimeout)),
	}
}
