// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ManuGH/footage/internal/config"
	"github.com/ManuGH/footage/internal/log"
	"golang.org/x/net/netutil"
)

// HTTPConfig tunes the listener and the http.Server.
type HTTPConfig struct {
	Addr              string
	MaxConnections    int
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

// HTTPConfigFrom maps the server section of the app config.
func HTTPConfigFrom(cfg config.ServerConfig) HTTPConfig {
	return HTTPConfig{
		Addr:              cfg.ListenAddr,
		MaxConnections:    cfg.MaxConnections,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ShutdownTimeout:   cfg.ShutdownTimeout,
	}
}

// Listen opens the TCP listener, capped at MaxConnections concurrent
// connections when positive.
func Listen(cfg HTTPConfig) (net.Listener, error) {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}
	return ln, nil
}

// Serve runs handler on ln until ctx is cancelled, then shuts down within
// ShutdownTimeout. Request contexts derive from ctx, so open event streams
// end with it. No write timeout is set; event streams are long lived.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, cfg HTTPConfig) error {
	logger := log.WithComponent("relay")
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", ln.Addr().String()).Msg("relay listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("relay server: %w", err)
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	logger.Info().Str(log.FieldEvent, "relay.shutdown").Msg("shutting down relay")
	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		err = errors.Join(err, serveErr)
	}
	return err
}
