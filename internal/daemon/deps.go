// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"net"
	"net/http"

	"github.com/ManuGH/footage/internal/config"
	"github.com/ManuGH/footage/internal/processor"
	"github.com/ManuGH/footage/internal/relay"
	"github.com/ManuGH/footage/internal/relay/middleware"
	"github.com/ManuGH/footage/internal/tasks"
)

// Deps are the runtime parts the App drives.
type Deps struct {
	Config   config.AppConfig
	Holder   *config.Holder
	Hub      *tasks.Hub
	Pool     *processor.Pool
	Handler  http.Handler
	Listener net.Listener
	HTTP     relay.HTTPConfig
	CORS     *middleware.OriginPolicy
}

// Validate checks that the required dependencies are set.
func (d *Deps) Validate() error {
	switch {
	case d.Hub == nil:
		return ErrMissingHub
	case d.Pool == nil:
		return ErrMissingPool
	case d.Handler == nil:
		return ErrMissingHandler
	case d.Listener == nil:
		return ErrMissingListener
	}
	return nil
}
