// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"strings"
	"sync"

	"github.com/ManuGH/footage/internal/config"
	platformnet "github.com/ManuGH/footage/internal/platform/net"
	"github.com/ManuGH/footage/internal/version"
)

type commandContext struct {
	configFlag *string
	apiURLFlag *string

	configOnce sync.Once
	loader     *config.Loader
	config     config.AppConfig
	configErr  error
}

func newCommandContext(configFlag, apiURLFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, apiURLFlag: apiURLFlag}
}

func (c *commandContext) ensureConfig() (config.AppConfig, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.loader = config.NewLoader(path, version.Version)
		c.config, c.configErr = c.loader.Load()
	})
	return c.config, c.configErr
}

// apiURL is the relay the client commands talk to: the flag, else the
// configured resolution.
func (c *commandContext) apiURL() (string, error) {
	if c.apiURLFlag != nil {
		if u := strings.TrimSpace(*c.apiURLFlag); u != "" {
			return platformnet.NormalizeBaseURL(u)
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return platformnet.NormalizeBaseURL(config.ResolveAPIURL(cfg.Client))
}
