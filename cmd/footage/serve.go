// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/ManuGH/footage/internal/config"
	"github.com/ManuGH/footage/internal/daemon"
	"github.com/ManuGH/footage/internal/health"
	"github.com/ManuGH/footage/internal/log"
	"github.com/ManuGH/footage/internal/version"
	"github.com/spf13/cobra"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the upload relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
				log.SetLevel(cfg.LogLevel)
			}
			logger := log.WithComponent("serve")

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := config.PrepareDirs(cfg); err != nil {
				return fmt.Errorf("prepare directories: %w", err)
			}
			if err := health.PerformStartupChecks(runCtx, cfg); err != nil {
				return fmt.Errorf("startup checks: %w", err)
			}

			holder := config.NewHolder(cfg, ctx.loader)
			app, err := daemon.Build(runCtx, cfg, holder, version.Version)
			if err != nil {
				return err
			}
			logger.Info().
				Str(log.FieldEvent, "serve.start").
				Str("version", version.Version).
				Str("store", cfg.Store.Backend).
				Str("bus", cfg.Bus.Backend).
				Str("uploads", cfg.Uploads.Dir).
				Msg("starting footage relay")
			return app.Run(runCtx)
		},
	}
}
