// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/ManuGH/footage/internal/client"
	"github.com/ManuGH/footage/internal/platform/httpx"
	"github.com/ManuGH/footage/internal/session"
	"github.com/ManuGH/footage/internal/ui"
	"github.com/spf13/cobra"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a video and follow its processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := client.OpenFile(args[0])
			if err != nil {
				return err
			}
			s, err := ctx.newSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s.Select(f)
			return finish(cmd, s, s.Submit(runCtx))
		},
	}
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var filename string
	cmd := &cobra.Command{
		Use:   "watch <task-id>",
		Short: "Follow the processing of an uploaded video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.newSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return finish(cmd, s, s.Follow(runCtx, args[0], filename))
		},
	}
	cmd.Flags().StringVar(&filename, "filename", "", "Original file name, used when the relay sends no result URL")
	return cmd
}

// newSession builds a session rendering to the command's output.
func (c *commandContext) newSession(cmd *cobra.Command) (*session.Session, error) {
	apiURL, err := c.apiURL()
	if err != nil {
		return nil, err
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	opts := session.Options{
		UploadTimeout: cfg.Client.UploadTimeout,
		StreamTimeout: cfg.Client.StreamTimeout,
	}
	s := session.New(session.FromClient(client.New(apiURL, httpx.NewStreamingClient(0))), opts)
	s.Observe(ui.NewRenderer(cmd.OutOrStdout()).Observe)
	return s, nil
}

func finish(cmd *cobra.Command, s *session.Session, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), ui.Summary(s.Snapshot()))
	return err
}
