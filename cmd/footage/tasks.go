// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"time"

	"github.com/ManuGH/footage/internal/tasks"
	"github.com/ManuGH/footage/internal/ui"
	"github.com/spf13/cobra"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List recent tasks from the relay's task store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := tasks.OpenStore(cmd.Context(), cfg.Store)
			if err != nil {
				return fmt.Errorf("open task store: %w", err)
			}
			defer func() { _ = store.Close() }()

			list, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ui.TaskTable(list, time.Now()))
			return err
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of tasks to list (0 for all)")
	return cmd
}
