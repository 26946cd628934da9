// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ManuGH/footage/internal/session"
	"github.com/ManuGH/footage/internal/tasks"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Summary renders the outcome of a session as a two column table.
func Summary(snap session.Snapshot) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendRow(table.Row{"File", snap.File})
	if snap.TaskID != "" {
		tw.AppendRow(table.Row{"Task", snap.TaskID})
	}
	tw.AppendRow(table.Row{"Status", snap.State.String()})
	if snap.HasProgress {
		tw.AppendRow(table.Row{"Progress", fmt.Sprintf("%.0f%%", snap.Progress)})
	}
	if snap.Frames != nil {
		tw.AppendRow(table.Row{"Frames", fmt.Sprintf("%d/%d", snap.Frames.Processed, snap.Frames.Total)})
	}
	switch snap.State {
	case session.Done:
		tw.AppendRow(table.Row{"Result", snap.ResultURL})
	case session.Failed:
		tw.AppendRow(table.Row{"Error", snap.Message})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft},
	})
	return tw.Render()
}

// TaskTable lists tasks newest first, as returned by the store.
func TaskTable(list []tasks.Task, now time.Time) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "File", "Status", "Progress", "Updated", "Message"})
	for _, t := range list {
		msg := t.Message
		if t.Error != "" {
			msg = t.Error
		}
		tw.AppendRow(table.Row{
			t.ID,
			t.Filename,
			t.Status,
			strconv.FormatFloat(t.Progress, 'f', 0, 64) + "%",
			now.Sub(t.UpdatedAt).Truncate(time.Second).String() + " ago",
			msg,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 6, WidthMax: 48},
	})
	return tw.Render()
}
