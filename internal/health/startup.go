// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"

	"github.com/ManuGH/footage/internal/config"
	"github.com/ManuGH/footage/internal/log"
	"github.com/ManuGH/footage/internal/media/ffprobe"
)

// PerformStartupChecks verifies the relay environment before it listens.
// Missing optional tools are logged, not fatal.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")

	for name, dir := range map[string]string{"data_dir": cfg.DataDir, "uploads_dir": cfg.Uploads.Dir} {
		if res := NewDirChecker(name, dir).Check(ctx); res.Status != StatusHealthy {
			return fmt.Errorf("%s %s: %s", name, dir, res.Error)
		}
	}

	if prober := ffprobe.New(cfg.Processor.FFprobeBin); !prober.Available() {
		logger.Warn().
			Str(log.FieldEvent, "startup.ffprobe_missing").
			Str("bin", prober.Bin).
			Msg("ffprobe not found, frame based progress disabled")
	}

	logger.Info().Str(log.FieldEvent, "startup.checks_passed").Msg("startup checks passed")
	return nil
}
