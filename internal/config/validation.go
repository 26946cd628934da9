// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"

	"github.com/ManuGH/footage/internal/validate"
	"github.com/rs/zerolog"
)

var httpSchemes = []string{"http", "https"}

// Validate checks cfg without touching the filesystem.
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil || cfg.LogLevel == "" {
		v.AddError("logLevel", fmt.Sprintf("unknown log level %q", cfg.LogLevel), cfg.LogLevel)
	}
	v.NotEmpty("dataDir", cfg.DataDir)

	v.ListenAddr("server.listen", cfg.Server.ListenAddr)
	v.OptionalURL("server.publicUrl", cfg.Server.PublicURL, httpSchemes)
	v.PositiveDuration("server.readHeaderTimeout", cfg.Server.ReadHeaderTimeout)
	v.PositiveDuration("server.shutdownTimeout", cfg.Server.ShutdownTimeout)
	v.NonNegative("server.maxConnections", cfg.Server.MaxConnections)
	v.NonNegative("server.uploadRatePerMinute", cfg.Server.UploadRatePerMinute)

	v.NotEmpty("uploads.dir", cfg.Uploads.Dir)
	v.PositiveInt64("uploads.maxBytes", cfg.Uploads.MaxBytes)
	v.PositiveInt64("uploads.legacyMaxBytes", cfg.Uploads.LegacyMaxBytes)

	v.OneOf("store.backend", cfg.Store.Backend, []string{StoreMemory, StoreSQLite, StoreBadger, StoreRedis})
	switch cfg.Store.Backend {
	case StoreSQLite, StoreBadger:
		v.NotEmpty("store.path", cfg.Store.Path)
	case StoreRedis:
		v.NotEmpty("store.redisAddr", cfg.Store.RedisAddr)
	}

	v.OneOf("bus.backend", cfg.Bus.Backend, []string{BusMemory, BusRedis})
	if cfg.Bus.Backend == BusRedis {
		v.NotEmpty("bus.redisAddr", cfg.Bus.RedisAddr)
	}
	v.Positive("bus.buffer", cfg.Bus.Buffer)

	v.Range("processor.workers", cfg.Processor.Workers, 1, 64)
	v.Positive("processor.queueSize", cfg.Processor.QueueSize)
	v.PositiveDuration("processor.taskTimeout", cfg.Processor.TaskTimeout)
	v.PositiveDuration("processor.progressInterval", cfg.Processor.ProgressInterval)
	v.Positive("processor.chunkSize", cfg.Processor.ChunkSize)

	for i, origin := range cfg.CORS.AllowedOrigins {
		v.OriginPattern(fmt.Sprintf("cors.allowedOrigins[%d]", i), origin)
	}

	v.OptionalURL("client.apiUrl", cfg.Client.APIURL, httpSchemes)
	if cfg.Client.APIURL == "" {
		v.URL("client.productionUrl", cfg.Client.ProductionURL, httpSchemes)
	}
	v.PositiveDuration("client.uploadTimeout", cfg.Client.UploadTimeout)
	v.PositiveDuration("client.streamTimeout", cfg.Client.StreamTimeout)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			v.AddError("telemetry.samplingRate", "must be between 0 and 1", cfg.Telemetry.SamplingRate)
		}
	}

	return v.Err()
}

// PrepareDirs creates the data and uploads directories the relay writes to.
func PrepareDirs(cfg AppConfig) error {
	v := validate.New()
	v.Directory("dataDir", cfg.DataDir, false)
	v.Directory("uploads.dir", cfg.Uploads.Dir, false)
	return v.Err()
}
