// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

const (
	// DevAPIURL is used by the client when it runs against a local relay.
	DevAPIURL = "http://localhost:5000"
	// DefaultProductionURL is the hosted relay.
	DefaultProductionURL = "https://psacfootball-python-f58da7eeb938.herokuapp.com"

	defaultMaxUploadBytes = 512 << 20
	legacyMaxUploadBytes  = 100 << 20
)

// Default returns the built-in configuration.
func Default() AppConfig {
	return AppConfig{
		LogLevel: "info",
		DataDir:  "data",
		Server: ServerConfig{
			ListenAddr:          ":5000",
			ReadHeaderTimeout:   10 * time.Second,
			IdleTimeout:         120 * time.Second,
			ShutdownTimeout:     15 * time.Second,
			MaxConnections:      256,
			UploadRatePerMinute: 30,
		},
		Uploads: UploadsConfig{
			Dir:            "uploads",
			MaxBytes:       defaultMaxUploadBytes,
			LegacyMaxBytes: legacyMaxUploadBytes,
		},
		Store: StoreConfig{
			Backend: StoreSQLite,
			TTL:     72 * time.Hour,
		},
		Bus: BusConfig{
			Backend: BusMemory,
			Buffer:  64,
		},
		Processor: ProcessorConfig{
			Workers:          2,
			QueueSize:        32,
			TaskTimeout:      30 * time.Minute,
			ProgressInterval: 250 * time.Millisecond,
			ChunkSize:        1 << 20,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"https://psac-football-analysis.vercel.app",
				"https://*.vercel.app",
			},
			AllowCredentials: true,
		},
		Client: ClientConfig{
			Host:          "localhost",
			ProductionURL: DefaultProductionURL,
			UploadTimeout: 10 * time.Minute,
			StreamTimeout: time.Hour,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
