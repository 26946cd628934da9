// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreBadger = "badger"
	StoreRedis  = "redis"
)

// Bus backends.
const (
	BusMemory = "memory"
	BusRedis  = "redis"
)

// AppConfig is the full runtime configuration of both the relay and the client.
type AppConfig struct {
	Version  string `yaml:"-"`
	LogLevel string `yaml:"logLevel"`
	DataDir  string `yaml:"dataDir"`

	Server    ServerConfig    `yaml:"server"`
	Uploads   UploadsConfig   `yaml:"uploads"`
	Store     StoreConfig     `yaml:"store"`
	Bus       BusConfig       `yaml:"bus"`
	Processor ProcessorConfig `yaml:"processor"`
	CORS      CORSConfig      `yaml:"cors"`
	Client    ClientConfig    `yaml:"client"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the relay HTTP listener.
type ServerConfig struct {
	ListenAddr        string        `yaml:"listen"`
	PublicURL         string        `yaml:"publicUrl"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
	IdleTimeout       time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
	MaxConnections    int           `yaml:"maxConnections"`
	// UploadRatePerMinute limits upload requests per client IP. 0 disables the limiter.
	UploadRatePerMinute int `yaml:"uploadRatePerMinute"`
}

// UploadsConfig configures where uploads are stored and how large they may be.
type UploadsConfig struct {
	Dir            string `yaml:"dir"`
	MaxBytes       int64  `yaml:"maxBytes"`
	LegacyMaxBytes int64  `yaml:"legacyMaxBytes"`
}

// StoreConfig selects the task store backend.
type StoreConfig struct {
	Backend       string        `yaml:"backend"`
	Path          string        `yaml:"path"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDb"`
	TTL           time.Duration `yaml:"ttl"`
}

// BusConfig selects the event bus used to fan task events out to subscribers.
type BusConfig struct {
	Backend   string `yaml:"backend"`
	RedisAddr string `yaml:"redisAddr"`
	Buffer    int    `yaml:"buffer"`
}

// ProcessorConfig configures the background processing pool.
type ProcessorConfig struct {
	Workers          int           `yaml:"workers"`
	QueueSize        int           `yaml:"queueSize"`
	TaskTimeout      time.Duration `yaml:"taskTimeout"`
	FFprobeBin       string        `yaml:"ffprobeBin"`
	StepDelay        time.Duration `yaml:"stepDelay"`
	ProgressInterval time.Duration `yaml:"progressInterval"`
	ChunkSize        int           `yaml:"chunkSize"`
}

// CORSConfig lists the origins allowed to call the relay from a browser.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
}

// ClientConfig configures the upload client.
type ClientConfig struct {
	// APIURL overrides the API URL resolution when set.
	APIURL        string        `yaml:"apiUrl"`
	Host          string        `yaml:"host"`
	ProductionURL string        `yaml:"productionUrl"`
	UploadTimeout time.Duration `yaml:"uploadTimeout"`
	StreamTimeout time.Duration `yaml:"streamTimeout"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}
