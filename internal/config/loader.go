// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath string
	version    string
	lookup     func(string) (string, bool)

	// ConsumedEnvKeys records every environment key the loader looked at.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. configPath may be empty.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		lookup:          os.LookupEnv,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path the loader reads, if any.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) env(key string) string {
	return EnvPrefix + key
}

func (l *Loader) envString(key, def string) string {
	k := l.env(key)
	l.ConsumedEnvKeys[k] = struct{}{}
	return parseEnv(l.lookup, k, def, func(s string) (string, error) { return s, nil })
}

func (l *Loader) envInt(key string, def int) int {
	k := l.env(key)
	l.ConsumedEnvKeys[k] = struct{}{}
	return parseEnv(l.lookup, k, def, strconv.Atoi)
}

func (l *Loader) envInt64(key string, def int64) int64 {
	k := l.env(key)
	l.ConsumedEnvKeys[k] = struct{}{}
	return parseEnv(l.lookup, k, def, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
}

func (l *Loader) envFloat(key string, def float64) float64 {
	k := l.env(key)
	l.ConsumedEnvKeys[k] = struct{}{}
	return parseEnv(l.lookup, k, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func (l *Loader) envBool(key string, def bool) bool {
	k := l.env(key)
	l.ConsumedEnvKeys[k] = struct{}{}
	return parseEnv(l.lookup, k, def, parseBool)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	k := l.env(key)
	l.ConsumedEnvKeys[k] = struct{}{}
	return parseEnv(l.lookup, k, def, time.ParseDuration)
}

func (l *Loader) envList(key string, def []string) []string {
	k := l.env(key)
	l.ConsumedEnvKeys[k] = struct{}{}
	return parseEnv(l.lookup, k, def, func(s string) ([]string, error) { return splitList(s), nil })
}

// Load builds the configuration: defaults, then the strict YAML file, then
// environment overrides, then derived paths, then validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version
	resolvePaths(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with STRICT parsing.
// Unknown fields are rejected to prevent silent misconfiguration.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)
	cfg.DataDir = l.envString("DATA_DIR", cfg.DataDir)

	s := &cfg.Server
	s.ListenAddr = l.envString("LISTEN", s.ListenAddr)
	s.PublicURL = l.envString("PUBLIC_URL", s.PublicURL)
	s.ReadHeaderTimeout = l.envDuration("READ_HEADER_TIMEOUT", s.ReadHeaderTimeout)
	s.ShutdownTimeout = l.envDuration("SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxConnections = l.envInt("MAX_CONNECTIONS", s.MaxConnections)
	s.UploadRatePerMinute = l.envInt("UPLOAD_RATE_PER_MINUTE", s.UploadRatePerMinute)

	u := &cfg.Uploads
	u.Dir = l.envString("UPLOADS_DIR", u.Dir)
	u.MaxBytes = l.envInt64("MAX_UPLOAD_BYTES", u.MaxBytes)

	st := &cfg.Store
	st.Backend = l.envString("STORE_BACKEND", st.Backend)
	st.Path = l.envString("STORE_PATH", st.Path)
	st.RedisAddr = l.envString("REDIS_ADDR", st.RedisAddr)
	st.RedisPassword = l.envString("REDIS_PASSWORD", st.RedisPassword)
	st.RedisDB = l.envInt("REDIS_DB", st.RedisDB)
	st.TTL = l.envDuration("STORE_TTL", st.TTL)

	b := &cfg.Bus
	b.Backend = l.envString("BUS_BACKEND", b.Backend)
	b.RedisAddr = l.envString("BUS_REDIS_ADDR", b.RedisAddr)

	p := &cfg.Processor
	p.Workers = l.envInt("WORKERS", p.Workers)
	p.TaskTimeout = l.envDuration("TASK_TIMEOUT", p.TaskTimeout)
	p.FFprobeBin = l.envString("FFPROBE_BIN", p.FFprobeBin)
	p.StepDelay = l.envDuration("STEP_DELAY", p.StepDelay)

	cfg.CORS.AllowedOrigins = l.envList("CORS_ORIGINS", cfg.CORS.AllowedOrigins)
	cfg.CORS.AllowCredentials = l.envBool("CORS_CREDENTIALS", cfg.CORS.AllowCredentials)

	c := &cfg.Client
	c.APIURL = l.envString("API_URL", c.APIURL)
	c.Host = l.envString("HOST", c.Host)
	c.ProductionURL = l.envString("PRODUCTION_URL", c.ProductionURL)
	c.UploadTimeout = l.envDuration("UPLOAD_TIMEOUT", c.UploadTimeout)
	c.StreamTimeout = l.envDuration("STREAM_TIMEOUT", c.StreamTimeout)

	t := &cfg.Telemetry
	t.Enabled = l.envBool("OTEL_ENABLED", t.Enabled)
	t.Exporter = l.envString("OTEL_EXPORTER", t.Exporter)
	t.Endpoint = l.envString("OTEL_ENDPOINT", t.Endpoint)
	t.SamplingRate = l.envFloat("OTEL_SAMPLING_RATE", t.SamplingRate)
}

// resolvePaths makes directories absolute and derives store paths from DataDir.
func resolvePaths(cfg *AppConfig) {
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if !filepath.IsAbs(cfg.Uploads.Dir) {
		if abs, err := filepath.Abs(cfg.Uploads.Dir); err == nil {
			cfg.Uploads.Dir = abs
		}
	}
	if cfg.Store.Path == "" {
		switch cfg.Store.Backend {
		case StoreSQLite:
			cfg.Store.Path = filepath.Join(cfg.DataDir, "tasks.db")
		case StoreBadger:
			cfg.Store.Path = filepath.Join(cfg.DataDir, "tasks.badger")
		}
	}
	if cfg.Bus.Backend == BusRedis && cfg.Bus.RedisAddr == "" {
		cfg.Bus.RedisAddr = cfg.Store.RedisAddr
	}
}
