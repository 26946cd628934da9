// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads footage configuration from defaults, an optional
// strict YAML file and FOOTAGE_* environment variables, and holds the live
// configuration for hot reload.
package config
