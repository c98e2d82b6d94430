// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for bankchat.
//
// Supports TOML, JSON and YAML configuration files, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ServerConfig: Answering endpoint, response framing and timeouts
//   - UIConfig: Theme, greeting and markdown rendering
//   - LoggingConfig: Log level and destination
//   - Watcher: Reloads the config file when it changes
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (BANKCHAT_*), including those set in ./.env
//   - the file given with --config, or ~/.bankchat/config.toml, or ~/.bankchat/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	endpoint := cfg.Server.Endpoint
package config
