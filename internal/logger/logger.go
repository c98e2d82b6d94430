// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logger builds the zap loggers used across bankchat.
//
// The TUI owns the terminal, so logs normally go to a file. Console output is
// used for the one-shot commands and when no file is configured.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects level and destination.
type Options struct {
	// Level is debug, info, warn or error. Empty means info.
	Level string
	// Debug forces debug level regardless of Level.
	Debug bool
	// File receives logs when set. Otherwise logs go to Console.
	File string
	// Console is the fallback writer (default os.Stderr).
	Console io.Writer
}

// New builds a logger from opts. The returned close function flushes and
// releases the log file; it is safe to call when logging to the console.
func New(opts Options) (*zap.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	if opts.Debug {
		level = zap.DebugLevel
	}

	if opts.File == "" {
		console := opts.Console
		if console == nil {
			console = os.Stderr
		}
		log := build(zapcore.AddSync(console), level, console == os.Stderr)
		return log, func() error { _ = log.Sync(); return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0700); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	log := build(zapcore.AddSync(f), level, false)
	closeFn := func() error {
		_ = log.Sync()
		return f.Close()
	}
	return log, closeFn, nil
}

// ParseLevel converts a level name into a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zap.InfoLevel, nil
	case "debug":
		return zap.DebugLevel, nil
	case "warn", "warning":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

func build(ws zapcore.WriteSyncer, level zapcore.Level, color bool) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if color {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		ws,
		level,
	)

	return zap.New(core, zap.AddCaller())
}
