// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zap.InfoLevel, false},
		{"DEBUG", zap.DebugLevel, false},
		{"warning", zap.WarnLevel, false},
		{"error", zap.ErrorLevel, false},
		{"verbose", zap.InfoLevel, true},
	}

	for _, tc := range tests {
		got, err := ParseLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNew_ConsoleRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn, err := New(Options{Level: "warn", Console: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	log.Info("hidden")
	log.Warn("shown", zap.String("k", "v"))
	_ = closeFn()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "WARN") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestNew_DebugOverridesLevel(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(Options{Level: "error", Debug: true, Console: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	log.Debug("details")
	if !strings.Contains(buf.String(), "details") {
		t.Error("Debug option should enable debug output")
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bankchat.log")
	log, closeFn, err := New(Options{File: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	log.Info("to file")
	if err := closeFn(); err != nil {
		t.Fatalf("close error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file = %q, want the message", data)
	}
	if strings.Contains(string(data), "\x1b[") {
		t.Error("file logs should not contain color codes")
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("New() with an unknown level should fail")
	}
}
