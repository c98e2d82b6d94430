// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/bankchat/internal/ragapi"
	"github.com/jeranaias/bankchat/internal/session"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ragapi.DefaultEndpoint, cfg.Server.Endpoint)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeoutDuration())
	assert.Equal(t, ragapi.FramingAuto, cfg.FramingMode())
	assert.True(t, cfg.UI.Markdown)
}

func TestDefault_SharesClientAndSessionDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "10s", cfg.Server.ConnectTimeout)
	assert.Equal(t, ragapi.DefaultConnectTimeout, cfg.ConnectTimeoutDuration())
	assert.Equal(t, ragapi.DefaultConnectTimeout, ragapi.DefaultConfig().ConnectTimeout)
	assert.Equal(t, session.DefaultGreeting, cfg.UI.Greeting)

	cfg.Server.ConnectTimeout = "soon"
	assert.Equal(t, ragapi.DefaultConnectTimeout, cfg.ConnectTimeoutDuration())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("USERPROFILE", os.Getenv("HOME"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ragapi.DefaultEndpoint, cfg.Server.Endpoint)
}

func TestLoadFromPath_TOMLKeepsUnsetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[server]
endpoint = "https://bank.example.com/api/v1/chat/query"
framing = "ndjson"

[ui]
markdown = false
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "https://bank.example.com/api/v1/chat/query", cfg.Server.Endpoint)
	assert.Equal(t, ragapi.FramingNDJSON, cfg.FramingMode())
	assert.False(t, cfg.UI.Markdown)
	assert.Equal(t, "10s", cfg.Server.ConnectTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromPath_JSONAndYAML(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "config.json")
	writeFile(t, jsonPath, `{"server":{"connect_timeout":"3s"}}`)
	cfg, err := LoadFromPath(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeoutDuration())

	yamlPath := filepath.Join(dir, "config.yaml")
	writeFile(t, yamlPath, "ui:\n  theme: light\n  greeting: \"\"\n")
	cfg, err = LoadFromPath(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "light", cfg.UI.Theme)
	assert.Empty(t, cfg.UI.Greeting)
}

func TestLoadFromPath_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[server]
endpoint = "ftp://nope"
framing = "xml"
connect_timeout = "-1s"
`)

	_, err := LoadFromPath(path)
	require.Error(t, err)

	var verrs ValidateErrors
	require.ErrorAs(t, err, &verrs)
	fields := make([]string, 0, len(verrs))
	for _, v := range verrs {
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t, []string{"server.endpoint", "server.framing", "server.connect_timeout"}, fields)
}

func TestLoadFromPath_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[server\nendpoint=")

	_, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("BANKCHAT_ENDPOINT", "http://10.0.0.5:9000/query")
	t.Setenv("BANKCHAT_MARKDOWN", "false")
	t.Setenv("BANKCHAT_LOG_LEVEL", "debug")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnvOverrides())
	assert.Equal(t, "http://10.0.0.5:9000/query", cfg.Server.Endpoint)
	assert.False(t, cfg.UI.Markdown)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "auto", cfg.UI.Theme)
}

func TestApplyEnvOverrides_BadBool(t *testing.T) {
	t.Setenv("BANKCHAT_MARKDOWN", "maybe")
	assert.Error(t, Default().ApplyEnvOverrides())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	writeFile(t, path, "BANKCHAT_FRAMING=prefix\n")
	t.Setenv("BANKCHAT_FRAMING", "")
	os.Unsetenv("BANKCHAT_FRAMING")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "prefix", os.Getenv("BANKCHAT_FRAMING"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := Default()
	cfg.Server.Framing = "prefix"

	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "prefix", loaded.Server.Framing)
}

func TestMarshal(t *testing.T) {
	cfg := Default()

	data, err := Marshal(cfg, "json")
	require.NoError(t, err)
	var decoded Config
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, cfg.Server.Endpoint, decoded.Server.Endpoint)

	data, err = Marshal(cfg, "yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "endpoint: "+cfg.Server.Endpoint)

	data, err = Marshal(cfg, "toml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "[server]")

	_, err = Marshal(cfg, "xml")
	assert.Error(t, err)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[ui]\ntheme = \"dark\"\n")

	initial, err := LoadFromPath(path)
	require.NoError(t, err)

	w, err := NewWatcher(path, initial, nil)
	require.NoError(t, err)
	defer w.Close()

	changed := make(chan *Config, 4)
	w.OnChange(func(c *Config) { changed <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Invalid edits are rejected
	writeFile(t, path, "[ui]\ntheme = \"purple\"\n")
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, "dark", w.Current().UI.Theme)

	writeFile(t, path, "[ui]\ntheme = \"light\"\n")
	select {
	case c := <-changed:
		assert.Equal(t, "light", c.UI.Theme)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	assert.Equal(t, "light", w.Current().UI.Theme)
}

// Run with: go test -race ./internal/config/
func TestWatcher_ConcurrentCurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	w, err := NewWatcher(path, Default(), nil)
	require.NoError(t, err)
	defer w.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			w.swap(Default())
		}()
		go func() {
			defer wg.Done()
			assert.NotNil(t, w.Current())
		}()
	}
	wg.Wait()
}

// TestGlobal_ConcurrentAccess checks Global and SetGlobal under -race.
func TestGlobal_ConcurrentAccess(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			assert.NotNil(t, Global())
		}()
	}
	wg.Wait()
}

func TestGlobal_FallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".bankchat"), 0700))
	writeFile(t, filepath.Join(home, ".bankchat", "config.toml"), "[server]\nframing = \"xml\"\n")

	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	cfg := Global()
	require.NotNil(t, cfg)
	assert.Equal(t, "auto", cfg.Server.Framing)
}
