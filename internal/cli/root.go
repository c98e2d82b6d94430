// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/bankchat/internal/config"
	"github.com/jeranaias/bankchat/internal/logger"
	"github.com/jeranaias/bankchat/internal/ragapi"
	"github.com/jeranaias/bankchat/internal/ui/chat"
	"github.com/jeranaias/bankchat/internal/ui/styles"
)

const rootLongDesc string = `bankchat asks questions of the bank's document assistant and streams
the answers, with the documents each answer was drawn from.

Running bankchat without a command opens the full-screen chat.

Examples:
  bankchat
  bankchat chat
  bankchat ask "What is the daily ATM withdrawal limit?"
  bankchat --endpoint https://assistant.example.com/api/v1/chat/query`

const rootShortDesc string = "Chat with the bank document assistant"

// skipConfigAnnotation marks commands that must work with a broken config.
const skipConfigAnnotation = "bankchat/skip-config"

// globalFlags holds the persistent flags.
type globalFlags struct {
	configPath string
	endpoint   string
	framing    string
	debug      bool
	noColor    bool
}

// app is the state shared by every command once flags are parsed.
type app struct {
	flags globalFlags

	cfg      *config.Config
	cfgPath  string
	logger   *zap.Logger
	closeLog func() error
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:           "bankchat",
		Short:         rootShortDesc,
		Long:          rootLongDesc,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context())
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.flags.configPath, "config", "c", "", "Config file (default ~/.bankchat/config.toml)")
	pf.StringVar(&a.flags.endpoint, "endpoint", "", "Answering service URL")
	pf.StringVar(&a.flags.framing, "framing", "", "Response framing: auto, prefix or ndjson")
	pf.BoolVar(&a.flags.debug, "debug", false, "Enable debug logging")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(
		newChatCmd(a),
		newAskCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return cmd, a
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	cmd, a := newRootCmd()
	defer a.teardown()

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		DisplayError(os.Stderr, err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// =============================================================================
// SETUP
// =============================================================================

// setup resolves colors, configuration and logging for cmd.
func (a *app) setup(cmd *cobra.Command) error {
	if a.flags.noColor {
		ForceColorsEnabled(false)
	}
	lipgloss.SetColorProfile(GetColorProfile())

	if cmd.Annotations[skipConfigAnnotation] == "true" {
		return nil
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		return &ConfigError{Path: ".env", Err: err}
	}

	cfg, path, err := a.loadConfig()
	if err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	a.cfg = cfg
	a.cfgPath = path
	config.SetGlobal(cfg)

	log, closeLog, err := logger.New(logger.Options{
		Level: cfg.Logging.Level,
		Debug: a.flags.debug,
		File:  cfg.Logging.File,
	})
	if err != nil {
		return &ConfigError{Path: cfg.Logging.File, Err: err}
	}
	a.logger = log.With(zap.String("command", cmd.Name()))
	a.closeLog = closeLog

	a.logger.Debug("configuration loaded",
		zap.String("path", path),
		zap.String("endpoint", cfg.Server.Endpoint),
		zap.String("framing", cfg.Server.Framing),
	)
	return nil
}

// loadConfig loads the --config file or the default one, then applies the
// flag overrides.
func (a *app) loadConfig() (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if a.flags.configPath != "" {
		path = a.flags.configPath
		cfg, err = config.LoadFromPath(path)
	} else {
		path, _ = config.DefaultPath()
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, path, err
	}

	if err := a.applyFlags(cfg); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// applyFlags overlays --endpoint and --framing onto cfg and revalidates.
func (a *app) applyFlags(cfg *config.Config) error {
	if a.flags.endpoint == "" && a.flags.framing == "" {
		return nil
	}
	if a.flags.endpoint != "" {
		cfg.Server.Endpoint = a.flags.endpoint
	}
	if a.flags.framing != "" {
		cfg.Server.Framing = a.flags.framing
	}
	return cfg.Validate()
}

func (a *app) teardown() {
	if a.closeLog != nil {
		_ = a.closeLog()
		a.closeLog = nil
	}
}

// newClient builds a ragapi client for cfg.
func (a *app) newClient(cfg *config.Config) *ragapi.Client {
	return ragapi.NewClientWithConfig(&ragapi.ClientConfig{
		Endpoint:       cfg.Server.Endpoint,
		Framing:        cfg.FramingMode(),
		ConnectTimeout: cfg.ConnectTimeoutDuration(),
		UserAgent:      "bankchat/" + Version,
		Logger:         a.logger,
	})
}

// watchConfig follows the config file and calls onChange with each valid
// reload, flag overrides applied. The returned func stops watching.
func (a *app) watchConfig(ctx context.Context, onChange func(*config.Config)) func() {
	if a.cfgPath == "" {
		return func() {}
	}

	w, err := config.NewWatcher(a.cfgPath, a.cfg, a.logger)
	if err != nil {
		a.logger.Debug("config watching disabled", zap.String("path", a.cfgPath), zap.Error(err))
		return func() {}
	}
	w.OnChange(func(cfg *config.Config) {
		cfg = cfg.Clone()
		if err := a.applyFlags(cfg); err != nil {
			a.logger.Warn("reloaded config rejected by flag overrides", zap.Error(err))
			return
		}
		onChange(cfg)
	})

	ctx, cancel := context.WithCancel(ctx)
	go w.Run(ctx)
	return func() {
		cancel()
		w.Close()
	}
}

// =============================================================================
// FULL-SCREEN CHAT
// =============================================================================

func (a *app) runTUI(ctx context.Context) error {
	if err := RequiresTTY("open the full-screen chat (try 'bankchat ask')"); err != nil {
		return err
	}

	cfg := a.cfg
	m := chat.New(chat.Options{
		Client:   a.newClient(cfg),
		Greeting: cfg.UI.Greeting,
		Markdown: cfg.UI.Markdown,
		Endpoint: cfg.Server.Endpoint,
		Theme:    styles.NewTheme(cfg.UI.Theme),
		Logger:   a.logger,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())

	stop := a.watchConfig(ctx, func(cfg *config.Config) {
		p.Send(chat.ConfigChangedMsg{Config: cfg, Client: a.newClient(cfg)})
	})
	defer stop()

	a.logger.Info("chat screen started", zap.String("session_id", m.Session().ID()))
	_, err := p.Run()
	return err
}
