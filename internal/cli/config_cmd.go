// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/bankchat/internal/config"
)

const configLongDesc string = `Inspect and create the bankchat configuration.

Settings are read from ~/.bankchat/config.toml (or config.json, or the file
given with --config), then BANKCHAT_* environment variables, then flags.

Examples:
  bankchat config show
  bankchat config show -o yaml
  bankchat config init
  bankchat config path`

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration",
		Long:  configLongDesc,
	}
	cmd.AddCommand(
		newConfigShowCmd(a),
		newConfigInitCmd(a),
		newConfigPathCmd(a),
	)
	return cmd
}

// =============================================================================
// CONFIG SHOW
// =============================================================================

func newConfigShowCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.Marshal(config.Global(), format)
			if err != nil {
				return &ValidationError{Field: "output", Value: format, Reason: err.Error()}
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "toml", "Output format: toml, json or yaml")
	return cmd
}

// =============================================================================
// CONFIG INIT
// =============================================================================

func newConfigInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a default config file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.configFilePath()
			if err != nil {
				return &ConfigError{Err: err}
			}

			if _, statErr := os.Stat(path); statErr == nil && !force {
				return &CommandError{
					Command: "config",
					Action:  "init",
					Reason:  fmt.Sprintf("%s already exists (use --force to overwrite)", path),
				}
			}

			if err := config.SaveTOML(config.Default(), path); err != nil {
				return &CommandError{Command: "config", Action: "init", Reason: "could not write file", Err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

// =============================================================================
// CONFIG PATH
// =============================================================================

func newConfigPathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the config file location",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.configFilePath()
			if err != nil {
				return &ConfigError{Err: err}
			}

			status := "exists"
			if _, statErr := os.Stat(path); statErr != nil {
				status = "not created yet, run 'bankchat config init'"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", path, status)
			return nil
		},
	}
}

// configFilePath is --config when given, else the default location.
func (a *app) configFilePath() (string, error) {
	if a.flags.configPath != "" {
		return a.flags.configPath, nil
	}
	return config.DefaultPath()
}
