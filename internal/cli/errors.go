// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/bankchat/internal/config"
	"github.com/jeranaias/bankchat/internal/ragapi"
)

// =============================================================================
// EXIT CODES - Specific codes for different error categories
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNetworkError indicates the answering service could not be used
	ExitNetworkError = 5
	// ExitTimeoutError indicates the service did not respond in time
	ExitTimeoutError = 8
	// ExitInterrupted follows the shell convention for SIGINT
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES FOR STRUCTURED ERROR HANDLING
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "ask", "config")
	Action  string // Action being performed (e.g., "init", "answer")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// ConfigError wraps a failure to load or validate configuration.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("configuration %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("configuration: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError writes err in the standard format.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

// GetExitCode determines the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ExitUsageError
	}

	var configErr *ConfigError
	var configValidation config.ValidateErrors
	if errors.As(err, &configErr) || errors.As(err, &configValidation) {
		return ExitConfigError
	}

	switch {
	case ragapi.IsAborted(err):
		return ExitInterrupted
	case ragapi.IsTimeout(err):
		return ExitTimeoutError
	case ragapi.IsStatus(err), ragapi.IsMalformed(err):
		return ExitNetworkError
	}

	var clientErr *ragapi.ClientError
	if errors.As(err, &clientErr) {
		return ExitNetworkError
	}

	return ExitGeneralError
}

// describeError turns a request failure into a short line for the user.
func describeError(err error, endpoint string) string {
	var clientErr *ragapi.ClientError
	if !errors.As(err, &clientErr) {
		return err.Error()
	}

	switch clientErr.Type {
	case ragapi.ErrTypeConnection:
		return fmt.Sprintf("could not reach %s", endpoint)
	case ragapi.ErrTypeTimeout:
		return fmt.Sprintf("%s did not respond in time", endpoint)
	case ragapi.ErrTypeStatus:
		return fmt.Sprintf("server returned HTTP %d", clientErr.Status)
	default:
		return clientErr.Error()
	}
}
