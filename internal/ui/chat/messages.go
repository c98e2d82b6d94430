// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/bankchat/internal/config"
	"github.com/jeranaias/bankchat/internal/session"
)

// =============================================================================
// MESSAGES
// =============================================================================

// exchangeDoneMsg reports that an exchange finished. SessionID lets the model
// ignore results from a session it has already replaced.
type exchangeDoneMsg struct {
	SessionID string
	Result    session.Result
}

// streamTickMsg drives redraws while an answer is streaming.
type streamTickMsg time.Time

// ConfigChangedMsg delivers a reloaded configuration to a running screen.
// Client, when set, serves every request after the current one.
type ConfigChangedMsg struct {
	Config *config.Config
	Client session.Streamer
}

// =============================================================================
// COMMANDS
// =============================================================================

// runExchangeCmd runs x to completion off the update loop.
func runExchangeCmd(sessionID string, x *session.Exchange) tea.Cmd {
	return func() tea.Msg {
		return exchangeDoneMsg{SessionID: sessionID, Result: x.Run()}
	}
}

// streamTickCmd schedules the next redraw at about 30fps.
func streamTickCmd() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg {
		return streamTickMsg(t)
	})
}
