// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea chat screen for bankchat.
//
// The screen is a scrollable transcript above a single-line input with a
// send/stop button. Questions go through a session.InputController; the
// answer streams into a transcript.Transcript from the exchange goroutine,
// and the model redraws on a fixed tick while an answer is in flight.
//
// # Key Types
//
//   - Model: Bubble Tea model owning the session, transcript and widgets
//   - Options: Dependencies and presentation settings for New
//   - KeyMap: Keyboard bindings with help text
//
// # Usage
//
//	m := chat.New(chat.Options{Client: client, Greeting: cfg.UI.Greeting})
//	p := tea.NewProgram(m, tea.WithAltScreen())
//	_, err := p.Run()
package chat
