// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session implements one chat conversation: input handling, the
// streaming request state machine, transcript updates and turn history.
//
// A Session is either Idle or Generating. Begin moves it to Generating,
// records the user turn and renders the user message plus an empty answer
// placeholder. Exchange.Run then streams the answer into the placeholder and
// always finalizes back to Idle:
//
//   - completed: the full answer is kept
//   - stopped:   the partial answer is kept and " [stopped]" is shown after it
//   - failed:    the placeholder shows a fixed apology
//
// In every case a non-empty answer buffer becomes an ai turn in history.
//
// # Key Types
//
//   - Session: Conversation state, history and the single in-flight request
//   - Exchange: One question and its streamed answer
//   - InputController: Reads, trims and clears the input field
//   - Renderer: Where messages and source tags are drawn
//
// # Usage
//
//	s := session.New(client, transcript, session.Options{Logger: log})
//	x, err := s.Begin(ctx, "What is the savings rate?")
//	if err != nil {
//	    return err // ErrEmptyQuestion or ErrGenerating
//	}
//	go x.Run()
//	// later, from any goroutine:
//	s.Stop()
package session
