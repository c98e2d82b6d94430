// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversation turns and history.
//
// # Key Types
//
//   - Role: Speaker of a turn (user, ai)
//   - Turn: One immutable exchange entry with role and content
//   - History: Append-only, ordered sequence of turns for one session
//
// # Usage
//
//	h := model.NewHistory()
//	h.Append(model.NewUserTurn("What is my card limit?"))
//	prior := h.Snapshot() // copy sent along with the next question
package model
