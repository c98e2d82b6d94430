// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"

	"github.com/jeranaias/bankchat/internal/model"
	"github.com/jeranaias/bankchat/internal/ragapi"
)

// Handle is a mutable reference to the text of one rendered message.
type Handle interface {
	Text() string
	SetText(text string)
}

// Renderer draws the conversation. Calls arrive in the order the session
// makes them and may come from the goroutine running Exchange.Run, so
// implementations read from another goroutine must synchronize.
type Renderer interface {
	// AppendMessage adds a message entry and returns its handle.
	AppendMessage(text string, role model.Role) Handle

	// AppendSources attaches citation tags to an existing entry.
	// The session calls it at most once per answer.
	AppendSources(h Handle, names []string)

	// ScrollToBottom keeps the newest content in view.
	ScrollToBottom()

	// SetGenerating switches the send/stop affordance.
	SetGenerating(generating bool)
}

// Streamer sends one question and delivers the answer fragments.
// *ragapi.Client implements it.
type Streamer interface {
	QueryStream(ctx context.Context, req ragapi.QueryRequest, callback ragapi.FragmentCallback) error
}
