// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "context"

// InputField is the editable text the user types the question into.
// *textinput.Model from bubbles satisfies it.
type InputField interface {
	Value() string
	SetValue(s string)
}

// InputController turns user actions on an input field into session calls.
type InputController struct {
	session *Session
}

// NewInputController binds a controller to s.
func NewInputController(s *Session) *InputController {
	return &InputController{session: s}
}

// Session returns the bound session.
func (c *InputController) Session() *Session {
	return c.session
}

// Activate handles the submit key. While generating it is ignored and the
// field is left as is. Otherwise it behaves like Submit.
func (c *InputController) Activate(ctx context.Context, field InputField) (*Exchange, error) {
	if c.session.IsGenerating() {
		return nil, ErrGenerating
	}
	return c.Submit(ctx, field)
}

// Press handles the send/stop button: it stops an in-flight answer, or
// submits the field when idle. A stop returns a nil Exchange and nil error.
func (c *InputController) Press(ctx context.Context, field InputField) (*Exchange, error) {
	if c.session.Stop() {
		return nil, nil
	}
	return c.Submit(ctx, field)
}

// Submit reads and trims the field and begins an exchange. The field is
// cleared only when the question is accepted.
func (c *InputController) Submit(ctx context.Context, field InputField) (*Exchange, error) {
	x, err := c.session.Begin(ctx, field.Value())
	if err != nil {
		return nil, err
	}
	field.SetValue("")
	return x, nil
}
