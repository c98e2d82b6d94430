// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package markdown renders answer text for the terminal with glamour.
package markdown

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Renderer renders markdown at a fixed wrap width and caches results per
// message. It is safe for concurrent use.
type Renderer struct {
	mu    sync.Mutex
	term  *glamour.TermRenderer
	width int
	dark  bool
	cache map[string]cached
}

type cached struct {
	source   string
	rendered string
}

// New creates a renderer wrapping at width. A glamour setup failure leaves
// the renderer in plain-text mode.
func New(width int, dark bool) *Renderer {
	r := &Renderer{dark: dark, cache: make(map[string]cached)}
	r.setWidth(width)
	return r
}

func (r *Renderer) setWidth(width int) {
	if width < 20 {
		width = 20
	}
	style := "light"
	if r.dark {
		style = "dark"
	}
	term, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		term = nil
	}
	r.term = term
	r.width = width
	r.cache = make(map[string]cached)
}

// SetWidth changes the wrap width. Cached output is dropped when it changes.
func (r *Renderer) SetWidth(width int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if width == r.width {
		return
	}
	r.setWidth(width)
}

// Render renders content, returning it unchanged if rendering fails.
func (r *Renderer) Render(content string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.render(content)
}

// RenderCached is Render memoized under key until content changes.
func (r *Renderer) RenderCached(key, content string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.cache[key]; ok && c.source == content {
		return c.rendered
	}
	out := r.render(content)
	r.cache[key] = cached{source: content, rendered: out}
	return out
}

func (r *Renderer) render(content string) string {
	if r.term == nil || strings.TrimSpace(content) == "" {
		return content
	}
	out, err := r.term.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}
