// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jeranaias/bankchat/internal/model"
	"github.com/jeranaias/bankchat/internal/session"
)

// =============================================================================
// STREAM PRINTER
// =============================================================================

// streamPrinter is a session.Renderer for plain terminals and pipes.
//
// Answers are printed as they grow: each SetText writes only the new suffix.
// Text that is replaced rather than extended (the apology after a failure)
// starts a fresh line. Sources are printed once the answer is finished.
// User messages are not printed since the user just typed them.
type streamPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	label   bool
	current *printedEntry
	midLine bool
}

var _ session.Renderer = (*streamPrinter)(nil)

// newStreamPrinter writes to out. With label set, each answer starts with
// the assistant's name.
func newStreamPrinter(out io.Writer, label bool) *streamPrinter {
	return &streamPrinter{out: out, label: label}
}

type printedEntry struct {
	p       *streamPrinter
	role    model.Role
	text    string
	sources []string
}

func (e *printedEntry) Text() string {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	return e.text
}

func (e *printedEntry) SetText(text string) {
	p := e.p
	p.mu.Lock()
	defer p.mu.Unlock()

	if e.role == model.RoleAI {
		if strings.HasPrefix(text, e.text) {
			p.write(text[len(e.text):])
		} else {
			p.endLine()
			p.write(text)
		}
	}
	e.text = text
}

func (p *streamPrinter) AppendMessage(text string, role model.Role) session.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	e := &printedEntry{p: p, role: role, text: text}
	if role == model.RoleAI {
		p.endLine()
		if p.label {
			p.write(assistantLabelStyle.Render(role.DisplayName()+":") + " ")
		}
		p.write(text)
		p.current = e
	}
	return e
}

func (p *streamPrinter) AppendSources(h session.Handle, names []string) {
	e, ok := h.(*printedEntry)
	if !ok || e.p != p {
		return
	}
	p.mu.Lock()
	e.sources = append([]string(nil), names...)
	p.mu.Unlock()
}

func (p *streamPrinter) ScrollToBottom() {}

func (p *streamPrinter) SetGenerating(generating bool) {
	if generating {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.endLine()
	if p.current != nil && len(p.current.sources) > 0 {
		p.write(sourcesStyle.Render("Sources: " + strings.Join(p.current.sources, ", ")))
		p.endLine()
	}
}

// Flush ends a partially written line.
func (p *streamPrinter) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLine()
}

func (p *streamPrinter) write(s string) {
	if s == "" {
		return
	}
	fmt.Fprint(p.out, s)
	p.midLine = !strings.HasSuffix(s, "\n")
}

func (p *streamPrinter) endLine() {
	if p.midLine {
		fmt.Fprintln(p.out)
		p.midLine = false
	}
}
