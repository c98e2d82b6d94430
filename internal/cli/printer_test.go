// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"testing"

	"github.com/jeranaias/bankchat/internal/model"
)

func TestStreamPrinter_PrintsDeltas(t *testing.T) {
	plainOutput(t)
	var buf bytes.Buffer
	p := newStreamPrinter(&buf, false)

	p.AppendMessage("What is my balance?", model.RoleUser)
	h := p.AppendMessage("", model.RoleAI)
	p.SetGenerating(true)
	h.SetText("Your balance")
	h.SetText("Your balance is $20.")
	p.AppendSources(h, []string{"a.pdf", "b.pdf"})
	p.SetGenerating(false)

	want := "Your balance is $20.\nSources: a.pdf, b.pdf\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestStreamPrinter_ReplacementStartsNewLine(t *testing.T) {
	plainOutput(t)
	var buf bytes.Buffer
	p := newStreamPrinter(&buf, false)

	h := p.AppendMessage("", model.RoleAI)
	h.SetText("Partial")
	h.SetText("Sorry, try again.")
	p.SetGenerating(false)

	want := "Partial\nSorry, try again.\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if h.Text() != "Sorry, try again." {
		t.Errorf("Text() = %q", h.Text())
	}
}

func TestStreamPrinter_StoppedMarkerAppends(t *testing.T) {
	plainOutput(t)
	var buf bytes.Buffer
	p := newStreamPrinter(&buf, false)

	h := p.AppendMessage("", model.RoleAI)
	h.SetText("Half an answer")
	h.SetText(h.Text() + " [stopped]")
	p.SetGenerating(false)

	if got := buf.String(); got != "Half an answer [stopped]\n" {
		t.Errorf("output = %q", got)
	}
}

func TestStreamPrinter_IgnoresForeignHandles(t *testing.T) {
	var buf bytes.Buffer
	p := newStreamPrinter(&buf, false)
	other := newStreamPrinter(&bytes.Buffer{}, false)

	h := other.AppendMessage("", model.RoleAI)
	p.AppendSources(h, []string{"x.pdf"})
	p.SetGenerating(false)

	if buf.Len() != 0 {
		t.Errorf("foreign handle produced output %q", buf.String())
	}
}
