// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
)

func TestNewTheme_Modes(t *testing.T) {
	if theme := NewTheme("dark"); !theme.IsDark {
		t.Error("dark mode should set IsDark")
	}
	if theme := NewTheme("light"); theme.IsDark {
		t.Error("light mode should clear IsDark")
	}
	if theme := NewTheme("auto"); theme == nil {
		t.Fatal("NewTheme(auto) returned nil")
	}
}

func TestThemeStylesRender(t *testing.T) {
	theme := NewTheme("dark")

	rendered := map[string]string{
		"UserBubble":      theme.UserBubble.Render("hi"),
		"AssistantBubble": theme.AssistantBubble.Render("hello"),
		"SourceTag":       theme.SourceTag.Render("policy.pdf"),
		"SendButton":      theme.SendButton.Render("Send"),
		"StopButton":      theme.StopButton.Render("Stop"),
	}
	for name, out := range rendered {
		if strings.TrimSpace(out) == "" {
			t.Errorf("%s rendered empty output", name)
		}
	}
}

func TestContentWidth(t *testing.T) {
	theme := NewTheme("dark")

	theme.SetSize(100, 40)
	if got := theme.ContentWidth(); got != 96 {
		t.Errorf("ContentWidth() = %d, want 96", got)
	}

	theme.SetSize(10, 40)
	if got := theme.ContentWidth(); got != 20 {
		t.Errorf("narrow ContentWidth() = %d, want 20", got)
	}
}
