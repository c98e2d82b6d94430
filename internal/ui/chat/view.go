// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/bankchat/internal/model"
	"github.com/jeranaias/bankchat/internal/transcript"
	"github.com/jeranaias/bankchat/internal/util"
)

const (
	headerHeight = 1
	inputHeight  = 2
	statusHeight = 1
	buttonWidth  = 8
)

// Button labels
const (
	sendLabel = "Send"
	stopLabel = "Stop"
)

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	parts := []string{
		m.renderHeader(),
		m.viewport.View(),
		m.renderStatus(),
		m.renderInput(),
	}
	if m.showHelp {
		parts = append(parts, m.help.FullHelpView(m.keys.FullHelp()))
	} else {
		parts = append(parts, m.help.ShortHelpView(m.keys.ShortHelp()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) helpHeight() int {
	if m.showHelp {
		return 3
	}
	return 1
}

func (m *Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("bankchat")
	if m.opts.Endpoint == "" {
		return m.theme.Header.Width(m.width).Render(title)
	}
	room := m.width - lipgloss.Width(title) - 4
	sub := m.theme.HeaderSubtitle.Render(util.TruncateWidth(m.opts.Endpoint, room))
	return m.theme.Header.Width(m.width).Render(title + "  " + sub)
}

func (m *Model) renderStatus() string {
	var line string
	switch {
	case m.session.IsGenerating() && m.status == "":
		line = m.spinner.View() + " Answering..."
	case m.status != "":
		line = m.status
	}
	return m.theme.StatusBar.Width(m.width).Render(line)
}

// ButtonLabel is the send/stop button text for the current state.
func (m *Model) ButtonLabel() string {
	if m.transcript.Generating() {
		return stopLabel
	}
	return sendLabel
}

func (m *Model) renderInput() string {
	button := m.theme.SendButton.Render(sendLabel)
	if m.ButtonLabel() == stopLabel {
		button = m.theme.StopButton.Render(stopLabel)
	}
	row := lipgloss.JoinHorizontal(lipgloss.Center, m.input.View(), " ", button)
	return m.theme.InputContainer.Width(m.width).Render(row)
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

func (m *Model) renderTranscript() string {
	views := m.transcript.Snapshot()
	generating := m.transcript.Generating()

	blocks := make([]string, 0, len(views))
	for i, v := range views {
		streaming := generating && i == len(views)-1 && v.Role == model.RoleAI
		blocks = append(blocks, m.renderEntry(v, streaming))
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) renderEntry(v transcript.View, streaming bool) string {
	width := m.theme.ContentWidth()

	label := m.theme.UserLabel.Render(v.Role.DisplayName())
	bubble := m.theme.UserBubble
	if v.Role == model.RoleAI {
		label = m.theme.AssistantLabel.Render(v.Role.DisplayName())
		bubble = m.theme.AssistantBubble
	}

	body := v.Text
	switch {
	case streaming && body == "":
		body = m.theme.Muted.Render("...")
	case streaming:
		body += m.theme.Cursor.Render("_")
	case v.Role == model.RoleAI && m.opts.Markdown:
		body = m.md.RenderCached(v.ID, v.Text)
	}

	lines := []string{label, bubble.Width(width).Render(body)}
	if len(v.Sources) > 0 {
		lines = append(lines, m.renderSources(v.Sources, width))
	}
	return strings.Join(lines, "\n")
}

// renderSources draws one tag per document name, wrapping to width.
func (m *Model) renderSources(names []string, width int) string {
	var rows []string
	row := m.theme.SourcesLabel.Render("Sources:")
	for _, name := range names {
		tag := m.theme.SourceTag.Render(util.TruncateWidth(name, width/2))
		if lipgloss.Width(row)+1+lipgloss.Width(tag) > width {
			rows = append(rows, row)
			row = "  "
		}
		row += " " + tag
	}
	rows = append(rows, row)
	return strings.Join(rows, "\n")
}
