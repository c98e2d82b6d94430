// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the bankchat terminal UI.

All colors use Lip Gloss AdaptiveColor so the same palette works on light and
dark terminals.

# Color System (colors.go)

  - Purple - Assistant messages and the send button
  - Cyan - Brand color, user highlights and the input prompt
  - Emerald - Source document tags
  - Amber - The stop button and warnings
  - Rose - Errors

Status helpers (RenderSuccess, RenderError, ...) pair each color with an ASCII
indicator so meaning never depends on color alone.

# Theme (theme.go)

Theme bundles the lipgloss styles for the chat screen. NewTheme takes the
configured mode ("auto", "dark" or "light"); "auto" asks the terminal.

	theme := styles.NewTheme("auto")
	bubble := theme.AssistantBubble.Width(60).Render(text)
*/
package styles
