// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ragapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jeranaias/bankchat/internal/model"
)

// SourcesPrefix marks a prefix-framed chunk that lists cited sources.
const SourcesPrefix = "SOURCES:"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// QueryRequest is the JSON body posted to the answering endpoint.
// History holds the turns before the question, never the question itself.
type QueryRequest struct {
	Question string       `json:"question"`
	History  []model.Turn `json:"history"`
}

// =============================================================================
// FRAMING
// =============================================================================

// Framing selects how a response body is split into fragments.
type Framing string

const (
	// FramingAuto picks NDJSON when the response says application/x-ndjson,
	// prefix framing otherwise.
	FramingAuto Framing = "auto"
	// FramingPrefix treats every transport chunk as one fragment.
	FramingPrefix Framing = "prefix"
	// FramingNDJSON reads one JSON event per line.
	FramingNDJSON Framing = "ndjson"
)

// ParseFraming converts a config value into a Framing.
// An empty string means FramingAuto.
func ParseFraming(s string) (Framing, error) {
	switch Framing(strings.ToLower(strings.TrimSpace(s))) {
	case "", FramingAuto:
		return FramingAuto, nil
	case FramingPrefix:
		return FramingPrefix, nil
	case FramingNDJSON:
		return FramingNDJSON, nil
	default:
		return "", fmt.Errorf("unknown framing %q (want auto, prefix or ndjson)", s)
	}
}

// =============================================================================
// FRAGMENTS
// =============================================================================

// FragmentKind tells answer text apart from a sources list.
type FragmentKind int

const (
	FragmentText FragmentKind = iota
	FragmentSources
)

// String returns a short name for logs.
func (k FragmentKind) String() string {
	switch k {
	case FragmentText:
		return "text"
	case FragmentSources:
		return "sources"
	default:
		return fmt.Sprintf("FragmentKind(%d)", int(k))
	}
}

// Fragment is one classified piece of a streamed answer.
type Fragment struct {
	Kind    FragmentKind
	Text    string
	Sources []string

	// Err is set when the piece looked like structured data but did not
	// parse. The fragment has already been degraded to plain text.
	Err error
}

// FragmentCallback receives fragments in arrival order.
type FragmentCallback func(Fragment)

// ClassifyChunk turns one decoded prefix-framed chunk into a fragment.
//
// A chunk starting with SourcesPrefix must carry a JSON array of strings.
// When it does not, the whole chunk is returned as text with Err describing
// the problem.
func ClassifyChunk(text string) Fragment {
	if !strings.HasPrefix(text, SourcesPrefix) {
		return Fragment{Kind: FragmentText, Text: text}
	}

	names, err := parseSources([]byte(text[len(SourcesPrefix):]))
	if err != nil {
		return Fragment{
			Kind: FragmentText,
			Text: text,
			Err:  &ClientError{Type: ErrTypeMalformed, Message: "malformed sources marker", Cause: err},
		}
	}
	return Fragment{Kind: FragmentSources, Sources: names}
}

// parseSources decodes a JSON array of strings. A JSON null is rejected
// because it carries no list.
func parseSources(data []byte) ([]string, error) {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, err
	}
	if names == nil {
		return nil, fmt.Errorf("sources list is null")
	}
	return names, nil
}

// =============================================================================
// NDJSON EVENTS
// =============================================================================

// Event types carried in NDJSON framing.
const (
	EventText    = "text"
	EventSources = "sources"
	EventError   = "error"
)

// Event is one line of an NDJSON-framed answer.
type Event struct {
	Type    string   `json:"type"`
	Content string   `json:"content,omitempty"`
	Sources []string `json:"sources,omitempty"`
	Error   string   `json:"error,omitempty"`
}
