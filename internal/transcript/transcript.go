// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript holds the rendered conversation shown by the TUI.
//
// Transcript implements session.Renderer. The session writes to it from the
// goroutine streaming an answer while the UI reads snapshots from its own
// loop, so every access is synchronized and change events let the UI know
// when to redraw.
package transcript

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/bankchat/internal/model"
	"github.com/jeranaias/bankchat/internal/session"
)

// =============================================================================
// EVENTS
// =============================================================================

// EventKind identifies what changed.
type EventKind int

const (
	EventAppended EventKind = iota
	EventUpdated
	EventSources
	EventScroll
	EventGenerating
)

// Event describes one change. EntryID is empty for EventScroll and
// EventGenerating.
type Event struct {
	Kind    EventKind
	EntryID string
}

// =============================================================================
// ENTRY
// =============================================================================

// Entry is one rendered message. It is the session.Handle returned by
// AppendMessage.
type Entry struct {
	id        string
	role      model.Role
	createdAt time.Time
	t         *Transcript

	// guarded by t.mu
	text    string
	sources []string
}

// ID returns the entry identifier.
func (e *Entry) ID() string {
	return e.id
}

// Text returns the current text.
func (e *Entry) Text() string {
	e.t.mu.RLock()
	defer e.t.mu.RUnlock()
	return e.text
}

// SetText replaces the text.
func (e *Entry) SetText(text string) {
	e.t.mu.Lock()
	e.text = text
	e.t.version++
	e.t.mu.Unlock()

	e.t.emit(Event{Kind: EventUpdated, EntryID: e.id})
}

// View is an immutable copy of an entry for drawing.
type View struct {
	ID        string
	Role      model.Role
	Text      string
	Sources   []string
	CreatedAt time.Time
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is a thread-safe list of entries plus the generating flag.
type Transcript struct {
	mu         sync.RWMutex
	entries    []*Entry
	generating bool
	version    uint64
	scrollSeq  uint64

	listenerMu sync.RWMutex
	listener   func(Event)
}

var _ session.Renderer = (*Transcript)(nil)

// New creates an empty transcript.
func New() *Transcript {
	return &Transcript{}
}

// OnChange registers fn to be called after every change. fn runs on the
// goroutine that made the change, outside the transcript lock.
func (t *Transcript) OnChange(fn func(Event)) {
	t.listenerMu.Lock()
	defer t.listenerMu.Unlock()
	t.listener = fn
}

func (t *Transcript) emit(ev Event) {
	t.listenerMu.RLock()
	fn := t.listener
	t.listenerMu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

// AppendMessage adds an entry and scrolls to it.
func (t *Transcript) AppendMessage(text string, role model.Role) session.Handle {
	e := &Entry{
		id:        uuid.NewString(),
		role:      role,
		createdAt: time.Now(),
		t:         t,
		text:      text,
	}

	t.mu.Lock()
	t.entries = append(t.entries, e)
	t.version++
	t.scrollSeq++
	t.mu.Unlock()

	t.emit(Event{Kind: EventAppended, EntryID: e.id})
	return e
}

// AppendSources attaches citation tags to the entry behind h. Handles from
// another transcript are ignored.
func (t *Transcript) AppendSources(h session.Handle, names []string) {
	e, ok := h.(*Entry)
	if !ok || e.t != t {
		return
	}

	t.mu.Lock()
	e.sources = append(e.sources, names...)
	t.version++
	t.scrollSeq++
	t.mu.Unlock()

	t.emit(Event{Kind: EventSources, EntryID: e.id})
}

// ScrollToBottom records a scroll request.
func (t *Transcript) ScrollToBottom() {
	t.mu.Lock()
	t.scrollSeq++
	t.mu.Unlock()

	t.emit(Event{Kind: EventScroll})
}

// SetGenerating records whether an answer is streaming.
func (t *Transcript) SetGenerating(generating bool) {
	t.mu.Lock()
	t.generating = generating
	t.version++
	t.mu.Unlock()

	t.emit(Event{Kind: EventGenerating})
}

// Generating reports the last value passed to SetGenerating.
func (t *Transcript) Generating() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.generating
}

// Version increases with every content change.
func (t *Transcript) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// ScrollSeq increases with every scroll request. A view that remembers the
// last value it handled knows when to jump to the bottom.
func (t *Transcript) ScrollSeq() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scrollSeq
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Snapshot copies all entries in order.
func (t *Transcript) Snapshot() []View {
	t.mu.RLock()
	defer t.mu.RUnlock()

	views := make([]View, len(t.entries))
	for i, e := range t.entries {
		views[i] = View{
			ID:        e.id,
			Role:      e.role,
			Text:      e.text,
			Sources:   append([]string(nil), e.sources...),
			CreatedAt: e.createdAt,
		}
	}
	return views
}
