// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/bankchat/internal/model"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// StoppedMarker is shown after a partial answer when the user stops it.
	// It is never stored in history.
	StoppedMarker = " [stopped]"

	// ApologyText replaces the answer when the request fails.
	ApologyText = "Sorry, something went wrong while getting an answer. Please try again."

	// DefaultGreeting is the display-only opener of a new session.
	DefaultGreeting = "Hello! How can I help you today?"
)

// Errors returned by Begin. Neither has any side effect.
var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrGenerating    = errors.New("an answer is already being generated")
)

// =============================================================================
// SESSION
// =============================================================================

// Options configures a Session.
type Options struct {
	// Greeting is rendered as an ai message when the session starts.
	// It is not part of history. Empty means no greeting.
	Greeting string

	// Logger receives exchange lifecycle logs. Nil disables logging.
	Logger *zap.Logger
}

// Session is one conversation with at most one request in flight.
//
// A Session is safe for concurrent use: the TUI calls Begin and Stop from its
// update loop while Exchange.Run executes on another goroutine.
type Session struct {
	id       string
	renderer Renderer
	history  *model.History
	cancel   *cancelManager
	logger   *zap.Logger

	// fragmentLog samples per-fragment debug logs.
	fragmentLog *rate.Sometimes

	mu       sync.RWMutex
	streamer Streamer
}

// New creates an idle session that sends questions through streamer and
// draws on renderer.
func New(streamer Streamer, renderer Renderer, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()

	s := &Session{
		id:          id,
		renderer:    renderer,
		history:     model.NewHistory(),
		cancel:      newCancelManager(),
		logger:      logger.With(zap.String("session_id", id)),
		fragmentLog: &rate.Sometimes{First: 3, Interval: time.Second},
		streamer:    streamer,
	}

	if opts.Greeting != "" {
		renderer.AppendMessage(opts.Greeting, model.RoleAI)
		renderer.ScrollToBottom()
	}
	s.logger.Debug("session started")
	return s
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// History returns the session's turn history.
func (s *Session) History() *model.History {
	return s.history
}

// IsGenerating reports whether a request is in flight.
func (s *Session) IsGenerating() bool {
	return s.cancel.active()
}

// SetStreamer replaces the streamer used by later requests.
// An in-flight request keeps the streamer it started with.
func (s *Session) SetStreamer(streamer Streamer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamer = streamer
}

func (s *Session) currentStreamer() Streamer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamer
}

// Begin moves the session from Idle to Generating for question.
//
// It trims the question, records the user turn, renders the user message and
// an empty answer placeholder, and returns the Exchange whose Run performs the
// request. Canceling ctx has the same effect as Stop.
//
// Begin returns ErrEmptyQuestion for blank input and ErrGenerating while
// another request is in flight; in both cases nothing is changed.
func (s *Session) Begin(ctx context.Context, question string) (*Exchange, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	runCtx, ok := s.cancel.begin(ctx)
	if !ok {
		s.logger.Debug("submit ignored while generating")
		return nil, ErrGenerating
	}

	// The request carries the turns before this question.
	prior := s.history.Snapshot()
	s.history.Append(model.NewUserTurn(question))

	s.renderer.AppendMessage(question, model.RoleUser)
	placeholder := s.renderer.AppendMessage("", model.RoleAI)
	s.renderer.ScrollToBottom()
	s.renderer.SetGenerating(true)

	x := &Exchange{
		session:  s,
		ctx:      runCtx,
		streamer: s.currentStreamer(),
		question: question,
		prior:    prior,
		handle:   placeholder,
		log:      s.logger.With(zap.Int("turn", len(prior)+1)),
	}
	x.log.Info("question submitted", zap.Int("question_len", len(question)))
	return x, nil
}

// Send runs Begin and then the exchange to completion.
func (s *Session) Send(ctx context.Context, question string) (Result, error) {
	x, err := s.Begin(ctx, question)
	if err != nil {
		return Result{}, err
	}
	return x.Run(), nil
}

// Stop cancels the in-flight request. It reports false when the session is
// idle, in which case nothing happens.
func (s *Session) Stop() bool {
	if !s.cancel.cancel() {
		return false
	}
	s.logger.Info("stop requested")
	return true
}
