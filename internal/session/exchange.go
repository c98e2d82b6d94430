// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/bankchat/internal/model"
	"github.com/jeranaias/bankchat/internal/ragapi"
)

// =============================================================================
// RESULT
// =============================================================================

// Outcome is how an exchange ended.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeStopped
	OutcomeFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeStopped:
		return "stopped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result summarizes a finished exchange.
type Result struct {
	Outcome Outcome
	// Answer is the accumulated answer text without any marker.
	Answer  string
	Sources []string
	// Err is the cause for OutcomeStopped and OutcomeFailed.
	Err      error
	Duration time.Duration
}

// =============================================================================
// EXCHANGE
// =============================================================================

// Exchange is one question and its streamed answer.
type Exchange struct {
	session  *Session
	ctx      context.Context
	streamer Streamer
	question string
	prior    []model.Turn
	handle   Handle
	log      *zap.Logger

	answer      strings.Builder
	sources     []string
	sourcesSeen bool

	once   sync.Once
	result Result
}

// Question returns the trimmed question text.
func (x *Exchange) Question() string {
	return x.question
}

// Run performs the request, streams the answer into the placeholder and
// finalizes the session back to Idle. It blocks until the answer is done,
// failed or stopped. Calling Run again returns the first result.
func (x *Exchange) Run() Result {
	x.once.Do(func() {
		start := time.Now()
		req := ragapi.QueryRequest{Question: x.question, History: x.prior}
		err := x.streamer.QueryStream(x.ctx, req, x.onFragment)
		x.result = x.finish(err)
		x.result.Duration = time.Since(start)
		x.log.Info("answer finished",
			zap.Stringer("outcome", x.result.Outcome),
			zap.Int("answer_len", len(x.result.Answer)),
			zap.Int("sources", len(x.result.Sources)),
			zap.Duration("duration", x.result.Duration))
	})
	return x.result
}

// onFragment applies one fragment in arrival order.
func (x *Exchange) onFragment(f ragapi.Fragment) {
	r := x.session.renderer

	if f.Err != nil {
		x.log.Warn("malformed stream content shown as text", zap.Error(f.Err))
	}

	switch f.Kind {
	case ragapi.FragmentSources:
		if x.sourcesSeen {
			x.log.Warn("additional sources marker ignored", zap.Strings("sources", f.Sources))
			break
		}
		x.sourcesSeen = true
		x.sources = append([]string(nil), f.Sources...)
		r.AppendSources(x.handle, x.sources)
	default:
		x.answer.WriteString(f.Text)
		// Full-buffer replace keeps the entry identical to the buffer.
		x.handle.SetText(x.answer.String())
	}
	r.ScrollToBottom()

	x.session.fragmentLog.Do(func() {
		x.log.Debug("fragment",
			zap.Stringer("kind", f.Kind),
			zap.Int("answer_len", x.answer.Len()))
	})
}

// finish runs on every path out of Generating.
func (x *Exchange) finish(err error) Result {
	s := x.session
	res := Result{Answer: x.answer.String(), Sources: x.sources, Err: err}

	switch {
	case err == nil:
		res.Outcome = OutcomeCompleted
	case isAbort(err):
		res.Outcome = OutcomeStopped
		x.handle.SetText(x.handle.Text() + StoppedMarker)
		x.log.Info("answer stopped", zap.Bool("by_user", s.cancel.stopRequested()))
	default:
		res.Outcome = OutcomeFailed
		x.handle.SetText(ApologyText)
		x.log.Warn("answer failed", zap.Error(err))
	}

	// A partial answer is still part of the conversation.
	if res.Answer != "" {
		s.history.Append(model.NewAITurn(res.Answer))
	}

	s.renderer.ScrollToBottom()
	s.cancel.clear()
	s.renderer.SetGenerating(false)
	return res
}

// isAbort reports whether err came from cancelling the request context.
func isAbort(err error) bool {
	return ragapi.IsAborted(err) || errors.Is(err, context.Canceled)
}
