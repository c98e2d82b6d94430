// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/bankchat/internal/model"
	"github.com/jeranaias/bankchat/internal/ragapi"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

type fakeEntry struct {
	mu      *sync.Mutex
	role    model.Role
	text    string
	sources [][]string
}

func (e *fakeEntry) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text
}

func (e *fakeEntry) SetText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.text = text
}

type fakeRenderer struct {
	mu         sync.Mutex
	entries    []*fakeEntry
	scrolls    int
	generating []bool
}

func (r *fakeRenderer) AppendMessage(text string, role model.Role) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := &fakeEntry{mu: &r.mu, role: role, text: text}
	r.entries = append(r.entries, e)
	return e
}

func (r *fakeRenderer) AppendSources(h Handle, names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := h.(*fakeEntry)
	e.sources = append(e.sources, names)
}

func (r *fakeRenderer) ScrollToBottom() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrolls++
}

func (r *fakeRenderer) SetGenerating(generating bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generating = append(r.generating, generating)
}

// entry returns a copy of entry i taken under the renderer lock.
func (r *fakeRenderer) entry(i int) fakeEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.entries[i]
}

func (r *fakeRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

type streamerFunc func(ctx context.Context, req ragapi.QueryRequest, cb ragapi.FragmentCallback) error

func (f streamerFunc) QueryStream(ctx context.Context, req ragapi.QueryRequest, cb ragapi.FragmentCallback) error {
	return f(ctx, req, cb)
}

// scripted delivers chunks through prefix classification, records each
// request, and returns err at the end.
func scripted(requests *[]ragapi.QueryRequest, err error, chunks ...string) Streamer {
	return streamerFunc(func(ctx context.Context, req ragapi.QueryRequest, cb ragapi.FragmentCallback) error {
		if requests != nil {
			*requests = append(*requests, req)
		}
		for _, c := range chunks {
			cb(ragapi.ClassifyChunk(c))
		}
		return err
	})
}

// blocking delivers chunks, signals ready, then waits for cancellation.
func blocking(ready chan<- struct{}, chunks ...string) Streamer {
	return streamerFunc(func(ctx context.Context, req ragapi.QueryRequest, cb ragapi.FragmentCallback) error {
		for _, c := range chunks {
			cb(ragapi.ClassifyChunk(c))
		}
		close(ready)
		<-ctx.Done()
		return &ragapi.ClientError{Type: ragapi.ErrTypeAborted, Message: "request stopped", Cause: ctx.Err()}
	})
}

// =============================================================================
// EXCHANGE TESTS
// =============================================================================

func TestSession_ExampleExchange(t *testing.T) {
	var requests []ragapi.QueryRequest
	r := &fakeRenderer{}
	s := New(scripted(&requests, nil, "Hi", " there", `SOURCES:["doc1.pdf"]`), r, Options{})

	res, err := s.Send(context.Background(), "Hello")
	require.NoError(t, err)

	require.Equal(t, OutcomeCompleted, res.Outcome)
	require.Equal(t, "Hi there", res.Answer)
	require.Equal(t, []string{"doc1.pdf"}, res.Sources)

	require.Equal(t, 2, r.count())
	user, ai := r.entry(0), r.entry(1)
	require.Equal(t, model.RoleUser, user.role)
	require.Equal(t, "Hello", user.text)
	require.Equal(t, model.RoleAI, ai.role)
	require.Equal(t, "Hi there", ai.text)
	require.Equal(t, [][]string{{"doc1.pdf"}}, ai.sources)

	require.Equal(t, []model.Turn{model.NewUserTurn("Hello"), model.NewAITurn("Hi there")}, s.History().Snapshot())

	require.Len(t, requests, 1)
	require.Equal(t, "Hello", requests[0].Question)
	require.Empty(t, requests[0].History, "history must exclude the just-added turn")

	require.Equal(t, []bool{true, false}, r.generating)
	require.False(t, s.IsGenerating())
}

func TestSession_HistorySentWithNextQuestion(t *testing.T) {
	var requests []ragapi.QueryRequest
	r := &fakeRenderer{}
	s := New(scripted(&requests, nil, "Hi"), r, Options{})

	_, err := s.Send(context.Background(), "Hello")
	require.NoError(t, err)
	_, err = s.Send(context.Background(), "  What about fees?  ")
	require.NoError(t, err)

	require.Len(t, requests, 2)
	require.Equal(t, "What about fees?", requests[1].Question)
	require.Equal(t, []model.Turn{model.NewUserTurn("Hello"), model.NewAITurn("Hi")}, requests[1].History)
	require.Equal(t, 4, s.History().Len())
}

func TestSession_TextIsConcatenationOfChunks(t *testing.T) {
	chunks := []string{"The ", "rate ", "is ", "4.5%", "."}
	r := &fakeRenderer{}
	s := New(scripted(nil, nil, chunks...), r, Options{})

	_, err := s.Send(context.Background(), "rate?")
	require.NoError(t, err)
	require.Equal(t, "The rate is 4.5%.", r.entry(1).text)
}

func TestSession_StopKeepsPartialAnswer(t *testing.T) {
	ready := make(chan struct{})
	r := &fakeRenderer{}
	s := New(blocking(ready, "Par", "tial"), r, Options{})

	x, err := s.Begin(context.Background(), "Hello")
	require.NoError(t, err)
	require.True(t, s.IsGenerating())

	done := make(chan Result, 1)
	go func() { done <- x.Run() }()

	<-ready
	require.True(t, s.Stop())

	var res Result
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("exchange did not finish after Stop")
	}

	require.Equal(t, OutcomeStopped, res.Outcome)
	require.True(t, ragapi.IsAborted(res.Err))
	require.Equal(t, "Partial"+StoppedMarker, r.entry(1).text)

	last, ok := s.History().Last()
	require.True(t, ok)
	require.Equal(t, model.NewAITurn("Partial"), last)
	require.False(t, s.IsGenerating())
}

func TestSession_StopBeforeAnyChunk(t *testing.T) {
	ready := make(chan struct{})
	r := &fakeRenderer{}
	s := New(blocking(ready), r, Options{})

	x, err := s.Begin(context.Background(), "Hello")
	require.NoError(t, err)
	go func() {
		<-ready
		s.Stop()
	}()
	res := x.Run()

	require.Equal(t, OutcomeStopped, res.Outcome)
	require.Equal(t, StoppedMarker, r.entry(1).text)
	require.Equal(t, []model.Turn{model.NewUserTurn("Hello")}, s.History().Snapshot())
}

func TestSession_ParentContextCancelIsStop(t *testing.T) {
	ready := make(chan struct{})
	r := &fakeRenderer{}
	s := New(blocking(ready, "a"), r, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	x, err := s.Begin(ctx, "Hello")
	require.NoError(t, err)
	go func() {
		<-ready
		cancel()
	}()

	res := x.Run()
	require.Equal(t, OutcomeStopped, res.Outcome)
	require.Equal(t, "a"+StoppedMarker, r.entry(1).text)
}

func TestSession_FailureShowsApology(t *testing.T) {
	statusErr := &ragapi.ClientError{Type: ragapi.ErrTypeStatus, Status: 500, Message: "query failed: 500 Internal Server Error"}
	r := &fakeRenderer{}
	s := New(scripted(nil, statusErr), r, Options{})

	res, err := s.Send(context.Background(), "Hello")
	require.NoError(t, err)

	require.Equal(t, OutcomeFailed, res.Outcome)
	require.True(t, ragapi.IsStatus(res.Err))
	require.Equal(t, ApologyText, r.entry(1).text)
	require.Equal(t, []model.Turn{model.NewUserTurn("Hello")}, s.History().Snapshot())
	require.Equal(t, []bool{true, false}, r.generating)
}

func TestSession_FailureAfterPartialTextKeepsTurn(t *testing.T) {
	connErr := &ragapi.ClientError{Type: ragapi.ErrTypeConnection, Message: "answering service unreachable"}
	r := &fakeRenderer{}
	s := New(scripted(nil, connErr, "half an"), r, Options{})

	res, _ := s.Send(context.Background(), "Hello")
	require.Equal(t, OutcomeFailed, res.Outcome)
	require.Equal(t, ApologyText, r.entry(1).text)

	last, _ := s.History().Last()
	require.Equal(t, model.NewAITurn("half an"), last)
}

func TestSession_MalformedSourcesBecomesText(t *testing.T) {
	r := &fakeRenderer{}
	s := New(scripted(nil, nil, "Answer. ", `SOURCES:[broken`), r, Options{})

	res, err := s.Send(context.Background(), "q")
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, res.Outcome)
	require.Equal(t, "Answer. SOURCES:[broken", r.entry(1).text)
	require.Empty(t, r.entry(1).sources)
}

func TestSession_SourcesAttachedOnce(t *testing.T) {
	r := &fakeRenderer{}
	s := New(scripted(nil, nil, `SOURCES:["a","b"]`, "text", `SOURCES:["c"]`), r, Options{})

	res, err := s.Send(context.Background(), "q")
	require.NoError(t, err)
	require.Equal(t, [][]string{{"a", "b"}}, r.entry(1).sources)
	require.Equal(t, []string{"a", "b"}, res.Sources)
	require.Equal(t, "text", r.entry(1).text)
}

func TestSession_ScrollsAfterEveryFragment(t *testing.T) {
	r := &fakeRenderer{}
	s := New(scripted(nil, nil, "a", "b", `SOURCES:["x"]`), r, Options{})

	before := r.scrolls
	_, err := s.Send(context.Background(), "q")
	require.NoError(t, err)
	// one after Begin's appends, three fragments, one at finalization
	require.Equal(t, before+5, r.scrolls)
}

// =============================================================================
// GUARD TESTS
// =============================================================================

func TestSession_BeginWhileGeneratingIsIgnored(t *testing.T) {
	var calls atomic.Int32
	ready := make(chan struct{})
	inner := blocking(ready, "x")
	counting := streamerFunc(func(ctx context.Context, req ragapi.QueryRequest, cb ragapi.FragmentCallback) error {
		calls.Add(1)
		return inner.QueryStream(ctx, req, cb)
	})

	r := &fakeRenderer{}
	s := New(counting, r, Options{})

	x, err := s.Begin(context.Background(), "first")
	require.NoError(t, err)
	done := make(chan Result, 1)
	go func() { done <- x.Run() }()
	<-ready

	entries, turns := r.count(), s.History().Len()
	second, err := s.Begin(context.Background(), "second")
	require.ErrorIs(t, err, ErrGenerating)
	require.Nil(t, second)
	require.Equal(t, entries, r.count())
	require.Equal(t, turns, s.History().Len())

	s.Stop()
	<-done
	require.Equal(t, int32(1), calls.Load())
}

func TestSession_EmptyQuestionRejected(t *testing.T) {
	r := &fakeRenderer{}
	s := New(scripted(nil, nil, "unused"), r, Options{})

	_, err := s.Send(context.Background(), " \t\n ")
	require.ErrorIs(t, err, ErrEmptyQuestion)
	require.Equal(t, 0, r.count())
	require.Equal(t, 0, s.History().Len())
	require.False(t, s.IsGenerating())
}

func TestSession_StopWhenIdle(t *testing.T) {
	s := New(scripted(nil, nil), &fakeRenderer{}, Options{})
	require.False(t, s.Stop())
}

func TestSession_RunTwiceReturnsFirstResult(t *testing.T) {
	var calls int
	st := streamerFunc(func(ctx context.Context, req ragapi.QueryRequest, cb ragapi.FragmentCallback) error {
		calls++
		cb(ragapi.ClassifyChunk("once"))
		return nil
	})
	s := New(st, &fakeRenderer{}, Options{})

	x, err := s.Begin(context.Background(), "q")
	require.NoError(t, err)
	first := x.Run()
	second := x.Run()
	require.Equal(t, first.Answer, second.Answer)
	require.Equal(t, 1, calls)
}

// =============================================================================
// SESSION LIFECYCLE TESTS
// =============================================================================

func TestSession_GreetingIsDisplayOnly(t *testing.T) {
	r := &fakeRenderer{}
	s := New(scripted(nil, nil), r, Options{Greeting: DefaultGreeting})

	require.Equal(t, 1, r.count())
	require.Equal(t, DefaultGreeting, r.entry(0).text)
	require.Equal(t, model.RoleAI, r.entry(0).role)
	require.Equal(t, 0, s.History().Len())
}

func TestSession_SetStreamerAppliesToNextRequest(t *testing.T) {
	r := &fakeRenderer{}
	s := New(scripted(nil, nil, "old"), r, Options{})
	s.SetStreamer(scripted(nil, nil, "new"))

	res, err := s.Send(context.Background(), "q")
	require.NoError(t, err)
	require.Equal(t, "new", res.Answer)
}

func TestSession_IDsAreUnique(t *testing.T) {
	a := New(scripted(nil, nil), &fakeRenderer{}, Options{})
	b := New(scripted(nil, nil), &fakeRenderer{}, Options{})
	require.NotEqual(t, a.ID(), b.ID())
}

// =============================================================================
// END-TO-END WITH HTTP
// =============================================================================

func TestSession_OverHTTP(t *testing.T) {
	ack := make(chan struct{}, 8)
	chunks := []string{"Hi", " there", `SOURCES:["doc1.pdf"]`}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for i, c := range chunks {
			io.WriteString(w, c)
			flusher.Flush()
			if i == len(chunks)-1 {
				return
			}
			select {
			case <-ack:
			case <-req.Context().Done():
				return
			}
		}
	}))
	defer srv.Close()

	client := ragapi.NewClientWithConfig(&ragapi.ClientConfig{Endpoint: srv.URL})
	acking := streamerFunc(func(ctx context.Context, req ragapi.QueryRequest, cb ragapi.FragmentCallback) error {
		return client.QueryStream(ctx, req, func(f ragapi.Fragment) {
			cb(f)
			ack <- struct{}{}
		})
	})

	r := &fakeRenderer{}
	s := New(acking, r, Options{})
	res, err := s.Send(context.Background(), "Hello")
	require.NoError(t, err)

	require.Equal(t, OutcomeCompleted, res.Outcome)
	require.Equal(t, "Hi there", r.entry(1).text)
	require.Equal(t, [][]string{{"doc1.pdf"}}, r.entry(1).sources)
	require.Equal(t, []model.Turn{model.NewUserTurn("Hello"), model.NewAITurn("Hi there")}, s.History().Snapshot())
}

func TestSession_OverHTTPFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	r := &fakeRenderer{}
	s := New(ragapi.NewClientWithConfig(&ragapi.ClientConfig{Endpoint: srv.URL}), r, Options{})
	res, err := s.Send(context.Background(), "Hello")
	require.NoError(t, err)

	require.Equal(t, OutcomeFailed, res.Outcome)
	require.Equal(t, ApologyText, r.entry(1).text)
	require.Equal(t, 1, s.History().Len())

	var clientErr *ragapi.ClientError
	require.True(t, errors.As(res.Err, &clientErr))
	require.Equal(t, http.StatusBadGateway, clientErr.Status)
}
