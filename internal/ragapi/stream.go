// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ragapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"
)

// readBufferSize bounds a single transport read in prefix framing.
const readBufferSize = 32 * 1024

// =============================================================================
// STREAM STATS
// =============================================================================

// StreamStats summarizes one processed stream.
type StreamStats struct {
	Chunks          int
	Bytes           int64
	TextFragments   int
	SourceFragments int
	Malformed       int

	// TimeToFirst is the delay until the first fragment was delivered.
	TimeToFirst time.Duration
	Duration    time.Duration
}

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader reads an answer body and delivers classified fragments.
type StreamReader struct {
	body    io.Reader
	framing Framing
	decoder *ChunkDecoder
	lines   *bufio.Reader

	stats     StreamStats
	startTime time.Time
	gotFirst  bool
}

// NewStreamReader creates a stream reader for r. FramingAuto is treated as
// FramingPrefix here; the client resolves auto from response headers.
func NewStreamReader(r io.Reader, framing Framing) *StreamReader {
	if framing != FramingNDJSON {
		framing = FramingPrefix
	}
	s := &StreamReader{
		body:      r,
		framing:   framing,
		decoder:   NewChunkDecoder(),
		startTime: time.Now(),
	}
	if framing == FramingNDJSON {
		s.lines = bufio.NewReader(r)
	}
	return s
}

// Framing returns the framing this reader applies.
func (s *StreamReader) Framing() Framing {
	return s.framing
}

// Stats returns counters for what has been read so far.
func (s *StreamReader) Stats() StreamStats {
	st := s.stats
	st.Duration = time.Since(s.startTime)
	return st
}

// Process reads the stream and calls the callback for each fragment.
// Blocks until the body is exhausted, a read fails, or ctx is cancelled.
func (s *StreamReader) Process(ctx context.Context, callback FragmentCallback) error {
	if s.framing == FramingNDJSON {
		return s.processLines(ctx, callback)
	}
	return s.processChunks(ctx, callback)
}

// processChunks treats every transport read as one chunk.
func (s *StreamReader) processChunks(ctx context.Context, callback FragmentCallback) error {
	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := s.body.Read(buf)
		if n > 0 {
			s.stats.Chunks++
			s.stats.Bytes += int64(n)
			if text := s.decoder.Decode(buf[:n]); text != "" {
				s.deliver(ClassifyChunk(text), callback)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if tail := s.decoder.Flush(); tail != "" {
					s.deliver(ClassifyChunk(tail), callback)
				}
				return nil
			}
			return err
		}
	}
}

// processLines reads one NDJSON event per line.
func (s *StreamReader) processLines(ctx context.Context, callback FragmentCallback) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := s.lines.ReadBytes('\n')
		if len(line) > 0 {
			s.stats.Chunks++
			s.stats.Bytes += int64(len(line))
			if evErr := s.handleLine(line, callback); evErr != nil {
				return evErr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// handleLine decodes one event. A server error event ends the stream.
func (s *StreamReader) handleLine(line []byte, callback FragmentCallback) error {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}

	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		s.deliver(Fragment{
			Kind: FragmentText,
			Text: s.decoder.Decode(line) + s.decoder.Flush(),
			Err:  &ClientError{Type: ErrTypeMalformed, Message: "malformed stream event", Cause: err},
		}, callback)
		return nil
	}

	switch ev.Type {
	case EventText:
		if ev.Content != "" {
			s.deliver(Fragment{Kind: FragmentText, Text: ev.Content}, callback)
		}
	case EventSources:
		if ev.Sources == nil {
			ev.Sources = []string{}
		}
		s.deliver(Fragment{Kind: FragmentSources, Sources: ev.Sources}, callback)
	case EventError:
		msg := ev.Error
		if msg == "" {
			msg = "server reported an error"
		}
		return &ClientError{Type: ErrTypeServer, Message: msg}
	}
	// Unknown event types are reserved for future use and skipped.
	return nil
}

func (s *StreamReader) deliver(f Fragment, callback FragmentCallback) {
	if !s.gotFirst {
		s.gotFirst = true
		s.stats.TimeToFirst = time.Since(s.startTime)
	}
	switch {
	case f.Err != nil:
		s.stats.Malformed++
		s.stats.TextFragments++
	case f.Kind == FragmentSources:
		s.stats.SourceFragments++
	default:
		s.stats.TextFragments++
	}
	callback(f)
}
