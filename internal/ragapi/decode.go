// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ragapi

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ChunkDecoder decodes a byte stream into text one chunk at a time.
//
// A multi-byte character split across two chunks is held back until the rest
// arrives, so no chunk ever decodes to a partial character. Invalid bytes are
// replaced with U+FFFD.
//
// A ChunkDecoder is not safe for concurrent use.
type ChunkDecoder struct {
	t       transform.Transformer
	pending []byte
}

// NewChunkDecoder creates a UTF-8 chunk decoder.
func NewChunkDecoder() *ChunkDecoder {
	return &ChunkDecoder{t: unicode.UTF8.NewDecoder()}
}

// Decode decodes p, prefixed by any bytes held back from the previous call.
// It may return "" when p only completes part of a character.
func (d *ChunkDecoder) Decode(p []byte) string {
	return d.decode(p, false)
}

// Flush decodes whatever is still held back. An incomplete trailing sequence
// becomes U+FFFD.
func (d *ChunkDecoder) Flush() string {
	return d.decode(nil, true)
}

// Pending returns the number of bytes held back for the next chunk.
func (d *ChunkDecoder) Pending() int {
	return len(d.pending)
}

func (d *ChunkDecoder) decode(p []byte, atEOF bool) string {
	src := make([]byte, 0, len(d.pending)+len(p))
	src = append(src, d.pending...)
	src = append(src, p...)
	d.pending = nil
	if len(src) == 0 {
		return ""
	}

	// Every input byte expands to at most one U+FFFD (3 bytes).
	dst := make([]byte, 3*len(src)+utf8.UTFMax)
	nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
	if err == transform.ErrShortSrc {
		d.pending = append([]byte(nil), src[nSrc:]...)
	}
	return string(dst[:nDst])
}
