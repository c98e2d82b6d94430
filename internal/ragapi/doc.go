// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ragapi provides the HTTP client for the question-answering service.
//
// A query is a single POST of the question plus prior turns. The answer comes
// back as a streamed body which is decoded chunk by chunk and classified into
// fragments: answer text, or a list of source names that the answer cites.
//
// # Key Types
//
//   - Client: HTTP client for the answering endpoint
//   - QueryRequest: Request body with question and history
//   - Fragment: One classified piece of the streamed answer
//   - StreamReader: Reads a response body in prefix or NDJSON framing
//   - ChunkDecoder: Incremental UTF-8 decoder that tolerates split sequences
//   - ClientError: Typed error with ErrorType for abort, transport and stream failures
//
// # Framing
//
// In prefix framing each transport chunk is either answer text or the literal
// "SOURCES:" followed by a JSON array of strings. NDJSON framing carries one
// typed event per line and removes the ambiguity of answer text that happens
// to begin with "SOURCES:".
//
// # Usage
//
//	client := ragapi.NewClientWithConfig(&ragapi.ClientConfig{Endpoint: url})
//	err := client.QueryStream(ctx, ragapi.QueryRequest{Question: q, History: prior},
//	    func(f ragapi.Fragment) {
//	        switch f.Kind {
//	        case ragapi.FragmentText:
//	            fmt.Print(f.Text)
//	        case ragapi.FragmentSources:
//	            sources = f.Sources
//	        }
//	    })
//	if ragapi.IsAborted(err) {
//	    // the caller cancelled ctx
//	}
package ragapi
