// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the bankchat command line with cobra.
//
// # Commands
//
//   - bankchat: full-screen chat (Bubble Tea)
//   - chat: line-based chat with history and line editing
//   - ask: one question, answer streamed to stdout
//   - config: show, init and path
//   - version: build information
//
// Global flags (--config, --endpoint, --framing, --debug, --no-color) are
// resolved once in the root command's PersistentPreRunE into an app value
// that every command reads.
//
// # Usage
//
//	func main() {
//	    os.Exit(cli.Execute())
//	}
package cli
