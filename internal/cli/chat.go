// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/bankchat/internal/config"
	"github.com/jeranaias/bankchat/internal/model"
	"github.com/jeranaias/bankchat/internal/session"
	"github.com/jeranaias/bankchat/internal/util"
)

const chatLongDesc string = `Start a line-based chat session.

Answers stream as they arrive. Press Ctrl+C while an answer is streaming to
stop it; press Ctrl+C or Ctrl+D at the prompt to leave.

Commands:
  /help      Show this help
  /history   Show the conversation so far
  /new       Start a new conversation
  /quit      Leave`

const chatShortDesc string = "Line-based chat session"

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader reads one line of user input.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// ChatCLI provides input history and line editing for the chat command.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads saved input history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line with arrow-key history and line editing.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT COMMAND
// =============================================================================

type chatCommander struct {
	app *app
}

func newChatCmd(a *app) *cobra.Command {
	cmder := &chatCommander{app: a}

	return &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := RequiresTTY("start an interactive chat"); err != nil {
				return err
			}
			return cmder.run(cmd.Context(), NewChatCLI(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

// chatREPL is one interactive chat on a terminal.
type chatREPL struct {
	app     *app
	reader  lineReader
	out     io.Writer
	errOut  io.Writer
	printer *streamPrinter
	session atomic.Pointer[session.Session]

	mu     sync.Mutex
	client session.Streamer
}

func (c *chatCommander) run(ctx context.Context, reader lineReader, out, errOut io.Writer) error {
	defer reader.Close()

	r := &chatREPL{
		app:     c.app,
		reader:  reader,
		out:     out,
		errOut:  errOut,
		printer: newStreamPrinter(out, true),
		client:  c.app.newClient(c.app.cfg),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopWatch := c.app.watchConfig(ctx, func(cfg *config.Config) {
		r.setClient(c.app.newClient(cfg))
	})
	defer stopWatch()

	// Ctrl+C while an answer streams stops that answer. At the prompt,
	// liner reads Ctrl+C itself and ends the session. SIGTERM is left to
	// its default and ends the process.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, interruptSignals...)
	defer signal.Stop(sigChan)
	go r.stopOnInterrupt(ctx, sigChan)

	r.newSession()
	return r.loop(ctx)
}

// interruptSignals stop the streaming answer without leaving the chat.
var interruptSignals = []os.Signal{os.Interrupt}

// stopOnInterrupt stops the current answer for each signal until ctx ends.
func (r *chatREPL) stopOnInterrupt(ctx context.Context, sigs <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
			if s := r.session.Load(); s != nil && s.Stop() {
				fmt.Fprintln(r.errOut, "\n"+WarningStyle.Render("[Stopping]"))
			}
		}
	}
}

func (r *chatREPL) newSession() {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := session.New(r.client, r.printer, session.Options{
		Greeting: r.app.cfg.UI.Greeting,
		Logger:   r.app.logger,
	})
	r.session.Store(s)
	r.printer.Flush()
}

// setClient points the current and future sessions at client.
func (r *chatREPL) setClient(client session.Streamer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.client = client
	if s := r.session.Load(); s != nil {
		s.SetStreamer(client)
	}
}

func (r *chatREPL) loop(ctx context.Context) error {
	for {
		input, err := r.reader.ReadInput(promptStyle.Render("bankchat> "))
		if err != nil {
			// Ctrl+C (liner.ErrPromptAborted), Ctrl+D (io.EOF) or a closed terminal
			fmt.Fprintln(r.out)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if !r.handleSlashCommand(input) {
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}

		r.ask(ctx, input)
	}
}

func (r *chatREPL) ask(ctx context.Context, question string) {
	s := r.session.Load()
	res, err := s.Send(ctx, question)
	if err != nil {
		if !errors.Is(err, session.ErrEmptyQuestion) {
			fmt.Fprintf(r.errOut, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
		return
	}

	if res.Outcome == session.OutcomeFailed {
		fmt.Fprintln(r.errOut, DimStyle.Render("("+describeError(res.Err, r.app.cfg.Server.Endpoint)+")"))
	}
	r.app.logger.Debug("answer finished",
		zap.String("outcome", res.Outcome.String()),
		zap.Duration("duration", res.Duration),
	)
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand runs a /command. It returns false when the chat should end.
func (r *chatREPL) handleSlashCommand(input string) bool {
	parts := strings.Fields(input)
	switch strings.ToLower(parts[0]) {
	case "/quit", "/exit", "/q":
		return false
	case "/help", "/h", "/?":
		r.printHelp()
	case "/history":
		r.printHistory()
	case "/new", "/clear":
		fmt.Fprintln(r.out, DimStyle.Render("Starting a new conversation."))
		r.newSession()
	default:
		fmt.Fprintf(r.errOut, "%s unknown command %s (try /help)\n", WarningStyle.Render("[!]"), parts[0])
	}
	return true
}

func (r *chatREPL) printHelp() {
	fmt.Fprintln(r.out, TitleStyle.Render("Commands"))
	for _, c := range [][2]string{
		{"/help", "Show this help"},
		{"/history", "Show the conversation so far"},
		{"/new", "Start a new conversation"},
		{"/quit", "Leave"},
	} {
		fmt.Fprintf(r.out, "  %s %s\n", commandStyle.Render(fmt.Sprintf("%-10s", c[0])), c[1])
	}
	fmt.Fprintln(r.out, DimStyle.Render("Ctrl+C stops an answer while it streams."))
}

func (r *chatREPL) printHistory() {
	turns := r.session.Load().History().Snapshot()
	if len(turns) == 0 {
		fmt.Fprintln(r.out, DimStyle.Render("No messages yet."))
		return
	}

	width := GetTerminalWidth() - 14
	for _, t := range turns {
		label := userLabelStyle.Render(fmt.Sprintf("%-10s", t.Role.DisplayName()))
		if t.Role == model.RoleAI {
			label = assistantLabelStyle.Render(fmt.Sprintf("%-10s", t.Role.DisplayName()))
		}
		fmt.Fprintf(r.out, "%s %s\n", label, util.Preview(t.Content, width))
	}
}
