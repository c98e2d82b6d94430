// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/bankchat/internal/model"
	"github.com/jeranaias/bankchat/internal/session"
	"github.com/jeranaias/bankchat/internal/ui/markdown"
)

const askLongDesc string = `Ask a single question and print the answer.

The answer streams to stdout as it arrives, followed by the source documents.
Ctrl+C stops the answer. The exit status is non-zero if the answer was
stopped or could not be retrieved.

Examples:
  bankchat ask "How do I order a replacement card?"
  bankchat ask --markdown What are the wire transfer fees`

const askShortDesc string = "Ask a single question"

type askCommander struct {
	app      *app
	markdown bool
}

func newAskCmd(a *app) *cobra.Command {
	cmder := &askCommander{app: a}

	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return cmder.run(ctx, cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}

	cmd.Flags().BoolVarP(&cmder.markdown, "markdown", "m", false, "Render the finished answer as markdown instead of streaming it")

	return cmd
}

func (c *askCommander) run(ctx context.Context, out io.Writer, question string) error {
	if strings.TrimSpace(question) == "" {
		return &ValidationError{Field: "question", Reason: "must not be empty", Example: `bankchat ask "What is my card limit?"`}
	}

	var renderer session.Renderer
	var collector *answerCollector
	if c.markdown {
		collector = &answerCollector{}
		renderer = collector
	} else {
		renderer = newStreamPrinter(out, false)
	}

	sess := session.New(c.app.newClient(c.app.cfg), renderer, session.Options{Logger: c.app.logger})
	res, err := sess.Send(ctx, question)
	if err != nil {
		return &ValidationError{Field: "question", Value: question, Reason: err.Error()}
	}

	if collector != nil {
		md := markdown.New(GetTerminalWidth()-2, termenv.HasDarkBackground())
		fmt.Fprintln(out, md.Render(collector.text()))
		if sources := collector.sources(); len(sources) > 0 {
			fmt.Fprintln(out, sourcesStyle.Render("Sources: "+strings.Join(sources, ", ")))
		}
	}

	c.app.logger.Info("ask finished",
		zap.String("outcome", res.Outcome.String()),
		zap.Duration("duration", res.Duration),
	)

	switch res.Outcome {
	case session.OutcomeStopped:
		return &CommandError{Command: "ask", Action: "answer", Reason: "stopped", Err: res.Err}
	case session.OutcomeFailed:
		return &CommandError{
			Command: "ask",
			Action:  "answer",
			Reason:  describeError(res.Err, c.app.cfg.Server.Endpoint),
			Err:     res.Err,
		}
	}
	return nil
}

// =============================================================================
// ANSWER COLLECTOR
// =============================================================================

// answerCollector is a session.Renderer that only remembers the last answer,
// for output that must be complete before it is formatted.
type answerCollector struct {
	answer *collectedEntry
	names  []string
}

type collectedEntry struct {
	value string
}

func (e *collectedEntry) Text() string     { return e.value }
func (e *collectedEntry) SetText(s string) { e.value = s }

func (c *answerCollector) AppendMessage(text string, role model.Role) session.Handle {
	e := &collectedEntry{value: text}
	if role == model.RoleAI {
		c.answer = e
	}
	return e
}

func (c *answerCollector) AppendSources(h session.Handle, names []string) {
	if h == session.Handle(c.answer) {
		c.names = append([]string(nil), names...)
	}
}

func (c *answerCollector) ScrollToBottom()    {}
func (c *answerCollector) SetGenerating(bool) {}

func (c *answerCollector) text() string {
	if c.answer == nil {
		return ""
	}
	return c.answer.value
}

func (c *answerCollector) sources() []string {
	return c.names
}
