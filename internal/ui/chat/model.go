// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/bankchat/internal/session"
	"github.com/jeranaias/bankchat/internal/transcript"
	"github.com/jeranaias/bankchat/internal/ui/markdown"
	"github.com/jeranaias/bankchat/internal/ui/styles"
)

// Options configures a chat screen.
type Options struct {
	// Client answers questions.
	Client session.Streamer
	// Greeting opens every session. Empty disables it.
	Greeting string
	// Markdown renders finished answers with glamour.
	Markdown bool
	// Endpoint is shown in the header.
	Endpoint string
	// Theme defaults to styles.NewTheme("auto").
	Theme  *styles.Theme
	Logger *zap.Logger
}

// Model is the chat screen. It must be used as a pointer: the input
// controller edits the embedded text input in place.
type Model struct {
	opts   Options
	theme  *styles.Theme
	keys   KeyMap
	logger *zap.Logger

	// Widgets
	help     help.Model
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	md       *markdown.Renderer

	// Conversation
	transcript *transcript.Transcript
	session    *session.Session
	controller *session.InputController

	// ctx is canceled on quit so an in-flight request never outlives the
	// program.
	ctx  context.Context
	quit context.CancelFunc

	width    int
	height   int
	ready    bool
	showHelp bool
	ticking  bool
	status   string

	lastVersion uint64
	lastScroll  uint64
}

// New creates the chat screen with a fresh session.
func New(opts Options) *Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme("auto")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ti := textinput.New()
	ti.Placeholder = "Ask a question..."
	ti.CharLimit = 4096
	ti.Prompt = "> "
	ti.PromptStyle = theme.InputPrompt
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    spinner.Line.FPS,
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Model{
		opts:     opts,
		theme:    theme,
		keys:     DefaultKeyMap(),
		logger:   logger,
		help:     help.New(),
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		md:       markdown.New(76, theme.IsDark),
		ctx:      ctx,
		quit:     cancel,
	}
	m.newSession()
	return m
}

// newSession replaces the transcript and session, like reloading the page.
// Any in-flight request on the old session is stopped.
func (m *Model) newSession() {
	if m.session != nil {
		m.session.Stop()
	}
	m.transcript = transcript.New()
	m.session = session.New(m.opts.Client, m.transcript, session.Options{
		Greeting: m.opts.Greeting,
		Logger:   m.logger,
	})
	m.controller = session.NewInputController(m.session)
	m.status = ""
	m.lastVersion = 0
	m.lastScroll = 0
	m.refresh()
}

// Session returns the current session.
func (m *Model) Session() *session.Session {
	return m.session
}

// Transcript returns the current transcript.
func (m *Model) Transcript() *transcript.Transcript {
	return m.transcript
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case streamTickMsg:
		m.sync()
		if m.session.IsGenerating() {
			return m, streamTickCmd()
		}
		m.ticking = false
		return m, nil

	case exchangeDoneMsg:
		if msg.SessionID != m.session.ID() {
			return m, nil
		}
		m.status = outcomeStatus(msg.Result)
		m.sync()
		return m, nil

	case spinner.TickMsg:
		if !m.session.IsGenerating() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ConfigChangedMsg:
		m.applyConfig(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.session.Stop()
		m.quit()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Stop):
		if m.session.Stop() {
			m.status = "Stopping..."
		}
		return m, nil

	case key.Matches(msg, m.keys.Button):
		x, err := m.controller.Press(m.ctx, &m.input)
		return m.afterSubmit(x, err)

	case key.Matches(msg, m.keys.Submit):
		x, err := m.controller.Activate(m.ctx, &m.input)
		return m.afterSubmit(x, err)

	case key.Matches(msg, m.keys.NewSession):
		m.newSession()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.layout()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// afterSubmit starts a returned exchange. Rejected submits are silent.
func (m *Model) afterSubmit(x *session.Exchange, err error) (tea.Model, tea.Cmd) {
	if err != nil {
		if !errors.Is(err, session.ErrEmptyQuestion) && !errors.Is(err, session.ErrGenerating) {
			m.status = err.Error()
		}
		return m, nil
	}
	if x == nil {
		// The button stopped the current answer
		m.status = "Stopping..."
		return m, nil
	}

	m.status = ""
	m.sync()

	cmds := []tea.Cmd{runExchangeCmd(m.session.ID(), x), m.spinner.Tick}
	if !m.ticking {
		m.ticking = true
		cmds = append(cmds, streamTickCmd())
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) applyConfig(msg ConfigChangedMsg) {
	if msg.Client != nil {
		m.opts.Client = msg.Client
		m.session.SetStreamer(msg.Client)
	}
	if cfg := msg.Config; cfg != nil {
		m.opts.Greeting = cfg.UI.Greeting
		m.opts.Markdown = cfg.UI.Markdown
		m.opts.Endpoint = cfg.Server.Endpoint
		m.refresh()
	}
	m.status = "Configuration reloaded"
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)
	m.ready = true
	m.layout()
}

// layout sizes the viewport to what the chrome leaves over.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	chrome := headerHeight + inputHeight + statusHeight + m.helpHeight()
	h := m.height - chrome
	if h < 3 {
		h = 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
	m.input.Width = m.width - buttonWidth - 6
	m.md.SetWidth(m.theme.ContentWidth() - 2)
	m.refresh()
}

// sync redraws when the transcript changed and follows scroll requests.
func (m *Model) sync() {
	if v := m.transcript.Version(); v != m.lastVersion {
		m.refresh()
	}
	if seq := m.transcript.ScrollSeq(); seq != m.lastScroll {
		m.lastScroll = seq
		m.viewport.GotoBottom()
	}
}

func (m *Model) refresh() {
	m.lastVersion = m.transcript.Version()
	m.viewport.SetContent(m.renderTranscript())
}

func outcomeStatus(r session.Result) string {
	switch r.Outcome {
	case session.OutcomeStopped:
		return "Answer stopped"
	case session.OutcomeFailed:
		return "Request failed"
	default:
		return ""
	}
}
