// Package tui implements the interactive terminal form: a payload editor, the
// results and AST panes, and a status line for the latest run.
package tui

import (
	"context"
	"sync"

	"runview/cmd/runview/ui"
	"runview/internal/form"
	"runview/internal/logging"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// Pane identifies which region receives key input.
type Pane int

const (
	PaneInput Pane = iota
	PaneResults
	PaneAST
	paneCount
)

// Config configures a terminal form.
type Config struct {
	Form           *form.Form
	Endpoint       string // shown in the header
	Styles         ui.Styles
	RenderMarkdown bool // render the AST pane through glamour
}

// Model is the bubbletea model for the terminal form.
type Model struct {
	form     *form.Form
	endpoint string

	input     textarea.Model
	resultsVP viewport.Model
	astVP     viewport.Model
	spinner   spinner.Model
	help      help.Model
	keys      keyMap
	styles    ui.Styles

	renderer       *glamour.TermRenderer
	renderMarkdown bool

	focus  Pane
	width  int
	height int
	ready  bool
	notice string

	// verbatim is set while the form holds text the editor may show
	// normalized (tabs, CR, very long files). The first edit clears it.
	verbatim bool

	shutdownOnce   *sync.Once
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// New builds a model around cfg.Form. The form's current payload seeds the editor.
func New(cfg Config) Model {
	ta := textarea.New()
	ta.Placeholder = "Type a payload, ctrl+r to run"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.SetWidth(80)
	ta.SetHeight(inputHeight)
	ta.SetValue(cfg.Form.Payload())
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = cfg.Styles.Spinner

	h := help.New()
	h.Styles.ShortKey = cfg.Styles.Bold
	h.Styles.ShortDesc = cfg.Styles.Muted
	h.Styles.ShortSeparator = cfg.Styles.Divider

	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		form:           cfg.Form,
		endpoint:       cfg.Endpoint,
		input:          ta,
		resultsVP:      viewport.New(80, 6),
		astVP:          viewport.New(80, 6),
		spinner:        sp,
		help:           h,
		keys:           newKeyMap(),
		styles:         cfg.Styles,
		renderMarkdown: cfg.RenderMarkdown,
		shutdownOnce:   &sync.Once{},
		shutdownCtx:    ctx,
		shutdownCancel: cancel,
		verbatim:       ta.Value() != cfg.Form.Payload(),
	}
	if m.renderMarkdown {
		m.renderer = newRenderer(m.styles.Theme.IsDark, 80)
	}
	m.refreshPanes()
	return m
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Focused returns the pane receiving key input.
func (m Model) Focused() Pane {
	return m.focus
}

// Run drives the terminal form until the user quits.
func Run(cfg Config) error {
	m := New(cfg)
	cfg.Form.Opened("tui")
	logging.UI("terminal form started (session %s, endpoint %s)", cfg.Form.SessionID(), cfg.Endpoint)

	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.Shutdown()
	} else {
		m.Shutdown()
	}
	logging.UI("terminal form exited")
	return err
}

func newRenderer(dark bool, width int) *glamour.TermRenderer {
	style := "light"
	if dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		logging.UIDebug("markdown renderer unavailable: %v", err)
		return nil
	}
	return r
}
