package tui

import (
	"runview/internal/logging"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Update routes messages to the form, the editor and the output panes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.refreshPanes()
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case runFinishedMsg:
		if !msg.applied {
			logging.UIDebug("run #%d finished after being superseded", msg.seq)
		}
		m.refreshPanes()
		return m, nil

	case fileLoadedMsg:
		return m.handleFileLoaded(msg)

	case spinner.TickMsg:
		// Let the tick chain die once nothing is running.
		if !m.form.Pending() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	// Pastes and blinks land here.
	return m.editInput(msg)
}

// editInput forwards msg to the editor and copies any change into the form.
func (m Model) editInput(msg tea.Msg) (Model, tea.Cmd) {
	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.syncInput(before)
	return m, cmd
}

// syncInput copies the editor into the form unless the form holds a verbatim
// payload the editor has not changed.
func (m *Model) syncInput(before string) {
	after := m.input.Value()
	if m.verbatim && after == before {
		return
	}
	m.verbatim = false
	m.form.SetInput(after)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Shutdown()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.form.Cancel() {
			m.refreshPanes()
			return m, nil
		}
		m.Shutdown()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Run):
		return m.startRun()

	case key.Matches(msg, m.keys.Clear):
		m.input.Reset()
		m.form.Clear()
		m.verbatim = false
		m.notice = ""
		return m, nil

	case key.Matches(msg, m.keys.Load):
		return m.requestLoad()

	case key.Matches(msg, m.keys.Focus):
		return m.cycleFocus()

	case key.Matches(msg, m.keys.Indent):
		if m.focus != PaneInput {
			return m.cycleFocus()
		}
		// The editor stores tabs as spaces.
		before := m.input.Value()
		m.input.InsertString("\t")
		m.syncInput(before)
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case PaneResults:
		m.resultsVP, cmd = m.resultsVP.Update(msg)
	case PaneAST:
		m.astVP, cmd = m.astVP.Update(msg)
	default:
		return m.editInput(msg)
	}
	return m, cmd
}

func (m Model) cycleFocus() (tea.Model, tea.Cmd) {
	m.focus = (m.focus + 1) % paneCount
	if m.focus == PaneInput {
		return m, m.input.Focus()
	}
	m.input.Blur()
	return m, nil
}
