package tui

import (
	"fmt"
	"os"
	"strings"

	"runview/internal/logging"

	tea "github.com/charmbracelet/bubbletea"
)

// runFinishedMsg reports that the run identified by seq returned.
// applied is false when a newer run or a cancel got there first.
type runFinishedMsg struct {
	seq     uint64
	applied bool
}

// fileLoadedMsg carries the contents of a payload file.
type fileLoadedMsg struct {
	path    string
	content string
	err     error
}

// startRun submits the form's payload, which tracks every edit. The request runs
// in a tea.Cmd so the UI keeps drawing; a run started while another is in flight
// supersedes it.
func (m Model) startRun() (Model, tea.Cmd) {
	ticket := m.form.Begin(m.shutdownCtx)
	m.notice = ""
	m.refreshPanes()

	f := m.form
	run := func() tea.Msg {
		return runFinishedMsg{seq: ticket.Seq, applied: f.Execute(ticket)}
	}
	return m, tea.Batch(m.spinner.Tick, run)
}

func loadFileCmd(path string) tea.Cmd {
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return fileLoadedMsg{path: path, err: fmt.Errorf("load %s: %w", path, err)}
		}
		return fileLoadedMsg{path: path, content: string(data)}
	}
}

func (m Model) handleFileLoaded(msg fileLoadedMsg) (Model, tea.Cmd) {
	logging.AuditWithSession(m.form.SessionID()).FileLoad(msg.path, len(msg.content), msg.err)
	if msg.err != nil {
		logging.UIDebug("payload file load failed: %v", msg.err)
		m.notice = msg.err.Error()
		return m, nil
	}
	m.form.SetInput(msg.content)
	m.input.SetValue(msg.content)
	m.verbatim = true
	m.notice = fmt.Sprintf("loaded %s (%d bytes)", msg.path, len(msg.content))
	if m.input.Value() != msg.content {
		m.notice += "; the editor shows a normalized copy, the file is sent as-is until you edit it"
	}
	logging.UI("payload loaded from %s", msg.path)
	return m, nil
}

func (m Model) requestLoad() (Model, tea.Cmd) {
	path := strings.TrimSpace(m.input.Value())
	if path == "" || strings.Contains(path, "\n") {
		m.notice = "type a file path into the input, then press ctrl+o"
		return m, nil
	}
	return m, loadFileCmd(path)
}
