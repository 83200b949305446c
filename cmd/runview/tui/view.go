package tui

import (
	"strings"

	"runview/internal/form"
	"runview/internal/logging"

	"github.com/charmbracelet/lipgloss"
)

const (
	inputHeight = 5
	minPane     = 3
	// header, three labels, status line, divider, help, plus borders of three boxes
	chromeHeight = 1 + 3 + 1 + 1 + 1 + 6
)

// layout sizes the editor and panes to the terminal.
func (m *Model) layout() {
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	m.input.SetWidth(w)
	m.input.SetHeight(inputHeight)

	paneH := (m.height - chromeHeight - inputHeight) / 2
	if paneH < minPane {
		paneH = minPane
	}
	m.resultsVP.Width, m.resultsVP.Height = w, paneH
	m.astVP.Width, m.astVP.Height = w, paneH
	m.help.Width = m.width

	if m.renderMarkdown {
		m.renderer = newRenderer(m.styles.Theme.IsDark, w)
	}
}

// refreshPanes copies the form's latest state into the output panes.
func (m *Model) refreshPanes() {
	snap := m.form.Snapshot()
	if !snap.HasResult {
		m.resultsVP.SetContent(m.styles.Muted.Render("no results yet"))
		m.astVP.SetContent("")
		return
	}
	wrap := lipgloss.NewStyle().Width(m.resultsVP.Width)
	m.resultsVP.SetContent(wrap.Render(snap.Result.Results))
	m.astVP.SetContent(m.renderAST(snap.Result.AST))
}

func (m Model) renderAST(ast string) string {
	if !m.renderMarkdown || m.renderer == nil || ast == "" {
		return lipgloss.NewStyle().Width(m.astVP.Width).Render(ast)
	}
	out, err := m.renderer.Render(codeFence(ast))
	if err != nil {
		logging.UIDebug("AST markdown render failed, showing raw text: %v", err)
		return ast
	}
	return strings.Trim(out, "\n")
}

// codeFence wraps s in a fence longer than any backtick run inside it.
func codeFence(s string) string {
	longest, run := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	n := 3
	if longest >= n {
		n = longest + 1
	}
	fence := strings.Repeat("`", n)
	return fence + "\n" + s + "\n" + fence + "\n"
}

// View renders the form.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	snap := m.form.Snapshot()

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		m.styles.Header.Render("runview"),
		" ",
		m.styles.Muted.Render(m.endpoint),
		"  ",
		m.renderStatus(snap.Outcome),
	)

	parts := []string{
		header,
		m.styles.Label.Render("PAYLOAD:"),
		m.styles.Frame(true, m.focus == PaneInput).Render(m.input.View()),
		m.styles.Label.Render("RESULTS:"),
		m.styles.Frame(false, m.focus == PaneResults).Render(m.resultsVP.View()),
		m.styles.Label.Render("AST:"),
		m.styles.Frame(false, m.focus == PaneAST).Render(m.astVP.View()),
	}

	if snap.Outcome.Status == form.StatusError && !snap.Outcome.Cancelled() {
		parts = append(parts, m.styles.Error.Width(m.width).Render("✗ "+snap.Outcome.Message()))
	}
	if m.notice != "" {
		parts = append(parts, m.styles.Muted.Render(m.notice))
	}
	parts = append(parts, m.styles.RenderDivider(m.width), m.help.View(m.keys))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderStatus(o form.Outcome) string {
	switch o.Status {
	case form.StatusPending:
		return m.spinner.View() + " " + m.styles.Bold.Render(o.Message())
	case form.StatusSuccess:
		return m.styles.Success.Render("✓ " + o.Message())
	case form.StatusError:
		if o.Cancelled() {
			return m.styles.Warning.Render(o.Message())
		}
		return m.styles.Error.Render("✗ Error")
	}
	return m.styles.Muted.Render(o.Message())
}
