package tui

import (
	"context"
	"testing"

	"runview/cmd/runview/ui"
	"runview/internal/form"
	"runview/internal/runclient"

	tea "github.com/charmbracelet/bubbletea"
)

// echoRunner answers every payload with itself as results and "(payload)" as AST.
type echoRunner struct{}

func (echoRunner) Run(ctx context.Context, payload string) (runclient.Result, error) {
	if err := ctx.Err(); err != nil {
		return runclient.Result{}, err
	}
	return runclient.Result{Results: payload, AST: "(" + payload + ")"}, nil
}

// blockingRunner returns only when the run is cancelled.
type blockingRunner struct{}

func (blockingRunner) Run(ctx context.Context, _ string) (runclient.Result, error) {
	<-ctx.Done()
	return runclient.Result{}, ctx.Err()
}

// NewTestModel returns a sized, ready model around runner.
func NewTestModel(t *testing.T, runner form.Runner) Model {
	t.Helper()
	m := New(Config{
		Form:     form.New(runner),
		Endpoint: "http://localhost:8000/run",
		Styles:   ui.NewStyles(ui.LightTheme()),
	})
	t.Cleanup(m.Shutdown)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func press(t *testing.T, m Model, k tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(k)
	return next.(Model), cmd
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

// collect executes cmd, expanding batches, and returns the produced messages.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

// deliver runs cmd and feeds its run and file messages back into the model.
func deliver(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for _, msg := range collect(cmd) {
		switch msg.(type) {
		case runFinishedMsg, fileLoadedMsg:
			next, _ := m.Update(msg)
			m = next.(Model)
		}
	}
	return m
}
