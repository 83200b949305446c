package tui

import "runview/internal/logging"

// Shutdown cancels any in-flight run and the model's root context.
// Safe to call more than once.
func (m *Model) Shutdown() {
	m.shutdownOnce.Do(func() {
		if m.form.Cancel() {
			logging.UIDebug("in-flight run cancelled on shutdown")
		}
		if m.shutdownCancel != nil {
			m.shutdownCancel()
		}
	})
}
