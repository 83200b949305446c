// Package form holds the state of the payload form shared by every surface.
//
// A Form owns the current payload, the last successful result and the outcome of
// the latest submission. Submissions are numbered; starting a new one cancels the
// previous one, and a completion is applied only if it belongs to the latest
// submission. Failures never touch the displayed result.
package form

import (
	"context"
	"errors"
	"sync"
	"time"

	"runview/internal/logging"
	"runview/internal/runclient"

	"github.com/google/uuid"
)

// Runner performs one evaluation. *runclient.Client satisfies it.
type Runner interface {
	Run(ctx context.Context, payload string) (runclient.Result, error)
}

// Ticket identifies one submission. It is returned by Begin and handed back to Complete.
type Ticket struct {
	Seq     uint64
	Payload string
	Ctx     context.Context
}

// Form is safe for concurrent use.
type Form struct {
	mu        sync.Mutex
	runner    Runner
	sessionID string
	audit     *logging.AuditLogger

	payload   string
	result    runclient.Result
	hasResult bool
	outcome   Outcome

	seq     uint64
	cancel  context.CancelFunc
	started time.Time
}

// New creates an empty form submitting through runner.
func New(runner Runner) *Form {
	id := uuid.NewString()
	return &Form{
		runner:    runner,
		sessionID: id,
		audit:     logging.AuditWithSession(id),
	}
}

// SessionID identifies this form instance in logs.
func (f *Form) SessionID() string {
	return f.sessionID
}

// Opened records which surface is driving this form in the audit trail.
func (f *Form) Opened(surface string) {
	f.audit.SessionStart(surface)
	logging.Boot("[%s] form opened by %s", f.sessionID, surface)
}

// SetInput replaces the payload with text. No validation, no length limit.
func (f *Form) SetInput(text string) {
	f.mu.Lock()
	f.payload = text
	f.mu.Unlock()
}

// Payload returns the current payload.
func (f *Form) Payload() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payload
}

// Clear resets the payload to empty. Results and outcome are untouched.
func (f *Form) Clear() {
	f.mu.Lock()
	f.payload = ""
	f.mu.Unlock()
	logging.UIDebug("[%s] payload cleared", f.sessionID)
}

// Begin starts a submission of the current payload. Any in-flight submission is
// cancelled and will not be applied. The returned ticket's context is derived
// from parent and is cancelled on supersede, Cancel, or completion.
func (f *Form) Begin(parent context.Context) Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		f.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	f.cancel = cancel
	f.seq++
	f.outcome = Outcome{Status: StatusPending, Seq: f.seq}
	f.started = time.Now()

	logging.API("[%s] run #%d started (%d bytes)", f.sessionID, f.seq, len(f.payload))
	f.audit.RunStart(f.seq, len(f.payload))
	return Ticket{Seq: f.seq, Payload: f.payload, Ctx: ctx}
}

// Complete records the result of the submission identified by t. It returns
// false, leaving the form untouched, when a newer submission has started since.
// On error the previous result stays in place.
func (f *Form) Complete(t Ticket, res runclient.Result, err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if t.Seq != f.seq {
		logging.APIDebug("[%s] run #%d superseded by #%d, response dropped", f.sessionID, t.Seq, f.seq)
		f.audit.RunDropped(t.Seq, logging.AuditRunSuperseded)
		return false
	}
	if f.outcome.Status != StatusPending {
		// Already resolved, e.g. by Cancel.
		return false
	}

	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}

	f.audit.RunComplete(t.Seq, time.Since(f.started), err)

	if err != nil {
		f.outcome = Outcome{Status: StatusError, Seq: t.Seq, Err: err}
		if errors.Is(err, context.Canceled) {
			logging.API("[%s] run #%d cancelled", f.sessionID, t.Seq)
		} else {
			logging.APIError("[%s] run #%d failed: %v", f.sessionID, t.Seq, err)
		}
		return true
	}

	f.result = res
	f.hasResult = true
	f.outcome = Outcome{Status: StatusSuccess, Seq: t.Seq}
	logging.API("[%s] run #%d succeeded (results=%d bytes, ast=%d bytes)", f.sessionID, t.Seq, len(res.Results), len(res.AST))
	return true
}

// Execute performs the request for t through the runner and applies it.
// It reports whether the response was applied.
func (f *Form) Execute(t Ticket) bool {
	res, err := f.runner.Run(t.Ctx, t.Payload)
	return f.Complete(t, res, err)
}

// Submit runs the current payload synchronously and returns the resulting outcome.
func (f *Form) Submit(ctx context.Context) Outcome {
	t := f.Begin(ctx)
	f.Execute(t)
	return f.Outcome()
}

// Cancel aborts the in-flight submission, if any. Its outcome becomes an error
// wrapping context.Canceled; the displayed result is unchanged.
func (f *Form) Cancel() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.outcome.Status != StatusPending {
		return false
	}
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.outcome = Outcome{Status: StatusError, Seq: f.seq, Err: context.Canceled}
	logging.API("[%s] run #%d cancelled by user", f.sessionID, f.seq)
	f.audit.RunDropped(f.seq, logging.AuditRunCancelled)
	return true
}

// Pending reports whether a submission is in flight.
func (f *Form) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcome.Status == StatusPending
}

// Outcome returns the latest submission's outcome.
func (f *Form) Outcome() Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcome
}

// Result returns the last applied result and whether one exists.
func (f *Form) Result() (runclient.Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.hasResult
}

// Snapshot returns a consistent copy of the form.
func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot{
		SessionID: f.sessionID,
		Payload:   f.payload,
		Result:    f.result,
		HasResult: f.hasResult,
		Outcome:   f.outcome,
	}
}
