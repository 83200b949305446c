package form

import (
	"context"
	"errors"

	"runview/internal/runclient"
)

// Status is the state of the latest submission.
type Status int

const (
	StatusIdle    Status = iota // nothing submitted yet
	StatusPending               // request in flight
	StatusSuccess               // latest request succeeded
	StatusError                 // latest request failed or was cancelled
)

// String returns the display name for each status
func (s Status) String() string {
	names := []string{"Idle", "Pending", "Success", "Error"}
	if int(s) < len(names) && s >= 0 {
		return names[s]
	}
	return "Unknown"
}

// Outcome describes the latest submission.
type Outcome struct {
	Status Status
	Seq    uint64 // submission sequence number, 0 before the first run
	Err    error  // set when Status is StatusError
}

// Cancelled reports whether the submission ended because it was cancelled or superseded.
func (o Outcome) Cancelled() bool {
	return o.Status == StatusError && errors.Is(o.Err, context.Canceled)
}

// Snapshot is an immutable copy of the form handed to renderers.
type Snapshot struct {
	SessionID string
	Payload   string
	Result    runclient.Result // last applied success; zero before the first one
	HasResult bool
	Outcome   Outcome
}

// Message is the one-line status shown by every surface.
func (o Outcome) Message() string {
	switch o.Status {
	case StatusIdle:
		return "Ready"
	case StatusPending:
		return "Running..."
	case StatusSuccess:
		return "OK"
	case StatusError:
		if o.Cancelled() {
			return "Cancelled"
		}
		if o.Err == nil {
			return "Error"
		}
		return "Error: " + o.Err.Error()
	}
	return o.Status.String()
}
