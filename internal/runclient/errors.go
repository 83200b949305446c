package runclient

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse means the body was not a JSON object of strings.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrMissingField means results or ast was absent.
	ErrMissingField = errors.New("missing response field")
)

// StatusError reports a non-2xx answer from the evaluator.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("evaluator returned status %d", e.Code)
	}
	return fmt.Sprintf("evaluator returned status %d: %s", e.Code, e.Body)
}
