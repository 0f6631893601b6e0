// Package lcmerrors collects the small error taxonomy workflows and
// collaborators use to signal failure without panicking a goroutine.
package lcmerrors

import (
	"errors"
	"fmt"
)

// LCMError wraps a workflow stage name and an underlying cause, the
// Go analogue of the original's bare LcmException: every workflow
// failure becomes one of these before it's ever written to the
// database as a detailed-status string.
type LCMError struct {
	Stage string
	Err   error
}

func (e *LCMError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err)
}

func (e *LCMError) Unwrap() error { return e.Err }

// New builds an LCMError for the given stage.
func New(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &LCMError{Stage: stage, Err: err}
}

// Newf builds an LCMError from a formatted message.
func Newf(stage, format string, args ...interface{}) error {
	return &LCMError{Stage: stage, Err: fmt.Errorf(format, args...)}
}

// ROClientError is returned by the RO client for any non-2xx
// response, carrying the HTTP status so callers can special-case 404
// the way vim_delete/ns_terminate do.
type ROClientError struct {
	StatusCode int
	Message    string
}

func (e *ROClientError) Error() string {
	return fmt.Sprintf("RO client error %d: %s", e.StatusCode, e.Message)
}

// NotFound reports whether the RO call failed because the resource
// was already gone.
func (e *ROClientError) NotFound() bool { return e.StatusCode == 404 }

// Conflict reports whether RO rejected the call because the resource
// is in a transitional state (RO returns 409 while a previous
// operation is still being processed).
func (e *ROClientError) Conflict() bool { return e.StatusCode == 409 }

// VCAError is returned by the VCA client for any charm operation
// failure (deploy, remove, execute primitive, login).
type VCAError struct {
	Op      string
	Message string
}

func (e *VCAError) Error() string {
	return fmt.Sprintf("VCA %s error: %s", e.Op, e.Message)
}

// IsROError reports whether err is (or wraps) a *ROClientError, and
// returns it.
func IsROError(err error) (*ROClientError, bool) {
	var roErr *ROClientError
	if errors.As(err, &roErr) {
		return roErr, true
	}
	return nil, false
}
