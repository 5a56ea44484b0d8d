// Package pactownerr defines the structured error kinds shared across the
// pipeline, so callers can branch on Kind without string-matching messages.
package pactownerr

import "fmt"

// Kind classifies a failure the way callers (the CLI, the daemon, tests) need
// to branch on, independent of the wrapped error's message.
type Kind string

const (
	KindParse              Kind = "parse_error"
	KindValidationWarning  Kind = "validation_warning"
	KindDependencyInstall  Kind = "dependency_install_error"
	KindCacheCorruption    Kind = "cache_corruption"
	KindSpawn              Kind = "spawn_error"
	KindHealthTimeout      Kind = "health_timeout"
	KindPolicyDenied       Kind = "policy_denied"
)

// Error is the structured failure shape described in spec §7: callers that
// want a typed result read Kind/Message directly; callers that just want the
// usual Go error behavior get Unwrap() for free.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Result is the {success, message, kind} structured failure shape from §7,
// returned by the top-level ServiceRunner.FastRun (embedded in its
// runner.Result) instead of a bare error so non-Go callers across the IPC boundary can
// decode the same information from JSON.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Kind    Kind   `json:"kind,omitempty"`
}

// FromError converts an error into a Result, preserving Kind when the error
// (or one of its wrapped causes) is a *Error.
func FromError(err error) Result {
	if err == nil {
		return Result{Success: true}
	}
	var pe *Error
	if asError(err, &pe) {
		return Result{Success: false, Message: pe.Error(), Kind: pe.Kind}
	}
	return Result{Success: false, Message: err.Error()}
}

func asError(err error, target **Error) bool {
	for err != nil {
		if pe, ok := err.(*Error); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
