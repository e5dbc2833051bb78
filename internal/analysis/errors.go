package analysis

import (
	"errors"
	"fmt"
)

// Common errors returned by the analysis package
var (
	// ErrAnalysisFailure is matched by every error the Adapter returns.
	ErrAnalysisFailure = errors.New("document analysis failed")

	// ErrEmptyDocument is returned when there are no bytes to analyze.
	ErrEmptyDocument = errors.New("document is empty")

	// ErrEmptyResult is returned when the analyzer renders nothing.
	ErrEmptyResult = errors.New("analyzer produced an empty document")

	// ErrModeUnavailable is returned when no engine is configured for a mode.
	ErrModeUnavailable = errors.New("analysis mode is not available")

	// ErrInvalidConfig is returned when an analyzer backend is misconfigured.
	ErrInvalidConfig = errors.New("invalid analyzer configuration")
)

// Error is the uniform failure type returned by the Adapter.
// Detail is safe to record as a task's error message. The collaborator's
// own error is reduced to Detail so its types never reach callers.
type Error struct {
	// Stage is the step that failed: "input", "classify", "txt" or "ocr".
	Stage  string
	Detail string
	// Kind is one of this package's sentinels when the failure matches one.
	Kind error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %s", ErrAnalysisFailure.Error(), e.Stage, e.Detail)
}

// Unwrap exposes ErrAnalysisFailure and, when set, Kind.
func (e *Error) Unwrap() []error {
	if e.Kind == nil {
		return []error{ErrAnalysisFailure}
	}
	return []error{ErrAnalysisFailure, e.Kind}
}

var kinds = []error{ErrEmptyDocument, ErrEmptyResult, ErrModeUnavailable, ErrInvalidConfig}

func newError(stage string, err error) *Error {
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}

	var kind error
	for _, k := range kinds {
		if errors.Is(err, k) {
			kind = k
			break
		}
	}
	return &Error{Stage: stage, Detail: detail, Kind: kind}
}
