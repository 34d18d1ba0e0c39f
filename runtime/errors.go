package runtime

import (
	"errors"
	"fmt"
)

// Sentinel errors for the conditions a step can fail with. Step wrappers wrap
// these with context via fmt.Errorf("%w"), so callers match with errors.Is.
var (
	// ErrMissingAsset signals a non-optional input asset that does not exist.
	ErrMissingAsset = errors.New("missing required input asset")

	// ErrConfiguration signals an unusable manifest entry, such as an
	// optional asset with no default payload.
	ErrConfiguration = errors.New("invalid step configuration")

	// ErrFilterFailure signals that a declared input filter failed.
	ErrFilterFailure = errors.New("input filter failed")

	// ErrReferenceNotFound signals that the reference resolver matched
	// zero stored keys.
	ErrReferenceNotFound = errors.New("data reference not found")

	// ErrInvalidReferenceKey signals a reference key of an unsupported shape.
	ErrInvalidReferenceKey = errors.New("invalid data reference key")

	// ErrMissingSettings signals that no settings binding was provided.
	ErrMissingSettings = errors.New("missing settings binding")

	// ErrHandlerFailure signals that an external input/output handler failed.
	ErrHandlerFailure = errors.New("asset handler failed")
)

// StepError carries a failure out of a task or asset step up to the flow
// boundary, where it is reported once and converted into process termination.
type StepError struct {
	Step string // name of the task or asset step that failed
	Line string // best-effort source location of the failure
	Err  error
}

func (e *StepError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("step %s: %v", e.Step, e.Err)
	}
	return e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}
