package types

import (
	"errors"
	"fmt"
)

// ErrNoRevisions is matched by every NoRevisionsError.
var ErrNoRevisions = errors.New("no revisions exist")

// ProviderError is returned when the provider flags a requested series as
// failed.
type ProviderError struct {
	ID      string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error for %s: %s", e.ID, e.Message)
}

// NoRevisionsError reports that a series has no usable revision history.
type NoRevisionsError struct {
	ID     string
	Reason string
}

func (e *NoRevisionsError) Error() string {
	return fmt.Sprintf("%s: %s", e.ID, e.Reason)
}

// Is lets errors.Is match ErrNoRevisions.
func (e *NoRevisionsError) Is(target error) bool {
	return target == ErrNoRevisions
}

// SeriesError attributes a non-provider failure to one identifier.
type SeriesError struct {
	ID  string
	Err error
}

func (e *SeriesError) Error() string {
	return fmt.Sprintf("series %s: %v", e.ID, e.Err)
}

func (e *SeriesError) Unwrap() error {
	return e.Err
}

// FailedID returns the identifier carried by a per-series error, if any.
func FailedID(err error) (string, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.ID, true
	}
	var ne *NoRevisionsError
	if errors.As(err, &ne) {
		return ne.ID, true
	}
	var se *SeriesError
	if errors.As(err, &se) {
		return se.ID, true
	}
	return "", false
}
