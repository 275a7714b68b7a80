package submission

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when Submit is called while another submission is in flight.
var ErrBusy = errors.New("a submission is already in progress")

// Cancellation causes. The first one to fire is the one reported.
var (
	errUserCancelled = errors.New("submission cancelled by user")
	errTimedOut      = errors.New("submission timed out")
)

// CancelReason distinguishes user aborts from the timeout ceiling.
type CancelReason string

const (
	CancelUser    CancelReason = "user"
	CancelTimeout CancelReason = "timeout"
)

// ValidationError rejects a submission before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AnalysisFailedError carries the analyzer's detail verbatim.
type AnalysisFailedError struct {
	Detail string
	Err    error
}

func (e *AnalysisFailedError) Error() string {
	return "analysis failed: " + e.Detail
}

func (e *AnalysisFailedError) Unwrap() error { return e.Err }

// SaveFailedError carries the persistence detail verbatim.
type SaveFailedError struct {
	Detail string
	Err    error
}

func (e *SaveFailedError) Error() string {
	return "save failed: " + e.Detail
}

func (e *SaveFailedError) Unwrap() error { return e.Err }

// CancelledError ends a submission aborted by the user or the timeout. When the
// save phase was aborted the server may still have committed the record.
type CancelledError struct {
	Reason CancelReason
	Phase  Phase
}

func (e *CancelledError) Error() string {
	if e.Reason == CancelTimeout {
		return fmt.Sprintf("submission timed out while %s", e.Phase)
	}
	return fmt.Sprintf("submission cancelled while %s", e.Phase)
}
