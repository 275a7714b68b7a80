package tui

import (
	"errors"
	"fmt"
	"net/http"

	"polyglot/internal/client/api"
	"polyglot/internal/client/submission"
)

// DescribeError turns a submission error into the message shown to the user.
// Cancellation and timeout read differently from content failures.
func DescribeError(err error) string {
	var (
		validation *submission.ValidationError
		analysis   *submission.AnalysisFailedError
		save       *submission.SaveFailedError
		cancelled  *submission.CancelledError
		apiErr     *api.Error
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, submission.ErrBusy):
		return "A submission is already running"
	case errors.As(err, &validation):
		return "Check your input: " + validation.Message
	case errors.As(err, &cancelled):
		if cancelled.Reason == submission.CancelTimeout {
			return "The server took too long; nothing was confirmed. Try again"
		}
		return "Submission cancelled"
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized:
		return "Your session ended; log in again"
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests:
		if apiErr.RetryAfter > 0 {
			return fmt.Sprintf("Too many submissions; retry in %s", apiErr.RetryAfter)
		}
		return "Too many submissions; retry shortly"
	case errors.As(err, &analysis):
		return analysis.Detail
	case errors.As(err, &save):
		return "Could not save feedback: " + save.Detail
	default:
		return err.Error()
	}
}
