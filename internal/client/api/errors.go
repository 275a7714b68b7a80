package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"polyglot/internal/infra/httpclient"
	jsonx "polyglot/internal/shared/json"
)

const maxErrorBodyBytes = 64 << 10

// Error is a non-2xx response from the server.
type Error struct {
	Status int
	Detail string
	// RetryAfter is set on 429 responses.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

func errorFromResponse(resp *http.Response) *Error {
	apiErr := &Error{Status: resp.StatusCode}
	if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
		apiErr.RetryAfter = time.Duration(seconds) * time.Second
	}

	body, err := httpclient.ReadAllWithLimit(resp.Body, maxErrorBodyBytes)
	if err != nil {
		return apiErr
	}
	var payload struct {
		Detail jsonx.RawMessage `json:"detail"`
	}
	if jsonx.Unmarshal(body, &payload) == nil && len(payload.Detail) > 0 {
		var detail string
		if jsonx.Unmarshal(payload.Detail, &detail) == nil {
			apiErr.Detail = detail
		} else {
			apiErr.Detail = string(payload.Detail)
		}
		return apiErr
	}
	apiErr.Detail = strings.TrimSpace(string(body))
	return apiErr
}
