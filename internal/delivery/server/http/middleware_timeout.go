package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"polyglot/internal/shared/async"
	"polyglot/internal/shared/logging"
)

const timeoutDetail = "Request timed out"

// RequestTimeoutMiddleware bounds non-streaming requests. A handler still running
// at the deadline is answered with 504 and a JSON detail, the same reply a
// handler gets for context.DeadlineExceeded. Websocket upgrades are long-lived
// and need the raw connection, so they bypass the timeout.
func RequestTimeoutMiddleware(timeout time.Duration, logger logging.Logger) func(http.Handler) http.Handler {
	if timeout <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	logger = logging.OrNop(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isStreamRequest(r) {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &timeoutWriter{header: make(http.Header)}
			var finished bool
			done := async.Go(logger, "http handler "+r.URL.Path, func() {
				next.ServeHTTP(tw, r.WithContext(ctx))
				finished = true
			})

			select {
			case <-done:
				tw.mu.Lock()
				defer tw.mu.Unlock()
				if !finished {
					writeJSON(w, http.StatusInternalServerError, detailResponse{Detail: "Internal server error"})
					return
				}
				tw.flushTo(w)
			case <-ctx.Done():
				tw.mu.Lock()
				tw.timedOut = true
				tw.mu.Unlock()
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					writeJSON(w, http.StatusGatewayTimeout, detailResponse{Detail: timeoutDetail})
				}
			}
		})
	}
}

// timeoutWriter buffers the handler's reply until it finishes in time.
type timeoutWriter struct {
	mu          sync.Mutex
	header      http.Header
	buf         bytes.Buffer
	code        int
	wroteHeader bool
	timedOut    bool
}

func (tw *timeoutWriter) Header() http.Header { return tw.header }

func (tw *timeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.wroteHeader {
		tw.writeHeaderLocked(http.StatusOK)
	}
	return tw.buf.Write(p)
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.writeHeaderLocked(code)
}

func (tw *timeoutWriter) writeHeaderLocked(code int) {
	tw.wroteHeader = true
	tw.code = code
}

// flushTo copies the buffered reply; callers hold tw.mu.
func (tw *timeoutWriter) flushTo(w http.ResponseWriter) {
	dst := w.Header()
	for key, values := range tw.header {
		dst[key] = values
	}
	if !tw.wroteHeader {
		tw.code = http.StatusOK
	}
	w.WriteHeader(tw.code)
	_, _ = w.Write(tw.buf.Bytes())
}

func isStreamRequest(r *http.Request) bool {
	if r == nil || r.URL == nil {
		return false
	}
	if isWebSocketUpgrade(r) {
		return true
	}
	return strings.HasSuffix(strings.TrimSpace(r.URL.Path), "/stream")
}
