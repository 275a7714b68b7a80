package http

import (
	"net/http"

	"polyglot/internal/delivery/server/app"
)

type healthResponse struct {
	Status     string                `json:"status"`
	Components []app.ComponentHealth `json:"components"`
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the Polyglot feedback API"})
}

// handleHealth reports "ok" unless a probe errors, in which case it answers 503 so
// load balancers stop routing to the instance.
func handleHealth(checker *app.HealthCheckerImpl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Components: []app.ComponentHealth{}}
		if checker != nil {
			resp.Components = checker.CheckAll(r.Context())
		}
		status := http.StatusOK
		for _, component := range resp.Components {
			if component.Status == app.StatusError {
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, status, resp)
	}
}
