package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"polyglot/internal/delivery/server/app"
	"polyglot/internal/domain/feedback"
	"polyglot/internal/infra/observability"
	"polyglot/internal/shared/async"
	"polyglot/internal/shared/logging"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
)

// StreamHandler pushes feedback events to dashboard clients over a websocket.
type StreamHandler struct {
	broadcaster *app.EventBroadcaster
	metrics     *observability.MetricsCollector
	upgrader    websocket.Upgrader
	logger      logging.Logger
}

// NewStreamHandler builds the stream handler. Origins follow the CORS policy.
func NewStreamHandler(broadcaster *app.EventBroadcaster, metrics *observability.MetricsCollector, environment string, allowedOrigins []string) *StreamHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimRight(strings.TrimSpace(origin), "/")] = struct{}{}
	}
	env := strings.ToLower(strings.TrimSpace(environment))
	isDev := env != "production" && env != "prod"
	return &StreamHandler{
		broadcaster: broadcaster,
		metrics:     metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || isDev {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
		logger: logging.NewComponentLogger("StreamHandler"),
	}
}

// HandleStream upgrades the connection and forwards events until either side closes.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if h.broadcaster == nil {
		writeDetail(w, http.StatusServiceUnavailable, "Event stream unavailable")
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logging.FromContext(r.Context(), h.logger).Warn("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events := make(chan feedback.Event, app.DefaultClientBuffer)
	h.broadcaster.RegisterClient(events)
	h.metrics.StreamClientConnected(1)
	defer func() {
		h.broadcaster.UnregisterClient(events)
		h.metrics.StreamClientConnected(-1)
	}()

	closed := async.Go(h.logger, "stream-reader", func() {
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case event := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				logging.FromContext(r.Context(), h.logger).Debug("Stream write failed: %v", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
