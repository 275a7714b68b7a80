package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"polyglot/internal/domain/feedback"
)

// MetricsCollector records HTTP, analysis and feedback metrics. A zero value (or nil)
// collector records nothing.
type MetricsCollector struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	httpRequests     metric.Int64Counter
	httpLatency      metric.Float64Histogram
	analysisRequests metric.Int64Counter
	analysisLatency  metric.Float64Histogram
	feedbackEvents   metric.Int64Counter

	rateLimited *prometheus.CounterVec
	wsClients   prometheus.Gauge
}

// NewMetricsCollector builds a collector exporting to a dedicated Prometheus registry.
func NewMetricsCollector(enabled bool) (*MetricsCollector, error) {
	if !enabled {
		return &MetricsCollector{}, nil
	}
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("polyglot")

	m := &MetricsCollector{registry: registry, provider: provider}
	if m.httpRequests, err = meter.Int64Counter("polyglot.http.requests",
		metric.WithDescription("HTTP requests handled by the server"),
		metric.WithUnit("{request}")); err != nil {
		return nil, fmt.Errorf("failed to create http_requests counter: %w", err)
	}
	if m.httpLatency, err = meter.Float64Histogram("polyglot.http.latency",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create http_latency histogram: %w", err)
	}
	if m.analysisRequests, err = meter.Int64Counter("polyglot.analysis.requests",
		metric.WithDescription("Feedback analyses sent to the LLM"),
		metric.WithUnit("{request}")); err != nil {
		return nil, fmt.Errorf("failed to create analysis_requests counter: %w", err)
	}
	if m.analysisLatency, err = meter.Float64Histogram("polyglot.analysis.latency",
		metric.WithDescription("LLM analysis latency in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create analysis_latency histogram: %w", err)
	}
	if m.feedbackEvents, err = meter.Int64Counter("polyglot.feedback.events",
		metric.WithDescription("Feedback records created or deleted"),
		metric.WithUnit("{record}")); err != nil {
		return nil, fmt.Errorf("failed to create feedback_events counter: %w", err)
	}

	factory := promauto.With(registry)
	m.rateLimited = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "polyglot_rate_limited_requests_total",
		Help: "Requests rejected by the per-client rate limiter.",
	}, []string{"route"})
	m.wsClients = factory.NewGauge(prometheus.GaugeOpts{
		Name: "polyglot_stream_clients",
		Help: "Connected dashboard stream clients.",
	})
	return m, nil
}

// Handler serves the registry in the Prometheus text format.
func (m *MetricsCollector) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes the meter provider.
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// RecordHTTPServerRequest records one completed request.
func (m *MetricsCollector) RecordHTTPServerRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	m.httpRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	))
	m.httpLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
	))
}

// RecordAnalysis records one analyzer call.
func (m *MetricsCollector) RecordAnalysis(ctx context.Context, model, status string, latency time.Duration) {
	if m == nil || m.analysisRequests == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("model", model), attribute.String("status", status))
	m.analysisRequests.Add(ctx, 1, attrs)
	m.analysisLatency.Record(ctx, latency.Seconds(), attrs)
}

// Publish counts feedback events. It implements ports.EventPublisher.
func (m *MetricsCollector) Publish(event feedback.Event) {
	if m == nil || m.feedbackEvents == nil {
		return
	}
	n := event.Count
	if event.Type == feedback.EventCreated {
		n = 1
	}
	m.feedbackEvents.Add(context.Background(), n, metric.WithAttributes(attribute.String("type", string(event.Type))))
}

// IncrementRateLimited counts a request rejected with 429.
func (m *MetricsCollector) IncrementRateLimited(route string) {
	if m == nil || m.rateLimited == nil {
		return
	}
	m.rateLimited.WithLabelValues(route).Inc()
}

// StreamClientConnected adjusts the connected stream client gauge by delta.
func (m *MetricsCollector) StreamClientConnected(delta int) {
	if m == nil || m.wsClients == nil {
		return
	}
	m.wsClients.Add(float64(delta))
}
