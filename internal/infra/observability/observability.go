package observability

import (
	"context"
	"errors"

	"polyglot/internal/shared/config"
	"polyglot/internal/shared/logging"
)

// Observability bundles metrics and tracing.
type Observability struct {
	Metrics *MetricsCollector
	Tracer  *TracerProvider
}

// New builds metrics and tracing from configuration. Failures degrade to disabled
// components rather than failing startup.
func New(cfg config.ObservabilityConfig, version string, logger logging.Logger) *Observability {
	logger = logging.OrNop(logger)
	metrics, err := NewMetricsCollector(cfg.MetricsEnabled)
	if err != nil {
		logger.Error("Failed to initialize metrics: %v", err)
		metrics = &MetricsCollector{}
	}
	tracer, err := NewTracerProvider(TracingConfig{
		Enabled:        cfg.TracingEnabled,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.SampleRate,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		logger.Error("Failed to initialize tracing: %v", err)
		tracer, _ = NewTracerProvider(TracingConfig{})
	}
	logger.Info("Observability initialized (metrics=%t tracing=%t)", cfg.MetricsEnabled, cfg.TracingEnabled)
	return &Observability{Metrics: metrics, Tracer: tracer}
}

// Shutdown flushes metrics and spans.
func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	return errors.Join(o.Metrics.Shutdown(ctx), o.Tracer.Shutdown(ctx))
}
