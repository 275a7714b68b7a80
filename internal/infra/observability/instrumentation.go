package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"polyglot/internal/domain/feedback"
	"polyglot/internal/domain/feedback/ports"
)

// InstrumentedAnalyzer wraps an analyzer with a span and metrics.
type InstrumentedAnalyzer struct {
	inner   ports.Analyzer
	tracer  *TracerProvider
	metrics *MetricsCollector
}

// NewInstrumentedAnalyzer wraps inner. Either collaborator may be nil.
func NewInstrumentedAnalyzer(inner ports.Analyzer, tracer *TracerProvider, metrics *MetricsCollector) *InstrumentedAnalyzer {
	return &InstrumentedAnalyzer{inner: inner, tracer: tracer, metrics: metrics}
}

// Analyze implements ports.Analyzer.
func (a *InstrumentedAnalyzer) Analyze(ctx context.Context, model, text string) (feedback.Analysis, error) {
	ctx, span := a.tracer.StartSpan(ctx, SpanAnalysis, attribute.String(AttrModel, model))
	defer span.End()

	start := time.Now()
	analysis, err := a.inner.Analyze(ctx, model, text)
	latency := time.Since(start)

	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = "cancelled"
	default:
		status = "error"
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	span.SetAttributes(attribute.String(AttrStatus, status))
	a.metrics.RecordAnalysis(ctx, model, status, latency)
	return analysis, err
}

var _ ports.Analyzer = (*InstrumentedAnalyzer)(nil)
