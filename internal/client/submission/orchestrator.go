// Package submission drives the two-phase analyze-then-save flow of the feedback form.
package submission

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"polyglot/internal/client/api"
	"polyglot/internal/client/events"
	"polyglot/internal/domain/feedback"
	"polyglot/internal/shared/logging"
	"polyglot/internal/shared/utils/id"
)

// DefaultTimeout caps both phases of one submission together.
const DefaultTimeout = 60 * time.Second

// Phase is the orchestrator state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAnalyzing
	PhaseSaving
)

func (p Phase) String() string {
	switch p {
	case PhaseAnalyzing:
		return "analyzing"
	case PhaseSaving:
		return "saving"
	default:
		return "idle"
	}
}

// Backend is the pair of server calls a submission makes.
type Backend interface {
	Analyze(ctx context.Context, text string) (feedback.Analysis, error)
	SaveFeedback(ctx context.Context, req api.SaveRequest) (feedback.Record, error)
}

// Pending is the submission currently in flight.
type Pending struct {
	Text           string
	Product        string
	Phase          Phase
	Analysis       *feedback.Analysis
	IdempotencyKey string
	StartedAt      time.Time
}

// Options configures an Orchestrator.
type Options struct {
	// Timeout defaults to DefaultTimeout.
	Timeout   time.Duration
	Publisher events.Publisher
	// OnPhase is called after every phase change, outside the orchestrator lock.
	OnPhase func(Phase)
	// NewKey generates idempotency keys; defaults to id.NewIdempotencyKey.
	NewKey func() string
	Logger logging.Logger
}

// Orchestrator runs at most one submission at a time.
type Orchestrator struct {
	backend   Backend
	timeout   time.Duration
	publisher events.Publisher
	onPhase   func(Phase)
	newKey    func() string
	logger    logging.Logger

	mu       sync.Mutex
	products map[string]struct{}
	pending  *Pending
	cancel   context.CancelCauseFunc
}

func New(backend Backend, opts Options) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.NewKey == nil {
		opts.NewKey = id.NewIdempotencyKey
	}
	logger := opts.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("Submission")
	}
	return &Orchestrator{
		backend:   backend,
		timeout:   opts.Timeout,
		publisher: opts.Publisher,
		onPhase:   opts.OnPhase,
		newKey:    opts.NewKey,
		logger:    logger,
		products:  make(map[string]struct{}),
	}
}

// SetProducts replaces the set of selectable products.
func (o *Orchestrator) SetProducts(names []string) {
	products := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			products[name] = struct{}{}
		}
	}
	o.mu.Lock()
	o.products = products
	o.mu.Unlock()
}

// Phase reports the current state.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return PhaseIdle
	}
	return o.pending.Phase
}

// Pending returns a copy of the in-flight submission.
func (o *Orchestrator) Pending() (Pending, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return Pending{}, false
	}
	return *o.pending, true
}

// Cancel aborts the in-flight submission. It reports false when idle.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel == nil {
		return false
	}
	o.cancel(errUserCancelled)
	return true
}

// Submit validates locally, analyzes text, then saves the analyzed record. It
// blocks until the submission ends and always leaves the orchestrator idle.
func (o *Orchestrator) Submit(ctx context.Context, text, product string) (feedback.Record, error) {
	text = strings.TrimSpace(text)
	product = strings.TrimSpace(product)
	if text == "" {
		return feedback.Record{}, &ValidationError{Field: "text", Message: "feedback text is required"}
	}
	if product == "" {
		return feedback.Record{}, &ValidationError{Field: "product", Message: "select a product"}
	}

	o.mu.Lock()
	if o.pending != nil {
		o.mu.Unlock()
		return feedback.Record{}, ErrBusy
	}
	if _, ok := o.products[product]; !ok {
		o.mu.Unlock()
		return feedback.Record{}, &ValidationError{Field: "product", Message: "unknown product " + product}
	}
	runCtx, cancel := context.WithCancelCause(ctx)
	timer := time.AfterFunc(o.timeout, func() { cancel(errTimedOut) })
	o.pending = &Pending{
		Text:           text,
		Product:        product,
		Phase:          PhaseAnalyzing,
		IdempotencyKey: o.newKey(),
		StartedAt:      time.Now(),
	}
	o.cancel = cancel
	o.mu.Unlock()
	o.notifyPhase(PhaseAnalyzing)

	defer func() {
		timer.Stop()
		cancel(context.Canceled)
		o.mu.Lock()
		o.pending, o.cancel = nil, nil
		o.mu.Unlock()
		o.notifyPhase(PhaseIdle)
	}()

	analysis, err := o.backend.Analyze(runCtx, text)
	if runCtx.Err() != nil {
		return feedback.Record{}, o.cancelled(runCtx, PhaseAnalyzing)
	}
	if err != nil {
		if api.IsUnauthorized(err) {
			return feedback.Record{}, err
		}
		return feedback.Record{}, &AnalysisFailedError{Detail: detailOf(err), Err: err}
	}

	o.mu.Lock()
	o.pending.Analysis = &analysis
	o.pending.Phase = PhaseSaving
	key := o.pending.IdempotencyKey
	o.mu.Unlock()
	o.notifyPhase(PhaseSaving)

	record, err := o.backend.SaveFeedback(runCtx, api.SaveRequest{
		Text:           text,
		Product:        product,
		Language:       analysis.Language,
		TranslatedText: analysis.TranslatedText,
		Sentiment:      analysis.Sentiment,
		IdempotencyKey: key,
	})
	if err != nil {
		if runCtx.Err() != nil {
			return feedback.Record{}, o.cancelled(runCtx, PhaseSaving)
		}
		if api.IsUnauthorized(err) {
			return feedback.Record{}, err
		}
		return feedback.Record{}, &SaveFailedError{Detail: detailOf(err), Err: err}
	}

	o.logger.Info("Feedback %d saved (%s, %s)", record.ID, record.Language, record.Sentiment)
	o.publisher.Publish(events.FeedbackCreated(record))
	return record, nil
}

func (o *Orchestrator) cancelled(ctx context.Context, phase Phase) error {
	reason := CancelUser
	if cause := context.Cause(ctx); errors.Is(cause, errTimedOut) || errors.Is(cause, context.DeadlineExceeded) {
		reason = CancelTimeout
	}
	o.logger.Debug("Submission cancelled while %s (%s)", phase, reason)
	return &CancelledError{Reason: reason, Phase: phase}
}

func (o *Orchestrator) notifyPhase(phase Phase) {
	if o.onPhase != nil {
		o.onPhase(phase)
	}
}

// detailOf prefers the server's detail string over the transport wrapping.
func detailOf(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return http.StatusText(apiErr.Status)
	}
	return err.Error()
}
