package app

import (
	"context"
	"sync"
	"time"
)

// Component health states.
const (
	StatusReady    = "ready"
	StatusDisabled = "disabled"
	StatusError    = "error"
)

// ComponentHealth is the result of one probe.
type ComponentHealth struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthProbe checks one dependency.
type HealthProbe interface {
	Check(ctx context.Context) ComponentHealth
}

// HealthCheckerImpl aggregates health probes for all components.
type HealthCheckerImpl struct {
	probes []HealthProbe
	mu     sync.RWMutex
}

// NewHealthChecker creates a new health checker.
func NewHealthChecker() *HealthCheckerImpl {
	return &HealthCheckerImpl{probes: make([]HealthProbe, 0)}
}

// RegisterProbe adds a health probe.
func (h *HealthCheckerImpl) RegisterProbe(probe HealthProbe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes = append(h.probes, probe)
}

// CheckAll returns health status for all components.
func (h *HealthCheckerImpl) CheckAll(ctx context.Context) []ComponentHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	results := make([]ComponentHealth, 0, len(h.probes))
	for _, probe := range h.probes {
		results = append(results, probe.Check(ctx))
	}
	return results
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseProbe reports whether Postgres answers a ping. A nil pinger means the
// server runs on in-memory stores.
type DatabaseProbe struct {
	db      Pinger
	timeout time.Duration
}

// NewDatabaseProbe creates a database probe.
func NewDatabaseProbe(db Pinger) *DatabaseProbe {
	return &DatabaseProbe{db: db, timeout: 2 * time.Second}
}

// Check pings the database.
func (p *DatabaseProbe) Check(ctx context.Context) ComponentHealth {
	if p.db == nil {
		return ComponentHealth{Name: "database", Status: StatusDisabled, Message: "using in-memory storage"}
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.db.Ping(ctx); err != nil {
		return ComponentHealth{Name: "database", Status: StatusError, Message: err.Error()}
	}
	return ComponentHealth{Name: "database", Status: StatusReady}
}

// AnalyzerProbe reports whether an LLM API key is configured. It does not call the
// provider.
type AnalyzerProbe struct {
	configured bool
	model      func(ctx context.Context) string
}

// NewAnalyzerProbe creates an analyzer probe.
func NewAnalyzerProbe(configured bool, model func(ctx context.Context) string) *AnalyzerProbe {
	return &AnalyzerProbe{configured: configured, model: model}
}

// Check reports the analyzer configuration.
func (p *AnalyzerProbe) Check(ctx context.Context) ComponentHealth {
	if !p.configured {
		return ComponentHealth{Name: "analyzer", Status: StatusDisabled, Message: "llm.api_key is not set"}
	}
	health := ComponentHealth{Name: "analyzer", Status: StatusReady}
	if p.model != nil {
		health.Message = p.model(ctx)
	}
	return health
}
