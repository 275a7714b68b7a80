package http

import (
	"net/netip"
	"time"

	authapp "polyglot/internal/app/auth"
	feedbackapp "polyglot/internal/app/feedback"
	"polyglot/internal/delivery/server/app"
	"polyglot/internal/infra/observability"
)

// RouterDeps holds all service dependencies needed to construct the HTTP router.
type RouterDeps struct {
	AuthService     *authapp.Service
	FeedbackService *feedbackapp.Service
	Broadcaster     *app.EventBroadcaster
	HealthChecker   *app.HealthCheckerImpl
	Obs             *observability.Observability
}

// RouterConfig holds configuration values for the HTTP router.
type RouterConfig struct {
	Environment    string
	AllowedOrigins []string
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	Translate      RateLimitConfig
	Feedback       RateLimitConfig
	// TrustedProxies may set X-Forwarded-For / X-Real-IP. Empty trusts nobody.
	TrustedProxies []netip.Prefix
}
