package config

import "time"

// Config is the resolved server configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`

	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
}

// ServerConfig captures HTTP listener settings.
type ServerConfig struct {
	Port           string        `mapstructure:"port" yaml:"port"`
	Environment    string        `mapstructure:"environment" yaml:"environment"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	TrustedProxies []string      `mapstructure:"trusted_proxies" yaml:"trusted_proxies"`
}

// AuthConfig captures token issuing parameters and the bootstrap admin.
type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	Issuer            string        `mapstructure:"issuer" yaml:"issuer"`
	AccessTokenTTL    time.Duration `mapstructure:"access_token_ttl" yaml:"access_token_ttl"`
	RefreshFraction   float64       `mapstructure:"refresh_fraction" yaml:"refresh_fraction"`
	BootstrapUsername string        `mapstructure:"bootstrap_username" yaml:"bootstrap_username"`
	BootstrapPassword string        `mapstructure:"bootstrap_password" yaml:"bootstrap_password"`
}

// DatabaseConfig captures the Postgres connection. An empty URL selects memory stores.
type DatabaseConfig struct {
	URL            string `mapstructure:"url" yaml:"url"`
	MaxConns       int    `mapstructure:"max_conns" yaml:"max_conns"`
	ConnectRetries int    `mapstructure:"connect_retries" yaml:"connect_retries"`
}

// LLMConfig captures the analysis provider.
type LLMConfig struct {
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"`
	Model          string        `mapstructure:"model" yaml:"model"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ModelsCacheTTL time.Duration `mapstructure:"models_cache_ttl" yaml:"models_cache_ttl"`
	// MaxRetries applies to rate limits and upstream 5xx only.
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// RateLimitConfig captures per-IP limits on the public submission endpoints.
type RateLimitConfig struct {
	TranslatePerMinute int `mapstructure:"translate_per_minute" yaml:"translate_per_minute"`
	FeedbackPerMinute  int `mapstructure:"feedback_per_minute" yaml:"feedback_per_minute"`
}

// LogConfig captures the log backend.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	// Format is "text" or "json"; empty picks json outside development.
	Format string `mapstructure:"format" yaml:"format"`
}

// ObservabilityConfig captures metrics and tracing.
type ObservabilityConfig struct {
	MetricsEnabled bool    `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
	TracingEnabled bool    `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	SampleRate     float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	ServiceName    string  `mapstructure:"service_name" yaml:"service_name"`
}
