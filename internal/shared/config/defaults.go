package config

import "time"

const (
	DefaultPort               = "8000"
	DefaultEnvironment        = "development"
	DefaultIssuer             = "polyglot"
	DefaultAccessTokenTTL     = 30 * time.Minute
	DefaultRefreshFraction    = 0.5
	DefaultLLMBaseURL         = "https://generativelanguage.googleapis.com"
	DefaultLLMModel           = "models/gemini-1.5-flash"
	DefaultLLMTimeout         = 30 * time.Second
	DefaultModelsCacheTTL     = 10 * time.Minute
	DefaultRequestTimeout     = 60 * time.Second
	DefaultTranslatePerMinute = 30
	DefaultFeedbackPerMinute  = 10
	DefaultDatabaseMaxConns   = 4
	DefaultConnectRetries     = 5
	DefaultLLMMaxRetries      = 2
)

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           DefaultPort,
			Environment:    DefaultEnvironment,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RequestTimeout: DefaultRequestTimeout,
		},
		Auth: AuthConfig{
			Issuer:          DefaultIssuer,
			AccessTokenTTL:  DefaultAccessTokenTTL,
			RefreshFraction: DefaultRefreshFraction,
		},
		Database: DatabaseConfig{
			MaxConns:       DefaultDatabaseMaxConns,
			ConnectRetries: DefaultConnectRetries,
		},
		LLM: LLMConfig{
			BaseURL:        DefaultLLMBaseURL,
			Model:          DefaultLLMModel,
			Timeout:        DefaultLLMTimeout,
			ModelsCacheTTL: DefaultModelsCacheTTL,
			MaxRetries:     DefaultLLMMaxRetries,
		},
		RateLimit: RateLimitConfig{
			TranslatePerMinute: DefaultTranslatePerMinute,
			FeedbackPerMinute:  DefaultFeedbackPerMinute,
		},
		Log: LogConfig{Level: "info"},
		Observability: ObservabilityConfig{
			MetricsEnabled: true,
			OTLPEndpoint:   "localhost:4318",
			SampleRate:     1,
			ServiceName:    "polyglot",
		},
	}
}
