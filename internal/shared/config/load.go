package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides (POLYGLOT_AUTH_JWT_SECRET, ...).
const EnvPrefix = "POLYGLOT"

type loadOptions struct {
	viper      *viper.Viper
	configFile string
}

// Option customises Load.
type Option func(*loadOptions)

// WithViper loads through an existing viper instance, typically one with cobra flags bound.
func WithViper(v *viper.Viper) Option {
	return func(o *loadOptions) {
		if v != nil {
			o.viper = v
		}
	}
}

// WithConfigFile reads the given YAML file instead of searching the default locations.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) {
		o.configFile = strings.TrimSpace(path)
	}
}

// Load resolves configuration from defaults, an optional YAML file and POLYGLOT_* env vars.
// Later sources override earlier ones.
func Load(opts ...Option) (Config, error) {
	options := loadOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	v := options.viper
	if v == nil {
		v = viper.New()
	}

	setDefaults(v, Defaults())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if options.configFile != "" {
		v.SetConfigFile(options.configFile)
	} else {
		v.SetConfigName("polyglot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".polyglot"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if options.configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.environment", d.Server.Environment)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)
	v.SetDefault("server.trusted_proxies", d.Server.TrustedProxies)

	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("auth.issuer", d.Auth.Issuer)
	v.SetDefault("auth.access_token_ttl", d.Auth.AccessTokenTTL)
	v.SetDefault("auth.refresh_fraction", d.Auth.RefreshFraction)
	v.SetDefault("auth.bootstrap_username", d.Auth.BootstrapUsername)
	v.SetDefault("auth.bootstrap_password", d.Auth.BootstrapPassword)

	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("database.max_conns", d.Database.MaxConns)
	v.SetDefault("database.connect_retries", d.Database.ConnectRetries)

	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.models_cache_ttl", d.LLM.ModelsCacheTTL)
	v.SetDefault("llm.max_retries", d.LLM.MaxRetries)

	v.SetDefault("rate_limit.translate_per_minute", d.RateLimit.TranslatePerMinute)
	v.SetDefault("rate_limit.feedback_per_minute", d.RateLimit.FeedbackPerMinute)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("observability.metrics_enabled", d.Observability.MetricsEnabled)
	v.SetDefault("observability.tracing_enabled", d.Observability.TracingEnabled)
	v.SetDefault("observability.otlp_endpoint", d.Observability.OTLPEndpoint)
	v.SetDefault("observability.sample_rate", d.Observability.SampleRate)
	v.SetDefault("observability.service_name", d.Observability.ServiceName)
}

func (c *Config) normalize() {
	c.Server.Port = strings.TrimPrefix(strings.TrimSpace(c.Server.Port), ":")
	c.Server.Environment = strings.ToLower(strings.TrimSpace(c.Server.Environment))
	c.Auth.JWTSecret = strings.TrimSpace(c.Auth.JWTSecret)
	c.Database.URL = strings.TrimSpace(c.Database.URL)
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	origins := c.Server.AllowedOrigins[:0]
	for _, origin := range c.Server.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.Server.AllowedOrigins = origins
	proxies := c.Server.TrustedProxies[:0]
	for _, proxy := range c.Server.TrustedProxies {
		if trimmed := strings.TrimSpace(proxy); trimmed != "" {
			proxies = append(proxies, trimmed)
		}
	}
	c.Server.TrustedProxies = proxies
}

// Validate reports settings that cannot be used at all.
func (c Config) Validate() error {
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be positive")
	}
	if c.Auth.RefreshFraction < 0 || c.Auth.RefreshFraction >= 1 {
		return fmt.Errorf("auth.refresh_fraction must be in [0, 1), got %v", c.Auth.RefreshFraction)
	}
	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		return fmt.Errorf("observability.sample_rate must be in [0, 1], got %v", c.Observability.SampleRate)
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	return nil
}

// IsDevelopment reports whether development fallbacks (dev secret, memory stores) are allowed.
func (c Config) IsDevelopment() bool {
	switch c.Server.Environment {
	case "", "development", "dev", "test":
		return true
	}
	return false
}
