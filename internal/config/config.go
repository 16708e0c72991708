// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, rate limiting, the
// upstream AI backend, generation retry policy, mail, auth and observability.
//
// Values are parsed with caarlos0/env struct tags; Load then normalizes and
// validates the result so callers always receive a coherent Config.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool          `env:"ENABLE_HSTS" envDefault:"false"`
	HSTSMaxAge time.Duration `env:"HSTS_MAX_AGE" envDefault:"4320h"`
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"go-tutor-backend"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG" envDefault:"1.0"`
}

// UpstreamConfig points at the external AI backend.
//
// BaseURL serves /api/analyze, /api/chat, /api/generate-topics and
// /api/generate-content; ServerURL serves /api/valid and /api/prompt.
type UpstreamConfig struct {
	BaseURL   string        `env:"UPSTREAM_BASE_URL" envDefault:"http://localhost:3000"`
	ServerURL string        `env:"UPSTREAM_SERVER_URL" envDefault:"http://localhost:5000"`
	Timeout   time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"60s"`
	APIKey    string        `env:"UPSTREAM_API_KEY"`
}

// GenerationConfig holds chat and course generation limits and retry policy.
type GenerationConfig struct {
	ChatMaxTokens        int           `env:"CHAT_MAX_TOKENS" envDefault:"1024"`
	PromptMaxAttempts    int           `env:"PROMPT_MAX_ATTEMPTS" envDefault:"3"`
	PromptRetryBaseDelay time.Duration `env:"PROMPT_RETRY_BASE_DELAY" envDefault:"1s"`
	TopicMaxRetries      int           `env:"TOPIC_MAX_RETRIES" envDefault:"2"`
	TopicRetryDelay      time.Duration `env:"TOPIC_RETRY_DELAY" envDefault:"2s"`
	TopicCacheTTL        time.Duration `env:"TOPIC_CACHE_TTL" envDefault:"30m"`
	DefaultLanguage      string        `env:"CONTENT_LANGUAGE" envDefault:"English"`
}

// AuthConfig configures session tokens issued after verification.
type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
	Issuer    string        `env:"JWT_ISSUER" envDefault:"go-tutor-backend"`
}

// MailConfig configures the SMTP relay used by the contact form. An empty
// Host selects the log mailer.
type MailConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"MAIL_FROM" envDefault:"no-reply@tutor.local"`
	Inbox    string `env:"CONTACT_INBOX" envDefault:"support@tutor.local"`
}

// BillingConfig holds quota settings for free and anonymous users.
type BillingConfig struct {
	FreeDailyMessages int `env:"FREE_DAILY_MESSAGES" envDefault:"20"`
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        `env:"PORT" envDefault:"8080"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"10s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"120s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	MaxHeaderBytes    int           `env:"MAX_HEADER_BYTES" envDefault:"1048576"`
	GinMode           string        `env:"GIN_MODE" envDefault:"release"`

	// Logging / Docs
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty      bool   `env:"LOG_PRETTY" envDefault:"false"`
	LogFile        string `env:"LOG_FILE"`
	LogMaxSizeMB   int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxBackups  int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	LogMaxAgeDays  int    `env:"LOG_MAX_AGE_DAYS" envDefault:"28"`
	SwaggerEnabled bool   `env:"SWAGGER_ENABLED" envDefault:"false"`
	APIBasePath    string `env:"API_BASE_PATH" envDefault:"/api/v1"`

	// App
	DBPath         string `env:"DB_PATH" envDefault:"app.db"`
	UploadMaxBytes int64  `env:"UPLOAD_MAX_BYTES" envDefault:"10485760"`
	MaxPromptRunes int    `env:"MAX_PROMPT_RUNES" envDefault:"4000"`

	// Rate limiting
	RateRPS   float64 `env:"RATE_RPS" envDefault:"5.0"`
	RateBurst int     `env:"RATE_BURST" envDefault:"10"`

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	// Collaborators
	Upstream   UpstreamConfig
	Generation GenerationConfig
	Auth       AuthConfig
	Mail       MailConfig
	Billing    BillingConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	normalize(&cfg)
	return cfg, validate(cfg)
}

func normalize(cfg *Config) {
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	cfg.GinMode = strings.ToLower(strings.TrimSpace(cfg.GinMode))
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	cfg.APIBasePath = normalizeBasePath(cfg.APIBasePath)
	cfg.CORS.AllowedOrigins = trimAll(cfg.CORS.AllowedOrigins)
	cfg.Upstream.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Upstream.BaseURL), "/")
	cfg.Upstream.ServerURL = strings.TrimRight(strings.TrimSpace(cfg.Upstream.ServerURL), "/")
}

func validate(cfg Config) error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("DB_PATH must not be empty")
	}
	if cfg.UploadMaxBytes <= 0 {
		return errors.New("UPLOAD_MAX_BYTES must be > 0")
	}
	if cfg.RateRPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	if cfg.Upstream.BaseURL == "" || cfg.Upstream.ServerURL == "" {
		return errors.New("UPSTREAM_BASE_URL and UPSTREAM_SERVER_URL must not be empty")
	}
	if cfg.Upstream.Timeout <= 0 {
		return errors.New("UPSTREAM_TIMEOUT must be > 0")
	}
	if cfg.Generation.PromptMaxAttempts < 1 {
		return errors.New("PROMPT_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.Generation.TopicMaxRetries < 0 {
		return errors.New("TOPIC_MAX_RETRIES must be >= 0")
	}
	if cfg.Generation.ChatMaxTokens <= 0 {
		return errors.New("CHAT_MAX_TOKENS must be > 0")
	}
	if len(cfg.Auth.JWTSecret) < 8 {
		return errors.New("JWT_SECRET must be at least 8 characters")
	}
	if cfg.Billing.FreeDailyMessages < 0 {
		return errors.New("FREE_DAILY_MESSAGES must be >= 0")
	}
	return nil
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, p := range in {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
