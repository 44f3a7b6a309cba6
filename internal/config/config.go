package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	CORSAllowedOrigins []string

	DefaultTaxRate        decimal.Decimal
	CatalogCacheTTL       time.Duration
	IdempotencyTTL        time.Duration
	QuoteDefaultPageSize  int
	QuoteMaxPageSize      int
	QuoteReferencePrefix  string
	MaxRequestBodyBytes   int64
	MigrateOnStart        bool
	EventsEnabled         bool
	AuditEnabled          bool
	WorkerConcurrency     int
	PreviewRateLimit      int
	PreviewRateWindow     time.Duration
	PreviewRateLimitStore string

	LogFormat         string
	LogLevel          string
	MetricsEnabled    bool
	MetricsNamespace  string
	MetricsBucketsMS  string
	TracingEnabled    bool
	TracingExporter   string
	OTLPEndpoint      string
	TracingSampling   float64
	PprofEnabled      bool
	PprofUser         string
	PprofPass         string
	SecurityHeaders   bool
	EnableHSTS        bool
	ReadyDBTimeout    time.Duration
	ReadyRedisTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience:        strings.TrimSpace(k.String("JWT_AUDIENCE")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		DefaultTaxRate:        parseRate(k.String("PRICING_TAX_RATE"), "20"),
		CatalogCacheTTL:       parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		IdempotencyTTL:        parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		QuoteDefaultPageSize:  parseInt(k.String("QUOTE_DEFAULT_PAGE_SIZE"), 20),
		QuoteMaxPageSize:      parseInt(k.String("QUOTE_MAX_PAGE_SIZE"), 100),
		QuoteReferencePrefix:  valueOrDefault(k.String("QUOTE_REFERENCE_PREFIX"), "DEV"),
		MaxRequestBodyBytes:   int64(parseInt(k.String("MAX_REQUEST_BODY_BYTES"), 1<<20)),
		MigrateOnStart:        parseBool(k.String("MIGRATE_ON_START")),
		EventsEnabled:         parseBoolDefault(k.String("EVENTS_ENABLED"), true),
		AuditEnabled:          parseBoolDefault(k.String("AUDIT_ENABLED"), true),
		WorkerConcurrency:     parseInt(k.String("WORKER_CONCURRENCY"), 5),
		PreviewRateLimit:      parseInt(k.String("PREVIEW_RATE_LIMIT"), 120),
		PreviewRateWindow:     parseDuration(k.String("PREVIEW_RATE_WINDOW"), "1m"),
		PreviewRateLimitStore: strings.ToLower(valueOrDefault(k.String("PREVIEW_RATE_LIMIT_STORE"), "sliding")),

		LogFormat:         valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:          valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsEnabled:    parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
		MetricsNamespace:  valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "crm"),
		MetricsBucketsMS:  k.String("OBS_METRICS_BUCKETS_MS"),
		TracingEnabled:    parseBoolDefault(k.String("OBS_ENABLE_TRACING"), true),
		TracingExporter:   valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
		OTLPEndpoint:      strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSampling:   parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
		PprofEnabled:      parseBool(k.String("OBS_ENABLE_PPROF")),
		PprofUser:         strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
		PprofPass:         strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
		SecurityHeaders:   parseBoolDefault(k.String("SECURITY_HEADERS_ENABLED"), true),
		EnableHSTS:        parseBool(k.String("SECURITY_HSTS_ENABLED")),
		ReadyDBTimeout:    parseDuration(k.String("HEALTH_READY_DB_TIMEOUT"), "500ms"),
		ReadyRedisTimeout: parseDuration(k.String("HEALTH_READY_REDIS_TIMEOUT"), "300ms"),
		ShutdownTimeout:   parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),
	}

	if cfg.QuoteDefaultPageSize > cfg.QuoteMaxPageSize {
		cfg.QuoteDefaultPageSize = cfg.QuoteMaxPageSize
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

// parseRate reads a percentage such as "20" or "5.5". Invalid or negative values fall
// back to the default.
func parseRate(value, fallback string) decimal.Decimal {
	base := strings.TrimSpace(strings.Replace(value, ",", ".", 1))
	if base == "" {
		base = fallback
	}
	d, err := decimal.NewFromString(base)
	if err != nil || d.IsNegative() {
		return decimal.RequireFromString(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
