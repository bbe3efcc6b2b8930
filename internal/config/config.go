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
)

// Catalog sources.
const (
	CatalogSourceFile = "file"
	CatalogSourceHTTP = "http"
)

// Order gateway kinds.
const (
	GatewayMock = "mock"
	GatewayHTTP = "http"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string

	CatalogSource   string
	CatalogFile     string
	CatalogURL      string
	CatalogCacheTTL time.Duration

	OrderGateway            string
	OrderGatewayURL         string
	OrderGatewayMockLatency time.Duration
	CheckoutTimeout         time.Duration
	// GatewayAttemptTimeout bounds one order gateway attempt. Zero splits
	// CheckoutTimeout evenly across RetryMaxAttempts.
	GatewayAttemptTimeout   time.Duration
	CheckoutRateLimit       string
	IdempotencyTTL          time.Duration

	RetryBase          time.Duration
	RetryMaxAttempts   int
	RetryJitterPercent float64

	CircuitMinRequests  int
	CircuitFailureRatio float64
	CircuitOpenFor      time.Duration

	Obs Obs
}

// Obs groups logging, metrics and tracing switches.
type Obs struct {
	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	MetricsBuckets   string
	EnablePrometheus bool
	EnableTracing    bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
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
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		CatalogSource:   strings.ToLower(valueOrDefault(k.String("CATALOG_SOURCE"), CatalogSourceFile)),
		CatalogFile:     valueOrDefault(k.String("CATALOG_FILE"), "data/products.json"),
		CatalogURL:      strings.TrimSpace(k.String("CATALOG_URL")),
		CatalogCacheTTL: parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),

		OrderGateway:            strings.ToLower(valueOrDefault(k.String("ORDER_GATEWAY"), GatewayMock)),
		OrderGatewayURL:         strings.TrimSpace(k.String("ORDER_GATEWAY_URL")),
		OrderGatewayMockLatency: parseDuration(k.String("ORDER_GATEWAY_MOCK_LATENCY"), "1s"),
		CheckoutTimeout:         parseDuration(k.String("CHECKOUT_TIMEOUT"), "10s"),
		GatewayAttemptTimeout:   parseDuration(k.String("ORDER_GATEWAY_ATTEMPT_TIMEOUT"), "0s"),
		CheckoutRateLimit:       valueOrDefault(k.String("CHECKOUT_RATE_LIMIT"), "10-M"),
		IdempotencyTTL:          parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		RetryBase:          parseDuration(k.String("RETRY_BASE"), "200ms"),
		RetryMaxAttempts:   parseInt(k.String("RETRY_MAX_ATTEMPTS"), 3),
		RetryJitterPercent: parseFloat(k.String("RETRY_JITTER_PERCENT"), 0.2),

		CircuitMinRequests:  parseInt(k.String("CIRCUIT_MIN_REQUESTS"), 5),
		CircuitFailureRatio: parseFloat(k.String("CIRCUIT_FAILURE_RATIO"), 0.5),
		CircuitOpenFor:      parseDuration(k.String("CIRCUIT_OPEN_FOR"), "30s"),

		Obs: Obs{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "storefront"),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
			EnablePrometheus: parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			EnableTracing:    parseBool(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CatalogSource {
	case CatalogSourceFile:
		if strings.TrimSpace(c.CatalogFile) == "" {
			return errors.New("CATALOG_FILE is required when CATALOG_SOURCE=file")
		}
	case CatalogSourceHTTP:
		if c.CatalogURL == "" {
			return errors.New("CATALOG_URL is required when CATALOG_SOURCE=http")
		}
	default:
		return fmt.Errorf("unsupported CATALOG_SOURCE %q", c.CatalogSource)
	}
	switch c.OrderGateway {
	case GatewayMock:
	case GatewayHTTP:
		if c.OrderGatewayURL == "" {
			return errors.New("ORDER_GATEWAY_URL is required when ORDER_GATEWAY=http")
		}
	default:
		return fmt.Errorf("unsupported ORDER_GATEWAY %q", c.OrderGateway)
	}
	if c.CheckoutTimeout <= 0 {
		return errors.New("CHECKOUT_TIMEOUT must be positive")
	}
	if c.GatewayAttemptTimeout < 0 {
		return errors.New("ORDER_GATEWAY_ATTEMPT_TIMEOUT must not be negative")
	}
	if c.CircuitFailureRatio <= 0 || c.CircuitFailureRatio > 1 {
		return errors.New("CIRCUIT_FAILURE_RATIO must be in (0, 1]")
	}
	return nil
}

// AttemptTimeout returns the per-attempt bound for order gateway calls so
// that retries fit inside CheckoutTimeout.
func (c *Config) AttemptTimeout() time.Duration {
	if c.GatewayAttemptTimeout > 0 {
		return min(c.GatewayAttemptTimeout, c.CheckoutTimeout)
	}
	return c.CheckoutTimeout / time.Duration(max(c.RetryMaxAttempts, 1))
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
		return strings.TrimSpace(value)
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

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return v
	}
	return fallback
}

func parseFloat(value string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		return v
	}
	return fallback
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
