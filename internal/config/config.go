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

	"github.com/noah-isme/backend-studio/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	MaxBodyBytes       int64
	EnableHSTS         bool

	TenantHeader     string
	TenantRootDomain string
	DefaultTenant    string

	DefaultTaxRate     decimal.Decimal
	DefaultPriceEnding pricing.PriceEnding
	CurrencyCode       string

	CatalogCacheTTL         time.Duration
	IdempotencyTTL          time.Duration
	CouponPreviewRateLimit  int64
	CouponPreviewRateWindow time.Duration
	CouponLockTTL           time.Duration
	InvoiceCreateRateLimit  int
	InvoiceCreateRateWindow time.Duration

	MigrateOnStart    bool
	JobsQueue         string
	JobsMaxRetry      int
	WorkerConcurrency int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	taxRate, err := decimal.NewFromString(valueOrDefault(k.String("PRICING_DEFAULT_TAX_RATE"), "0"))
	if err != nil {
		return nil, fmt.Errorf("PRICING_DEFAULT_TAX_RATE: %w", err)
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, errors.New("PRICING_DEFAULT_TAX_RATE must be within 0-100")
	}
	ending, err := pricing.ParsePriceEnding(valueOrDefault(k.String("PRICING_DEFAULT_PRICE_ENDING"), string(pricing.EndingNine)))
	if err != nil {
		return nil, fmt.Errorf("PRICING_DEFAULT_PRICE_ENDING: %w", err)
	}
	if ending == pricing.EndingCustom {
		return nil, errors.New("PRICING_DEFAULT_PRICE_ENDING cannot be custom")
	}

	cfg := &Config{
		AppEnv:                  valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                    valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:             k.String("DATABASE_URL"),
		RedisURL:                k.String("REDIS_URL"),
		CORSAllowedOrigins:      splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		MaxBodyBytes:            int64(parseInt(k.String("MAX_BODY_BYTES"), 1<<20)),
		EnableHSTS:              parseBool(k.String("SECURITY_ENABLE_HSTS")),
		TenantHeader:            valueOrDefault(k.String("TENANT_HEADER"), "X-Tenant-ID"),
		TenantRootDomain:        strings.TrimSpace(k.String("TENANT_ROOT_DOMAIN")),
		DefaultTenant:           strings.TrimSpace(k.String("DEFAULT_TENANT")),
		DefaultTaxRate:          taxRate,
		DefaultPriceEnding:      ending,
		CurrencyCode:            strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "USD")),
		CatalogCacheTTL:         parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		IdempotencyTTL:          parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CouponPreviewRateLimit:  int64(parseInt(k.String("COUPON_PREVIEW_RATE_LIMIT"), 30)),
		CouponPreviewRateWindow: parseDuration(k.String("COUPON_PREVIEW_RATE_WINDOW"), "1m"),
		CouponLockTTL:           parseDuration(k.String("COUPON_LOCK_TTL"), "5s"),
		InvoiceCreateRateLimit:  parseInt(k.String("INVOICE_CREATE_RATE_LIMIT"), 20),
		InvoiceCreateRateWindow: parseDuration(k.String("INVOICE_CREATE_RATE_WINDOW"), "1m"),
		MigrateOnStart:          parseBool(k.String("MIGRATE_ON_START")),
		JobsQueue:               valueOrDefault(k.String("JOBS_QUEUE"), "default"),
		JobsMaxRetry:            parseInt(k.String("JOBS_MAX_RETRY"), 10),
		WorkerConcurrency:       parseInt(k.String("WORKER_CONCURRENCY"), 10),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
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
	if err != nil || d <= 0 {
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

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
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
