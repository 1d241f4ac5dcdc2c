// Package config loads the CLI configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when a variable is unset or empty.
const (
	DefaultBaseURL           = "https://api.altered.gg"
	DefaultHTTPTimeout       = 260 * time.Second
	DefaultMaxAttempts       = 10
	DefaultEnrichConcurrency = 4
	DefaultLogLevel          = "info"
)

// Config is the CLI configuration read from the environment.
type Config struct {
	AuthToken         string
	BaseURL           string
	Env               string
	ReportDir         string
	LogLevel          string
	LogPretty         bool
	HTTPTimeout       time.Duration
	MaxAttempts       int
	EnrichConcurrency int
	RedisAddr         string
	OtelEndpoint      string
	MetricsTextfile   string
}

// IsTest reports whether ALTERED_ENV selects the test environment.
func (c Config) IsTest() bool {
	return c.Env == "test"
}

// EnvSource looks up environment variables.
type EnvSource interface {
	Lookup(key string) (string, bool)
}

// EnvMap is an EnvSource backed by a map, used in tests.
type EnvMap map[string]string

// Lookup implements EnvSource.
func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

// FromEnviron snapshots the process environment.
func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

// Load builds a Config from source. ALTERED_AUTH is optional here because
// commands accept the token as a flag too.
func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	baseURL := lookupString(source, "ALTERED_BASE_URL", DefaultBaseURL)
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Config{}, fmt.Errorf("invalid ALTERED_BASE_URL %q", baseURL)
	}

	httpTimeout := DefaultHTTPTimeout
	if raw, ok := source.Lookup("HTTP_TIMEOUT"); ok && strings.TrimSpace(raw) != "" {
		httpTimeout, err = time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return Config{}, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
		}
		if httpTimeout <= 0 {
			return Config{}, fmt.Errorf("invalid HTTP_TIMEOUT: must be positive (got %s)", httpTimeout)
		}
	}

	maxAttempts, err := parsePositiveInt(source, "HTTP_MAX_ATTEMPTS", DefaultMaxAttempts)
	if err != nil {
		return Config{}, err
	}
	enrichConcurrency, err := parsePositiveInt(source, "ENRICH_CONCURRENCY", DefaultEnrichConcurrency)
	if err != nil {
		return Config{}, err
	}
	logPretty, err := parseBool(source, "LOG_PRETTY", true)
	if err != nil {
		return Config{}, err
	}

	return Config{
		AuthToken:         lookupString(source, "ALTERED_AUTH", ""),
		BaseURL:           baseURL,
		Env:               lookupString(source, "ALTERED_ENV", ""),
		ReportDir:         lookupString(source, "REPORT_DIR", ""),
		LogLevel:          lookupString(source, "LOG_LEVEL", DefaultLogLevel),
		LogPretty:         logPretty,
		HTTPTimeout:       httpTimeout,
		MaxAttempts:       maxAttempts,
		EnrichConcurrency: enrichConcurrency,
		RedisAddr:         lookupString(source, "REDIS_ADDR", ""),
		OtelEndpoint:      lookupString(source, "OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		MetricsTextfile:   lookupString(source, "METRICS_TEXTFILE", ""),
	}, nil
}

func lookupString(source EnvSource, key, defaultValue string) string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	return strings.TrimSpace(raw)
}

func parsePositiveInt(source EnvSource, key string, defaultValue int) (int, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value < 1 {
		return 0, fmt.Errorf("invalid %s: must be >= 1 (got %d)", key, value)
	}
	return value, nil
}

func parseBool(source EnvSource, key string, defaultValue bool) (bool, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
