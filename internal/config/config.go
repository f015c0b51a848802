// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Redis (report cache, rate limiting). Optional: in-memory fallbacks are
	// used when unset.
	RedisURL string `koanf:"redis_url"`

	// JWT Authentication
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"` // Set during secret rotation

	// Tinybird (analytics backend). Optional: reports degrade gracefully
	// when no token is configured.
	TinybirdToken   string `koanf:"tinybird_token"`
	TinybirdBaseURL string `koanf:"tinybird_base_url"`

	// Stripe
	StripeAPIKey        string            `koanf:"stripe_api_key"`
	StripeWebhookSecret string            `koanf:"stripe_webhook_secret"`
	StripePriceMap      map[string]string `koanf:"stripe_price_map"` // Price ID -> plan name

	// S3-compatible object storage for document files
	S3BucketName      string `koanf:"s3_bucket_name"`
	S3Region          string `koanf:"s3_region"`
	S3AccessKeyID     string `koanf:"s3_access_key_id"`
	S3SecretAccessKey string `koanf:"s3_secret_access_key"`
	S3Endpoint        string `koanf:"s3_endpoint"`

	// CORS. Empty means cross-origin requests are not served.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"`
	TracingOTLPEndpoint string  `koanf:"tracing_otlp_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`

	// SelfHosted disables plan-based view caps for self-hosted deployments.
	SelfHosted bool `koanf:"self_hosted"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL         = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret           = errors.New("JWT_SECRET is required")
	ErrMissingStripeAPIKey        = errors.New("STRIPE_API_KEY is required when Stripe is configured")
	ErrMissingStripeWebhookSecret = errors.New("STRIPE_WEBHOOK_SECRET is required when Stripe is configured")
	ErrMissingS3BucketName        = errors.New("S3_BUCKET_NAME is required when S3 is configured")
	ErrMissingS3AccessKeyID       = errors.New("S3_ACCESS_KEY_ID is required when S3 is configured")
	ErrMissingS3SecretAccessKey   = errors.New("S3_SECRET_ACCESS_KEY is required when S3 is configured")
	ErrInvalidPort                = errors.New("PORT must be a valid integer")
	ErrInvalidSamplingRate        = errors.New("TRACING_SAMPLING_RATE must be between 0 and 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort                = 8080
	DefaultEnv                 = "development"
	DefaultTinybirdBaseURL     = "https://api.tinybird.co"
	DefaultTracingSamplingRate = 0.1
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Parse port from env, collecting error if invalid
	port, portErr := getEnvIntOrDefault("PORT", k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	// Parse tracing sampling rate with default
	samplingRate, samplingErr := getEnvFloatOrDefault("TRACING_SAMPLING_RATE", k.Float64("tracing_sampling_rate"), DefaultTracingSamplingRate)
	if samplingErr != nil {
		loadErrs = append(loadErrs, samplingErr)
	}

	// Parse the Stripe price map. The file form is a YAML mapping; the env
	// form is comma-separated "price_id=plan" pairs.
	priceMap := k.StringMap("stripe_price_map")
	if val := os.Getenv("STRIPE_PRICE_MAP"); val != "" {
		priceMap = parsePriceMap(val)
	}

	// CORS origins. The file form is a YAML list; the env form is
	// comma-separated.
	corsOrigins := k.Strings("cors_allowed_origins")
	if val := os.Getenv("CORS_ALLOWED_ORIGINS"); val != "" {
		corsOrigins = splitAndTrim(val)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                port,
		Env:                 getEnvOrDefaultMulti([]string{"ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:         getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:            getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		JWTSecret:           getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret:   getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		TinybirdToken:       getEnvOrKoanf("TINYBIRD_TOKEN", k, "tinybird_token"),
		TinybirdBaseURL:     getEnvOrDefault("TINYBIRD_BASE_URL", k.String("tinybird_base_url"), DefaultTinybirdBaseURL),
		StripeAPIKey:        getEnvOrKoanf("STRIPE_API_KEY", k, "stripe_api_key"),
		StripeWebhookSecret: getEnvOrKoanf("STRIPE_WEBHOOK_SECRET", k, "stripe_webhook_secret"),
		StripePriceMap:      priceMap,
		S3BucketName:        getEnvOrKoanf("S3_BUCKET_NAME", k, "s3_bucket_name"),
		S3Region:            getEnvOrKoanf("S3_REGION", k, "s3_region"),
		S3AccessKeyID:       getEnvOrKoanf("S3_ACCESS_KEY_ID", k, "s3_access_key_id"),
		S3SecretAccessKey:   getEnvOrKoanf("S3_SECRET_ACCESS_KEY", k, "s3_secret_access_key"),
		S3Endpoint:          getEnvOrKoanf("S3_ENDPOINT", k, "s3_endpoint"),
		CORSAllowedOrigins:  corsOrigins,
		TracingEnabled:      getEnvBool("TRACING_ENABLED", k, "tracing_enabled"),
		TracingExporter:     getEnvOrKoanf("TRACING_EXPORTER", k, "tracing_exporter"),
		TracingOTLPEndpoint: getEnvOrKoanf("TRACING_OTLP_ENDPOINT", k, "tracing_otlp_endpoint"),
		TracingSamplingRate: samplingRate,
		SelfHosted:          getEnvBool("SELF_HOSTED", k, "self_hosted"),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// splitAndTrim splits a comma-separated list, dropping empty entries.
func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parsePriceMap parses "price_id=plan" pairs separated by commas.
// Malformed pairs are skipped.
func parsePriceMap(s string) map[string]string {
	result := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		priceID, plan, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || priceID == "" || plan == "" {
			continue
		}
		result[priceID] = plan
	}
	return result
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvBool returns the environment variable as a bool if set, otherwise the koanf value.
// The env var accepts true/false, 1/0, yes/no, on/off.
func getEnvBool(envKey string, k *koanf.Koanf, koanfKey string) bool {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return k.Bool(koanfKey)
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
// Note: A value of 0 from a YAML file will fall back to the default.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}

	// Stripe configuration is optional. Only validate fields if any Stripe value is set.
	if c.StripeAPIKey != "" || c.StripeWebhookSecret != "" || len(c.StripePriceMap) > 0 {
		if c.StripeAPIKey == "" {
			errs = append(errs, ErrMissingStripeAPIKey)
		}
		if c.StripeWebhookSecret == "" {
			errs = append(errs, ErrMissingStripeWebhookSecret)
		}
	}

	// S3 configuration is optional. Only validate fields if any S3 value is set.
	if c.S3BucketName != "" || c.S3AccessKeyID != "" || c.S3SecretAccessKey != "" || c.S3Endpoint != "" {
		if c.S3BucketName == "" {
			errs = append(errs, ErrMissingS3BucketName)
		}
		if c.S3AccessKeyID == "" {
			errs = append(errs, ErrMissingS3AccessKeyID)
		}
		if c.S3SecretAccessKey == "" {
			errs = append(errs, ErrMissingS3SecretAccessKey)
		}
	}

	if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
		errs = append(errs, ErrInvalidSamplingRate)
	}

	return errs
}

// S3Configured reports whether object storage is configured.
func (c *Config) S3Configured() bool {
	return c.S3BucketName != "" && c.S3AccessKeyID != "" && c.S3SecretAccessKey != ""
}

// StripeConfigured reports whether Stripe billing is configured.
func (c *Config) StripeConfigured() bool {
	return c.StripeAPIKey != "" && c.StripeWebhookSecret != ""
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                  fmt.Sprintf("%d", c.Port),
		"env":                   c.Env,
		"database_url":          maskDatabaseURL(c.DatabaseURL),
		"redis_url":             maskDatabaseURL(c.RedisURL),
		"jwt_secret":            maskSecret(c.JWTSecret),
		"jwt_previous_secret":   maskSecret(c.JWTPreviousSecret),
		"tinybird_token":        maskSecret(c.TinybirdToken),
		"tinybird_base_url":     c.TinybirdBaseURL,
		"stripe_api_key":        maskStripeKey(c.StripeAPIKey),
		"stripe_webhook_secret": maskSecret(c.StripeWebhookSecret),
		"stripe_price_map":      fmt.Sprintf("%d prices", len(c.StripePriceMap)),
		"s3_bucket_name":        c.S3BucketName,
		"s3_region":             c.S3Region,
		"s3_access_key_id":      maskSecret(c.S3AccessKeyID),
		"s3_secret_access_key":  maskSecret(c.S3SecretAccessKey),
		"s3_endpoint":           c.S3Endpoint,
		"cors_allowed_origins":  fmt.Sprintf("%d origins", len(c.CORSAllowedOrigins)),
		"tracing_enabled":       fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_sampling_rate": fmt.Sprintf("%g", c.TracingSamplingRate),
		"self_hosted":           fmt.Sprintf("%t", c.SelfHosted),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskStripeKey masks a Stripe API key, preserving the prefix (sk_live_, sk_test_, etc.)
func maskStripeKey(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Stripe keys have format like sk_live_..., sk_test_..., pk_live_..., etc.
	parts := strings.SplitN(s, "_", 3)
	if len(parts) == 3 {
		return parts[0] + "_" + parts[1] + "_****"
	}

	// Fallback to generic masking
	return maskSecret(s)
}

// maskDatabaseURL masks the password in a connection URL.
// Supports postgres://, postgresql:// and redis:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	// Simple approach: find :// and then mask between : and @
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
