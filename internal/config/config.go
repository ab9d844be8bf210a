package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Backend selection
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string
	SeedDemoData bool

	// AMQP (optional domain events)
	AMQPURL           string
	AMQPExchange      string
	AMQPRoutingPrefix string

	// Exchange rates
	FXProviderURL     string
	FXTimeout         time.Duration
	FXRefreshInterval time.Duration
	FallbackRatesFile string

	// Import
	ImportExtractor string
	ImportTimeout   time.Duration
	GeminiModel     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string

	// Google service account used by the gs:// and sheets:// import sources
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Logging
	LogLevel  string
	LogFormat string
}

var (
	validBackends   = []string{"memory", "sqlite", "postgres"}
	validExtractors = []string{"none", "gemini", "openai"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

func Load() *Config {
	backend := getEnv("DATA_BACKEND", "memory")
	cfg := &Config{
		Port:               getEnv("PORT", "5000"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		DataBackend:  backend,
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/taxledger.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		// demo data is on by default only for the throwaway memory backend
		SeedDemoData: getEnvBool("SEED_DEMO_DATA", backend == "memory"),

		AMQPURL:           getEnv("AMQP_URL", ""),
		AMQPExchange:      getEnv("AMQP_EXCHANGE", "taxledger"),
		AMQPRoutingPrefix: getEnv("AMQP_ROUTING_PREFIX", "ledger"),

		FXProviderURL:     getEnv("FX_PROVIDER_URL", "https://api.frankfurter.app/latest?from=GBP"),
		FXTimeout:         getEnvDuration("FX_TIMEOUT", 10*time.Second),
		FXRefreshInterval: getEnvDuration("FX_REFRESH_INTERVAL", 0),
		FallbackRatesFile: getEnv("FALLBACK_RATES_FILE", ""),

		ImportExtractor: getEnv("IMPORT_EXTRACTOR", "none"),
		ImportTimeout:   getEnvDuration("IMPORT_TIMEOUT", 2*time.Minute),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	// Validate data backend
	if !oneOf(c.DataBackend, validBackends) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate FX provider
	if c.FXProviderURL != "" {
		if u, err := url.Parse(c.FXProviderURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid FX provider URL '%s': must be http or https", c.FXProviderURL))
		}
	}
	if c.FXTimeout < 100*time.Millisecond || c.FXTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid FX timeout %v: must be between 100ms and 1 minute", c.FXTimeout))
	}
	if c.FXRefreshInterval != 0 && c.FXRefreshInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid FX refresh interval %v: must be 0 (disabled) or at least 1 minute", c.FXRefreshInterval))
	}
	if c.FallbackRatesFile != "" {
		if _, err := os.Stat(c.FallbackRatesFile); err != nil {
			errors = append(errors, fmt.Sprintf("fallback rates file not readable: %s", c.FallbackRatesFile))
		}
	}

	// Validate import extractor
	if !oneOf(c.ImportExtractor, validExtractors) {
		errors = append(errors, fmt.Sprintf("invalid import extractor '%s': must be one of %v", c.ImportExtractor, validExtractors))
	}
	if c.ImportExtractor == "openai" && c.OpenAIAPIKey == "" {
		errors = append(errors, "OPENAI_API_KEY is required when using the openai extractor")
	}
	if c.ImportExtractor == "gemini" && c.GeminiModel == "" {
		errors = append(errors, "GEMINI_MODEL cannot be empty when using the gemini extractor")
	}
	if c.ImportTimeout < time.Second || c.ImportTimeout > 10*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid import timeout %v: must be between 1 second and 10 minutes", c.ImportTimeout))
	}

	// Validate logging
	if !oneOf(c.LogLevel, validLogLevels) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !oneOf(c.LogFormat, validLogFormats) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// HasGoogleCredentials reports whether a service account is configured.
func (c *Config) HasGoogleCredentials() bool {
	return c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != ""
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
