package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/muaviaUsmani/cadence/internal/logger"
)

// Config holds all configuration for the Cadence application
type Config struct {
	// RedisURL is the connection URL for Redis
	RedisURL string
	// APIPort is the port the API server listens on
	APIPort string

	// DispatchBaseURL is the base URL of the external delayed-message service
	DispatchBaseURL string
	// DispatchToken is the bearer token for the dispatch service.
	// When empty, dispatch registration is skipped and the sweep is the
	// only delivery mechanism.
	DispatchToken string
	// WebhookURL is the publicly reachable URL the dispatch service calls
	// when a job fires
	WebhookURL string
	// DispatchTimeout is the per-call timeout for dispatch service requests
	DispatchTimeout time.Duration

	// LLMBaseURL is the base URL of the content-generation API
	LLMBaseURL string
	// LLMAPIKey authenticates against the content-generation API
	LLMAPIKey string
	// LLMModel selects the model used for generation
	LLMModel string
	// LLMTimeout is the per-call timeout for generation requests
	LLMTimeout time.Duration

	// SweepEnabled enables the in-process reconciliation sweep
	SweepEnabled bool
	// SweepInterval is how often the sweep checks for due schedules
	SweepInterval time.Duration

	// Logging configuration
	Logging *logger.Config
}

// LoadConfig loads configuration from environment variables with sensible defaults
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379"),
		APIPort:         getEnv("API_PORT", "8080"),
		DispatchBaseURL: getEnv("DISPATCH_BASE_URL", ""),
		DispatchToken:   getEnv("DISPATCH_TOKEN", ""),
		WebhookURL:      getEnv("WEBHOOK_URL", ""),
		DispatchTimeout: getEnvAsDuration("DISPATCH_TIMEOUT", 10*time.Second),
		LLMBaseURL:      getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:       getEnv("LLM_API_KEY", ""),
		LLMModel:        getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:      getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		SweepEnabled:    getEnvAsBool("SWEEP_ENABLED", true),
		SweepInterval:   getEnvAsDuration("SWEEP_INTERVAL", 30*time.Second),
		Logging:         loadLoggingConfig(),
	}

	// Validate required fields
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL cannot be empty")
	}
	if cfg.APIPort == "" {
		return nil, fmt.Errorf("API_PORT cannot be empty")
	}
	if cfg.DispatchToken != "" && cfg.WebhookURL == "" {
		return nil, fmt.Errorf("WEBHOOK_URL must be set when DISPATCH_TOKEN is configured")
	}
	if cfg.SweepEnabled && cfg.SweepInterval < time.Second {
		return nil, fmt.Errorf("SWEEP_INTERVAL must be at least 1s")
	}

	// Validate logging config
	if err := cfg.Logging.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a duration or returns a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// loadLoggingConfig loads logging configuration from environment variables
func loadLoggingConfig() *logger.Config {
	cfg := logger.DefaultConfig()

	if level := getEnv("LOG_LEVEL", ""); level != "" {
		cfg.Level = logger.LogLevel(level)
	}
	if format := getEnv("LOG_FORMAT", ""); format != "" {
		cfg.Format = logger.LogFormat(format)
	}

	cfg.Console.Enabled = getEnvAsBool("LOG_CONSOLE_ENABLED", true)
	cfg.Console.Color = getEnvAsBool("LOG_COLOR", true)

	cfg.File.Enabled = getEnvAsBool("LOG_FILE_ENABLED", false)
	cfg.File.Path = getEnv("LOG_FILE_PATH", "/var/log/cadence/cadence.log")
	cfg.File.MaxSizeMB = getEnvAsInt("LOG_FILE_MAX_SIZE_MB", 100)
	cfg.File.MaxBackups = getEnvAsInt("LOG_FILE_MAX_BACKUPS", 5)
	cfg.File.MaxAgeDays = getEnvAsInt("LOG_FILE_MAX_AGE_DAYS", 30)
	cfg.File.Compress = getEnvAsBool("LOG_FILE_COMPRESS", true)

	return cfg
}
