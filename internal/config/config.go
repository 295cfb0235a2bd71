package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"docdash/internal/logger"
)

// DefaultSchemaFields are the fields the extraction provider is asked to infer
// when no EXTRACTION_SCHEMA_FIELDS override is set.
var DefaultSchemaFields = []string{
	"document_comes_from",
	"document_name",
	"document_kind",
	"pay_plan",
}

type Config struct {
	// Extraction provider
	PulseAPIKey    string
	PulseAPIURL    string
	PulseRateLimit float64

	// Polling behavior
	PollInterval   time.Duration
	PollMaxRetries int
	PollRetryDelay time.Duration
	ExtractTimeout time.Duration
	MaxWait        time.Duration

	// Extraction options sent on every async submit
	SchemaFields []string
	Chunking     string

	// Document classification
	NyckelAPIKey     string
	NyckelFunctionID string
	NyckelRateLimit  float64

	// Google Cloud Configuration
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string

	// Dashboard server
	ServerAddr  string
	CORSOrigins []string
	SessionTTL  time.Duration

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		PulseAPIKey:                getEnv("PULSE_API_KEY", ""),
		PulseAPIURL:                getEnv("PULSE_API_URL", "https://api.runpulse.com"),
		NyckelAPIKey:               getEnv("NYCKEL_API_KEY", ""),
		NyckelFunctionID:           getEnv("NYCKEL_FUNCTION_ID", "document-types-identifier"),
		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
		Chunking:                   getEnv("EXTRACTION_CHUNKING", "semantic"),
		SchemaFields:               getList("EXTRACTION_SCHEMA_FIELDS", DefaultSchemaFields),
		ServerAddr:                 getEnv("SERVER_ADDR", ":8080"),
		CORSOrigins:                getList("CORS_ORIGINS", []string{"*"}),
		LogLevel:                   getEnv("LOG_LEVEL", "info"),
		LogFormat:                  getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:              getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                  getEnv("LOG_OUTPUT", "stderr"),
	}

	var err error
	if config.PulseRateLimit, err = getFloat("PULSE_RATE_LIMIT", 0); err != nil {
		return nil, err
	}
	if config.NyckelRateLimit, err = getFloat("NYCKEL_RATE_LIMIT", 0); err != nil {
		return nil, err
	}
	if config.PollMaxRetries, err = getInt("POLL_MAX_RETRIES", 2); err != nil {
		return nil, err
	}
	if config.PollInterval, err = getDuration("POLL_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if config.PollRetryDelay, err = getDuration("POLL_RETRY_DELAY", 3*time.Second); err != nil {
		return nil, err
	}
	if config.ExtractTimeout, err = getDuration("EXTRACT_TIMEOUT", 120*time.Second); err != nil {
		return nil, err
	}
	if config.MaxWait, err = getDuration("EXTRACTION_MAX_WAIT", 5*time.Minute); err != nil {
		return nil, err
	}
	if config.SessionTTL, err = getDuration("SESSION_TTL", 30*time.Minute); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.PollMaxRetries < 0 {
		return fmt.Errorf("POLL_MAX_RETRIES cannot be negative")
	}
	if c.PulseRateLimit < 0 {
		return fmt.Errorf("PULSE_RATE_LIMIT cannot be negative")
	}
	if c.NyckelRateLimit < 0 {
		return fmt.Errorf("NYCKEL_RATE_LIMIT cannot be negative")
	}
	switch c.Chunking {
	case "semantic", "recursive":
	default:
		return fmt.Errorf("EXTRACTION_CHUNKING must be semantic or recursive, got %q", c.Chunking)
	}
	return nil
}

// RequirePulse reports whether the extraction provider can be reached.
func (c *Config) RequirePulse() error {
	if c.PulseAPIKey == "" {
		return fmt.Errorf("PULSE_API_KEY is not configured")
	}
	return nil
}

// RequireNyckel reports whether the classification service is configured.
func (c *Config) RequireNyckel() error {
	if c.NyckelAPIKey == "" {
		return fmt.Errorf("NYCKEL_API_KEY is not configured")
	}
	return nil
}

// RequireDocumentAI reports whether Document AI analysis is configured.
func (c *Config) RequireDocumentAI() error {
	if c.GoogleCloudProject == "" {
		return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required")
	}
	if c.DocumentAIProcessorID == "" {
		return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, value)
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, value)
	}
	return f, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return d, nil
}
