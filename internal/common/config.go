package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Endpoint EndpointConfig
	Batch    BatchConfig
	Output   OutputConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr string
}

// EndpointConfig holds the inference endpoint configuration
type EndpointConfig struct {
	URL           string
	APIKey        string
	AuthHeader    string
	Model         string
	Timeout       time.Duration
	MaxRetries    int
	BaseDelay     time.Duration
	BackoffFactor float64
	SkipTLSVerify bool
	ShapeRetries  int
	ShapeDelay    time.Duration
}

// BatchConfig holds concurrency configuration
type BatchConfig struct {
	ConcurrencyLimit int
}

// OutputConfig holds report output configuration
type OutputConfig struct {
	Dir string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		},
		Endpoint: EndpointConfig{
			URL:           getEnv("API_URL", ""),
			APIKey:        getEnv("API_KEY", ""),
			AuthHeader:    getEnv("API_AUTH_HEADER", "x-goog-api-key"),
			Model:         getEnv("MODEL_NAME", "gemini-2.5-flash"),
			Timeout:       getEnvAsDuration("API_TIMEOUT", 300*time.Second),
			MaxRetries:    getEnvAsInt("API_RETRIES", 50),
			BaseDelay:     getEnvAsDuration("API_BASE_DELAY", 1500*time.Millisecond),
			BackoffFactor: getEnvAsFloat64("API_BACKOFF_FACTOR", 2.0),
			SkipTLSVerify: getEnvAsBool("API_SKIP_TLS_VERIFY", false),
			ShapeRetries:  getEnvAsInt("JSON_RETRIES", 3),
			ShapeDelay:    getEnvAsDuration("JSON_RETRY_DELAY", time.Second),
		},
		Batch: BatchConfig{
			ConcurrencyLimit: getEnvAsInt("API_CONCURRENCY_LIMIT", 50),
		},
		Output: OutputConfig{
			Dir: getEnv("OUTPUT_DIR", "job_outputs"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Endpoint.URL == "" {
		return NewAppError("CONFIG_ERROR", "API_URL is required", ErrInvalidInput)
	}
	if c.Endpoint.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "API_KEY is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Batch.ConcurrencyLimit <= 0 {
		return NewAppError("CONFIG_ERROR", "API_CONCURRENCY_LIMIT must be positive", ErrInvalidInput)
	}
	if c.Endpoint.MaxRetries <= 0 {
		return NewAppError("CONFIG_ERROR", "API_RETRIES must be positive", ErrInvalidInput)
	}
	return nil
}
