package common

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Whisperer WhispererConfig
	LLM       LLMConfig
	Batch     BatchConfig
	Server    ServerConfig
	Storage   StorageConfig
}

// WhispererConfig holds the PDF→text conversion service settings.
type WhispererConfig struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration // whole-document conversion budget
	PollInterval time.Duration
}

// LLMConfig holds the field-extraction service settings.
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// BatchConfig holds retry and pacing policy knobs.
type BatchConfig struct {
	MaxAttempts    int
	RetryBaseDelay time.Duration
	DocPacing      time.Duration // sleep between documents
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Addr      string
	UploadDir string
}

// StorageConfig holds output and batch-log settings.
type StorageConfig struct {
	DBPath    string // sqlite file; ":memory:" supported
	OutputDir string
}

// LoadConfig loads configuration from a .env file (if present) and the
// environment. The whisperer key accepts the legacy variable names used by
// earlier deployments.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Whisperer: WhispererConfig{
			APIKey: firstEnv("WHISPERER_API_KEY", "LLMWHISPERER_API_KEY", "LLM_WHISPERER_API_KEY"),
			BaseURL: getEnv("WHISPERER_BASE_URL",
				"https://llmwhisperer-api.us-central.unstract.com/api/v2"),
			Timeout:      getEnvAsDuration("CONVERT_TIMEOUT", 5*time.Minute),
			PollInterval: getEnvAsDuration("CONVERT_POLL_INTERVAL", 3*time.Second),
		},
		LLM: LLMConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("EXTRACT_TIMEOUT", 3*time.Minute),
		},
		Batch: BatchConfig{
			MaxAttempts:    getEnvAsInt("MAX_ATTEMPTS", 3),
			RetryBaseDelay: getEnvAsDuration("RETRY_BASE_DELAY", 2*time.Second),
			DocPacing:      getEnvAsDuration("DOC_PACING", 0),
		},
		Server: ServerConfig{
			Addr:      getEnv("HTTP_ADDR", ":8080"),
			UploadDir: getEnv("UPLOAD_DIR", "./uploads"),
		},
		Storage: StorageConfig{
			DBPath:    getEnv("DB_PATH", "facturas.db"),
			OutputDir: getEnv("OUTPUT_DIR", "./output"),
		},
	}
}

// Validate checks the parts of the configuration that have no usable default.
func (c *Config) Validate() error {
	if c.Whisperer.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "WHISPERER_API_KEY is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
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
