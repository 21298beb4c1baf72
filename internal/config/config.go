package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string

	HTTP    HTTPConfig
	Gemini  GeminiConfig
	Redis   RedisConfig
	Vector  VectorConfig
	Session SessionConfig
	Logging LogConfig
	Admin   AdminConfig
}

type HTTPConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type GeminiConfig struct {
	APIKey         string
	FlashModel     string
	ProModel       string
	EmbeddingModel string
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type VectorConfig struct {
	Enabled      bool
	DocumentsKey string
	TopK         int
}

type SessionConfig struct {
	TTL             time.Duration
	ThoughtsMaxLen  int64
	DefaultLanguage string
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

type AdminConfig struct {
	// Toy bearer check for the scheme ingest endpoint; tokens must carry
	// this prefix. Real authn/authz lives outside this service.
	TokenPrefix string
}

func Load() (*Config, error) {
	// Missing .env is fine in deployed environments.
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		HTTP: HTTPConfig{
			Port:         getEnvInt("PORT", 8080),
			ReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  getEnvDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
		},
		Gemini: GeminiConfig{
			APIKey:         os.Getenv("GEMINI_API_KEY"),
			FlashModel:     getEnv("GEMINI_FLASH_MODEL", "gemini-2.0-flash"),
			ProModel:       getEnv("GEMINI_PRO_MODEL", "gemini-2.5-pro"),
			EmbeddingModel: getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
			Timeout:        getEnvDuration("GEMINI_TIMEOUT", 60*time.Second),
			MaxRetries:     getEnvInt("GEMINI_MAX_RETRIES", 3),
			RetryDelay:     getEnvDuration("GEMINI_RETRY_DELAY", 2*time.Second),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", "redis://localhost:6379"),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Vector: VectorConfig{
			Enabled:      getEnvBool("VECTOR_STORE_ENABLED", true),
			DocumentsKey: getEnv("VECTOR_DOCUMENTS_KEY", "schemes:docs"),
			TopK:         getEnvInt("VECTOR_TOP_K", 5),
		},
		Session: SessionConfig{
			TTL:             getEnvDuration("SESSION_TTL", 24*time.Hour),
			ThoughtsMaxLen:  int64(getEnvInt("SESSION_THOUGHTS_MAX_LEN", 1024)),
			DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "english"),
		},
		Logging: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Admin: AdminConfig{
			TokenPrefix: getEnv("ADMIN_TOKEN_PREFIX", "admin_"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", cfg.HTTP.Port)
	}
	if cfg.Gemini.MaxRetries < 1 {
		return fmt.Errorf("GEMINI_MAX_RETRIES must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
