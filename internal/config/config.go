// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Store settings. Provider is one of memory, file, jetstream.
	StoreProvider string
	StoreDir      string

	// NATS settings, used when the store provider is jetstream.
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings
	JWTSecret string

	// LLM settings
	AnthropicAPIKey string
	OpenAIAPIKey    string
	DefaultLLM      string
	RankingModel    string

	// Retrieval settings
	SiteCatalogPath  string
	IndexDirs        []string
	RemoteVectorURL  string
	RemoteVectorKey  string
	RemoteCollection string
	RetrieveLimit    int
	RetrieveTimeout  time.Duration

	// Session settings
	SessionQueueLimit int

	// Ranking settings
	ScoringConcurrency int
	ScoreTimeout       time.Duration
	AuditLogPath       string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// Store
		StoreProvider: getEnv("STORE_PROVIDER", "memory"),
		StoreDir:      getEnv("STORE_DIR", "./data/sessions"),

		// NATS
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		DefaultLLM:      getEnv("DEFAULT_LLM", "anthropic"),
		RankingModel:    getEnv("RANKING_MODEL", ""),

		// Retrieval
		SiteCatalogPath:  getEnv("SITE_CATALOG", "./config/sites.yaml"),
		IndexDirs:        getListEnv("INDEX_DIRS", nil),
		RemoteVectorURL:  getEnv("REMOTE_VECTOR_URL", ""),
		RemoteVectorKey:  getEnv("REMOTE_VECTOR_API_KEY", ""),
		RemoteCollection: getEnv("REMOTE_VECTOR_COLLECTION", "documents"),
		RetrieveLimit:    getIntEnv("RETRIEVE_LIMIT", 20),
		RetrieveTimeout:  getDurationEnv("RETRIEVE_TIMEOUT", 8*time.Second),

		// Sessions
		SessionQueueLimit: getIntEnv("SESSION_QUEUE_LIMIT", 1000),

		// Ranking
		ScoringConcurrency: getIntEnv("SCORING_CONCURRENCY", 4),
		ScoreTimeout:       getDurationEnv("SCORE_TIMEOUT", 10*time.Second),
		AuditLogPath:       getEnv("SCORING_AUDIT_LOG", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
