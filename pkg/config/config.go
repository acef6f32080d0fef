package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Square   SquareConfig
	App      AppConfig
	Queue    QueueConfig
	JWT      JWTConfig
	Log      LogConfig
	Metrics  MetricsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string
}

// SquareConfig holds the Square application credentials and webhook settings.
// ApplicationID/Secret are per-deployment; leaving them empty disables the
// OAuth connect flow with a configuration error rather than a tenant error.
type SquareConfig struct {
	ApplicationID       string
	ApplicationSecret   string
	Env                 string // "sandbox" or "production"
	RedirectURI         string
	WebhookSignatureKey string
	NotificationURL     string
	APIVersion          string
}

// BaseURL returns the Square connect host for the configured environment.
func (s *SquareConfig) BaseURL() string {
	if s.Env == "production" {
		return "https://connect.squareup.com"
	}
	return "https://connect.squareupsandbox.com"
}

// AppConfig holds application-level secrets and URLs
type AppConfig struct {
	SecretKey   string // derives the vault key and signs OAuth state
	FrontendURL string
	AgentAPIKey string
}

// QueueConfig holds background queue configuration
type QueueConfig struct {
	RedisURL    string
	WorkerCount int
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	SigningKey string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics-related configuration
type MetricsConfig struct {
	Prefix string
}

// Load loads the application configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8086"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "pos_db"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnv("DB_LOG_LEVEL", "info"),
		},
		Square: SquareConfig{
			ApplicationID:       getEnv("SQUARE_APPLICATION_ID", ""),
			ApplicationSecret:   getEnv("SQUARE_APPLICATION_SECRET", ""),
			Env:                 getEnv("SQUARE_ENV", "production"),
			RedirectURI:         getEnv("SQUARE_REDIRECT_URI", ""),
			WebhookSignatureKey: getEnv("SQUARE_WEBHOOK_SIGNATURE_KEY", ""),
			NotificationURL:     getEnv("SQUARE_NOTIFICATION_URL", ""),
			APIVersion:          getEnv("SQUARE_API_VERSION", "2024-01-18"),
		},
		App: AppConfig{
			SecretKey:   getEnv("APP_SECRET_KEY", "defaultsecretkey"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:8080"),
			AgentAPIKey: getEnv("AGENT_API_KEY", ""),
		},
		Queue: QueueConfig{
			RedisURL:    getEnv("REDIS_URL", ""),
			WorkerCount: getEnvAsInt("QUEUE_WORKER_COUNT", 4),
		},
		JWT: JWTConfig{
			SigningKey: getEnv("JWT_SIGNING_KEY", "defaultsecretkey"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", "pos"),
		},
	}, nil
}

// Helper functions to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
