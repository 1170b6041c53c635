package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the process configuration read from the environment
type Config struct {
	Port          string
	JWTSecret     string
	JWTExpiration time.Duration
	FrontendURL   string
	BaseDomain    string
	StoreDriver   string

	Mongo    MongoConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Email    EmailConfig

	LogLevel  string
	LogFormat string
}

// MongoConfig holds MongoDB connection settings
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis connection settings. An empty Host disables Redis.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// KafkaConfig holds the event relay settings. An empty Broker disables Kafka.
type KafkaConfig struct {
	Broker      string
	EventsTopic string
	GroupID     string
}

// EmailConfig selects and configures the outgoing mail transport
type EmailConfig struct {
	Provider  string // smtp, ses or log
	Host      string
	Port      int
	Secure    bool
	User      string
	Password  string
	From      string
	AWSRegion string
}

// Load reads .env (if present) and the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	expiration, err := ParseDuration(getEnv("JWT_EXPIRATION", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION: %w", err)
	}

	emailPort, err := strconv.Atoi(getEnv("EMAIL_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid EMAIL_PORT: %w", err)
	}

	cfg := &Config{
		Port:          getEnv("PORT", "5000"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTExpiration: expiration,
		FrontendURL:   getEnv("FRONTEND_URL", "http://localhost:3000"),
		BaseDomain:    getEnv("BASE_DOMAIN", "localhost"),
		StoreDriver:   getEnv("STORE_DRIVER", "mongo"),
		Mongo: MongoConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "helpdesk"),
		},
		Database: GetDatabaseConfig(),
		Redis: RedisConfig{
			Host:     os.Getenv("REDIS_HOST"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Kafka: KafkaConfig{
			Broker:      os.Getenv("KAFKA_BROKER"),
			EventsTopic: getEnv("KAFKA_EVENTS_TOPIC", "helpdesk-events"),
			GroupID:     getEnv("KAFKA_GROUP_ID", "helpdesk-api"),
		},
		Email: EmailConfig{
			Provider:  getEnv("EMAIL_PROVIDER", "log"),
			Host:      os.Getenv("EMAIL_HOST"),
			Port:      emailPort,
			Secure:    getEnv("EMAIL_SECURE", "false") == "true",
			User:      os.Getenv("EMAIL_USER"),
			Password:  os.Getenv("EMAIL_PASS"),
			From:      getEnv("EMAIL_FROM", "Helpdesk <no-reply@localhost>"),
			AWSRegion: getEnv("AWS_REGION", "us-east-1"),
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}
	switch cfg.StoreDriver {
	case "mongo", "memory":
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	return cfg, nil
}

// ConfigureLogging applies LOG_LEVEL and LOG_FORMAT to the global logrus logger
func (c *Config) ConfigureLogging() {
	if c.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logrus.Warnf("Unknown LOG_LEVEL %q, using info", c.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// ParseDuration accepts Go durations plus a whole-day suffix such as "7d"
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", s)
	}
	return d, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
