package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppHost  string
	HTTPPort string
	AppEnv   string
	LogLevel string

	DiscordToken string

	// KafkaBrokers/KafkaTopicTicketEvents — when set, lifecycle events are
	// published best-effort.
	KafkaBrokers          string
	KafkaTopicTicketEvents string

	// ArchiveServiceURL — when set, closed transcripts are exported to the
	// archive service (POST /archive/transcripts).
	ArchiveServiceURL string

	SweepInterval time.Duration

	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Database string
		SSLMode  string
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		AppHost:                getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:               getEnv("HTTP_PORT", "8094"),
		AppEnv:                 getEnv("APP_ENV", "development"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		DiscordToken:           getEnv("DISCORD_TOKEN", ""),
		KafkaBrokers:           getEnv("KAFKA_BROKERS", ""),
		KafkaTopicTicketEvents: getEnv("KAFKA_TOPIC_TICKET_EVENTS", ""),
		ArchiveServiceURL:      getEnv("ARCHIVE_SERVICE_URL", ""),
	}
	sweep := getEnv("SWEEP_INTERVAL", "5m")
	d, err := time.ParseDuration(sweep)
	if err != nil {
		return nil, fmt.Errorf("config: SWEEP_INTERVAL %q: %w", sweep, err)
	}
	cfg.SweepInterval = d

	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "ticketd")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DB.Host == "" || c.DB.Database == "" {
		return errors.New("config: DB_HOST and DB_DATABASE are required")
	}
	if c.AppEnv == "production" && c.DB.Password == "" {
		return errors.New("config: in production DB_PASSWORD is required")
	}
	if c.SweepInterval < time.Second {
		return errors.New("config: SWEEP_INTERVAL must be at least 1s")
	}
	return nil
}

// ValidateBot extends Validate with the requirements of the bot process.
func (c *Config) ValidateBot() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DiscordToken == "" {
		return errors.New("config: DISCORD_TOKEN is required")
	}
	return nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
