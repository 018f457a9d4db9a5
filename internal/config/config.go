package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is read from the environment, after an optional .env file.
type Config struct {
	DBDSN         string
	Environment   string
	LogLevel      string
	MigrationsDir string
	ScheduleDir   string
	RedisAddr     string
	TelegramToken string
	TelegramChat  int64
	RetryInterval time.Duration
	PolicyFile    string
}

// ErrNoDSN is returned by RequireDB when DB_DSN is not configured.
var ErrNoDSN = errors.New("DB_DSN is required but not set")

func Load() (*Config, error) {
	// A missing .env is fine, the environment may already be set.
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		DBDSN:         os.Getenv("DB_DSN"),
		Environment:   getenv("ENV", "development"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		MigrationsDir: getenv("MIGRATIONS_DIR", "migrations"),
		ScheduleDir:   getenv("SCHEDULE_DIR", "resource/schedules"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		PolicyFile:    os.Getenv("POLICY_FILE"),
		RetryInterval: 24 * time.Hour,
	}

	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		chat, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChat = chat
	}

	if raw := os.Getenv("RETRY_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parse RETRY_INTERVAL: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("RETRY_INTERVAL must be positive, got %s", d)
		}
		cfg.RetryInterval = d
	}

	return cfg, nil
}

// RequireDB fails when the configuration has no database DSN.
func (c *Config) RequireDB() error {
	if c.DBDSN == "" {
		return ErrNoDSN
	}
	return nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

// NotifyEnabled reports whether run reports should go to Telegram.
func (c *Config) NotifyEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChat != 0
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
