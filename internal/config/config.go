// Package config loads process settings from the environment, reading an
// optional .env file first.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"

	NotifierRedis = "redis"
	NotifierLog   = "log"

	MinReminderInterval = 10 * time.Second
)

var ErrMissingSetting = errors.New("missing required setting")

type Config struct {
	Port string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string

	JWTSecret      string
	JWTIssuer      string
	CronSecretHash string

	Timezone            string
	Location            *time.Location
	DefaultReminderTime string
	ReminderInterval    time.Duration
	Notifier            string

	LogLevel  string
	LogFormat string
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function and validates it.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		Port:                get("PORT", "8080"),
		DBDriver:            strings.ToLower(get("DB_DRIVER", DriverPostgres)),
		DBHost:              get("DB_HOST", "localhost"),
		DBPort:              get("DB_PORT", "5432"),
		DBUser:              get("DB_USER", ""),
		DBPassword:          get("DB_PASSWORD", ""),
		DBName:              get("DB_NAME", ""),
		MongoURI:            get("MONGO_URI", ""),
		MongoDB:             get("MONGO_DB", "habit_tracker_bot"),
		RedisAddr:           get("REDIS_ADDR", ""),
		RedisPassword:       get("REDIS_PASSWORD", ""),
		JWTSecret:           get("JWT_SECRET", ""),
		JWTIssuer:           get("JWT_ISSUER", "kanso-habit-bot"),
		CronSecretHash:      get("CRON_SECRET_HASH", ""),
		Timezone:            get("TZ", domain.DefaultTimezone),
		DefaultReminderTime: get("DEFAULT_REMINDER_TIME", domain.DefaultReminderTime),
		Notifier:            strings.ToLower(get("NOTIFIER", NotifierLog)),
		LogLevel:            strings.ToLower(get("LOG_LEVEL", "info")),
		LogFormat:           strings.ToLower(get("LOG_FORMAT", "json")),
	}

	seconds, err := strconv.Atoi(get("REMINDER_INTERVAL_SECONDS", "60"))
	if err != nil {
		return nil, fmt.Errorf("config: REMINDER_INTERVAL_SECONDS: %w", err)
	}
	cfg.ReminderInterval = time.Duration(seconds) * time.Second
	if cfg.ReminderInterval < MinReminderInterval {
		cfg.ReminderInterval = MinReminderInterval
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	loc, err := domain.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("config: TZ %q: %w", c.Timezone, err)
	}
	c.Location = loc

	if !domain.ValidReminderTime(c.DefaultReminderTime) {
		return fmt.Errorf("config: DEFAULT_REMINDER_TIME %q: %w", c.DefaultReminderTime, domain.ErrInvalidReminder)
	}

	switch c.DBDriver {
	case DriverPostgres:
		if c.DBUser == "" || c.DBName == "" {
			return fmt.Errorf("config: %w: DB_USER and DB_NAME", ErrMissingSetting)
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("config: %w: MONGO_URI", ErrMissingSetting)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown DB_DRIVER %q", c.DBDriver)
	}

	switch c.Notifier {
	case NotifierLog:
	case NotifierRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("config: %w: REDIS_ADDR (required by NOTIFIER=redis)", ErrMissingSetting)
		}
	default:
		return fmt.Errorf("config: unknown NOTIFIER %q", c.Notifier)
	}

	return nil
}

// PostgresDSN is the connection string used with the pgx stdlib driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}
