// Package config loads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr string

	StoreDriver string
	SQLitePath  string
	MongoURI    string
	MongoDB     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTimeout  time.Duration

	AnswerBufferTTL time.Duration
	SweepInterval   time.Duration
	MinRemaining    time.Duration

	JobPollInterval time.Duration
	JobMaxAttempts  int
	JobBackoff      time.Duration

	RabbitMQURI      string
	RabbitMQExchange string

	LogLevel slog.Level
}

// Load reads the environment. A missing .env file is not an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:             getEnv("ADDR", ":8080"),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
		SQLitePath:       getEnv("SQLITE_PATH", "quiz.db"),
		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:          getEnv("MONGO_DB", "timed_quiz"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RabbitMQURI:      getEnv("RABBITMQ_URI", ""),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", "quiz.attempts"),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.JobMaxAttempts, err = getInt("JOB_MAX_ATTEMPTS", 3); err != nil {
		return Config{}, err
	}

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"CACHE_TIMEOUT", 2 * time.Second, &cfg.CacheTimeout},
		{"ANSWER_BUFFER_TTL", 5 * time.Minute, &cfg.AnswerBufferTTL},
		{"SWEEP_INTERVAL", 3 * time.Minute, &cfg.SweepInterval},
		{"MIN_REMAINING", time.Minute, &cfg.MinRemaining},
		{"JOB_POLL_INTERVAL", time.Second, &cfg.JobPollInterval},
		{"JOB_BACKOFF", 2 * time.Second, &cfg.JobBackoff},
	}
	for _, item := range durations {
		if *item.dst, err = getDuration(item.key, item.fallback); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	switch cfg.StoreDriver {
	case "sqlite", "mongo":
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER: unsupported driver %q", cfg.StoreDriver)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return value, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s: must be positive", key)
	}
	return value, nil
}
