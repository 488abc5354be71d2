package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LogConfig controls the global slog logger.
type LogConfig struct {
	Level     string
	Format    string
	Component string
	Source    bool
}

type Config struct {
	App struct {
		ENV string
		// AdminID is the only user allowed to broadcast notices. Zero disables broadcasts.
		AdminID uint64
	}

	Log LogConfig

	DB struct {
		Driver     string // mysql | sqlite
		DSN        string
		Host       string
		Port       string
		User       string
		Password   string
		Name       string
		SQLitePath string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Votes struct {
		CountTTL time.Duration
	}

	Delivery struct {
		Channel string
	}

	GRPC struct {
		Host    string
		Port    string
		Timeout time.Duration
	}

	Metrics struct {
		// Addr serves /metrics over HTTP. Empty disables the endpoint.
		Addr string
	}
}

func New() *Config {
	cfg := &Config{}

	// App
	cfg.App.ENV = getEnvDefault("APP_ENV", "development")
	if v := strings.TrimSpace(os.Getenv("ADMIN_USER_ID")); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.App.AdminID = id
		}
	}

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "discovery")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.Driver = strings.ToLower(getEnvDefault("DB_DRIVER", "mysql"))
	cfg.DB.SQLitePath = getEnvDefault("SQLITE_PATH", "discovery.db")
	cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "discovery")

		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	if dbStr := getEnvDefault("REDIS_DB", "0"); dbStr != "" {
		if dbInt, err := strconv.Atoi(dbStr); err == nil {
			cfg.Redis.DB = dbInt
		}
	}

	cfg.Votes.CountTTL = getDurationDefault("VOTE_COUNT_TTL", time.Hour)
	cfg.Delivery.Channel = getEnvDefault("DELIVERY_CHANNEL", "delivery")

	// gRPC
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", "127.0.0.1")
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", "50051")
	cfg.GRPC.Timeout = getDurationDefault("GRPC_TIMEOUT", 5*time.Second)

	cfg.Metrics.Addr = ":9090"
	if v, ok := os.LookupEnv("METRICS_ADDR"); ok {
		cfg.Metrics.Addr = strings.TrimSpace(v)
	}

	return cfg
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getDurationDefault(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnvDefault(k, "")); err == nil {
		return d
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
