package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Database DatabaseConfig
	Monitor  MonitorConfig
	Fetch    FetchConfig
	Notify   NotifyConfig
}

// ServerConfig holds HTTP server runtime parameters for the admin surface.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig holds connection parameters for the relational store.
type DatabaseConfig struct {
	URL string
}

// MonitorConfig tunes the monitoring orchestrator and scheduler.
type MonitorConfig struct {
	// CheckCadence is how often the scheduler fires a monitoring cycle.
	CheckCadence time.Duration

	// PauseThreshold is the consecutive-error count at which an account
	// is automatically paused.
	PauseThreshold int

	// MaxPages caps multi-page post retrieval per account check.
	MaxPages int
}

// FetchConfig tunes the per-platform content fetchers.
type FetchConfig struct {
	ProfileCacheTTL time.Duration
	SessionRefresh  time.Duration
	RequestTimeout  time.Duration
	MaxRetries      int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
}

// NotifyConfig tunes webhook delivery.
type NotifyConfig struct {
	DeliveryTimeout time.Duration
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultCheckCadence   = 5 * time.Minute
	defaultPauseThreshold = 5
	defaultMaxPages       = 5

	defaultProfileCacheTTL = 5 * time.Minute
	defaultSessionRefresh  = 30 * time.Minute
	defaultRequestTimeout  = 30 * time.Second
	defaultMaxRetries      = 3
	defaultInitialBackoff  = 1 * time.Second
	defaultMaxBackoff      = 30 * time.Second

	defaultDeliveryTimeout = 10 * time.Second
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided.
func Load() (Config, error) {
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Monitor: MonitorConfig{
			CheckCadence:   defaultCheckCadence,
			PauseThreshold: defaultPauseThreshold,
			MaxPages:       defaultMaxPages,
		},
		Fetch: FetchConfig{
			ProfileCacheTTL: defaultProfileCacheTTL,
			SessionRefresh:  defaultSessionRefresh,
			RequestTimeout:  defaultRequestTimeout,
			MaxRetries:      defaultMaxRetries,
			InitialBackoff:  defaultInitialBackoff,
			MaxBackoff:      defaultMaxBackoff,
		},
		Notify: NotifyConfig{
			DeliveryTimeout: defaultDeliveryTimeout,
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("MONITOR_CHECK_CADENCE_MINUTES"); v != "" {
		d, err := parseMinutes(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MONITOR_CHECK_CADENCE_MINUTES: %w", err)
		}
		cfg.Monitor.CheckCadence = d
	}

	if v := os.Getenv("MONITOR_PAUSE_THRESHOLD"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MONITOR_PAUSE_THRESHOLD: %w", err)
		}
		cfg.Monitor.PauseThreshold = n
	}

	if v := os.Getenv("MONITOR_MAX_PAGES"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MONITOR_MAX_PAGES: %w", err)
		}
		cfg.Monitor.MaxPages = n
	}

	if v := os.Getenv("FETCH_PROFILE_CACHE_TTL_MINUTES"); v != "" {
		d, err := parseMinutes(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FETCH_PROFILE_CACHE_TTL_MINUTES: %w", err)
		}
		cfg.Fetch.ProfileCacheTTL = d
	}

	if v := os.Getenv("FETCH_SESSION_REFRESH_MINUTES"); v != "" {
		d, err := parseMinutes(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FETCH_SESSION_REFRESH_MINUTES: %w", err)
		}
		cfg.Fetch.SessionRefresh = d
	}

	if v := os.Getenv("FETCH_REQUEST_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FETCH_REQUEST_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Fetch.RequestTimeout = d
	}

	if v := os.Getenv("FETCH_MAX_RETRIES"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FETCH_MAX_RETRIES: %w", err)
		}
		cfg.Fetch.MaxRetries = n
	}

	if v := os.Getenv("NOTIFY_DELIVERY_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid NOTIFY_DELIVERY_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Notify.DeliveryTimeout = d
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseMinutes(raw string) (time.Duration, error) {
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return time.Duration(minutes) * time.Minute, nil
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return n, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
