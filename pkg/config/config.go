package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/arnavshah/readiness-api-go/pkg/kpi"
	"github.com/joho/godotenv"
)

// Config is everything the binaries read from the environment
type Config struct {
	Port               string
	GinMode            string
	DatabaseURL        string
	DataPath           string
	JWTSecret          string
	MasterSecret       string
	AdminUsername      string
	AdminPassword      string
	Location           *time.Location
	ShiftLookupTimeout time.Duration
	SweepInterval      time.Duration
	NotifyWebhookURL   string
	LogLevel           slog.Level
	KPI                kpi.Config
}

// LoadEnv loads the first .env found in the working directory or its parents
func LoadEnv() {
	// Try root and parent directories for flexibility
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, p := range envPaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			break
		}
	}
}

// Load reads .env and the process environment
func Load() (*Config, error) {
	LoadEnv()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Port:             get("PORT", "8000"),
		GinMode:          getenv("GIN_MODE"),
		DatabaseURL:      getenv("DATABASE_URL"),
		DataPath:         get("DATA_PATH", "readiness.db"),
		JWTSecret:        getenv("JWT_SECRET"),
		MasterSecret:     getenv("API_MASTER_SECRET"),
		AdminUsername:    getenv("ADMIN_USERNAME"),
		AdminPassword:    getenv("ADMIN_PASSWORD"),
		NotifyWebhookURL: getenv("NOTIFY_WEBHOOK_URL"),
	}

	loc, err := time.LoadLocation(get("APP_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if cfg.ShiftLookupTimeout, err = time.ParseDuration(get("SHIFT_LOOKUP_TIMEOUT", "2s")); err != nil {
		return nil, fmt.Errorf("SHIFT_LOOKUP_TIMEOUT: %w", err)
	}
	if cfg.SweepInterval, err = time.ParseDuration(get("SWEEP_INTERVAL", "0s")); err != nil {
		return nil, fmt.Errorf("SWEEP_INTERVAL: %w", err)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if cfg.KPI, err = kpi.LoadConfig(getenv("KPI_CONFIG_PATH")); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Logger builds the process logger
func (c *Config) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: c.LogLevel}))
}
