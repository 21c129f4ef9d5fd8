// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "LEADINBOX_"

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr  string
	DBPath      string
	DatabaseURL string

	SecretKey string
	JWTSecret string
	JWTIssuer string
	CronToken string

	NATSURL string

	GatewayTimeout    time.Duration
	PreviewTimeout    time.Duration
	KeepaliveTimeout  time.Duration
	KeepaliveInterval time.Duration

	AutomationPrecedence []string

	ReconnectMaxRetries int
	ReconnectBaseDelay  time.Duration
}

// UsePostgres reports whether a PostgreSQL URL was configured. SQLite is used otherwise.
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// LEADINBOX_SECRET_KEY and LEADINBOX_JWT_SECRET are required. Every other
// variable has a default: LISTEN_ADDR (127.0.0.1:8080), DB_PATH (leadinbox.db),
// JWT_ISSUER (leadinbox), GATEWAY_TIMEOUT (15s), PREVIEW_TIMEOUT (6s),
// KEEPALIVE_TIMEOUT (6s), KEEPALIVE_INTERVAL (0, external scheduler only),
// AUTOMATION_PRECEDENCE (after_hours,rules,away,welcome),
// RECONNECT_MAX_RETRIES (3), RECONNECT_BASE_DELAY (1s).
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:           stringEnv("LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:               stringEnv("DB_PATH", "leadinbox.db"),
		DatabaseURL:          os.Getenv(envPrefix + "DATABASE_URL"),
		SecretKey:            os.Getenv(envPrefix + "SECRET_KEY"),
		JWTSecret:            os.Getenv(envPrefix + "JWT_SECRET"),
		JWTIssuer:            stringEnv("JWT_ISSUER", "leadinbox"),
		CronToken:            os.Getenv(envPrefix + "CRON_TOKEN"),
		NATSURL:              os.Getenv(envPrefix + "NATS_URL"),
		AutomationPrecedence: listEnv("AUTOMATION_PRECEDENCE", []string{"after_hours", "rules", "away", "welcome"}),
	}

	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("%sSECRET_KEY is required", envPrefix)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("%sJWT_SECRET is required", envPrefix)
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"GATEWAY_TIMEOUT", 15 * time.Second, &cfg.GatewayTimeout},
		{"PREVIEW_TIMEOUT", 6 * time.Second, &cfg.PreviewTimeout},
		{"KEEPALIVE_TIMEOUT", 6 * time.Second, &cfg.KeepaliveTimeout},
		{"KEEPALIVE_INTERVAL", 0, &cfg.KeepaliveInterval},
		{"RECONNECT_BASE_DELAY", time.Second, &cfg.ReconnectBaseDelay},
	}
	for _, d := range durations {
		v, err := durationEnv(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	retries, err := intEnv("RECONNECT_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	if retries < 0 {
		return nil, fmt.Errorf("%sRECONNECT_MAX_RETRIES must not be negative, got %d", envPrefix, retries)
	}
	cfg.ReconnectMaxRetries = retries

	return cfg, nil
}

func stringEnv(key, def string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s%s has invalid duration %q: %w", envPrefix, key, v, err)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("%s%s must not be negative, got %s", envPrefix, key, v)
	}
	return parsed, nil
}

func intEnv(key string, def int) (int, error) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return def, nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s%s has invalid integer %q: %w", envPrefix, key, v, err)
	}
	return parsed, nil
}

// listEnv splits a comma separated variable, dropping blank items.
func listEnv(key string, def []string) []string {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
