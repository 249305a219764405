// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// State store
	DataDir string

	// Outbound fetch policy
	AllowedHosts   []string // FETCH_ALLOWED_HOSTS; empty = any public host
	FetchMode      string   // "auto", "browser" or "static"
	RequestTimeout time.Duration

	// Browser
	BrowserExecutable string // explicit binary path; empty = launcher discovery
	PageSlots         int    // concurrent page contexts
	NavTimeout        time.Duration
	SettleDelay       time.Duration

	// Scheduler
	SweepInterval time.Duration
	CheckDelay    time.Duration // pacing between items in a sweep
	SweepOnStart  bool

	// FX
	FXURL     string
	FXRefresh time.Duration

	// Notifications
	WebhookProxyBase string
	DesktopNotify    bool

	// CORS
	CORSOrigins []string

	// S3 state snapshots
	SnapshotEnabled   bool
	SnapshotBucket    string
	SnapshotRegion    string
	SnapshotEndpoint  string // AWS_ENDPOINT_URL_S3 for S3-compatible stores
	SnapshotAccessKey string
	SnapshotSecretKey string
	SnapshotSchedule  string // cron spec
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:    getEnvInt("PORT", 8080),
		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		DataDir: getEnv("DATA_DIR", "./data"),

		AllowedHosts:   getEnvSlice("FETCH_ALLOWED_HOSTS", nil),
		FetchMode:      strings.ToLower(getEnv("FETCH_MODE", "auto")),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),

		BrowserExecutable: getEnv("BROWSER_EXECUTABLE", ""),
		PageSlots:         getEnvInt("PAGE_SLOTS", 2),
		NavTimeout:        getEnvDuration("NAV_TIMEOUT", 45*time.Second),
		SettleDelay:       getEnvDuration("SETTLE_DELAY", 2*time.Second),

		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 60*time.Minute),
		CheckDelay:    getEnvDuration("CHECK_DELAY", 2*time.Second),
		SweepOnStart:  getEnvBool("SWEEP_ON_START", false),

		FXURL:     getEnv("FX_URL", "https://open.er-api.com/v6/latest/USD"),
		FXRefresh: getEnvDuration("FX_REFRESH", time.Hour),

		WebhookProxyBase: getEnv("WEBHOOK_PROXY_BASE", ""),
		DesktopNotify:    getEnvBool("DESKTOP_NOTIFY", false),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:8080"}),

		SnapshotEnabled:   getEnvBool("S3_BACKUP_ENABLED", false),
		SnapshotBucket:    getEnv("BUCKET_NAME", ""),
		SnapshotRegion:    getEnv("AWS_REGION", "auto"),
		SnapshotEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		SnapshotAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		SnapshotSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		SnapshotSchedule:  getEnv("S3_BACKUP_SCHEDULE", "@daily"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.FetchMode {
	case "auto", "browser", "static":
	default:
		return fmt.Errorf("invalid FETCH_MODE %q (want auto, browser or static)", c.FetchMode)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.PageSlots < 1 {
		c.PageSlots = 1
	}
	if c.SweepInterval < time.Minute {
		return fmt.Errorf("SWEEP_INTERVAL %s too short (minimum 1m)", c.SweepInterval)
	}
	if c.SnapshotEnabled && c.SnapshotBucket == "" {
		return fmt.Errorf("S3_BACKUP_ENABLED requires BUCKET_NAME")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
