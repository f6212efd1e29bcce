package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on slim container images

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	LoginURL       string
	LiveSMSURL     string
	PortalEmail    string
	PortalPassword string

	TelegramToken      string
	TelegramChatID     int64
	TelegramRatePerSec float64
	AdminTelegramID    int64 // 0 disables admin commands
	AuthAlertAttempts  int   // Consecutive re-login failures before an alert is sent

	PollInterval         time.Duration
	SessionCheckInterval time.Duration
	ErrorBackoff         time.Duration
	NavigationTimeout    time.Duration

	DuplicatesFile     string
	DatabaseURL        string // When set, the dedup log lives in Postgres instead of DuplicatesFile
	DedupMaxEntries    int
	DedupRetention     time.Duration
	CronSpecDedupPurge string
	DedupPurgeDisabled bool

	ChromePath      string
	BrowserHeadless bool
	UserAgent       string
	TableSelector   string

	HealthEnabled bool
	HealthPort    string
	ServiceName   string

	Timezone    string
	LogLevel    string
	Environment string
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	required := map[string]*string{
		"LOGIN_URL":       &cfg.LoginURL,
		"LIVE_SMS_URL":    &cfg.LiveSMSURL,
		"PORTAL_EMAIL":    &cfg.PortalEmail,
		"PORTAL_PASSWORD": &cfg.PortalPassword,
		"TELEGRAM_TOKEN":  &cfg.TelegramToken,
	}
	for _, name := range []string{"LOGIN_URL", "LIVE_SMS_URL", "PORTAL_EMAIL", "PORTAL_PASSWORD", "TELEGRAM_TOKEN"} {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			return nil, fmt.Errorf("%s is not set", name)
		}
		*required[name] = v
	}

	chatIDStr := os.Getenv("TELEGRAM_CHAT_ID")
	if chatIDStr == "" {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID is not set")
	}
	cfg.TelegramChatID, err = strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
	}

	if cfg.AdminTelegramID, err = int64Env("ADMIN_TELEGRAM_ID", 0); err != nil {
		return nil, err
	}
	if cfg.TelegramRatePerSec, err = floatEnv("TELEGRAM_RATE_PER_SEC", 1); err != nil {
		return nil, err
	}
	if cfg.AuthAlertAttempts, err = intEnv("AUTH_FAILURE_ALERT_THRESHOLD", 3); err != nil {
		return nil, err
	}

	if cfg.PollInterval, err = millisEnv("POLL_INTERVAL_MS", 2000); err != nil {
		return nil, err
	}
	if cfg.SessionCheckInterval, err = millisEnv("SESSION_CHECK_INTERVAL_MS", 30000); err != nil {
		return nil, err
	}
	if cfg.ErrorBackoff, err = millisEnv("ERROR_BACKOFF_MS", 5000); err != nil {
		return nil, err
	}
	if cfg.NavigationTimeout, err = millisEnv("NAVIGATION_TIMEOUT_MS", 30000); err != nil {
		return nil, err
	}

	cfg.DuplicatesFile = stringEnv("DUPLICATES_FILE", "./duplicates.json")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DedupMaxEntries, err = intEnv("DEDUP_MAX_ENTRIES", 1000); err != nil {
		return nil, err
	}
	retentionHours, err := intEnv("DEDUP_RETENTION_HOURS", 24)
	if err != nil {
		return nil, err
	}
	cfg.DedupRetention = time.Duration(retentionHours) * time.Hour
	cfg.CronSpecDedupPurge = stringEnv("CRON_SPEC_DEDUP_PURGE", "0 3 * * *") // Default: 03:00 daily
	if cfg.DedupPurgeDisabled, err = boolEnv("DEDUP_PURGE_DISABLED", false); err != nil {
		return nil, err
	}

	cfg.ChromePath = os.Getenv("CHROME_PATH")
	if cfg.BrowserHeadless, err = boolEnv("BROWSER_HEADLESS", true); err != nil {
		return nil, err
	}
	cfg.UserAgent = stringEnv("BROWSER_USER_AGENT", defaultUserAgent)
	cfg.TableSelector = stringEnv("TABLE_SELECTOR", "table")

	if cfg.HealthEnabled, err = boolEnv("HEALTH_ENABLED", true); err != nil {
		return nil, err
	}
	// PORT is what most PaaS hosts inject.
	cfg.HealthPort = stringEnv("HEALTH_PORT", stringEnv("PORT", "10000"))
	cfg.ServiceName = stringEnv("SERVICE_NAME", "telegram-otp-bot")

	cfg.Timezone = stringEnv("TIMEZONE", "Asia/Kolkata")
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg.LogLevel = strings.ToLower(stringEnv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(stringEnv("ENVIRONMENT", "development"))

	return cfg, nil
}

// Location returns the time zone used for timestamps in notifications.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func stringEnv(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func intEnv(name string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", name)
	}
	return n, nil
}

func int64Env(name string, def int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

func floatEnv(name string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return f, nil
}

func boolEnv(name string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return b, nil
}

func millisEnv(name string, def int) (time.Duration, error) {
	ms, err := intEnv(name, def)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}
