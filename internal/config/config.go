package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"alarm-planner/internal/model"
)

const (
	DefaultPollInterval   = 60 * time.Second
	DefaultReportInterval = 5 * time.Hour
	DefaultCleanupAt      = "03:30"
	DefaultSinkQueueSize  = 64
	DefaultSinkRatePerSec = 1
)

// Config keeps runtime settings for the planner.
type Config struct {
	TelegramToken string
	OwnerChatID   int64
	DatabaseURL   string

	PollInterval     time.Duration
	Recurrences      []model.Recurrence
	AdvanceRecurring bool

	ReportInterval time.Duration
	RetentionDays  int
	CleanupAt      string
	BackupAt       string

	Timezone string
	Location *time.Location

	LogLevel string
	LogFile  string

	SinkQueueSize  int
	SinkRatePerSec int

	ConfigFile string
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		DatabaseURL:      "alarm_planner.db",
		PollInterval:     DefaultPollInterval,
		Recurrences:      append([]model.Recurrence(nil), model.Recurrences...),
		AdvanceRecurring: true,
		ReportInterval:   DefaultReportInterval,
		CleanupAt:        DefaultCleanupAt,
		Location:         time.Local,
		LogLevel:         "info",
		SinkQueueSize:    DefaultSinkQueueSize,
		SinkRatePerSec:   DefaultSinkRatePerSec,
	}
}

// Load reads .env (when present), the optional YAML file named by CONFIG_FILE
// and then environment variables, later sources winning.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return load(strings.TrimSpace(os.Getenv("CONFIG_FILE")))
}

func load(path string) (Config, error) {
	cfg := Defaults()
	cfg.ConfigFile = path

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.finish(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := env("TELEGRAM_TOKEN"); v != "" {
		cfg.TelegramToken = v
	}
	if v := env("TELEGRAM_OWNER_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_OWNER_CHAT_ID: %w", err)
		}
		cfg.OwnerChatID = id
	}
	if v := env("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := env("POLL_INTERVAL"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = d
	}
	if v := env("RECURRENCES"); v != "" {
		rules, err := parseRecurrences(strings.Split(v, ","))
		if err != nil {
			return fmt.Errorf("RECURRENCES: %w", err)
		}
		cfg.Recurrences = rules
	}
	if v := env("ADVANCE_RECURRING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ADVANCE_RECURRING: %w", err)
		}
		cfg.AdvanceRecurring = b
	}
	if v := env("REPORT_INTERVAL_HOURS"); v != "" {
		cfg.ReportInterval = parseInterval(v)
	}
	if v := env("RETENTION_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			return fmt.Errorf("RETENTION_DAYS must be a non-negative number, got %q", v)
		}
		cfg.RetentionDays = days
	}
	if v := env("CLEANUP_AT"); v != "" {
		cfg.CleanupAt = v
	}
	if v := env("BACKUP_AT"); v != "" {
		cfg.BackupAt = v
	}
	if v := env("TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := env("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := env("SINK_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SINK_QUEUE_SIZE: %w", err)
		}
		cfg.SinkQueueSize = n
	}
	if v := env("SINK_RATE_PER_SEC"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SINK_RATE_PER_SEC: %w", err)
		}
		cfg.SinkRatePerSec = n
	}
	return nil
}

// finish fills derived fields and validates.
func (c *Config) finish() error {
	if c.DatabaseURL == "" {
		c.DatabaseURL = "alarm_planner.db"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollInterval > DefaultPollInterval {
		return fmt.Errorf("poll interval %s exceeds %s; minutes would be skipped", c.PollInterval, DefaultPollInterval)
	}
	if c.SinkQueueSize <= 0 {
		c.SinkQueueSize = DefaultSinkQueueSize
	}
	if c.SinkRatePerSec <= 0 {
		c.SinkRatePerSec = DefaultSinkRatePerSec
	}
	c.Recurrences = withNone(c.Recurrences)

	c.Location = time.Local
	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", c.Timezone, err)
		}
		c.Location = loc
	}

	for name, at := range map[string]string{"cleanup_at": c.CleanupAt, "backup_at": c.BackupAt} {
		if at == "" {
			continue
		}
		if _, err := time.Parse(model.TimeLayout, at); err != nil {
			return fmt.Errorf("%s: invalid time %q, expected HH:MM", name, at)
		}
	}
	return nil
}

// RecurrenceEnabled reports whether r is part of the configured vocabulary.
func (c Config) RecurrenceEnabled(r model.Recurrence) bool {
	for _, rule := range c.Recurrences {
		if rule == r {
			return true
		}
	}
	return false
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// parseSeconds accepts Go durations ("30s") and plain seconds ("30").
func parseSeconds(raw string) (time.Duration, error) {
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("interval must be positive")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	return d, nil
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}

func parseRecurrences(values []string) ([]model.Recurrence, error) {
	out := make([]model.Recurrence, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		r, err := model.ParseRecurrence(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, v)
		}
		out = append(out, r)
	}
	return out, nil
}

func withNone(rules []model.Recurrence) []model.Recurrence {
	out := []model.Recurrence{model.RecurrenceNone}
	for _, r := range rules {
		if r == model.RecurrenceNone {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == r {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, r)
		}
	}
	return out
}
