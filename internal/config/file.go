package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	yaml "go.yaml.in/yaml/v3"
)

// fileConfig mirrors the YAML layout. Pointers distinguish "omitted" from an
// explicit zero value.
type fileConfig struct {
	Telegram struct {
		Token       string `yaml:"token"`
		OwnerChatID int64  `yaml:"owner_chat_id"`
	} `yaml:"telegram"`
	Database         string   `yaml:"database"`
	PollInterval     string   `yaml:"poll_interval"`
	Recurrences      []string `yaml:"recurrences"`
	AdvanceRecurring *bool    `yaml:"advance_recurring"`
	ReportInterval   string   `yaml:"report_interval"`
	RetentionDays    *int     `yaml:"retention_days"`
	CleanupAt        string   `yaml:"cleanup_at"`
	BackupAt         string   `yaml:"backup_at"`
	Timezone         string   `yaml:"timezone"`
	Log              struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Sink struct {
		QueueSize  int `yaml:"queue_size"`
		RatePerSec int `yaml:"rate_per_sec"`
	} `yaml:"sink"`
}

func applyFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}
	fc, err := decodeFile(b)
	if err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}

	if fc.Telegram.Token != "" {
		cfg.TelegramToken = fc.Telegram.Token
	}
	if fc.Telegram.OwnerChatID != 0 {
		cfg.OwnerChatID = fc.Telegram.OwnerChatID
	}
	if fc.Database != "" {
		cfg.DatabaseURL = fc.Database
	}
	if fc.PollInterval != "" {
		d, err := parseSeconds(fc.PollInterval)
		if err != nil {
			return fmt.Errorf("poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}
	if len(fc.Recurrences) > 0 {
		rules, err := parseRecurrences(fc.Recurrences)
		if err != nil {
			return fmt.Errorf("recurrences: %w", err)
		}
		cfg.Recurrences = rules
	}
	if fc.AdvanceRecurring != nil {
		cfg.AdvanceRecurring = *fc.AdvanceRecurring
	}
	if fc.ReportInterval != "" {
		d, err := parseSeconds(fc.ReportInterval)
		if err != nil {
			return fmt.Errorf("report_interval: %w", err)
		}
		cfg.ReportInterval = d
	}
	if fc.RetentionDays != nil {
		if *fc.RetentionDays < 0 {
			return fmt.Errorf("retention_days must be non-negative")
		}
		cfg.RetentionDays = *fc.RetentionDays
	}
	if fc.CleanupAt != "" {
		cfg.CleanupAt = fc.CleanupAt
	}
	if fc.BackupAt != "" {
		cfg.BackupAt = fc.BackupAt
	}
	if fc.Timezone != "" {
		cfg.Timezone = fc.Timezone
	}
	if fc.Log.Level != "" {
		cfg.LogLevel = fc.Log.Level
	}
	if fc.Log.File != "" {
		cfg.LogFile = fc.Log.File
	}
	if fc.Sink.QueueSize != 0 {
		cfg.SinkQueueSize = fc.Sink.QueueSize
	}
	if fc.Sink.RatePerSec != 0 {
		cfg.SinkRatePerSec = fc.Sink.RatePerSec
	}
	return nil
}

// decodeFile rejects unknown keys so typos do not silently fall back to defaults.
func decodeFile(b []byte) (fileConfig, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return fileConfig{}, err
	}
	return fc, nil
}
