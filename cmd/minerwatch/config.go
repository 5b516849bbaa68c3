package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/minerwatch/minerwatch/pkg/monitor"
)

// Substitutions maps raw worker IDs to display names. The env format is a
// comma-separated list of raw=display pairs, e.g.
// "worker_2=Office NerdMiner,bitaxe=BitAxe Ultra".
type Substitutions map[string]string

func (s *Substitutions) SetValue(v string) error {
	out := Substitutions{}
	for _, pair := range strings.Split(v, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		raw, display, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid substitution %q, want raw=display", pair)
		}
		out[strings.TrimSpace(raw)] = strings.TrimSpace(display)
	}
	*s = out
	return nil
}

// Config holds all configuration for the minerwatch CLI. Values come from
// the environment, optionally seeded from a .env file.
type Config struct {
	BotToken   string `env:"BOT_TOKEN"`
	ChatID     string `env:"CHAT_ID"`
	BTCAddress string `env:"BTC_ADDRESS"`

	APIBaseURL string `env:"API_BASE_URL" env-default:"https://public-pool.io:40557/api"`
	DBPath     string `env:"MINERWATCH_DB" env-default:"minerwatch.db"`
	BackupDir  string `env:"BACKUP_DIR" env-default:"backups"`

	OfflineTimeout      time.Duration `env:"OFFLINE_TIMEOUT" env-default:"5m"`
	HashrateDropPercent float64       `env:"HASHRATE_DROP_PERCENT" env-default:"30"`
	MessageEditLimit    time.Duration `env:"MESSAGE_EDIT_LIMIT" env-default:"45h"`
	DataRetentionDays   int           `env:"DATA_RETENTION_DAYS" env-default:"90"`
	BackupRetentionDays int           `env:"BACKUP_RETENTION_DAYS" env-default:"30"`

	NameSubstitutions Substitutions `env:"NAME_SUBSTITUTIONS"`

	LogLevel string `env:"LOG_LEVEL" env-default:"warning"`
}

// LoadConfig loads configuration from envFile (when set, otherwise a .env in
// the working directory if present) and the environment.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.BotToken == "" {
		return nil, errors.New("BOT_TOKEN is not configured")
	}
	if cfg.ChatID == "" {
		return nil, errors.New("CHAT_ID is not configured")
	}
	if cfg.BTCAddress == "" {
		return nil, errors.New("BTC_ADDRESS is not configured")
	}
	return cfg, nil
}

// Monitor maps the process configuration onto the monitor's settings.
func (c *Config) Monitor() *monitor.Config {
	return &monitor.Config{
		BTCAddress:          c.BTCAddress,
		OfflineTimeout:      c.OfflineTimeout,
		HashrateDropPercent: c.HashrateDropPercent,
		MessageEditLimit:    c.MessageEditLimit,
		DataRetentionDays:   c.DataRetentionDays,
		BackupRetentionDays: c.BackupRetentionDays,
		BackupDir:           c.BackupDir,
		NameSubstitutions:   c.NameSubstitutions,
	}
}
