package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/user/framerelay/internal/forward"
)

// Hop holds the endpoint and retry policy for one remote pipeline hop.
type Hop struct {
	Endpoint          string  `json:"endpoint" validate:"required,url"`
	TimeoutSec        float64 `json:"timeout_sec" validate:"gt=0"`
	MaxAttempts       int     `json:"max_attempts" validate:"gte=1"`
	BackoffInitialSec float64 `json:"backoff_initial_sec" validate:"gte=0"`
	BackoffMultiplier float64 `json:"backoff_multiplier" validate:"gte=1"`
	BackoffMaxSec     float64 `json:"backoff_max_sec" validate:"gte=0"`
}

// Policy converts the hop settings into a forward.Policy.
func (h Hop) Policy() forward.Policy {
	return forward.Policy{
		MaxAttempts:    h.MaxAttempts,
		AttemptTimeout: secondsToDuration(h.TimeoutSec),
		InitialDelay:   secondsToDuration(h.BackoffInitialSec),
		Multiplier:     h.BackoffMultiplier,
		MaxDelay:       secondsToDuration(h.BackoffMaxSec),
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

type ExtractConfig struct {
	Hop
	// TokenBudget caps caption length (in tokens) before the hop; 0 disables
	// trimming.
	TokenBudget int `json:"token_budget" validate:"gte=0"`
}

type DetectConfig struct {
	Hop
	AnnotateInService bool `json:"annotate_in_service"`
}

type SinkConfig struct {
	URL        string  `json:"url" validate:"omitempty,url"`
	TimeoutSec float64 `json:"timeout_sec" validate:"gt=0"`
}

type Config struct {
	DataDir       string `json:"data_dir" validate:"required"`
	CapturesRoot  string `json:"captures_root" validate:"required"`
	Listen        string `json:"listen" validate:"required"`
	LogLevel      string `json:"log_level" validate:"required,oneof=debug info warn error"`
	LogFile       string `json:"log_file"`
	MaxConcurrent int    `json:"max_concurrent" validate:"gte=1"`
	HistoryLimit  int    `json:"history_limit" validate:"gte=1"`

	Extract   ExtractConfig `json:"extract"`
	Detect    DetectConfig  `json:"detect"`
	Ingest    Hop           `json:"ingest"`
	Dashboard SinkConfig    `json:"dashboard"`
	Telegram  struct {
		Token  string `json:"token"`
		ChatID int64  `json:"chat_id"`
	} `json:"telegram"`
	Sweep struct {
		Enabled  bool   `json:"enabled"`
		Schedule string `json:"schedule"`
	} `json:"sweep"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".framerelay"),
		CapturesRoot:  filepath.Join(os.Getenv("HOME"), "captures"),
		Listen:        ":8089",
		LogLevel:      "info",
		MaxConcurrent: 2,
		HistoryLimit:  200,
	}
	cfg.Extract.Endpoint = "http://127.0.0.1:8092"
	cfg.Extract.TimeoutSec = 20
	cfg.Extract.MaxAttempts = 3
	cfg.Extract.BackoffInitialSec = 2
	cfg.Extract.BackoffMultiplier = 2.0
	cfg.Extract.BackoffMaxSec = 6
	cfg.Extract.TokenBudget = 192
	cfg.Detect.Endpoint = "http://127.0.0.1:8090"
	cfg.Detect.TimeoutSec = 45
	cfg.Detect.MaxAttempts = 7
	cfg.Detect.BackoffInitialSec = 1
	cfg.Detect.BackoffMultiplier = 2.0
	cfg.Detect.BackoffMaxSec = 10
	cfg.Ingest.Endpoint = "http://127.0.0.1:8091/ingest"
	cfg.Ingest.TimeoutSec = 8
	cfg.Ingest.MaxAttempts = 3
	cfg.Ingest.BackoffInitialSec = 1.5
	cfg.Ingest.BackoffMultiplier = 2.0
	cfg.Ingest.BackoffMaxSec = 4
	cfg.Dashboard.TimeoutSec = 5
	cfg.Sweep.Schedule = "@every 1m"

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if listen := os.Getenv("FRAMERELAY_LISTEN"); listen != "" {
		cfg.Listen = listen
	}
	if root := os.Getenv("FRAMERELAY_CAPTURES_ROOT"); root != "" {
		cfg.CapturesRoot = root
	}
	if url := os.Getenv("FRAMERELAY_EXTRACT_URL"); url != "" {
		cfg.Extract.Endpoint = url
	}
	if url := os.Getenv("FRAMERELAY_DETECT_URL"); url != "" {
		cfg.Detect.Endpoint = url
	}
	if url := os.Getenv("FRAMERELAY_INGEST_URL"); url != "" {
		cfg.Ingest.Endpoint = url
	}
	if url := os.Getenv("FRAMERELAY_DASHBOARD_URL"); url != "" {
		cfg.Dashboard.URL = url
	}
	if level := os.Getenv("FRAMERELAY_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}
	if chat := os.Getenv("TELEGRAM_CHAT_ID"); chat != "" {
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Telegram.ChatID = id
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the config against its struct tags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// Save writes the config to path atomically, creating parent directories.
func Save(path string, cfg *Config) error {
	return writeJSON(path, cfg)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
