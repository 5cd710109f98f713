package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultHost                = "0.0.0.0"
	DefaultPort                = 18890
	DefaultPreserveRecentDays  = 7
	DefaultWarmDays            = 21
	DefaultArchiveDays         = 21
	DefaultCompressionSchedule = "0 4 * * *"
	DefaultArchivalSchedule    = "0 3 * * 0"
	DefaultThresholdSchedule   = "@hourly"
	DefaultSizeThresholdMB     = 5.0
	DefaultCompressionPriority = 3
	DefaultArchivalPriority    = 3
	DefaultThresholdPriority   = 6
)

type Config struct {
	Data      DataConfig      `json:"data"`
	Lifecycle LifecycleConfig `json:"lifecycle"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Summary   SummaryConfig   `json:"summary"`
	Server    ServerConfig    `json:"server"`
}

// DataConfig locates the on-disk memory tree. Dir holds MEMORY.md,
// MEMORY_COMPRESSED.md, feedback.json and the archives/ subtree.
type DataConfig struct {
	Dir string `json:"dir"`
}

// ArchivesDir is where monthly partitions and INDEX.md live.
func (d DataConfig) ArchivesDir() string {
	return filepath.Join(d.Dir, "archives")
}

// FeedbackPath is the priority engine's persisted state.
func (d DataConfig) FeedbackPath() string {
	return filepath.Join(d.Dir, "feedback.json")
}

type LifecycleConfig struct {
	PreserveRecentDays int     `json:"preserveRecentDays"`
	WarmDays           int     `json:"warmDays"`
	ArchiveDays        int     `json:"archiveDays"`
	SizeThresholdMB    float64 `json:"sizeThresholdMb"`
}

type SchedulerConfig struct {
	CompressionSchedule string `json:"compressionSchedule"`
	ArchivalSchedule    string `json:"archivalSchedule"`
	ThresholdSchedule   string `json:"thresholdSchedule"`
	CompressionPriority int    `json:"compressionPriority"`
	ArchivalPriority    int    `json:"archivalPriority"`
	ThresholdPriority   int    `json:"thresholdPriority"`
}

// SummaryConfig points at an OpenAI-compatible completion endpoint used
// to summarize warm and cold entries. Empty BaseURL disables remote
// summarization and the deterministic extractor is used instead.
type SummaryConfig struct {
	BaseURL string `json:"baseUrl,omitempty"`
	APIKey  string `json:"apiKey,omitempty"`
	Model   string `json:"model,omitempty"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Dir: filepath.Join(ConfigDir(), "data"),
		},
		Lifecycle: LifecycleConfig{
			PreserveRecentDays: DefaultPreserveRecentDays,
			WarmDays:           DefaultWarmDays,
			ArchiveDays:        DefaultArchiveDays,
			SizeThresholdMB:    DefaultSizeThresholdMB,
		},
		Scheduler: SchedulerConfig{
			CompressionSchedule: DefaultCompressionSchedule,
			ArchivalSchedule:    DefaultArchivalSchedule,
			ThresholdSchedule:   DefaultThresholdSchedule,
			CompressionPriority: DefaultCompressionPriority,
			ArchivalPriority:    DefaultArchivalPriority,
			ThresholdPriority:   DefaultThresholdPriority,
		},
		Summary: SummaryConfig{},
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".mnemo")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	return LoadConfigFrom(ConfigPath())
}

// LoadConfigFrom reads a config file, applies environment overrides and
// fills gaps with defaults. A missing file is not an error.
func LoadConfigFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if dir := os.Getenv("MNEMO_DATA_DIR"); dir != "" {
		cfg.Data.Dir = dir
	}
	if key := os.Getenv("MNEMO_API_KEY"); key != "" {
		cfg.Summary.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Summary.APIKey == "" {
		cfg.Summary.APIKey = key
	}
	if url := os.Getenv("MNEMO_BASE_URL"); url != "" {
		cfg.Summary.BaseURL = url
	}
	if model := os.Getenv("MNEMO_MODEL"); model != "" {
		cfg.Summary.Model = model
	}
	if host := os.Getenv("MNEMO_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("MNEMO_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = parsed
		}
	}
	if days := os.Getenv("MNEMO_ARCHIVE_DAYS"); days != "" {
		if parsed, err := strconv.Atoi(days); err == nil {
			cfg.Lifecycle.ArchiveDays = parsed
		}
	}
	if mb := os.Getenv("MNEMO_SIZE_THRESHOLD_MB"); mb != "" {
		if parsed, err := strconv.ParseFloat(mb, 64); err == nil {
			cfg.Lifecycle.SizeThresholdMB = parsed
		}
	}

	if cfg.Data.Dir == "" {
		cfg.Data.Dir = DefaultConfig().Data.Dir
	}
	if cfg.Lifecycle.PreserveRecentDays <= 0 {
		cfg.Lifecycle.PreserveRecentDays = DefaultPreserveRecentDays
	}
	if cfg.Lifecycle.WarmDays <= cfg.Lifecycle.PreserveRecentDays {
		cfg.Lifecycle.WarmDays = cfg.Lifecycle.PreserveRecentDays + (DefaultWarmDays - DefaultPreserveRecentDays)
	}
	if cfg.Lifecycle.ArchiveDays <= 0 {
		cfg.Lifecycle.ArchiveDays = DefaultArchiveDays
	}
	if cfg.Lifecycle.SizeThresholdMB <= 0 {
		cfg.Lifecycle.SizeThresholdMB = DefaultSizeThresholdMB
	}
	if cfg.Scheduler.CompressionSchedule == "" {
		cfg.Scheduler.CompressionSchedule = DefaultCompressionSchedule
	}
	if cfg.Scheduler.ArchivalSchedule == "" {
		cfg.Scheduler.ArchivalSchedule = DefaultArchivalSchedule
	}
	if cfg.Scheduler.ThresholdSchedule == "" {
		cfg.Scheduler.ThresholdSchedule = DefaultThresholdSchedule
	}
	if cfg.Scheduler.CompressionPriority <= 0 {
		cfg.Scheduler.CompressionPriority = DefaultCompressionPriority
	}
	if cfg.Scheduler.ArchivalPriority <= 0 {
		cfg.Scheduler.ArchivalPriority = DefaultArchivalPriority
	}
	if cfg.Scheduler.ThresholdPriority <= 0 {
		cfg.Scheduler.ThresholdPriority = DefaultThresholdPriority
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	return SaveConfigTo(cfg, ConfigPath())
}

func SaveConfigTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}
