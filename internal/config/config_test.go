package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if cfg.Lifecycle.PreserveRecentDays != DefaultPreserveRecentDays {
		t.Errorf("preserveRecentDays = %d, want %d", cfg.Lifecycle.PreserveRecentDays, DefaultPreserveRecentDays)
	}
	if cfg.Lifecycle.WarmDays != DefaultWarmDays {
		t.Errorf("warmDays = %d, want %d", cfg.Lifecycle.WarmDays, DefaultWarmDays)
	}
	if cfg.Lifecycle.ArchiveDays != DefaultArchiveDays {
		t.Errorf("archiveDays = %d, want %d", cfg.Lifecycle.ArchiveDays, DefaultArchiveDays)
	}
	if cfg.Lifecycle.SizeThresholdMB != DefaultSizeThresholdMB {
		t.Errorf("sizeThresholdMb = %v, want %v", cfg.Lifecycle.SizeThresholdMB, DefaultSizeThresholdMB)
	}
	if cfg.Scheduler.CompressionSchedule != DefaultCompressionSchedule {
		t.Errorf("compressionSchedule = %q, want %q", cfg.Scheduler.CompressionSchedule, DefaultCompressionSchedule)
	}
	if cfg.Scheduler.ThresholdPriority != DefaultThresholdPriority {
		t.Errorf("thresholdPriority = %d, want %d", cfg.Scheduler.ThresholdPriority, DefaultThresholdPriority)
	}
	if cfg.Server.Host != DefaultHost {
		t.Errorf("host = %q, want %q", cfg.Server.Host, DefaultHost)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Data.Dir == "" {
		t.Error("data dir should not be empty")
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("MNEMO_DATA_DIR", "")
	t.Setenv("MNEMO_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Lifecycle.ArchiveDays != DefaultArchiveDays {
		t.Errorf("expected default archiveDays %d, got %d", DefaultArchiveDays, cfg.Lifecycle.ArchiveDays)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("MNEMO_DATA_DIR", "")
	t.Setenv("MNEMO_ARCHIVE_DAYS", "")
	t.Setenv("MNEMO_SIZE_THRESHOLD_MB", "")

	cfgDir := filepath.Join(tmpDir, ".mnemo")
	os.MkdirAll(cfgDir, 0755)

	testCfg := map[string]any{
		"data": map[string]any{
			"dir": "/var/lib/mnemo",
		},
		"lifecycle": map[string]any{
			"archiveDays":     30,
			"sizeThresholdMb": 10.0,
		},
	}
	data, _ := json.MarshalIndent(testCfg, "", "  ")
	os.WriteFile(filepath.Join(cfgDir, "config.json"), data, 0644)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Data.Dir != "/var/lib/mnemo" {
		t.Errorf("data dir = %q, want /var/lib/mnemo", cfg.Data.Dir)
	}
	if cfg.Lifecycle.ArchiveDays != 30 {
		t.Errorf("archiveDays = %d, want 30", cfg.Lifecycle.ArchiveDays)
	}
	if cfg.Lifecycle.SizeThresholdMB != 10.0 {
		t.Errorf("sizeThresholdMb = %v, want 10.0", cfg.Lifecycle.SizeThresholdMB)
	}
	// Unspecified sections keep their defaults.
	if cfg.Scheduler.ArchivalSchedule != DefaultArchivalSchedule {
		t.Errorf("archivalSchedule = %q, want %q", cfg.Scheduler.ArchivalSchedule, DefaultArchivalSchedule)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	t.Setenv("MNEMO_DATA_DIR", "/srv/mnemo")
	t.Setenv("MNEMO_API_KEY", "mnemo-key")
	t.Setenv("MNEMO_BASE_URL", "http://localhost:8080/v1")
	t.Setenv("MNEMO_MODEL", "gpt-5-mini")
	t.Setenv("MNEMO_HOST", "127.0.0.1")
	t.Setenv("MNEMO_PORT", "9000")
	t.Setenv("MNEMO_ARCHIVE_DAYS", "14")
	t.Setenv("MNEMO_SIZE_THRESHOLD_MB", "2.5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Data.Dir != "/srv/mnemo" {
		t.Errorf("data dir = %q", cfg.Data.Dir)
	}
	if cfg.Summary.APIKey != "mnemo-key" {
		t.Errorf("apiKey = %q", cfg.Summary.APIKey)
	}
	if cfg.Summary.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("baseURL = %q", cfg.Summary.BaseURL)
	}
	if cfg.Summary.Model != "gpt-5-mini" {
		t.Errorf("model = %q", cfg.Summary.Model)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("host = %q", cfg.Server.Host)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Lifecycle.ArchiveDays != 14 {
		t.Errorf("archiveDays = %d", cfg.Lifecycle.ArchiveDays)
	}
	if cfg.Lifecycle.SizeThresholdMB != 2.5 {
		t.Errorf("sizeThresholdMb = %v", cfg.Lifecycle.SizeThresholdMB)
	}
}

func TestLoadConfig_EnvPriority(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	// MNEMO_API_KEY takes priority over OPENAI_API_KEY
	t.Setenv("MNEMO_API_KEY", "mnemo-wins")
	t.Setenv("OPENAI_API_KEY", "openai-loses")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Summary.APIKey != "mnemo-wins" {
		t.Errorf("apiKey = %q, want mnemo-wins", cfg.Summary.APIKey)
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	cfgDir := filepath.Join(tmpDir, ".mnemo")
	os.MkdirAll(cfgDir, 0755)
	os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte("invalid json"), 0644)

	_, err := LoadConfig()
	if err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestLoadConfig_BadValuesFallBack(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("MNEMO_ARCHIVE_DAYS", "")
	t.Setenv("MNEMO_SIZE_THRESHOLD_MB", "")

	cfgDir := filepath.Join(tmpDir, ".mnemo")
	os.MkdirAll(cfgDir, 0755)

	// Zero and negative values are replaced by defaults; a warm window
	// at or below the hot window is pushed back out.
	testCfg := map[string]any{
		"lifecycle": map[string]any{
			"preserveRecentDays": 0,
			"warmDays":           3,
			"archiveDays":        -1,
			"sizeThresholdMb":    0,
		},
	}
	data, _ := json.MarshalIndent(testCfg, "", "  ")
	os.WriteFile(filepath.Join(cfgDir, "config.json"), data, 0644)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Lifecycle.PreserveRecentDays != DefaultPreserveRecentDays {
		t.Errorf("preserveRecentDays = %d", cfg.Lifecycle.PreserveRecentDays)
	}
	if cfg.Lifecycle.WarmDays <= cfg.Lifecycle.PreserveRecentDays {
		t.Errorf("warmDays %d not above preserveRecentDays %d", cfg.Lifecycle.WarmDays, cfg.Lifecycle.PreserveRecentDays)
	}
	if cfg.Lifecycle.ArchiveDays != DefaultArchiveDays {
		t.Errorf("archiveDays = %d", cfg.Lifecycle.ArchiveDays)
	}
	if cfg.Lifecycle.SizeThresholdMB != DefaultSizeThresholdMB {
		t.Errorf("sizeThresholdMb = %v", cfg.Lifecycle.SizeThresholdMB)
	}
}

func TestSaveConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	cfg := DefaultConfig()
	cfg.Summary.APIKey = "test-key"

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, ".mnemo", "config.json"))
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("unmarshal saved config: %v", err)
	}
	if loaded.Summary.APIKey != "test-key" {
		t.Errorf("saved apiKey = %q, want test-key", loaded.Summary.APIKey)
	}
}
