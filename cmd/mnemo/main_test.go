package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stellarlinkco/mnemo/internal/config"
)

func TestNewAppWithConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Data.Dir = filepath.Join(t.TempDir(), "data")

	a, err := newAppWithConfig(cfg, nil)
	if err != nil {
		t.Fatalf("newAppWithConfig: %v", err)
	}

	if _, err := os.Stat(cfg.Data.Dir); err != nil {
		t.Fatalf("data dir not created: %v", err)
	}

	if _, err := a.memory.Append("note", "wiring check"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	entries, err := a.memory.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}

	if a.sched.Status().Running {
		t.Fatal("scheduler must not start until serve")
	}
}

func TestNewAppWithConfigBadDataDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Data.Dir = filepath.Join(blocker, "data")

	if _, err := newAppWithConfig(cfg, nil); err == nil {
		t.Fatal("expected error for unusable data dir")
	}
}

func TestRunOnboard(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("MNEMO_DATA_DIR", "")

	if err := runOnboard(onboardCmd, nil); err != nil {
		t.Fatalf("runOnboard: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, ".mnemo", "config.json")); err != nil {
		t.Fatalf("config not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, ".mnemo", "data", "archives")); err != nil {
		t.Fatalf("archives dir not created: %v", err)
	}

	// A second onboard leaves the existing config alone.
	if err := runOnboard(onboardCmd, nil); err != nil {
		t.Fatalf("second runOnboard: %v", err)
	}
}
