package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearHEREEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"HERE_API_KEY", "HERE_APP_ID", "HERE_APP_CODE", "HERE_BASE_URL", "PLACESWEEP_DB", "PLACESWEEP_ELASTIC_URL"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "placesweep" {
		t.Errorf("expected Name=placesweep, got %s", cfg.Name)
	}
	if cfg.Sweep.Rows != 3 || cfg.Sweep.Columns != 3 {
		t.Errorf("expected 3x3 grid, got %dx%d", cfg.Sweep.Rows, cfg.Sweep.Columns)
	}
	if cfg.Sweep.Threshold != 90 {
		t.Errorf("expected Threshold=90, got %d", cfg.Sweep.Threshold)
	}
	if cfg.HERE.PageSize != 100 {
		t.Errorf("expected PageSize=100, got %d", cfg.HERE.PageSize)
	}
	if cfg.HERE.MaxPages != 1 {
		t.Errorf("expected MaxPages=1, got %d", cfg.HERE.MaxPages)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearHEREEnv(t)

	path := filepath.Join(t.TempDir(), "placesweep.yaml")

	cfg := DefaultConfig()
	cfg.HERE.AppID = "id"
	cfg.HERE.AppCode = "code"
	cfg.Sweep.Categories = []string{"eat-drink"}
	cfg.Store.Driver = "sqlite"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.HERE.AppID != "id" || loaded.HERE.AppCode != "code" {
		t.Errorf("credentials not round-tripped: %+v", loaded.HERE)
	}
	if len(loaded.Sweep.Categories) != 1 || loaded.Sweep.Categories[0] != "eat-drink" {
		t.Errorf("categories not round-tripped: %v", loaded.Sweep.Categories)
	}
	if loaded.Store.Driver != "sqlite" {
		t.Errorf("expected Driver=sqlite, got %s", loaded.Store.Driver)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearHEREEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Path != "places.db" {
		t.Errorf("expected default store path, got %s", cfg.Store.Path)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("here: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}

	cfg.HERE.AppID = "id"
	if err := cfg.Validate(); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("app_id without app_code should not validate, got %v", err)
	}

	cfg.HERE.AppCode = "code"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg.Sweep.Threshold = 101
	if err := cfg.Validate(); err == nil {
		t.Error("threshold above page size should not validate")
	}
	cfg.Sweep.Threshold = 90

	cfg.Sweep.Rows, cfg.Sweep.Columns = 1, 1
	if err := cfg.Validate(); err == nil {
		t.Error("1x1 grid never shrinks and should not validate")
	}
	cfg.Sweep.Rows, cfg.Sweep.Columns = 3, 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("columns 0 means a square grid, got %v", err)
	}
	cfg.Sweep.Rows = 1
	if err := cfg.Validate(); err == nil {
		t.Error("1x0 grid is 1x1 and should not validate")
	}
	cfg.Sweep.Columns = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative columns should not validate")
	}
	cfg.Sweep.Rows, cfg.Sweep.Columns = 3, 3

	cfg.Store.Driver = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Error("expected invalid driver error")
	}
}

func TestConfig_Helpers(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.HERE.GetTimeout() != 30*time.Second {
		t.Errorf("GetTimeout = %v", cfg.HERE.GetTimeout())
	}
	if cfg.HERE.GetMinInterval() != 200*time.Millisecond {
		t.Errorf("GetMinInterval = %v", cfg.HERE.GetMinInterval())
	}

	cfg.HERE.Timeout = "nonsense"
	if cfg.HERE.GetTimeout() != 30*time.Second {
		t.Error("invalid timeout should fall back to default")
	}
}
