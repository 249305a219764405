package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.FetchMode != "auto" {
		t.Errorf("FetchMode = %q, want auto", cfg.FetchMode)
	}
	if cfg.SweepInterval != 60*time.Minute {
		t.Errorf("SweepInterval = %s, want 60m", cfg.SweepInterval)
	}
	if cfg.CheckDelay != 2*time.Second {
		t.Errorf("CheckDelay = %s, want 2s", cfg.CheckDelay)
	}
	if cfg.NavTimeout != 45*time.Second {
		t.Errorf("NavTimeout = %s, want 45s", cfg.NavTimeout)
	}
	if len(cfg.AllowedHosts) != 0 {
		t.Errorf("AllowedHosts = %v, want empty", cfg.AllowedHosts)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("FETCH_ALLOWED_HOSTS", "example.com, shop.example.org ,")
	t.Setenv("FETCH_MODE", "static")
	t.Setenv("SWEEP_INTERVAL", "30m")
	t.Setenv("BROWSER_EXECUTABLE", "/usr/bin/chromium")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	want := []string{"example.com", "shop.example.org"}
	if len(cfg.AllowedHosts) != len(want) {
		t.Fatalf("AllowedHosts = %v, want %v", cfg.AllowedHosts, want)
	}
	for i := range want {
		if cfg.AllowedHosts[i] != want[i] {
			t.Errorf("AllowedHosts[%d] = %q, want %q", i, cfg.AllowedHosts[i], want[i])
		}
	}
	if cfg.FetchMode != "static" {
		t.Errorf("FetchMode = %q, want static", cfg.FetchMode)
	}
	if cfg.SweepInterval != 30*time.Minute {
		t.Errorf("SweepInterval = %s, want 30m", cfg.SweepInterval)
	}
	if cfg.BrowserExecutable != "/usr/bin/chromium" {
		t.Errorf("BrowserExecutable = %q", cfg.BrowserExecutable)
	}
}

func TestLoadValidation(t *testing.T) {
	t.Run("bad fetch mode", func(t *testing.T) {
		t.Setenv("FETCH_MODE", "carrier-pigeon")
		if _, err := Load(); err == nil {
			t.Error("expected error for invalid FETCH_MODE")
		}
	})

	t.Run("sweep interval too short", func(t *testing.T) {
		t.Setenv("SWEEP_INTERVAL", "5s")
		if _, err := Load(); err == nil {
			t.Error("expected error for too-short SWEEP_INTERVAL")
		}
	})

	t.Run("snapshots need bucket", func(t *testing.T) {
		t.Setenv("S3_BACKUP_ENABLED", "true")
		if _, err := Load(); err == nil {
			t.Error("expected error when S3_BACKUP_ENABLED without BUCKET_NAME")
		}
	})
}
