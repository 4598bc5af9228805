package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("BATCH_WORKERS", "")
	t.Setenv("ZIP_RETENTION", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port mismatch: got %q want %q", cfg.Port, "8080")
	}
	if cfg.BatchWorkers != 3 {
		t.Fatalf("BatchWorkers mismatch: got %d want 3", cfg.BatchWorkers)
	}
	if cfg.ZipRetention != 6*time.Hour {
		t.Fatalf("ZipRetention mismatch: got %s", cfg.ZipRetention)
	}
	if cfg.DownloadBaseURL != "/downloads" {
		t.Fatalf("DownloadBaseURL mismatch: got %q", cfg.DownloadBaseURL)
	}
}

func TestLoadConfigHonorsOverrides(t *testing.T) {
	t.Setenv("BATCH_WORKERS", "5")
	t.Setenv("ZIP_RETENTION", "90m")
	t.Setenv("PREDICTION_POLL_INTERVAL", "250ms")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.BatchWorkers != 5 {
		t.Fatalf("BatchWorkers mismatch: got %d want 5", cfg.BatchWorkers)
	}
	if cfg.ZipRetention != 90*time.Minute {
		t.Fatalf("ZipRetention mismatch: got %s", cfg.ZipRetention)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Fatalf("PollInterval mismatch: got %s", cfg.PollInterval)
	}
}

func TestLoadConfigRejectsZeroWorkers(t *testing.T) {
	t.Setenv("BATCH_WORKERS", "0")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for BATCH_WORKERS=0")
	}
}
