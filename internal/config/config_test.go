package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("BLOBBRIDGE_BACKEND")
	os.Unsetenv("BLOBBRIDGE_CONTAINER")
	os.Unsetenv("BLOBBRIDGE_POLL_TIMEOUT")
	os.Unsetenv("BLOBBRIDGE_SYNC_INCLUDE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Backend != "azure" {
		t.Errorf("expected backend azure, got %s", cfg.Backend)
	}
	if cfg.Container != "blobbridge" {
		t.Errorf("expected container blobbridge, got %s", cfg.Container)
	}
	if cfg.PollTimeout != 60*time.Second {
		t.Errorf("expected 60s poll timeout, got %s", cfg.PollTimeout)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("expected 2s poll interval, got %s", cfg.PollInterval)
	}
	if len(cfg.SyncInclude) != 0 {
		t.Errorf("expected empty include list, got %v", cfg.SyncInclude)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("BLOBBRIDGE_BACKEND", "s3")
	os.Setenv("BLOBBRIDGE_CONTAINER", "bridge-test")
	os.Setenv("BLOBBRIDGE_POLL_TIMEOUT", "90s")
	os.Setenv("BLOBBRIDGE_SYNC_INCLUDE", "*.py, *.txt")
	defer func() {
		os.Unsetenv("BLOBBRIDGE_BACKEND")
		os.Unsetenv("BLOBBRIDGE_CONTAINER")
		os.Unsetenv("BLOBBRIDGE_POLL_TIMEOUT")
		os.Unsetenv("BLOBBRIDGE_SYNC_INCLUDE")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Backend != "s3" {
		t.Errorf("expected backend s3, got %s", cfg.Backend)
	}
	if cfg.Container != "bridge-test" {
		t.Errorf("expected container bridge-test, got %s", cfg.Container)
	}
	if cfg.PollTimeout != 90*time.Second {
		t.Errorf("expected 90s poll timeout, got %s", cfg.PollTimeout)
	}
	if len(cfg.SyncInclude) != 2 || cfg.SyncInclude[1] != "*.txt" {
		t.Errorf("unexpected include list %v", cfg.SyncInclude)
	}
}

func TestLoadBareSecondsDuration(t *testing.T) {
	os.Setenv("BLOBBRIDGE_POLL_TIMEOUT", "120")
	defer os.Unsetenv("BLOBBRIDGE_POLL_TIMEOUT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.PollTimeout != 120*time.Second {
		t.Errorf("expected 120s, got %s", cfg.PollTimeout)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	os.Setenv("BLOBBRIDGE_POLL_TIMEOUT", "soon")
	defer os.Unsetenv("BLOBBRIDGE_POLL_TIMEOUT")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid duration, got nil")
	}
}

func TestLoadInvalidBackend(t *testing.T) {
	os.Setenv("BLOBBRIDGE_BACKEND", "carrier-pigeon")
	defer os.Unsetenv("BLOBBRIDGE_BACKEND")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid backend, got nil")
	}
}
