package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatalf("expected not-exist error for missing file")
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.Server.Port)
	}
	if cfg.Admin.Username == "" || cfg.Admin.Password == "" {
		t.Fatalf("expected default admin credentials")
	}
	if cfg.State.File != "data/quiz_state.json" {
		t.Fatalf("expected default state file, got %q", cfg.State.File)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9000"
admin:
  username: host
  password: hunter2
redis:
  addr: localhost:6379
  ttl: 1h
quiz:
  questionSet: demo
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9000" {
		t.Fatalf("expected port from file, got %q", cfg.Server.Port)
	}
	if cfg.Admin.Username != "host" || cfg.Admin.Password != "hunter2" {
		t.Fatalf("expected admin credentials from file, got %+v", cfg.Admin)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("expected redis addr from file, got %q", cfg.Redis.Addr)
	}
	if cfg.Quiz.QuestionSet != "demo" {
		t.Fatalf("expected question set from file, got %q", cfg.Quiz.QuestionSet)
	}
	// Fields the file leaves empty keep their defaults.
	if cfg.State.File != "data/quiz_state.json" {
		t.Fatalf("expected default state file, got %q", cfg.State.File)
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for empty value, got %v", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected parsed duration, got %v", got)
	}
	if got := TTLDuration("bogus", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for invalid value, got %v", got)
	}
}
