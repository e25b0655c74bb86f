package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsYAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: "9090"
redis:
  addr: "localhost:6379"
  ttl: "5m"
player:
  base_url: "http://quiz.local/api"
  timer_reference: 30
  request_timeout: "8s"
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("QUIZ_PUSH", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port from yaml, got %q", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "redis:6380" {
		t.Fatalf("expected env override, got %q", cfg.Redis.Addr)
	}
	if cfg.Player.BaseURL != "http://quiz.local/api" || cfg.Player.TimerReference != 30 || !cfg.Player.Push {
		t.Fatalf("unexpected player config %+v", cfg.Player)
	}
	if got := TTLDuration(cfg.Player.RequestTimeout, 0); got != 8*time.Second {
		t.Fatalf("expected 8s request timeout, got %v", got)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Player.BaseURL != defaultBaseURL || cfg.Player.TimerReference != defaultTimerReference {
		t.Fatalf("expected defaults, got %+v", cfg.Player)
	}
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("REDIS_DB", "one")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for non-numeric REDIS_DB")
	}
}

func TestTTLDuration(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{"", time.Minute},
		{"90s", 90 * time.Second},
		{"soon", time.Minute},
	}
	for _, tc := range cases {
		if got := TTLDuration(tc.raw, time.Minute); got != tc.want {
			t.Fatalf("TTLDuration(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
