//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalYAML = `
database:
  url: postgres://localhost:5432/chat
redis:
  url: redis://localhost:6379
chat:
  admin_ids: ["admin-1"]
`

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalYAML), true)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !cfg.Runtime.Dev {
		t.Error("Runtime.Dev not carried through")
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("log defaults = %s/%s", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.Chat.MaxMessageBytes != 4096 {
		t.Errorf("MaxMessageBytes = %d, want 4096", cfg.Chat.MaxMessageBytes)
	}
	if cfg.Chat.RateLimit != 20 || cfg.Chat.RateWindow != time.Minute {
		t.Errorf("rate defaults = %d/%v", cfg.Chat.RateLimit, cfg.Chat.RateWindow)
	}
	if cfg.Chat.AcceptLockTTL != 10*time.Second {
		t.Errorf("AcceptLockTTL = %v, want 10s", cfg.Chat.AcceptLockTTL)
	}
	if cfg.Chat.SweepInterval != 30*time.Second {
		t.Errorf("SweepInterval = %v, want 30s", cfg.Chat.SweepInterval)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Web.Port)
	}
	if cfg.Web.PaymentCallbackPath != "/api/v1/payment/confirmed" {
		t.Errorf("PaymentCallbackPath = %q", cfg.Web.PaymentCallbackPath)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
log:
  level: debug
  format: console
database:
  url: postgres://db:5432/chat
  pool_size: 25
redis:
  url: redis://cache:6379
chat:
  admin_ids: ["admin-1", "admin-2"]
  max_message_bytes: 1024
  rate_limit: 5
  rate_window: 10s
  sweep_interval: 5s
web:
  port: 9090
`), false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Database.PoolSize != 25 || cfg.Chat.MaxMessageBytes != 1024 || cfg.Web.Port != 9090 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Chat.RateWindow != 10*time.Second || cfg.Chat.SweepInterval != 5*time.Second {
		t.Errorf("duration overrides not applied: %+v", cfg.Chat)
	}
	if len(cfg.Chat.AdminIDs) != 2 {
		t.Errorf("AdminIDs = %v", cfg.Chat.AdminIDs)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	for _, tc := range []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing database url",
			yaml: "redis:\n  url: redis://x\nchat:\n  admin_ids: [\"a\"]\n",
			want: "database.url",
		},
		{
			name: "missing redis url",
			yaml: "database:\n  url: postgres://x\nchat:\n  admin_ids: [\"a\"]\n",
			want: "redis.url",
		},
		{
			name: "missing admin ids",
			yaml: "database:\n  url: postgres://x\nredis:\n  url: redis://x\n",
			want: "admin_ids",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.yaml), false)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want mention of %s", err, tc.want)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), false); err == nil {
		t.Error("missing file must fail")
	}
}
