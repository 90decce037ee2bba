package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_TIMEOUT", "10s")
	t.Setenv("MAX_PAGE_LIMIT", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Fatalf("expected port 9090, got %q", cfg.Port)
	}
	if cfg.StoreTimeout != 10*time.Second {
		t.Fatalf("expected store timeout 10s, got %s", cfg.StoreTimeout)
	}
	if cfg.MaxLimit != 25 {
		t.Fatalf("expected max limit 25, got %d", cfg.MaxLimit)
	}
	if cfg.StoreBackend != BackendFile || cfg.DefaultLimit != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != "3000" {
		t.Fatalf("expected default port 3000, got %q", cfg.Port)
	}
	if cfg.MongoDatabase != "ToDOList" {
		t.Fatalf("expected default database ToDOList, got %q", cfg.MongoDatabase)
	}
}

func TestLoadTrustedProxies(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, 192.168.1.7 ,::1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.168.1.7/32"),
		netip.MustParsePrefix("::1/128"),
	}
	if len(cfg.TrustedProxies) != len(want) {
		t.Fatalf("expected %d prefixes, got %v", len(want), cfg.TrustedProxies)
	}
	for i := range want {
		if cfg.TrustedProxies[i] != want[i] {
			t.Fatalf("prefix %d = %s, want %s", i, cfg.TrustedProxies[i], want[i])
		}
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad duration", map[string]string{"STORE_TIMEOUT": "soon"}},
		{"bad int", map[string]string{"UPDATE_RETRIES": "many"}},
		{"bad float", map[string]string{"RATE_LIMIT_RPS": "fast"}},
		{"unknown backend", map[string]string{"STORE_BACKEND": "redis"}},
		{"mysql without dsn", map[string]string{"STORE_BACKEND": "mysql"}},
		{"bad proxy", map[string]string{"TRUSTED_PROXIES": "10.0.0.1,not-an-ip"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TASKS_FILE=/tmp/from-dotenv.json\nPORT=4000\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("PORT", "5000")
	// registered so the value godotenv sets is cleared after the test
	t.Setenv("TASKS_FILE", "")
	os.Unsetenv("TASKS_FILE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.TasksFile != "/tmp/from-dotenv.json" {
		t.Fatalf("expected tasks file from .env, got %q", cfg.TasksFile)
	}
	if cfg.Port != "5000" {
		t.Fatalf("environment must win over .env, got %q", cfg.Port)
	}
}
