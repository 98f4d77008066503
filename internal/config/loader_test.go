package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		t.Setenv(FileEnv, "")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPAddr != ":8080" || cfg.DatabasePath != "focusguard.db" {
			t.Fatalf("unexpected defaults %#v", cfg)
		}
		if cfg.ReconcileInterval != time.Minute || cfg.MaxLockMinutes != 1440 {
			t.Fatalf("unexpected defaults %#v", cfg)
		}
		if cfg.SQLite().Path != "focusguard.db" {
			t.Fatalf("unexpected sqlite path %q", cfg.SQLite().Path)
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		t.Setenv(FileEnv, "")
		t.Setenv("FOCUSGUARD_HTTP_ADDR", "127.0.0.1:9090")
		t.Setenv("FOCUSGUARD_TIMEZONE", "Asia/Tokyo")
		t.Setenv("FOCUSGUARD_RECONCILE_INTERVAL", "30s")
		t.Setenv("FOCUSGUARD_BRIDGE_CONCURRENCY", "8")
		t.Setenv("FOCUSGUARD_RATE_LIMIT_RPS", "2.5")
		t.Setenv("FOCUSGUARD_LOG_DEVELOPMENT", "true")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPAddr != "127.0.0.1:9090" || cfg.Location.String() != "Asia/Tokyo" {
			t.Fatalf("unexpected config %#v", cfg)
		}
		if cfg.ReconcileInterval != 30*time.Second || cfg.BridgeConcurrency != 8 {
			t.Fatalf("unexpected config %#v", cfg)
		}
		if cfg.RateLimitRPS != 2.5 || !cfg.Log.Development {
			t.Fatalf("unexpected config %#v", cfg)
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		t.Setenv(FileEnv, "")
		t.Setenv("FOCUSGUARD_RECONCILE_INTERVAL", "soon")
		t.Setenv("FOCUSGUARD_MAX_LOCK_MINUTES", "-1")
		t.Setenv("FOCUSGUARD_TIMEZONE", "Mars/Olympus")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		for _, key := range []string{"FOCUSGUARD_RECONCILE_INTERVAL", "FOCUSGUARD_MAX_LOCK_MINUTES", "FOCUSGUARD_TIMEZONE"} {
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("expected %s in %q", key, err.Error())
			}
		}
	})
}

func TestLoader_ConfigFiles(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "focusguard.yaml",
			content: "http_addr: \":7070\"\n" +
				"bridge_concurrency: 2\n" +
				"insights_cache_ttl: 1m\n" +
				"log_development: true\n",
		},
		{
			name: "toml",
			file: "focusguard.toml",
			content: "http_addr = \":7070\"\n" +
				"bridge_concurrency = 2\n" +
				"insights_cache_ttl = \"1m\"\n" +
				"log_development = true\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("write config: %v", err)
			}
			t.Setenv(FileEnv, path)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load returned error: %v", err)
			}
			if cfg.HTTPAddr != ":7070" || cfg.BridgeConcurrency != 2 {
				t.Fatalf("unexpected config %#v", cfg)
			}
			if cfg.InsightsCacheTTL != time.Minute || !cfg.Log.Development {
				t.Fatalf("unexpected config %#v", cfg)
			}
		})
	}

	t.Run("environment overrides file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "focusguard.yaml")
		if err := os.WriteFile(path, []byte("owner_id: from-file\n"), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		t.Setenv(FileEnv, path)
		t.Setenv("FOCUSGUARD_OWNER_ID", "from-env")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.OwnerID != "from-env" {
			t.Fatalf("expected environment to win, got %q", cfg.OwnerID)
		}
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "focusguard.yaml")
		if err := os.WriteFile(path, []byte("http_port: 80\n"), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		t.Setenv(FileEnv, path)

		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "http_port") {
			t.Fatalf("expected unknown key error, got %v", err)
		}
	})
}
