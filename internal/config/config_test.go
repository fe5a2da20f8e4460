package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
audit:
  max_urls: 10
  user_agent: audit-agent
  default_language: de
http:
  timeout_seconds: 45
  probe_timeout_seconds: 3
screenshot:
  enabled: true
  max_parallel: 4
  capture_timeout_seconds: 20
content:
  enabled: true
  api_key: sk-test
  model: gpt-4o
report:
  enabled: true
  print_timeout_seconds: 60
storage:
  backend: postgres
  gcs_bucket: bucket
  prefix: artifacts
db:
  dsn: postgres://localhost/audits
  max_conns: 8
pubsub:
  enabled: true
  project_id: proj
  topic_name: audit-events
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Audit.MaxURLs != 10 || cfg.Audit.DefaultLanguage != "de" {
		t.Fatalf("expected audit overrides to apply: %+v", cfg.Audit)
	}
	if cfg.Storage.Backend != "postgres" || cfg.Storage.Prefix != "artifacts" {
		t.Fatalf("expected storage overrides to apply: %+v", cfg.Storage)
	}
	if cfg.Content.Model != "gpt-4o" {
		t.Fatalf("expected content model override, got %q", cfg.Content.Model)
	}
	if got := cfg.FetchTimeout(); got != 45*time.Second {
		t.Fatalf("expected fetch timeout 45s, got %v", got)
	}
	if got := cfg.ProbeTimeout(); got != 3*time.Second {
		t.Fatalf("expected probe timeout 3s, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Audit.MaxURLs != 25 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Storage.Backend != "memory" || cfg.Storage.Prefix != "audits" {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if !cfg.Logging.Development {
		t.Fatal("expected development logging by default")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8080},
		Audit:   AuditConfig{MaxURLs: 25},
		HTTP:    HTTPConfig{TimeoutSeconds: 30},
		Storage: StorageConfig{Backend: "memory"},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "invalid max urls",
			cfg: func() Config {
				c := base
				c.Audit.MaxURLs = 0
				return c
			}(),
			want: "audit.max_urls",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.HTTP.TimeoutSeconds = 0
				return c
			}(),
			want: "http.timeout_seconds",
		},
		{
			name: "screenshot missing max parallel",
			cfg: func() Config {
				c := base
				c.Screenshot.Enabled = true
				c.Screenshot.MaxParallel = 0
				return c
			}(),
			want: "screenshot.max_parallel",
		},
		{
			name: "content missing api key",
			cfg: func() Config {
				c := base
				c.Content.Enabled = true
				return c
			}(),
			want: "content.api_key",
		},
		{
			name: "auth missing api key",
			cfg: func() Config {
				c := base
				c.Auth.Enabled = true
				return c
			}(),
			want: "auth.api_key",
		},
		{
			name: "postgres missing dsn",
			cfg: func() Config {
				c := base
				c.Storage.Backend = "postgres"
				return c
			}(),
			want: "db.dsn",
		},
		{
			name: "unknown backend",
			cfg: func() Config {
				c := base
				c.Storage.Backend = "s3"
				return c
			}(),
			want: "storage.backend",
		},
		{
			name: "pubsub missing project",
			cfg: func() Config {
				c := base
				c.PubSub.Enabled = true
				c.PubSub.TopicName = "audit-events"
				return c
			}(),
			want: "pubsub.project_id",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
