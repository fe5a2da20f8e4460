// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Audit      AuditConfig      `mapstructure:"audit"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Screenshot ScreenshotConfig `mapstructure:"screenshot"`
	Content    ContentConfig    `mapstructure:"content"`
	Report     ReportConfig     `mapstructure:"report"`
	Storage    StorageConfig    `mapstructure:"storage"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// AuditConfig governs the audit pipeline.
type AuditConfig struct {
	MaxURLs         int    `mapstructure:"max_urls"`
	UserAgent       string `mapstructure:"user_agent"`
	DefaultLanguage string `mapstructure:"default_language"`
}

// HTTPConfig configures outbound HTTP client behavior.
type HTTPConfig struct {
	TimeoutSeconds      int `mapstructure:"timeout_seconds"`
	ProbeTimeoutSeconds int `mapstructure:"probe_timeout_seconds"`
}

// ScreenshotConfig configures the headless capture subsystem.
type ScreenshotConfig struct {
	Enabled               bool `mapstructure:"enabled"`
	MaxParallel           int  `mapstructure:"max_parallel"`
	CaptureTimeoutSeconds int  `mapstructure:"capture_timeout_seconds"`
}

// ContentConfig configures the AI content analyzer.
type ContentConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// ReportConfig configures PDF report rendering.
type ReportConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	PrintTimeoutSeconds int  `mapstructure:"print_timeout_seconds"`
}

// StorageConfig selects and parameterizes the persistence backends.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// PubSubConfig holds metadata for audit-event fanout.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITEAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("audit.max_urls", 25)
	v.SetDefault("audit.user_agent", "siteaudit-bot/0.1")
	v.SetDefault("audit.default_language", "en")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.probe_timeout_seconds", 5)
	v.SetDefault("screenshot.enabled", false)
	v.SetDefault("screenshot.max_parallel", 2)
	v.SetDefault("screenshot.capture_timeout_seconds", 30)
	v.SetDefault("content.enabled", false)
	v.SetDefault("content.model", "gpt-4o-mini")
	v.SetDefault("report.enabled", false)
	v.SetDefault("report.print_timeout_seconds", 45)
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.prefix", "audits")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Audit.MaxURLs <= 0 {
		return fmt.Errorf("audit.max_urls must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Screenshot.Enabled && c.Screenshot.MaxParallel <= 0 {
		return fmt.Errorf("screenshot.max_parallel must be > 0 when screenshots are enabled")
	}
	if c.Content.Enabled && c.Content.APIKey == "" {
		return fmt.Errorf("content.api_key must be set when content analysis is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("storage.backend must be memory or postgres")
	}
	if c.PubSub.Enabled && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub is enabled")
	}
	if c.PubSub.Enabled && c.PubSub.TopicName == "" {
		return fmt.Errorf("pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}

// FetchTimeout converts the HTTP timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// ProbeTimeout bounds the robots/sitemap probes.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.HTTP.ProbeTimeoutSeconds) * time.Second
}
