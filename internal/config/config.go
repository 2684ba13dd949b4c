package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level configuration for the ingestion service.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Broker   BrokerConfig   `koanf:"broker"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Push     PushConfig     `koanf:"push"`
	Timezone string         `koanf:"timezone"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`
	Mode string `koanf:"mode"` // "debug" or "release"
}

// BrokerConfig holds the MQTT broker connection settings.
type BrokerConfig struct {
	URL      string `koanf:"url"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	ClientID string `koanf:"client_id"`
}

// DatabaseConfig holds the database connection settings.
type DatabaseConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// RedisConfig holds the cache connection settings.
type RedisConfig struct {
	URL string `koanf:"url"`
}

// PushConfig holds the Web Push (VAPID) settings. Empty keys disable push
// delivery; alerts are then logged but not sent.
type PushConfig struct {
	VAPIDPublicKey  string `koanf:"vapid_public_key"`
	VAPIDPrivateKey string `koanf:"vapid_private_key"`
	Subject         string `koanf:"subject"`
}

// Location resolves the configured timezone. Day boundaries and alert
// minute comparisons all run in this zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Broker.URL) == "" {
		return fmt.Errorf("broker.url is required")
	}
	if strings.TrimSpace(c.Broker.ClientID) == "" {
		return fmt.Errorf("broker.client_id is required")
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}

	if strings.TrimSpace(c.Redis.URL) == "" {
		return fmt.Errorf("redis.url is required")
	}

	// VAPID keys come as a pair; one without the other is a misconfiguration
	// rather than the keys-absent "push disabled" state.
	if (c.Push.VAPIDPublicKey == "") != (c.Push.VAPIDPrivateKey == "") {
		return fmt.Errorf("push.vapid_public_key and push.vapid_private_key must be set together")
	}
	if c.Push.VAPIDPublicKey != "" && strings.TrimSpace(c.Push.Subject) == "" {
		return fmt.Errorf("push.subject is required when VAPID keys are set")
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	return nil
}

// Load loads the configuration from the given file path and environment
// variables, then validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"server.port":             8090,
		"server.host":             "0.0.0.0",
		"server.mode":             "release",
		"broker.url":              "tcp://localhost:1883",
		"broker.username":         "",
		"broker.password":         "",
		"broker.client_id":        "queue-ingest",
		"database.dsn":            "postgres://localhost:5432/craftbrew?sslmode=disable",
		"database.max_open_conns": 25,
		"database.max_idle_conns": 25,
		"database.auto_migrate":   true,
		"redis.url":               "redis://localhost:6379/0",
		"push.vapid_public_key":   "",
		"push.vapid_private_key":  "",
		"push.subject":            "mailto:admin@example.com",
		"timezone":                "Asia/Seoul",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// 2. Load from file
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// 3. Load from Environment Variables
	// QINGEST_BROKER__URL=tcp://broker:1883 overrides broker.url
	if err := k.Load(env.Provider("QINGEST_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "QINGEST_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
