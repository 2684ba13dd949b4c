package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8090, cfg.Server.Port)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, "release", cfg.Server.Mode)
	require.Equal(t, "tcp://localhost:1883", cfg.Broker.URL)
	require.Equal(t, "queue-ingest", cfg.Broker.ClientID)
	require.Equal(t, 25, cfg.Database.MaxOpenConns)
	require.True(t, cfg.Database.AutoMigrate)
	require.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	require.Equal(t, "Asia/Seoul", cfg.Timezone)

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, "Asia/Seoul", loc.String())
}

func TestLoad_FromFile(t *testing.T) {
	content := `
server:
  port: 9000
broker:
  url: tcp://broker.lan:1883
  username: brew
  password: secret
push:
  vapid_public_key: pub
  vapid_private_key: priv
timezone: UTC
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, "tcp://broker.lan:1883", cfg.Broker.URL)
	require.Equal(t, "brew", cfg.Broker.Username)
	require.Equal(t, "secret", cfg.Broker.Password)
	require.Equal(t, "pub", cfg.Push.VAPIDPublicKey)
	require.Equal(t, "UTC", cfg.Timezone)

	// File values merge over defaults, untouched keys keep theirs.
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 25, cfg.Database.MaxIdleConns)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("QINGEST_BROKER__URL", "tcp://env-broker:1883")
	t.Setenv("QINGEST_SERVER__PORT", "7070")
	t.Setenv("QINGEST_TIMEZONE", "America/New_York")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "tcp://env-broker:1883", cfg.Broker.URL)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "America/New_York", cfg.Timezone)
}

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8090, Host: "0.0.0.0", Mode: "release"},
		Broker:   BrokerConfig{URL: "tcp://localhost:1883", ClientID: "queue-ingest"},
		Database: DatabaseConfig{DSN: "postgres://localhost/craftbrew", MaxOpenConns: 25, MaxIdleConns: 25},
		Redis:    RedisConfig{URL: "redis://localhost:6379/0"},
		Push:     PushConfig{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv", Subject: "mailto:a@b.c"},
		Timezone: "Asia/Seoul",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:   "no VAPID keys is valid",
			mutate: func(cfg *Config) { cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey = "", "" },
		},
		{
			name:    "port zero",
			mutate:  func(cfg *Config) { cfg.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "port out of range",
			mutate:  func(cfg *Config) { cfg.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "empty host",
			mutate:  func(cfg *Config) { cfg.Server.Host = " " },
			wantErr: "server.host",
		},
		{
			name:    "unknown mode",
			mutate:  func(cfg *Config) { cfg.Server.Mode = "banana" },
			wantErr: "server.mode",
		},
		{
			name:    "empty broker url",
			mutate:  func(cfg *Config) { cfg.Broker.URL = "" },
			wantErr: "broker.url",
		},
		{
			name:    "empty client id",
			mutate:  func(cfg *Config) { cfg.Broker.ClientID = "" },
			wantErr: "broker.client_id",
		},
		{
			name:    "empty dsn",
			mutate:  func(cfg *Config) { cfg.Database.DSN = "" },
			wantErr: "database.dsn",
		},
		{
			name:    "zero open conns",
			mutate:  func(cfg *Config) { cfg.Database.MaxOpenConns = 0 },
			wantErr: "max_open_conns",
		},
		{
			name:    "zero idle conns",
			mutate:  func(cfg *Config) { cfg.Database.MaxIdleConns = 0 },
			wantErr: "max_idle_conns",
		},
		{
			name:    "empty redis url",
			mutate:  func(cfg *Config) { cfg.Redis.URL = "" },
			wantErr: "redis.url",
		},
		{
			name:    "private key without public key",
			mutate:  func(cfg *Config) { cfg.Push.VAPIDPublicKey = "" },
			wantErr: "must be set together",
		},
		{
			name: "keys without subject",
			mutate: func(cfg *Config) {
				cfg.Push.Subject = ""
			},
			wantErr: "push.subject",
		},
		{
			name:    "bad timezone",
			mutate:  func(cfg *Config) { cfg.Timezone = "Not/AZone" },
			wantErr: "timezone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	t.Setenv("QINGEST_SERVER__MODE", "banana")

	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "server.mode")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestLocation_Invalid(t *testing.T) {
	cfg := &Config{Timezone: "Not/AZone"}
	_, err := cfg.Location()
	require.Error(t, err)
}
