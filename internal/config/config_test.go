package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, DriverSQLite, cfg.Store.Driver)
	require.Equal(t, 10, cfg.Pagination.DefaultLimit)
	require.Equal(t, 100, cfg.Pagination.MaxLimit)
	require.True(t, cfg.SoftDelete.Enabled)
	require.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	require.True(t, cfg.Auth.SlidingSessions)
	require.Equal(t, 30*time.Minute, cfg.Media.S3.PresignExpiration)
	require.False(t, cfg.Redis.Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: postgres
  url: postgres://blog@db/blog
pagination:
  default_limit: 20
  max_limit: 50
soft_delete:
  enabled: false
`), 0o600))

	t.Setenv("BLOG_SERVER_PORT", "9090")
	t.Setenv("BLOG_PAGINATION_MAX_LIMIT", "40")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, DriverPostgres, cfg.Store.Driver)
	require.Equal(t, "postgres://blog@db/blog", cfg.Store.URL)
	require.Equal(t, 20, cfg.Pagination.DefaultLimit)
	require.Equal(t, 40, cfg.Pagination.MaxLimit)
	require.False(t, cfg.SoftDelete.Enabled)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:     ServerConfig{Port: 8080},
			Store:      StoreConfig{Driver: DriverMemory},
			Pagination: PaginationConfig{DefaultLimit: 10, MaxLimit: 100},
			Auth:       AuthConfig{SessionTTL: time.Hour, BcryptCost: 10},
			Logging:    LoggingConfig{Level: "info", Format: "json"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "mongo" }, wantErr: "store.driver"},
		{name: "sqlite without path", mutate: func(c *Config) { c.Store.Driver = DriverSQLite }, wantErr: "store.path"},
		{name: "postgres without url", mutate: func(c *Config) { c.Store.Driver = DriverPostgres }, wantErr: "store.url"},
		{name: "default above max", mutate: func(c *Config) { c.Pagination.DefaultLimit = 200 }, wantErr: "pagination.default_limit"},
		{name: "zero max", mutate: func(c *Config) { c.Pagination.MaxLimit = 0 }, wantErr: "pagination.max_limit"},
		{name: "bcrypt cost", mutate: func(c *Config) { c.Auth.BcryptCost = 99 }, wantErr: "auth.bcrypt_cost"},
		{name: "media without bucket", mutate: func(c *Config) { c.Media.Enabled = true }, wantErr: "media.s3.bucket"},
		{name: "log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "logging.level"},
		{name: "log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
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
