// Package config provides configuration management for the Inkwell blog server.
// Configuration can be loaded from YAML files and environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config represents the complete application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	SoftDelete SoftDeleteConfig `mapstructure:"soft_delete"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Media      MediaConfig      `mapstructure:"media"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
}

// Addr returns the listen address in host:port format.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig holds document store settings.
type StoreConfig struct {
	// Driver selects the store: "memory", "sqlite" or "postgres".
	Driver string `mapstructure:"driver"`

	// URL is the PostgreSQL connection URL (postgres driver).
	URL string `mapstructure:"url"`

	// Path is the SQLite database file (sqlite driver). ":memory:" keeps it in memory.
	Path string `mapstructure:"path"`

	// EnsureCollections creates collections and indexes at startup.
	EnsureCollections bool `mapstructure:"ensure_collections"`

	Options StoreOptions `mapstructure:"options"`
}

// StoreOptions holds driver tuning knobs.
type StoreOptions struct {
	// PostgreSQL pool settings
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`

	// SQLite pragmas
	JournalMode     string `mapstructure:"journal_mode"`     // WAL, DELETE, MEMORY, etc.
	BusyTimeout     int    `mapstructure:"busy_timeout"`     // Milliseconds to wait for locks
	CacheSize       int    `mapstructure:"cache_size"`       // Page cache size (negative = KB)
	SynchronousMode string `mapstructure:"synchronous_mode"` // NORMAL, FULL, OFF
}

// PaginationConfig bounds paginated reads.
type PaginationConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

// SoftDeleteConfig toggles soft delete. When disabled, deletes remove rows.
type SoftDeleteConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// RedisConfig holds Redis connection settings.
// When enabled, sessions and like locks live in Redis instead of process memory.
type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Enabled     bool          `mapstructure:"enabled"`
}

// Addr returns the Redis address in host:port format.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// SessionTTL is how long a bearer token stays valid after login.
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	// SlidingSessions restarts SessionTTL on every authenticated request.
	SlidingSessions bool `mapstructure:"sliding_sessions"`

	// BcryptCost is the work factor for password hashes.
	BcryptCost int `mapstructure:"bcrypt_cost"`

	// MinPasswordLength is enforced on registration and password change.
	MinPasswordLength int `mapstructure:"min_password_length"`

	// LockTTL bounds how long a like toggle may hold its lock.
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled determines if metrics collection is active.
	Enabled bool `mapstructure:"enabled"`

	// Path is the URL path for the metrics endpoint on the API server.
	Path string `mapstructure:"path"`
}

// MediaConfig holds settings for presigned image uploads.
type MediaConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	S3      S3MediaConfig `mapstructure:"s3"`
}

// S3MediaConfig holds the S3 bucket that stores uploaded images.
type S3MediaConfig struct {
	Endpoint          string        `mapstructure:"endpoint"`
	Region            string        `mapstructure:"region"`
	Bucket            string        `mapstructure:"bucket"`
	AccessKeyID       string        `mapstructure:"access_key_id"`
	SecretAccessKey   string        `mapstructure:"secret_access_key"`
	UsePathStyle      bool          `mapstructure:"use_path_style"`
	KeyPrefix         string        `mapstructure:"key_prefix"`
	PresignExpiration time.Duration `mapstructure:"presign_expiration"`
	PublicBaseURL     string        `mapstructure:"public_base_url"`
}

// Load reads configuration from the specified file and environment variables.
// Environment variables take precedence over file values.
// Environment variables are prefixed with BLOG_ and use _ as separator.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Environment variable configuration
	v.SetEnvPrefix("BLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file configuration
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/inkwell")
	}

	// Read config file (optional - environment variables can be used instead)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.max_body_size", 1024*1024) // 1MB

	// Store defaults
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.url", "postgres://inkwell@localhost:5432/inkwell?sslmode=prefer")
	v.SetDefault("store.path", "./data/inkwell.db")
	v.SetDefault("store.ensure_collections", true)
	v.SetDefault("store.options.max_conns", 25)
	v.SetDefault("store.options.min_conns", 5)
	v.SetDefault("store.options.conn_max_lifetime", time.Hour)
	v.SetDefault("store.options.conn_max_idle_time", 30*time.Minute)
	v.SetDefault("store.options.connect_timeout", 10*time.Second)
	v.SetDefault("store.options.journal_mode", "WAL")
	v.SetDefault("store.options.busy_timeout", 5000)
	v.SetDefault("store.options.cache_size", -2000)
	v.SetDefault("store.options.synchronous_mode", "NORMAL")

	// Repository defaults
	v.SetDefault("pagination.default_limit", 10)
	v.SetDefault("pagination.max_limit", 100)
	v.SetDefault("soft_delete.enabled", true)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.enabled", false)

	// Auth defaults
	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.sliding_sessions", true)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.min_password_length", 8)
	v.SetDefault("auth.lock_ttl", 5*time.Second)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Media defaults
	v.SetDefault("media.enabled", false)
	v.SetDefault("media.s3.region", "us-east-1")
	v.SetDefault("media.s3.key_prefix", "uploads/")
	v.SetDefault("media.s3.presign_expiration", 30*time.Minute)
}

// Validate checks the configuration for required values and valid ranges.
func (c *Config) Validate() error {
	// Validate server configuration
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	// Validate store configuration
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for sqlite driver")
		}
	case DriverPostgres:
		if c.Store.URL == "" {
			return fmt.Errorf("store.url is required for postgres driver")
		}
	default:
		return fmt.Errorf("store.driver must be 'memory', 'sqlite' or 'postgres'")
	}

	// Validate pagination
	if c.Pagination.MaxLimit < 1 {
		return fmt.Errorf("pagination.max_limit must be at least 1")
	}
	if c.Pagination.DefaultLimit < 1 || c.Pagination.DefaultLimit > c.Pagination.MaxLimit {
		return fmt.Errorf("pagination.default_limit must be between 1 and pagination.max_limit")
	}

	// Validate auth configuration
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31")
	}

	// Validate media configuration
	if c.Media.Enabled && c.Media.S3.Bucket == "" {
		return fmt.Errorf("media.s3.bucket is required when media is enabled")
	}

	// Validate logging configuration
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, fatal, panic")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}

// MustLoad loads configuration or panics on error.
// Useful for main function initialization.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
