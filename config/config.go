package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Log        LogConfig        `mapstructure:"log"`
	RateOracle RateOracleConfig `mapstructure:"rate_oracle"`
	Sweep      SweepConfig      `mapstructure:"sweep"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Internal   InternalConfig   `mapstructure:"internal"`
	Pagination PaginationConfig `mapstructure:"pagination"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, memory
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	RunMigrations   bool          `mapstructure:"run_migrations"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

type RateOracleConfig struct {
	Provider     string            `mapstructure:"provider"` // coincap, static
	BaseURL      string            `mapstructure:"base_url"`
	APIKey       string            `mapstructure:"api_key"`
	Timeout      time.Duration     `mapstructure:"timeout"`
	MaxRetries   int               `mapstructure:"max_retries"`
	RetryBackoff time.Duration     `mapstructure:"retry_backoff"`
	CacheTTL     time.Duration     `mapstructure:"cache_ttl"` // fresh horizon
	StaleTTL     time.Duration     `mapstructure:"stale_ttl"` // how long a stale value may serve read paths
	StaticPrices map[string]string `mapstructure:"static_prices"`
}

type SweepConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

type NotifyConfig struct {
	WebhookURL    string        `mapstructure:"webhook_url"`
	SigningSecret string        `mapstructure:"signing_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// InternalConfig holds the credentials external schedulers use to sign
// requests to /internal endpoints.
type InternalConfig struct {
	ClientKey    string `mapstructure:"client_key"`
	ClientSecret string `mapstructure:"client_secret"`
}

type PaginationConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: YLD_.
// Nested keys use underscore: YLD_DATABASE_HOST, YLD_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "yield_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.run_migrations", true)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "yield-ledger")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("rate_oracle.provider", "coincap")
	v.SetDefault("rate_oracle.base_url", "https://api.coincap.io/v2")
	v.SetDefault("rate_oracle.api_key", "")
	v.SetDefault("rate_oracle.timeout", "5s")
	v.SetDefault("rate_oracle.max_retries", 3)
	v.SetDefault("rate_oracle.retry_backoff", "500ms")
	v.SetDefault("rate_oracle.cache_ttl", "60s")
	v.SetDefault("rate_oracle.stale_ttl", "1h")
	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.interval", "1h")
	v.SetDefault("sweep.batch_size", 100)
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.signing_secret", "")
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("internal.client_key", "")
	v.SetDefault("internal.client_secret", "")
	v.SetDefault("pagination.default_limit", 10)
	v.SetDefault("pagination.max_limit", 100)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: YLD_DATABASE_HOST -> database.host
	v.SetEnvPrefix("YLD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects combinations the process cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.RateOracle.Provider {
	case "coincap", "static":
	default:
		return fmt.Errorf("unsupported rate oracle provider %q", c.RateOracle.Provider)
	}
	if c.RateOracle.StaleTTL < c.RateOracle.CacheTTL {
		return fmt.Errorf("rate_oracle.stale_ttl (%s) must not be shorter than cache_ttl (%s)",
			c.RateOracle.StaleTTL, c.RateOracle.CacheTTL)
	}
	if c.Sweep.Enabled && c.Sweep.Interval <= 0 {
		return fmt.Errorf("sweep.interval must be positive when the scheduler is enabled, got %s", c.Sweep.Interval)
	}
	if c.Pagination.DefaultLimit < 1 || c.Pagination.MaxLimit < c.Pagination.DefaultLimit {
		return fmt.Errorf("invalid pagination limits: default %d, max %d",
			c.Pagination.DefaultLimit, c.Pagination.MaxLimit)
	}
	return nil
}
