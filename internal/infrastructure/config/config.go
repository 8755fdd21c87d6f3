package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. INV_DATABASE_PASSWORD
const EnvPrefix = "INV"

// Config holds all application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Payment     PaymentConfig     `mapstructure:"payment"`
	Overdue     OverdueConfig     `mapstructure:"overdue"`
	Log         LogConfig         `mapstructure:"log"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// IsProduction reports whether the stricter production checks apply
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns the connection URL with user and password escaped
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the host:port address of the Redis server
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// IdempotencyConfig controls the replay cache in front of the idempotency ledger.
// The database ledger is always authoritative; the cache only short-circuits replays.
type IdempotencyConfig struct {
	CacheEnabled bool          `mapstructure:"cache_enabled"`
	CacheBackend string        `mapstructure:"cache_backend"` // redis, memory
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// PaymentConfig holds the retry policy for invoice, payment and refund mutations
type PaymentConfig struct {
	RetryAttempts        int           `mapstructure:"retry_attempts"`
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `mapstructure:"retry_max_interval"`
}

// OverdueConfig holds the overdue sweeper settings
type OverdueConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	BatchSize  int           `mapstructure:"batch_size"`
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes   int           `mapstructure:"max_header_bytes"`
	MaxBodySize      int64         `mapstructure:"max_body_size"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
	CORSAllowMethods []string      `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders []string      `mapstructure:"cors_allow_headers"`
	TrustedProxies   []string      `mapstructure:"trusted_proxies"`
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"` // OTLP gRPC, e.g. localhost:4317
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`     // 0.0-1.0
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"` // plaintext gRPC, development only
	MetricsEnabled    bool          `mapstructure:"metrics_enabled"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"` // full statements in spans, never in production
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

// defaults lists every key Load knows about. A key must be listed here for
// its INV_ environment override to be picked up by Unmarshal.
var defaults = map[string]any{
	"app.name": "invoicing-backend",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "invoicing",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  time.Hour,
	"database.conn_max_idle_time": 30 * time.Minute,

	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"idempotency.cache_enabled": false,
	"idempotency.cache_backend": "redis",
	"idempotency.cache_ttl":     24 * time.Hour,

	"payment.retry_attempts":         5,
	"payment.retry_initial_interval": 20 * time.Millisecond,
	"payment.retry_max_interval":     500 * time.Millisecond,

	"overdue.enabled":     false,
	"overdue.interval":    time.Hour,
	"overdue.batch_size":  500,
	"overdue.run_timeout": 5 * time.Minute,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":     15 * time.Second,
	"http.write_timeout":    15 * time.Second,
	"http.idle_timeout":     60 * time.Second,
	"http.max_header_bytes": 1 << 20,
	"http.max_body_size":    1 << 20,
	// no origins: cross-origin requests are refused until configured
	"http.cors_allow_origins": []string{},
	"http.cors_allow_methods": []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	"http.cors_allow_headers": []string{"Content-Type", "X-Request-ID", "X-Tenant-ID", "Idempotency-Key"},
	"http.trusted_proxies":    []string{},

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "invoicing-backend",
	"telemetry.insecure":                false,
	"telemetry.metrics_enabled":         false,
	"telemetry.metrics_interval":        60 * time.Second,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
}

// Load reads configuration with the following priority, highest first:
//  1. INV_ environment variables (INV_PAYMENT_RETRY_ATTEMPTS -> payment.retry_attempts)
//  2. config.toml in the working directory or /app
//  3. built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate reports every violated constraint at once
func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Database.MaxOpenConns > 0, "database.max_open_conns must be positive")
	check(c.Database.MaxIdleConns >= 0, "database.max_idle_conns cannot be negative")
	check(c.Database.MaxIdleConns <= c.Database.MaxOpenConns,
		"database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
		c.Database.MaxIdleConns, c.Database.MaxOpenConns)

	check(c.Idempotency.CacheBackend == "redis" || c.Idempotency.CacheBackend == "memory",
		"idempotency.cache_backend must be 'redis' or 'memory', got %q", c.Idempotency.CacheBackend)
	check(c.Payment.RetryAttempts >= 1, "payment.retry_attempts must be at least 1")
	check(c.Payment.RetryMaxInterval >= c.Payment.RetryInitialInterval,
		"payment.retry_max_interval cannot be shorter than payment.retry_initial_interval")
	check(c.Overdue.BatchSize >= 0, "overdue.batch_size cannot be negative")
	check(c.Telemetry.SamplingRatio >= 0 && c.Telemetry.SamplingRatio <= 1,
		"telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)

	if c.App.IsProduction() {
		check(c.Database.Password != "", "database.password is required in production")
		check(c.Database.SSLMode != "disable", "database.sslmode cannot be 'disable' in production")
		check(!slices.Contains(c.HTTP.CORSAllowOrigins, "*"),
			"http.cors_allow_origins cannot be '*' in production (use specific origins)")
		// statements carry invoice amounts and customer ids
		check(!c.Telemetry.DBLogFullSQL, "telemetry.db_log_full_sql must be false in production")
	}

	return errors.Join(errs...)
}
