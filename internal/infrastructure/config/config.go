package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Log         LogConfig         `mapstructure:"log"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Address     AddressConfig     `mapstructure:"address"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Report      ReportConfig      `mapstructure:"report"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Profiler    ProfilerConfig    `mapstructure:"profiler"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Port    string `mapstructure:"port"`
	Version string `mapstructure:"version"`
}

// DatabaseConfig holds the PostgreSQL connection and pool settings
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
}

// RedisConfig holds Redis connection settings. With Enabled false the
// sync lock and report cache stay in process memory.
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or file path
}

type HTTPConfig struct {
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes   int           `mapstructure:"max_header_bytes"`
	MaxBodySize      int64         `mapstructure:"max_body_size"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
	TrustedProxies   []string      `mapstructure:"trusted_proxies"`
	Auth             AuthConfig    `mapstructure:"auth"`
	Swagger          SwaggerConfig `mapstructure:"swagger"`
}

// SwaggerConfig controls the API documentation endpoint
type SwaggerConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	RequireAuth bool     `mapstructure:"require_auth"` // operator token with read scope
	AllowedIPs  []string `mapstructure:"allowed_ips"`  // IPs or CIDRs, empty allows all
}

// AuthConfig holds operator token settings. An empty secret disables
// authentication.
type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// SchedulerConfig holds background order sync settings
type SchedulerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Workers          int           `mapstructure:"order_sync_concurrency"`
	QueueCapacity    int           `mapstructure:"queue_capacity"`
	JobTimeout       time.Duration `mapstructure:"job_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	LockTTL          time.Duration `mapstructure:"lock_ttl"`      // 0 means job_timeout plus a minute
	CronInterval     time.Duration `mapstructure:"cron_interval"` // 0 disables the periodic trigger
	DefaultRangeDays int           `mapstructure:"default_range_days"`
}

// MarketplaceConfig holds the Shopee partner credentials
type MarketplaceConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	PartnerID  int64         `mapstructure:"partner_id"`
	PartnerKey string        `mapstructure:"partner_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type AddressConfig struct {
	MaskMarkers []string `mapstructure:"mask_markers"`
}

// QueueConfig holds the optional lmstfy job queue settings
type QueueConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Namespace   string `mapstructure:"namespace"`
	Token       string `mapstructure:"token"`
	Queue       string `mapstructure:"queue"`
	TTR         uint32 `mapstructure:"ttr"`          // seconds a consumed job stays invisible before redelivery
	PollTimeout uint32 `mapstructure:"poll_timeout"` // seconds a consume call blocks
}

type ReportConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// TelemetryConfig holds OpenTelemetry export settings. ServiceName
// defaults to app.name.
type TelemetryConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	SamplingRatio     float64 `mapstructure:"sampling_ratio"`
	ServiceName       string  `mapstructure:"service_name"`
	Insecure          bool    `mapstructure:"insecure"`

	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"` // bound values in SQL logs and spans
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`

	MetricsEnabled        bool          `mapstructure:"metrics_enabled"`
	MetricsExportInterval time.Duration `mapstructure:"metrics_export_interval"`

	LogsEnabled bool   `mapstructure:"logs_enabled"`
	LogsLevel   string `mapstructure:"logs_level"`
}

// ProfilerConfig holds Pyroscope settings. ApplicationName defaults to
// app.name.
type ProfilerConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	ServerAddress     string `mapstructure:"server_address"`
	ApplicationName   string `mapstructure:"application_name"`
	BasicAuthUser     string `mapstructure:"basic_auth_user"`
	BasicAuthPassword string `mapstructure:"basic_auth_password"`
	ProfileMutex      bool   `mapstructure:"profile_mutex"`
	ProfileBlock      bool   `mapstructure:"profile_block"`
}

// EnvPrefix is the prefix of environment overrides, e.g.
// ORDERSYNC_DATABASE_PASSWORD for database.password
const EnvPrefix = "ORDERSYNC"

// defaults lists every key. Keys must be known to viper for environment
// overrides to reach Unmarshal, so keys without a useful default carry
// their zero value.
var defaults = map[string]any{
	"app.name":    "ordersync",
	"app.env":     "development",
	"app.port":    "8080",
	"app.version": "dev",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "ordersync",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.enabled":    false,
	"redis.host":       "localhost",
	"redis.port":       6379,
	"redis.password":   "",
	"redis.db":         0,
	"redis.key_prefix": "ordersync:",

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":       15 * time.Second,
	"http.write_timeout":      5 * time.Minute, // a synchronous sync of a large window takes a while
	"http.idle_timeout":       60 * time.Second,
	"http.max_header_bytes":   1 << 20,
	"http.max_body_size":      int64(1 << 20),
	"http.cors_allow_origins": []string{},
	"http.trusted_proxies":    []string{},
	"http.auth.secret":        "",
	"http.auth.issuer":        "ordersync",
	"http.auth.token_ttl":     30 * 24 * time.Hour,
	"http.swagger.enabled":      true,
	"http.swagger.require_auth": true,
	"http.swagger.allowed_ips":  []string{},

	"scheduler.enabled":                true,
	"scheduler.order_sync_concurrency": 2,
	"scheduler.queue_capacity":         100,
	"scheduler.job_timeout":            30 * time.Minute,
	"scheduler.max_retries":            3,
	"scheduler.retry_delay":            30 * time.Second,
	"scheduler.lock_ttl":               time.Duration(0),
	"scheduler.cron_interval":          15 * time.Minute,
	"scheduler.default_range_days":     7,

	"marketplace.base_url":    "https://partner.shopeemobile.com",
	"marketplace.partner_id":  int64(0),
	"marketplace.partner_key": "",
	"marketplace.timeout":     20 * time.Second,

	"address.mask_markers": []string{"*", "xxx", "masked"},

	"queue.enabled":      false,
	"queue.host":         "",
	"queue.port":         7777,
	"queue.namespace":    "",
	"queue.token":        "",
	"queue.queue":        "order-sync",
	"queue.ttr":          uint32(60),
	"queue.poll_timeout": uint32(10),

	"report.cache_ttl": 10 * time.Minute,

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "",
	"telemetry.insecure":                false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
	"telemetry.metrics_enabled":         false,
	"telemetry.metrics_export_interval": 60 * time.Second,
	"telemetry.logs_enabled":            false,
	"telemetry.logs_level":              "info",

	"profiler.enabled":             false,
	"profiler.server_address":      "",
	"profiler.application_name":    "",
	"profiler.basic_auth_user":     "",
	"profiler.basic_auth_password": "",
	"profiler.profile_mutex":       false,
	"profiler.profile_block":       false,
}

// Load reads config.toml from the working directory or /app, then applies
// ORDERSYNC_ environment overrides on top. A missing file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.derive()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// derive fills settings whose default depends on another setting
func (c *Config) derive() {
	if c.Scheduler.LockTTL == 0 {
		c.Scheduler.LockTTL = c.Scheduler.JobTimeout + time.Minute
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = c.App.Name
	}
	if c.Profiler.ApplicationName == "" {
		c.Profiler.ApplicationName = c.App.Name
	}
}

func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("scheduler.order_sync_concurrency must be at least 1")
	}
	if c.Scheduler.MaxRetries < 0 {
		return fmt.Errorf("scheduler.max_retries cannot be negative")
	}
	if c.Scheduler.CronInterval < 0 {
		return fmt.Errorf("scheduler.cron_interval cannot be negative")
	}

	if c.Marketplace.PartnerID < 0 {
		return fmt.Errorf("marketplace.partner_id cannot be negative")
	}

	if c.Queue.Enabled {
		if c.Queue.Host == "" || c.Queue.Namespace == "" || c.Queue.Token == "" {
			return fmt.Errorf("queue.host, queue.namespace and queue.token are required when queue.enabled is true")
		}
	}

	if c.Profiler.Enabled && c.Profiler.ServerAddress == "" {
		return fmt.Errorf("profiler.server_address is required when profiler.enabled is true")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.HTTP.Auth.Secret == "" {
			return fmt.Errorf("http.auth.secret is required in production")
		}
		if len(c.HTTP.Auth.Secret) < 32 {
			return fmt.Errorf("http.auth.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Marketplace.PartnerID == 0 || c.Marketplace.PartnerKey == "" {
			return fmt.Errorf("marketplace.partner_id and marketplace.partner_key are required in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.HTTP.Swagger.Enabled && !c.HTTP.Swagger.RequireAuth && len(c.HTTP.Swagger.AllowedIPs) == 0 {
			return fmt.Errorf("http.swagger must be disabled, require authentication, or have allowed_ips in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns host:port of the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
