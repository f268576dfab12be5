// Package config provides YAML-based configuration loading for the breeding
// service.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // scheduler.timezone must resolve in minimal images

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/swinetrack/breeding-engine/breeding"
)

// Environment variables that override the file.
const (
	EnvDBDriver = "BREEDING_DB_DRIVER"
	EnvDBDSN    = "BREEDING_DB_DSN"
	EnvHTTPAddr = "BREEDING_HTTP_ADDR"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Lock drivers.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Config is the top-level service configuration, loaded from config.yaml.
type Config struct {
	Periods   breeding.Periods `yaml:"periods"`
	Store     StoreConfig      `yaml:"store"`
	Lock      LockConfig       `yaml:"lock"`
	Scheduler SchedulerConfig  `yaml:"scheduler"`
	Log       LogConfig        `yaml:"log"`
	HTTP      HTTPConfig       `yaml:"http"`
}

// StoreConfig selects and sizes the database.
type StoreConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// LockConfig selects how writes to one sow are serialised. Use redis when
// more than one replica serves the same database.
type LockConfig struct {
	Driver string        `yaml:"driver"`
	Redis  RedisConfig   `yaml:"redis"`
	TTL    time.Duration `yaml:"ttl"`
	Wait   time.Duration `yaml:"wait"`
}

// RedisConfig holds connection settings for the Redis lock.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// SchedulerConfig holds the cron specs of the reconciliation jobs. A spec of
// "-" leaves the job manual only.
type SchedulerConfig struct {
	Enabled       *bool  `yaml:"enabled"`
	Timezone      string `yaml:"timezone"`
	HeatExpiry    string `yaml:"heat_expiry"`
	Weaning       string `yaml:"weaning"`
	Notifications string `yaml:"notifications"`
}

// IsEnabled reports whether cron should run. Defaults to true.
func (s SchedulerConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Location resolves Timezone.
func (s SchedulerConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file from path and returns a validated Config.
// An empty path yields the defaults. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	c.Periods = c.Periods.WithDefaults()

	if c.Store.Driver == "" {
		c.Store.Driver = DriverSQLite
	}
	if c.Store.DSN == "" && c.Store.Driver == DriverSQLite {
		c.Store.DSN = "breeding.db"
	}
	if c.Store.MaxOpenConns == 0 {
		c.Store.MaxOpenConns = 10
	}
	if c.Store.MaxIdleConns == 0 {
		c.Store.MaxIdleConns = 5
	}

	if c.Lock.Driver == "" {
		c.Lock.Driver = LockLocal
	}
	if c.Lock.Redis.Addr == "" {
		c.Lock.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Lock.TTL == 0 {
		c.Lock.TTL = 30 * time.Second
	}
	if c.Lock.Wait == 0 {
		c.Lock.Wait = 10 * time.Second
	}

	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = "UTC"
	}
	if c.Scheduler.HeatExpiry == "" {
		c.Scheduler.HeatExpiry = "0 2 * * *"
	}
	if c.Scheduler.Weaning == "" {
		c.Scheduler.Weaning = "0 3 * * *"
	}
	if c.Scheduler.Notifications == "" {
		c.Scheduler.Notifications = "0 */6 * * *"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 30 * time.Second
	}
}

// applyEnv lets deployments override the database and listen address
// without editing the file.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDBDriver); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv(EnvDBDSN); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		c.HTTP.Addr = v
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if err := c.Periods.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	switch c.Store.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, "store.dsn is required for postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of sqlite, postgres, memory", c.Store.Driver))
	}

	switch c.Lock.Driver {
	case LockLocal, LockRedis:
	default:
		errs = append(errs, fmt.Sprintf("lock.driver %q is not one of local, redis", c.Lock.Driver))
	}

	if _, err := c.Scheduler.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("scheduler.timezone: %v", err))
	}
	for name, spec := range map[string]string{
		"heat_expiry":   c.Scheduler.HeatExpiry,
		"weaning":       c.Scheduler.Weaning,
		"notifications": c.Scheduler.Notifications,
	} {
		if spec == "-" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Sprintf("scheduler.%s: %v", name, err))
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q is not one of json, console", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Spec returns the cron spec for a job, or "" when the job is manual only.
// A spec of "-" in the file disables the schedule for that job.
func (s SchedulerConfig) Spec(job string) string {
	var spec string
	switch job {
	case "heat-expiry":
		spec = s.HeatExpiry
	case "weaning":
		spec = s.Weaning
	case "notifications":
		spec = s.Notifications
	}
	if spec == "-" {
		return ""
	}
	return spec
}
