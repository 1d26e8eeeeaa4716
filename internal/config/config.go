// Package config loads worker configuration from a YAML file with
// environment-variable overrides, and hot-reloads the agent roster.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	AdminPort   int    `mapstructure:"admin_port"`
	MetricsPath string `mapstructure:"metrics_path"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// EnginesConfig points at the external analysis and professional-services
// HTTP endpoints.
type EnginesConfig struct {
	AnalysisBaseURL     string  `mapstructure:"analysis_base_url"`
	ProfessionalBaseURL string  `mapstructure:"professional_base_url"`
	RequestsPerSecond   float64 `mapstructure:"requests_per_second"`
	HTTPTimeoutSeconds  int     `mapstructure:"http_timeout_seconds"`
}

type StreamingConfig struct {
	RingCapacity int `mapstructure:"ring_capacity"`
	RedisMaxLen  int `mapstructure:"redis_max_len"`
	RedisTTLHrs  int `mapstructure:"redis_ttl_hours"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Engines   EnginesConfig   `mapstructure:"engines"`
	Streaming StreamingConfig `mapstructure:"streaming"`
	Tracing   TracingConfig   `mapstructure:"tracing"`

	// RosterPath points at an optional roster override file; empty means
	// the built-in roster.
	RosterPath string `mapstructure:"roster_path"`
}

// Load reads the config file named by CONFIG_PATH (default
// config/assessor.yaml). A missing file yields pure defaults; a malformed
// one is an error.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/assessor.yaml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "assessor-worker")
	v.SetDefault("service.admin_port", 8081)
	v.SetDefault("service.metrics_path", "/metrics")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "assessments")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "assessor")
	v.SetDefault("postgres.database", "assessor")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("engines.analysis_base_url", "http://localhost:8000")
	v.SetDefault("engines.professional_base_url", "http://localhost:8000")
	v.SetDefault("engines.requests_per_second", 10.0)
	v.SetDefault("engines.http_timeout_seconds", 330)
	v.SetDefault("streaming.ring_capacity", 256)
	v.SetDefault("streaming.redis_max_len", 1024)
	v.SetDefault("streaming.redis_ttl_hours", 24)
}

// applyEnvOverrides lets deployment environments override the connection
// points without editing the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TEMPORAL_HOST_PORT"); v != "" {
		cfg.Temporal.HostPort = v
	}
	if v := os.Getenv("TEMPORAL_NAMESPACE"); v != "" {
		cfg.Temporal.Namespace = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ANALYSIS_BASE_URL"); v != "" {
		cfg.Engines.AnalysisBaseURL = v
	}
	if v := os.Getenv("PROFESSIONAL_BASE_URL"); v != "" {
		cfg.Engines.ProfessionalBaseURL = v
	}
	if v := os.Getenv("ROSTER_PATH"); v != "" {
		cfg.RosterPath = v
	}
	if v := os.Getenv("ADMIN_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Service.AdminPort = p
		}
	}
}

// DSN renders the Postgres connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// HTTPTimeout returns the engine client timeout as a duration.
func (e EnginesConfig) HTTPTimeout() time.Duration {
	if e.HTTPTimeoutSeconds <= 0 {
		return 330 * time.Second
	}
	return time.Duration(e.HTTPTimeoutSeconds) * time.Second
}

// RedisTTL returns the stream retention as a duration.
func (s StreamingConfig) RedisTTL() time.Duration {
	if s.RedisTTLHrs <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.RedisTTLHrs) * time.Hour
}
