package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPPort           string        `mapstructure:"HTTP_PORT"`
	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ShutdownTimeout    time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	MaxRequestBodySize int64         `mapstructure:"MAX_REQUEST_BODY_SIZE"`

	BackendURL            string        `mapstructure:"BACKEND_URL"`
	BackendTimeout        time.Duration `mapstructure:"BACKEND_TIMEOUT"`
	BackendBreakerFailure uint32        `mapstructure:"BACKEND_BREAKER_FAILURES"`
	BackendBreakerOpen    time.Duration `mapstructure:"BACKEND_BREAKER_OPEN_TIMEOUT"`

	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL"`

	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         int    `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	MigrationsPath string `mapstructure:"MIGRATIONS_PATH"`

	KafkaBrokers string        `mapstructure:"KAFKA_BROKERS"`
	OutboxTick   time.Duration `mapstructure:"OUTBOX_TICK"`

	RefetchDelay           time.Duration `mapstructure:"REFETCH_DELAY"`
	RefetchTimeout         time.Duration `mapstructure:"REFETCH_TIMEOUT"`
	SessionIdleTTL         time.Duration `mapstructure:"SESSION_IDLE_TTL"`
	SessionCleanupInterval time.Duration `mapstructure:"SESSION_CLEANUP_INTERVAL"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`
}

var defaults = map[string]any{
	"HTTP_PORT":             "8080",
	"REQUEST_TIMEOUT":       30 * time.Second,
	"SHUTDOWN_TIMEOUT":      10 * time.Second,
	"MAX_REQUEST_BODY_SIZE": int64(1 << 20), // 1MB

	"BACKEND_URL":                  "http://localhost:8081",
	"BACKEND_TIMEOUT":              5 * time.Second,
	"BACKEND_BREAKER_FAILURES":     uint32(5),
	"BACKEND_BREAKER_OPEN_TIMEOUT": 30 * time.Second,

	"REDIS_ADDR":     "localhost:6379",
	"REDIS_PASSWORD": "",
	"CACHE_TTL":      time.Minute,

	"DB_HOST":         "localhost",
	"DB_PORT":         5432,
	"DB_USER":         "postgres",
	"DB_PASSWORD":     "postgres",
	"DB_NAME":         "ecommerce",
	"MIGRATIONS_PATH": "./internal/repository/migrations",

	"KAFKA_BROKERS": "localhost:9092",
	"OUTBOX_TICK":   time.Second,

	"REFETCH_DELAY":            500 * time.Millisecond,
	"REFETCH_TIMEOUT":          5 * time.Second,
	"SESSION_IDLE_TTL":         30 * time.Minute,
	"SESSION_CLEANUP_INTERVAL": time.Minute,

	"LOG_LEVEL":  "info",
	"LOG_PRETTY": false,
}

// Load reads defaults, then the optional env-format file at path, then the
// process environment. Later sources win.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL must be set")
	}
	if c.RefetchDelay < 0 {
		return fmt.Errorf("REFETCH_DELAY must not be negative, got %s", c.RefetchDelay)
	}
	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be positive, got %s", c.SessionIdleTTL)
	}
	return nil
}

func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
