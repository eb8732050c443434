package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Match    MatchConfig    `mapstructure:"match"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required,numeric"`
	CORSOrigin      string        `mapstructure:"cors_origin"`
	RateLimit       float64       `mapstructure:"rate_limit" validate:"gte=0"` // commands per second per seat
	RateBurst       int           `mapstructure:"rate_burst" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL     string `mapstructure:"url" validate:"required"`
	MaxOpen int    `mapstructure:"max_open" validate:"gte=0"`
	MaxIdle int    `mapstructure:"max_idle" validate:"gte=0"`
}

type RedisConfig struct {
	URL           string        `mapstructure:"url" validate:"required"`
	SnapshotTTL   time.Duration `mapstructure:"snapshot_ttl"`
	SnapshotEvery int           `mapstructure:"snapshot_every" validate:"gte=0"` // ticks between cached snapshots
}

type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret" validate:"required,min=8"`
	SeatTokenTTL time.Duration `mapstructure:"seat_token_ttl"`
}

type MatchConfig struct {
	TickRate        int           `mapstructure:"tick_rate" validate:"gte=0,lte=240"` // steps per second
	MaxDuration     time.Duration `mapstructure:"max_duration"`
	CatalogPath     string        `mapstructure:"catalog_path"`
	DefaultNeutrals int           `mapstructure:"default_neutrals" validate:"gte=0,lte=64"`
	MaxLive         int           `mapstructure:"max_live" validate:"gte=0"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// keys bound to MIN_-prefixed environment variables.
var envKeys = []string{
	"server.port", "server.cors_origin", "server.rate_limit", "server.rate_burst", "server.shutdown_timeout",
	"database.url", "database.max_open", "database.max_idle",
	"redis.url", "redis.snapshot_ttl", "redis.snapshot_every",
	"auth.jwt_secret", "auth.seat_token_ttl",
	"match.tick_rate", "match.max_duration", "match.catalog_path", "match.default_neutrals", "match.max_live",
	"metrics.enabled", "metrics.path",
}

// legacyEnv maps keys to the unprefixed variable names older deployments set.
var legacyEnv = map[string]string{
	"server.port":     "PORT",
	"database.url":    "DATABASE_URL",
	"redis.url":       "REDIS_URL",
	"auth.jwt_secret": "JWT_SECRET",
}

// Load reads configuration with priority:
// 1. Environment variables (MIN_ prefix, plus the legacy unprefixed names)
// 2. Config file (config.yaml)
// 3. Defaults
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix("MIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		envName := "MIN_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		names := []string{key, envName}
		if legacy, ok := legacyEnv[key]; ok {
			names = append(names, legacy)
		}
		if err := v.BindEnv(names...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	v.SetDefault("metrics.enabled", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	SetDefaults(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration and panics on error (for use in main.go).
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// TickInterval is the wall-clock time between simulation steps.
func (c MatchConfig) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return 50 * time.Millisecond
	}
	return time.Second / time.Duration(c.TickRate)
}
