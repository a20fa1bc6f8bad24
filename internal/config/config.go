// Package config loads service settings from an optional YAML file and
// environment variables. Environment variables win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting the service reads at startup.
type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`

	// RequestTimeout bounds every issue and check-in call.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	Database Database `yaml:"database"`
	Redis    Redis    `yaml:"redis"`
	Token    Token    `yaml:"token"`

	// AuthzCacheTTL is how long grant lookups may be served from Redis.
	// Zero disables the cache.
	AuthzCacheTTL time.Duration `yaml:"authz_cache_ttl"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	EnableMetrics      bool     `yaml:"enable_metrics"`
}

// Database holds PostgreSQL connection settings.
type Database struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
}

// DSN builds a libpq-compatible connection string.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// Redis holds the connection settings for the authorization cache.
type Redis struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Token holds the ticket signing configuration.
type Token struct {
	SigningKey   string `yaml:"signing_key"`
	SigningKeyID uint8  `yaml:"signing_key_id"`
	// RetiredKeys is a comma separated "id:secret" list accepted for
	// verification only.
	RetiredKeys string        `yaml:"retired_keys"`
	MaxAge      time.Duration `yaml:"max_age"`
}

// Default returns the local-development configuration.
func Default() *Config {
	return &Config{
		Port:           "8080",
		Environment:    "development",
		LogLevel:       "info",
		RequestTimeout: 5 * time.Second,
		Database: Database{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			Name:     "ticketcheckin",
			SSLMode:  "disable",
			MaxConns: 20,
		},
		Token:              Token{SigningKeyID: 1},
		CORSAllowedOrigins: []string{"*"},
		EnableMetrics:      true,
	}
}

// Load reads path (if non-empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.RequestTimeout = getEnvAsDuration("REQUEST_TIMEOUT", c.RequestTimeout)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.MaxConns = int32(getEnvAsInt("DB_MAX_CONNS", int(c.Database.MaxConns)))

	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	c.AuthzCacheTTL = getEnvAsDuration("AUTHZ_CACHE_TTL", c.AuthzCacheTTL)

	c.Token.SigningKey = getEnv("TICKET_SIGNING_KEY", c.Token.SigningKey)
	c.Token.SigningKeyID = uint8(getEnvAsInt("TICKET_SIGNING_KEY_ID", int(c.Token.SigningKeyID)))
	c.Token.RetiredKeys = getEnv("TICKET_RETIRED_KEYS", c.Token.RetiredKeys)
	c.Token.MaxAge = getEnvAsDuration("TICKET_MAX_AGE", c.Token.MaxAge)

	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.CORSAllowedOrigins = strings.Split(v, ",")
	}
	c.EnableMetrics = getEnvAsBool("ENABLE_METRICS", c.EnableMetrics)
}

// Validate rejects configurations the service must not start with.
func (c *Config) Validate() error {
	if len(c.Token.SigningKey) < 32 {
		return fmt.Errorf("TICKET_SIGNING_KEY must be at least 32 bytes")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.AuthzCacheTTL < 0 {
		return fmt.Errorf("AUTHZ_CACHE_TTL must not be negative")
	}
	if c.AuthzCacheTTL > 0 && c.Redis.URL == "" {
		return fmt.Errorf("AUTHZ_CACHE_TTL requires REDIS_URL")
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}
