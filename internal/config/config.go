package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Storage struct {
		Driver string `yaml:"driver"`
	} `yaml:"storage"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`
	Quiz struct {
		TTL            string `yaml:"ttl"`
		QuestionBudget int    `yaml:"question_budget"`
		TickInterval   string `yaml:"tick_interval"`
		PersistTimeout string `yaml:"persist_timeout"`
		SessionIdle    string `yaml:"session_idle"`
		AbandonAfter   string `yaml:"abandon_after"`
	} `yaml:"quiz"`
	Auth struct {
		JWTSecret         string `yaml:"jwt_secret"`
		TokenTTL          string `yaml:"token_ttl"`
		AdminPasswordHash string `yaml:"admin_password_hash"`
	} `yaml:"auth"`
}

// Load reads YAML config from path, then applies environment overrides.
// A missing file is not an error: defaults plus environment are enough to run.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.Getenv)
	return cfg, cfg.validate()
}

func (c *Config) applyEnv(getenv func(string) string) {
	override := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.Storage.Driver, "STORAGE_DRIVER")
	override(&c.Postgres.URL, "POSTGRES_URL")
	override(&c.Mongo.URI, "MONGO_URI")
	override(&c.Redis.Addr, "REDIS_ADDR")
	override(&c.Redis.Password, "REDIS_PASSWORD")
	override(&c.RabbitMQ.URL, "RABBITMQ_URL")
	override(&c.Auth.JWTSecret, "JWT_SECRET")
	override(&c.Auth.AdminPasswordHash, "ADMIN_PASSWORD_HASH")

	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverMemory
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "quizgenius"
	}
}

func (c Config) validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return errors.New("storage driver postgres requires postgres.url")
		}
	case DriverMongo:
		if c.Mongo.URI == "" {
			return errors.New("storage driver mongo requires mongo.uri")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret (or JWT_SECRET) is required")
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
