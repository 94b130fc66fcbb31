// Package config assembles service settings from .env, an optional YAML
// tuning file and environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"taxigrid/internal/dispatch"
)

const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type StoreConfig struct {
	Backend     string `yaml:"backend"`
	StatePath   string `yaml:"state_path"`
	SQLitePath  string `yaml:"sqlite_path"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
	RedisKey    string `yaml:"redis_key"`
}

type Config struct {
	HTTPAddr       string          `yaml:"http_addr"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	IdempotencyTTL time.Duration   `yaml:"idempotency_ttl"`
	Store          StoreConfig     `yaml:"store"`
	Dispatch       dispatch.Config `yaml:"dispatch"`
}

func Default() Config {
	return Config{
		HTTPAddr:       ":8000",
		AllowedOrigins: []string{"*"},
		IdempotencyTTL: 30 * time.Minute,
		Store: StoreConfig{
			Backend:    BackendFile,
			StatePath:  "taxi_state.txt",
			SQLitePath: "data/taxigrid.db",
			RedisKey:   "taxigrid:positions",
		},
		Dispatch: dispatch.DefaultConfig(),
	}
}

// Load reads .env (if present), then the YAML file named by TAXIGRID_CONFIG
// (default taxigrid.yaml, skipped when missing), then the environment.
func Load() (Config, error) {
	_ = godotenv.Load(".env")
	path := os.Getenv("TAXIGRID_CONFIG")
	if path == "" {
		path = "taxigrid.yaml"
	}
	return LoadFrom(path, os.LookupEnv)
}

// LoadFrom is Load without touching .env or the process environment.
func LoadFrom(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("%s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("HTTP_ADDR", &c.HTTPAddr)
	str("STORE_BACKEND", &c.Store.Backend)
	str("STATE_PATH", &c.Store.StatePath)
	str("SQLITE_PATH", &c.Store.SQLitePath)
	str("DATABASE_URL", &c.Store.DatabaseURL)
	str("REDIS_URL", &c.Store.RedisURL)

	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		c.AllowedOrigins = strings.Split(v, ",")
	}
	if v, ok := lookup("IDEMPOTENCY_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("IDEMPOTENCY_TTL: %w", err)
		}
		c.IdempotencyTTL = d
	}
	if v, ok := lookup("DISPATCH_K"); ok && v != "" {
		k, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DISPATCH_K: %w", err)
		}
		c.Dispatch.K = k
	}
	if v, ok := lookup("MINUTES_PER_HOP"); ok && v != "" {
		m, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MINUTES_PER_HOP: %w", err)
		}
		c.Dispatch.MinutesPerHop = m
	}
	if v, ok := lookup("MESH_SEED"); ok && v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MESH_SEED: %w", err)
		}
		c.Dispatch.MeshSeed = seed
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendFile, BackendSQLite, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.HTTPAddr == "" {
		return errors.New("http_addr must not be empty")
	}
	return c.Dispatch.Validate()
}
