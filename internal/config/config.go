// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/Shivanand-hulikatti/campus-events/internal/database"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Config is the full service configuration.
type Config struct {
	Port        string          `env:"PORT" envDefault:"8080"`
	StoreDriver string          `env:"STORE_DRIVER" envDefault:"postgres"`
	Postgres    database.Config `envPrefix:"DB_"`

	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://127.0.0.1:27017"`
	MongoDatabase string `env:"MONGO_DB" envDefault:"campus_events"`

	// RedisAddr is optional; when set the sweep worker takes a Redis lease
	// before each tick so only one replica sweeps at a time.
	RedisAddr string `env:"REDIS_ADDR"`

	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`

	// Timezone is the civil calendar event dates and times are read in.
	Timezone string `env:"EVENTS_TIMEZONE" envDefault:"UTC"`

	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`

	JoinRateRPS   float64 `env:"JOIN_RATE_RPS" envDefault:"5"`
	JoinRateBurst int     `env:"JOIN_RATE_BURST" envDefault:"10"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the service configuration.
func Load() (*Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values env parsing cannot.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverMongo, DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("SWEEP_INTERVAL must not be negative")
	}
	if c.JoinRateRPS <= 0 || c.JoinRateBurst <= 0 {
		return fmt.Errorf("JOIN_RATE_RPS and JOIN_RATE_BURST must be positive")
	}
	return nil
}

// Location resolves the configured reference timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load EVENTS_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
