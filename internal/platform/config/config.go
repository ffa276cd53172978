// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles client-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (Session Store, Transport) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Session Backends

const (
	// BackendFile persists the session as plain files under SessionDir.
	BackendFile = "file"

	// BackendRedis persists the session in Redis (shared by several processes on one host).
	BackendRedis = "redis"

	// BackendMemory keeps the session for the lifetime of the process only.
	BackendMemory = "memory"
)

// # Configuration Schema

// Config holds all runtime configuration for the Taskdeck client.
type Config struct {

	// Remote task service
	APIURL string `env:"TASKDECK_API_URL" envDefault:"http://localhost:8000/api/"`

	Environment string `env:"TASKDECK_ENVIRONMENT" envDefault:"development"`
	Debug       bool   `env:"TASKDECK_DEBUG"       envDefault:"false"`

	// Session persistence
	SessionBackend string `env:"TASKDECK_SESSION_BACKEND" envDefault:"file"`
	SessionDir     string `env:"TASKDECK_SESSION_DIR"`
	RedisURL       string `env:"TASKDECK_REDIS_URL"`

	// Outbound requests. A zero timeout disables the deadline.
	RequestTimeout time.Duration `env:"TASKDECK_REQUEST_TIMEOUT"  envDefault:"30s"`
	RateLimitRPS   float64       `env:"TASKDECK_RATE_LIMIT_RPS"   envDefault:"0"`
	RateLimitBurst int           `env:"TASKDECK_RATE_LIMIT_BURST" envDefault:"5"`

	// Entity cache. Zero keeps entries FRESH until invalidated.
	CacheFreshFor time.Duration `env:"TASKDECK_CACHE_FRESH_FOR" envDefault:"0"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct and validates it.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if cfg.SessionDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("config: failed to resolve home directory: %w", err)
		}
		cfg.SessionDir = filepath.Join(home, ".taskdeck")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	parsed, err := url.Parse(c.APIURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("config: TASKDECK_API_URL %q is not an absolute URL", c.APIURL)
	}

	switch c.SessionBackend {
	case BackendFile, BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("config: TASKDECK_REDIS_URL is required for the redis session backend")
		}
	default:
		return fmt.Errorf("config: unknown session backend %q", c.SessionBackend)
	}

	if c.RequestTimeout < 0 {
		return fmt.Errorf("config: TASKDECK_REQUEST_TIMEOUT must not be negative")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("config: TASKDECK_RATE_LIMIT_RPS must not be negative")
	}
	if c.CacheFreshFor < 0 {
		return fmt.Errorf("config: TASKDECK_CACHE_FRESH_FOR must not be negative")
	}

	return nil
}

// BaseURL returns the API URL with exactly one trailing slash, ready for path concatenation.
func (c *Config) BaseURL() string {
	return strings.TrimRight(c.APIURL, "/") + "/"
}

// IsDevelopment reports whether the client is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the client is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
