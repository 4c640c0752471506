// Package config loads tunebank configuration from the environment.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/blef1o/tunebank/pkg/logger"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string
	Port int
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig selects the journal backend. An empty driver keeps the
// journal in memory.
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// EconomyConfig seeds the credit economy.
type EconomyConfig struct {
	// SystemAccount holds the unsold supply and receives listen payments.
	SystemAccount string
	// AuthorityAccount curates the catalog and may withdraw surplus.
	AuthorityAccount string
	// InitialSupply is the total credit supply, in whole credits.
	InitialSupply *big.Int
}

// APIConfig carries HTTP-surface knobs.
type APIConfig struct {
	JWTSecret         string
	RequestsPerSecond int
	Burst             int
	AuditWindow       int
	AuditFile         string
}

// Config is the root configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  logger.LoggingConfig
	Economy  EconomyConfig
	API      APIConfig
}

// Load reads configuration from environment variables, applying defaults
// where the variable is unset.
func Load() (*Config, error) {
	port, err := envInt("TUNEBANK_PORT", 8080)
	if err != nil {
		return nil, err
	}
	rps, err := envInt("TUNEBANK_RATE_LIMIT", 50)
	if err != nil {
		return nil, err
	}
	burst, err := envInt("TUNEBANK_RATE_BURST", 0)
	if err != nil {
		return nil, err
	}
	auditWindow, err := envInt("TUNEBANK_AUDIT_WINDOW", 200)
	if err != nil {
		return nil, err
	}

	supplyRaw := env("TUNEBANK_INITIAL_SUPPLY", "1000000")
	supply, ok := new(big.Int).SetString(supplyRaw, 10)
	if !ok || supply.Sign() <= 0 {
		return nil, fmt.Errorf("TUNEBANK_INITIAL_SUPPLY must be a positive integer, got %q", supplyRaw)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: env("TUNEBANK_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(env("DATABASE_DRIVER", "")),
			DSN:    os.Getenv("DATABASE_URL"),
		},
		Logging: logger.LoggingConfig{
			Level:  env("LOG_LEVEL", "info"),
			Format: env("LOG_FORMAT", "text"),
			Output: env("LOG_OUTPUT", "stdout"),
		},
		Economy: EconomyConfig{
			SystemAccount:    env("TUNEBANK_SYSTEM_ACCOUNT", "system"),
			AuthorityAccount: env("TUNEBANK_AUTHORITY", "admin"),
			InitialSupply:    supply,
		},
		API: APIConfig{
			JWTSecret:         os.Getenv("TUNEBANK_JWT_SECRET"),
			RequestsPerSecond: rps,
			Burst:             burst,
			AuditWindow:       auditWindow,
			AuditFile:         os.Getenv("TUNEBANK_AUDIT_FILE"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.API.JWTSecret == "" {
		return fmt.Errorf("TUNEBANK_JWT_SECRET is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("TUNEBANK_PORT out of range: %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case "", "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("DATABASE_URL is required when DATABASE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	if c.Economy.SystemAccount == c.Economy.AuthorityAccount {
		return fmt.Errorf("system and authority accounts must differ")
	}
	return nil
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return v, nil
}
