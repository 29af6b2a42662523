// Package config loads the process configuration from environment
// variables with documented defaults. The result is an explicit struct
// constructed once and passed by reference; nothing in this package is
// global or mutable after Load returns.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full configuration of one kanarid process.
type Config struct {
	// HTTP listener.
	Host string
	Port int

	// Orchestration.
	ProbeDeadline time.Duration
	ProbeWorkers  int

	// MariaDB/MySQL backend. An empty Host disables the probe.
	MySQL Backend

	// PostgreSQL backend. An empty Host disables the probe.
	Postgres Backend

	// S3-compatible object store. Empty credentials disable the probe.
	S3 ObjectStore

	LogLevel string
}

// Backend holds the coordinates of one relational datastore.
type Backend struct {
	Host     string
	Port     int
	Database string
	Table    string
	User     string
	Password string
}

// ObjectStore holds the coordinates of the object-storage service.
type ObjectStore struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads the environment and returns the resulting configuration.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 5000)

	v.SetDefault("PROBE_TIMEOUT", "3s")
	v.SetDefault("PROBE_WORKERS", 4)

	v.SetDefault("DB_PORT", 3306)
	v.SetDefault("DB_NAME", "kanari")
	v.SetDefault("DB_TABLE", "kanari")
	v.SetDefault("DB_USER", "alexander")
	v.SetDefault("DB_PASSWORD", "")

	v.SetDefault("PG_PORT", 5432)
	v.SetDefault("PG_DATABASE", "kanari")
	v.SetDefault("PG_TABLE", "kanari")
	v.SetDefault("PG_USER", "alexander")
	v.SetDefault("PG_PASSWORD", "")

	v.SetDefault("S3_ENDPOINT", "https://situla.bitbit.net")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_BUCKET", "redpill-linpro-kanari")

	v.SetDefault("LOG_LEVEL", "info")

	deadline, err := time.ParseDuration(v.GetString("PROBE_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("config: invalid PROBE_TIMEOUT: %w", err)
	}
	if deadline <= 0 {
		return nil, fmt.Errorf("config: PROBE_TIMEOUT must be positive, got %v", deadline)
	}

	workers := v.GetInt("PROBE_WORKERS")
	if workers < 1 {
		return nil, fmt.Errorf("config: PROBE_WORKERS must be at least 1, got %d", workers)
	}

	return &Config{
		Host:          v.GetString("HOST"),
		Port:          v.GetInt("PORT"),
		ProbeDeadline: deadline,
		ProbeWorkers:  workers,
		MySQL: Backend{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			Database: v.GetString("DB_NAME"),
			Table:    v.GetString("DB_TABLE"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
		},
		Postgres: Backend{
			Host:     v.GetString("PG_HOST"),
			Port:     v.GetInt("PG_PORT"),
			Database: v.GetString("PG_DATABASE"),
			Table:    v.GetString("PG_TABLE"),
			User:     v.GetString("PG_USER"),
			Password: v.GetString("PG_PASSWORD"),
		},
		S3: ObjectStore{
			Endpoint:  v.GetString("S3_ENDPOINT"),
			Region:    v.GetString("S3_REGION"),
			Bucket:    v.GetString("S3_BUCKET"),
			AccessKey: v.GetString("S3_ACCESS_KEY"),
			SecretKey: v.GetString("S3_SECRET_KEY"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}, nil
}
