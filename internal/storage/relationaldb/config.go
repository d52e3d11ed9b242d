package relationaldb

import (
	"errors"
	"fmt"
	"time"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds relational database configuration.
type Config struct {
	// Driver selects the database driver ("sqlite" or "postgres").
	Driver string `json:"driver" mapstructure:"driver"`

	// Path is the sqlite database file. ":memory:" keeps it in memory.
	Path string `json:"path" mapstructure:"path"`

	// Postgres connection settings.
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Database string `json:"database" mapstructure:"database"`
	User     string `json:"user" mapstructure:"user"`
	Password string `json:"password" mapstructure:"password"`
	SSLMode  string `json:"ssl_mode" mapstructure:"ssl_mode"`

	// Pool settings.
	MaxOpenConns    int           `json:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`

	// DefaultTimeout bounds single queries.
	DefaultTimeout time.Duration `json:"default_timeout" mapstructure:"default_timeout"`
}

// DefaultConfig returns a standalone sqlite configuration.
func DefaultConfig() *Config {
	return &Config{
		Driver:          DriverSQLite,
		Path:            "./data/tokenvault.db",
		SSLMode:         "disable",
		MaxOpenConns:    8,
		MaxIdleConns:    4,
		ConnMaxLifetime: 30 * time.Minute,
		DefaultTimeout:  10 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.Path == "" {
			return errors.New("sqlite driver requires a path")
		}
	case DriverPostgres:
		if c.Host == "" || c.Database == "" || c.User == "" {
			return errors.New("postgres driver requires host, database and user")
		}
	default:
		return fmt.Errorf("unsupported driver: %s", c.Driver)
	}
	if c.MaxOpenConns < 1 {
		return errors.New("max_open_conns must be at least 1")
	}
	return nil
}

// DSN builds the driver connection string.
func (c *Config) DSN() (string, error) {
	switch c.Driver {
	case DriverSQLite:
		return c.Path, nil
	case DriverPostgres:
		port := c.Port
		if port == 0 {
			port = 5432
		}
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
			c.Host, port, c.Database, c.User, c.Password, sslMode), nil
	default:
		return "", fmt.Errorf("unsupported driver: %s", c.Driver)
	}
}
