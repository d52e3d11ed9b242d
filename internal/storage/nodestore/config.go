package nodestore

import (
	"errors"
	"fmt"
	"time"
)

// Config holds NodeStore configuration.
type Config struct {
	// Backend selects the storage backend ("memory", "pebble", "leveldb").
	Backend string `json:"backend" mapstructure:"backend"`

	// Path is the on-disk location for persistent backends.
	Path string `json:"path" mapstructure:"path"`

	// CacheSize is the number of nodes kept in the read cache.
	CacheSize int `json:"cache_size" mapstructure:"cache_size"`

	// CacheTTL is how long cached nodes stay valid.
	CacheTTL time.Duration `json:"cache_ttl" mapstructure:"cache_ttl"`

	// Compressor names the compression algorithm ("none", "lz4").
	Compressor string `json:"compressor" mapstructure:"compressor"`

	CompressionLevel int `json:"compression_level" mapstructure:"compression_level"`

	CreateIfMissing bool `json:"create_if_missing" mapstructure:"create_if_missing"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend:          "pebble",
		Path:             "./data/nodestore",
		CacheSize:        4096,
		CacheTTL:         time.Hour,
		Compressor:       "lz4",
		CompressionLevel: 1,
		CreateIfMissing:  true,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Backend == "" {
		return errors.New("backend must be specified")
	}
	if c.Backend != "memory" && c.Path == "" {
		return errors.New("path must be specified for persistent backends")
	}
	if c.CacheSize < 0 {
		return errors.New("cache_size must be non-negative")
	}
	if c.CacheTTL < 0 {
		return errors.New("cache_ttl must be non-negative")
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		return errors.New("compression_level must be between 0 and 9")
	}
	switch c.Compressor {
	case "", "none", "lz4":
	default:
		return fmt.Errorf("unsupported compressor: %s", c.Compressor)
	}
	return nil
}
