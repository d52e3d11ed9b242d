// Package config loads the daemon configuration from defaults, an
// optional TOML file, and TOKENVAULTD_ environment variables.
package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/tokenvault/tokenvaultd/internal/core/ledger/genesis"
	"github.com/tokenvault/tokenvaultd/internal/storage/nodestore"
	"github.com/tokenvault/tokenvaultd/internal/storage/relationaldb"
)

// Config is the complete tokenvaultd configuration.
type Config struct {
	// Standalone runs the node without consensus; ledgers close on
	// ledger_accept.
	Standalone bool `mapstructure:"standalone"`

	Server   ServerConfig   `mapstructure:"server"`
	Genesis  GenesisConfig  `mapstructure:"genesis"`
	NodeDB   NodeDBConfig   `mapstructure:"node_db"`
	Relational RelationalConfig `mapstructure:"relational_db"`

	// Internal field for reference.
	configPath string `mapstructure:"-"`
}

// ServerConfig holds the listen addresses.
type ServerConfig struct {
	// RPCAddress serves HTTP JSON-RPC.
	RPCAddress string `mapstructure:"rpc_address"`

	// WSAddress serves WebSocket subscriptions. Empty disables it.
	WSAddress string `mapstructure:"ws_address"`

	// GRPCAddress serves gRPC. Empty disables it.
	GRPCAddress string `mapstructure:"grpc_address"`

	// RequestTimeout bounds RPC request handling.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// GenesisConfig describes the genesis ledger.
type GenesisConfig struct {
	MasterSeed    string `mapstructure:"master_seed"`
	InitialSupply uint64 `mapstructure:"initial_supply"`
}

// NodeDBConfig configures the node store.
type NodeDBConfig struct {
	Backend          string        `mapstructure:"backend"`
	Path             string        `mapstructure:"path"`
	CacheSize        int           `mapstructure:"cache_size"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	Compressor       string        `mapstructure:"compressor"`
	CompressionLevel int           `mapstructure:"compression_level"`
}

// RelationalConfig configures the history database.
type RelationalConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// ConfigPath returns the path of the loaded config file, or "".
func (c *Config) ConfigPath() string {
	return c.configPath
}

// GenesisServiceConfig maps the genesis section onto the ledger
// service's genesis configuration.
func (c *Config) GenesisServiceConfig() genesis.Config {
	cfg := genesis.DefaultConfig()
	if c.Genesis.MasterSeed != "" {
		cfg.MasterSeed = c.Genesis.MasterSeed
	}
	if c.Genesis.InitialSupply != 0 {
		cfg.InitialSupply = c.Genesis.InitialSupply
	}
	return cfg
}

// NodeStoreConfig maps the node_db section onto the node store
// configuration.
func (c *Config) NodeStoreConfig() *nodestore.Config {
	cfg := nodestore.DefaultConfig()
	if c.NodeDB.Backend != "" {
		cfg.Backend = c.NodeDB.Backend
	}
	if c.NodeDB.Path != "" {
		cfg.Path = c.NodeDB.Path
	}
	if c.NodeDB.CacheSize != 0 {
		cfg.CacheSize = c.NodeDB.CacheSize
	}
	if c.NodeDB.CacheTTL != 0 {
		cfg.CacheTTL = c.NodeDB.CacheTTL
	}
	if c.NodeDB.Compressor != "" {
		cfg.Compressor = c.NodeDB.Compressor
	}
	if c.NodeDB.CompressionLevel != 0 {
		cfg.CompressionLevel = c.NodeDB.CompressionLevel
	}
	return cfg
}

// RelationalDBConfig maps the relational_db section onto the history
// database configuration.
func (c *Config) RelationalDBConfig() *relationaldb.Config {
	cfg := relationaldb.DefaultConfig()
	if c.Relational.Driver != "" {
		cfg.Driver = c.Relational.Driver
	}
	if c.Relational.Path != "" {
		cfg.Path = c.Relational.Path
	}
	if c.Relational.Host != "" {
		cfg.Host = c.Relational.Host
	}
	if c.Relational.Port != 0 {
		cfg.Port = c.Relational.Port
	}
	if c.Relational.Database != "" {
		cfg.Database = c.Relational.Database
	}
	if c.Relational.User != "" {
		cfg.User = c.Relational.User
	}
	if c.Relational.Password != "" {
		cfg.Password = c.Relational.Password
	}
	if c.Relational.SSLMode != "" {
		cfg.SSLMode = c.Relational.SSLMode
	}
	return cfg
}

// Validate checks the configuration for obvious mistakes.
func Validate(c *Config) error {
	if c.Server.RPCAddress == "" {
		return fmt.Errorf("server.rpc_address is required")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}
	ns := c.NodeStoreConfig()
	if err := ns.Validate(); err != nil {
		return fmt.Errorf("node_db: %w", err)
	}
	if !slices.Contains(nodestore.AvailableBackends(), ns.Backend) {
		return fmt.Errorf("node_db: unknown backend %q", ns.Backend)
	}
	if err := c.RelationalDBConfig().Validate(); err != nil {
		return fmt.Errorf("relational_db: %w", err)
	}
	return nil
}
