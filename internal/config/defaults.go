package config

import "github.com/spf13/viper"

// setDefaults registers the default value for every setting.
func setDefaults(v *viper.Viper) {
	v.SetDefault("standalone", false)

	// Server defaults
	v.SetDefault("server.rpc_address", "127.0.0.1:5005")
	v.SetDefault("server.ws_address", "127.0.0.1:6006")
	v.SetDefault("server.grpc_address", "")
	v.SetDefault("server.request_timeout", "30s")

	// Genesis defaults; empty seed falls back to the built-in one.
	v.SetDefault("genesis.master_seed", "")
	v.SetDefault("genesis.initial_supply", 0)

	// Node store defaults
	v.SetDefault("node_db.backend", "pebble")
	v.SetDefault("node_db.path", "./data/nodestore")
	v.SetDefault("node_db.cache_size", 4096)
	v.SetDefault("node_db.cache_ttl", "1h")
	v.SetDefault("node_db.compressor", "lz4")
	v.SetDefault("node_db.compression_level", 1)

	// History database defaults
	v.SetDefault("relational_db.driver", "sqlite")
	v.SetDefault("relational_db.path", "./data/tokenvault.db")
	v.SetDefault("relational_db.host", "")
	v.SetDefault("relational_db.port", 5432)
	v.SetDefault("relational_db.database", "tokenvault")
	v.SetDefault("relational_db.user", "")
	v.SetDefault("relational_db.password", "")
	v.SetDefault("relational_db.ssl_mode", "disable")
}
