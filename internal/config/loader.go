package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// DefaultConfigPath is where LoadConfig looks when no path is given.
const DefaultConfigPath = "tokenvaultd.toml"

// LoadConfig loads configuration in priority order: defaults, then the
// config file, then TOKENVAULTD_ environment variables. A missing file
// is only an error when the path was given explicitly.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	} else {
		path = ""
	}

	v.SetEnvPrefix("TOKENVAULTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	config.configPath = path

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}
