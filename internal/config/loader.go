package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	configDir  = ".pgstream"
	configFile = "config"
	configType = "yaml"
	envPrefix  = "PGSTREAM"
)

// Load reads ~/.pgstream/config.yaml. A missing file yields the defaults.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, fmt.Errorf("config dir: %w", err)
	}
	return LoadFrom(dir)
}

// LoadFrom reads config.yaml from dir and fills in saved passwords from the
// keyring. PGSTREAM_PREFERENCES_* environment variables override the file.
func LoadFrom(dir string) (*Config, error) {
	v := newViper(dir)

	cfg := &Config{}

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	err = v.Unmarshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	for i := range cfg.Connections {
		cfg.Connections[i].Password, err = Password(cfg.Connections[i].Name)
		if err != nil {
			return nil, fmt.Errorf("password for %q: %w", cfg.Connections[i].Name, err)
		}
	}

	return cfg, nil
}

// Save writes cfg to ~/.pgstream/config.yaml.
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return fmt.Errorf("config dir: %w", err)
	}
	return SaveTo(dir, cfg)
}

// SaveTo writes cfg to dir/config.yaml and moves connection passwords into
// the keyring.
func SaveTo(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	for _, c := range cfg.Connections {
		if c.Password == "" {
			continue
		}
		if err := SetPassword(c.Name, c.Password); err != nil {
			return fmt.Errorf("store password for %q: %w", c.Name, err)
		}
	}

	v := newViper(dir)
	v.Set("connections", cfg.Connections)
	v.Set("preferences", cfg.Preferences)

	path := filepath.Join(dir, configFile+"."+configType)
	return v.WriteConfigAs(path)
}

// SaveConnection adds conn to cfg and persists it.
func SaveConnection(cfg *Config, conn Connection) error {
	cfg.AddConnection(conn)
	return Save(cfg)
}

// Dir returns the configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir), nil
}

func newViper(dir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(configFile)
	v.SetConfigType(configType)
	v.AddConfigPath(dir)

	v.SetDefault("preferences.theme", "default")
	v.SetDefault("preferences.batch_size", DefaultBatchSize)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("preferences.batch_size")
	_ = v.BindEnv("preferences.default_connection")
	_ = v.BindEnv("preferences.log_file")

	return v
}
