package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// Load reads the YAML file at path over the defaults. Keys missing from the
// file keep their default value. An empty password is taken from
// WIKICRAWL_PASSWORD.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to the defaults when the
// file does not exist and the path was not given explicitly.
func LoadOrDefault(path string, explicit bool) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, ErrConfigNotFound) && !explicit {
		cfg = NewConfig()
		cfg.applyEnv()
		return cfg, nil
	}
	return cfg, err
}

func (c *Config) applyEnv() {
	if c.Login.Password == "" {
		c.Login.Password = os.Getenv(PasswordEnv)
	}
}
