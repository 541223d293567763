package main

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Config holds the tunables for a harness run. LoadConfig starts from
// defaultConfig and lets the TOML file override the fields it sets; flag
// overrides (see main.go) are then applied on top.
type Config struct {
	DBFile      string `toml:"db_file"`
	PoolSize    int    `toml:"pool_size"`
	ReplacerK   int    `toml:"replacer_k"`
	LeafMax     int    `toml:"leaf_max"`
	InternalMax int    `toml:"internal_max"`
	LogLevel    string `toml:"log_level"`
}

func defaultConfig() Config {
	return Config{
		DBFile:      "helindb.data",
		PoolSize:    64,
		ReplacerK:   2,
		LeafMax:     32,
		InternalMax: 33,
		LogLevel:    "info",
	}
}

// LoadConfig reads a TOML config file at path, falling back silently to
// defaults if path is empty or doesn't exist.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "reading config file %s", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config file %s", path)
	}
	return cfg, nil
}
