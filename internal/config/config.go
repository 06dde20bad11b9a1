// Package config holds the node's top-level configuration: the fields
// cmd/minanode's cobra flags populate, optionally layered over a YAML
// file (spec.md's ambient config surface; teacher's cmd/ccoind Config
// struct generalized from flat flag.StringVar fields into a
// YAML-loadable struct in the style of internal/constants.Load()).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the node's full runtime configuration.
type Config struct {
	// Ledger
	LedgerDepth   int    `yaml:"ledger_depth"`
	ConstantsFile string `yaml:"constants_file"`

	// Storage
	EnablePersistence bool   `yaml:"enable_persistence"`
	DBHost            string `yaml:"db_host"`
	DBPort            int    `yaml:"db_port"`
	DBUser            string `yaml:"db_user"`
	DBPassword        string `yaml:"db_password"`
	DBName            string `yaml:"db_name"`

	// Network
	ListenAddr string `yaml:"listen_addr"`
	RPCAddr    string `yaml:"rpc_addr"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	// Data
	DataDir string `yaml:"data_dir"`
}

// Default returns the node's baseline configuration, used when no
// --config file is given.
func Default() *Config {
	return &Config{
		LedgerDepth: 15,
		DBHost:      "localhost",
		DBPort:      5432,
		DBUser:      "minanode",
		DBName:      "minanode",
		ListenAddr:  "/ip4/0.0.0.0/tcp/8302",
		RPCAddr:     "127.0.0.1:8303",
		LogLevel:    "info",
		DataDir:     "./data",
	}
}

// Load reads a YAML config file over Default(), returning the merged
// result. A missing path is not an error: Default() is returned as-is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
