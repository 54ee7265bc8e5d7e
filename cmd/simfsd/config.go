package main

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const envVarPrefix = "SIMFS"

// Config is loaded from an optional YAML file first, then overridden by
// SIMFS_* environment variables, then by command-line flags. Defaults
// are seeded before the file is read; envconfig carries no default
// tags, so an unset variable leaves the file's value alone.
type Config struct {
	Addr     string `envconfig:"SIMFS_ADDR"      yaml:"addr"`
	Backing  string `envconfig:"SIMFS_BACKING"   yaml:"backing"`
	DiskPath string `envconfig:"SIMFS_DISK_PATH" yaml:"diskPath"`
	Workers  int    `envconfig:"SIMFS_WORKERS"   yaml:"workers"`
	Debug    uint64 `envconfig:"SIMFS_DEBUG"     yaml:"debug"`
	Format   bool   `envconfig:"SIMFS_FORMAT"    yaml:"format"`
}

func defaultConfig() Config {
	return Config{
		Addr:     "127.0.0.1:8080",
		Backing:  "mem",
		DiskPath: "simfs.img",
		Workers:  4,
	}
}

func LoadConfig(configFile string) (*Config, error) {
	c := defaultConfig()
	if configFile == "" {
		configFile = os.Getenv(envVarPrefix + "_CONFIG_FILE")
	}
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.UnmarshalStrict(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshaling config file: %w", err)
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	return &c, nil
}

func (c *Config) Validate() error {
	switch c.Backing {
	case "mem", "file", "goose-mem", "goose-file":
	default:
		return fmt.Errorf("invalid backing %q (want mem, file, goose-mem, or goose-file)", c.Backing)
	}
	if (c.Backing == "file" || c.Backing == "goose-file") && c.DiskPath == "" {
		return fmt.Errorf("backing %q requires a disk path", c.Backing)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}
