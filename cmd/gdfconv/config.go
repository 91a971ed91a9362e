package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the gdfconv configuration file (~/.config/gdfconv/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	MaxCell     *int     `yaml:"max_cell"`
	GridSize    *float64 `yaml:"grid_size"`
	Layout      string   `yaml:"layout"`
	Destination string   `yaml:"destination"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "gdfconv", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	cfg, err := readConfig(path)
	if err != nil {
		return Config{}
	}
	return cfg
}

func readConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyConvertConfig applies config file defaults to convert command variables
// when the corresponding CLI flag was not explicitly set.
func applyConvertConfig(c *cli.Command, cfg Config, maxCell *int, gridSize *float64, layout, destination *string) {
	if cfg.MaxCell != nil && !c.IsSet("max-cell") {
		*maxCell = *cfg.MaxCell
	}
	if cfg.GridSize != nil && !c.IsSet("grid-size") {
		*gridSize = *cfg.GridSize
	}
	if cfg.Layout != "" && !c.IsSet("layout") {
		*layout = cfg.Layout
	}
	if cfg.Destination != "" && !c.IsSet("destination") {
		*destination = cfg.Destination
	}
}
