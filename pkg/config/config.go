package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
	yaml "gopkg.in/yaml.v3"
)

// Config is the aploghandler file configuration. TOML is the default
// format; .yaml/.yml files are accepted too.
type Config struct {
	Output   OutputConfig   `toml:"output" yaml:"output"`
	Logging  LoggingConfig  `toml:"logging" yaml:"logging"`
	Registry RegistryConfig `toml:"registry" yaml:"registry"`
	Metadata MetadataConfig `toml:"metadata" yaml:"metadata"`
}

type OutputConfig struct {
	// Dir is the root directory for LogUID=... partition trees.
	Dir string `toml:"dir" yaml:"dir" validate:"required"`
	// FlushRows is the per-partition row buffer before handing rows to the
	// parquet writer.
	FlushRows int `toml:"flush_rows" yaml:"flush_rows" validate:"gt=0"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Output []string `toml:"output" yaml:"output" validate:"dive,oneof=stdout console file"`
	File   string   `toml:"file" yaml:"file"`
}

type RegistryConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Dir     string `toml:"dir" yaml:"dir"`
}

type MetadataConfig struct {
	// CubePatterns are extra cube-id regular expressions (one capture
	// group) tried after the built-in ones.
	CubePatterns []string `toml:"cube_patterns" yaml:"cube_patterns"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Output: OutputConfig{
			Dir:       "output",
			FlushRows: 500000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"console"},
		},
		Registry: RegistryConfig{
			Dir: "registry",
		},
	}
}

// Load reads a config file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	default:
		err = toml.Unmarshal(b, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks a configuration against its struct constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}
