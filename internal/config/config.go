// Package config handles configuration loading from YAML files and environment variables.
// Configuration precedence: CLI flags > environment variables > config file > embedded > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Guliveer/pagegen/internal/embedder"
	"github.com/Guliveer/pagegen/internal/header"
)

// Config holds all pagegen configuration.
type Config struct {
	Targets []TargetConfig `yaml:"targets"`
	Logging LoggingConfig  `yaml:"logging"`
}

// TargetConfig describes one page to embed.
type TargetConfig struct {
	Name            string `yaml:"name"`
	Source          string `yaml:"source"`
	Destination     string `yaml:"destination"`
	Identifier      string `yaml:"identifier"`
	Qualifier       string `yaml:"qualifier"`
	Delimiter       string `yaml:"delimiter"`
	StrictDelimiter bool   `yaml:"strict_delimiter"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultTarget returns the page the firmware serves at "/".
func DefaultTarget() TargetConfig {
	return TargetConfig{
		Name:        "index",
		Source:      filepath.Join("src", "index.html"),
		Destination: filepath.Join("include", "index.h"),
		Identifier:  header.DefaultIdentifier,
		Qualifier:   header.DefaultQualifier,
		Delimiter:   header.DefaultDelimiter,
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Targets: []TargetConfig{DefaultTarget()},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// UnmarshalYAML fills unset declaration fields of a target from the defaults,
// so a config only needs source and destination.
func (t *TargetConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain TargetConfig
	def := DefaultTarget()
	p := plain{
		Identifier: def.Identifier,
		Qualifier:  def.Qualifier,
		Delimiter:  def.Delimiter,
	}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = TargetConfig(p)
	return nil
}

// Declaration returns the header tokens of the target.
func (t TargetConfig) Declaration() header.Declaration {
	return header.Declaration{
		Identifier: t.Identifier,
		Qualifier:  t.Qualifier,
		Delimiter:  t.Delimiter,
	}
}

// Target converts the config entry for the embedder.
func (t TargetConfig) Target() embedder.Target {
	return embedder.Target{
		Name:            t.Name,
		Source:          t.Source,
		Destination:     t.Destination,
		Declaration:     t.Declaration(),
		StrictDelimiter: t.StrictDelimiter,
	}
}

// EmbedTargets returns all configured targets for the embedder.
func (c *Config) EmbedTargets() []embedder.Target {
	targets := make([]embedder.Target, 0, len(c.Targets))
	for _, t := range c.Targets {
		targets = append(targets, t.Target())
	}
	return targets
}

// CLIOverrides holds values from command-line flags.
// Empty strings are treated as "not set" and skipped. Source, Destination and
// the declaration tokens apply to the first target only.
type CLIOverrides struct {
	Source      string
	Destination string
	Identifier  string
	Qualifier   string
	Delimiter   string
	LogLevel    string
	LogFile     string
}

// Locate searches the working directory for a config file and returns the
// first one found. Returns empty string if no config file exists.
func Locate() string {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadLayered loads configuration with the full precedence chain:
// CLI flags > env vars > external YAML file > embedded bytes > defaults.
//
// An optional configPath argument controls external-file discovery:
//   - omitted        → auto-discover via Locate()
//   - explicit value  → use that path ("" means no external file)
//
// Unlike the embedded layer, an explicit config file that cannot be read is
// an error.
func LoadLayered(cli CLIOverrides, embedded []byte, configPath ...string) (*Config, error) {
	cfg := DefaultConfig()

	if len(embedded) > 0 {
		if err := yaml.Unmarshal(embedded, cfg); err != nil {
			return nil, fmt.Errorf("parsing embedded config: %w", err)
		}
	}

	var filePath string
	explicit := len(configPath) > 0
	if explicit {
		filePath = configPath[0]
	} else {
		filePath = Locate()
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
			}
		case explicit:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyCLIOverrides(cfg, cli)

	return cfg, nil
}

// WriteConfig serializes the config to a YAML file at the given path.
// Creates parent directories if needed.
func WriteConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if src := os.Getenv("PAGEGEN_SOURCE"); src != "" {
		firstTarget(cfg).Source = src
	}
	if dst := os.Getenv("PAGEGEN_DEST"); dst != "" {
		firstTarget(cfg).Destination = dst
	}
	if level := os.Getenv("PAGEGEN_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

func applyCLIOverrides(cfg *Config, cli CLIOverrides) {
	if cli.Source != "" {
		firstTarget(cfg).Source = cli.Source
	}
	if cli.Destination != "" {
		firstTarget(cfg).Destination = cli.Destination
	}
	if cli.Identifier != "" {
		firstTarget(cfg).Identifier = cli.Identifier
	}
	if cli.Qualifier != "" {
		firstTarget(cfg).Qualifier = cli.Qualifier
	}
	if cli.Delimiter != "" {
		firstTarget(cfg).Delimiter = cli.Delimiter
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.LogFile != "" {
		cfg.Logging.File = cli.LogFile
	}
}

// firstTarget returns the target single-page overrides apply to, adding the
// default one when a config file declared none.
func firstTarget(cfg *Config) *TargetConfig {
	if len(cfg.Targets) == 0 {
		cfg.Targets = append(cfg.Targets, DefaultTarget())
	}
	return &cfg.Targets[0]
}

// Validate checks that every target can be embedded.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return errors.New("at least one target is required")
	}
	seen := make(map[string]bool, len(c.Targets))
	for i, t := range c.Targets {
		label := t.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		if t.Source == "" {
			return fmt.Errorf("target %s: source is required", label)
		}
		if t.Destination == "" {
			return fmt.Errorf("target %s: destination is required", label)
		}
		if filepath.Clean(t.Source) == filepath.Clean(t.Destination) {
			return fmt.Errorf("target %s: source and destination are the same file", label)
		}
		if err := t.Declaration().Validate(); err != nil {
			return fmt.Errorf("target %s: %w", label, err)
		}
		if t.Name != "" {
			if seen[t.Name] {
				return fmt.Errorf("duplicate target name %q", t.Name)
			}
			seen[t.Name] = true
		}
	}
	return nil
}
