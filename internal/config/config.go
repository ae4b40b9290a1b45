package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-udf-splitter/pkg/cut"
	"github.com/l3aro/go-udf-splitter/pkg/dfg"
	"github.com/l3aro/go-udf-splitter/pkg/normalize"
	"github.com/l3aro/go-udf-splitter/pkg/partition"
)

// OutputFormat selects how CLI results are rendered.
type OutputFormat string

const (
	FormatText    OutputFormat = "text"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatMsgpack OutputFormat = "msgpack"
)

// Config holds all configuration for udfsplit
type Config struct {
	// CostModel overrides the per-type size estimates used to rank cuts
	CostModel cut.CostModel `yaml:"cost_model"`

	// Names of the generated class and methods
	ClassName      string `yaml:"class_name" env:"UDFSPLIT_CLASS_NAME"`
	MethodPrefix   string `yaml:"method_prefix" env:"UDFSPLIT_METHOD_PREFIX"`
	BaselineMethod string `yaml:"baseline_method" env:"UDFSPLIT_BASELINE_METHOD"`

	// MaxStatements bounds the size of an accepted function
	MaxStatements int `yaml:"max_statements" env:"UDFSPLIT_MAX_STATEMENTS"`

	// StrictCutRequests turns an invalid requested cut into a hard error
	StrictCutRequests bool `yaml:"strict_cut_requests" env:"UDFSPLIT_STRICT_CUT_REQUESTS"`

	// OutputFormat is the default CLI output format
	OutputFormat OutputFormat `yaml:"output_format" env:"UDFSPLIT_OUTPUT_FORMAT"`

	// Logging
	LogLevel string `yaml:"log_level" env:"UDFSPLIT_LOG_LEVEL"`
	LogJSON  bool   `yaml:"log_json" env:"UDFSPLIT_LOG_JSON"`

	// Batch compilation
	BatchWorkers  int    `yaml:"batch_workers" env:"UDFSPLIT_BATCH_WORKERS"`
	CacheDir      string `yaml:"cache_dir" env:"UDFSPLIT_CACHE_DIR"`
	CacheMaxBytes int64  `yaml:"cache_max_bytes" env:"UDFSPLIT_CACHE_MAX_BYTES"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	names := partition.DefaultOptions()
	return &Config{
		CostModel:         cut.DefaultCostModel(),
		ClassName:         names.ClassName,
		MethodPrefix:      names.MethodPrefix,
		BaselineMethod:    names.BaselineMethod,
		MaxStatements:     normalize.DefaultMaxStatements,
		StrictCutRequests: false,
		OutputFormat:      FormatText,
		LogLevel:          "info",
		LogJSON:           false,
		BatchWorkers:      4,
		CacheDir:          ".udfsplit/cache",
		CacheMaxBytes:     64 << 20,
	}
}

// GlobalConfigFilePath returns the global config file path (~/.udfsplit/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".udfsplit/config.yaml"
	}
	return filepath.Join(home, ".udfsplit", "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.udfsplit/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(".udfsplit", "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.udfsplit/config.yaml)
// 3. Global config (~/.udfsplit/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{GlobalConfigFilePath(), ProjectConfigFilePath()} {
		if err := cfg.merge(path); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.merge(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil, err
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge overlays the YAML file at path on c. Cost model sizes are merged
// per type rather than replaced, and an explicit argument_bonus of 0 is kept.
func (c *Config) merge(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	base := c.CostModel
	c.CostModel = cut.CostModel{}
	if err := yaml.Unmarshal(data, c); err != nil {
		c.CostModel = base
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	var overlay struct {
		CostModel cut.CostOverlay `yaml:"cost_model"`
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		c.CostModel = base
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.CostModel = base.Merge(overlay.CostModel)
	return nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("UDFSPLIT_CLASS_NAME"); v != "" {
		cfg.ClassName = v
	}
	if v := os.Getenv("UDFSPLIT_METHOD_PREFIX"); v != "" {
		cfg.MethodPrefix = v
	}
	if v := os.Getenv("UDFSPLIT_BASELINE_METHOD"); v != "" {
		cfg.BaselineMethod = v
	}
	if v := os.Getenv("UDFSPLIT_MAX_STATEMENTS"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("UDFSPLIT_MAX_STATEMENTS: %w", err)
		}
		cfg.MaxStatements = i
	}
	if v := os.Getenv("UDFSPLIT_STRICT_CUT_REQUESTS"); v != "" {
		cfg.StrictCutRequests = parseBool(v)
	}
	if v := os.Getenv("UDFSPLIT_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(strings.ToLower(v))
	}
	if v := os.Getenv("UDFSPLIT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("UDFSPLIT_LOG_JSON"); v != "" {
		cfg.LogJSON = parseBool(v)
	}
	if v := os.Getenv("UDFSPLIT_BATCH_WORKERS"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("UDFSPLIT_BATCH_WORKERS: %w", err)
		}
		cfg.BatchWorkers = i
	}
	if v := os.Getenv("UDFSPLIT_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("UDFSPLIT_CACHE_MAX_BYTES"); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("UDFSPLIT_CACHE_MAX_BYTES: %w", err)
		}
		cfg.CacheMaxBytes = i
	}
	if v := os.Getenv("UDFSPLIT_ARGUMENT_BONUS"); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("UDFSPLIT_ARGUMENT_BONUS: %w", err)
		}
		cfg.CostModel.ArgumentBonus = i
	}
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if !isIdentifier(c.ClassName) {
		return fmt.Errorf("class_name %q is not a valid Python identifier", c.ClassName)
	}
	if !isIdentifier(c.MethodPrefix) {
		return fmt.Errorf("method_prefix %q is not a valid Python identifier", c.MethodPrefix)
	}
	if !isIdentifier(c.BaselineMethod) {
		return fmt.Errorf("baseline_method %q is not a valid Python identifier", c.BaselineMethod)
	}
	if c.MaxStatements < 0 {
		return fmt.Errorf("max_statements must be non-negative")
	}
	switch c.OutputFormat {
	case FormatText, FormatJSON, FormatYAML, FormatMsgpack:
	default:
		return fmt.Errorf("invalid output_format: %s (must be text, json, yaml or msgpack)", c.OutputFormat)
	}
	if c.BatchWorkers <= 0 {
		return fmt.Errorf("batch_workers must be positive")
	}
	if c.CacheMaxBytes < 0 {
		return fmt.Errorf("cache_max_bytes must be non-negative")
	}
	if c.CostModel.ArgumentBonus < 0 {
		return fmt.Errorf("cost_model.argument_bonus must be non-negative")
	}
	for t, size := range c.CostModel.Sizes {
		if size < 0 {
			return fmt.Errorf("cost_model.sizes.%s must be non-negative", t)
		}
		if !dfg.KnownType(t) {
			return fmt.Errorf("cost_model.sizes: unknown type %q", t)
		}
	}
	return nil
}

// pythonKeywords cannot be used as identifiers.
var pythonKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

func isIdentifier(s string) bool {
	if s == "" || pythonKeywords[s] {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// NormalizeOptions returns the normalizer settings.
func (c *Config) NormalizeOptions() normalize.Options {
	return normalize.Options{MaxStatements: c.MaxStatements}
}

// PartitionOptions returns the naming of generated code.
func (c *Config) PartitionOptions() partition.Options {
	return partition.Options{
		ClassName:      c.ClassName,
		MethodPrefix:   c.MethodPrefix,
		BaselineMethod: c.BaselineMethod,
	}
}
