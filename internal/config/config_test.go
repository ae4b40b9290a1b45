package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/l3aro/go-udf-splitter/pkg/cut"
	"github.com/l3aro/go-udf-splitter/pkg/dfg"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"ClassName", cfg.ClassName, "Operator"},
		{"MethodPrefix", cfg.MethodPrefix, "process_table_"},
		{"BaselineMethod", cfg.BaselineMethod, "process_tables"},
		{"MaxStatements", cfg.MaxStatements, 5000},
		{"StrictCutRequests", cfg.StrictCutRequests, false},
		{"OutputFormat", cfg.OutputFormat, FormatText},
		{"LogLevel", cfg.LogLevel, "info"},
		{"BatchWorkers", cfg.BatchWorkers, 4},
		{"ArgumentBonus", cfg.CostModel.ArgumentBonus, cut.DefaultArgumentBonus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("DefaultConfig().%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:        "bad class name",
			mutate:      func(c *Config) { c.ClassName = "My Class" },
			errContains: "class_name",
		},
		{
			name:        "method prefix starting with digit",
			mutate:      func(c *Config) { c.MethodPrefix = "0_" },
			errContains: "method_prefix",
		},
		{
			name:        "keyword class name",
			mutate:      func(c *Config) { c.ClassName = "class" },
			errContains: "class_name",
		},
		{
			name:        "keyword method prefix",
			mutate:      func(c *Config) { c.MethodPrefix = "def" },
			errContains: "method_prefix",
		},
		{
			name:        "keyword baseline method",
			mutate:      func(c *Config) { c.BaselineMethod = "None" },
			errContains: "baseline_method",
		},
		{
			name:   "soft keyword allowed",
			mutate: func(c *Config) { c.ClassName = "match" },
		},
		{
			name:        "unknown output format",
			mutate:      func(c *Config) { c.OutputFormat = "xml" },
			errContains: "output_format",
		},
		{
			name:        "no workers",
			mutate:      func(c *Config) { c.BatchWorkers = 0 },
			errContains: "batch_workers",
		},
		{
			name:        "negative size",
			mutate:      func(c *Config) { c.CostModel.Sizes[dfg.TypeList] = -1 },
			errContains: "cost_model.sizes.list",
		},
		{
			name:        "unknown type",
			mutate:      func(c *Config) { c.CostModel.Sizes["ndarray"] = 10 },
			errContains: "unknown type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.errContains)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	data := `class_name: Stage
strict_cut_requests: true
cost_model:
  sizes:
    list: 10
  argument_bonus: 7
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.ClassName != "Stage" {
		t.Errorf("ClassName = %q, want Stage", cfg.ClassName)
	}
	if !cfg.StrictCutRequests {
		t.Error("StrictCutRequests = false, want true")
	}
	if got := cfg.CostModel.Size(dfg.TypeList); got != 10 {
		t.Errorf("list size = %d, want 10", got)
	}
	if got := cfg.CostModel.Size(dfg.TypeDataFrame); got != 100000 {
		t.Errorf("DataFrame size = %d, want the default 100000", got)
	}
	if cfg.CostModel.ArgumentBonus != 7 {
		t.Errorf("ArgumentBonus = %d, want 7", cfg.CostModel.ArgumentBonus)
	}
	if cfg.MethodPrefix != "process_table_" {
		t.Errorf("MethodPrefix = %q, want the default", cfg.MethodPrefix)
	}
}

func TestLoadFromFileArgumentBonus(t *testing.T) {
	tests := []struct {
		name string
		data string
		want int64
	}{
		{"absent", "cost_model:\n  sizes:\n    list: 10\n", cut.DefaultArgumentBonus},
		{"explicit zero", "cost_model:\n  argument_bonus: 0\n", 0},
		{"explicit value", "cost_model:\n  argument_bonus: 42\n", 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}
			cfg, err := LoadFromFile(path)
			if err != nil {
				t.Fatalf("LoadFromFile() error = %v", err)
			}
			if cfg.CostModel.ArgumentBonus != tt.want {
				t.Errorf("ArgumentBonus = %d, want %d", cfg.CostModel.ArgumentBonus, tt.want)
			}
		})
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := LoadFromFile(filepath.Join(tmpDir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("class_name: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("expected error for malformed YAML")
	}

	invalid := filepath.Join(tmpDir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("batch_workers: -2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(invalid); err == nil {
		t.Error("expected validation error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("UDFSPLIT_CLASS_NAME", "FromEnv")
	t.Setenv("UDFSPLIT_STRICT_CUT_REQUESTS", "yes")
	t.Setenv("UDFSPLIT_OUTPUT_FORMAT", "JSON")
	t.Setenv("UDFSPLIT_BATCH_WORKERS", "9")
	t.Setenv("UDFSPLIT_ARGUMENT_BONUS", "123")

	cfg := DefaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}
	if cfg.ClassName != "FromEnv" {
		t.Errorf("ClassName = %q", cfg.ClassName)
	}
	if !cfg.StrictCutRequests {
		t.Error("StrictCutRequests not set")
	}
	if cfg.OutputFormat != FormatJSON {
		t.Errorf("OutputFormat = %q", cfg.OutputFormat)
	}
	if cfg.BatchWorkers != 9 {
		t.Errorf("BatchWorkers = %d", cfg.BatchWorkers)
	}
	if cfg.CostModel.ArgumentBonus != 123 {
		t.Errorf("ArgumentBonus = %d", cfg.CostModel.ArgumentBonus)
	}

	t.Setenv("UDFSPLIT_BATCH_WORKERS", "many")
	if err := applyEnvOverrides(DefaultConfig()); err == nil {
		t.Error("expected error for non-numeric UDFSPLIT_BATCH_WORKERS")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.ClassName = "Saved"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.ClassName != "Saved" {
		t.Errorf("ClassName = %q, want Saved", loaded.ClassName)
	}
	if loaded.CostModel.Size(dfg.TypeDict) != cfg.CostModel.Size(dfg.TypeDict) {
		t.Error("cost model not preserved")
	}
}

func TestOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxStatements = 12
	cfg.ClassName = "Op"

	if got := cfg.NormalizeOptions().MaxStatements; got != 12 {
		t.Errorf("NormalizeOptions().MaxStatements = %d", got)
	}
	if got := cfg.PartitionOptions().ClassName; got != "Op" {
		t.Errorf("PartitionOptions().ClassName = %q", got)
	}
}
