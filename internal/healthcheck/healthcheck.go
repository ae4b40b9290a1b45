package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/l3aro/go-udf-splitter/internal/config"
	"github.com/l3aro/go-udf-splitter/pkg/cache"
	"github.com/l3aro/go-udf-splitter/pkg/compiler"
)

// Status values reported for a component.
const (
	StatusReady    = "ready"
	StatusEmpty    = "empty"
	StatusDisabled = "disabled"
	StatusError    = "error"
)

// sampleUDF is compiled to verify the parser and the pipeline end to end.
const sampleUDF = `def udf(a, b):
    x = a + 1
    y = b * 2
    return x + y
`

// ComponentStatus represents the health of one part of the installation.
type ComponentStatus struct {
	Name   string
	Detail string
	Status string // "ready", "empty", "disabled", "error"
	Error  string
}

// HealthCheckResult contains the full health check output for display.
type HealthCheckResult struct {
	SavedPath      string
	SavedScope     string // "global" or "project"
	EffectivePath  string
	EffectiveScope string // "global" or "project"
	Config         ComponentStatus
	Cache          ComponentStatus
	Compiler       ComponentStatus
}

// HasErrors reports whether any component is in the error state.
func (r *HealthCheckResult) HasErrors() bool {
	for _, c := range r.Components() {
		if c.Status == StatusError {
			return true
		}
	}
	return false
}

// Components returns the checked components in display order.
func (r *HealthCheckResult) Components() []ComponentStatus {
	return []ComponentStatus{r.Config, r.Cache, r.Compiler}
}

// Check performs a health check against the given config.
// savedPath is where the user saved config (may be empty outside init).
// effectivePath is the config file actually in use (considering priority).
func Check(ctx context.Context, cfg *config.Config, savedPath string, effectivePath string) (*HealthCheckResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	result := &HealthCheckResult{
		SavedPath:      savedPath,
		SavedScope:     scopeFromPath(savedPath),
		EffectivePath:  effectivePath,
		EffectiveScope: scopeFromPath(effectivePath),
	}

	result.Config = checkConfig(cfg)
	result.Cache = checkCache(cfg.CacheDir, cfg.CacheMaxBytes)
	result.Compiler = checkCompiler(ctx, cfg)

	return result, nil
}

// scopeFromPath determines "global" or "project" scope from a config file path.
// Returns empty string if path is empty.
func scopeFromPath(path string) string {
	if path == "" {
		return ""
	}

	home, err := os.UserHomeDir()
	if err == nil {
		globalDir := filepath.Join(home, ".udfsplit")
		if strings.HasPrefix(path, globalDir) {
			return "global"
		}
	}

	return "project"
}

func checkConfig(cfg *config.Config) ComponentStatus {
	status := ComponentStatus{
		Name:   "config",
		Detail: fmt.Sprintf("class %s, methods %s<n>", cfg.ClassName, cfg.MethodPrefix),
		Status: StatusReady,
	}
	if err := cfg.Validate(); err != nil {
		status.Status = StatusError
		status.Error = err.Error()
	}
	return status
}

// checkCache verifies the result cache can be read. A missing cache file is
// not an error; it is created by the first batch run.
func checkCache(dir string, maxBytes int64) ComponentStatus {
	status := ComponentStatus{Name: "cache", Detail: dir}
	if dir == "" {
		status.Status = StatusDisabled
		return status
	}

	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		status.Status = StatusError
		status.Error = fmt.Sprintf("%s is not a directory", dir)
		return status
	}

	store := cache.NewStore(dir, maxBytes)
	if _, err := os.Stat(store.Path()); errors.Is(err, os.ErrNotExist) {
		status.Status = StatusEmpty
		return status
	}
	if err := store.Load(); err != nil {
		status.Status = StatusError
		status.Error = fmt.Sprintf("cannot read %s: %v", store.Path(), err)
		return status
	}

	stats := store.Stats()
	status.Status = StatusReady
	status.Detail = fmt.Sprintf("%s (%d entries, %s of %s)", dir, stats.Length,
		humanize.Bytes(uint64(stats.CurrentBytes)), humanize.Bytes(uint64(maxBytes)))
	return status
}

// checkCompiler compiles a two-argument sample with the configured options.
func checkCompiler(ctx context.Context, cfg *config.Config) ComponentStatus {
	status := ComponentStatus{Name: "compiler"}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	opts := compiler.Options{
		CostModel: cfg.CostModel,
		Normalize: cfg.NormalizeOptions(),
		Partition: cfg.PartitionOptions(),
	}
	start := time.Now()
	res, err := compiler.Compile(ctx, sampleUDF, opts)
	if err != nil {
		status.Status = StatusError
		status.Error = fmt.Sprintf("sample compilation failed: %v", err)
		return status
	}
	if len(res.ChosenCuts) != 1 {
		status.Status = StatusError
		status.Error = fmt.Sprintf("sample compilation chose %d cuts, want 1", len(res.ChosenCuts))
		return status
	}

	status.Status = StatusReady
	status.Detail = fmt.Sprintf("sample split at line %d in %s", res.ChosenCuts[0].Line, time.Since(start).Round(time.Microsecond))
	return status
}
