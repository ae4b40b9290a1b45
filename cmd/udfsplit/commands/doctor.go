package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-udf-splitter/internal/config"
	"github.com/l3aro/go-udf-splitter/internal/healthcheck"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the configuration, cache and compiler",
	Long: `Validates the configuration in use, checks that the result cache can be
read, and compiles a built-in sample UDF to verify the parser.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := healthcheck.Check(cmd.Context(), cfg, "", effectiveConfigPath())
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		displayDoctorResult(cmd.OutOrStdout(), result)
		if result.HasErrors() {
			return errors.New("health check failed: one or more components are not usable")
		}
		return nil
	},
}

// effectiveConfigPath returns the config file with the highest priority
// that exists, or "" when only defaults are in use.
func effectiveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	for _, path := range []string{config.ProjectConfigFilePath(), config.GlobalConfigFilePath()} {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func displayDoctorResult(w io.Writer, result *healthcheck.HealthCheckResult) {
	if result.EffectivePath == "" {
		fmt.Fprintln(w, "Using config: built-in defaults")
	} else {
		fmt.Fprintf(w, "Using config: %s (%s)\n", result.EffectivePath, result.EffectiveScope)
	}

	for _, c := range result.Components() {
		fmt.Fprintf(w, "\n%s:\n", c.Name)
		if c.Detail != "" {
			fmt.Fprintf(w, "  %s\n", c.Detail)
		}
		fmt.Fprintf(w, "  Status: %s %s\n", formatStatusIcon(c.Status), c.Status)
		if c.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", c.Error)
		}
	}
}

func formatStatusIcon(status string) string {
	switch status {
	case healthcheck.StatusReady:
		return color.GreenString("✓")
	case healthcheck.StatusEmpty, healthcheck.StatusDisabled:
		return color.YellowString("◐")
	case healthcheck.StatusError:
		return color.RedString("✗")
	default:
		return "?"
	}
}
