package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-udf-splitter/internal/config"
	"github.com/l3aro/go-udf-splitter/internal/healthcheck"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file interactively",
	Long: `Guides you through setting up udfsplit step by step.
Creates a config file with the generated class and method names, the cut
request policy, the default output format and batch settings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd)
	},
}

func runInit(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	newCfg := config.DefaultConfig()

	// === SECTION 1: Generated code ===
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Generated class name").
				Placeholder(newCfg.ClassName).
				Validate(identifier("class name")).
				Value(&newCfg.ClassName),
			huh.NewInput().
				Title("Method name prefix").
				Description("Methods are named <prefix><argument index>").
				Placeholder(newCfg.MethodPrefix).
				Validate(identifier("method prefix")).
				Value(&newCfg.MethodPrefix),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 2: Behavior ===
	workers := strconv.Itoa(newCfg.BatchWorkers)
	format := string(newCfg.OutputFormat)
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Invalid cut requests").
				Description("What should happen when a requested cut line is not valid?").
				Affirmative("Fail").
				Negative("Use the best cut and warn").
				Value(&newCfg.StrictCutRequests),
			huh.NewSelect[string]().
				Title("Default output format").
				Options(
					huh.NewOption("Text", string(config.FormatText)),
					huh.NewOption("JSON", string(config.FormatJSON)),
					huh.NewOption("YAML", string(config.FormatYAML)),
					huh.NewOption("MessagePack", string(config.FormatMsgpack)),
				).
				Value(&format),
			huh.NewInput().
				Title("Parallel compilations for batch").
				Placeholder(workers).
				Validate(func(s string) error {
					if n, err := strconv.Atoi(s); err != nil || n <= 0 {
						return fmt.Errorf("must be a positive number")
					}
					return nil
				}).
				Value(&workers),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	newCfg.OutputFormat = config.OutputFormat(format)
	newCfg.BatchWorkers, _ = strconv.Atoi(workers)

	// === SECTION 3: Config Location ===
	var saveLocationChoice string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Global (~/.udfsplit/config.yaml)", "global"),
					huh.NewOption("Project (./.udfsplit/config.yaml)", "project"),
				).
				Value(&saveLocationChoice),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	configPath := config.ProjectConfigFilePath()
	if saveLocationChoice == "global" {
		configPath = config.GlobalConfigFilePath()
	}

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	if err := newCfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fmt.Fprintln(out, "\n=== Configuration Preview ===")
	fmt.Fprintf(out, "Config path: %s\n", configPath)
	fmt.Fprintf(out, "Class: %s\n", newCfg.ClassName)
	fmt.Fprintf(out, "Methods: %s0, %s1, ...\n", newCfg.MethodPrefix, newCfg.MethodPrefix)
	fmt.Fprintf(out, "Strict cut requests: %t\n", newCfg.StrictCutRequests)
	fmt.Fprintf(out, "Output format: %s\n", newCfg.OutputFormat)
	fmt.Fprintf(out, "Batch workers: %d\n", newCfg.BatchWorkers)
	fmt.Fprintln(out, "================================")

	if err := newCfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Fprintf(out, "Configuration saved to: %s\n", configPath)

	// === SECTION 4: Health Check ===
	fmt.Fprintln(out, "\n=== Running Health Check ===")
	loadedCfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("loading saved config: %w", err)
	}
	result, err := healthcheck.Check(cmd.Context(), loadedCfg, configPath, configPath)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	fmt.Fprintf(out, "\nConfig Scope: %s\n", result.SavedScope)
	absPath, _ := filepath.Abs(configPath)
	fmt.Fprintf(out, "Config Path: %s\n", absPath)
	displayDoctorResult(out, result)

	fmt.Fprintln(out, "\n=== Initialization Complete ===")
	return nil
}

// identifier returns a huh validator for Python identifiers.
func identifier(what string) func(string) error {
	return func(s string) error {
		candidate := config.DefaultConfig()
		candidate.ClassName = s
		if err := candidate.Validate(); err != nil {
			return fmt.Errorf("%s must be a valid Python identifier", what)
		}
		return nil
	}
}
