// Package commands provides the CLI commands for udfsplit.
package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-udf-splitter/internal/config"
	"github.com/l3aro/go-udf-splitter/internal/log"
	"github.com/l3aro/go-udf-splitter/pkg/compiler"
)

var (
	cfgFile string
	verbose bool
	logJSON bool

	// cfg and logger are set before any subcommand runs.
	cfg    *config.Config = config.DefaultConfig()
	logger log.Logger     = log.Default()
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "udfsplit",
	Short: "udfsplit - split Python UDFs into streaming operators",
	Long: `udfsplit rewrites a single batch-style Python function into a class with
one generator method per formal argument, so each argument can be consumed
by an independent pipeline stage.

Commands:
  compile     Split a UDF into per-argument generator methods
  cuts        List the valid cut lines of a UDF, best first
  graph       Show the variable dependency graph of a UDF
  stream      Rewrite accumulate-then-return loops into generators
  prune       Remove code feeding disabled output ports
  batch       Compile every UDF under a directory
  init        Create a configuration file interactively
  doctor      Check the configuration, cache and compiler
  version     Print version information

Use "udfsplit [command] --help" for more information about a command.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFromFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if verbose {
		level = log.DebugLevel
	}
	logger = log.New(log.LoggerConfig{
		Level:      level,
		JSONOutput: logJSON || cfg.LogJSON,
		Stderr:     cmd.ErrOrStderr(),
	})
	return nil
}

// compileOptions builds compiler options from the loaded configuration.
func compileOptions() compiler.Options {
	return compiler.Options{
		StrictCutRequests: cfg.StrictCutRequests,
		CostModel:         cfg.CostModel,
		Normalize:         cfg.NormalizeOptions(),
		Partition:         cfg.PartitionOptions(),
		Logger:            logger,
	}
}

// Execute runs the root command. Errors whose diagnostics were already
// rendered are not printed again.
func Execute(ctx context.Context) error {
	err := RootCmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintln(RootCmd.ErrOrStderr(), color.New(color.FgRed, color.Bold).Sprint("error:"), err)
	}
	return err
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ~/.udfsplit/config.yaml and ./.udfsplit/config.yaml)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	RootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log as JSON")

	RootCmd.AddCommand(compileCmd)
	RootCmd.AddCommand(cutsCmd)
	RootCmd.AddCommand(graphCmd)
	RootCmd.AddCommand(streamCmd)
	RootCmd.AddCommand(pruneCmd)
	RootCmd.AddCommand(batchCmd)
	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(doctorCmd)
	RootCmd.AddCommand(versionCmd)
}
