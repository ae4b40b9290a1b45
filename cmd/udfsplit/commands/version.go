package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = ""
)

// SetVersion records build information for --version and the version command.
func SetVersion(v, built string) {
	version = v
	buildTime = built
	RootCmd.Version = v
	RootCmd.SetVersionTemplate(`udfsplit version {{.Version}}
`)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "udfsplit version %s\n", version)
		if buildTime != "" {
			fmt.Fprintf(out, "Built: %s\n", buildTime)
		}
		fmt.Fprintf(out, "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
