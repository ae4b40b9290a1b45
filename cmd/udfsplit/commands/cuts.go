package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-udf-splitter/pkg/compiler"
	"github.com/l3aro/go-udf-splitter/pkg/cut"
)

var cutsCmd = &cobra.Command{
	Use:   "cuts <file>",
	Short: "List the valid cut lines of a UDF, best first",
	Long: `Lists every valid cut of a UDF with the variables crossing it, the
estimated cost of keeping them alive, and the argument bonus. Cuts marked
with * are the ones compile would choose.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename, src, err := readSource(cmd, args[0])
		if err != nil {
			return err
		}
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}

		a, err := compiler.Analyze(cmd.Context(), src, compileOptions())
		if err != nil {
			return report(cmd, filename, src, err)
		}

		return writeResult(cmd.OutOrStdout(), format, a.Ranked, func(w io.Writer) error {
			printCuts(w, a.Function, a.Ranked, len(a.Graph.Params)-1)
			return nil
		})
	},
}

func printCuts(w io.Writer, function string, ranked []cut.Cut, chosen int) {
	fmt.Fprintf(w, "=== Cuts for function: %s ===\n", function)
	if len(ranked) == 0 {
		fmt.Fprintln(w, "No valid cuts.")
		return
	}
	fmt.Fprintf(w, "\n  %-4s %-6s %10s %10s %12s  %s\n", "", "LINE", "COST", "BONUS", "SCORE", "VARIABLES")
	for i, c := range ranked {
		mark := ""
		if i < chosen {
			mark = "*"
		}
		fmt.Fprintf(w, "  %-4s %-6d %10s %10s %12s  %s\n",
			mark, c.Line,
			humanize.Bytes(uint64(c.Cost)),
			humanize.Comma(c.Bonus),
			humanize.Comma(c.Score),
			strings.Join(c.Variables, ", "))
	}
}

func init() {
	addFormatFlag(cutsCmd)
}
