package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-udf-splitter/pkg/compiler"
)

var compileCmd = &cobra.Command{
	Use:   "compile <file>",
	Short: "Split a UDF into per-argument generator methods",
	Long: `Compiles a single-function Python UDF into a class with one generator
method per formal argument. Use "-" to read from stdin.

A first line of "#<n>" requests a cut at canonical line n, and "#baseline"
selects baseline mode. The --cut and --baseline flags take precedence.
Canonical lines count the def header as line 1.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func runCompile(cmd *cobra.Command, args []string) error {
	filename, src, err := readSource(cmd, args[0])
	if err != nil {
		return err
	}
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	opts := compileOptions()
	if cmd.Flags().Changed("cut") {
		n, _ := cmd.Flags().GetInt("cut")
		opts.CutLine = &n
	}
	if baseline, _ := cmd.Flags().GetBool("baseline"); baseline {
		opts.Baseline = true
	}
	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		opts.StrictCutRequests = true
	}
	directive, _ := compiler.ParseDirective(src)
	directive.Apply(&opts)

	res, err := compiler.Compile(cmd.Context(), src, opts)
	if err != nil {
		return report(cmd, filename, src, err)
	}
	if len(res.Warnings) > 0 {
		text, _ := compiler.CanonicalSource(src, opts)
		printWarnings(cmd, filename, text, res.Warnings)
	}

	showSSA, _ := cmd.Flags().GetBool("show-ssa")
	if !showSSA {
		res.SSASource = ""
	}

	w, closeOut, err := outputWriter(cmd)
	if err != nil {
		return err
	}
	if err := writeResult(w, format, res, func(w io.Writer) error {
		if showSSA && res.SSASource != "" {
			fmt.Fprintln(w, "# single-assignment form")
			fmt.Fprintln(w, res.SSASource)
		}
		_, err := io.WriteString(w, res.GeneratedSource)
		return err
	}); err != nil {
		closeOut()
		return err
	}
	logger.Debug("compiled", "file", filename, "arguments", res.ArgumentCount, "cuts", len(res.ChosenCuts))
	return closeOut()
}

func init() {
	compileCmd.Flags().Int("cut", 0, "Requested cut line (canonical numbering)")
	compileCmd.Flags().Bool("baseline", false, "Emit a single method taking every argument")
	compileCmd.Flags().Bool("strict", false, "Fail when the requested cut is not valid")
	compileCmd.Flags().Bool("show-ssa", false, "Include the single-assignment form")
	compileCmd.Flags().StringP("output", "o", "", "Write the result to a file")
	addFormatFlag(compileCmd)
}
