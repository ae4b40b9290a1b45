package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-udf-splitter/pkg/compiler"
	"github.com/l3aro/go-udf-splitter/pkg/diag"
	"github.com/l3aro/go-udf-splitter/pkg/ports"
)

// pruneResult is the structured output of the prune command.
type pruneResult struct {
	Source   string        `json:"source" yaml:"source" msgpack:"source"`
	Ports    string        `json:"ports" yaml:"ports" msgpack:"ports"`
	Disabled int           `json:"disabled" yaml:"disabled" msgpack:"disabled"`
	Changed  bool          `json:"changed" yaml:"changed" msgpack:"changed"`
	Warnings []*diag.Error `json:"warnings,omitempty" yaml:"warnings,omitempty" msgpack:"warnings,omitempty"`
}

var pruneCmd = &cobra.Command{
	Use:   "prune <file>",
	Short: "Remove code feeding disabled output ports",
	Long: `Removes emissions of the form "yield value, port" to disabled ports,
then drops every statement only they depended on. Ports are configured with
--ports ("0=on, 1=off") or a JSON file given with --ports-file
({"1": false}). Ports not mentioned are enabled.`,
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
		portMap, err := portMapFromFlags(cmd)
		if err != nil {
			return err
		}
		logger.Debug("port configuration", "ports", portMap.String())

		out, warnings, err := compiler.EliminateDisabledPorts(src, portMap)
		if err != nil {
			return report(cmd, filename, src, err)
		}
		printWarnings(cmd, filename, src, warnings)

		res := pruneResult{
			Source:   out,
			Ports:    portMap.String(),
			Disabled: portMap.Disabled(),
			Changed:  out != src,
			Warnings: warnings,
		}
		w, closeOut, err := outputWriter(cmd)
		if err != nil {
			return err
		}
		if err := writeResult(w, format, res, func(w io.Writer) error {
			_, err := io.WriteString(w, out)
			return err
		}); err != nil {
			closeOut()
			return err
		}
		return closeOut()
	},
}

func portMapFromFlags(cmd *cobra.Command) (ports.PortMap, error) {
	spec, _ := cmd.Flags().GetString("ports")
	file, _ := cmd.Flags().GetString("ports-file")
	switch {
	case spec != "" && file != "":
		return nil, errors.New("use either --ports or --ports-file, not both")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading port config: %w", err)
		}
		return ports.ParsePortConfig(data)
	default:
		return ports.ParsePortSpec(spec)
	}
}

func init() {
	pruneCmd.Flags().StringP("ports", "p", "", `Port states, e.g. "0=on, 1=off"`)
	pruneCmd.Flags().String("ports-file", "", "JSON file mapping port numbers to enabled state")
	pruneCmd.Flags().StringP("output", "o", "", "Write the result to a file")
	addFormatFlag(pruneCmd)
}
