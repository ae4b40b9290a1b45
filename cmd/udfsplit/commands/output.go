package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-udf-splitter/internal/config"
	"github.com/l3aro/go-udf-splitter/pkg/compiler"
	"github.com/l3aro/go-udf-splitter/pkg/diag"
)

// errReported marks an error whose diagnostic was already printed.
var errReported = errors.New("diagnostic reported")

// readSource reads a UDF from path, or from stdin when path is "-".
func readSource(cmd *cobra.Command, path string) (string, string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return "<stdin>", string(data), nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", "", fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return "", "", fmt.Errorf("path is a directory, expected a file: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", path, err)
	}
	return path, string(data), nil
}

// outputFormat returns the --format flag, falling back to the configured
// default.
func outputFormat(cmd *cobra.Command) (config.OutputFormat, error) {
	format := cfg.OutputFormat
	if f, _ := cmd.Flags().GetString("format"); f != "" {
		format = config.OutputFormat(f)
	}
	switch format {
	case config.FormatText, config.FormatJSON, config.FormatYAML, config.FormatMsgpack:
		return format, nil
	}
	return "", fmt.Errorf("unknown output format %q (use text, json, yaml or msgpack)", format)
}

func addFormatFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "", "Output format: text, json, yaml or msgpack")
}

// writeResult renders v in a structured format, or calls text for the
// text format.
func writeResult(w io.Writer, format config.OutputFormat, v interface{}, text func(io.Writer) error) error {
	switch format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case config.FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(v)
	default:
		return text(w)
	}
}

// outputWriter returns the --output file, or stdout when unset. The
// returned close function must be called.
func outputWriter(cmd *cobra.Command) (io.Writer, func() error, error) {
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// report renders a compiler diagnostic against the text its line refers
// to. Normalization errors point into the input as written; other kinds
// use canonical line numbers.
func report(cmd *cobra.Command, filename, source string, err error) error {
	d, ok := diag.AsError(err)
	if !ok {
		return err
	}
	text := source
	if d.Kind != diag.KindNormalization {
		if canonical, cerr := compiler.CanonicalSource(source, compileOptions()); cerr == nil {
			text = canonical
		}
	}
	fmt.Fprint(cmd.ErrOrStderr(), diag.NewReporter(filename, text).Format(d))
	return fmt.Errorf("%w: %w", errReported, err)
}

// printWarnings renders warnings against text.
func printWarnings(cmd *cobra.Command, filename, text string, warnings []*diag.Error) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprint(cmd.ErrOrStderr(), diag.NewReporter(filename, text).FormatAll(warnings))
}
