package commands

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-udf-splitter/pkg/stream"
)

var streamCmd = &cobra.Command{
	Use:   "stream <file>",
	Short: "Rewrite accumulate-then-return loops into generators",
	Long: `Rewrites functions that build a list in a loop and return it at the end
into generators that emit one labeled item per iteration. Functions inside
classes are rewritten too. Input without such functions is printed
unchanged.`,
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

		res, err := stream.Rewrite(src)
		if err != nil {
			return report(cmd, filename, src, err)
		}
		if res.Changed {
			logger.Info("rewrote functions", "file", filename, "functions", res.Functions)
		} else {
			logger.Debug("nothing to rewrite", "file", filename)
		}

		w, closeOut, err := outputWriter(cmd)
		if err != nil {
			return err
		}
		if err := writeResult(w, format, res, func(w io.Writer) error {
			_, err := io.WriteString(w, res.Source)
			return err
		}); err != nil {
			closeOut()
			return err
		}
		return closeOut()
	},
}

func init() {
	streamCmd.Flags().StringP("output", "o", "", "Write the result to a file")
	addFormatFlag(streamCmd)
}
