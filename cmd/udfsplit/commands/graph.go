package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/l3aro/go-udf-splitter/pkg/compiler"
	"github.com/l3aro/go-udf-splitter/pkg/dfg"
)

var graphCmd = &cobra.Command{
	Use:   "graph <file>",
	Short: "Show the variable dependency graph of a UDF",
	Long: `Shows the dependency graph of a UDF in single-assignment form. Each
vertex is listed under its canonical line with the edges flowing into it.
Use --dot for Graphviz output.`,
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

		if dot, _ := cmd.Flags().GetBool("dot"); dot {
			_, err := io.WriteString(cmd.OutOrStdout(), a.Graph.DOT())
			return err
		}
		return writeResult(cmd.OutOrStdout(), format, a.Graph, func(w io.Writer) error {
			_, err := io.WriteString(w, renderGraph(a.Graph))
			return err
		})
	},
}

// renderGraph prints the vertices grouped by line, each with its incoming
// edges.
func renderGraph(g *dfg.Graph) string {
	incoming := make(map[dfg.VertexKey][]dfg.Edge)
	for _, e := range g.Edges {
		incoming[e.To] = append(incoming[e.To], e)
	}

	vertices := append([]dfg.Vertex(nil), g.Vertices...)
	sort.SliceStable(vertices, func(i, j int) bool {
		if vertices[i].Line != vertices[j].Line {
			return vertices[i].Line < vertices[j].Line
		}
		return vertices[i].Var < vertices[j].Var
	})

	tree := treeprint.New()
	fn := tree.AddBranch(fmt.Sprintf("%s(%s)", g.Function, strings.Join(g.Params, ", ")))
	var line treeprint.Tree
	current := 0
	for _, v := range vertices {
		if line == nil || v.Line != current {
			line = fn.AddBranch(fmt.Sprintf("line %d", v.Line))
			current = v.Line
		}
		node := line.AddMetaBranch(vertexRole(v), v.Var)
		for _, e := range incoming[v.Key()] {
			node.AddMetaNode(string(e.Kind), fmt.Sprintf("%s@%d", e.From.Var, e.From.Line))
		}
	}
	return tree.String()
}

func vertexRole(v dfg.Vertex) string {
	switch {
	case v.Def && v.Use:
		return "def+use"
	case v.Def:
		return "def"
	default:
		return "use"
	}
}

func init() {
	graphCmd.Flags().Bool("dot", false, "Output Graphviz DOT")
	addFormatFlag(graphCmd)
}
