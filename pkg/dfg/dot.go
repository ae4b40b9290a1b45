package dfg

import (
	"fmt"
	"sort"
	"strings"
)

// DOT renders the graph in Graphviz format. Vertices sharing a line are
// placed on the same rank; temporal edges are dashed blue and assignment
// edges solid red.
func (g *Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph VariableDependencyGraph {\n")
	b.WriteString("    rankdir=TB;\n")
	b.WriteString("    node [shape=box, style=filled, fontname=\"Arial\"];\n")
	b.WriteString("    edge [fontname=\"Arial\", fontsize=10];\n")

	params := make(map[string]bool, len(g.Params))
	for _, p := range g.Params {
		params[p] = true
	}

	byLine := make(map[int][]Vertex)
	var lines []int
	for _, v := range g.Vertices {
		if _, ok := byLine[v.Line]; !ok {
			lines = append(lines, v.Line)
		}
		byLine[v.Line] = append(byLine[v.Line], v)
	}
	sort.Ints(lines)

	for _, line := range lines {
		vs := byLine[line]
		sort.SliceStable(vs, func(i, j int) bool { return vs[i].Var < vs[j].Var })

		fmt.Fprintf(&b, "\n    subgraph cluster_line_%d {\n", line)
		b.WriteString("        rank=same;\n")
		fmt.Fprintf(&b, "        label=\"Line %d\";\n", line)
		b.WriteString("        style=invis;\n")
		for _, v := range vs {
			color := "lightyellow"
			switch {
			case params[v.Var]:
				color = "lightblue"
			case v.Var != v.Base:
				color = "lightgreen"
			}
			fmt.Fprintf(&b, "        %s [label=\"%s\\n(line %d)\", fillcolor=\"%s\"];\n", dotID(v.Key()), v.Var, v.Line, color)
		}
		b.WriteString("    }\n")
	}

	if len(g.Edges) > 0 {
		b.WriteByte('\n')
	}
	for _, e := range g.Edges {
		style := "[color=red, style=solid]"
		if e.Kind == EdgeTemporal {
			style = "[color=blue, style=dashed]"
		}
		fmt.Fprintf(&b, "    %s -> %s %s;\n", dotID(e.From), dotID(e.To), style)
	}
	b.WriteString("}\n")
	return b.String()
}

func dotID(k VertexKey) string {
	return fmt.Sprintf("%q", fmt.Sprintf("%s_%d", k.Var, k.Line))
}
