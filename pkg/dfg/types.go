// Package dfg defines the variable dependency graph built over a function
// in single-assignment form. It provides vertex, edge and type-tag types,
// the graph builder, cycle detection and DOT export.
package dfg

// EdgeKind classifies a dependency edge.
type EdgeKind string

const (
	EdgeTemporal   EdgeKind = "temporal"   // successive vertices of one base variable
	EdgeAssignment EdgeKind = "assignment" // value read flows into a definition
)

// VertexKey identifies a vertex: one SSA variable at one canonical line.
type VertexKey struct {
	Var  string `json:"var" yaml:"var" msgpack:"var"`
	Line int    `json:"line" yaml:"line" msgpack:"line"`
}

// Vertex is a definition and/or use site of one SSA variable.
type Vertex struct {
	Var  string `json:"var" yaml:"var" msgpack:"var"`    // printed SSA name
	Base string `json:"base" yaml:"base" msgpack:"base"` // unversioned name
	Line int    `json:"line" yaml:"line" msgpack:"line"`
	Def  bool   `json:"def" yaml:"def" msgpack:"def"`
	Use  bool   `json:"use" yaml:"use" msgpack:"use"`
}

// Key returns the vertex identity.
func (v Vertex) Key() VertexKey {
	return VertexKey{Var: v.Var, Line: v.Line}
}

// Edge is a directed dependency between two vertices.
type Edge struct {
	From VertexKey `json:"from" yaml:"from" msgpack:"from"`
	To   VertexKey `json:"to" yaml:"to" msgpack:"to"`
	Kind EdgeKind  `json:"kind" yaml:"kind" msgpack:"kind"`
}

// Crosses reports whether the edge spans line, i.e. one endpoint lies
// before line and the other at or after it.
func (e Edge) Crosses(line int) bool {
	return e.From.Line < line && e.To.Line >= line
}

// Statement is the canonical line range of one top-level statement.
type Statement struct {
	Start int `json:"start" yaml:"start" msgpack:"start"`
	End   int `json:"end" yaml:"end" msgpack:"end"`
}

// Contains reports whether line falls inside the statement.
func (s Statement) Contains(line int) bool {
	return line >= s.Start && line <= s.End
}

// Graph is the dependency graph of one function.
type Graph struct {
	Function   string      `json:"function" yaml:"function" msgpack:"function"`
	Params     []string    `json:"params" yaml:"params" msgpack:"params"`
	Vertices   []Vertex    `json:"vertices" yaml:"vertices" msgpack:"vertices"`
	Edges      []Edge      `json:"edges" yaml:"edges" msgpack:"edges"`
	Statements []Statement `json:"statements" yaml:"statements" msgpack:"statements"`
	Types      TypeMap     `json:"types" yaml:"types" msgpack:"types"`

	index map[VertexKey]int
}

// Vertex returns the vertex with the given key.
func (g *Graph) Vertex(k VertexKey) (Vertex, bool) {
	i, ok := g.index[k]
	if !ok {
		return Vertex{}, false
	}
	return g.Vertices[i], true
}

// FirstUse returns the smallest line at which param is read, or 0 if the
// parameter is never read.
func (g *Graph) FirstUse(param string) int {
	first := 0
	for _, v := range g.Vertices {
		if v.Var != param || !v.Use {
			continue
		}
		if first == 0 || v.Line < first {
			first = v.Line
		}
	}
	return first
}

// StatementAt returns the top-level statement containing line.
func (g *Graph) StatementAt(line int) (Statement, bool) {
	for _, s := range g.Statements {
		if s.Contains(line) {
			return s, true
		}
	}
	return Statement{}, false
}

// TypeOf returns the inferred type of an SSA variable.
func (g *Graph) TypeOf(v string) TypeTag {
	if t, ok := g.Types[v]; ok {
		return t
	}
	return TypeUnknown
}

// successors returns the adjacency list indexed like Vertices.
func (g *Graph) successors() [][]int {
	adj := make([][]int, len(g.Vertices))
	for _, e := range g.Edges {
		from, ok := g.index[e.From]
		if !ok {
			continue
		}
		to, ok := g.index[e.To]
		if !ok {
			continue
		}
		adj[from] = append(adj[from], to)
	}
	return adj
}
