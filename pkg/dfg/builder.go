package dfg

import (
	"fmt"
	"sort"

	"github.com/l3aro/go-udf-splitter/pkg/diag"
	"github.com/l3aro/go-udf-splitter/pkg/normalize"
	"github.com/l3aro/go-udf-splitter/pkg/pyast"
)

// HeaderLine is the canonical line of the def header, where formal
// arguments are defined.
const HeaderLine = 1

// Build constructs the dependency graph of a function in single-assignment
// form. Only local variables (formal arguments and names bound in the body)
// become vertices; globals and builtins are ignored.
func Build(unit *normalize.SourceUnit) (*Graph, error) {
	body := unit.Func.Body
	b := &builder{
		graph: &Graph{
			Function: unit.Func.Name,
			Params:   unit.Args(),
			index:    make(map[VertexKey]int),
		},
		locals: make(map[string]bool),
		uses:   make(map[string][]int),
	}
	for _, p := range b.graph.Params {
		b.locals[p] = true
	}
	for _, base := range pyast.StoredBases(body) {
		b.locals[base] = true
	}

	for _, p := range b.graph.Params {
		b.add(&pyast.Name{ID: p, Base: p}, HeaderLine, true)
	}

	lines, _ := pyast.Lines(body, HeaderLine+1)
	b.lines = lines
	for i, start := range pyast.StartLines(body, HeaderLine+1) {
		b.graph.Statements = append(b.graph.Statements, Statement{
			Start: start,
			End:   start + pyast.Height(body[i]) - 1,
		})
	}

	if err := b.block(body); err != nil {
		return nil, err
	}
	b.temporal()
	b.graph.Types = InferTypes(unit)
	return b.graph, nil
}

type builder struct {
	graph  *Graph
	lines  map[pyast.Stmt]int
	locals map[string]bool
	uses   map[string][]int // var -> lines of its use vertices, ascending
}

func (b *builder) local(n *pyast.Name) bool {
	return b.locals[n.BaseName()]
}

// add records a def or use of n at line, merging with an existing vertex.
func (b *builder) add(n *pyast.Name, line int, def bool) VertexKey {
	k := VertexKey{Var: n.ID, Line: line}
	i, ok := b.graph.index[k]
	if !ok {
		i = len(b.graph.Vertices)
		b.graph.Vertices = append(b.graph.Vertices, Vertex{Var: n.ID, Base: n.BaseName(), Line: line})
		b.graph.index[k] = i
	}
	v := &b.graph.Vertices[i]
	if def {
		v.Def = true
	} else if !v.Use {
		v.Use = true
		b.uses[n.ID] = append(b.uses[n.ID], line)
	}
	return k
}

// latestUse returns the use vertex of v with the greatest line <= line.
func (b *builder) latestUse(v string, line int) (VertexKey, bool) {
	lines := b.uses[v]
	i := sort.SearchInts(lines, line+1) - 1
	if i < 0 {
		return VertexKey{}, false
	}
	return VertexKey{Var: v, Line: lines[i]}, true
}

func (b *builder) edge(from, to VertexKey, kind EdgeKind) {
	if from == to {
		return
	}
	b.graph.Edges = append(b.graph.Edges, Edge{From: from, To: to, Kind: kind})
}

// readAll adds use vertices for the local names in names and returns the
// distinct variables read.
func (b *builder) readAll(names []*pyast.Name, line int) []string {
	var vars []string
	seen := make(map[string]bool)
	for _, n := range names {
		if !b.local(n) {
			continue
		}
		b.add(n, line, false)
		if !seen[n.ID] {
			seen[n.ID] = true
			vars = append(vars, n.ID)
		}
	}
	return vars
}

// assign links every variable read by the statement to the vertex it
// defines or mutates.
func (b *builder) assign(reads []string, target VertexKey, line int) {
	for _, v := range reads {
		if from, ok := b.latestUse(v, line); ok {
			b.edge(from, target, EdgeAssignment)
		}
	}
}

// bind handles the targets of an assignment-like statement.
func (b *builder) bind(targets []pyast.Expr, reads []string, line int) {
	for _, t := range targets {
		for _, n := range pyast.TargetNames(t) {
			if b.local(n) {
				b.assign(reads, b.add(n, line, true), line)
			}
		}
		if base, ok := pyast.MutatedBase(t); ok && t != pyast.Expr(base) && b.local(base) {
			b.assign(reads, b.add(base, line, false), line)
		}
		switch seq := t.(type) {
		case *pyast.Tuple:
			b.bind(mutations(seq.Elts), reads, line)
		case *pyast.List:
			b.bind(mutations(seq.Elts), reads, line)
		}
	}
}

// mutations returns the attribute and subscript elements of a target sequence.
func mutations(elts []pyast.Expr) []pyast.Expr {
	var out []pyast.Expr
	for _, el := range elts {
		switch el.(type) {
		case *pyast.Attribute, *pyast.Subscript:
			out = append(out, el)
		}
	}
	return out
}

func (b *builder) block(body []pyast.Stmt) error {
	for _, s := range body {
		if err := b.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) stmt(s pyast.Stmt) error {
	line := b.lines[s]

	switch s := s.(type) {
	case *pyast.Assign:
		reads := b.readAll(pyast.HeaderReads(s), line)
		b.bind(s.Targets, reads, line)
	case *pyast.AugAssign:
		reads := b.readAll(pyast.HeaderReads(s), line)
		b.bind([]pyast.Expr{s.Target}, reads, line)
	case *pyast.For:
		reads := b.readAll(pyast.HeaderReads(s), line)
		b.bind([]pyast.Expr{s.Target}, reads, line)
		if err := b.block(s.Body); err != nil {
			return err
		}
		return b.block(s.Else)
	case *pyast.If:
		b.readAll(pyast.HeaderReads(s), line)
		if err := b.block(s.Body); err != nil {
			return err
		}
		return b.block(s.Else)
	case *pyast.While:
		b.readAll(pyast.HeaderReads(s), line)
		if err := b.block(s.Body); err != nil {
			return err
		}
		return b.block(s.Else)
	case *pyast.ExprStmt, *pyast.Return, *pyast.Raise, *pyast.Assert:
		b.readAll(pyast.HeaderReads(s), line)
	case *pyast.Pass, *pyast.Break, *pyast.Continue, *pyast.Import:
	case *pyast.FuncDef:
		return diag.Unsupported(s.Line, "nested function "+s.Name)
	case *pyast.ClassDef:
		return diag.Unsupported(s.Line, "nested class "+s.Name)
	case *pyast.Opaque:
		return diag.Unsupported(s.Line, s.Kind)
	default:
		return diag.Unsupported(s.SourceLine(), fmt.Sprintf("%T", s))
	}
	return nil
}

// temporal chains the vertices of each base variable in line order.
func (b *builder) temporal() {
	groups := make(map[string][]int)
	var order []string
	for i, v := range b.graph.Vertices {
		if _, ok := groups[v.Base]; !ok {
			order = append(order, v.Base)
		}
		groups[v.Base] = append(groups[v.Base], i)
	}
	for _, base := range order {
		idx := groups[base]
		sort.SliceStable(idx, func(i, j int) bool {
			return b.graph.Vertices[idx[i]].Line < b.graph.Vertices[idx[j]].Line
		})
		for i := 1; i < len(idx); i++ {
			b.edge(b.graph.Vertices[idx[i-1]].Key(), b.graph.Vertices[idx[i]].Key(), EdgeTemporal)
		}
	}
}
