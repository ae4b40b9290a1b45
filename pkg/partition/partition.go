// Package partition slices a single-assignment function at chosen cut lines
// and emits one generator method per formal argument, wrapped in a class.
package partition

import (
	"fmt"
	"sort"

	"github.com/l3aro/go-udf-splitter/pkg/normalize"
	"github.com/l3aro/go-udf-splitter/pkg/pyast"
)

// Options names the generated class and methods.
type Options struct {
	ClassName      string
	MethodPrefix   string
	BaselineMethod string
}

// DefaultOptions returns the default naming.
func DefaultOptions() Options {
	return Options{
		ClassName:      "Operator",
		MethodPrefix:   "process_table_",
		BaselineMethod: "process_tables",
	}
}

// Partition is one generated method.
type Partition struct {
	Index    int          `json:"index" yaml:"index" msgpack:"index"`
	Arg      string       `json:"arg,omitempty" yaml:"arg,omitempty" msgpack:"arg,omitempty"`
	Method   string       `json:"method" yaml:"method" msgpack:"method"`
	Params   []string     `json:"params" yaml:"params" msgpack:"params"`
	Promoted []string     `json:"promoted,omitempty" yaml:"promoted,omitempty" msgpack:"promoted,omitempty"`
	Body     []pyast.Stmt `json:"-" yaml:"-" msgpack:"-"`
}

// Result is the synthesized class.
type Result struct {
	Source     string
	Class      *pyast.ClassDef
	Partitions []Partition
}

// Synthesize splits unit at the given cut lines. unit must be in
// single-assignment form and cuts must be start lines of top-level
// statements, in canonical numbering. A function with N formal arguments
// yields N methods; missing cuts leave trailing methods empty.
func Synthesize(unit *normalize.SourceUnit, cuts []int, opts Options) (*Result, error) {
	args := unit.Args()
	body := unit.Func.Body

	if len(args) <= 1 {
		p := Partition{Index: 0, Method: opts.MethodPrefix + "0", Params: args, Body: toYields(body)}
		if len(args) == 1 {
			p.Arg = args[0]
		}
		return build(unit, opts, []Partition{p}, unit.Func.Params), nil
	}

	if len(cuts) > len(args)-1 {
		return nil, fmt.Errorf("%d cuts for %d arguments", len(cuts), len(args))
	}
	spans, err := split(body, cuts, len(args))
	if err != nil {
		return nil, err
	}

	promoted := promotions(unit, spans)
	parts := make([]Partition, len(spans))
	for i, span := range spans {
		rewritten := pyast.RewriteNames(span, func(n *pyast.Name, _ bool) pyast.Expr {
			if promoted[n.ID] {
				return pyast.SelfAttr(n.ID)
			}
			return n
		})
		parts[i] = Partition{
			Index:    i,
			Arg:      args[i],
			Method:   fmt.Sprintf("%s%d", opts.MethodPrefix, i),
			Params:   referencedArgs(span, args),
			Promoted: touchedIn(span, promoted),
			Body:     toYields(rewritten),
		}
	}
	return build(unit, opts, parts, unit.Func.Params), nil
}

// Baseline wraps the whole normalized body in one method taking every
// argument. No analysis is performed.
func Baseline(unit *normalize.SourceUnit, opts Options) *Result {
	p := Partition{
		Index:  0,
		Method: opts.BaselineMethod,
		Params: unit.Args(),
		Body:   toYields(unit.Func.Body),
	}
	return build(unit, opts, []Partition{p}, unit.Func.Params)
}

// split cuts body into n spans at the given lines.
func split(body []pyast.Stmt, cuts []int, n int) ([][]pyast.Stmt, error) {
	starts := pyast.StartLines(body, 2)
	index := make(map[int]int, len(starts))
	for i, l := range starts {
		index[l] = i
	}

	sorted := append([]int(nil), cuts...)
	sort.Ints(sorted)

	spans := make([][]pyast.Stmt, 0, n)
	from := 0
	for _, line := range sorted {
		to, ok := index[line]
		if !ok || to <= from {
			return nil, fmt.Errorf("line %d is not a statement boundary", line)
		}
		spans = append(spans, body[from:to])
		from = to
	}
	spans = append(spans, body[from:])
	for len(spans) < n {
		spans = append(spans, nil)
	}
	return spans, nil
}

// promotions returns the local variables touched in more than one span.
// Formal arguments at version 0 are never promoted. Locals confined to one
// span stay method-local on purpose; promoting them would change no result.
func promotions(unit *normalize.SourceUnit, spans [][]pyast.Stmt) map[string]bool {
	locals := make(map[string]bool)
	pyast.Walk(unit.Func.Body, func(s pyast.Stmt) bool {
		for _, n := range pyast.HeaderStores(s) {
			locals[n.ID] = true
		}
		return true
	})
	for _, a := range unit.Args() {
		delete(locals, a)
	}

	seenIn := make(map[string]int)
	promoted := make(map[string]bool)
	for i, span := range spans {
		for _, id := range touched(span) {
			if !locals[id] {
				continue
			}
			if first, ok := seenIn[id]; ok && first != i {
				promoted[id] = true
			} else if !ok {
				seenIn[id] = i
			}
		}
	}
	return promoted
}

// touched returns the names read or bound in stmts, in first-seen order.
func touched(stmts []pyast.Stmt) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(names []*pyast.Name) {
		for _, n := range names {
			if !seen[n.ID] {
				seen[n.ID] = true
				out = append(out, n.ID)
			}
		}
	}
	pyast.Walk(stmts, func(s pyast.Stmt) bool {
		add(pyast.HeaderReads(s))
		add(pyast.HeaderStores(s))
		return true
	})
	return out
}

func touchedIn(span []pyast.Stmt, promoted map[string]bool) []string {
	var out []string
	for _, id := range touched(span) {
		if promoted[id] {
			out = append(out, id)
		}
	}
	return out
}

// referencedArgs returns the formal arguments read in span, in declaration
// order.
func referencedArgs(span []pyast.Stmt, args []string) []string {
	used := make(map[string]bool)
	for _, id := range touched(span) {
		used[id] = true
	}
	var out []string
	for _, a := range args {
		if used[a] {
			out = append(out, a)
		}
	}
	return out
}

// toYields turns returns into yields. A top-level return closing the body
// becomes a plain yield; any other return yields its value and then
// returns. A body that does not end in a return yields None at the end.
func toYields(body []pyast.Stmt) []pyast.Stmt {
	out := make([]pyast.Stmt, 0, len(body)+1)
	for i, s := range body {
		if r, ok := s.(*pyast.Return); ok && i == len(body)-1 {
			out = append(out, yieldOf(r))
			return out
		}
		out = append(out, nestedYields(s)...)
	}
	return append(out, &pyast.ExprStmt{X: &pyast.Yield{Value: pyast.NoneConst()}})
}

func nestedYields(s pyast.Stmt) []pyast.Stmt {
	switch s := s.(type) {
	case *pyast.Return:
		return []pyast.Stmt{yieldOf(s), &pyast.Return{Pos: s.Pos}}
	case *pyast.If:
		return []pyast.Stmt{&pyast.If{Pos: s.Pos, Test: s.Test, Body: nestedBlock(s.Body), Else: nestedBlock(s.Else)}}
	case *pyast.For:
		return []pyast.Stmt{&pyast.For{
			Pos:    s.Pos,
			Target: s.Target,
			Iter:   s.Iter,
			Body:   nestedBlock(s.Body),
			Else:   nestedBlock(s.Else),
			Async:  s.Async,
		}}
	case *pyast.While:
		return []pyast.Stmt{&pyast.While{Pos: s.Pos, Test: s.Test, Body: nestedBlock(s.Body), Else: nestedBlock(s.Else)}}
	}
	return []pyast.Stmt{s}
}

func nestedBlock(body []pyast.Stmt) []pyast.Stmt {
	if body == nil {
		return nil
	}
	out := make([]pyast.Stmt, 0, len(body))
	for _, s := range body {
		out = append(out, nestedYields(s)...)
	}
	return out
}

func yieldOf(r *pyast.Return) pyast.Stmt {
	v := r.Value
	if v == nil {
		v = pyast.NoneConst()
	}
	return &pyast.ExprStmt{Pos: r.Pos, X: &pyast.Yield{Value: v}}
}

// build assembles the class and its source. declared supplies annotations
// and defaults for the parameters of each method.
func build(unit *normalize.SourceUnit, opts Options, parts []Partition, declared []pyast.Param) *Result {
	byName := make(map[string]pyast.Param, len(declared))
	for _, p := range declared {
		byName[p.Name] = p
	}

	cls := &pyast.ClassDef{Name: opts.ClassName}
	for _, part := range parts {
		params := []pyast.Param{{Name: "self"}}
		for _, name := range part.Params {
			params = append(params, byName[name])
		}
		cls.Body = append(cls.Body, &pyast.FuncDef{Name: part.Method, Params: params, Body: part.Body})
	}

	mod := &pyast.Module{}
	for _, imp := range unit.Imports {
		mod.Body = append(mod.Body, &pyast.Import{Text: imp})
	}
	mod.Body = append(mod.Body, cls)

	return &Result{Source: pyast.Print(mod), Class: cls, Partitions: parts}
}
