// Package ports removes the code of a generator that only serves disabled
// output ports. Emissions are `yield value, port` statements with an integer
// literal port.
package ports

import (
	"strconv"

	"github.com/l3aro/go-udf-splitter/pkg/diag"
	"github.com/l3aro/go-udf-splitter/pkg/pyast"
)

// PortMap tells which ports are enabled. Ports missing from the map are
// enabled.
type PortMap map[int]bool

// Enabled reports whether port is enabled.
func (m PortMap) Enabled(port int) bool {
	on, ok := m[port]
	return !ok || on
}

// Disabled returns the number of disabled ports in m.
func (m PortMap) Disabled() int {
	n := 0
	for _, on := range m {
		if !on {
			n++
		}
	}
	return n
}

// Result is the outcome of an elimination.
type Result struct {
	Source   string        `json:"source" yaml:"source" msgpack:"source"`
	Changed  bool          `json:"changed" yaml:"changed" msgpack:"changed"`
	Warnings []*diag.Error `json:"warnings,omitempty" yaml:"warnings,omitempty" msgpack:"warnings,omitempty"`
}

// Eliminate drops the emissions to disabled ports from every emitting
// function of src, then the statements no remaining emission depends on.
// Functions without emissions are left alone. When nothing changes the
// source is returned as is.
func Eliminate(src string, ports PortMap) (*Result, error) {
	mod, err := pyast.ParseString(src)
	if err != nil {
		return nil, err
	}
	e := &eliminator{ports: ports}
	out := &pyast.Module{Body: e.defs(mod.Body)}
	if pyast.Print(out) == pyast.Print(mod) {
		return &Result{Source: src, Warnings: e.warnings}, nil
	}
	return &Result{Source: pyast.Print(out), Changed: true, Warnings: e.warnings}, nil
}

type eliminator struct {
	ports    PortMap
	warnings []*diag.Error
}

func (e *eliminator) defs(body []pyast.Stmt) []pyast.Stmt {
	out := make([]pyast.Stmt, len(body))
	for i, s := range body {
		switch s := s.(type) {
		case *pyast.FuncDef:
			out[i] = e.function(s)
		case *pyast.ClassDef:
			cls := *s
			cls.Body = e.defs(s.Body)
			out[i] = &cls
		default:
			out[i] = s
		}
	}
	return out
}

func (e *eliminator) function(fn *pyast.FuncDef) *pyast.FuncDef {
	if !containsEmission(fn.Body) {
		return fn
	}
	body, _ := liveness(truncate(e.prune(fn.Body)), live{})
	if !containsEmission(body) {
		e.warnings = append(e.warnings, diag.EmptyResult(fn.Line, fn.Name))
		body = nil
	}
	out := *fn
	out.Body = body
	return &out
}

// Port returns the port of an emission statement.
func Port(s pyast.Stmt) (int, bool) {
	es, ok := s.(*pyast.ExprStmt)
	if !ok {
		return 0, false
	}
	y, ok := es.X.(*pyast.Yield)
	if !ok || y.From {
		return 0, false
	}
	t, ok := y.Value.(*pyast.Tuple)
	if !ok || len(t.Elts) != 2 {
		return 0, false
	}
	c, ok := t.Elts[1].(*pyast.Constant)
	if !ok || c.Kind != pyast.ConstInt {
		return 0, false
	}
	port, err := strconv.ParseInt(c.Text, 0, 0)
	if err != nil {
		return 0, false
	}
	return int(port), true
}

func containsEmission(stmts []pyast.Stmt) bool {
	found := false
	pyast.Walk(stmts, func(s pyast.Stmt) bool {
		if _, ok := Port(s); ok {
			found = true
		}
		_, isDef := s.(*pyast.FuncDef)
		return !found && !isDef
	})
	return found
}

// prune removes the emissions to disabled ports and the branches and loops
// left empty by the removal.
func (e *eliminator) prune(stmts []pyast.Stmt) []pyast.Stmt {
	var out []pyast.Stmt
	for _, s := range stmts {
		if port, ok := Port(s); ok && !e.ports.Enabled(port) {
			continue
		}
		switch s := s.(type) {
		case *pyast.If:
			if s := simplify(s, e.prune(s.Body), e.prune(s.Else)); s != nil {
				out = append(out, s)
			}
		case *pyast.For:
			body := e.prune(s.Body)
			if len(body) == 0 {
				out = append(out, e.prune(s.Else)...)
				continue
			}
			out = append(out, &pyast.For{
				Pos:    s.Pos,
				Target: s.Target,
				Iter:   s.Iter,
				Body:   body,
				Else:   e.prune(s.Else),
				Async:  s.Async,
			})
		case *pyast.While:
			body := e.prune(s.Body)
			if len(body) == 0 {
				out = append(out, e.prune(s.Else)...)
				continue
			}
			out = append(out, &pyast.While{Pos: s.Pos, Test: s.Test, Body: body, Else: e.prune(s.Else)})
		default:
			out = append(out, s)
		}
	}
	return out
}

// simplify rebuilds an if statement from its pruned branches. It returns
// nil when both branches are empty and negates the test when only the body
// is.
func simplify(s *pyast.If, body, orelse []pyast.Stmt) pyast.Stmt {
	switch {
	case len(body) == 0 && len(orelse) == 0:
		return nil
	case len(body) == 0:
		return &pyast.If{Pos: s.Pos, Test: negate(s.Test), Body: orelse}
	}
	return &pyast.If{Pos: s.Pos, Test: s.Test, Body: body, Else: orelse}
}

func negate(test pyast.Expr) pyast.Expr {
	if u, ok := test.(*pyast.UnaryOp); ok && u.Op == "not" {
		return u.X
	}
	return &pyast.UnaryOp{Op: "not", X: test}
}

// truncate drops the statements after the last top-level statement that
// yields.
func truncate(stmts []pyast.Stmt) []pyast.Stmt {
	for i := len(stmts) - 1; i >= 0; i-- {
		if pyast.StmtContainsYield(stmts[i]) {
			return stmts[:i+1]
		}
	}
	return nil
}
