// Package ssa converts a normalized function body to single-assignment form.
//
// Every binding of a local name creates a new version. The first binding of
// a name keeps the bare identifier (version 0); later ones are printed as
// base_N. Reads resolve to the newest version bound before them, and names
// never bound in the function (arguments, globals, builtins) stay unversioned.
//
// Compound statements (if, for, while) use one merged version per name bound
// inside them. When the name is bound on every path reaching the compound, a
// copy `x_k = x_j` is placed before it, so every path through it sees a
// defined value and the merged version is current after it. A name that may
// be unbound gets no copy; if its prior value could still be read, Convert
// fails with an unsupported construct error instead.
package ssa

import (
	"fmt"
	"strings"

	"github.com/l3aro/go-udf-splitter/pkg/diag"
	"github.com/l3aro/go-udf-splitter/pkg/normalize"
	"github.com/l3aro/go-udf-splitter/pkg/pyast"
)

// Version identifies one incarnation of a variable.
type Version struct {
	Base  string
	Index int
}

func (v Version) String() string {
	return fmt.Sprintf("%s#%d", v.Base, v.Index)
}

// TempPrefix prefixes the temporaries introduced for tuple unpacking.
const TempPrefix = "_tmp_"

// Convert returns a single-assignment copy of unit.
func Convert(unit *normalize.SourceUnit) (*normalize.SourceUnit, error) {
	c := newConverter(unit)
	for _, name := range pyast.ParamNames(unit.Func) {
		c.current[name] = 0
		c.highest[name] = 0
		c.bound[name] = true
	}

	body, err := c.block(unit.Func.Body)
	if err != nil {
		return nil, err
	}
	return unit.WithBody(body), nil
}

// converter carries the versioning state of one Convert call.
type converter struct {
	current map[string]int // base -> version visible at this point
	highest map[string]int // base -> highest version allocated
	merged  []map[string]bool
	bound   map[string]bool // bases bound on every path to the current top-level statement
	rest    []pyast.Stmt    // top-level statements after the current one
	taken   map[string]bool // identifiers present in the source
	names   map[Version]string
	tmp     int
}

func newConverter(unit *normalize.SourceUnit) *converter {
	c := &converter{
		current: make(map[string]int),
		highest: make(map[string]int),
		bound:   make(map[string]bool),
		taken:   make(map[string]bool),
		names:   make(map[Version]string),
	}
	for _, name := range pyast.ParamNames(unit.Func) {
		c.taken[name] = true
	}
	pyast.Walk(unit.Func.Body, func(s pyast.Stmt) bool {
		for _, n := range pyast.HeaderReads(s) {
			c.taken[n.ID] = true
		}
		for _, n := range pyast.HeaderStores(s) {
			c.taken[n.ID] = true
		}
		return true
	})
	return c
}

// name returns the printed identifier of a version.
func (c *converter) name(v Version) string {
	if v.Index == 0 {
		return v.Base
	}
	if n, ok := c.names[v]; ok {
		return n
	}
	n := fmt.Sprintf("%s_%d", v.Base, v.Index)
	for c.taken[n] {
		n += "_"
	}
	c.taken[n] = true
	c.names[v] = n
	return n
}

func (c *converter) ref(base string, index int) *pyast.Name {
	return &pyast.Name{ID: c.name(Version{Base: base, Index: index}), Base: base, Version: index}
}

func (c *converter) isMerged(base string) bool {
	for _, m := range c.merged {
		if m[base] {
			return true
		}
	}
	return false
}

// define allocates the version written by a binding of base.
func (c *converter) define(base string) *pyast.Name {
	if c.isMerged(base) {
		return c.ref(base, c.current[base])
	}
	idx := 0
	if _, ok := c.highest[base]; ok {
		idx = c.highest[base] + 1
	}
	c.highest[base] = idx
	c.current[base] = idx
	return c.ref(base, idx)
}

// read resolves a read of n.
func (c *converter) read(n *pyast.Name) pyast.Expr {
	idx, ok := c.current[n.ID]
	if !ok {
		return &pyast.Name{ID: n.ID, Base: n.ID}
	}
	return c.ref(n.ID, idx)
}

// expr rewrites the reads of e, rejecting constructs that cannot be versioned.
func (c *converter) expr(e pyast.Expr, line int) (pyast.Expr, error) {
	if e == nil {
		return nil, nil
	}
	if err := checkExpr(e, line); err != nil {
		return nil, err
	}
	return pyast.MapNames(e, c.read), nil
}

func checkExpr(e pyast.Expr, line int) error {
	if pyast.ContainsYield(e) {
		return diag.Unsupported(line, "yield")
	}
	var err error
	pyast.Inspect(e, func(x pyast.Expr) bool {
		if r, ok := x.(*pyast.RawExpr); ok && err == nil {
			err = diag.Unsupported(line, strings.ReplaceAll(r.Kind, "_", " "))
		}
		return err == nil
	})
	return err
}

// target rewrites a binding target: names get new versions, attribute and
// subscript targets only have their reads resolved.
func (c *converter) target(e pyast.Expr, line int) (pyast.Expr, error) {
	switch t := e.(type) {
	case *pyast.Name:
		return c.define(t.ID), nil
	case *pyast.Tuple:
		elts, err := c.targets(t.Elts, line)
		if err != nil {
			return nil, err
		}
		return &pyast.Tuple{Elts: elts}, nil
	case *pyast.List:
		elts, err := c.targets(t.Elts, line)
		if err != nil {
			return nil, err
		}
		return &pyast.List{Elts: elts}, nil
	case *pyast.Starred:
		return nil, diag.Unsupported(line, "starred assignment target")
	case *pyast.Attribute, *pyast.Subscript:
		return c.expr(t, line)
	}
	return nil, diag.Unsupported(line, "assignment target "+pyast.ExprString(e))
}

func (c *converter) targets(elts []pyast.Expr, line int) ([]pyast.Expr, error) {
	out := make([]pyast.Expr, len(elts))
	for i, el := range elts {
		x, err := c.target(el, line)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

func (c *converter) block(body []pyast.Stmt) ([]pyast.Stmt, error) {
	var out []pyast.Stmt
	top := len(c.merged) == 0
	for i, s := range body {
		if top {
			c.rest = body[i+1:]
		}
		stmts, err := c.stmt(s)
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
		if top {
			bound, _ := boundAfter([]pyast.Stmt{s})
			union(c.bound, bound)
		}
	}
	return out, nil
}

func (c *converter) stmt(s pyast.Stmt) ([]pyast.Stmt, error) {
	line := s.SourceLine()

	switch s := s.(type) {
	case *pyast.Assign:
		if swap, ok := c.unpack(s); ok {
			return swap()
		}
		value, err := c.expr(s.Value, line)
		if err != nil {
			return nil, err
		}
		targets := make([]pyast.Expr, len(s.Targets))
		for i, t := range s.Targets {
			if targets[i], err = c.target(t, line); err != nil {
				return nil, err
			}
		}
		return []pyast.Stmt{&pyast.Assign{Pos: s.Pos, Targets: targets, Value: value, Annotation: s.Annotation}}, nil

	case *pyast.AugAssign:
		value, err := c.expr(s.Value, line)
		if err != nil {
			return nil, err
		}
		name, ok := s.Target.(*pyast.Name)
		if !ok {
			target, err := c.expr(s.Target, line)
			if err != nil {
				return nil, err
			}
			return []pyast.Stmt{&pyast.AugAssign{Pos: s.Pos, Target: target, Op: s.Op, Value: value}}, nil
		}
		prior := c.read(name)
		return []pyast.Stmt{&pyast.Assign{
			Pos:     s.Pos,
			Targets: []pyast.Expr{c.define(name.ID)},
			Value:   &pyast.BinOp{Left: prior, Op: s.Op, Right: value},
		}}, nil

	case *pyast.ExprStmt:
		x, err := c.expr(s.X, line)
		if err != nil {
			return nil, err
		}
		return []pyast.Stmt{&pyast.ExprStmt{Pos: s.Pos, X: x}}, nil

	case *pyast.Return:
		v, err := c.expr(s.Value, line)
		if err != nil {
			return nil, err
		}
		return []pyast.Stmt{&pyast.Return{Pos: s.Pos, Value: v}}, nil

	case *pyast.Raise:
		exc, err := c.expr(s.Exc, line)
		if err != nil {
			return nil, err
		}
		cause, err := c.expr(s.Cause, line)
		if err != nil {
			return nil, err
		}
		return []pyast.Stmt{&pyast.Raise{Pos: s.Pos, Exc: exc, Cause: cause}}, nil

	case *pyast.Assert:
		test, err := c.expr(s.Test, line)
		if err != nil {
			return nil, err
		}
		msg, err := c.expr(s.Msg, line)
		if err != nil {
			return nil, err
		}
		return []pyast.Stmt{&pyast.Assert{Pos: s.Pos, Test: test, Msg: msg}}, nil

	case *pyast.Pass, *pyast.Break, *pyast.Continue, *pyast.Import:
		return []pyast.Stmt{s}, nil

	case *pyast.If, *pyast.For, *pyast.While:
		return c.compound(s)

	case *pyast.FuncDef:
		return nil, diag.Unsupported(line, "nested function "+s.Name)
	case *pyast.ClassDef:
		return nil, diag.Unsupported(line, "nested class "+s.Name)
	case *pyast.Opaque:
		return nil, diag.Unsupported(line, s.Kind)
	}
	return nil, diag.Unsupported(line, fmt.Sprintf("%T", s))
}

// unpack desugars `a, b = e1, e2` into one temporary per value followed by
// one binding per target. It applies only when both sides are tuples or
// lists of the same length without starred elements.
func (c *converter) unpack(s *pyast.Assign) (func() ([]pyast.Stmt, error), bool) {
	if len(s.Targets) != 1 {
		return nil, false
	}
	targets := seqElts(s.Targets[0])
	values := seqElts(s.Value)
	if targets == nil || values == nil || len(targets) != len(values) || len(targets) < 2 {
		return nil, false
	}
	for _, el := range append(append([]pyast.Expr{}, targets...), values...) {
		if _, starred := el.(*pyast.Starred); starred {
			return nil, false
		}
	}

	return func() ([]pyast.Stmt, error) {
		line := s.SourceLine()
		out := make([]pyast.Stmt, 0, 2*len(values))
		temps := make([]*pyast.Name, len(values))
		for i, v := range values {
			value, err := c.expr(v, line)
			if err != nil {
				return nil, err
			}
			temps[i] = c.define(c.tempName())
			out = append(out, &pyast.Assign{Pos: s.Pos, Targets: []pyast.Expr{temps[i]}, Value: value})
		}
		for i, t := range targets {
			target, err := c.target(t, line)
			if err != nil {
				return nil, err
			}
			out = append(out, &pyast.Assign{Pos: s.Pos, Targets: []pyast.Expr{target}, Value: temps[i]})
		}
		return out, nil
	}, true
}

func seqElts(e pyast.Expr) []pyast.Expr {
	switch t := e.(type) {
	case *pyast.Tuple:
		return t.Elts
	case *pyast.List:
		return t.Elts
	}
	return nil
}

func (c *converter) tempName() string {
	for {
		n := fmt.Sprintf("%s%d", TempPrefix, c.tmp)
		c.tmp++
		if !c.taken[n] {
			c.taken[n] = true
			return n
		}
	}
}

// compound versions an if, for or while statement. Names bound inside get
// one merged version each, seeded by a copy of the prior version when that
// version is bound on every path. Merged names only ever reach this point
// from a top-level statement, so c.bound and c.rest describe s.
func (c *converter) compound(s pyast.Stmt) ([]pyast.Stmt, error) {
	line := s.SourceLine()
	var pre []pyast.Stmt

	// Header expressions evaluated once, before the body runs, read the
	// versions visible before any pre-copy.
	var header pyast.Expr
	var err error
	switch s := s.(type) {
	case *pyast.If:
		header, err = c.expr(s.Test, line)
	case *pyast.For:
		header, err = c.expr(s.Iter, line)
	}
	if err != nil {
		return nil, err
	}

	merged := make(map[string]bool)
	for _, base := range pyast.StoredBases([]pyast.Stmt{s}) {
		if c.isMerged(base) {
			continue
		}
		prev, had := c.current[base]
		v := c.define(base)
		if had && !c.bound[base] {
			// The prior version may be unbound. Without a copy, the merged
			// version is fresh and must not stand in for a value read later.
			if reads, _ := readsUnbound(append([]pyast.Stmt{s}, c.rest...), base); reads {
				return nil, diag.Unsupported(line, "read of possibly unbound "+base)
			}
		} else if had {
			pre = append(pre, &pyast.Assign{
				Pos:     pyast.Pos{Line: line},
				Targets: []pyast.Expr{v},
				Value:   c.ref(base, prev),
			})
		}
		merged[base] = true
	}
	c.merged = append(c.merged, merged)
	defer func() { c.merged = c.merged[:len(c.merged)-1] }()

	switch s := s.(type) {
	case *pyast.If:
		body, err := c.block(s.Body)
		if err != nil {
			return nil, err
		}
		orelse, err := c.block(s.Else)
		if err != nil {
			return nil, err
		}
		return append(pre, &pyast.If{Pos: s.Pos, Test: header, Body: body, Else: orelse}), nil

	case *pyast.For:
		target, err := c.target(s.Target, line)
		if err != nil {
			return nil, err
		}
		body, err := c.block(s.Body)
		if err != nil {
			return nil, err
		}
		orelse, err := c.block(s.Else)
		if err != nil {
			return nil, err
		}
		return append(pre, &pyast.For{Pos: s.Pos, Target: target, Iter: header, Body: body, Else: orelse, Async: s.Async}), nil

	case *pyast.While:
		test, err := c.expr(s.Test, line)
		if err != nil {
			return nil, err
		}
		body, err := c.block(s.Body)
		if err != nil {
			return nil, err
		}
		orelse, err := c.block(s.Else)
		if err != nil {
			return nil, err
		}
		return append(pre, &pyast.While{Pos: s.Pos, Test: test, Body: body, Else: orelse}), nil
	}
	return nil, diag.Unsupported(line, fmt.Sprintf("%T", s))
}
