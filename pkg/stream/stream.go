// Package stream rewrites functions that collect their results in a list and
// return it into generators that emit every item as soon as it is produced.
package stream

import (
	"strconv"
	"strings"

	"github.com/l3aro/go-udf-splitter/pkg/pyast"
)

// Result is the outcome of a rewrite.
type Result struct {
	Source  string `json:"source" yaml:"source" msgpack:"source"`
	Changed bool   `json:"changed" yaml:"changed" msgpack:"changed"`
	// Functions lists the rewritten functions, methods as Class.method.
	Functions []string `json:"functions,omitempty" yaml:"functions,omitempty" msgpack:"functions,omitempty"`
}

// Rewrite rewrites every function of the module src in which a collection
// pattern is recognized. When nothing is recognized the source is returned
// unchanged.
func Rewrite(src string) (*Result, error) {
	mod, err := pyast.ParseString(src)
	if err != nil {
		return nil, err
	}
	var rewritten []string
	body := rewriteDefs(mod.Body, "", &rewritten)
	if len(rewritten) == 0 {
		return &Result{Source: src}, nil
	}
	return &Result{
		Source:    pyast.Print(&pyast.Module{Body: body}),
		Changed:   true,
		Functions: rewritten,
	}, nil
}

func rewriteDefs(body []pyast.Stmt, prefix string, rewritten *[]string) []pyast.Stmt {
	out := make([]pyast.Stmt, len(body))
	for i, s := range body {
		switch s := s.(type) {
		case *pyast.FuncDef:
			if fn, ok := rewriteFunc(s); ok {
				*rewritten = append(*rewritten, prefix+s.Name)
				out[i] = fn
				continue
			}
		case *pyast.ClassDef:
			n := len(*rewritten)
			inner := rewriteDefs(s.Body, prefix+s.Name+".", rewritten)
			if len(*rewritten) > n {
				cls := *s
				cls.Body = inner
				out[i] = &cls
				continue
			}
		}
		out[i] = s
	}
	return out
}

// Label returns the key under which items of the named collection are
// emitted.
func Label(name string) string {
	switch name {
	case "preds":
		return "pred"
	case "results", "result":
		return "result"
	case "outputs":
		return "output"
	case "items":
		return "item"
	}
	if len(name) > 3 && strings.HasSuffix(name, "ies") {
		return name[:len(name)-3] + "y"
	}
	if len(name) > 1 && strings.HasSuffix(name, "s") {
		return name[:len(name)-1]
	}
	return name
}

// ref identifies a collection: a local name or an attribute of self.
type ref struct {
	self bool
	name string
}

func refOf(e pyast.Expr) (ref, bool) {
	switch e := e.(type) {
	case *pyast.Name:
		return ref{name: e.ID}, true
	case *pyast.Attribute:
		if n, ok := e.Value.(*pyast.Name); ok && n.ID == "self" {
			return ref{self: true, name: e.Attr}, true
		}
	}
	return ref{}, false
}

func (k ref) is(e pyast.Expr) bool {
	r, ok := refOf(e)
	return ok && r == k
}

// in reports whether e mentions k anywhere.
func (k ref) in(e pyast.Expr) bool {
	found := false
	pyast.Inspect(e, func(x pyast.Expr) bool {
		if found {
			return false
		}
		switch x := x.(type) {
		case *pyast.Name:
			found = !k.self && x.ID == k.name
		case *pyast.Attribute:
			found = k.self && k.is(x)
		}
		return !found
	})
	return found
}

func (k ref) inOpaque(s *pyast.Opaque) bool {
	if k.self {
		return strings.Contains(s.Text, "self."+k.name)
	}
	for _, r := range s.Reads {
		if r == k.name {
			return true
		}
	}
	return false
}

// collection is a list built up by a function and handed back by its return.
type collection struct {
	key     ref
	at      int
	comp    *pyast.Comp
	appends int
}

// appendValue returns v if s is `c.append(v)`.
func (c *collection) appendValue(s pyast.Stmt) (pyast.Expr, bool) {
	es, ok := s.(*pyast.ExprStmt)
	if !ok {
		return nil, false
	}
	call, ok := es.X.(*pyast.Call)
	if !ok || len(call.Args) != 1 || call.Args[0].Keyword != "" || call.Args[0].Star != "" {
		return nil, false
	}
	attr, ok := call.Func.(*pyast.Attribute)
	if !ok || attr.Attr != "append" || !c.key.is(attr.Value) || c.key.in(call.Args[0].Value) {
		return nil, false
	}
	return call.Args[0].Value, true
}

// returned reports whether r hands back the collection, alone or as a
// direct element of a tuple, and mentions it nowhere else.
func (c *collection) returned(r *pyast.Return) bool {
	if c.key.is(r.Value) {
		return true
	}
	t, ok := r.Value.(*pyast.Tuple)
	if !ok {
		return false
	}
	direct := false
	for _, e := range t.Elts {
		if c.key.is(e) {
			direct = true
		} else if c.key.in(e) {
			return false
		}
	}
	return direct
}

// valid checks that the only uses of the collection in body are the
// initialization, appends inside loops and top-level returns.
func (c *collection) valid(body []pyast.Stmt) bool {
	returned := false
	for i, s := range body {
		if i == c.at {
			continue
		}
		if r, ok := s.(*pyast.Return); ok && i > c.at && c.returned(r) {
			returned = true
			continue
		}
		if !c.scan(s, false, i > c.at) {
			return false
		}
	}
	if !returned {
		return false
	}
	return c.comp != nil || c.appends > 0
}

func (c *collection) scanAll(stmts []pyast.Stmt, inFor, after bool) bool {
	for _, s := range stmts {
		if !c.scan(s, inFor, after) {
			return false
		}
	}
	return true
}

func (c *collection) scan(s pyast.Stmt, inFor, after bool) bool {
	if _, ok := c.appendValue(s); ok {
		if !inFor || !after || c.comp != nil {
			return false
		}
		c.appends++
		return true
	}
	for _, e := range pyast.StmtExprs(s) {
		if c.key.in(e) {
			return false
		}
	}
	for _, t := range targets(s) {
		if c.key.in(t) {
			return false
		}
	}
	switch s := s.(type) {
	case *pyast.For:
		return c.scanAll(s.Body, true, after) && c.scanAll(s.Else, inFor, after)
	case *pyast.While:
		return c.scanAll(s.Body, inFor, after) && c.scanAll(s.Else, inFor, after)
	case *pyast.If:
		return c.scanAll(s.Body, inFor, after) && c.scanAll(s.Else, inFor, after)
	case *pyast.FuncDef:
		return c.scanAll(s.Body, false, after)
	case *pyast.ClassDef:
		return c.scanAll(s.Body, false, after)
	case *pyast.Opaque:
		return !c.key.inOpaque(s)
	}
	return true
}

func targets(s pyast.Stmt) []pyast.Expr {
	switch s := s.(type) {
	case *pyast.Assign:
		return s.Targets
	case *pyast.AugAssign:
		return []pyast.Expr{s.Target}
	case *pyast.For:
		return []pyast.Expr{s.Target}
	}
	return nil
}

// collections returns the recognized collections of body.
func collections(body []pyast.Stmt) []*collection {
	var out []*collection
	for i, s := range body {
		a, ok := s.(*pyast.Assign)
		if !ok || len(a.Targets) != 1 {
			continue
		}
		key, ok := refOf(a.Targets[0])
		if !ok {
			continue
		}
		c := &collection{key: key, at: i}
		switch v := a.Value.(type) {
		case *pyast.List:
			if len(v.Elts) != 0 {
				continue
			}
		case *pyast.Comp:
			if v.Kind != pyast.CompList {
				continue
			}
			c.comp = v
		default:
			continue
		}
		if c.valid(body) {
			out = append(out, c)
		}
	}
	return out
}

// funcRewrite holds the collections recognized in one function.
type funcRewrite struct {
	colls []*collection
}

func rewriteFunc(fn *pyast.FuncDef) (*pyast.FuncDef, bool) {
	colls := collections(fn.Body)
	if len(colls) == 0 {
		return fn, false
	}
	r := &funcRewrite{colls: colls}

	inits := make(map[int]*collection, len(colls))
	for _, c := range colls {
		inits[c.at] = c
	}
	var body []pyast.Stmt
	for i, s := range fn.Body {
		if c, ok := inits[i]; ok {
			if c.comp != nil {
				body = append(body, compLoops(c.comp, Label(c.key.name), s.(*pyast.Assign).Pos))
			}
			continue
		}
		body = append(body, r.stmt(s, i == len(fn.Body)-1)...)
	}

	out := *fn
	out.Body = body
	return &out, true
}

func (r *funcRewrite) block(stmts []pyast.Stmt) []pyast.Stmt {
	if stmts == nil {
		return nil
	}
	out := make([]pyast.Stmt, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, r.stmt(s, false)...)
	}
	if len(out) == 0 {
		out = append(out, &pyast.Pass{})
	}
	return out
}

// stmt rewrites s. last is set for the final top-level statement, where a
// return needs no explicit exit after its yields.
func (r *funcRewrite) stmt(s pyast.Stmt, last bool) []pyast.Stmt {
	switch s := s.(type) {
	case *pyast.ExprStmt:
		for _, c := range r.colls {
			if v, ok := c.appendValue(s); ok {
				return []pyast.Stmt{emit(s.Pos, Label(c.key.name), v)}
			}
		}
	case *pyast.Return:
		out := r.ret(s)
		if out == nil {
			return []pyast.Stmt{s}
		}
		if !last {
			out = append(out, &pyast.Return{Pos: s.Pos})
		}
		return out
	case *pyast.If:
		return []pyast.Stmt{&pyast.If{Pos: s.Pos, Test: s.Test, Body: r.block(s.Body), Else: r.block(s.Else)}}
	case *pyast.For:
		return []pyast.Stmt{&pyast.For{
			Pos:    s.Pos,
			Target: s.Target,
			Iter:   s.Iter,
			Body:   r.block(s.Body),
			Else:   r.block(s.Else),
			Async:  s.Async,
		}}
	case *pyast.While:
		return []pyast.Stmt{&pyast.While{Pos: s.Pos, Test: s.Test, Body: r.block(s.Body), Else: r.block(s.Else)}}
	}
	return []pyast.Stmt{s}
}

func (r *funcRewrite) isCollection(e pyast.Expr) bool {
	for _, c := range r.colls {
		if c.key.is(e) {
			return true
		}
	}
	return false
}

// ret returns the yields replacing a return, or nil to keep it. A return
// that only handed back collections is replaced by nothing.
func (r *funcRewrite) ret(s *pyast.Return) []pyast.Stmt {
	switch v := s.Value.(type) {
	case nil:
		return nil
	case *pyast.Tuple:
		out := []pyast.Stmt{}
		i := 0
		for _, e := range v.Elts {
			if r.isCollection(e) {
				continue
			}
			out = append(out, emit(s.Pos, keyOf(e, i), e))
			i++
		}
		return out
	case *pyast.Constant:
		if v.Kind == pyast.ConstNone {
			return nil
		}
	}
	if r.isCollection(s.Value) {
		return []pyast.Stmt{}
	}
	return []pyast.Stmt{emit(s.Pos, keyOf(s.Value, 0), s.Value)}
}

// keyOf names a returned value: its variable, attribute or called function,
// or result_<i> for anything else.
func keyOf(e pyast.Expr, i int) string {
	switch e := e.(type) {
	case *pyast.Name:
		return e.ID
	case *pyast.Attribute:
		return e.Attr
	case *pyast.Call:
		switch f := e.Func.(type) {
		case *pyast.Name:
			return f.ID
		case *pyast.Attribute:
			return f.Attr
		}
	}
	return "result_" + strconv.Itoa(i)
}

// emit returns `yield {"label": v}`.
func emit(pos pyast.Pos, label string, v pyast.Expr) pyast.Stmt {
	return &pyast.ExprStmt{Pos: pos, X: &pyast.Yield{Value: &pyast.Dict{
		Items: []pyast.DictItem{{Key: pyast.Str(label), Value: v}},
	}}}
}

// compLoops expands a list comprehension into nested loops and conditions
// that emit each element.
func compLoops(c *pyast.Comp, label string, pos pyast.Pos) pyast.Stmt {
	inner := emit(pos, label, c.Elt)
	for i := len(c.Gens) - 1; i >= 0; i-- {
		g := c.Gens[i]
		for j := len(g.Ifs) - 1; j >= 0; j-- {
			inner = &pyast.If{Pos: pos, Test: g.Ifs[j], Body: []pyast.Stmt{inner}}
		}
		inner = &pyast.For{Pos: pos, Target: g.Target, Iter: g.Iter, Body: []pyast.Stmt{inner}, Async: g.Async}
	}
	return inner
}
