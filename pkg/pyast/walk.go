package pyast

// MapNames returns a copy of e in which every free Name is replaced by
// fn(name). Names bound by comprehensions or lambdas inside e are left alone.
func MapNames(e Expr, fn func(*Name) Expr) Expr {
	return mapExpr(e, nil, fn)
}

// FreeNames returns the free names read by e, in source order.
func FreeNames(e Expr) []*Name {
	var out []*Name
	mapExpr(e, nil, func(n *Name) Expr {
		out = append(out, n)
		return n
	})
	return out
}

func bind(bound map[string]bool, names ...string) map[string]bool {
	next := make(map[string]bool, len(bound)+len(names))
	for k := range bound {
		next[k] = true
	}
	for _, n := range names {
		next[n] = true
	}
	return next
}

func mapExpr(e Expr, bound map[string]bool, fn func(*Name) Expr) Expr {
	if e == nil {
		return nil
	}
	m := func(x Expr) Expr { return mapExpr(x, bound, fn) }

	switch e := e.(type) {
	case *Name:
		if bound[e.ID] {
			return e
		}
		return fn(e)
	case *Constant:
		return e
	case *FString:
		out := &FString{Tail: e.Tail, Parts: make([]FPart, len(e.Parts))}
		for i, p := range e.Parts {
			out.Parts[i] = FPart{Text: p.Text, Expr: m(p.Expr)}
		}
		return out
	case *Attribute:
		return &Attribute{Value: m(e.Value), Attr: e.Attr}
	case *Subscript:
		return &Subscript{Value: m(e.Value), Index: m(e.Index)}
	case *Slice:
		return &Slice{Lower: m(e.Lower), Upper: m(e.Upper), Step: m(e.Step), HasStep: e.HasStep}
	case *Call:
		out := &Call{Func: m(e.Func), Args: make([]Arg, len(e.Args))}
		for i, a := range e.Args {
			out.Args[i] = Arg{Keyword: a.Keyword, Star: a.Star, Value: m(a.Value)}
		}
		return out
	case *BinOp:
		return &BinOp{Left: m(e.Left), Op: e.Op, Right: m(e.Right)}
	case *BoolOp:
		return &BoolOp{Left: m(e.Left), Op: e.Op, Right: m(e.Right)}
	case *UnaryOp:
		return &UnaryOp{Op: e.Op, X: m(e.X)}
	case *Compare:
		out := &Compare{Left: m(e.Left), Ops: append([]string(nil), e.Ops...), Rights: make([]Expr, len(e.Rights))}
		for i, r := range e.Rights {
			out.Rights[i] = m(r)
		}
		return out
	case *Tuple:
		return &Tuple{Elts: mapAll(e.Elts, m)}
	case *List:
		return &List{Elts: mapAll(e.Elts, m)}
	case *Set:
		return &Set{Elts: mapAll(e.Elts, m)}
	case *Dict:
		out := &Dict{Items: make([]DictItem, len(e.Items))}
		for i, it := range e.Items {
			out.Items[i] = DictItem{Key: m(it.Key), Value: m(it.Value)}
		}
		return out
	case *Comp:
		out := &Comp{Kind: e.Kind, Gens: make([]Generator, len(e.Gens))}
		inner := bound
		for i, g := range e.Gens {
			// The first iterable is evaluated in the enclosing scope.
			iter := mapExpr(g.Iter, inner, fn)
			var names []string
			for _, t := range TargetNames(g.Target) {
				names = append(names, t.ID)
			}
			inner = bind(inner, names...)
			ifs := make([]Expr, len(g.Ifs))
			for j, cond := range g.Ifs {
				ifs[j] = mapExpr(cond, inner, fn)
			}
			out.Gens[i] = Generator{Target: g.Target, Iter: iter, Ifs: ifs, Async: g.Async}
		}
		out.Key = mapExpr(e.Key, inner, fn)
		out.Elt = mapExpr(e.Elt, inner, fn)
		return out
	case *IfExp:
		return &IfExp{Body: m(e.Body), Test: m(e.Test), Else: m(e.Else)}
	case *Lambda:
		return &Lambda{
			Params:     e.Params,
			ParamNames: e.ParamNames,
			Body:       mapExpr(e.Body, bind(bound, e.ParamNames...), fn),
		}
	case *Yield:
		return &Yield{Value: m(e.Value), From: e.From}
	case *Starred:
		return &Starred{X: m(e.X)}
	case *RawExpr:
		for _, r := range e.Reads {
			if !bound[r] {
				fn(Ident(r))
			}
		}
		return e
	}
	return e
}

func mapAll(elts []Expr, m func(Expr) Expr) []Expr {
	out := make([]Expr, len(elts))
	for i, el := range elts {
		out[i] = m(el)
	}
	return out
}

// TargetNames returns the names bound by an assignment target.
// Attribute and subscript targets bind nothing.
func TargetNames(e Expr) []*Name {
	switch t := e.(type) {
	case *Name:
		return []*Name{t}
	case *Tuple:
		var out []*Name
		for _, el := range t.Elts {
			out = append(out, TargetNames(el)...)
		}
		return out
	case *List:
		var out []*Name
		for _, el := range t.Elts {
			out = append(out, TargetNames(el)...)
		}
		return out
	case *Starred:
		return TargetNames(t.X)
	}
	return nil
}

// TargetReads returns the names a target reads: the base and index of
// subscript targets and the object of attribute targets.
func TargetReads(e Expr) []*Name {
	switch t := e.(type) {
	case *Tuple:
		var out []*Name
		for _, el := range t.Elts {
			out = append(out, TargetReads(el)...)
		}
		return out
	case *List:
		var out []*Name
		for _, el := range t.Elts {
			out = append(out, TargetReads(el)...)
		}
		return out
	case *Starred:
		return TargetReads(t.X)
	case *Attribute, *Subscript:
		return FreeNames(t)
	}
	return nil
}

// MutatedBase returns the root name of an attribute or subscript target,
// e.g. `t` for `t["k"]` or `t.a[0]`.
func MutatedBase(e Expr) (*Name, bool) {
	for {
		switch t := e.(type) {
		case *Attribute:
			e = t.Value
		case *Subscript:
			e = t.Value
		case *Name:
			return t, true
		default:
			return nil, false
		}
	}
}

// Walk visits statements in pre-order. Returning false from fn skips the
// children of the visited statement.
func Walk(stmts []Stmt, fn func(Stmt) bool) {
	for _, s := range stmts {
		if !fn(s) {
			continue
		}
		switch s := s.(type) {
		case *If:
			Walk(s.Body, fn)
			Walk(s.Else, fn)
		case *For:
			Walk(s.Body, fn)
			Walk(s.Else, fn)
		case *While:
			Walk(s.Body, fn)
			Walk(s.Else, fn)
		case *FuncDef:
			Walk(s.Body, fn)
		case *ClassDef:
			Walk(s.Body, fn)
		}
	}
}

// StmtExprs returns the expressions evaluated directly by s, not including
// nested statements. Targets are not included.
func StmtExprs(s Stmt) []Expr {
	switch s := s.(type) {
	case *Assign:
		return []Expr{s.Value}
	case *AugAssign:
		return []Expr{s.Value}
	case *ExprStmt:
		return []Expr{s.X}
	case *Return:
		return []Expr{s.Value}
	case *If:
		return []Expr{s.Test}
	case *For:
		return []Expr{s.Iter}
	case *While:
		return []Expr{s.Test}
	case *Raise:
		return []Expr{s.Exc, s.Cause}
	case *Assert:
		return []Expr{s.Test, s.Msg}
	}
	return nil
}

// HeaderReads returns the names read by s itself: its expressions, the
// reads of its targets, and for augmented assignment the target itself.
// Nested statements are not included.
func HeaderReads(s Stmt) []*Name {
	var out []*Name
	for _, e := range StmtExprs(s) {
		out = append(out, FreeNames(e)...)
	}
	switch s := s.(type) {
	case *Assign:
		for _, t := range s.Targets {
			out = append(out, TargetReads(t)...)
		}
	case *AugAssign:
		out = append(out, FreeNames(s.Target)...)
	case *For:
		out = append(out, TargetReads(s.Target)...)
	case *Opaque:
		for _, r := range s.Reads {
			out = append(out, Ident(r))
		}
	}
	return out
}

// Reads returns every name read by s, nested statements included.
func Reads(s Stmt) []*Name {
	var out []*Name
	Walk([]Stmt{s}, func(n Stmt) bool {
		out = append(out, HeaderReads(n)...)
		_, isDef := n.(*FuncDef)
		return !isDef
	})
	return out
}

// HeaderStores returns the names bound by s itself.
func HeaderStores(s Stmt) []*Name {
	switch s := s.(type) {
	case *Assign:
		var out []*Name
		for _, t := range s.Targets {
			out = append(out, TargetNames(t)...)
		}
		return out
	case *AugAssign:
		return TargetNames(s.Target)
	case *For:
		return TargetNames(s.Target)
	}
	return nil
}

// StoredBases returns the base names bound anywhere in stmts, in order of
// first binding.
func StoredBases(stmts []Stmt) []string {
	var out []string
	seen := make(map[string]bool)
	Walk(stmts, func(s Stmt) bool {
		for _, n := range HeaderStores(s) {
			if b := n.BaseName(); !seen[b] {
				seen[b] = true
				out = append(out, b)
			}
		}
		_, isDef := s.(*FuncDef)
		return !isDef
	})
	return out
}

// Inspect visits e and its subexpressions depth-first. Children of an
// expression are skipped when fn returns false for it.
func Inspect(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	visit := func(xs ...Expr) {
		for _, x := range xs {
			Inspect(x, fn)
		}
	}
	switch x := e.(type) {
	case *FString:
		for _, p := range x.Parts {
			visit(p.Expr)
		}
	case *Attribute:
		visit(x.Value)
	case *Subscript:
		visit(x.Value, x.Index)
	case *Slice:
		visit(x.Lower, x.Upper, x.Step)
	case *Call:
		visit(x.Func)
		for _, a := range x.Args {
			visit(a.Value)
		}
	case *BinOp:
		visit(x.Left, x.Right)
	case *BoolOp:
		visit(x.Left, x.Right)
	case *UnaryOp:
		visit(x.X)
	case *Compare:
		visit(x.Left)
		visit(x.Rights...)
	case *Tuple:
		visit(x.Elts...)
	case *List:
		visit(x.Elts...)
	case *Set:
		visit(x.Elts...)
	case *Dict:
		for _, it := range x.Items {
			visit(it.Key, it.Value)
		}
	case *Comp:
		visit(x.Key, x.Elt)
		for _, g := range x.Gens {
			visit(g.Target, g.Iter)
			visit(g.Ifs...)
		}
	case *IfExp:
		visit(x.Body, x.Test, x.Else)
	case *Lambda:
		visit(x.Body)
	case *Yield:
		visit(x.Value)
	case *Starred:
		visit(x.X)
	}
}

// ContainsYield reports whether e contains a yield expression outside of
// comprehensions and lambdas.
func ContainsYield(e Expr) bool {
	found := false
	Inspect(e, func(x Expr) bool {
		switch x.(type) {
		case *Yield:
			found = true
		case *Comp, *Lambda:
			return false
		}
		return !found
	})
	return found
}

// StmtContainsYield reports whether s or any nested statement yields.
func StmtContainsYield(s Stmt) bool {
	found := false
	Walk([]Stmt{s}, func(n Stmt) bool {
		if found {
			return false
		}
		if _, isDef := n.(*FuncDef); isDef && n != s {
			return false
		}
		for _, e := range StmtExprs(n) {
			if ContainsYield(e) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// RewriteNames returns a copy of stmts in which every read name is replaced
// by fn(name, false) and every bound name by fn(name, true). Nested function
// and class definitions are copied unchanged.
func RewriteNames(stmts []Stmt, fn func(n *Name, store bool) Expr) []Stmt {
	read := func(e Expr) Expr {
		return MapNames(e, func(n *Name) Expr { return fn(n, false) })
	}
	out := make([]Stmt, 0, len(stmts))
	for _, s := range stmts {
		switch s := s.(type) {
		case *Assign:
			targets := make([]Expr, len(s.Targets))
			for i, t := range s.Targets {
				targets[i] = rewriteTarget(t, fn)
			}
			out = append(out, &Assign{Pos: s.Pos, Targets: targets, Value: read(s.Value), Annotation: s.Annotation})
		case *AugAssign:
			out = append(out, &AugAssign{Pos: s.Pos, Target: rewriteAugTarget(s.Target, fn), Op: s.Op, Value: read(s.Value)})
		case *ExprStmt:
			out = append(out, &ExprStmt{Pos: s.Pos, X: read(s.X)})
		case *Return:
			out = append(out, &Return{Pos: s.Pos, Value: read(s.Value)})
		case *If:
			out = append(out, &If{Pos: s.Pos, Test: read(s.Test), Body: RewriteNames(s.Body, fn), Else: RewriteNames(s.Else, fn)})
		case *For:
			out = append(out, &For{
				Pos:    s.Pos,
				Target: rewriteTarget(s.Target, fn),
				Iter:   read(s.Iter),
				Body:   RewriteNames(s.Body, fn),
				Else:   RewriteNames(s.Else, fn),
				Async:  s.Async,
			})
		case *While:
			out = append(out, &While{Pos: s.Pos, Test: read(s.Test), Body: RewriteNames(s.Body, fn), Else: RewriteNames(s.Else, fn)})
		case *Raise:
			out = append(out, &Raise{Pos: s.Pos, Exc: read(s.Exc), Cause: read(s.Cause)})
		case *Assert:
			out = append(out, &Assert{Pos: s.Pos, Test: read(s.Test), Msg: read(s.Msg)})
		default:
			out = append(out, s)
		}
	}
	return out
}

func rewriteTarget(e Expr, fn func(n *Name, store bool) Expr) Expr {
	switch t := e.(type) {
	case *Name:
		return fn(t, true)
	case *Tuple:
		out := &Tuple{Elts: make([]Expr, len(t.Elts))}
		for i, el := range t.Elts {
			out.Elts[i] = rewriteTarget(el, fn)
		}
		return out
	case *List:
		out := &List{Elts: make([]Expr, len(t.Elts))}
		for i, el := range t.Elts {
			out.Elts[i] = rewriteTarget(el, fn)
		}
		return out
	case *Starred:
		return &Starred{X: rewriteTarget(t.X, fn)}
	}
	return MapNames(e, func(n *Name) Expr { return fn(n, false) })
}

func rewriteAugTarget(e Expr, fn func(n *Name, store bool) Expr) Expr {
	if n, ok := e.(*Name); ok {
		return fn(n, true)
	}
	return MapNames(e, func(n *Name) Expr { return fn(n, false) })
}
