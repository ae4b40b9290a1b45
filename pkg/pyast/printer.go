package pyast

import (
	"fmt"
	"strings"
)

// IndentUnit is the indentation emitted per block level.
const IndentUnit = "    "

// Operator precedence, lowest first.
const (
	precLowest = iota
	precLambda
	precIfExp
	precOr
	precAnd
	precNot
	precCompare
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precArith
	precTerm
	precUnary
	precPower
	precAwait
	precAtom
)

var binPrec = map[string]int{
	"|":  precBitOr,
	"^":  precBitXor,
	"&":  precBitAnd,
	"<<": precShift,
	">>": precShift,
	"+":  precArith,
	"-":  precArith,
	"*":  precTerm,
	"/":  precTerm,
	"//": precTerm,
	"%":  precTerm,
	"@":  precTerm,
	"**": precPower,
}

// Print renders a module. Top-level definitions are separated by a blank line.
func Print(mod *Module) string {
	p := &printer{}
	p.module(mod.Body)
	return p.String()
}

// PrintStmts renders statements at the given indentation level.
func PrintStmts(stmts []Stmt, level int) string {
	p := &printer{}
	p.block(stmts, level)
	return p.String()
}

// PrintStmt renders a single statement at the given indentation level.
func PrintStmt(s Stmt, level int) string {
	p := &printer{}
	p.stmt(s, level)
	return p.String()
}

// ExprString renders an expression.
func ExprString(e Expr) string {
	p := &printer{}
	p.expr(e, precLowest)
	return p.String()
}

// Height returns the number of lines s occupies when printed.
func Height(s Stmt) int {
	return strings.Count(PrintStmt(s, 0), "\n")
}

type printer struct {
	strings.Builder
}

func (p *printer) line(level int, format string, args ...any) {
	p.WriteString(strings.Repeat(IndentUnit, level))
	fmt.Fprintf(p, format, args...)
	p.WriteByte('\n')
}

func (p *printer) module(body []Stmt) {
	for i, s := range body {
		if i > 0 && (isDef(s) || isDef(body[i-1])) {
			p.WriteByte('\n')
		}
		p.stmt(s, 0)
	}
}

func isDef(s Stmt) bool {
	switch s.(type) {
	case *FuncDef, *ClassDef:
		return true
	}
	return false
}

func (p *printer) block(body []Stmt, level int) {
	if len(body) == 0 {
		p.line(level, "pass")
		return
	}
	for _, s := range body {
		p.stmt(s, level)
	}
}

func (p *printer) classBody(body []Stmt, level int) {
	if len(body) == 0 {
		p.line(level, "pass")
		return
	}
	for i, s := range body {
		if i > 0 && (isDef(s) || isDef(body[i-1])) {
			p.WriteByte('\n')
		}
		p.stmt(s, level)
	}
}

func (p *printer) stmt(s Stmt, level int) {
	switch s := s.(type) {
	case *Assign:
		var b strings.Builder
		for i, t := range s.Targets {
			if i > 0 {
				b.WriteString(" = ")
			}
			b.WriteString(targetString(t))
		}
		if s.Annotation != "" {
			b.WriteString(": " + s.Annotation)
		}
		p.line(level, "%s = %s", b.String(), topString(s.Value))

	case *AugAssign:
		p.line(level, "%s %s= %s", targetString(s.Target), s.Op, topString(s.Value))

	case *ExprStmt:
		p.line(level, "%s", topString(s.X))

	case *Return:
		if s.Value == nil {
			p.line(level, "return")
		} else {
			p.line(level, "return %s", topString(s.Value))
		}

	case *If:
		p.ifChain(s, level, "if")

	case *For:
		kw := "for"
		if s.Async {
			kw = "async for"
		}
		p.line(level, "%s %s in %s:", kw, targetString(s.Target), topString(s.Iter))
		p.block(s.Body, level+1)
		if len(s.Else) > 0 {
			p.line(level, "else:")
			p.block(s.Else, level+1)
		}

	case *While:
		p.line(level, "while %s:", ExprString(s.Test))
		p.block(s.Body, level+1)
		if len(s.Else) > 0 {
			p.line(level, "else:")
			p.block(s.Else, level+1)
		}

	case *Raise:
		switch {
		case s.Exc == nil:
			p.line(level, "raise")
		case s.Cause == nil:
			p.line(level, "raise %s", ExprString(s.Exc))
		default:
			p.line(level, "raise %s from %s", ExprString(s.Exc), ExprString(s.Cause))
		}

	case *Assert:
		if s.Msg == nil {
			p.line(level, "assert %s", ExprString(s.Test))
		} else {
			p.line(level, "assert %s, %s", ExprString(s.Test), ExprString(s.Msg))
		}

	case *Pass:
		p.line(level, "pass")
	case *Break:
		p.line(level, "break")
	case *Continue:
		p.line(level, "continue")

	case *Import:
		p.raw(s.Text, level)

	case *FuncDef:
		for _, d := range s.Decorators {
			p.line(level, "@%s", d)
		}
		kw := "def"
		if s.Async {
			kw = "async def"
		}
		sig := fmt.Sprintf("%s %s(%s)", kw, s.Name, ParamsString(s.Params))
		if s.Returns != "" {
			sig += " -> " + s.Returns
		}
		p.line(level, "%s:", sig)
		p.block(s.Body, level+1)

	case *ClassDef:
		for _, d := range s.Decorators {
			p.line(level, "@%s", d)
		}
		if s.Bases != "" {
			p.line(level, "class %s(%s):", s.Name, s.Bases)
		} else {
			p.line(level, "class %s:", s.Name)
		}
		p.classBody(s.Body, level+1)

	case *Opaque:
		p.raw(s.Text, level)

	default:
		panic(fmt.Sprintf("pyast: unhandled statement %T", s))
	}
}

func (p *printer) ifChain(s *If, level int, kw string) {
	p.line(level, "%s %s:", kw, ExprString(s.Test))
	p.block(s.Body, level+1)
	if len(s.Else) == 1 {
		if elif, ok := s.Else[0].(*If); ok {
			p.ifChain(elif, level, "elif")
			return
		}
	}
	if len(s.Else) > 0 {
		p.line(level, "else:")
		p.block(s.Else, level+1)
	}
}

func (p *printer) raw(text string, level int) {
	for _, l := range strings.Split(text, "\n") {
		p.line(level, "%s", l)
	}
}

// ParamsString renders a parameter list without parentheses.
func ParamsString(params []Param) string {
	parts := make([]string, 0, len(params))
	for _, prm := range params {
		var b strings.Builder
		switch prm.Kind {
		case ParamVarArgs:
			b.WriteString("*")
		case ParamKwArgs:
			b.WriteString("**")
		}
		b.WriteString(prm.Name)
		if prm.Annotation != "" {
			b.WriteString(": " + prm.Annotation)
		}
		if prm.Default != nil {
			if prm.Annotation != "" {
				b.WriteString(" = ")
			} else {
				b.WriteString("=")
			}
			b.WriteString(ExprString(prm.Default))
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, ", ")
}

// topString renders an expression in statement position, where a tuple of
// two or more elements needs no parentheses.
func topString(e Expr) string {
	if t, ok := e.(*Tuple); ok && len(t.Elts) > 1 {
		return joinExprs(t.Elts, precLambda)
	}
	return ExprString(e)
}

// targetString renders an assignment or loop target.
func targetString(e Expr) string {
	switch t := e.(type) {
	case *Tuple:
		if len(t.Elts) == 0 {
			return "()"
		}
		parts := make([]string, len(t.Elts))
		for i, el := range t.Elts {
			parts[i] = targetString(el)
		}
		if len(parts) == 1 {
			return parts[0] + ","
		}
		return strings.Join(parts, ", ")
	case *List:
		parts := make([]string, len(t.Elts))
		for i, el := range t.Elts {
			parts[i] = targetString(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Starred:
		return "*" + targetString(t.X)
	}
	return ExprString(e)
}

func joinExprs(elts []Expr, minPrec int) string {
	parts := make([]string, len(elts))
	for i, el := range elts {
		p := &printer{}
		p.expr(el, minPrec)
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}

func precOf(e Expr) int {
	switch e := e.(type) {
	case *Lambda:
		return precLambda
	case *IfExp:
		return precIfExp
	case *BoolOp:
		if e.Op == "or" {
			return precOr
		}
		return precAnd
	case *UnaryOp:
		if e.Op == "not" {
			return precNot
		}
		return precUnary
	case *Compare:
		return precCompare
	case *BinOp:
		if p, ok := binPrec[e.Op]; ok {
			return p
		}
		return precArith
	case *Yield, *RawExpr:
		return precLowest
	case *Starred:
		return precBitOr
	}
	return precAtom
}

func (p *printer) expr(e Expr, minPrec int) {
	if e == nil {
		return
	}
	if precOf(e) < minPrec {
		p.WriteByte('(')
		defer p.WriteByte(')')
	}

	switch e := e.(type) {
	case *Name:
		p.WriteString(e.ID)

	case *Constant:
		p.WriteString(e.Text)

	case *FString:
		for _, part := range e.Parts {
			p.WriteString(part.Text)
			p.expr(part.Expr, precLambda)
		}
		p.WriteString(e.Tail)

	case *Attribute:
		p.expr(e.Value, precAtom)
		p.WriteString("." + e.Attr)

	case *Subscript:
		p.expr(e.Value, precAtom)
		p.WriteByte('[')
		if t, ok := e.Index.(*Tuple); ok && len(t.Elts) > 1 {
			p.WriteString(joinExprs(t.Elts, precLambda))
		} else {
			p.expr(e.Index, precLambda)
		}
		p.WriteByte(']')

	case *Slice:
		p.expr(e.Lower, precLambda)
		p.WriteByte(':')
		p.expr(e.Upper, precLambda)
		if e.HasStep || e.Step != nil {
			p.WriteByte(':')
			p.expr(e.Step, precLambda)
		}

	case *Call:
		p.expr(e.Func, precAtom)
		p.WriteByte('(')
		if len(e.Args) == 1 && e.Args[0].Keyword == "" && e.Args[0].Star == "" {
			if comp, ok := e.Args[0].Value.(*Comp); ok && comp.Kind == CompGen {
				p.compBody(comp)
				p.WriteByte(')')
				return
			}
		}
		for i, a := range e.Args {
			if i > 0 {
				p.WriteString(", ")
			}
			if a.Keyword != "" {
				p.WriteString(a.Keyword + "=")
			}
			p.WriteString(a.Star)
			if a.Star != "" {
				p.expr(a.Value, precBitOr)
			} else {
				p.expr(a.Value, precLambda)
			}
		}
		p.WriteByte(')')

	case *BinOp:
		prec := precOf(e)
		if e.Op == "**" {
			p.expr(e.Left, precAwait)
			p.WriteString(" ** ")
			p.expr(e.Right, precUnary)
			return
		}
		p.expr(e.Left, prec)
		p.WriteString(" " + e.Op + " ")
		p.expr(e.Right, prec+1)

	case *BoolOp:
		prec := precOf(e)
		p.expr(e.Left, prec)
		p.WriteString(" " + e.Op + " ")
		p.expr(e.Right, prec+1)

	case *UnaryOp:
		if e.Op == "not" {
			p.WriteString("not ")
			p.expr(e.X, precNot)
			return
		}
		p.WriteString(e.Op)
		p.expr(e.X, precUnary)

	case *Compare:
		p.expr(e.Left, precBitOr)
		for i, op := range e.Ops {
			p.WriteString(" " + op + " ")
			p.expr(e.Rights[i], precBitOr)
		}

	case *Tuple:
		p.WriteByte('(')
		p.WriteString(joinExprs(e.Elts, precLambda))
		if len(e.Elts) == 1 {
			p.WriteByte(',')
		}
		p.WriteByte(')')

	case *List:
		p.WriteString("[" + joinExprs(e.Elts, precLambda) + "]")

	case *Set:
		p.WriteString("{" + joinExprs(e.Elts, precLambda) + "}")

	case *Dict:
		p.WriteByte('{')
		for i, it := range e.Items {
			if i > 0 {
				p.WriteString(", ")
			}
			if it.Key == nil {
				p.WriteString("**")
				p.expr(it.Value, precBitOr)
				continue
			}
			p.expr(it.Key, precLambda)
			p.WriteString(": ")
			p.expr(it.Value, precLambda)
		}
		p.WriteByte('}')

	case *Comp:
		lb, rb := "[", "]"
		switch e.Kind {
		case CompSet, CompDict:
			lb, rb = "{", "}"
		case CompGen:
			lb, rb = "(", ")"
		}
		p.WriteString(lb)
		p.compBody(e)
		p.WriteString(rb)

	case *IfExp:
		p.expr(e.Body, precOr)
		p.WriteString(" if ")
		p.expr(e.Test, precOr)
		p.WriteString(" else ")
		p.expr(e.Else, precIfExp)

	case *Lambda:
		if e.Params != "" {
			p.WriteString("lambda " + e.Params + ": ")
		} else {
			p.WriteString("lambda: ")
		}
		p.expr(e.Body, precLambda)

	case *Yield:
		p.WriteString("yield")
		if e.From {
			p.WriteString(" from")
		}
		if e.Value != nil {
			p.WriteByte(' ')
			p.expr(e.Value, precLambda)
		}

	case *Starred:
		p.WriteByte('*')
		p.expr(e.X, precBitOr)

	case *RawExpr:
		p.WriteString(e.Text)

	default:
		panic(fmt.Sprintf("pyast: unhandled expression %T", e))
	}
}

func (p *printer) compBody(c *Comp) {
	if c.Kind == CompDict {
		p.expr(c.Key, precLambda)
		p.WriteString(": ")
	}
	p.expr(c.Elt, precLambda)
	for _, g := range c.Gens {
		if g.Async {
			p.WriteString(" async")
		}
		p.WriteString(" for " + targetString(g.Target) + " in ")
		p.expr(g.Iter, precOr)
		for _, cond := range g.Ifs {
			p.WriteString(" if ")
			p.expr(cond, precOr)
		}
	}
}
