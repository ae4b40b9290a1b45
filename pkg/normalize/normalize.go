// Package normalize turns raw UDF source text into a canonical SourceUnit:
// one function definition plus the import lines that precede it, with
// comments, blank lines and docstrings removed and every block non-empty.
package normalize

import (
	"strings"

	"github.com/l3aro/go-udf-splitter/pkg/diag"
	"github.com/l3aro/go-udf-splitter/pkg/pyast"
)

// DefaultMaxStatements bounds the size of an accepted function.
const DefaultMaxStatements = 5000

// Options configures normalization.
type Options struct {
	// MaxStatements rejects functions with more statements, nested ones
	// included. Zero disables the check.
	MaxStatements int
}

// DefaultOptions returns the default normalization options.
func DefaultOptions() Options {
	return Options{MaxStatements: DefaultMaxStatements}
}

// SourceUnit is a normalized function. It is never mutated after
// construction; later stages build new units.
type SourceUnit struct {
	Imports []string
	Func    *pyast.FuncDef
}

// Args returns the formal argument names in declaration order.
func (u *SourceUnit) Args() []string {
	return pyast.ParamNames(u.Func)
}

// Param returns the declared parameter with the given name.
func (u *SourceUnit) Param(name string) (pyast.Param, bool) {
	for _, p := range u.Func.Params {
		if p.Name == name {
			return p, true
		}
	}
	return pyast.Param{}, false
}

// WithBody returns a copy of u with the function body replaced.
func (u *SourceUnit) WithBody(body []pyast.Stmt) *SourceUnit {
	fn := *u.Func
	fn.Body = body
	return &SourceUnit{Imports: u.Imports, Func: &fn}
}

// Source renders the unit canonically: imports, then the function. The
// function header is printed without decorators so that it is line 1 of
// the function text.
func (u *SourceUnit) Source() string {
	var b strings.Builder
	for _, imp := range u.Imports {
		b.WriteString(imp)
		b.WriteByte('\n')
	}
	if len(u.Imports) > 0 {
		b.WriteByte('\n')
	}
	b.WriteString(u.FunctionSource())
	return b.String()
}

// FunctionSource renders only the function, header on line 1.
func (u *SourceUnit) FunctionSource() string {
	fn := *u.Func
	fn.Decorators = nil
	return pyast.PrintStmt(&fn, 0)
}

// Normalize parses src and produces a SourceUnit.
func Normalize(src string, opts Options) (*SourceUnit, error) {
	if strings.TrimSpace(src) == "" {
		return nil, diag.Normalization(0, "empty source")
	}

	mod, err := pyast.ParseString(src)
	if err != nil {
		return nil, err
	}

	unit := &SourceUnit{}
	for _, s := range mod.Body {
		switch s := s.(type) {
		case *pyast.Import:
			if unit.Func != nil {
				return nil, diag.Normalization(s.Line, "import after the function definition")
			}
			unit.Imports = append(unit.Imports, s.Text)
		case *pyast.FuncDef:
			if unit.Func != nil {
				return nil, diag.Normalization(s.Line, "expected a single function definition, found another: %s", s.Name)
			}
			unit.Func = s
		case *pyast.ExprStmt:
			if isDocstring(s) {
				continue
			}
			return nil, diag.Normalization(s.Line, "only imports and one function definition are allowed at module level")
		default:
			return nil, diag.Normalization(s.SourceLine(), "only imports and one function definition are allowed at module level")
		}
	}
	if unit.Func == nil {
		return nil, diag.Normalization(0, "no function definition found")
	}

	fn := *unit.Func
	fn.Body = cleanBlock(fn.Body, fn.Line)
	unit.Func = &fn

	if opts.MaxStatements > 0 {
		if n := countStatements(fn.Body); n > opts.MaxStatements {
			return nil, diag.Normalization(fn.Line, "function has %d statements, limit is %d", n, opts.MaxStatements)
		}
	}
	return unit, nil
}

// NormalizeFunction normalizes a function definition that is already parsed.
func NormalizeFunction(fn *pyast.FuncDef) *pyast.FuncDef {
	out := *fn
	out.Body = cleanBlock(fn.Body, fn.Line)
	return &out
}

func isDocstring(s *pyast.ExprStmt) bool {
	c, ok := s.X.(*pyast.Constant)
	return ok && c.Kind == pyast.ConstString
}

// cleanBlock drops bare string statements and guarantees a non-empty block.
// line is used for a synthesized pass.
func cleanBlock(body []pyast.Stmt, line int) []pyast.Stmt {
	out := make([]pyast.Stmt, 0, len(body))
	for _, s := range body {
		switch s := s.(type) {
		case *pyast.ExprStmt:
			if isDocstring(s) {
				continue
			}
			out = append(out, s)
		case *pyast.If:
			out = append(out, &pyast.If{
				Pos:  s.Pos,
				Test: s.Test,
				Body: cleanBlock(s.Body, s.Line),
				Else: cleanOptional(s.Else, s.Line),
			})
		case *pyast.For:
			out = append(out, &pyast.For{
				Pos:    s.Pos,
				Target: s.Target,
				Iter:   s.Iter,
				Body:   cleanBlock(s.Body, s.Line),
				Else:   cleanOptional(s.Else, s.Line),
				Async:  s.Async,
			})
		case *pyast.While:
			out = append(out, &pyast.While{
				Pos:  s.Pos,
				Test: s.Test,
				Body: cleanBlock(s.Body, s.Line),
				Else: cleanOptional(s.Else, s.Line),
			})
		case *pyast.FuncDef:
			out = append(out, NormalizeFunction(s))
		case *pyast.ClassDef:
			cls := *s
			cls.Body = cleanBlock(s.Body, s.Line)
			out = append(out, &cls)
		default:
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = append(out, &pyast.Pass{Pos: pyast.Pos{Line: line}})
	}
	return out
}

// cleanOptional cleans an else block. An else that contained only a
// docstring disappears instead of becoming `else: pass`.
func cleanOptional(body []pyast.Stmt, line int) []pyast.Stmt {
	if len(body) == 0 {
		return nil
	}
	cleaned := cleanBlock(body, line)
	if len(cleaned) == 1 {
		if _, ok := cleaned[0].(*pyast.Pass); ok {
			if _, wasPass := body[0].(*pyast.Pass); !wasPass {
				return nil
			}
		}
	}
	return cleaned
}

func countStatements(body []pyast.Stmt) int {
	n := 0
	pyast.Walk(body, func(pyast.Stmt) bool {
		n++
		return true
	})
	return n
}
