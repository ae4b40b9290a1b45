package pyast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-udf-splitter/pkg/diag"
)

func TestParsePrintRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"assign", "x = a + 1\n"},
		{"chained", "a = b = c * 2\n"},
		{"tuple assign", "a, b = b, a\n"},
		{"augassign", "total += x * y\n"},
		{"annotated", "x: int = 5\n"},
		{"call kwargs", "df = pd.read_csv(path, sep=\",\", *args, **kw)\n"},
		{"subscript slice", "y = x[1:3, ::2]\n"},
		{"compare chain", "ok = 0 < x <= 10 and y not in z\n"},
		{"unary", "z = -x ** 2\n"},
		{"power precedence", "z = (-x) ** 2\n"},
		{"list comp", "preds = [p * 2 for p in items if p > 0]\n"},
		{"dict comp", "m = {k: v for k, v in pairs}\n"},
		{"gen arg", "s = sum(x for x in xs)\n"},
		{"lambda", "f = sorted(xs, key=lambda r: r[1])\n"},
		{"ifexp", "v = a if c else b\n"},
		{"fstring", "msg = f\"{name}: {value!r}\"\n"},
		{"yield tuple", "yield (tuple_, 0)\n"},
		{"if elif else", "if a:\n    x = 1\nelif b:\n    x = 2\nelse:\n    x = 3\n"},
		{"for else", "for i in range(3):\n    pass\nelse:\n    done = True\n"},
		{"while", "while n > 0:\n    n -= 1\n"},
		{"def", "def f(a: pd.DataFrame, b=2, *args, **kwargs) -> int:\n    return a\n"},
		{"class", "class Operator:\n    def process(self, x):\n        yield x\n"},
		{"raise", "raise ValueError(\"bad\") from err\n"},
		{"assert", "assert x > 0, \"positive\"\n"},
		{"import", "import pandas as pd\n"},
		{"from import", "from typing import Iterator, Optional\n"},
		{"dict display", "d = {\"a\": 1, **rest}\n"},
		{"set display", "s = {1, 2}\n"},
		{"starred list", "l = [*a, *b]\n"},
		{"bool ops", "r = (a or b) and not c\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod, err := ParseString(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.src, Print(mod))
		})
	}
}

func TestParseSyntaxError(t *testing.T) {
	_, err := ParseString("def f(a):\n    x = = 1\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, diag.ErrNormalization)

	d, ok := diag.AsError(err)
	require.True(t, ok)
	assert.Equal(t, 2, d.Line)
}

func TestParseDropsComments(t *testing.T) {
	src := "# header\nx = 1  # trailing\n# between\ny = 2\n"
	mod, err := ParseString(src)
	require.NoError(t, err)
	assert.Equal(t, "x = 1\ny = 2\n", Print(mod))
}

func TestParseOpaque(t *testing.T) {
	src := "def f(p):\n    with open(p) as fh:\n        data = fh.read()\n    return data\n"
	mod, err := ParseString(src)
	require.NoError(t, err)

	fn := mod.Body[0].(*FuncDef)
	op, ok := fn.Body[0].(*Opaque)
	require.True(t, ok)
	assert.Equal(t, "with", op.Kind)
	assert.Contains(t, op.Reads, "p")
	assert.Equal(t, src, Print(mod))
}

func TestPrintParenthesizesByPrecedence(t *testing.T) {
	expr := &BinOp{
		Left:  Ident("x"),
		Op:    "*",
		Right: &BinOp{Left: Ident("a"), Op: "+", Right: Ident("b")},
	}
	assert.Equal(t, "x * (a + b)", ExprString(expr))

	sub := &BinOp{
		Left:  Ident("x"),
		Op:    "-",
		Right: &BinOp{Left: Ident("a"), Op: "-", Right: Ident("b")},
	}
	assert.Equal(t, "x - (a - b)", ExprString(sub))

	neg := &UnaryOp{Op: "not", X: &Compare{Left: Ident("a"), Ops: []string{">"}, Rights: []Expr{Ident("b")}}}
	assert.Equal(t, "not a > b", ExprString(neg))
}

func TestFreeNamesRespectsComprehensionScope(t *testing.T) {
	e, err := ParseExpr("[x + y for x in xs if x > limit]")
	require.NoError(t, err)

	var ids []string
	for _, n := range FreeNames(e) {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"xs", "limit", "y"}, ids)
}

func TestFreeNamesLambda(t *testing.T) {
	e, err := ParseExpr("map(lambda r: r + offset, rows)")
	require.NoError(t, err)

	var ids []string
	for _, n := range FreeNames(e) {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"map", "offset", "rows"}, ids)
}

func TestLines(t *testing.T) {
	src := "def f(a):\n" +
		"    x = a\n" +
		"    if x:\n" +
		"        y = 1\n" +
		"    elif a:\n" +
		"        y = 2\n" +
		"    else:\n" +
		"        y = 3\n" +
		"    return y\n"
	mod, err := ParseString(src)
	require.NoError(t, err)
	fn := mod.Body[0].(*FuncDef)

	lines, next := Lines(fn.Body, 2)
	assert.Equal(t, 10, next)
	assert.Equal(t, 2, lines[fn.Body[0]])
	assert.Equal(t, 3, lines[fn.Body[1]])
	ifs := fn.Body[1].(*If)
	assert.Equal(t, 4, lines[ifs.Body[0]])
	elif := ifs.Else[0].(*If)
	assert.Equal(t, 5, lines[elif])
	assert.Equal(t, 8, lines[elif.Else[0]])
	assert.Equal(t, 9, lines[fn.Body[2]])

	assert.Equal(t, []int{2, 3, 9}, StartLines(fn.Body, 2))
}

func TestRewriteNames(t *testing.T) {
	mod, err := ParseString("x = a + x\nfor i in x:\n    t[i] = x\n")
	require.NoError(t, err)

	out := RewriteNames(mod.Body, func(n *Name, store bool) Expr {
		if n.ID == "x" {
			return SelfAttr("x")
		}
		return n
	})
	assert.Equal(t, "self.x = a + self.x\nfor i in self.x:\n    t[i] = self.x\n", PrintStmts(out, 0))
	// input untouched
	assert.Equal(t, "x = a + x\nfor i in x:\n    t[i] = x\n", PrintStmts(mod.Body, 0))
}

func TestStoredBases(t *testing.T) {
	mod, err := ParseString("a = 1\nfor i in r:\n    b += i\n    a, c = i, i\nt['k'] = 2\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "i", "b", "c"}, StoredBases(mod.Body))
}

func TestStmtContainsYield(t *testing.T) {
	mod, err := ParseString("if x:\n    yield (x, 1)\nelse:\n    y = 2\n")
	require.NoError(t, err)
	assert.True(t, StmtContainsYield(mod.Body[0]))

	mod, err = ParseString("y = 2\n")
	require.NoError(t, err)
	assert.False(t, StmtContainsYield(mod.Body[0]))
}
