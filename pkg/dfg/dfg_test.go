package dfg

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-udf-splitter/pkg/diag"
	"github.com/l3aro/go-udf-splitter/pkg/normalize"
	"github.com/l3aro/go-udf-splitter/pkg/ssa"
)

func build(t *testing.T, src string) *Graph {
	t.Helper()
	unit, err := normalize.Normalize(src, normalize.DefaultOptions())
	require.NoError(t, err)
	unit, err = ssa.Convert(unit)
	require.NoError(t, err)
	g, err := Build(unit)
	require.NoError(t, err)
	return g
}

func key(v string, line int) VertexKey {
	return VertexKey{Var: v, Line: line}
}

func TestBuildTwoArguments(t *testing.T) {
	g := build(t, "def f(a, b):\n    x = a + 1\n    y = b * 2\n    return x + y\n")

	want := []Edge{
		{From: key("a", 2), To: key("x", 2), Kind: EdgeAssignment},
		{From: key("b", 3), To: key("y", 3), Kind: EdgeAssignment},
		{From: key("a", 1), To: key("a", 2), Kind: EdgeTemporal},
		{From: key("b", 1), To: key("b", 3), Kind: EdgeTemporal},
		{From: key("x", 2), To: key("x", 4), Kind: EdgeTemporal},
		{From: key("y", 3), To: key("y", 4), Kind: EdgeTemporal},
	}
	if diff := cmp.Diff(want, g.Edges); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []Statement{{2, 2}, {3, 3}, {4, 4}}, g.Statements)
	assert.Equal(t, 2, g.FirstUse("a"))
	assert.Equal(t, 3, g.FirstUse("b"))
	assert.Equal(t, 0, g.FirstUse("x"))

	v, ok := g.Vertex(key("a", 1))
	require.True(t, ok)
	assert.True(t, v.Def)
	assert.False(t, v.Use)

	require.NoError(t, g.DetectCycle())
}

func TestBuildIgnoresGlobals(t *testing.T) {
	g := build(t, "import numpy as np\n\ndef f(a):\n    m = np.mean(a) + len(a)\n    return m\n")
	for _, v := range g.Vertices {
		assert.NotEqual(t, "np", v.Var)
		assert.NotEqual(t, "len", v.Var)
	}
}

func TestBuildNestedLines(t *testing.T) {
	g := build(t, "def f(a):\n    total = 0\n    for v in a:\n        if v:\n            total += v\n    return total\n")

	// SSA inserts `total_1 = total` on line 3, pushing the loop to line 4.
	assert.Equal(t, []Statement{{2, 2}, {3, 3}, {4, 6}, {7, 7}}, g.Statements)

	_, ok := g.Vertex(key("v", 4))
	assert.True(t, ok, "loop target defined on the loop header")
	_, ok = g.Vertex(key("total_1", 6))
	assert.True(t, ok, "nested statement uses its own line")

	assert.Contains(t, g.Edges, Edge{From: key("a", 4), To: key("v", 4), Kind: EdgeAssignment})
	assert.Contains(t, g.Edges, Edge{From: key("v", 6), To: key("total_1", 6), Kind: EdgeAssignment})
	require.NoError(t, g.DetectCycle())
}

func TestBuildMutation(t *testing.T) {
	g := build(t, "def f(a, k):\n    t = {}\n    t[k] = a\n    return t\n")
	assert.Contains(t, g.Edges, Edge{From: key("a", 3), To: key("t", 3), Kind: EdgeAssignment})
	assert.Contains(t, g.Edges, Edge{From: key("k", 3), To: key("t", 3), Kind: EdgeAssignment})
}

func TestDetectCycle(t *testing.T) {
	g := build(t, "def f(a):\n    for r in a:\n        x = y = x + y\n    return x\n")

	err := g.DetectCycle()
	require.Error(t, err)
	assert.ErrorIs(t, err, diag.ErrDependencyCycle)

	d, ok := diag.AsError(err)
	require.True(t, ok)
	assert.Equal(t, 3, d.Line)
	assert.Equal(t, []string{"x@3", "y@3", "x@3"}, d.Details["cycle"])
}

func TestFromAnnotation(t *testing.T) {
	tests := []struct {
		annotation string
		want       TypeTag
	}{
		{"pd.DataFrame", TypeDataFrame},
		{"pandas.Series", TypeSeries},
		{"int", TypeInt},
		{"List[int]", TypeInt},
		{"float", TypeFloat},
		{"str", TypeStr},
		{"bool", TypeBool},
		{"list", TypeList},
		{"Dict[str, Any]", TypeStr},
		{"tuple", TypeTuple},
		{"set", TypeSet},
		{"np.ndarray", TypeUnknown},
		{"", TypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.annotation, func(t *testing.T) {
			assert.Equal(t, tt.want, FromAnnotation(tt.annotation))
		})
	}
}

func TestInferTypes(t *testing.T) {
	g := build(t, `import pandas as pd

def f(df: pd.DataFrame, n: int, *rest, **opts):
    col = df["price"]
    m = df.mean()
    both = pd.concat([df, df])
    ok = n > 3
    neg = not ok
    s = n * 2
    total = df + df
    scaled = col * 2
    mixed = df - col
    guess = opts + 1
    name = "x"
    joined = name + name
    items = [1, 2]
    pairs = {k: v for k, v in opts.items()}
    copy = items
    c = len(items)
    other = rest.count(1)
    return col
`)
	want := TypeMap{
		"df":     TypeDataFrame,
		"n":      TypeInt,
		"rest":   TypeTuple,
		"opts":   TypeDict,
		"col":    TypeSeries,
		"m":      TypeSeries,
		"both":   TypeDataFrame,
		"ok":     TypeBool,
		"neg":    TypeBool,
		"s":      TypeNumeric,
		"total":  TypeDataFrame,
		"scaled": TypeSeries,
		"mixed":  TypeDataFrame,
		"joined": TypeUnknown,
		"guess":  TypeUnknown,
		"name":   TypeStr,
		"items":  TypeList,
		"pairs":  TypeDict,
		"copy":   TypeList,
		"c":      TypeInt,
		"other":  TypeUnknown,
	}
	if diff := cmp.Diff(want, g.Types); diff != "" {
		t.Errorf("types mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, TypeUnknown, g.TypeOf("missing"))
}

func TestDOT(t *testing.T) {
	g := build(t, "def f(a):\n    x = a\n    x = x + 1\n    return x\n")
	out := g.DOT()

	assert.Contains(t, out, "digraph VariableDependencyGraph {")
	assert.Contains(t, out, "subgraph cluster_line_1 {")
	assert.Contains(t, out, `"a_1" [label="a\n(line 1)", fillcolor="lightblue"];`)
	assert.Contains(t, out, `"x_1_3" [label="x_1\n(line 3)", fillcolor="lightgreen"];`)
	assert.Contains(t, out, `"a_2" -> "x_2" [color=red, style=solid];`)
	assert.Contains(t, out, `"x_2" -> "x_3" [color=blue, style=dashed];`)
}
