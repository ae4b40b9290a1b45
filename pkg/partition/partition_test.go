package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-udf-splitter/pkg/normalize"
	"github.com/l3aro/go-udf-splitter/pkg/ssa"
)

func ssaUnit(t *testing.T, src string) *normalize.SourceUnit {
	t.Helper()
	unit, err := normalize.Normalize(src, normalize.DefaultOptions())
	require.NoError(t, err)
	unit, err = ssa.Convert(unit)
	require.NoError(t, err)
	return unit
}

func TestSynthesizeTwoArguments(t *testing.T) {
	unit := ssaUnit(t, "import pandas as pd\n\ndef f(a, b):\n    x = a + 1\n    y = b * 2\n    return x + y\n")

	res, err := Synthesize(unit, []int{3}, DefaultOptions())
	require.NoError(t, err)

	want := `import pandas as pd

class Operator:
    def process_table_0(self, a):
        self.x = a + 1
        yield None

    def process_table_1(self, b):
        y = b * 2
        yield self.x + y
`
	assert.Equal(t, want, res.Source)

	require.Len(t, res.Partitions, 2)
	assert.Equal(t, "a", res.Partitions[0].Arg)
	assert.Equal(t, []string{"a"}, res.Partitions[0].Params)
	assert.Equal(t, []string{"x"}, res.Partitions[0].Promoted)
	assert.Equal(t, "b", res.Partitions[1].Arg)
	assert.Equal(t, []string{"b"}, res.Partitions[1].Params)
	assert.Equal(t, []string{"x"}, res.Partitions[1].Promoted)
}

func TestSynthesizePromotesOnlyCrossingVariables(t *testing.T) {
	unit := ssaUnit(t, `def f(a, b, c):
    x = a * 2
    tmp = x + 1
    x = tmp - a
    y = b + x
    z = c + y
    return z
`)
	// lines: x 2, tmp 3, x_1 4, y 5, z 6, return 7
	res, err := Synthesize(unit, []int{5, 6}, DefaultOptions())
	require.NoError(t, err)

	want := `class Operator:
    def process_table_0(self, a):
        x = a * 2
        tmp = x + 1
        self.x_1 = tmp - a
        yield None

    def process_table_1(self, b):
        self.y = b + self.x_1
        yield None

    def process_table_2(self, c):
        z = c + self.y
        yield z
`
	assert.Equal(t, want, res.Source)
	assert.Equal(t, []string{"x_1"}, res.Partitions[0].Promoted)
	assert.Equal(t, []string{"x_1", "y"}, res.Partitions[1].Promoted)
	assert.Equal(t, []string{"y"}, res.Partitions[2].Promoted)
}

func TestSynthesizeSignatureListsReferencedArguments(t *testing.T) {
	unit := ssaUnit(t, "def f(a: pd.DataFrame, b: int):\n    x = a.sum()\n    y = a.mean() + b\n    return x + y\n")

	res, err := Synthesize(unit, []int{3}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.Partitions[1].Params)
	assert.Contains(t, res.Source, "def process_table_0(self, a: pd.DataFrame):")
	assert.Contains(t, res.Source, "def process_table_1(self, a: pd.DataFrame, b: int):")
}

func TestSynthesizeMissingCuts(t *testing.T) {
	unit := ssaUnit(t, "def f(a, b, c):\n    x = a\n    y = b\n    return x + y\n")

	res, err := Synthesize(unit, []int{3}, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Partitions, 3)
	assert.Equal(t, "c", res.Partitions[2].Arg)
	assert.Empty(t, res.Partitions[2].Params)
	assert.Contains(t, res.Source, "    def process_table_2(self):\n        yield None\n")
}

func TestSynthesizeNestedReturn(t *testing.T) {
	unit := ssaUnit(t, "def f(a, b):\n    x = a\n    if b:\n        return x\n    return b\n")

	res, err := Synthesize(unit, []int{3}, DefaultOptions())
	require.NoError(t, err)

	want := `class Operator:
    def process_table_0(self, a):
        self.x = a
        yield None

    def process_table_1(self, b):
        if b:
            yield self.x
            return
        yield b
`
	assert.Equal(t, want, res.Source)
}

func TestSynthesizeSingleArgument(t *testing.T) {
	unit := ssaUnit(t, "def f(rows):\n    total = 0\n    for r in rows:\n        total += r\n    return total\n")

	res, err := Synthesize(unit, nil, DefaultOptions())
	require.NoError(t, err)

	want := `class Operator:
    def process_table_0(self, rows):
        total = 0
        total_1 = total
        for r in rows:
            total_1 = total_1 + r
        yield total_1
`
	assert.Equal(t, want, res.Source)
	require.Len(t, res.Partitions, 1)
	assert.Empty(t, res.Partitions[0].Promoted)
}

func TestSynthesizeNoArguments(t *testing.T) {
	unit := ssaUnit(t, "def f():\n    print(1)\n")

	res, err := Synthesize(unit, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "class Operator:\n    def process_table_0(self):\n        print(1)\n        yield None\n", res.Source)
}

func TestSynthesizeRejectsBadCuts(t *testing.T) {
	unit := ssaUnit(t, "def f(a, b):\n    x = a\n    if x:\n        x = b\n    return x\n")

	_, err := Synthesize(unit, []int{5}, DefaultOptions())
	assert.Error(t, err, "line inside a compound statement")

	_, err = Synthesize(unit, []int{3, 4}, DefaultOptions())
	assert.Error(t, err, "more cuts than arguments allow")
}

func TestSynthesizeCustomNames(t *testing.T) {
	unit := ssaUnit(t, "def f(a, b):\n    x = a + 1\n    y = b * 2\n    return x + y\n")

	res, err := Synthesize(unit, []int{3}, Options{ClassName: "Stage", MethodPrefix: "port_"})
	require.NoError(t, err)
	assert.Contains(t, res.Source, "class Stage:\n    def port_0(self, a):")
	assert.Contains(t, res.Source, "    def port_1(self, b):")
}

func TestBaseline(t *testing.T) {
	unit, err := normalize.Normalize("import math\n\ndef f(a: int, b):\n    x = a + b\n    if x:\n        return x\n    return 0\n", normalize.DefaultOptions())
	require.NoError(t, err)

	res := Baseline(unit, DefaultOptions())
	want := `import math

class Operator:
    def process_tables(self, a: int, b):
        x = a + b
        if x:
            yield x
            return
        yield 0
`
	assert.Equal(t, want, res.Source)
	assert.Equal(t, []string{"a", "b"}, res.Partitions[0].Params)
}
