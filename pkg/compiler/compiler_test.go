package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-udf-splitter/internal/log"
	"github.com/l3aro/go-udf-splitter/pkg/cut"
	"github.com/l3aro/go-udf-splitter/pkg/diag"
)

const twoArgs = "import pandas as pd\n\ndef f(a, b):\n    x = a + 1\n    y = b * 2\n    return x + y\n"

const threeStatements = "def f(a, b):\n" +
	"    s = \"abc\"\n" +
	"    n = a + 1\n" +
	"    items = [a, b]\n" +
	"    return s, n, items\n"

type recordingLogger struct {
	warnings []string
	debug    int
}

func (r *recordingLogger) Debug(msg string, args ...interface{}) { r.debug++ }
func (r *recordingLogger) Info(msg string, args ...interface{})  {}
func (r *recordingLogger) Warn(msg string, args ...interface{})  { r.warnings = append(r.warnings, msg) }
func (r *recordingLogger) Error(msg string, args ...interface{}) {}
func (r *recordingLogger) SetLevel(level log.Level)              {}
func (r *recordingLogger) SetJSONOutput(enabled bool)            {}

func intp(n int) *int { return &n }

func TestCompileTwoArguments(t *testing.T) {
	res, err := Compile(context.Background(), twoArgs, DefaultOptions())
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
	assert.Equal(t, want, res.GeneratedSource)
	assert.Equal(t, 2, res.ArgumentCount)
	assert.Equal(t, []string{"import pandas as pd"}, res.Imports)
	assert.Empty(t, res.Warnings)

	wantCuts := []CutDescriptor{{
		Line:      3,
		Variables: []string{"b", "x"},
		Cost:      16,
		Bonus:     cut.DefaultArgumentBonus,
		Score:     16 - cut.DefaultArgumentBonus,
		Source:    CutHeuristic,
	}}
	if diff := cmp.Diff(wantCuts, res.ChosenCuts); diff != "" {
		t.Errorf("chosen cuts mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, wantCuts[0].Line, res.RankedCuts[0].Line)
	assert.Contains(t, res.SSASource, "def f(a, b):\n    x = a + 1\n")
}

func TestCompileThreeArguments(t *testing.T) {
	src := "def f(a, b, c):\n    x = a\n    y = b\n    z = c\n    return x + y + z\n"

	res, err := Compile(context.Background(), src, DefaultOptions())
	require.NoError(t, err)

	var lines []int
	for _, c := range res.ChosenCuts {
		lines = append(lines, c.Line)
	}
	assert.Equal(t, []int{3, 4}, lines)
	assert.Len(t, res.Partitions, 3)
	assert.Contains(t, res.GeneratedSource, "    def process_table_2(self, c):\n        z = c\n        yield self.x + self.y + z\n")
}

func TestCompileRequestedCut(t *testing.T) {
	opts := DefaultOptions()
	opts.CutLine = intp(3)

	res, err := Compile(context.Background(), threeStatements, opts)
	require.NoError(t, err)
	require.Len(t, res.ChosenCuts, 1)
	assert.Equal(t, 3, res.ChosenCuts[0].Line)
	assert.Equal(t, CutOverride, res.ChosenCuts[0].Source)
	assert.Empty(t, res.Warnings)

	assert.Equal(t, 4, res.RankedCuts[0].Line, "the unrequested ranking prefers line 4")
}

func TestCompileInvalidCutSubstituted(t *testing.T) {
	logger := &recordingLogger{}
	opts := DefaultOptions()
	opts.CutLine = intp(2)
	opts.Logger = logger

	res, err := Compile(context.Background(), threeStatements, opts)
	require.NoError(t, err)

	require.Len(t, res.ChosenCuts, 1)
	assert.Equal(t, 4, res.ChosenCuts[0].Line)
	assert.Equal(t, CutHeuristic, res.ChosenCuts[0].Source)

	require.Len(t, res.Warnings, 1)
	w := res.Warnings[0]
	assert.True(t, errors.Is(w, diag.ErrInvalidCutRequest))
	assert.True(t, w.IsWarning())
	assert.Equal(t, 2, w.Details["requested"])
	assert.Equal(t, 4, w.Details["substituted"])

	assert.Equal(t, []string{"requested cut replaced"}, logger.warnings)
	assert.Positive(t, logger.debug, "stage timings are logged")
}

func TestCompileStrictCutRequest(t *testing.T) {
	opts := DefaultOptions()
	opts.CutLine = intp(2)
	opts.StrictCutRequests = true

	_, err := Compile(context.Background(), threeStatements, opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, diag.ErrInvalidCutRequest)
}

func TestCompileCutOnSingleArgument(t *testing.T) {
	opts := DefaultOptions()
	opts.CutLine = intp(3)

	res, err := Compile(context.Background(), "def f(rows):\n    n = len(rows)\n    m = n * 2\n    return m\n", opts)
	require.NoError(t, err)
	assert.Empty(t, res.ChosenCuts)
	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], diag.ErrInvalidCutRequest)
	assert.Len(t, res.Partitions, 1)
}

func TestCompileDependencyCycle(t *testing.T) {
	_, err := Compile(context.Background(), "def f(a):\n    for r in a:\n        x = y = x + y\n    return x\n", DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, diag.ErrDependencyCycle)

	d, ok := diag.AsError(err)
	require.True(t, ok)
	assert.Equal(t, 3, d.Line)
}

func TestCompileConditionalBindings(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wantSSA   string
		forbidden []string
	}{
		{
			name:      "loop target rebound by a later loop",
			src:       "def f(a, b):\n    s = 0\n    for i in a:\n        s = s + i\n    t = 0\n    for i in b:\n        t = t + i\n    return s + t\n",
			wantSSA:   "    for i_1 in b:\n",
			forbidden: []string{"i_1 = i\n", "= self.i\n"},
		},
		{
			name:      "name bound in an earlier branch",
			src:       "def f(a, b):\n    s = 0\n    if a:\n        x = 1\n        s = s + x\n    if b:\n        x = 2\n        s = s + x\n    return s\n",
			wantSSA:   "        x_1 = 2\n",
			forbidden: []string{"x_1 = x\n", "= self.x\n"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Compile(context.Background(), tt.src, DefaultOptions())
			require.NoError(t, err)
			assert.Contains(t, res.SSASource, tt.wantSSA)
			for _, f := range tt.forbidden {
				assert.NotContains(t, res.SSASource, f)
				assert.NotContains(t, res.GeneratedSource, f)
			}
		})
	}

	_, err := Compile(context.Background(), "def f(a, b):\n    if a:\n        x = 1\n    if b:\n        x = 2\n    return x\n", DefaultOptions())
	assert.ErrorIs(t, err, diag.ErrUnsupportedConstruct)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"syntax error", "def f(a:\n    return a\n", diag.ErrNormalization},
		{"no function", "x = 1\n", diag.ErrNormalization},
		{"nested def", "def f(a, b):\n    def g():\n        return 1\n    return g()\n", diag.ErrUnsupportedConstruct},
		{"with statement", "def f(a, b):\n    with open(a) as fh:\n        x = fh.read()\n    return x\n", diag.ErrUnsupportedConstruct},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(context.Background(), tt.src, DefaultOptions())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCompileBaseline(t *testing.T) {
	opts := DefaultOptions()
	opts.Baseline = true

	res, err := Compile(context.Background(), twoArgs, opts)
	require.NoError(t, err)

	want := `import pandas as pd

class Operator:
    def process_tables(self, a, b):
        x = a + 1
        y = b * 2
        yield x + y
`
	assert.Equal(t, want, res.GeneratedSource)
	assert.Empty(t, res.ChosenCuts)
	assert.Empty(t, res.SSASource)
}

func TestCompileBaselineSkipsAnalysis(t *testing.T) {
	opts := DefaultOptions()
	opts.Baseline = true

	_, err := Compile(context.Background(), "def f(a):\n    for r in a:\n        x = y = x + y\n    return x\n", opts)
	assert.NoError(t, err, "cycles are not detected in baseline mode")
}

func TestCompileCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Compile(ctx, twoArgs, DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompileZeroOptions(t *testing.T) {
	res, err := Compile(context.Background(), twoArgs, Options{})
	require.NoError(t, err)
	assert.Contains(t, res.GeneratedSource, "class Operator:")
	assert.Equal(t, 3, res.ChosenCuts[0].Line)
}

func TestCompileIgnoresDirectiveLine(t *testing.T) {
	res, err := Compile(context.Background(), "#3\n"+twoArgs, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, res.ChosenCuts[0].Line)
	assert.Equal(t, CutHeuristic, res.ChosenCuts[0].Source, "directives are applied by the caller")
}

func TestRewriteLoopsToStream(t *testing.T) {
	src := "def f(rows):\n    preds = []\n    for r in rows:\n        preds.append(r)\n    return preds\n"
	out, err := RewriteLoopsToStream(src)
	require.NoError(t, err)
	assert.Equal(t, "def f(rows):\n    for r in rows:\n        yield {\"pred\": r}\n", out)

	unchanged := "def f(rows):\n    return rows\n"
	out, err = RewriteLoopsToStream(unchanged)
	require.NoError(t, err)
	assert.Equal(t, unchanged, out)
}

func TestEliminateDisabledPorts(t *testing.T) {
	src := "def f(x):\n    y = x * 2\n    yield x, 0\n    yield y, 1\n"

	out, warnings, err := EliminateDisabledPorts(src, map[int]bool{1: false})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "def f(x):\n    yield (x, 0)\n", out)

	out, warnings, err = EliminateDisabledPorts(src, map[int]bool{0: false, 1: false})
	require.NoError(t, err)
	assert.Equal(t, "def f(x):\n    pass\n", out)
	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], diag.ErrEmptyResult)
}

func TestAnalyze(t *testing.T) {
	a, err := Analyze(context.Background(), "#baseline\n"+threeStatements, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "f", a.Function)
	require.Len(t, a.Ranked, 2)
	assert.Equal(t, 4, a.Ranked[0].Line)
	assert.NotEmpty(t, a.Graph.Vertices)
	assert.Contains(t, a.Graph.DOT(), "digraph")

	_, err = Analyze(context.Background(), "def f(a):\n    for r in a:\n        x = y = x + y\n    return x\n", DefaultOptions())
	assert.ErrorIs(t, err, diag.ErrDependencyCycle)
}

func TestCanonicalSource(t *testing.T) {
	src := "#3\nimport pandas as pd\n\ndef f(a, b):\n    # comment\n    x = a + 1\n\n    return x\n"
	out, err := CanonicalSource(src, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "def f(a, b):\n    x = a + 1\n    return x\n", out)

	_, err = CanonicalSource("def f(:\n", DefaultOptions())
	assert.ErrorIs(t, err, diag.ErrNormalization)
}
