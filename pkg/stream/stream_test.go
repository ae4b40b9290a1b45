package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewrite(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "append in loop",
			src: `def predict(rows):
    preds = []
    for r in rows:
        preds.append(r * 2)
    return preds
`,
			want: `def predict(rows):
    for r in rows:
        yield {"pred": r * 2}
`,
		},
		{
			name: "nested append",
			src: `def pick(rows):
    items = []
    for r in rows:
        if r > 0:
            items.append(r)
    return items
`,
			want: `def pick(rows):
    for r in rows:
        if r > 0:
            yield {"item": r}
`,
		},
		{
			name: "list comprehension",
			src: `def squares(xs):
    values = [x * x for x in xs if x > 0]
    return values
`,
			want: `def squares(xs):
    for x in xs:
        if x > 0:
            yield {"value": x * x}
`,
		},
		{
			name: "tuple return keeps other values",
			src: `def score(rows):
    entries = []
    total = 0
    for r in rows:
        entries.append(r)
        total += r
    return entries, total, len(rows), total + 1
`,
			want: `def score(rows):
    total = 0
    for r in rows:
        yield {"entry": r}
        total += r
    yield {"total": total}
    yield {"len": len(rows)}
    yield {"result_2": total + 1}
`,
		},
		{
			name: "method with self attribute",
			src: `class Model:
    def run(self, rows):
        self.outputs = []
        for r in rows:
            self.outputs.append(r)
        return self.outputs
`,
			want: `class Model:
    def run(self, rows):
        for r in rows:
            yield {"output": r}
`,
		},
		{
			name: "early return exits",
			src: `def run(rows, stop):
    results = []
    for r in rows:
        results.append(r)
    if stop:
        return stop
    return results
`,
			want: `def run(rows, stop):
    for r in rows:
        yield {"result": r}
    if stop:
        yield {"stop": stop}
        return
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Rewrite(tt.src)
			require.NoError(t, err)
			assert.True(t, res.Changed)
			assert.Equal(t, tt.want, res.Source)
		})
	}
}

func TestRewriteRejectsOtherUses(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "read outside return",
			src:  "def f(rows):\n    out = []\n    for r in rows:\n        out.append(r)\n    print(len(out))\n    return out\n",
		},
		{
			name: "append outside loop",
			src:  "def f(rows):\n    out = []\n    out.append(rows)\n    return out\n",
		},
		{
			name: "not returned",
			src:  "def f(rows):\n    out = []\n    for r in rows:\n        out.append(r)\n    return None\n",
		},
		{
			name: "non-empty initializer",
			src:  "def f(rows):\n    out = [0]\n    for r in rows:\n        out.append(r)\n    return out\n",
		},
		{
			name: "reassigned",
			src:  "def f(rows):\n    out = []\n    for r in rows:\n        out.append(r)\n    out = sorted(out)\n    return out\n",
		},
		{
			name: "returned inside expression",
			src:  "def f(rows):\n    out = []\n    for r in rows:\n        out.append(r)\n    return len(out)\n",
		},
		{
			name: "comprehension used twice",
			src:  "def f(xs):\n    ys = [x for x in xs]\n    print(ys)\n    return ys\n",
		},
		{
			name: "no function",
			src:  "x = []\nx.append(1)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Rewrite(tt.src)
			require.NoError(t, err)
			assert.False(t, res.Changed)
			assert.Equal(t, tt.src, res.Source)
		})
	}
}

func TestRewriteIdempotent(t *testing.T) {
	src := `import math

class Model:
    def run(self, rows):
        preds = []
        for r in rows:
            preds.append(math.sqrt(r))
        return preds

    def name(self):
        return "model"
`
	first, err := Rewrite(src)
	require.NoError(t, err)
	require.True(t, first.Changed)
	assert.Equal(t, []string{"Model.run"}, first.Functions)

	second, err := Rewrite(first.Source)
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, first.Source, second.Source)
}

func TestRewriteSyntaxError(t *testing.T) {
	_, err := Rewrite("def f(:\n")
	assert.Error(t, err)
}

func TestLabel(t *testing.T) {
	tests := map[string]string{
		"preds":    "pred",
		"results":  "result",
		"result":   "result",
		"outputs":  "output",
		"items":    "item",
		"entries":  "entry",
		"scores":   "score",
		"data":     "data",
		"s":        "s",
		"category": "category",
	}
	for in, want := range tests {
		assert.Equal(t, want, Label(in), in)
	}
}
