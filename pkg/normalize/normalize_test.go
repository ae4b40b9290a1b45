package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-udf-splitter/pkg/diag"
)

func TestNormalize(t *testing.T) {
	src := `import pandas as pd
from typing import Iterator

def f(a: pd.DataFrame, b):
    """Compute things.

    Longer description.
    """
    # a comment

    x = a + 1   # trailing


    y = b * 2
    if x:
        "just a note"
    return x + y
`
	unit, err := Normalize(src, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"import pandas as pd", "from typing import Iterator"}, unit.Imports)
	assert.Equal(t, []string{"a", "b"}, unit.Args())

	want := `def f(a: pd.DataFrame, b):
    x = a + 1
    y = b * 2
    if x:
        pass
    return x + y
`
	assert.Equal(t, want, unit.FunctionSource())
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", "   \n"},
		{"no function", "import os\nx = 1\n"},
		{"two functions", "def f(a):\n    return a\n\ndef g(b):\n    return b\n"},
		{"syntax", "def f(a):\n    return (a\n"},
		{"module statement", "def f(a):\n    return a\n\nprint(f(1))\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.src, DefaultOptions())
			require.Error(t, err)
			assert.ErrorIs(t, err, diag.ErrNormalization)
		})
	}
}

func TestNormalizeMaxStatements(t *testing.T) {
	src := "def f(a):\n    x = 1\n    y = 2\n    z = 3\n    return a\n"

	_, err := Normalize(src, Options{MaxStatements: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, diag.ErrNormalization)

	_, err = Normalize(src, Options{MaxStatements: 4})
	require.NoError(t, err)
}

func TestNormalizeDoesNotMutateParse(t *testing.T) {
	src := "def f(a):\n    \"\"\"doc\"\"\"\n    return a\n"
	unit, err := Normalize(src, DefaultOptions())
	require.NoError(t, err)

	replaced := unit.WithBody(nil)
	assert.Len(t, unit.Func.Body, 1)
	assert.Empty(t, replaced.Func.Body)
}
