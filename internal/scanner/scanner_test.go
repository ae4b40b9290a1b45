package scanner

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		fullPath := filepath.Join(root, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}
}

func paths(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestScannerScan(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"udfs/score.py":                "def f(a, b):\n    return a\n",
		"udfs/nested/clean.py":         "def g(x):\n    return x\n",
		"README.md":                    "# UDFs",
		"udfs/stub.pyi":                "def f(a, b): ...\n",
		".hidden/secret.py":            "def h(a):\n    return a\n",
		"__pycache__/score.py":         "",
		".venv/lib/site.py":            "",
		"build/lib/udfs/score_copy.py": "",
	})

	results, err := New(DefaultOptions()).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []string{"udfs/nested/clean.py", "udfs/score.py"}
	if got := paths(results); !reflect.DeepEqual(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}
	for _, f := range results {
		if !filepath.IsAbs(f.FullPath) {
			t.Errorf("FullPath %q is not absolute", f.FullPath)
		}
		if f.Size == 0 {
			t.Errorf("Size of %s = 0", f.Path)
		}
	}
}

func TestScannerWithIgnoreFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		".udfsplitignore":           "# generated code\ngenerated/\n*_test.py\n!keep_test.py\n",
		"a.py":                      "x",
		"a_test.py":                 "x",
		"keep_test.py":              "x",
		"generated/out.py":          "x",
		"pkg/b.py":                  "x",
		"pkg/.udfsplitignore":       "/local.py\n",
		"pkg/local.py":              "x",
		"pkg/sub/local.py":          "x",
		"pkg/generated/deep/out.py": "x",
	})

	results, err := New(DefaultOptions()).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []string{"a.py", "keep_test.py", "pkg/b.py", "pkg/sub/local.py"}
	if got := paths(results); !reflect.DeepEqual(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}
}

func TestScannerMaxFileSize(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"small.py": "x",
		"large.py": strings.Repeat("x", 100),
	})

	opts := DefaultOptions()
	opts.MaxFileSize = 10
	results, err := New(opts).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if got := paths(results); !reflect.DeepEqual(got, []string{"small.py"}) {
		t.Errorf("Scan() = %v", got)
	}
}

func TestScannerSingleFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{"udf.txt": "def f(a):\n    return a\n"})

	results, err := Scan(filepath.Join(tmpDir, "udf.txt"))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(results) != 1 || results[0].Path != "udf.txt" {
		t.Errorf("Scan() = %+v", results)
	}
}

func TestScannerMissingRoot(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestIgnorePatternMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"*.py", "a.py", true},
		{"*.py", "dir/a.py", true},
		{"*.py", "a.pyi", false},
		{"build/", "build/x.py", true},
		{"build/", "src/build/x.py", true},
		{"build/", "build", false},
		{"/local.py", "local.py", true},
		{"/local.py", "sub/local.py", false},
		{"docs/*.py", "docs/a.py", true},
		{"docs/*.py", "x/docs/a.py", false},
		{"**/fixtures", "a/b/fixtures/f.py", true},
		{"a/**/z.py", "a/z.py", true},
		{"a/**/z.py", "a/b/c/z.py", true},
		{"test_?.py", "test_1.py", true},
		{"test_[ab].py", "test_c.py", false},
		{"!keep.py", "keep.py", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"_"+tt.path, func(t *testing.T) {
			p := ParseIgnorePattern(tt.pattern)
			if got := p.Match(tt.path); got != tt.want {
				t.Errorf("ParseIgnorePattern(%q).Match(%q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}

	if !ParseIgnorePattern("!keep.py").IsNegation() {
		t.Error("IsNegation() = false for !keep.py")
	}
	if got := ParseIgnorePattern("build/").String(); got != "build/" {
		t.Errorf("String() = %q", got)
	}
}
