// Package scanner finds UDF source files under a directory tree. It honors
// .udfsplitignore files with gitignore-style patterns.
package scanner

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileInfo describes a discovered UDF source file.
type FileInfo struct {
	Path     string // Relative path from root, slash separated
	FullPath string // Absolute path
	Size     int64  // File size in bytes
}

// Options configures the scanner behavior.
type Options struct {
	SkipHidden      bool     // Skip hidden files and directories (starting with .)
	Extensions      []string // File extensions treated as UDF sources
	MaxFileSize     int64    // Files larger than this are skipped; 0 means no limit
	DefaultExcludes []string // Directory names never descended into
	IgnoreFileName  string   // Name of the ignore file
}

// DefaultOptions returns scanner options for Python UDF trees.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		Extensions:     []string{".py"},
		MaxFileSize:    1 << 20,
		IgnoreFileName: ".udfsplitignore",
		DefaultExcludes: []string{
			"__pycache__",
			".venv",
			"venv",
			".tox",
			".nox",
			"site-packages",
			"node_modules",
			"build",
			"dist",
			".git",
		},
	}
}

// Scanner walks a tree and collects UDF sources.
type Scanner struct {
	opts Options
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	return &Scanner{opts: opts}
}

// Scan returns the UDF sources under root sorted by path. A root that is a
// single file is returned as is, regardless of its extension.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	st, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return []FileInfo{{Path: filepath.Base(absRoot), FullPath: absRoot, Size: st.Size()}}, nil
	}

	// Patterns from a directory's ignore file apply to everything below it.
	scoped := map[string][]IgnorePattern{}
	var files []FileInfo

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if rel != "." {
			if s.opts.SkipHidden && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if s.ignored(rel, scoped) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if d.IsDir() {
			if rel != "." && s.excluded(d.Name()) {
				return filepath.SkipDir
			}
			patterns, err := s.loadIgnorePatterns(path)
			if err != nil {
				return fmt.Errorf("loading ignore patterns: %w", err)
			}
			if len(patterns) > 0 {
				scoped[rel] = patterns
			}
			return nil
		}

		if !d.Type().IsRegular() || !s.wanted(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if s.opts.MaxFileSize > 0 && info.Size() > s.opts.MaxFileSize {
			return nil
		}
		files = append(files, FileInfo{Path: rel, FullPath: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (s *Scanner) wanted(name string) bool {
	ext := filepath.Ext(name)
	for _, e := range s.opts.Extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func (s *Scanner) excluded(name string) bool {
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

// ignored applies the patterns of every ancestor directory in order from
// the root down, so deeper files can re-include with `!`.
func (s *Scanner) ignored(rel string, scoped map[string][]IgnorePattern) bool {
	ignored := false
	dir := "."
	segments := strings.Split(rel, "/")
	for i := 0; i < len(segments); i++ {
		if patterns, ok := scoped[dir]; ok {
			sub := strings.Join(segments[i:], "/")
			for _, p := range patterns {
				if p.Match(sub) {
					ignored = !p.IsNegation()
				}
			}
		}
		if dir == "." {
			dir = segments[i]
		} else {
			dir += "/" + segments[i]
		}
	}
	return ignored
}

func (s *Scanner) loadIgnorePatterns(dir string) ([]IgnorePattern, error) {
	if s.opts.IgnoreFileName == "" {
		return nil, nil
	}
	file, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var patterns []IgnorePattern
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, ParseIgnorePattern(line))
	}
	return patterns, sc.Err()
}

// Scan scans root with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}
