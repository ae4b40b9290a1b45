package scanner

import (
	"path"
	"strings"
)

// IgnorePattern is a single gitignore-style pattern.
type IgnorePattern struct {
	raw      string
	negation bool // leading !
	dirOnly  bool // trailing /
	anchored bool // leading / or an inner slash
	segments []string
}

// ParseIgnorePattern parses a gitignore-style pattern string.
func ParseIgnorePattern(pattern string) IgnorePattern {
	p := IgnorePattern{raw: pattern}

	if strings.HasPrefix(pattern, "!") {
		p.negation = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		p.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		p.anchored = true
		pattern = pattern[1:]
	} else if strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "**/") {
		p.anchored = true
	}
	p.segments = strings.Split(pattern, "/")
	return p
}

// String returns the pattern as written.
func (p IgnorePattern) String() string {
	return p.raw
}

// IsNegation reports whether the pattern re-includes matches.
func (p IgnorePattern) IsNegation() bool {
	return p.negation
}

// Match reports whether rel, a slash-separated path relative to the
// directory holding the pattern, is matched. A directory pattern matches
// everything below the directory.
func (p IgnorePattern) Match(rel string) bool {
	parts := strings.Split(rel, "/")
	if p.anchored {
		return p.matchPrefix(p.segments, parts)
	}
	for i := range parts {
		if p.matchPrefix(p.segments, parts[i:]) {
			return true
		}
	}
	return false
}

// matchPrefix matches pattern segments against the leading path segments.
// The pattern may match a parent directory of the path, in which case the
// remaining path segments are below it.
func (p IgnorePattern) matchPrefix(pattern, parts []string) bool {
	if len(pattern) == 0 {
		if len(parts) == 0 {
			return !p.dirOnly
		}
		return true
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(parts); i++ {
			if p.matchPrefix(pattern[1:], parts[i:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], parts[0])
	if err != nil || !ok {
		return false
	}
	return p.matchPrefix(pattern[1:], parts[1:])
}
