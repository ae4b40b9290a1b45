package compiler

import (
	"strconv"
	"strings"
)

// Directive is an instruction on the first line of a UDF source:
// `#<n>` requests a cut at line n and `#baseline` selects baseline mode.
type Directive struct {
	CutLine  *int
	Baseline bool
}

// ParseDirective reads the directive on the first line of source and
// returns it with the source minus that line. Source without a directive is
// returned unchanged.
func ParseDirective(source string) (Directive, string) {
	first, rest, _ := strings.Cut(source, "\n")
	first = strings.TrimSpace(first)
	if !strings.HasPrefix(first, "#") || len(first) < 2 {
		return Directive{}, source
	}
	body := strings.TrimSpace(first[1:])
	if body == "baseline" {
		return Directive{Baseline: true}, rest
	}
	if body == "" || strings.TrimLeft(body, "0123456789") != "" {
		return Directive{}, source
	}
	n, err := strconv.Atoi(body)
	if err != nil {
		return Directive{}, source
	}
	return Directive{CutLine: &n}, rest
}

// Apply sets the directive on opts. Settings already present in opts win.
func (d Directive) Apply(opts *Options) {
	if d.Baseline {
		opts.Baseline = true
	}
	if d.CutLine != nil && opts.CutLine == nil {
		n := *d.CutLine
		opts.CutLine = &n
	}
}
