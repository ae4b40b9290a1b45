package diag

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Reporter renders diagnostics with the surrounding source lines.
type Reporter struct {
	filename string
	lines    []string
}

// NewReporter creates a reporter for one source file.
func NewReporter(filename, source string) *Reporter {
	return &Reporter{
		filename: filename,
		lines:    strings.Split(source, "\n"),
	}
}

// Format renders a single diagnostic.
//
//	error[E002]: unsupported construct "with"
//	  --> udf.py:4
//	   |
//	 4 |     with open(p) as f:
//	   |     ^^^^^^^^^^^^^^^^^^
func (r *Reporter) Format(err *Error) string {
	var b strings.Builder

	levelColor := r.levelColor(err.Level)
	dim := color.New(color.Faint).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	level := string(err.Level)
	if level == "" {
		level = string(LevelError)
	}
	if err.Code != "" {
		fmt.Fprintf(&b, "%s[%s]: %s\n", levelColor(level), err.Code, err.Message)
	} else {
		fmt.Fprintf(&b, "%s: %s\n", levelColor(level), err.Message)
	}

	width := len(fmt.Sprint(err.Line + 1))
	indent := strings.Repeat(" ", width)

	if err.Line <= 0 || err.Line > len(r.lines) {
		fmt.Fprintf(&b, "%s %s %s\n", indent, dim("-->"), r.filename)
		r.writeDetails(&b, err, indent)
		return b.String()
	}

	fmt.Fprintf(&b, "%s %s %s:%d\n", indent, dim("-->"), r.filename, err.Line)
	fmt.Fprintf(&b, "%s %s\n", indent, dim("|"))

	if err.Line > 1 {
		fmt.Fprintf(&b, "%s %s %s\n", dim(fmt.Sprintf("%*d", width, err.Line-1)), dim("|"), r.lines[err.Line-2])
	}

	content := r.lines[err.Line-1]
	fmt.Fprintf(&b, "%s %s %s\n", bold(fmt.Sprintf("%*d", width, err.Line)), dim("|"), content)

	trimmed := strings.TrimLeft(content, " \t")
	col := len(content) - len(trimmed)
	length := len(strings.TrimRight(trimmed, " \t"))
	if length == 0 {
		length = 1
	}
	marker := strings.Repeat(" ", col) + strings.Repeat("^", length)
	fmt.Fprintf(&b, "%s %s %s\n", indent, dim("|"), levelColor(marker))

	r.writeDetails(&b, err, indent)
	return b.String()
}

// FormatAll renders a list of diagnostics separated by blank lines.
func (r *Reporter) FormatAll(errs []*Error) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, r.Format(e))
	}
	return strings.Join(parts, "\n")
}

func (r *Reporter) writeDetails(b *strings.Builder, err *Error, indent string) {
	if len(err.Details) == 0 {
		return
	}
	note := color.New(color.FgCyan).SprintFunc()
	for _, k := range err.DetailKeys() {
		fmt.Fprintf(b, "%s %s %s: %v\n", indent, note("="), k, err.Details[k])
	}
}

func (r *Reporter) levelColor(level Level) func(a ...interface{}) string {
	switch level {
	case LevelWarning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}
