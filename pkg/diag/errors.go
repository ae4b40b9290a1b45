// Package diag defines the structured errors and warnings produced by the
// compiler passes, and a reporter that renders them against the source text.
package diag

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a diagnostic.
type Kind string

const (
	KindNormalization        Kind = "normalization"
	KindUnsupportedConstruct Kind = "unsupported_construct"
	KindDependencyCycle      Kind = "dependency_cycle"
	KindInvalidCutRequest    Kind = "invalid_cut_request"
	KindEmptyResult          Kind = "empty_result"
)

// Level is the severity of a diagnostic.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Codes reported with each kind.
const (
	CodeNormalization        = "E001"
	CodeUnsupportedConstruct = "E002"
	CodeDependencyCycle      = "E003"
	CodeInvalidCutRequest    = "W001"
	CodeEmptyResult          = "W002"
)

// Sentinels for errors.Is matching. Only the Kind is compared.
var (
	ErrNormalization        = &Error{Kind: KindNormalization}
	ErrUnsupportedConstruct = &Error{Kind: KindUnsupportedConstruct}
	ErrDependencyCycle      = &Error{Kind: KindDependencyCycle}
	ErrInvalidCutRequest    = &Error{Kind: KindInvalidCutRequest}
	ErrEmptyResult          = &Error{Kind: KindEmptyResult}
)

// Error is a structured compiler diagnostic. Warnings use the same type with
// Level set to LevelWarning and are returned alongside a result instead of
// failing the call.
type Error struct {
	Kind      Kind           `json:"kind" yaml:"kind" msgpack:"kind"`
	Level     Level          `json:"level" yaml:"level" msgpack:"level"`
	Code      string         `json:"code" yaml:"code" msgpack:"code"`
	Message   string         `json:"message" yaml:"message" msgpack:"message"`
	Line      int            `json:"line,omitempty" yaml:"line,omitempty" msgpack:"line,omitempty"`
	Construct string         `json:"construct,omitempty" yaml:"construct,omitempty" msgpack:"construct,omitempty"`
	Details   map[string]any `json:"details,omitempty" yaml:"details,omitempty" msgpack:"details,omitempty"`
	Cause     error          `json:"-" yaml:"-" msgpack:"-"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a diagnostic of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// IsWarning reports whether the diagnostic is recoverable.
func (e *Error) IsWarning() bool {
	return e.Level == LevelWarning
}

// WithDetail attaches a key/value pair and returns the same error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// DetailKeys returns the detail keys in sorted order.
func (e *Error) DetailKeys() []string {
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Normalization reports input that cannot be parsed into statements.
func Normalization(line int, format string, args ...any) *Error {
	return &Error{
		Kind:    KindNormalization,
		Level:   LevelError,
		Code:    CodeNormalization,
		Message: fmt.Sprintf(format, args...),
		Line:    line,
	}
}

// Unsupported reports a construct with no single-assignment or graph rule.
func Unsupported(line int, construct string) *Error {
	return &Error{
		Kind:      KindUnsupportedConstruct,
		Level:     LevelError,
		Code:      CodeUnsupportedConstruct,
		Message:   fmt.Sprintf("unsupported construct %q", construct),
		Line:      line,
		Construct: construct,
	}
}

// Cycle reports a dependency cycle. path lists the variables along the cycle.
func Cycle(line int, path []string) *Error {
	e := &Error{
		Kind:    KindDependencyCycle,
		Level:   LevelError,
		Code:    CodeDependencyCycle,
		Message: fmt.Sprintf("dependency cycle: %s", strings.Join(path, " -> ")),
		Line:    line,
	}
	return e.WithDetail("cycle", path)
}

// InvalidCut reports that a requested cut line was replaced. substituted is 0
// when no valid cut exists at all.
func InvalidCut(requested, substituted int) *Error {
	msg := fmt.Sprintf("line %d is not a valid cut", requested)
	if substituted > 0 {
		msg += fmt.Sprintf(", using line %d", substituted)
	} else {
		msg += ", no valid cut available"
	}
	e := &Error{
		Kind:    KindInvalidCutRequest,
		Level:   LevelWarning,
		Code:    CodeInvalidCutRequest,
		Message: msg,
		Line:    requested,
	}
	return e.WithDetail("requested", requested).WithDetail("substituted", substituted)
}

// EmptyResult warns that a function no longer emits anything.
func EmptyResult(line int, function string) *Error {
	return &Error{
		Kind:      KindEmptyResult,
		Level:     LevelWarning,
		Code:      CodeEmptyResult,
		Message:   fmt.Sprintf("function %s has no surviving emissions", function),
		Line:      line,
		Construct: function,
	}
}

// AsError returns the diagnostic wrapped in err, if any.
func AsError(err error) (*Error, bool) {
	var d *Error
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
