// Package compiler is the entry point of the UDF splitter. Compile turns a
// single Python function into a class with one generator method per formal
// argument; RewriteLoopsToStream and EliminateDisabledPorts expose the two
// standalone source passes.
package compiler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/l3aro/go-udf-splitter/internal/log"
	"github.com/l3aro/go-udf-splitter/pkg/cut"
	"github.com/l3aro/go-udf-splitter/pkg/dfg"
	"github.com/l3aro/go-udf-splitter/pkg/diag"
	"github.com/l3aro/go-udf-splitter/pkg/normalize"
	"github.com/l3aro/go-udf-splitter/pkg/partition"
	"github.com/l3aro/go-udf-splitter/pkg/ports"
	"github.com/l3aro/go-udf-splitter/pkg/ssa"
	"github.com/l3aro/go-udf-splitter/pkg/stream"
)

// CutSource tells how a chosen cut was selected.
type CutSource string

const (
	CutHeuristic CutSource = "heuristic"
	CutOverride  CutSource = "override"
)

// CutDescriptor describes a ranked or chosen cut.
type CutDescriptor struct {
	Line      int       `json:"line" yaml:"line" msgpack:"line"`
	Variables []string  `json:"variables" yaml:"variables" msgpack:"variables"`
	Cost      int64     `json:"cost" yaml:"cost" msgpack:"cost"`
	Bonus     int64     `json:"bonus" yaml:"bonus" msgpack:"bonus"`
	Score     int64     `json:"score" yaml:"score" msgpack:"score"`
	Source    CutSource `json:"source" yaml:"source" msgpack:"source"`
}

func describe(c cut.Cut, src CutSource) CutDescriptor {
	return CutDescriptor{
		Line:      c.Line,
		Variables: c.Variables,
		Cost:      c.Cost,
		Bonus:     c.Bonus,
		Score:     c.Score,
		Source:    src,
	}
}

// Options configures a compilation.
type Options struct {
	// CutLine requests a cut at a canonical line. It is honored when valid;
	// otherwise the best-ranked cut is used and a warning is reported.
	CutLine *int
	// Baseline skips analysis and emits a single method taking every
	// argument.
	Baseline bool
	// StrictCutRequests makes an invalid CutLine a hard error.
	StrictCutRequests bool

	// CostModel ranks cuts. A model without sizes means DefaultCostModel.
	CostModel cut.CostModel
	Normalize normalize.Options
	Partition partition.Options

	// Logger receives stage timings. Nil discards them.
	Logger log.Logger
}

// DefaultOptions returns the default compilation options.
func DefaultOptions() Options {
	return Options{
		CostModel: cut.DefaultCostModel(),
		Normalize: normalize.DefaultOptions(),
		Partition: partition.DefaultOptions(),
	}
}

// Result is a compiled UDF.
type Result struct {
	GeneratedSource string                `json:"generated_source" yaml:"generated_source" msgpack:"generated_source"`
	ChosenCuts      []CutDescriptor       `json:"chosen_cuts" yaml:"chosen_cuts" msgpack:"chosen_cuts"`
	ArgumentCount   int                   `json:"argument_count" yaml:"argument_count" msgpack:"argument_count"`
	RankedCuts      []CutDescriptor       `json:"ranked_cuts,omitempty" yaml:"ranked_cuts,omitempty" msgpack:"ranked_cuts,omitempty"`
	SSASource       string                `json:"ssa_source,omitempty" yaml:"ssa_source,omitempty" msgpack:"ssa_source,omitempty"`
	Imports         []string              `json:"imports,omitempty" yaml:"imports,omitempty" msgpack:"imports,omitempty"`
	Partitions      []partition.Partition `json:"partitions" yaml:"partitions" msgpack:"partitions"`
	Warnings        []*diag.Error         `json:"warnings,omitempty" yaml:"warnings,omitempty" msgpack:"warnings,omitempty"`
}

// stage times one step of the pipeline.
type stage struct {
	logger log.Logger
	name   string
	start  time.Time
}

func (o Options) stage(name string) stage {
	return stage{logger: o.Logger, name: name, start: time.Now()}
}

func (s stage) done(args ...interface{}) {
	if s.logger == nil {
		return
	}
	s.logger.Debug("stage finished", append([]interface{}{"stage", s.name, "elapsed", time.Since(s.start)}, args...)...)
}

// Compile splits the function in source into per-argument generator
// methods. A leading directive line (see ParseDirective) is ignored; the
// caller applies it to opts.
func Compile(ctx context.Context, source string, opts Options) (*Result, error) {
	if opts.CostModel.Sizes == nil {
		opts.CostModel = cut.DefaultCostModel()
	}
	if opts.Partition.ClassName == "" {
		opts.Partition = partition.DefaultOptions()
	}
	_, source = ParseDirective(source)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := opts.stage("normalize")
	unit, err := normalize.Normalize(source, opts.Normalize)
	if err != nil {
		return nil, err
	}
	st.done("function", unit.Func.Name)

	args := unit.Args()
	if opts.Baseline {
		res := partition.Baseline(unit, opts.Partition)
		return &Result{
			GeneratedSource: res.Source,
			ArgumentCount:   len(args),
			Imports:         unit.Imports,
			Partitions:      res.Partitions,
		}, nil
	}

	a, err := analyze(ctx, unit, opts)
	if err != nil {
		return nil, err
	}

	out := &Result{
		ArgumentCount: len(args),
		SSASource:     a.SSASource,
		Imports:       unit.Imports,
	}
	for _, c := range a.Ranked {
		out.RankedCuts = append(out.RankedCuts, describe(c, CutHeuristic))
	}
	chosen, warning, err := choose(a.Ranked, len(args)-1, opts)
	if err != nil {
		return nil, err
	}
	if warning != nil {
		if opts.Logger != nil {
			opts.Logger.Warn("requested cut replaced", "requested", warning.Details["requested"], "substituted", warning.Details["substituted"])
		}
		out.Warnings = append(out.Warnings, warning)
	}
	out.ChosenCuts = chosen

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st = opts.stage("synthesize")
	lines := make([]int, len(chosen))
	for i, c := range chosen {
		lines[i] = c.Line
	}
	res, err := partition.Synthesize(a.unit, lines, opts.Partition)
	if err != nil {
		return nil, fmt.Errorf("synthesizing partitions: %w", err)
	}
	st.done("partitions", len(res.Partitions))

	out.GeneratedSource = res.Source
	out.Partitions = res.Partitions
	return out, nil
}

// Analysis is the dependency graph of a UDF with its valid cuts, best
// first.
type Analysis struct {
	Function  string     `json:"function" yaml:"function" msgpack:"function"`
	SSASource string     `json:"ssa_source" yaml:"ssa_source" msgpack:"ssa_source"`
	Graph     *dfg.Graph `json:"graph" yaml:"graph" msgpack:"graph"`
	Ranked    []cut.Cut  `json:"ranked" yaml:"ranked" msgpack:"ranked"`

	unit *normalize.SourceUnit
}

// Analyze runs the pipeline up to cut ranking without synthesizing
// partitions.
func Analyze(ctx context.Context, source string, opts Options) (*Analysis, error) {
	if opts.CostModel.Sizes == nil {
		opts.CostModel = cut.DefaultCostModel()
	}
	_, source = ParseDirective(source)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unit, err := normalize.Normalize(source, opts.Normalize)
	if err != nil {
		return nil, err
	}
	return analyze(ctx, unit, opts)
}

// CanonicalSource returns the normalized function text that canonical
// line numbers refer to, header on line 1.
func CanonicalSource(source string, opts Options) (string, error) {
	_, source = ParseDirective(source)
	unit, err := normalize.Normalize(source, opts.Normalize)
	if err != nil {
		return "", err
	}
	return unit.FunctionSource(), nil
}

func analyze(ctx context.Context, unit *normalize.SourceUnit, opts Options) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := opts.stage("ssa")
	unit, err := ssa.Convert(unit)
	if err != nil {
		return nil, err
	}
	st.done()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st = opts.stage("graph")
	g, err := dfg.Build(unit)
	if err != nil {
		return nil, err
	}
	if err := g.DetectCycle(); err != nil {
		return nil, err
	}
	st.done("vertices", len(g.Vertices), "edges", len(g.Edges))

	st = opts.stage("cuts")
	ranked := cut.Rank(g, cut.Find(g), opts.CostModel)
	st.done("valid", len(ranked))

	return &Analysis{
		Function:  unit.Func.Name,
		SSASource: unit.Source(),
		Graph:     g,
		Ranked:    ranked,
		unit:      unit,
	}, nil
}

// choose picks up to need cuts from ranked, honoring a requested line. The
// result is in line order.
func choose(ranked []cut.Cut, need int, opts Options) ([]CutDescriptor, *diag.Error, error) {
	if need <= 0 {
		if opts.CutLine == nil {
			return nil, nil, nil
		}
		w := diag.InvalidCut(*opts.CutLine, 0)
		if opts.StrictCutRequests {
			w.Level = diag.LevelError
			return nil, nil, w
		}
		return nil, w, nil
	}

	var chosen []CutDescriptor
	var warning *diag.Error
	taken := make(map[int]bool)

	if opts.CutLine != nil {
		requested := *opts.CutLine
		found := false
		for _, c := range ranked {
			if c.Line == requested {
				chosen = append(chosen, describe(c, CutOverride))
				taken[c.Line] = true
				found = true
				break
			}
		}
		if !found {
			substituted := 0
			if len(ranked) > 0 {
				substituted = ranked[0].Line
			}
			warning = diag.InvalidCut(requested, substituted)
			if opts.StrictCutRequests {
				warning.Level = diag.LevelError
				return nil, nil, warning
			}
		}
	}

	for _, c := range ranked {
		if len(chosen) >= need {
			break
		}
		if taken[c.Line] {
			continue
		}
		chosen = append(chosen, describe(c, CutHeuristic))
		taken[c.Line] = true
	}

	sort.Slice(chosen, func(i, j int) bool { return chosen[i].Line < chosen[j].Line })
	return chosen, warning, nil
}

// RewriteLoopsToStream rewrites accumulate-then-return functions in source
// into generators emitting one labeled item at a time. Source without such
// functions is returned unchanged.
func RewriteLoopsToStream(source string) (string, error) {
	res, err := stream.Rewrite(source)
	if err != nil {
		return "", err
	}
	return res.Source, nil
}

// EliminateDisabledPorts removes the emissions to disabled ports from
// source, together with the code only they depended on. Ports missing from
// portEnabled are enabled.
func EliminateDisabledPorts(source string, portEnabled map[int]bool) (string, []*diag.Error, error) {
	res, err := ports.Eliminate(source, ports.PortMap(portEnabled))
	if err != nil {
		return "", nil, err
	}
	return res.Source, res.Warnings, nil
}
