// Package cut finds the lines at which a function can be split without
// breaking a data dependency, and ranks them by the estimated size of the
// state that has to survive the split.
package cut

import (
	"sort"

	"github.com/l3aro/go-udf-splitter/pkg/dfg"
)

// Cut is a valid split point.
type Cut struct {
	Line      int        `json:"line" yaml:"line" msgpack:"line"`
	Crossing  []dfg.Edge `json:"crossing" yaml:"crossing" msgpack:"crossing"`
	Variables []string   `json:"variables" yaml:"variables" msgpack:"variables"`
	Cost      int64      `json:"cost" yaml:"cost" msgpack:"cost"`
	Bonus     int64      `json:"bonus" yaml:"bonus" msgpack:"bonus"`
	Score     int64      `json:"score" yaml:"score" msgpack:"score"`
}

// Candidates returns the lines considered for a cut: the start lines of all
// top-level statements except the first and the last.
func Candidates(g *dfg.Graph) []int {
	if len(g.Statements) < 3 {
		return nil
	}
	out := make([]int, 0, len(g.Statements)-2)
	for _, s := range g.Statements[1 : len(g.Statements)-1] {
		out = append(out, s.Start)
	}
	return out
}

// Crossing returns the edges spanning line.
func Crossing(g *dfg.Graph, line int) []dfg.Edge {
	var out []dfg.Edge
	for _, e := range g.Edges {
		if e.Crosses(line) {
			out = append(out, e)
		}
	}
	return out
}

// Valid reports whether line is a candidate crossed only by temporal edges.
func Valid(g *dfg.Graph, line int) bool {
	for _, c := range Candidates(g) {
		if c == line {
			return temporalOnly(Crossing(g, line))
		}
	}
	return false
}

func temporalOnly(edges []dfg.Edge) bool {
	for _, e := range edges {
		if e.Kind != dfg.EdgeTemporal {
			return false
		}
	}
	return true
}

// Find returns the valid cuts of g in increasing line order. Costs are not
// computed; see Rank.
func Find(g *dfg.Graph) []Cut {
	var cuts []Cut
	for _, line := range Candidates(g) {
		crossing := Crossing(g, line)
		if !temporalOnly(crossing) {
			continue
		}
		cuts = append(cuts, Cut{Line: line, Crossing: crossing, Variables: variables(crossing)})
	}
	return cuts
}

// variables returns the distinct source variables of edges, sorted.
func variables(edges []dfg.Edge) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range edges {
		if !seen[e.From.Var] {
			seen[e.From.Var] = true
			out = append(out, e.From.Var)
		}
	}
	sort.Strings(out)
	return out
}

// Rank returns a scored copy of cuts, cheapest first. Ties keep their input
// order, so ranking cuts returned by Find is deterministic.
func Rank(g *dfg.Graph, cuts []Cut, model CostModel) []Cut {
	aligned := alignedLines(g)

	ranked := make([]Cut, len(cuts))
	for i, c := range cuts {
		c.Cost = 0
		for _, v := range c.Variables {
			c.Cost += model.Size(g.TypeOf(v))
		}
		c.Bonus = 0
		if aligned[c.Line] {
			c.Bonus = model.ArgumentBonus
		}
		c.Score = c.Cost - c.Bonus
		ranked[i] = c
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score < ranked[j].Score
	})
	return ranked
}

// alignedLines returns the lines directly after the top-level statement in
// which each formal argument is first read.
func alignedLines(g *dfg.Graph) map[int]bool {
	out := make(map[int]bool)
	for _, p := range g.Params {
		first := g.FirstUse(p)
		if first == 0 {
			continue
		}
		end := first
		if s, ok := g.StatementAt(first); ok {
			end = s.End
		}
		out[end+1] = true
	}
	return out
}
