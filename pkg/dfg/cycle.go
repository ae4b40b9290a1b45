package dfg

import (
	"fmt"

	"github.com/l3aro/go-udf-splitter/pkg/diag"
)

// frame is one vertex on the DFS path and the index of its next successor.
type frame struct {
	v    int
	next int
}

// DetectCycle reports a DependencyCycle error if the graph is not acyclic.
// The search is an iterative depth-first traversal that tracks the vertices
// on the current path explicitly.
func (g *Graph) DetectCycle() error {
	adj := g.successors()
	visited := make([]bool, len(g.Vertices))
	onStack := make([]bool, len(g.Vertices))

	for root := range g.Vertices {
		if visited[root] {
			continue
		}
		visited[root] = true
		onStack[root] = true
		stack := []frame{{v: root}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(adj[top.v]) {
				w := adj[top.v][top.next]
				top.next++
				if onStack[w] {
					return g.cycleError(stack, w)
				}
				if !visited[w] {
					visited[w] = true
					onStack[w] = true
					stack = append(stack, frame{v: w})
				}
				continue
			}
			onStack[top.v] = false
			stack = stack[:len(stack)-1]
		}
	}
	return nil
}

func (g *Graph) cycleError(stack []frame, closing int) error {
	start := 0
	for i, f := range stack {
		if f.v == closing {
			start = i
			break
		}
	}

	var path []string
	line := 0
	for _, f := range stack[start:] {
		v := g.Vertices[f.v]
		path = append(path, fmt.Sprintf("%s@%d", v.Var, v.Line))
		if line == 0 || v.Line < line {
			line = v.Line
		}
	}
	c := g.Vertices[closing]
	path = append(path, fmt.Sprintf("%s@%d", c.Var, c.Line))
	return diag.Cycle(line, path)
}
