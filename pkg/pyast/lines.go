package pyast

// Lines assigns canonical line numbers to body as printed by PrintStmts,
// starting at line first. The map covers nested statements of if, for and
// while blocks. The second result is the line following the block.
func Lines(body []Stmt, first int) (map[Stmt]int, int) {
	m := make(map[Stmt]int)
	next := layout(body, first, m)
	return m, next
}

// StartLines returns the canonical start line of each top-level statement.
func StartLines(body []Stmt, first int) []int {
	out := make([]int, len(body))
	line := first
	for i, s := range body {
		out[i] = line
		line += Height(s)
	}
	return out
}

func layout(body []Stmt, line int, m map[Stmt]int) int {
	if len(body) == 0 {
		return line + 1
	}
	for _, s := range body {
		m[s] = line
		switch s := s.(type) {
		case *If:
			line = layoutIf(s, line, m)
		case *For:
			line = layoutLoop(s.Body, s.Else, line, m)
		case *While:
			line = layoutLoop(s.Body, s.Else, line, m)
		default:
			line += Height(s)
		}
	}
	return line
}

func layoutIf(s *If, line int, m map[Stmt]int) int {
	m[s] = line
	line = layout(s.Body, line+1, m)
	if len(s.Else) == 1 {
		if elif, ok := s.Else[0].(*If); ok {
			return layoutIf(elif, line, m)
		}
	}
	if len(s.Else) > 0 {
		line = layout(s.Else, line+1, m)
	}
	return line
}

func layoutLoop(body, orelse []Stmt, line int, m map[Stmt]int) int {
	line = layout(body, line+1, m)
	if len(orelse) > 0 {
		line = layout(orelse, line+1, m)
	}
	return line
}
