package ports

import "github.com/l3aro/go-udf-splitter/pkg/pyast"

// live is a set of variable names.
type live map[string]bool

func (l live) clone() live {
	out := make(live, len(l))
	for k := range l {
		out[k] = true
	}
	return out
}

func (l live) add(names []*pyast.Name) {
	for _, n := range names {
		l[n.ID] = true
	}
}

func (l live) union(o live) {
	for k := range o {
		l[k] = true
	}
}

// liveness walks stmts backward from the live-out set out and returns the
// statements that contribute to a yield, together with the live-in set.
// Neither stmts nor out is modified.
func liveness(stmts []pyast.Stmt, out live) ([]pyast.Stmt, live) {
	cur := out.clone()
	kept := make([]pyast.Stmt, 0, len(stmts))
	for i := len(stmts) - 1; i >= 0; i-- {
		s := stmts[i]
		if _, ok := s.(*pyast.If); !ok && pyast.StmtContainsYield(s) {
			kept = append(kept, s)
			cur.add(pyast.Reads(s))
			continue
		}
		switch s := s.(type) {
		case *pyast.Assign:
			if !assignLive(s.Targets, cur) {
				continue
			}
			for _, t := range s.Targets {
				for _, n := range pyast.TargetNames(t) {
					delete(cur, n.ID)
				}
			}
			cur.add(pyast.HeaderReads(s))
			kept = append(kept, s)

		case *pyast.AugAssign:
			if !targetLive(s.Target, cur) {
				continue
			}
			cur.add(pyast.HeaderReads(s))
			kept = append(kept, s)

		case *pyast.If:
			body, bodyIn := liveness(s.Body, cur)
			orelse, elseIn := liveness(s.Else, cur)
			ns := simplify(s, body, orelse)
			if ns == nil {
				continue
			}
			cur = bodyIn
			cur.union(elseIn)
			cur.add(pyast.FreeNames(s.Test))
			kept = append(kept, ns)

		default:
			cur.add(pyast.Reads(s))
			kept = append(kept, s)
		}
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept, cur
}

func assignLive(targets []pyast.Expr, cur live) bool {
	for _, t := range targets {
		if targetLive(t, cur) {
			return true
		}
	}
	return false
}

// targetLive reports whether a binding target is needed: a name that is
// live, or an element of a live container.
func targetLive(t pyast.Expr, cur live) bool {
	switch t := t.(type) {
	case *pyast.Name:
		return cur[t.ID]
	case *pyast.Tuple:
		return assignLive(t.Elts, cur)
	case *pyast.List:
		return assignLive(t.Elts, cur)
	case *pyast.Starred:
		return targetLive(t.X, cur)
	}
	base, ok := pyast.MutatedBase(t)
	return ok && cur[base.ID]
}
