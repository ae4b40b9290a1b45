package ssa

import "github.com/l3aro/go-udf-splitter/pkg/pyast"

// boundAfter returns the names bound on every path through stmts. The second
// result is true when no path falls through the end of stmts.
func boundAfter(stmts []pyast.Stmt) (map[string]bool, bool) {
	out := make(map[string]bool)
	for _, s := range stmts {
		switch s := s.(type) {
		case *pyast.Return, *pyast.Raise, *pyast.Break, *pyast.Continue:
			return out, true
		case *pyast.If:
			body, bodyExits := boundAfter(s.Body)
			orelse, elseExits := boundAfter(s.Else)
			switch {
			case bodyExits && elseExits:
				return out, true
			case bodyExits:
				union(out, orelse)
			case elseExits:
				union(out, body)
			default:
				for n := range body {
					if orelse[n] {
						out[n] = true
					}
				}
			}
		case *pyast.For, *pyast.While:
			// The body may run zero times.
		default:
			for _, n := range pyast.HeaderStores(s) {
				out[n.BaseName()] = true
			}
		}
	}
	return out, false
}

func union(dst, src map[string]bool) {
	for n := range src {
		dst[n] = true
	}
}

// readsUnbound reports whether some path through stmts reads base before
// binding it. The second result is true when every path that falls through
// has bound base, or no path falls through.
func readsUnbound(stmts []pyast.Stmt, base string) (bool, bool) {
	for _, s := range stmts {
		if hasBase(pyast.HeaderReads(s), base) {
			return true, false
		}
		switch s := s.(type) {
		case *pyast.Return, *pyast.Raise, *pyast.Break, *pyast.Continue:
			return false, true
		case *pyast.If:
			bodyReads, bodyBinds := readsUnbound(s.Body, base)
			elseReads, elseBinds := readsUnbound(s.Else, base)
			if bodyReads || elseReads {
				return true, false
			}
			if bodyBinds && elseBinds {
				return false, true
			}
		case *pyast.For:
			if !hasBase(pyast.HeaderStores(s), base) {
				if reads, _ := readsUnbound(s.Body, base); reads {
					return true, false
				}
			}
			// The else block also runs after zero iterations.
			if reads, _ := readsUnbound(s.Else, base); reads {
				return true, false
			}
		case *pyast.While:
			bodyReads, _ := readsUnbound(s.Body, base)
			elseReads, _ := readsUnbound(s.Else, base)
			if bodyReads || elseReads {
				return true, false
			}
		default:
			if hasBase(pyast.HeaderStores(s), base) {
				return false, true
			}
		}
	}
	return false, false
}

func hasBase(names []*pyast.Name, base string) bool {
	for _, n := range names {
		if n.BaseName() == base {
			return true
		}
	}
	return false
}
