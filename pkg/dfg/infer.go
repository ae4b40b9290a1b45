package dfg

import (
	"strings"

	"github.com/l3aro/go-udf-splitter/pkg/normalize"
	"github.com/l3aro/go-udf-splitter/pkg/pyast"
)

// TypeTag is a coarse, best-effort type of a variable. It is used only to
// estimate the cost of keeping a variable alive across a cut.
type TypeTag string

const (
	TypeUnknown   TypeTag = "unknown"
	TypeInt       TypeTag = "int"
	TypeFloat     TypeTag = "float"
	TypeNumeric   TypeTag = "numeric"
	TypeStr       TypeTag = "str"
	TypeBool      TypeTag = "bool"
	TypeList      TypeTag = "list"
	TypeTuple     TypeTag = "tuple"
	TypeDict      TypeTag = "dict"
	TypeSet       TypeTag = "set"
	TypeSeries    TypeTag = "Series"
	TypeDataFrame TypeTag = "DataFrame"
)

// KnownType reports whether t is one of the tags above.
func KnownType(t TypeTag) bool {
	switch t {
	case TypeUnknown, TypeInt, TypeFloat, TypeNumeric, TypeStr, TypeBool,
		TypeList, TypeTuple, TypeDict, TypeSet, TypeSeries, TypeDataFrame:
		return true
	}
	return false
}

// TypeMap maps SSA variable names to their inferred type.
type TypeMap map[string]TypeTag

// annotationOrder is the order in which annotation text is matched.
var annotationOrder = []struct {
	needle string
	tag    TypeTag
}{
	{"dataframe", TypeDataFrame},
	{"series", TypeSeries},
	{"int", TypeInt},
	{"float", TypeFloat},
	{"str", TypeStr},
	{"bool", TypeBool},
	{"list", TypeList},
	{"dict", TypeDict},
	{"tuple", TypeTuple},
	{"set", TypeSet},
}

// FromAnnotation maps annotation text such as `pd.DataFrame` or
// `List[int]` to a type tag.
func FromAnnotation(annotation string) TypeTag {
	lower := strings.ToLower(annotation)
	for _, a := range annotationOrder {
		if strings.Contains(lower, a.needle) {
			return a.tag
		}
	}
	return TypeUnknown
}

var callTypes = map[string]TypeTag{
	"pd.DataFrame":     TypeDataFrame,
	"pandas.DataFrame": TypeDataFrame,
	"DataFrame":        TypeDataFrame,
	"pd.concat":        TypeDataFrame,
	"pd.merge":         TypeDataFrame,
	"pd.read_csv":      TypeDataFrame,
	"pd.Series":        TypeSeries,
	"pandas.Series":    TypeSeries,
	"Series":           TypeSeries,
	"int":              TypeInt,
	"len":              TypeInt,
	"float":            TypeFloat,
	"str":              TypeStr,
	"bool":             TypeBool,
	"list":             TypeList,
	"sorted":           TypeList,
	"tuple":            TypeTuple,
	"dict":             TypeDict,
	"set":              TypeSet,
}

// InferTypes assigns a type tag to every formal argument and assigned
// variable of a single-assignment unit, in program order.
func InferTypes(unit *normalize.SourceUnit) TypeMap {
	types := make(TypeMap)
	for _, p := range unit.Func.Params {
		if p.Kind == pyast.ParamKwOnlySep || p.Kind == pyast.ParamPosOnlySep {
			continue
		}
		switch p.Kind {
		case pyast.ParamVarArgs:
			types[p.Name] = TypeTuple
		case pyast.ParamKwArgs:
			types[p.Name] = TypeDict
		default:
			types[p.Name] = FromAnnotation(p.Annotation)
		}
	}

	pyast.Walk(unit.Func.Body, func(s pyast.Stmt) bool {
		switch s := s.(type) {
		case *pyast.Assign:
			tag := types.Infer(s.Value)
			if s.Annotation != "" {
				tag = FromAnnotation(s.Annotation)
			}
			for _, t := range s.Targets {
				if n, ok := t.(*pyast.Name); ok {
					types[n.ID] = tag
					continue
				}
				for _, n := range pyast.TargetNames(t) {
					types[n.ID] = TypeUnknown
				}
			}
		case *pyast.AugAssign:
			if n, ok := s.Target.(*pyast.Name); ok {
				types[n.ID] = types.Infer(&pyast.BinOp{Left: s.Target, Op: s.Op, Right: s.Value})
			}
		case *pyast.For:
			for _, n := range pyast.TargetNames(s.Target) {
				types[n.ID] = TypeUnknown
			}
		}
		return true
	})
	return types
}

// Infer returns the type of e given the types already known.
func (m TypeMap) Infer(e pyast.Expr) TypeTag {
	switch x := e.(type) {
	case *pyast.Name:
		if t, ok := m[x.ID]; ok {
			return t
		}
	case *pyast.Constant:
		switch x.Kind {
		case pyast.ConstString:
			return TypeStr
		case pyast.ConstInt, pyast.ConstFloat:
			return TypeNumeric
		case pyast.ConstTrue, pyast.ConstFalse:
			return TypeBool
		}
	case *pyast.FString:
		return TypeStr
	case *pyast.Subscript:
		if m.Infer(x.Value) == TypeDataFrame {
			return TypeSeries
		}
	case *pyast.Attribute:
		if m.Infer(x.Value) == TypeDataFrame {
			return TypeSeries
		}
	case *pyast.Call:
		if t, ok := callTypes[pyast.ExprString(x.Func)]; ok {
			return t
		}
		if attr, ok := x.Func.(*pyast.Attribute); ok && m.Infer(attr.Value) == TypeDataFrame {
			return TypeSeries
		}
	case *pyast.Compare:
		return TypeBool
	case *pyast.UnaryOp:
		if x.Op == "not" {
			return TypeBool
		}
		return TypeNumeric
	case *pyast.BinOp:
		return binOpType(m.Infer(x.Left), m.Infer(x.Right))
	case *pyast.List:
		return TypeList
	case *pyast.Tuple:
		return TypeTuple
	case *pyast.Dict:
		return TypeDict
	case *pyast.Set:
		return TypeSet
	case *pyast.Comp:
		switch x.Kind {
		case pyast.CompList:
			return TypeList
		case pyast.CompSet:
			return TypeSet
		case pyast.CompDict:
			return TypeDict
		}
	}
	return TypeUnknown
}

// binOpType is the result of arithmetic on operands of type l and r. A
// DataFrame operand wins over a Series; both sides must be numeric for a
// numeric result.
func binOpType(l, r TypeTag) TypeTag {
	switch {
	case l == TypeDataFrame || r == TypeDataFrame:
		return TypeDataFrame
	case l == TypeSeries || r == TypeSeries:
		return TypeSeries
	case isNumeric(l) && isNumeric(r):
		return TypeNumeric
	}
	return TypeUnknown
}

func isNumeric(t TypeTag) bool {
	switch t {
	case TypeInt, TypeFloat, TypeNumeric, TypeBool:
		return true
	}
	return false
}
