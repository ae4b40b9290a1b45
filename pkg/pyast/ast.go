// Package pyast provides a closed syntax tree for the subset of Python used by
// UDF sources, a tree-sitter based parser producing it, and a canonical printer.
//
// Statements and expressions are sealed interfaces: every pass switches over the
// concrete node types exhaustively. Nodes are treated as immutable once built;
// rewrites construct new nodes.
package pyast

// Pos records the source line a statement was parsed from (1-based).
// Synthesized statements carry the line of the statement they replace.
type Pos struct {
	Line int
}

// SourceLine returns the originating source line.
func (p Pos) SourceLine() int { return p.Line }

// Stmt is a statement node.
type Stmt interface {
	SourceLine() int
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	exprNode()
}

// Module is a parsed source file.
type Module struct {
	Body []Stmt
}

// Statements

// Assign is `t1 = t2 = value`. Annotation holds the raw annotation text of
// `x: T = value`.
type Assign struct {
	Pos
	Targets    []Expr
	Value      Expr
	Annotation string
}

// AugAssign is `target op= value`. Op is the binary operator, e.g. "+".
type AugAssign struct {
	Pos
	Target Expr
	Op     string
	Value  Expr
}

// ExprStmt is an expression evaluated for its effect.
type ExprStmt struct {
	Pos
	X Expr
}

// Return is `return [value]`.
type Return struct {
	Pos
	Value Expr
}

// If is an if statement. An elif chain is an If nested as the only statement
// of Else.
type If struct {
	Pos
	Test Expr
	Body []Stmt
	Else []Stmt
}

// For is a for loop.
type For struct {
	Pos
	Target Expr
	Iter   Expr
	Body   []Stmt
	Else   []Stmt
	Async  bool
}

// While is a while loop.
type While struct {
	Pos
	Test Expr
	Body []Stmt
	Else []Stmt
}

// Raise is `raise [exc [from cause]]`.
type Raise struct {
	Pos
	Exc   Expr
	Cause Expr
}

// Assert is `assert test[, msg]`.
type Assert struct {
	Pos
	Test Expr
	Msg  Expr
}

// Pass is `pass`.
type Pass struct{ Pos }

// Break is `break`.
type Break struct{ Pos }

// Continue is `continue`.
type Continue struct{ Pos }

// Import is an import or from-import statement kept verbatim.
type Import struct {
	Pos
	Text  string
	Names []string // names bound by the import
}

// ParamKind distinguishes the parameter forms of a def.
type ParamKind int

const (
	ParamNormal     ParamKind = iota
	ParamVarArgs              // *args
	ParamKwArgs               // **kwargs
	ParamKwOnlySep            // bare *
	ParamPosOnlySep           // /
)

// Param is a formal parameter.
type Param struct {
	Name       string
	Annotation string
	Default    Expr
	Kind       ParamKind
}

// FuncDef is a function definition.
type FuncDef struct {
	Pos
	Name       string
	Params     []Param
	Returns    string
	Body       []Stmt
	Decorators []string
	Async      bool
}

// ClassDef is a class definition. Bases holds the raw argument list text,
// without parentheses.
type ClassDef struct {
	Pos
	Name       string
	Bases      string
	Body       []Stmt
	Decorators []string
}

// Opaque is a statement the tree does not model (with, try, global, ...).
// Text is dedented to column zero. Reads lists the identifiers it references.
type Opaque struct {
	Pos
	Kind  string
	Text  string
	Reads []string
}

func (*Assign) stmtNode()    {}
func (*AugAssign) stmtNode() {}
func (*ExprStmt) stmtNode()  {}
func (*Return) stmtNode()    {}
func (*If) stmtNode()        {}
func (*For) stmtNode()       {}
func (*While) stmtNode()     {}
func (*Raise) stmtNode()     {}
func (*Assert) stmtNode()    {}
func (*Pass) stmtNode()      {}
func (*Break) stmtNode()     {}
func (*Continue) stmtNode()  {}
func (*Import) stmtNode()    {}
func (*FuncDef) stmtNode()   {}
func (*ClassDef) stmtNode()  {}
func (*Opaque) stmtNode()    {}

// Expressions

// Name is an identifier. Base and Version are set by single-assignment
// conversion; for unconverted names Base is empty and ID is the identifier.
type Name struct {
	ID      string
	Base    string
	Version int
}

// BaseName returns the unversioned identifier.
func (n *Name) BaseName() string {
	if n.Base != "" {
		return n.Base
	}
	return n.ID
}

// ConstKind is the kind of a literal.
type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstString
	ConstBytes
	ConstTrue
	ConstFalse
	ConstNone
	ConstEllipsis
)

// Constant is a literal. Text is the literal as written.
type Constant struct {
	Kind ConstKind
	Text string
}

// FString is a string literal with interpolations. Parts alternate raw text
// and interpolated expressions; Tail is the text after the last expression.
type FString struct {
	Parts []FPart
	Tail  string
}

// FPart is raw text followed by one interpolated expression.
type FPart struct {
	Text string
	Expr Expr
}

// Attribute is `value.attr`.
type Attribute struct {
	Value Expr
	Attr  string
}

// Subscript is `value[index]`.
type Subscript struct {
	Value Expr
	Index Expr
}

// Slice is `lower:upper:step` inside a subscript.
type Slice struct {
	Lower Expr
	Upper Expr
	Step  Expr
	// HasStep keeps a trailing second colon (`a[::]`).
	HasStep bool
}

// Arg is a call argument. Star is "", "*" or "**".
type Arg struct {
	Keyword string
	Star    string
	Value   Expr
}

// Call is `func(args)`.
type Call struct {
	Func Expr
	Args []Arg
}

// BinOp is an arithmetic or bitwise binary operation.
type BinOp struct {
	Left  Expr
	Op    string
	Right Expr
}

// BoolOp is `left and right` or `left or right`.
type BoolOp struct {
	Left  Expr
	Op    string
	Right Expr
}

// UnaryOp is `not x`, `-x`, `+x` or `~x`.
type UnaryOp struct {
	Op string
	X  Expr
}

// Compare is a comparison chain `left op0 rights[0] op1 rights[1] ...`.
type Compare struct {
	Left   Expr
	Ops    []string
	Rights []Expr
}

// Tuple is a tuple display.
type Tuple struct {
	Elts []Expr
}

// List is a list display.
type List struct {
	Elts []Expr
}

// Set is a set display.
type Set struct {
	Elts []Expr
}

// DictItem is one entry of a dict display. A nil Key is a `**Value` splat.
type DictItem struct {
	Key   Expr
	Value Expr
}

// Dict is a dict display.
type Dict struct {
	Items []DictItem
}

// CompKind is the kind of a comprehension.
type CompKind int

const (
	CompList CompKind = iota
	CompSet
	CompDict
	CompGen
)

// Generator is one `for target in iter if ...` clause.
type Generator struct {
	Target Expr
	Iter   Expr
	Ifs    []Expr
	Async  bool
}

// Comp is a list, set, dict or generator comprehension. Key is set only for
// dict comprehensions.
type Comp struct {
	Kind CompKind
	Key  Expr
	Elt  Expr
	Gens []Generator
}

// IfExp is `body if test else orelse`.
type IfExp struct {
	Body Expr
	Test Expr
	Else Expr
}

// Lambda is a lambda expression. Params is the raw parameter text.
type Lambda struct {
	Params     string
	ParamNames []string
	Body       Expr
}

// Yield is `yield value` or `yield from value`.
type Yield struct {
	Value Expr
	From  bool
}

// Starred is `*x` in a display, call or target.
type Starred struct {
	X Expr
}

// RawExpr is an expression the tree does not model (await, walrus, ...).
type RawExpr struct {
	Kind  string
	Text  string
	Reads []string
}

func (*Name) exprNode()      {}
func (*Constant) exprNode()  {}
func (*FString) exprNode()   {}
func (*Attribute) exprNode() {}
func (*Subscript) exprNode() {}
func (*Slice) exprNode()     {}
func (*Call) exprNode()      {}
func (*BinOp) exprNode()     {}
func (*BoolOp) exprNode()    {}
func (*UnaryOp) exprNode()   {}
func (*Compare) exprNode()   {}
func (*Tuple) exprNode()     {}
func (*List) exprNode()      {}
func (*Set) exprNode()       {}
func (*Dict) exprNode()      {}
func (*Comp) exprNode()      {}
func (*IfExp) exprNode()     {}
func (*Lambda) exprNode()    {}
func (*Yield) exprNode()     {}
func (*Starred) exprNode()   {}
func (*RawExpr) exprNode()   {}

// Ident returns a fresh unversioned name.
func Ident(id string) *Name {
	return &Name{ID: id}
}

// SelfAttr returns `self.attr`.
func SelfAttr(attr string) *Attribute {
	return &Attribute{Value: Ident("self"), Attr: attr}
}

// NoneConst returns the `None` literal.
func NoneConst() *Constant {
	return &Constant{Kind: ConstNone, Text: "None"}
}

// Str returns a double-quoted string literal.
func Str(s string) *Constant {
	return &Constant{Kind: ConstString, Text: quote(s)}
}

func quote(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			out = append(out, '\\', c)
		case '\n':
			out = append(out, '\\', 'n')
		default:
			out = append(out, c)
		}
	}
	return string(append(out, '"'))
}

// ParamNames returns the names of the real parameters of fn, skipping
// separators.
func ParamNames(fn *FuncDef) []string {
	names := make([]string, 0, len(fn.Params))
	for _, p := range fn.Params {
		if p.Kind == ParamKwOnlySep || p.Kind == ParamPosOnlySep {
			continue
		}
		names = append(names, p.Name)
	}
	return names
}
