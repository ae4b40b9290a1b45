package pyast

import (
	"strings"

	"github.com/l3aro/go-udf-splitter/pkg/diag"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Parse parses Python source into a Module. Syntax errors are reported as
// normalization diagnostics carrying the first offending line.
func Parse(content []byte) (*Module, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree := parser.Parse(nil, content)
	if tree == nil {
		return nil, diag.Normalization(0, "parsing failed")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, diag.Normalization(firstErrorLine(root), "syntax error")
	}

	c := &converter{content: content}
	return &Module{Body: c.block(root)}, nil
}

// ParseString is Parse for string input.
func ParseString(src string) (*Module, error) {
	return Parse([]byte(src))
}

// ParseExpr parses a single expression.
func ParseExpr(src string) (Expr, error) {
	mod, err := ParseString(src)
	if err != nil {
		return nil, err
	}
	if len(mod.Body) != 1 {
		return nil, diag.Normalization(1, "expected a single expression")
	}
	es, ok := mod.Body[0].(*ExprStmt)
	if !ok {
		return nil, diag.Normalization(1, "expected a single expression")
	}
	return es.X, nil
}

func firstErrorLine(node *sitter.Node) int {
	if node.Type() == "ERROR" || node.IsMissing() {
		return lineOf(node)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child != nil && (child.HasError() || child.IsMissing()) {
			return firstErrorLine(child)
		}
	}
	return lineOf(node)
}

func lineOf(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}

// converter turns tree-sitter nodes into pyast nodes.
type converter struct {
	content []byte
}

func (c *converter) text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if start >= uint32(len(c.content)) || end > uint32(len(c.content)) {
		return ""
	}
	return string(c.content[start:end])
}

// namedChildren returns the named children of node, skipping comments.
func namedChildren(node *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == nil || isExtra(child) {
			continue
		}
		out = append(out, child)
	}
	return out
}

// fieldChildren returns all children of node stored under field.
func fieldChildren(node *sitter.Node, field string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.FieldNameForChild(i) == field {
			out = append(out, node.Child(i))
		}
	}
	return out
}

func isExtra(node *sitter.Node) bool {
	switch node.Type() {
	case "comment", "line_continuation":
		return true
	}
	return false
}

func hasToken(node *sitter.Node, token string) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child != nil && !child.IsNamed() && child.Type() == token {
			return true
		}
	}
	return false
}

// block converts the statements of a module or block node.
func (c *converter) block(node *sitter.Node) []Stmt {
	if node == nil {
		return nil
	}
	var stmts []Stmt
	for _, child := range namedChildren(node) {
		stmts = append(stmts, c.stmt(child)...)
	}
	return stmts
}

func (c *converter) stmt(node *sitter.Node) []Stmt {
	pos := Pos{Line: lineOf(node)}

	switch node.Type() {
	case "expression_statement":
		return []Stmt{c.exprStmt(node, pos)}

	case "return_statement":
		ret := &Return{Pos: pos}
		if kids := namedChildren(node); len(kids) > 0 {
			ret.Value = c.exprList(kids)
		}
		return []Stmt{ret}

	case "if_statement":
		return []Stmt{c.ifStmt(node, pos)}

	case "for_statement":
		return []Stmt{&For{
			Pos:    pos,
			Target: c.target(node.ChildByFieldName("left")),
			Iter:   c.exprList(fieldChildren(node, "right")),
			Body:   c.block(node.ChildByFieldName("body")),
			Else:   c.elseBody(node.ChildByFieldName("alternative")),
			Async:  hasToken(node, "async"),
		}}

	case "while_statement":
		return []Stmt{&While{
			Pos:  pos,
			Test: c.expr(node.ChildByFieldName("condition")),
			Body: c.block(node.ChildByFieldName("body")),
			Else: c.elseBody(node.ChildByFieldName("alternative")),
		}}

	case "raise_statement":
		r := &Raise{Pos: pos}
		kids := namedChildren(node)
		if len(kids) > 0 {
			r.Exc = c.expr(kids[0])
		}
		if len(kids) > 1 {
			r.Cause = c.expr(kids[1])
		}
		return []Stmt{r}

	case "assert_statement":
		a := &Assert{Pos: pos}
		kids := namedChildren(node)
		if len(kids) > 0 {
			a.Test = c.expr(kids[0])
		}
		if len(kids) > 1 {
			a.Msg = c.expr(kids[1])
		}
		return []Stmt{a}

	case "pass_statement":
		return []Stmt{&Pass{Pos: pos}}
	case "break_statement":
		return []Stmt{&Break{Pos: pos}}
	case "continue_statement":
		return []Stmt{&Continue{Pos: pos}}

	case "import_statement", "import_from_statement", "future_import_statement":
		return []Stmt{&Import{Pos: pos, Text: dedent(c.text(node), int(node.StartPoint().Column)), Names: c.importNames(node)}}

	case "function_definition":
		return []Stmt{c.funcDef(node, pos, nil)}

	case "class_definition":
		return []Stmt{c.classDef(node, pos, nil)}

	case "decorated_definition":
		var decorators []string
		for _, child := range namedChildren(node) {
			if child.Type() == "decorator" {
				decorators = append(decorators, strings.TrimSpace(strings.TrimPrefix(c.text(child), "@")))
			}
		}
		def := node.ChildByFieldName("definition")
		if def == nil {
			break
		}
		switch def.Type() {
		case "function_definition":
			return []Stmt{c.funcDef(def, pos, decorators)}
		case "class_definition":
			return []Stmt{c.classDef(def, pos, decorators)}
		}

	case "print_statement":
		args := make([]Arg, 0)
		for _, child := range namedChildren(node) {
			if child.Type() == "chevron" {
				return []Stmt{c.opaque(node, pos)}
			}
			args = append(args, Arg{Value: c.expr(child)})
		}
		return []Stmt{&ExprStmt{Pos: pos, X: &Call{Func: Ident("print"), Args: args}}}
	}

	return []Stmt{c.opaque(node, pos)}
}

func (c *converter) exprStmt(node *sitter.Node, pos Pos) Stmt {
	kids := namedChildren(node)
	if len(kids) == 1 {
		switch kids[0].Type() {
		case "assignment":
			return c.assignment(kids[0], pos)
		case "augmented_assignment":
			return &AugAssign{
				Pos:    pos,
				Target: c.target(kids[0].ChildByFieldName("left")),
				Op:     strings.TrimSuffix(c.text(kids[0].ChildByFieldName("operator")), "="),
				Value:  c.expr(kids[0].ChildByFieldName("right")),
			}
		}
	}
	return &ExprStmt{Pos: pos, X: c.exprList(kids)}
}

// assignment flattens chained assignments `a = b = value`.
func (c *converter) assignment(node *sitter.Node, pos Pos) Stmt {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	annotation := c.text(node.ChildByFieldName("type"))

	if right == nil {
		// `x: int` without a value binds nothing.
		return c.opaque(node, pos)
	}

	targets := []Expr{c.target(left)}
	for right != nil && right.Type() == "assignment" {
		targets = append(targets, c.target(right.ChildByFieldName("left")))
		right = right.ChildByFieldName("right")
	}
	if right != nil && right.Type() == "augmented_assignment" {
		return c.opaque(node, pos)
	}

	return &Assign{
		Pos:        pos,
		Targets:    targets,
		Value:      c.expr(right),
		Annotation: annotation,
	}
}

func (c *converter) ifStmt(node *sitter.Node, pos Pos) Stmt {
	root := &If{
		Pos:  pos,
		Test: c.expr(node.ChildByFieldName("condition")),
		Body: c.block(node.ChildByFieldName("consequence")),
	}

	cur := root
	for _, alt := range fieldChildren(node, "alternative") {
		switch alt.Type() {
		case "elif_clause":
			next := &If{
				Pos:  Pos{Line: lineOf(alt)},
				Test: c.expr(alt.ChildByFieldName("condition")),
				Body: c.block(alt.ChildByFieldName("consequence")),
			}
			cur.Else = []Stmt{next}
			cur = next
		case "else_clause":
			cur.Else = c.block(alt.ChildByFieldName("body"))
		}
	}
	return root
}

func (c *converter) elseBody(node *sitter.Node) []Stmt {
	if node == nil {
		return nil
	}
	return c.block(node.ChildByFieldName("body"))
}

func (c *converter) funcDef(node *sitter.Node, pos Pos, decorators []string) *FuncDef {
	fn := &FuncDef{
		Pos:        pos,
		Name:       c.text(node.ChildByFieldName("name")),
		Returns:    c.text(node.ChildByFieldName("return_type")),
		Body:       c.block(node.ChildByFieldName("body")),
		Decorators: decorators,
		Async:      hasToken(node, "async"),
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		for _, p := range namedChildren(params) {
			fn.Params = append(fn.Params, c.param(p))
		}
	}
	return fn
}

func (c *converter) param(node *sitter.Node) Param {
	switch node.Type() {
	case "identifier":
		return Param{Name: c.text(node)}
	case "typed_parameter":
		p := Param{Annotation: c.text(node.ChildByFieldName("type"))}
		for _, child := range namedChildren(node) {
			switch child.Type() {
			case "identifier":
				p.Name = c.text(child)
			case "list_splat_pattern":
				p.Name, p.Kind = c.splatName(child), ParamVarArgs
			case "dictionary_splat_pattern":
				p.Name, p.Kind = c.splatName(child), ParamKwArgs
			}
			if p.Name != "" {
				break
			}
		}
		return p
	case "default_parameter":
		return Param{
			Name:    c.text(node.ChildByFieldName("name")),
			Default: c.expr(node.ChildByFieldName("value")),
		}
	case "typed_default_parameter":
		return Param{
			Name:       c.text(node.ChildByFieldName("name")),
			Annotation: c.text(node.ChildByFieldName("type")),
			Default:    c.expr(node.ChildByFieldName("value")),
		}
	case "list_splat_pattern":
		return Param{Name: c.splatName(node), Kind: ParamVarArgs}
	case "dictionary_splat_pattern":
		return Param{Name: c.splatName(node), Kind: ParamKwArgs}
	case "keyword_separator":
		return Param{Name: "*", Kind: ParamKwOnlySep}
	case "positional_separator":
		return Param{Name: "/", Kind: ParamPosOnlySep}
	}
	return Param{Name: c.text(node)}
}

func (c *converter) splatName(node *sitter.Node) string {
	for _, child := range namedChildren(node) {
		if child.Type() == "identifier" {
			return c.text(child)
		}
	}
	return strings.TrimLeft(c.text(node), "*")
}

func (c *converter) classDef(node *sitter.Node, pos Pos, decorators []string) *ClassDef {
	bases := c.text(node.ChildByFieldName("superclasses"))
	bases = strings.TrimSuffix(strings.TrimPrefix(bases, "("), ")")
	return &ClassDef{
		Pos:        pos,
		Name:       c.text(node.ChildByFieldName("name")),
		Bases:      strings.TrimSpace(bases),
		Body:       c.block(node.ChildByFieldName("body")),
		Decorators: decorators,
	}
}

func (c *converter) importNames(node *sitter.Node) []string {
	var names []string
	add := func(n *sitter.Node) {
		switch n.Type() {
		case "aliased_import":
			names = append(names, c.text(n.ChildByFieldName("alias")))
		case "dotted_name":
			parts := strings.Split(c.text(n), ".")
			names = append(names, strings.TrimSpace(parts[0]))
		}
	}
	if node.Type() == "import_statement" {
		for _, child := range namedChildren(node) {
			add(child)
		}
		return names
	}
	for _, child := range fieldChildren(node, "name") {
		if child.Type() == "dotted_name" {
			parts := strings.Split(c.text(child), ".")
			names = append(names, strings.TrimSpace(parts[len(parts)-1]))
			continue
		}
		add(child)
	}
	return names
}

func (c *converter) opaque(node *sitter.Node, pos Pos) *Opaque {
	return &Opaque{
		Pos:   pos,
		Kind:  strings.TrimSuffix(node.Type(), "_statement"),
		Text:  dedent(c.text(node), int(node.StartPoint().Column)),
		Reads: c.identifiers(node),
	}
}

// identifiers lists identifiers read inside node, in order, without
// attribute names or keyword argument names.
func (c *converter) identifiers(node *sitter.Node) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(n *sitter.Node, field string)
	walk = func(n *sitter.Node, field string) {
		if n == nil {
			return
		}
		if n.Type() == "identifier" {
			parent := n.Parent()
			if parent != nil {
				switch {
				case parent.Type() == "attribute" && field == "attribute":
					return
				case parent.Type() == "keyword_argument" && field == "name":
					return
				}
			}
			name := c.text(n)
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i), n.FieldNameForChild(i))
		}
	}
	walk(node, "")
	return out
}

func dedent(text string, col int) string {
	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		line := lines[i]
		n := 0
		for n < col && n < len(line) && (line[n] == ' ' || line[n] == '\t') {
			n++
		}
		lines[i] = line[n:]
	}
	return strings.Join(lines, "\n")
}

// exprList converts one or more comma-separated expressions; more than one
// yields a Tuple.
func (c *converter) exprList(nodes []*sitter.Node) Expr {
	var kids []*sitter.Node
	for _, n := range nodes {
		if n != nil && !isExtra(n) {
			kids = append(kids, n)
		}
	}
	if len(kids) == 1 {
		return c.expr(kids[0])
	}
	t := &Tuple{}
	for _, k := range kids {
		t.Elts = append(t.Elts, c.expr(k))
	}
	return t
}

// target converts an assignment or loop target.
func (c *converter) target(node *sitter.Node) Expr {
	if node == nil {
		return nil
	}
	switch node.Type() {
	case "pattern_list", "tuple_pattern":
		t := &Tuple{}
		for _, child := range namedChildren(node) {
			t.Elts = append(t.Elts, c.target(child))
		}
		return t
	case "list_pattern":
		l := &List{}
		for _, child := range namedChildren(node) {
			l.Elts = append(l.Elts, c.target(child))
		}
		return l
	case "list_splat_pattern":
		kids := namedChildren(node)
		if len(kids) == 1 {
			return &Starred{X: c.target(kids[0])}
		}
	}
	return c.expr(node)
}

func (c *converter) expr(node *sitter.Node) Expr {
	if node == nil {
		return nil
	}

	switch node.Type() {
	case "identifier":
		return Ident(c.text(node))

	case "integer":
		return &Constant{Kind: ConstInt, Text: c.text(node)}
	case "float":
		return &Constant{Kind: ConstFloat, Text: c.text(node)}
	case "true":
		return &Constant{Kind: ConstTrue, Text: "True"}
	case "false":
		return &Constant{Kind: ConstFalse, Text: "False"}
	case "none":
		return NoneConst()
	case "ellipsis":
		return &Constant{Kind: ConstEllipsis, Text: "..."}

	case "string", "concatenated_string":
		return c.str(node)

	case "attribute":
		return &Attribute{
			Value: c.expr(node.ChildByFieldName("object")),
			Attr:  c.text(node.ChildByFieldName("attribute")),
		}

	case "subscript":
		return &Subscript{
			Value: c.expr(node.ChildByFieldName("value")),
			Index: c.exprList(fieldChildren(node, "subscript")),
		}

	case "slice":
		return c.slice(node)

	case "call":
		return c.call(node)

	case "binary_operator":
		return &BinOp{
			Left:  c.expr(node.ChildByFieldName("left")),
			Op:    c.text(node.ChildByFieldName("operator")),
			Right: c.expr(node.ChildByFieldName("right")),
		}

	case "boolean_operator":
		return &BoolOp{
			Left:  c.expr(node.ChildByFieldName("left")),
			Op:    c.text(node.ChildByFieldName("operator")),
			Right: c.expr(node.ChildByFieldName("right")),
		}

	case "not_operator":
		return &UnaryOp{Op: "not", X: c.expr(node.ChildByFieldName("argument"))}

	case "unary_operator":
		return &UnaryOp{
			Op: c.text(node.ChildByFieldName("operator")),
			X:  c.expr(node.ChildByFieldName("argument")),
		}

	case "comparison_operator":
		return c.compare(node)

	case "parenthesized_expression":
		kids := namedChildren(node)
		if len(kids) == 1 {
			return c.expr(kids[0])
		}

	case "tuple", "expression_list", "pattern_list", "tuple_pattern":
		t := &Tuple{}
		for _, child := range namedChildren(node) {
			t.Elts = append(t.Elts, c.expr(child))
		}
		return t

	case "list", "list_pattern":
		l := &List{}
		for _, child := range namedChildren(node) {
			l.Elts = append(l.Elts, c.expr(child))
		}
		return l

	case "set":
		s := &Set{}
		for _, child := range namedChildren(node) {
			s.Elts = append(s.Elts, c.expr(child))
		}
		return s

	case "dictionary":
		d := &Dict{}
		for _, child := range namedChildren(node) {
			switch child.Type() {
			case "pair":
				d.Items = append(d.Items, DictItem{
					Key:   c.expr(child.ChildByFieldName("key")),
					Value: c.expr(child.ChildByFieldName("value")),
				})
			case "dictionary_splat":
				d.Items = append(d.Items, DictItem{Value: c.splatValue(child)})
			}
		}
		return d

	case "list_comprehension":
		return c.comprehension(node, CompList)
	case "set_comprehension":
		return c.comprehension(node, CompSet)
	case "dictionary_comprehension":
		return c.comprehension(node, CompDict)
	case "generator_expression":
		return c.comprehension(node, CompGen)

	case "conditional_expression":
		kids := namedChildren(node)
		if len(kids) == 3 {
			return &IfExp{Body: c.expr(kids[0]), Test: c.expr(kids[1]), Else: c.expr(kids[2])}
		}

	case "lambda":
		params := node.ChildByFieldName("parameters")
		l := &Lambda{Params: c.text(params), Body: c.expr(node.ChildByFieldName("body"))}
		if params != nil {
			for _, p := range namedChildren(params) {
				if name := c.param(p).Name; name != "*" && name != "/" {
					l.ParamNames = append(l.ParamNames, name)
				}
			}
		}
		return l

	case "yield":
		y := &Yield{From: hasToken(node, "from")}
		if kids := namedChildren(node); len(kids) > 0 {
			y.Value = c.exprList(kids)
		}
		return y

	case "list_splat", "list_splat_pattern":
		return &Starred{X: c.splatValue(node)}

	case "keyword_argument":
		// Only valid inside argument lists; handled by call.
	}

	return &RawExpr{Kind: node.Type(), Text: c.text(node), Reads: c.identifiers(node)}
}

func (c *converter) splatValue(node *sitter.Node) Expr {
	kids := namedChildren(node)
	if len(kids) == 0 {
		return nil
	}
	return c.expr(kids[0])
}

func (c *converter) call(node *sitter.Node) Expr {
	call := &Call{Func: c.expr(node.ChildByFieldName("function"))}
	args := node.ChildByFieldName("arguments")
	if args == nil {
		return call
	}
	if args.Type() == "generator_expression" {
		call.Args = []Arg{{Value: c.expr(args)}}
		return call
	}
	for _, child := range namedChildren(args) {
		switch child.Type() {
		case "keyword_argument":
			call.Args = append(call.Args, Arg{
				Keyword: c.text(child.ChildByFieldName("name")),
				Value:   c.expr(child.ChildByFieldName("value")),
			})
		case "list_splat":
			call.Args = append(call.Args, Arg{Star: "*", Value: c.splatValue(child)})
		case "dictionary_splat":
			call.Args = append(call.Args, Arg{Star: "**", Value: c.splatValue(child)})
		default:
			call.Args = append(call.Args, Arg{Value: c.expr(child)})
		}
	}
	return call
}

func (c *converter) slice(node *sitter.Node) Expr {
	s := &Slice{}
	part := 0
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if isExtra(child) {
			continue
		}
		if !child.IsNamed() {
			if child.Type() == ":" {
				part++
				if part == 2 {
					s.HasStep = true
				}
			}
			continue
		}
		switch part {
		case 0:
			s.Lower = c.expr(child)
		case 1:
			s.Upper = c.expr(child)
		default:
			s.Step = c.expr(child)
		}
	}
	return s
}

func (c *converter) compare(node *sitter.Node) Expr {
	cmp := &Compare{}
	pending := ""
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if isExtra(child) {
			continue
		}
		if !child.IsNamed() {
			tok := strings.Join(strings.Fields(child.Type()), " ")
			if pending != "" {
				pending += " " + tok
			} else {
				pending = tok
			}
			continue
		}
		if cmp.Left == nil {
			cmp.Left = c.expr(child)
			continue
		}
		cmp.Ops = append(cmp.Ops, pending)
		cmp.Rights = append(cmp.Rights, c.expr(child))
		pending = ""
	}
	return cmp
}

func (c *converter) comprehension(node *sitter.Node, kind CompKind) Expr {
	comp := &Comp{Kind: kind}
	body := node.ChildByFieldName("body")
	if kind == CompDict && body != nil && body.Type() == "pair" {
		comp.Key = c.expr(body.ChildByFieldName("key"))
		comp.Elt = c.expr(body.ChildByFieldName("value"))
	} else {
		comp.Elt = c.expr(body)
	}
	for _, child := range namedChildren(node) {
		switch child.Type() {
		case "for_in_clause":
			comp.Gens = append(comp.Gens, Generator{
				Target: c.target(child.ChildByFieldName("left")),
				Iter:   c.exprList(fieldChildren(child, "right")),
				Async:  hasToken(child, "async"),
			})
		case "if_clause":
			if len(comp.Gens) == 0 {
				continue
			}
			g := &comp.Gens[len(comp.Gens)-1]
			if kids := namedChildren(child); len(kids) > 0 {
				g.Ifs = append(g.Ifs, c.expr(kids[0]))
			}
		}
	}
	return comp
}

// str converts a string or concatenated string. Strings with interpolations
// become FString, keeping all text outside the interpolated expressions.
func (c *converter) str(node *sitter.Node) Expr {
	var exprs []*sitter.Node
	var collect func(n *sitter.Node)
	collect = func(n *sitter.Node) {
		if n.Type() == "interpolation" {
			if e := n.ChildByFieldName("expression"); e != nil {
				exprs = append(exprs, e)
			} else if kids := namedChildren(n); len(kids) > 0 {
				exprs = append(exprs, kids[0])
			}
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			collect(n.Child(i))
		}
	}
	collect(node)

	raw := c.text(node)
	if len(exprs) == 0 {
		kind := ConstString
		prefix := strings.ToLower(raw[:strings.IndexAny(raw, `"'`)+1])
		if strings.Contains(prefix, "b") {
			kind = ConstBytes
		}
		return &Constant{Kind: kind, Text: raw}
	}

	fs := &FString{}
	cursor := node.StartByte()
	for _, e := range exprs {
		fs.Parts = append(fs.Parts, FPart{
			Text: string(c.content[cursor:e.StartByte()]),
			Expr: c.expr(e),
		})
		cursor = e.EndByte()
	}
	fs.Tail = string(c.content[cursor:node.EndByte()])
	return fs
}
