package parser

import (
	"fmt"
	"strings"

	"diagrammer/internal/domain/entity"
	"diagrammer/internal/infrastructure/catalog"
)

const (
	symDiagram = "Diagram"
	symCluster = "Cluster"
	symEdge    = "Edge"
)

// Parser converts diagram-construction code into an entity.Diagram without
// evaluating it. Only node constructors, lists of nodes, Cluster blocks,
// Edge(...) attributes and the >>, << and - operators are accepted.
type Parser struct {
	catalog *catalog.Catalog
}

func New(c *catalog.Catalog) *Parser {
	if c == nil {
		c = catalog.Default()
	}
	return &Parser{catalog: c}
}

func (p *Parser) Parse(source string) (*entity.Diagram, error) {
	lines, err := logicalLines(source)
	if err != nil {
		return nil, err
	}
	block, err := extractBlock(lines)
	if err != nil {
		return nil, err
	}

	st := &state{
		parser:  p,
		imports: collectImports(lines),
		vars:    make(map[string][]*entity.Node),
		diagram: &entity.Diagram{Direction: entity.DirectionLR},
	}
	if err := st.header(block.Header); err != nil {
		return nil, err
	}
	st.frames = []*frame{{headerIndent: -1, bodyIndent: 0}}
	for _, l := range block.Body {
		if err := st.statement(l); err != nil {
			return nil, err
		}
	}
	if top := st.top(); top.bodyIndent < 0 {
		return nil, errorf(top.headerLine, "expected an indented block after `with Cluster(...)`")
	}
	if err := st.diagram.Validate(); err != nil {
		return nil, &ParseError{Line: block.Header.num, Msg: err.Error()}
	}
	return st.diagram, nil
}

type frame struct {
	headerIndent int
	headerLine   int
	bodyIndent   int // -1 until the first body line is seen
	cluster      *entity.Cluster
}

type state struct {
	parser  *Parser
	imports map[string]importedName
	vars    map[string][]*entity.Node
	diagram *entity.Diagram
	frames  []*frame

	nodeSeq    int
	clusterSeq int
}

// term is either a group of nodes or a pending Edge(...) attribute set.
type term struct {
	nodes []*entity.Node
	edge  *entity.Edge
}

type args struct {
	pos []interface{}
	kw  map[string]interface{}
}

func (a args) label() string {
	if v, ok := a.kw["label"].(string); ok {
		return v
	}
	if len(a.pos) > 0 {
		if v, ok := a.pos[0].(string); ok {
			return v
		}
	}
	return ""
}

func (s *state) top() *frame {
	return s.frames[len(s.frames)-1]
}

func (s *state) header(l sourceLine) error {
	c := newCursor(l)
	if err := c.init(); err != nil {
		return err
	}
	c.next() // with
	if t := c.next(); t.kind != tokName || s.resolve(t.text) != symDiagram {
		return c.errorf("expected Diagram")
	}
	if err := c.expectOp("("); err != nil {
		return err
	}
	a, err := s.args(c)
	if err != nil {
		return err
	}
	if err := c.blockEnd(); err != nil {
		return err
	}

	if v, ok := a.kw["name"].(string); ok {
		s.diagram.Title = v
	} else if len(a.pos) > 0 {
		if v, ok := a.pos[0].(string); ok {
			s.diagram.Title = v
		}
	}
	if v, ok := a.kw["direction"]; ok {
		dir, _ := v.(string)
		d := entity.Direction(strings.ToUpper(dir))
		if !d.Valid() {
			return c.errorf("invalid direction %q", dir)
		}
		s.diagram.Direction = d
	}
	return nil
}

func (s *state) statement(l sourceLine) error {
	top := s.top()
	if top.bodyIndent < 0 {
		if l.indent <= top.headerIndent {
			return errorf(top.headerLine, "expected an indented block after `with Cluster(...)`")
		}
		top.bodyIndent = l.indent
	} else {
		for l.indent < s.top().bodyIndent && len(s.frames) > 1 {
			s.frames = s.frames[:len(s.frames)-1]
		}
		if l.indent != s.top().bodyIndent {
			return errorf(l.num, "unexpected indentation")
		}
	}

	c := newCursor(l)
	if err := c.init(); err != nil {
		return err
	}
	first := c.peek()

	switch {
	case first.kind == tokName && first.text == "with":
		return s.withCluster(c, l)
	case first.kind == tokName && first.text == "pass" && c.peekAt(1).kind == tokEOF:
		return nil
	case first.kind == tokString && c.peekAt(1).kind == tokEOF:
		// docstring
		return nil
	case first.kind == tokName && isKeyword(first.text):
		return c.errorf("%q statements are not allowed in a diagram block", first.text)
	}

	if targets, ok := c.assignmentTargets(); ok {
		return s.assign(c, targets)
	}
	if _, err := s.chain(c); err != nil {
		return err
	}
	return c.end()
}

func (s *state) withCluster(c *cursor, l sourceLine) error {
	c.next() // with
	t := c.next()
	if t.kind != tokName {
		return c.errorf("expected Cluster after with")
	}
	switch s.resolve(t.text) {
	case symCluster:
	case symDiagram:
		return c.errorf("nested Diagram blocks are not supported")
	default:
		return c.errorf("only `with Cluster(...)` blocks are allowed, got %q", t.text)
	}
	if err := c.expectOp("("); err != nil {
		return err
	}
	a, err := s.args(c)
	if err != nil {
		return err
	}
	if err := c.blockEnd(); err != nil {
		return err
	}

	s.clusterSeq++
	label := a.label()
	if label == "" {
		label = "Cluster"
	}
	cl := &entity.Cluster{ID: fmt.Sprintf("cluster_%d", s.clusterSeq), Label: label}
	if parent := s.top().cluster; parent != nil {
		parent.Clusters = append(parent.Clusters, cl)
	} else {
		s.diagram.Clusters = append(s.diagram.Clusters, cl)
	}
	s.frames = append(s.frames, &frame{
		headerIndent: l.indent,
		headerLine:   l.num,
		bodyIndent:   -1,
		cluster:      cl,
	})
	return nil
}

func (s *state) assign(c *cursor, targets []string) error {
	var values [][]*entity.Node
	for {
		nodes, err := s.chain(c)
		if err != nil {
			return err
		}
		values = append(values, nodes)
		if !c.acceptOp(",") {
			break
		}
		if c.peek().kind == tokEOF {
			break
		}
	}
	if err := c.end(); err != nil {
		return err
	}

	switch {
	case len(targets) == len(values):
		for i, name := range targets {
			s.vars[name] = values[i]
		}
	case len(targets) == 1:
		// a = X(), Y() binds a tuple, which behaves like a list of nodes
		var all []*entity.Node
		for _, v := range values {
			all = append(all, v...)
		}
		s.vars[targets[0]] = all
	default:
		return c.errorf("cannot assign %d values to %d names", len(values), len(targets))
	}
	return nil
}

// chain parses `a >> b << c` and records the edges. `-` binds tighter than
// `>>` and `<<`, so each operand is itself a `-` run. The value is the
// right-most node group, matching the diagrams operator semantics.
func (s *state) chain(c *cursor) ([]*entity.Node, error) {
	return s.edgeRun(c, s.undirected, ">>", "<<")
}

// undirected parses a `b - c - d` run.
func (s *state) undirected(c *cursor) (term, error) {
	t, err := s.term(c)
	if err != nil || t.edge != nil || !c.peekOp("-") {
		return t, err
	}
	nodes, err := s.edgeRun(c, func(*cursor) (term, error) { return t, nil }, "-")
	if err != nil {
		return term{}, err
	}
	return term{nodes: nodes}, nil
}

// edgeRun folds operands joined by ops left to right. An Edge(...) operand
// carries its attributes to the next connection.
func (s *state) edgeRun(c *cursor, operand func(*cursor) (term, error), ops ...string) ([]*entity.Node, error) {
	first, err := operand(c)
	if err != nil {
		return nil, err
	}
	if first.edge != nil {
		return nil, c.errorf("Edge(...) must appear between two nodes")
	}

	cur := first.nodes
	var pending *entity.Edge
	for {
		op := c.peek()
		if op.kind != tokOp || !containsOp(ops, op.text) {
			break
		}
		c.next()
		next := s.term
		if op.text != "-" {
			next = s.undirected
		}
		t, err := next(c)
		if err != nil {
			return nil, err
		}
		if t.edge != nil {
			if pending != nil {
				return nil, c.errorf("two consecutive Edge(...) terms")
			}
			pending = t.edge
			continue
		}
		s.connect(cur, t.nodes, op.text, pending)
		pending = nil
		cur = t.nodes
	}
	if pending != nil {
		return nil, c.errorf("Edge(...) is not followed by a node")
	}
	return cur, nil
}

func containsOp(ops []string, op string) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

func (s *state) connect(left, right []*entity.Node, op string, attrs *entity.Edge) {
	for _, l := range left {
		for _, r := range right {
			e := &entity.Edge{From: l.ID, To: r.ID}
			switch op {
			case "<<":
				e.From, e.To = r.ID, l.ID
			case "-":
				e.Undirected = true
			}
			if attrs != nil {
				e.Label, e.Color, e.Style = attrs.Label, attrs.Color, attrs.Style
			}
			s.diagram.Edges = append(s.diagram.Edges, e)
		}
	}
}

func (s *state) term(c *cursor) (term, error) {
	t := c.next()
	switch {
	case t.kind == tokOp && t.text == "[":
		nodes, err := s.group(c, "]")
		return term{nodes: nodes}, err
	case t.kind == tokOp && t.text == "(":
		nodes, err := s.group(c, ")")
		return term{nodes: nodes}, err
	case t.kind == tokName:
		if c.peekOp(".") {
			return term{}, c.errorf("attribute access on %q is not supported", t.text)
		}
		if c.acceptOp("(") {
			return s.call(c, t.text)
		}
		nodes, ok := s.vars[t.text]
		if !ok {
			return term{}, c.errorf("undefined name %q", t.text)
		}
		return term{nodes: nodes}, nil
	case t.kind == tokEOF:
		return term{}, c.errorf("unexpected end of statement")
	}
	return term{}, c.errorf("unexpected %q", t.text)
}

// group parses the elements of a list or parenthesised expression up to
// closing and flattens them.
func (s *state) group(c *cursor, closing string) ([]*entity.Node, error) {
	nodes := []*entity.Node{}
	for !c.acceptOp(closing) {
		elem, err := s.chain(c)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, elem...)
		if c.acceptOp(",") {
			continue
		}
		if err := c.expectOp(closing); err != nil {
			return nil, err
		}
		break
	}
	return nodes, nil
}

func (s *state) call(c *cursor, name string) (term, error) {
	a, err := s.args(c)
	if err != nil {
		return term{}, err
	}
	switch sym := s.resolve(name); sym {
	case symEdge:
		e := &entity.Edge{}
		e.Label, _ = a.kw["label"].(string)
		e.Color, _ = a.kw["color"].(string)
		e.Style, _ = a.kw["style"].(string)
		return term{edge: e}, nil
	case symCluster, symDiagram:
		return term{}, c.errorf("%s(...) is only allowed in a with statement", sym)
	case "":
		return term{}, c.errorf("unknown node class %q", name)
	}

	kind := s.kind(name)
	s.nodeSeq++
	label := a.label()
	if label == "" {
		label = kind.Name
	}
	n := &entity.Node{
		ID:       fmt.Sprintf("n%d", s.nodeSeq),
		Kind:     kind.Name,
		Provider: kind.Provider,
		Category: kind.Category,
		Label:    label,
	}
	if cl := s.top().cluster; cl != nil {
		cl.Nodes = append(cl.Nodes, n)
	} else {
		s.diagram.Nodes = append(s.diagram.Nodes, n)
	}
	return term{nodes: []*entity.Node{n}}, nil
}

// resolve returns the special symbol name for Diagram/Cluster/Edge, the class
// name for node constructors, or "" when the name is unknown.
func (s *state) resolve(name string) string {
	if imp, ok := s.imports[name]; ok {
		if imp.module == "diagrams" {
			switch imp.name {
			case symDiagram, symCluster, symEdge:
				return imp.name
			}
			return ""
		}
		return imp.name
	}
	switch name {
	case symDiagram, symCluster, symEdge:
		return name
	}
	if _, ok := s.parser.catalog.Lookup(name); ok {
		return name
	}
	return ""
}

func (s *state) kind(name string) catalog.Kind {
	if imp, ok := s.imports[name]; ok {
		parts := strings.Split(imp.module, ".")
		if len(parts) >= 3 {
			return s.parser.catalog.LookupModule(parts[1], parts[2], imp.name)
		}
	}
	k, _ := s.parser.catalog.Lookup(name)
	return k
}

func (s *state) args(c *cursor) (args, error) {
	a := args{kw: make(map[string]interface{})}
	for !c.acceptOp(")") {
		if c.peek().kind == tokName && c.peekAt(1).kind == tokOp && c.peekAt(1).text == "=" {
			key := c.next().text
			c.next()
			v, err := c.value()
			if err != nil {
				return a, err
			}
			a.kw[key] = v
		} else {
			if len(a.kw) > 0 {
				return a, c.errorf("positional argument follows keyword argument")
			}
			v, err := c.value()
			if err != nil {
				return a, err
			}
			a.pos = append(a.pos, v)
		}
		if c.acceptOp(",") {
			continue
		}
		if err := c.expectOp(")"); err != nil {
			return a, err
		}
		break
	}
	return a, nil
}

var keywords = map[string]struct{}{
	"for": {}, "while": {}, "if": {}, "elif": {}, "else": {}, "def": {}, "class": {},
	"return": {}, "import": {}, "from": {}, "try": {}, "except": {}, "finally": {},
	"lambda": {}, "global": {}, "nonlocal": {}, "del": {}, "yield": {}, "raise": {},
	"assert": {}, "async": {}, "await": {}, "exec": {}, "eval": {},
}

func isKeyword(s string) bool {
	_, ok := keywords[s]
	return ok
}
