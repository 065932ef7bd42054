package parser

import (
	"strconv"
	"strings"
)

// nameRef is an argument that refers to a variable. Its value is never
// looked up; only literal arguments influence the diagram.
type nameRef string

type cursor struct {
	line sourceLine
	toks []token
	i    int
}

func newCursor(l sourceLine) *cursor {
	return &cursor{line: l}
}

func (c *cursor) init() error {
	toks, err := tokenize(c.line.text)
	if err != nil {
		return errorf(c.line.num, "%s", err.Error())
	}
	c.toks = toks
	return nil
}

func (c *cursor) errorf(format string, args ...interface{}) error {
	return errorf(c.line.num, format, args...)
}

func (c *cursor) peek() token {
	return c.peekAt(0)
}

func (c *cursor) peekAt(n int) token {
	if c.i+n >= len(c.toks) {
		return c.toks[len(c.toks)-1]
	}
	return c.toks[c.i+n]
}

func (c *cursor) next() token {
	t := c.peek()
	if c.i < len(c.toks)-1 {
		c.i++
	}
	return t
}

func (c *cursor) peekOp(op string) bool {
	t := c.peek()
	return t.kind == tokOp && t.text == op
}

func (c *cursor) acceptOp(op string) bool {
	if c.peekOp(op) {
		c.next()
		return true
	}
	return false
}

func (c *cursor) expectOp(op string) error {
	if !c.acceptOp(op) {
		return c.errorf("expected %q, got %s", op, describe(c.peek()))
	}
	return nil
}

func (c *cursor) end() error {
	if t := c.peek(); t.kind != tokEOF {
		return c.errorf("unexpected %s", describe(t))
	}
	return nil
}

// blockEnd consumes the tail of a with statement: [as NAME] ':'
func (c *cursor) blockEnd() error {
	if t := c.peek(); t.kind == tokName && t.text == "as" {
		c.next()
		if c.next().kind != tokName {
			return c.errorf("expected a name after as")
		}
	}
	if err := c.expectOp(":"); err != nil {
		return err
	}
	return c.end()
}

// assignmentTargets reports whether the statement starts with
// `name [, name]* =` and consumes that prefix if so.
func (c *cursor) assignmentTargets() ([]string, bool) {
	start := c.i
	var names []string
	for {
		t := c.next()
		if t.kind != tokName {
			c.i = start
			return nil, false
		}
		names = append(names, t.text)
		if c.acceptOp(",") {
			continue
		}
		if c.acceptOp("=") {
			return names, true
		}
		c.i = start
		return nil, false
	}
}

// value parses a literal argument value.
func (c *cursor) value() (interface{}, error) {
	t := c.next()
	switch t.kind {
	case tokString:
		s := t.text
		for c.peek().kind == tokString {
			s += c.next().text
		}
		return s, nil
	case tokNumber:
		return parseNumber(t.text), nil
	case tokName:
		switch t.text {
		case "True":
			return true, nil
		case "False":
			return false, nil
		case "None":
			return nil, nil
		}
		if c.peekOp("(") || c.peekOp(".") {
			return nil, c.errorf("calls and attribute access are not allowed in arguments")
		}
		return nameRef(t.text), nil
	case tokOp:
		switch t.text {
		case "-":
			n := c.next()
			if n.kind != tokNumber {
				return nil, c.errorf("expected a number after -")
			}
			return -parseNumber(n.text), nil
		case "[", "(":
			closing := "]"
			if t.text == "(" {
				closing = ")"
			}
			var items []interface{}
			for !c.acceptOp(closing) {
				v, err := c.value()
				if err != nil {
					return nil, err
				}
				items = append(items, v)
				if c.acceptOp(",") {
					continue
				}
				if err := c.expectOp(closing); err != nil {
					return nil, err
				}
				break
			}
			return items, nil
		case "{":
			m := make(map[string]interface{})
			for !c.acceptOp("}") {
				k, err := c.value()
				if err != nil {
					return nil, err
				}
				if err := c.expectOp(":"); err != nil {
					return nil, err
				}
				v, err := c.value()
				if err != nil {
					return nil, err
				}
				if ks, ok := k.(string); ok {
					m[ks] = v
				}
				if c.acceptOp(",") {
					continue
				}
				if err := c.expectOp("}"); err != nil {
					return nil, err
				}
				break
			}
			return m, nil
		}
	}
	return nil, c.errorf("unsupported argument %s", describe(t))
}

func parseNumber(s string) float64 {
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, "_", ""), 64)
	if err != nil {
		return 0
	}
	return f
}

func describe(t token) string {
	switch t.kind {
	case tokEOF:
		return "end of line"
	case tokString:
		return strconv.Quote(t.text)
	}
	return "\"" + t.text + "\""
}
