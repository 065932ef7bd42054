package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrNoDiagramBlock     = errors.New("no `with Diagram(...)` block found in generated code")
	ErrEmptyDiagramBlock  = errors.New("diagram block has no body")
	errUnterminatedString = errors.New("unterminated string literal")
)

// ParseError points at the source line a construct could not be accepted on.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

func errorf(line int, format string, args ...interface{}) error {
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// sourceLine is one logical line: bracketed continuations are joined and
// comments removed.
type sourceLine struct {
	num    int // 1-based number of the first physical line
	indent int
	text   string
}

// Block is the located diagram-construction block.
type Block struct {
	Header sourceLine
	Body   []sourceLine // dedented to a zero base indent
}

var (
	diagramHeaderRe = regexp.MustCompile(`^with\s+Diagram\s*\(`)
	fromImportRe    = regexp.MustCompile(`^from\s+(diagrams(?:\.\w+)*)\s+import\s+(.+)$`)
)

// ExtractBlock locates the first `with Diagram(...)` statement and returns
// its body with the common indentation stripped.
func ExtractBlock(source string) (*Block, error) {
	lines, err := logicalLines(source)
	if err != nil {
		return nil, err
	}
	return extractBlock(lines)
}

func extractBlock(lines []sourceLine) (*Block, error) {
	start := -1
	for i, l := range lines {
		if diagramHeaderRe.MatchString(l.text) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, ErrNoDiagramBlock
	}

	header := lines[start]
	var body []sourceLine
	for _, l := range lines[start+1:] {
		if l.indent <= header.indent {
			break
		}
		body = append(body, l)
	}
	if len(body) == 0 {
		return nil, ErrEmptyDiagramBlock
	}
	return &Block{Header: header, Body: dedent(body)}, nil
}

func dedent(lines []sourceLine) []sourceLine {
	min := -1
	for _, l := range lines {
		if min < 0 || l.indent < min {
			min = l.indent
		}
	}
	out := make([]sourceLine, len(lines))
	for i, l := range lines {
		l.indent -= min
		out[i] = l
	}
	return out
}

// logicalLines joins physical lines the way Python does (open brackets,
// trailing backslashes, triple quoted strings), strips comments and drops
// blank lines.
func logicalLines(source string) ([]sourceLine, error) {
	physical := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")

	var (
		out     []sourceLine
		buf     strings.Builder
		cur     sourceLine
		open    bool
		depth   int
		inStr   string
		escaped bool
	)

	for idx, raw := range physical {
		if !open {
			cur = sourceLine{num: idx + 1, indent: indentWidth(raw)}
			buf.Reset()
			raw = strings.TrimLeft(raw, " \t")
		} else {
			buf.WriteByte('\n')
		}

		for i := 0; i < len(raw); i++ {
			ch := raw[i]
			if inStr != "" {
				buf.WriteByte(ch)
				switch {
				case escaped:
					escaped = false
				case ch == '\\':
					escaped = true
				case strings.HasPrefix(raw[i:], inStr):
					buf.WriteString(inStr[1:])
					i += len(inStr) - 1
					inStr = ""
				}
				continue
			}
			if ch == '#' {
				break
			}
			switch ch {
			case '"', '\'':
				q := string(ch)
				if strings.HasPrefix(raw[i:], strings.Repeat(q, 3)) {
					inStr = strings.Repeat(q, 3)
					buf.WriteString(inStr)
					i += 2
					continue
				}
				inStr = q
			case '(', '[', '{':
				depth++
			case ')', ']', '}':
				depth--
			}
			buf.WriteByte(ch)
		}

		if len(inStr) == 1 {
			return nil, &ParseError{Line: idx + 1, Msg: errUnterminatedString.Error()}
		}

		text := strings.TrimRight(buf.String(), " \t")
		continued := strings.HasSuffix(text, "\\")
		open = depth > 0 || inStr != "" || continued
		if open {
			continue
		}
		depth = 0
		cur.text = strings.TrimSpace(text)
		if cur.text != "" {
			out = append(out, cur)
		}
	}
	if open {
		return nil, &ParseError{Line: cur.num, Msg: "unexpected end of input: unclosed bracket or string"}
	}
	return out, nil
}

func indentWidth(s string) int {
	w := 0
	for _, ch := range s {
		switch ch {
		case ' ':
			w++
		case '\t':
			w += 8 - w%8
		default:
			return w
		}
	}
	return w
}

// importedName is one name bound by a `from diagrams... import` statement.
type importedName struct {
	module string // e.g. diagrams.aws.compute
	name   string // class name in the module
}

func collectImports(lines []sourceLine) map[string]importedName {
	imports := make(map[string]importedName)
	for _, l := range lines {
		m := fromImportRe.FindStringSubmatch(l.text)
		if m == nil {
			continue
		}
		names := strings.Trim(strings.TrimSpace(m[2]), "()")
		for _, part := range strings.Split(names, ",") {
			fields := strings.Fields(part)
			switch {
			case len(fields) == 1 && fields[0] != "*":
				imports[fields[0]] = importedName{module: m[1], name: fields[0]}
			case len(fields) == 3 && fields[1] == "as":
				imports[fields[2]] = importedName{module: m[1], name: fields[0]}
			}
		}
	}
	return imports
}
