package parser

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokName
	tokString
	tokNumber
	tokOp
)

type token struct {
	kind tokenKind
	text string // for strings: the unquoted value
	pos  int
}

var twoCharOps = []string{">>", "<<", "**", "==", "!=", "<=", ">=", "->", ":="}

// tokenize splits one logical line into tokens. Comments must already be
// stripped. Operators outside the supported set are still tokenized so the
// parser can report them by name.
func tokenize(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := rune(s[i])
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\\':
			i++
		case c == '"' || c == '\'':
			val, n, err := readString(s[i:])
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, text: val, pos: i})
			i += n
		case isNameStart(c):
			j := i + 1
			for j < len(s) && isNamePart(rune(s[j])) {
				j++
			}
			// string prefixes: r"..", f"..", b".."
			if j < len(s) && (s[j] == '"' || s[j] == '\'') && isStringPrefix(s[i:j]) {
				val, n, err := readString(s[j:])
				if err != nil {
					return nil, err
				}
				toks = append(toks, token{kind: tokString, text: val, pos: i})
				i = j + n
				continue
			}
			toks = append(toks, token{kind: tokName, text: s[i:j], pos: i})
			i = j
		case unicode.IsDigit(c):
			j := i + 1
			for j < len(s) && (unicode.IsDigit(rune(s[j])) || s[j] == '.' || s[j] == '_') {
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: s[i:j], pos: i})
			i = j
		default:
			op := string(c)
			for _, two := range twoCharOps {
				if strings.HasPrefix(s[i:], two) {
					op = two
					break
				}
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: i})
			i += len(op)
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(s)})
	return toks, nil
}

func isNameStart(c rune) bool {
	return c == '_' || unicode.IsLetter(c)
}

func isNamePart(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
}

func isStringPrefix(p string) bool {
	switch strings.ToLower(p) {
	case "r", "f", "b", "u", "rb", "br", "fr", "rf":
		return true
	}
	return false
}

// readString reads a quoted literal at the start of s and returns its value
// and the number of bytes consumed. Triple quoted literals are supported.
func readString(s string) (string, int, error) {
	q := s[0]
	delim := string(q)
	if strings.HasPrefix(s, strings.Repeat(delim, 3)) {
		delim = strings.Repeat(delim, 3)
	}
	var b strings.Builder
	i := len(delim)
	for i < len(s) {
		if strings.HasPrefix(s[i:], delim) {
			return b.String(), i + len(delim), nil
		}
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(s[i+1])
			}
			i += 2
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return "", 0, errUnterminatedString
}
