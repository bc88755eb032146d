// Package expr implements the restricted expression language used by
// CONDITION transforms and template ternaries. It is a deliberately small,
// auditable grammar — a tokenizer, a recursive-descent parser over a fixed
// operator set, and a side-effect-free evaluator. There is no function call
// syntax, no assignment, and no access to anything outside the supplied
// environment.
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokString
	tokIdent
	tokOperator
	tokLParen
	tokRParen
	tokQuestion
	tokColon
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

// SyntaxError reports a lexing or parsing failure with its offset.
type SyntaxError struct {
	// Expression is the full expression text
	Expression string
	// Position is the byte offset of the failure
	Position int
	// Reason describes the failure
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error in %q at offset %d: %s", e.Expression, e.Position, e.Reason)
}

// lex tokenizes the expression. Strings accept single or double quotes with
// backslash escapes; identifiers are dotted names with optional [n] indexes
// so they line up with the path resolver's grammar.
func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9':
			end := i
			for end < len(input) && (input[end] >= '0' && input[end] <= '9' || input[end] == '.') {
				end++
			}
			f, err := strconv.ParseFloat(input[i:end], 64)
			if err != nil {
				return nil, &SyntaxError{Expression: input, Position: i, Reason: "malformed number"}
			}
			toks = append(toks, token{kind: tokNumber, num: f, text: input[i:end], pos: i})
			i = end
		case c == '\'' || c == '"':
			text, end, err := lexString(input, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, text: text, pos: i})
			i = end
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '?':
			toks = append(toks, token{kind: tokQuestion, text: "?", pos: i})
			i++
		case c == ':':
			toks = append(toks, token{kind: tokColon, text: ":", pos: i})
			i++
		case strings.ContainsRune("<>=!&|+-*/%", rune(c)):
			op, width, err := lexOperator(input, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokOperator, text: op, pos: i})
			i += width
		case isIdentStart(rune(c)):
			end := i
			for end < len(input) && isIdentPart(rune(input[end])) {
				end++
			}
			toks = append(toks, token{kind: tokIdent, text: input[i:end], pos: i})
			i = end
		default:
			return nil, &SyntaxError{Expression: input, Position: i, Reason: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(input)})
	return toks, nil
}

func lexString(input string, start int) (string, int, error) {
	quote := input[start]
	var b strings.Builder
	i := start + 1
	for i < len(input) {
		c := input[i]
		if c == '\\' && i+1 < len(input) {
			next := input[i+1]
			switch next {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(next)
			}
			i += 2
			continue
		}
		if c == quote {
			return b.String(), i + 1, nil
		}
		b.WriteByte(c)
		i++
	}
	return "", 0, &SyntaxError{Expression: input, Position: start, Reason: "unterminated string"}
}

// lexOperator recognizes the fixed operator set: == != <= >= < > && || + - * / %
func lexOperator(input string, i int) (string, int, error) {
	two := ""
	if i+1 < len(input) {
		two = input[i : i+2]
	}
	switch two {
	case "==", "!=", "<=", ">=", "&&", "||":
		return two, 2, nil
	}
	one := input[i : i+1]
	switch one {
	case "<", ">", "+", "-", "*", "/", "%":
		return one, 1, nil
	}
	return "", 0, &SyntaxError{Expression: input, Position: i, Reason: fmt.Sprintf("unknown operator %q", two)}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

// isIdentPart admits dots and bracketed indexes so identifiers can be payload
// paths like items[0].sku.
func isIdentPart(r rune) bool {
	return r == '_' || r == '.' || r == '[' || r == ']' ||
		unicode.IsLetter(r) || unicode.IsDigit(r)
}
