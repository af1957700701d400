package ast

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hirosystems/clarinet-sub000/internal/value"
)

const maxNesting = 128

// Reader is the default S-expression Parser. It recognizes the lexical
// forms of the contract language and keeps comments so annotations can
// be read back by the check-checker. It does not type-check.
type Reader struct{}

// Parse implements Parser.
func (Reader) Parse(name, source string) (*Contract, error) {
	r := &reader{contract: name, src: source, line: 1, col: 1}
	c := &Contract{Name: name, Source: source}
	for {
		r.skipSpace()
		if r.eof() {
			break
		}
		n, err := r.expr(0)
		if err != nil {
			return nil, err
		}
		c.Expressions = append(c.Expressions, n)
	}
	c.Comments = r.comments
	return c, nil
}

// Parse parses source with the default Reader.
func Parse(name, source string) (*Contract, error) {
	return Reader{}.Parse(name, source)
}

// ParseExpression parses a single expression.
func ParseExpression(source string) (*Node, error) {
	c, err := Parse("expr", source)
	if err != nil {
		return nil, err
	}
	if len(c.Expressions) != 1 {
		return nil, &SyntaxError{Contract: "expr", Message: fmt.Sprintf("expected one expression, found %d", len(c.Expressions))}
	}
	return c.Expressions[0], nil
}

type reader struct {
	contract string
	src      string
	pos      int
	line     int
	col      int
	nextID   int
	comments []Comment
}

func (r *reader) eof() bool { return r.pos >= len(r.src) }

func (r *reader) peek() byte {
	if r.eof() {
		return 0
	}
	return r.src[r.pos]
}

func (r *reader) peekAt(off int) byte {
	if r.pos+off >= len(r.src) {
		return 0
	}
	return r.src[r.pos+off]
}

func (r *reader) advance() byte {
	c := r.src[r.pos]
	r.pos++
	if c == '\n' {
		r.line++
		r.col = 1
	} else {
		r.col++
	}
	return c
}

func (r *reader) here() Span {
	return Span{StartLine: r.line, StartColumn: r.col, EndLine: r.line, EndColumn: r.col}
}

func (r *reader) errorf(at Span, format string, args ...any) error {
	return &SyntaxError{Contract: r.contract, Span: at, Message: fmt.Sprintf(format, args...)}
}

func (r *reader) node(kind Kind, start Span) *Node {
	r.nextID++
	return &Node{
		ID:   r.nextID,
		Kind: kind,
		Span: Span{StartLine: start.StartLine, StartColumn: start.StartColumn, EndLine: r.line, EndColumn: r.col - 1},
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ','
}

func isDelimiter(c byte) bool {
	return c == 0 || isSpace(c) || c == '(' || c == ')' || c == '{' || c == '}' || c == ':' || c == ';' || c == '"'
}

func isSymbolStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || strings.IndexByte("-+*/<>=!?_", c) >= 0
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func (r *reader) skipSpace() {
	for !r.eof() {
		c := r.peek()
		switch {
		case isSpace(c):
			r.advance()
		case c == ';':
			start := r.here()
			var b strings.Builder
			for !r.eof() && r.peek() != '\n' {
				b.WriteByte(r.advance())
			}
			text := strings.TrimSpace(strings.TrimLeft(b.String(), ";"))
			r.comments = append(r.comments, Comment{
				Span: Span{StartLine: start.StartLine, StartColumn: start.StartColumn, EndLine: start.StartLine, EndColumn: r.col - 1},
				Text: text,
			})
		default:
			return
		}
	}
}

func (r *reader) expr(depth int) (*Node, error) {
	if depth > maxNesting {
		return nil, r.errorf(r.here(), "expression nesting exceeds %d", maxNesting)
	}
	r.skipSpace()
	start := r.here()
	if r.eof() {
		return nil, r.errorf(start, "unexpected end of input")
	}
	c := r.peek()
	switch {
	case c == '(':
		return r.list(start, depth)
	case c == '{':
		return r.tuple(start, depth)
	case c == ')' || c == '}':
		return nil, r.errorf(start, "unexpected %q", c)
	case c == '"':
		return r.asciiString(start)
	case c == 'u' && r.peekAt(1) == '"':
		return r.utf8String(start)
	case c == 'u' && isDigit(r.peekAt(1)):
		r.advance()
		digits := r.takeWhile(isDigit)
		return r.uintLiteral(start, digits)
	case c == '0' && r.peekAt(1) == 'x':
		return r.bufferLiteral(start)
	case isDigit(c) || (c == '-' && isDigit(r.peekAt(1))):
		tok := r.takeToken()
		v, err := value.ParseInt(tok)
		if err != nil {
			return nil, r.errorf(start, "invalid integer %q: %v", tok, err)
		}
		return r.literal(start, v), nil
	case c == '\'':
		r.advance()
		tok := r.takeToken()
		var trait string
		if strings.Count(tok, ".") == 2 {
			i := strings.LastIndexByte(tok, '.')
			tok, trait = tok[:i], tok[i+1:]
		}
		p, err := value.ParsePrincipal(tok)
		if err != nil {
			return nil, r.errorf(start, "invalid principal %q: %v", tok, err)
		}
		n := r.literal(start, p)
		n.Trait = trait
		return n, nil
	case c == '.' && isLetter(r.peekAt(1)):
		r.advance()
		name, trait, _ := strings.Cut(r.takeToken(), ".")
		if err := value.ValidateContractName(name); err != nil {
			return nil, r.errorf(start, "%v", err)
		}
		n := r.node(KindContractRef, start)
		n.Name = name
		n.Trait = trait
		return n, nil
	case c == '<' && isLetter(r.peekAt(1)):
		if name, ok := r.traitRef(); ok {
			n := r.node(KindTraitRef, start)
			n.Name = name
			return n, nil
		}
		return r.symbol(start)
	case isSymbolStart(c):
		return r.symbol(start)
	}
	return nil, r.errorf(start, "unexpected character %q", c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (r *reader) takeWhile(pred func(byte) bool) string {
	begin := r.pos
	for !r.eof() && pred(r.peek()) {
		r.advance()
	}
	return r.src[begin:r.pos]
}

func (r *reader) takeToken() string {
	return r.takeWhile(func(c byte) bool { return !isDelimiter(c) })
}

// traitRef consumes <name> when the closing bracket follows the name
// directly. Otherwise nothing is consumed.
func (r *reader) traitRef() (string, bool) {
	i := r.pos + 1
	for i < len(r.src) && !isDelimiter(r.src[i]) && r.src[i] != '>' {
		i++
	}
	if i >= len(r.src) || r.src[i] != '>' || i == r.pos+1 {
		return "", false
	}
	name := r.src[r.pos+1 : i]
	for r.pos <= i {
		r.advance()
	}
	return name, true
}

func (r *reader) literal(start Span, v value.Value) *Node {
	n := r.node(KindLiteral, start)
	n.Value = v
	return n
}

func (r *reader) uintLiteral(start Span, digits string) (*Node, error) {
	if !isDelimiter(r.peek()) {
		return nil, r.errorf(start, "invalid unsigned integer")
	}
	v, err := value.ParseUInt(digits)
	if err != nil {
		return nil, r.errorf(start, "invalid unsigned integer u%s: %v", digits, err)
	}
	return r.literal(start, v), nil
}

func (r *reader) bufferLiteral(start Span) (*Node, error) {
	r.advance()
	r.advance()
	digits := r.takeWhile(isHex)
	if !isDelimiter(r.peek()) || len(digits)%2 != 0 {
		return nil, r.errorf(start, "invalid buffer literal")
	}
	raw, err := hex.DecodeString(digits)
	if err != nil {
		return nil, r.errorf(start, "invalid buffer literal: %v", err)
	}
	b, err := value.NewBuffer(raw)
	if err != nil {
		return nil, r.errorf(start, "%v", err)
	}
	return r.literal(start, b), nil
}

func (r *reader) symbol(start Span) (*Node, error) {
	tok := r.takeToken()
	if tok == "" {
		return nil, r.errorf(start, "empty symbol")
	}
	switch tok {
	case "true":
		return r.literal(start, value.Bool(true)), nil
	case "false":
		return r.literal(start, value.Bool(false)), nil
	case "none":
		return r.literal(start, value.None()), nil
	}
	n := r.node(KindAtom, start)
	n.Name = tok
	return n, nil
}

func (r *reader) list(start Span, depth int) (*Node, error) {
	r.advance()
	var children []*Node
	for {
		r.skipSpace()
		if r.eof() {
			return nil, r.errorf(start, "unclosed list")
		}
		if r.peek() == ')' {
			r.advance()
			break
		}
		child, err := r.expr(depth + 1)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	n := r.node(KindList, start)
	n.Children = children
	return n, nil
}

func (r *reader) tuple(start Span, depth int) (*Node, error) {
	r.advance()
	var fields []TupleEntry
	for {
		r.skipSpace()
		if r.eof() {
			return nil, r.errorf(start, "unclosed tuple")
		}
		if r.peek() == '}' {
			r.advance()
			break
		}
		keySpan := r.here()
		if !isSymbolStart(r.peek()) {
			return nil, r.errorf(keySpan, "expected tuple key")
		}
		key := r.takeToken()
		keySpan.EndColumn = r.col - 1
		r.skipSpace()
		if r.peek() != ':' {
			return nil, r.errorf(keySpan, "expected ':' after tuple key %q", key)
		}
		r.advance()
		v, err := r.expr(depth + 1)
		if err != nil {
			return nil, err
		}
		fields = append(fields, TupleEntry{Key: key, KeySpan: keySpan, Value: v})
	}
	if len(fields) == 0 {
		return nil, r.errorf(start, "tuple literal must have at least one field")
	}
	n := r.node(KindTuple, start)
	n.Fields = fields
	return n, nil
}

func (r *reader) asciiString(start Span) (*Node, error) {
	s, err := r.quoted(start, false)
	if err != nil {
		return nil, err
	}
	v, err := value.NewASCII(s)
	if err != nil {
		return nil, r.errorf(start, "%v", err)
	}
	return r.literal(start, v), nil
}

func (r *reader) utf8String(start Span) (*Node, error) {
	r.advance()
	s, err := r.quoted(start, true)
	if err != nil {
		return nil, err
	}
	v, err := value.NewUTF8(s)
	if err != nil {
		return nil, r.errorf(start, "%v", err)
	}
	return r.literal(start, v), nil
}

func (r *reader) quoted(start Span, unicode bool) (string, error) {
	r.advance()
	var b strings.Builder
	for {
		if r.eof() {
			return "", r.errorf(start, "unterminated string")
		}
		c := r.advance()
		if c == '"' {
			return b.String(), nil
		}
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if r.eof() {
			return "", r.errorf(start, "unterminated string")
		}
		esc := r.advance()
		switch esc {
		case '"', '\\':
			b.WriteByte(esc)
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'u':
			if !unicode || r.peek() != '{' {
				return "", r.errorf(start, "invalid escape \\u")
			}
			r.advance()
			digits := r.takeWhile(isHex)
			if r.peek() != '}' || digits == "" {
				return "", r.errorf(start, "invalid unicode escape")
			}
			r.advance()
			cp, err := strconv.ParseUint(digits, 16, 32)
			if err != nil || !utf8.ValidRune(rune(cp)) {
				return "", r.errorf(start, "invalid code point %s", digits)
			}
			b.WriteRune(rune(cp))
		default:
			return "", r.errorf(start, "invalid escape \\%c", esc)
		}
	}
}
