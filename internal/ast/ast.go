package ast

import (
	"fmt"

	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// Kind identifies the syntactic form of a Node.
type Kind uint8

const (
	// KindAtom is a bare symbol: a keyword, variable or function name.
	KindAtom Kind = iota
	// KindLiteral is a constant value written in source.
	KindLiteral
	// KindList is a parenthesized expression.
	KindList
	// KindTuple is a brace tuple literal {a: 1, b: 2}.
	KindTuple
	// KindContractRef is a contract relative to the deployer: .name
	KindContractRef
	// KindTraitRef is a trait reference: <name>
	KindTraitRef
)

func (k Kind) String() string {
	switch k {
	case KindAtom:
		return "atom"
	case KindLiteral:
		return "literal"
	case KindList:
		return "list"
	case KindTuple:
		return "tuple"
	case KindContractRef:
		return "contract-ref"
	case KindTraitRef:
		return "trait-ref"
	}
	return "unknown"
}

// Span locates a node in source. Lines and columns are 1-based; the end
// column is inclusive.
type Span struct {
	StartLine   int `json:"start_line"`
	StartColumn int `json:"start_column"`
	EndLine     int `json:"end_line"`
	EndColumn   int `json:"end_column"`
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d", s.StartLine, s.StartColumn)
}

// Less orders spans by start position.
func (s Span) Less(o Span) bool {
	if s.StartLine != o.StartLine {
		return s.StartLine < o.StartLine
	}
	return s.StartColumn < o.StartColumn
}

// Node is one expression of a contract.
type Node struct {
	// ID is unique within a contract and stable across parses of the same
	// source.
	ID   int
	Kind Kind
	Span Span

	// Name is the symbol for atoms, the contract name for contract
	// references and the trait name for trait references.
	Name string
	// Value is set for literals.
	Value value.Value
	// Children holds the elements of a list.
	Children []*Node
	// Fields holds the entries of a tuple literal in source order.
	Fields []TupleEntry
	// Trait is the trait name of a fully qualified trait identifier such
	// as 'SP...contract.trait or .contract.trait. The node then names the
	// defining contract.
	Trait string
}

// TupleEntry is one key/value pair of a tuple literal.
type TupleEntry struct {
	Key     string
	KeySpan Span
	Value   *Node
}

// IsList reports whether n is a list.
func (n *Node) IsList() bool { return n != nil && n.Kind == KindList }

// IsAtom reports whether n is the atom name.
func (n *Node) IsAtom(name string) bool {
	return n != nil && n.Kind == KindAtom && n.Name == name
}

// Head returns the atom at the head of a list, or "".
func (n *Node) Head() string {
	if !n.IsList() || len(n.Children) == 0 || n.Children[0].Kind != KindAtom {
		return ""
	}
	return n.Children[0].Name
}

// Args returns the list elements after the head.
func (n *Node) Args() []*Node {
	if !n.IsList() || len(n.Children) == 0 {
		return nil
	}
	return n.Children[1:]
}

// Walk calls fn on n and every descendant in source order until fn
// returns false.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
	for _, f := range n.Fields {
		Walk(f.Value, fn)
	}
}

// Comment is a ";;" comment with the leading semicolons stripped.
type Comment struct {
	Span Span
	Text string
}

// Contract is the parsed form of one contract source.
type Contract struct {
	Name        string
	Source      string
	Expressions []*Node
	Comments    []Comment
}

// CommentsBefore returns the comments on the lines immediately preceding
// line, stopping at the first line that is not a comment.
func (c *Contract) CommentsBefore(line int) []Comment {
	var out []Comment
	want := line - 1
	for i := len(c.Comments) - 1; i >= 0; i-- {
		cm := c.Comments[i]
		if cm.Span.StartLine > want {
			continue
		}
		if cm.Span.StartLine < want {
			break
		}
		out = append([]Comment{cm}, out...)
		want--
	}
	return out
}

// Parser turns contract source into an AST. The reader in this package is
// the default implementation.
type Parser interface {
	Parse(name, source string) (*Contract, error)
}

// SyntaxError reports malformed source.
type SyntaxError struct {
	Contract string
	Span     Span
	Message  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Contract, e.Span.StartLine, e.Span.StartColumn, e.Message)
}
