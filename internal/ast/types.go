package ast

import (
	"fmt"
	"math"

	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// ParseType reads a type expression such as uint, (buff 32),
// (list 10 {a: int}) or <sip-010-trait>.
func ParseType(n *Node) (value.TypeSignature, error) {
	switch n.Kind {
	case KindAtom:
		switch n.Name {
		case "int":
			return value.IntType, nil
		case "uint":
			return value.UIntType, nil
		case "bool":
			return value.BoolType, nil
		case "principal":
			return value.PrincipalType, nil
		}
		return value.TypeSignature{}, typeError(n, "unknown type %q", n.Name)
	case KindTraitRef:
		return value.TraitType(n.Name), nil
	case KindTuple:
		fields := make([]value.TupleFieldType, 0, len(n.Fields))
		for _, f := range n.Fields {
			t, err := ParseType(f.Value)
			if err != nil {
				return value.TypeSignature{}, err
			}
			fields = append(fields, value.TupleFieldType{Name: f.Key, Type: t})
		}
		t, err := value.TupleType(fields)
		if err != nil {
			return value.TypeSignature{}, typeError(n, "%v", err)
		}
		return t, nil
	case KindList:
		return parseCompositeType(n)
	}
	return value.TypeSignature{}, typeError(n, "expected a type, found %s", n.Kind)
}

func parseCompositeType(n *Node) (value.TypeSignature, error) {
	args := n.Args()
	switch n.Head() {
	case "buff", "string-ascii", "string-utf8":
		if len(args) != 1 {
			return value.TypeSignature{}, typeError(n, "%s takes a length", n.Head())
		}
		l, err := typeLength(args[0])
		if err != nil {
			return value.TypeSignature{}, err
		}
		switch n.Head() {
		case "buff":
			return value.BufferType(l), nil
		case "string-ascii":
			return value.ASCIIType(l), nil
		default:
			return value.UTF8Type(l), nil
		}
	case "optional":
		if len(args) != 1 {
			return value.TypeSignature{}, typeError(n, "optional takes one type")
		}
		inner, err := ParseType(args[0])
		if err != nil {
			return value.TypeSignature{}, err
		}
		return value.OptionalType(inner), nil
	case "response":
		if len(args) != 2 {
			return value.TypeSignature{}, typeError(n, "response takes two types")
		}
		ok, err := ParseType(args[0])
		if err != nil {
			return value.TypeSignature{}, err
		}
		er, err := ParseType(args[1])
		if err != nil {
			return value.TypeSignature{}, err
		}
		return value.ResponseType(ok, er), nil
	case "list":
		if len(args) != 2 {
			return value.TypeSignature{}, typeError(n, "list takes a length and a type")
		}
		l, err := typeLength(args[0])
		if err != nil {
			return value.TypeSignature{}, err
		}
		elem, err := ParseType(args[1])
		if err != nil {
			return value.TypeSignature{}, err
		}
		return value.ListType(elem, l), nil
	case "tuple":
		fields := make([]value.TupleFieldType, 0, len(args))
		for _, a := range args {
			if !a.IsList() || len(a.Children) != 2 || a.Children[0].Kind != KindAtom {
				return value.TypeSignature{}, typeError(a, "tuple field must be (name type)")
			}
			t, err := ParseType(a.Children[1])
			if err != nil {
				return value.TypeSignature{}, err
			}
			fields = append(fields, value.TupleFieldType{Name: a.Children[0].Name, Type: t})
		}
		t, err := value.TupleType(fields)
		if err != nil {
			return value.TypeSignature{}, typeError(n, "%v", err)
		}
		return t, nil
	}
	return value.TypeSignature{}, typeError(n, "unknown type constructor %q", n.Head())
}

func typeLength(n *Node) (uint32, error) {
	if n.Kind == KindLiteral {
		switch v := n.Value.(type) {
		case value.Int:
			if i, ok := v.Int64(); ok && i >= 0 && i <= math.MaxUint32 {
				return uint32(i), nil
			}
		case value.UInt:
			if u, ok := v.Uint64(); ok && u <= math.MaxUint32 {
				return uint32(u), nil
			}
		}
	}
	return 0, typeError(n, "expected a non-negative length")
}

// TypeError reports a malformed type expression.
type TypeError struct {
	Span    Span
	Message string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Span, e.Message)
}

func typeError(n *Node, format string, args ...any) error {
	return &TypeError{Span: n.Span, Message: fmt.Sprintf(format, args...)}
}
