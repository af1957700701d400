package ast

import (
	"fmt"

	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// ParseValue reads a constant value written in contract syntax, for
// example `u10`, `(list 1 2)`, `{a: (some 'ST...)}` or `(ok true)`.
// Only constructors of constant data are accepted.
func ParseValue(source string) (value.Value, error) {
	n, err := ParseExpression(source)
	if err != nil {
		return nil, err
	}
	return LiteralValue(n)
}

// LiteralValue converts a constant expression node into a value.
func LiteralValue(n *Node) (value.Value, error) {
	switch n.Kind {
	case KindLiteral:
		return n.Value, nil
	case KindTuple:
		fields := make([]value.TupleField, 0, len(n.Fields))
		for _, f := range n.Fields {
			v, err := LiteralValue(f.Value)
			if err != nil {
				return nil, err
			}
			fields = append(fields, value.TupleField{Name: f.Key, Value: v})
		}
		return value.NewTuple(fields)
	case KindList:
		args := n.Args()
		vals := make([]value.Value, 0, len(args))
		if n.Head() != "tuple" {
			for _, a := range args {
				v, err := LiteralValue(a)
				if err != nil {
					return nil, err
				}
				vals = append(vals, v)
			}
		}
		switch n.Head() {
		case "list":
			return value.NewList(vals)
		case "some", "ok", "err":
			if len(vals) != 1 {
				return nil, fmt.Errorf("%s: %s takes one argument", n.Span, n.Head())
			}
			switch n.Head() {
			case "some":
				return value.Some(vals[0]), nil
			case "ok":
				return value.Ok(vals[0]), nil
			default:
				return value.Err(vals[0]), nil
			}
		case "tuple":
			fields := make([]value.TupleField, 0, len(args))
			for _, a := range args {
				if !a.IsList() || len(a.Children) != 2 || a.Children[0].Kind != KindAtom {
					return nil, fmt.Errorf("%s: tuple field must be (name value)", a.Span)
				}
				v, err := LiteralValue(a.Children[1])
				if err != nil {
					return nil, err
				}
				fields = append(fields, value.TupleField{Name: a.Children[0].Name, Value: v})
			}
			return value.NewTuple(fields)
		}
	}
	return nil, fmt.Errorf("%s: not a constant value", n.Span)
}
