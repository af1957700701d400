package value

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Kind identifies the shape of a TypeSignature.
type Kind uint8

const (
	KindNoType Kind = iota
	KindInt
	KindUInt
	KindBool
	KindPrincipal
	KindBuffer
	KindASCII
	KindUTF8
	KindOptional
	KindResponse
	KindList
	KindTuple
	KindTrait
)

// TypeSignature describes a Clarity type.
//
// Length is the maximum length for buffers, strings and lists. Elem is the
// inner type of optionals and the element type of lists. Ok and Err are the
// branches of a response. Fields are kept sorted by name.
//
// KindNoType is the type of values whose inner type is not yet known, such
// as none or the element type of an empty list. It is admitted everywhere.
type TypeSignature struct {
	Kind   Kind
	Length uint32
	Elem   *TypeSignature
	Ok     *TypeSignature
	Err    *TypeSignature
	Fields []TupleFieldType
	Trait  string
}

// TupleFieldType is one named field of a tuple type.
type TupleFieldType struct {
	Name string
	Type TypeSignature
}

var (
	NoType        = TypeSignature{Kind: KindNoType}
	IntType       = TypeSignature{Kind: KindInt}
	UIntType      = TypeSignature{Kind: KindUInt}
	BoolType      = TypeSignature{Kind: KindBool}
	PrincipalType = TypeSignature{Kind: KindPrincipal}
)

// BufferType returns (buff n).
func BufferType(n uint32) TypeSignature { return TypeSignature{Kind: KindBuffer, Length: n} }

// ASCIIType returns (string-ascii n).
func ASCIIType(n uint32) TypeSignature { return TypeSignature{Kind: KindASCII, Length: n} }

// UTF8Type returns (string-utf8 n).
func UTF8Type(n uint32) TypeSignature { return TypeSignature{Kind: KindUTF8, Length: n} }

// OptionalType returns (optional t).
func OptionalType(t TypeSignature) TypeSignature {
	return TypeSignature{Kind: KindOptional, Elem: &t}
}

// ResponseType returns (response ok err).
func ResponseType(ok, err TypeSignature) TypeSignature {
	return TypeSignature{Kind: KindResponse, Ok: &ok, Err: &err}
}

// ListType returns (list n elem).
func ListType(elem TypeSignature, n uint32) TypeSignature {
	return TypeSignature{Kind: KindList, Length: n, Elem: &elem}
}

// TraitType returns the type of a parameter bound to trait name.
func TraitType(name string) TypeSignature { return TypeSignature{Kind: KindTrait, Trait: name} }

// TupleType returns a tuple type. Duplicate field names are rejected.
func TupleType(fields []TupleFieldType) (TypeSignature, error) {
	if len(fields) == 0 {
		return TypeSignature{}, fmt.Errorf("tuple type must have at least one field")
	}
	sorted := make([]TupleFieldType, len(fields))
	copy(sorted, fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for i := range sorted {
		if sorted[i].Name == "" {
			return TypeSignature{}, fmt.Errorf("tuple field name must not be empty")
		}
		if i > 0 && sorted[i].Name == sorted[i-1].Name {
			return TypeSignature{}, fmt.Errorf("duplicate tuple field %q", sorted[i].Name)
		}
	}
	return TypeSignature{Kind: KindTuple, Fields: sorted}, nil
}

// Field returns the type of the named tuple field.
func (t TypeSignature) Field(name string) (TypeSignature, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return TypeSignature{}, false
}

// Equal reports whether two signatures describe the same type.
func (t TypeSignature) Equal(o TypeSignature) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindBuffer, KindASCII, KindUTF8:
		return t.Length == o.Length
	case KindOptional:
		return t.Elem.Equal(*o.Elem)
	case KindResponse:
		return t.Ok.Equal(*o.Ok) && t.Err.Equal(*o.Err)
	case KindList:
		return t.Length == o.Length && t.Elem.Equal(*o.Elem)
	case KindTuple:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if t.Fields[i].Name != o.Fields[i].Name || !t.Fields[i].Type.Equal(o.Fields[i].Type) {
				return false
			}
		}
		return true
	case KindTrait:
		return t.Trait == o.Trait
	default:
		return true
	}
}

// Admits reports whether a value of type actual may be stored where type t
// is expected. Lengths may shrink, unknown inner types are accepted and a
// trait slot accepts any principal (conformance is checked at dispatch).
func (t TypeSignature) Admits(actual TypeSignature) bool {
	if actual.Kind == KindNoType {
		return true
	}
	if t.Kind == KindTrait {
		return actual.Kind == KindPrincipal || actual.Kind == KindTrait
	}
	if t.Kind != actual.Kind {
		return false
	}
	switch t.Kind {
	case KindBuffer, KindASCII, KindUTF8:
		return actual.Length <= t.Length
	case KindOptional:
		return t.Elem.Admits(*actual.Elem)
	case KindResponse:
		return t.Ok.Admits(*actual.Ok) && t.Err.Admits(*actual.Err)
	case KindList:
		return actual.Length <= t.Length && t.Elem.Admits(*actual.Elem)
	case KindTuple:
		if len(t.Fields) != len(actual.Fields) {
			return false
		}
		for i := range t.Fields {
			if t.Fields[i].Name != actual.Fields[i].Name || !t.Fields[i].Type.Admits(actual.Fields[i].Type) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// LeastSupertype returns the smallest type admitting both a and b.
func LeastSupertype(a, b TypeSignature) (TypeSignature, error) {
	if a.Kind == KindNoType {
		return b, nil
	}
	if b.Kind == KindNoType {
		return a, nil
	}
	if a.Kind != b.Kind {
		return TypeSignature{}, fmt.Errorf("%w: %s vs %s", ErrTypeMismatch, a, b)
	}
	switch a.Kind {
	case KindBuffer, KindASCII, KindUTF8:
		return TypeSignature{Kind: a.Kind, Length: max(a.Length, b.Length)}, nil
	case KindOptional:
		inner, err := LeastSupertype(*a.Elem, *b.Elem)
		if err != nil {
			return TypeSignature{}, err
		}
		return OptionalType(inner), nil
	case KindResponse:
		ok, err := LeastSupertype(*a.Ok, *b.Ok)
		if err != nil {
			return TypeSignature{}, err
		}
		er, err := LeastSupertype(*a.Err, *b.Err)
		if err != nil {
			return TypeSignature{}, err
		}
		return ResponseType(ok, er), nil
	case KindList:
		elem, err := LeastSupertype(*a.Elem, *b.Elem)
		if err != nil {
			return TypeSignature{}, err
		}
		return ListType(elem, max(a.Length, b.Length)), nil
	case KindTuple:
		if len(a.Fields) != len(b.Fields) {
			return TypeSignature{}, fmt.Errorf("%w: %s vs %s", ErrTypeMismatch, a, b)
		}
		fields := make([]TupleFieldType, len(a.Fields))
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name {
				return TypeSignature{}, fmt.Errorf("%w: %s vs %s", ErrTypeMismatch, a, b)
			}
			ft, err := LeastSupertype(a.Fields[i].Type, b.Fields[i].Type)
			if err != nil {
				return TypeSignature{}, err
			}
			fields[i] = TupleFieldType{Name: a.Fields[i].Name, Type: ft}
		}
		return TypeSignature{Kind: KindTuple, Fields: fields}, nil
	case KindTrait:
		if a.Trait != b.Trait {
			return TypeSignature{}, fmt.Errorf("%w: %s vs %s", ErrTypeMismatch, a, b)
		}
		return a, nil
	default:
		return a, nil
	}
}

// String renders the type the way it is written in contract source.
func (t TypeSignature) String() string {
	switch t.Kind {
	case KindInt:
		return "int"
	case KindUInt:
		return "uint"
	case KindBool:
		return "bool"
	case KindPrincipal:
		return "principal"
	case KindBuffer:
		return fmt.Sprintf("(buff %d)", t.Length)
	case KindASCII:
		return fmt.Sprintf("(string-ascii %d)", t.Length)
	case KindUTF8:
		return fmt.Sprintf("(string-utf8 %d)", t.Length)
	case KindOptional:
		return fmt.Sprintf("(optional %s)", t.Elem)
	case KindResponse:
		return fmt.Sprintf("(response %s %s)", t.Ok, t.Err)
	case KindList:
		return fmt.Sprintf("(list %d %s)", t.Length, t.Elem)
	case KindTuple:
		var b strings.Builder
		b.WriteString("(tuple")
		for _, f := range t.Fields {
			fmt.Fprintf(&b, " (%s %s)", f.Name, f.Type)
		}
		b.WriteString(")")
		return b.String()
	case KindTrait:
		return "<" + t.Trait + ">"
	default:
		return "UnknownType"
	}
}

// ABI returns the JSON-ready interface description of the type.
func (t TypeSignature) ABI() any {
	switch t.Kind {
	case KindInt:
		return "int128"
	case KindUInt:
		return "uint128"
	case KindBool:
		return "bool"
	case KindPrincipal:
		return "principal"
	case KindBuffer:
		return map[string]any{"buffer": map[string]any{"length": t.Length}}
	case KindASCII:
		return map[string]any{"string-ascii": map[string]any{"length": t.Length}}
	case KindUTF8:
		return map[string]any{"string-utf8": map[string]any{"length": t.Length}}
	case KindOptional:
		return map[string]any{"optional": t.Elem.ABI()}
	case KindResponse:
		return map[string]any{"response": map[string]any{"ok": t.Ok.ABI(), "error": t.Err.ABI()}}
	case KindList:
		return map[string]any{"list": map[string]any{"type": t.Elem.ABI(), "length": t.Length}}
	case KindTuple:
		fields := make([]any, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = map[string]any{"name": f.Name, "type": f.Type.ABI()}
		}
		return map[string]any{"tuple": fields}
	case KindTrait:
		return "trait_reference"
	default:
		return "none"
	}
}

// MarshalJSON implements json.Marshaler using the ABI form.
func (t TypeSignature) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.ABI())
}
