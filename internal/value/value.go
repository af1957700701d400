package value

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxValueSize bounds the serialized size of any single value (1 MiB).
const MaxValueSize = 1 << 20

var (
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrValueTooLarge   = errors.New("value too large")
	ErrInvalidEncoding = errors.New("invalid encoding")
)

// Value is a sealed interface over the Clarity value domain.
// Only the types in this package implement it. Values are never mutated
// after construction; accessors that expose slices return copies.
type Value interface {
	// Type returns the most specific type signature of the value.
	Type() TypeSignature
	// String renders the value in Clarity literal syntax.
	String() string

	isValue()
}

// Bool is a Clarity boolean.
type Bool bool

func (Bool) isValue() {}

func (Bool) Type() TypeSignature { return BoolType }

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Buffer is an immutable byte buffer.
type Buffer struct {
	data string
}

// NewBuffer copies b into a Buffer.
func NewBuffer(b []byte) (Buffer, error) {
	if len(b) > MaxValueSize {
		return Buffer{}, fmt.Errorf("%w: buffer of %d bytes", ErrValueTooLarge, len(b))
	}
	return Buffer{data: string(b)}, nil
}

func (Buffer) isValue() {}

func (b Buffer) Type() TypeSignature { return BufferType(uint32(len(b.data))) }

// Bytes returns a copy of the buffer contents.
func (b Buffer) Bytes() []byte { return []byte(b.data) }

// Len returns the buffer length in bytes.
func (b Buffer) Len() int { return len(b.data) }

func (b Buffer) String() string { return "0x" + hex.EncodeToString([]byte(b.data)) }

// ASCII is a (string-ascii n) value.
type ASCII struct {
	s string
}

// NewASCII validates that s only holds printable ASCII plus tab, newline
// and carriage return.
func NewASCII(s string) (ASCII, error) {
	if len(s) > MaxValueSize {
		return ASCII{}, fmt.Errorf("%w: string of %d bytes", ErrValueTooLarge, len(s))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 0x20 || c > 0x7e) && c != '\t' && c != '\n' && c != '\r' {
			return ASCII{}, fmt.Errorf("%w: non-ascii byte 0x%02x at %d", ErrInvalidEncoding, c, i)
		}
	}
	return ASCII{s: s}, nil
}

func (ASCII) isValue() {}

func (a ASCII) Type() TypeSignature { return ASCIIType(uint32(len(a.s))) }

// Text returns the Go string.
func (a ASCII) Text() string { return a.s }

// Len returns the length in characters.
func (a ASCII) Len() int { return len(a.s) }

func (a ASCII) String() string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(a.s); i++ {
		writeEscaped(&b, rune(a.s[i]))
	}
	b.WriteByte('"')
	return b.String()
}

// UTF8 is a (string-utf8 n) value.
type UTF8 struct {
	s string
}

// NewUTF8 validates s as UTF-8.
func NewUTF8(s string) (UTF8, error) {
	if len(s) > MaxValueSize {
		return UTF8{}, fmt.Errorf("%w: string of %d bytes", ErrValueTooLarge, len(s))
	}
	if !utf8.ValidString(s) {
		return UTF8{}, fmt.Errorf("%w: invalid utf-8", ErrInvalidEncoding)
	}
	return UTF8{s: s}, nil
}

func (UTF8) isValue() {}

func (u UTF8) Type() TypeSignature { return UTF8Type(uint32(utf8.RuneCountInString(u.s))) }

// Text returns the Go string.
func (u UTF8) Text() string { return u.s }

// Len returns the length in code points.
func (u UTF8) Len() int { return utf8.RuneCountInString(u.s) }

func (u UTF8) String() string {
	var b strings.Builder
	b.WriteString(`u"`)
	for _, r := range u.s {
		if r > 0x7e {
			fmt.Fprintf(&b, `\u{%x}`, r)
			continue
		}
		writeEscaped(&b, r)
	}
	b.WriteByte('"')
	return b.String()
}

func writeEscaped(b *strings.Builder, r rune) {
	switch r {
	case '"':
		b.WriteString(`\"`)
	case '\\':
		b.WriteString(`\\`)
	case '\n':
		b.WriteString(`\n`)
	case '\t':
		b.WriteString(`\t`)
	case '\r':
		b.WriteString(`\r`)
	default:
		b.WriteRune(r)
	}
}

// Optional is (some v) or none.
type Optional struct {
	inner Value
}

// Some wraps v.
func Some(v Value) Optional { return Optional{inner: v} }

// None returns the empty optional.
func None() Optional { return Optional{} }

func (Optional) isValue() {}

// IsSome reports whether the optional holds a value.
func (o Optional) IsSome() bool { return o.inner != nil }

// Inner returns the wrapped value, or nil for none.
func (o Optional) Inner() Value { return o.inner }

func (o Optional) Type() TypeSignature {
	if o.inner == nil {
		return OptionalType(NoType)
	}
	return OptionalType(o.inner.Type())
}

func (o Optional) String() string {
	if o.inner == nil {
		return "none"
	}
	return "(some " + o.inner.String() + ")"
}

// Response is (ok v) or (err v).
type Response struct {
	ok    bool
	inner Value
}

// Ok builds (ok v).
func Ok(v Value) Response { return Response{ok: true, inner: v} }

// Err builds (err v).
func Err(v Value) Response { return Response{ok: false, inner: v} }

func (Response) isValue() {}

// IsOk reports whether this is an ok response.
func (r Response) IsOk() bool { return r.ok }

// Inner returns the wrapped value.
func (r Response) Inner() Value { return r.inner }

func (r Response) Type() TypeSignature {
	if r.ok {
		return ResponseType(r.inner.Type(), NoType)
	}
	return ResponseType(NoType, r.inner.Type())
}

func (r Response) String() string {
	if r.ok {
		return "(ok " + r.inner.String() + ")"
	}
	return "(err " + r.inner.String() + ")"
}

// List is a homogeneous sequence.
type List struct {
	elems []Value
	elem  TypeSignature
}

// NewList builds a list, computing the element type as the least
// supertype of all elements.
func NewList(elems []Value) (List, error) {
	elemType := NoType
	for i, e := range elems {
		t, err := LeastSupertype(elemType, e.Type())
		if err != nil {
			return List{}, fmt.Errorf("list element %d: %w", i, err)
		}
		elemType = t
	}
	l := List{elems: append([]Value(nil), elems...), elem: elemType}
	if SerializedSize(l) > MaxValueSize {
		return List{}, fmt.Errorf("%w: list of %d elements", ErrValueTooLarge, len(elems))
	}
	return l, nil
}

// MustList is NewList that panics. For fixtures and tests.
func MustList(elems ...Value) List {
	l, err := NewList(elems)
	if err != nil {
		panic(err)
	}
	return l
}

func (List) isValue() {}

// Len returns the number of elements.
func (l List) Len() int { return len(l.elems) }

// At returns the i-th element.
func (l List) At(i int) Value { return l.elems[i] }

// Elements returns a copy of the elements.
func (l List) Elements() []Value { return append([]Value(nil), l.elems...) }

// ElemType returns the element type.
func (l List) ElemType() TypeSignature { return l.elem }

func (l List) Type() TypeSignature { return ListType(l.elem, uint32(len(l.elems))) }

func (l List) String() string {
	if len(l.elems) == 0 {
		return "(list)"
	}
	parts := make([]string, len(l.elems))
	for i, e := range l.elems {
		parts[i] = e.String()
	}
	return "(list " + strings.Join(parts, " ") + ")"
}

// Tuple is a record with named fields, kept sorted by name.
type Tuple struct {
	names []string
	vals  []Value
}

// TupleField is one field of a tuple under construction.
type TupleField struct {
	Name  string
	Value Value
}

// NewTuple builds a tuple. Field names must be unique and non-empty.
func NewTuple(fields []TupleField) (Tuple, error) {
	if len(fields) == 0 {
		return Tuple{}, fmt.Errorf("tuple must have at least one field")
	}
	sorted := append([]TupleField(nil), fields...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	t := Tuple{names: make([]string, len(sorted)), vals: make([]Value, len(sorted))}
	for i, f := range sorted {
		if f.Name == "" {
			return Tuple{}, fmt.Errorf("tuple field name must not be empty")
		}
		if i > 0 && f.Name == sorted[i-1].Name {
			return Tuple{}, fmt.Errorf("duplicate tuple field %q", f.Name)
		}
		t.names[i] = f.Name
		t.vals[i] = f.Value
	}
	if SerializedSize(t) > MaxValueSize {
		return Tuple{}, fmt.Errorf("%w: tuple", ErrValueTooLarge)
	}
	return t, nil
}

// MustTuple is NewTuple that panics. For fixtures and tests.
func MustTuple(fields ...TupleField) Tuple {
	t, err := NewTuple(fields)
	if err != nil {
		panic(err)
	}
	return t
}

func (Tuple) isValue() {}

// Get returns the named field.
func (t Tuple) Get(name string) (Value, bool) {
	i := sort.SearchStrings(t.names, name)
	if i < len(t.names) && t.names[i] == name {
		return t.vals[i], true
	}
	return nil, false
}

// Fields returns the fields in name order.
func (t Tuple) Fields() []TupleField {
	out := make([]TupleField, len(t.names))
	for i := range t.names {
		out[i] = TupleField{Name: t.names[i], Value: t.vals[i]}
	}
	return out
}

// Merge returns a tuple holding the fields of t overridden by those of o.
func (t Tuple) Merge(o Tuple) Tuple {
	fields := make(map[string]Value, len(t.names)+len(o.names))
	for i, n := range t.names {
		fields[n] = t.vals[i]
	}
	for i, n := range o.names {
		fields[n] = o.vals[i]
	}
	out := make([]TupleField, 0, len(fields))
	for n, v := range fields {
		out = append(out, TupleField{Name: n, Value: v})
	}
	merged, _ := NewTuple(out)
	return merged
}

func (t Tuple) Type() TypeSignature {
	fields := make([]TupleFieldType, len(t.names))
	for i := range t.names {
		fields[i] = TupleFieldType{Name: t.names[i], Type: t.vals[i].Type()}
	}
	return TypeSignature{Kind: KindTuple, Fields: fields}
}

func (t Tuple) String() string {
	parts := make([]string, len(t.names))
	for i := range t.names {
		parts[i] = t.names[i] + ": " + t.vals[i].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Equal reports structural equality of two values.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case Int:
		y, ok := b.(Int)
		return ok && x.n.Eq(&y.n)
	case UInt:
		y, ok := b.(UInt)
		return ok && x.n.Eq(&y.n)
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Principal:
		y, ok := b.(Principal)
		return ok && x == y
	case Buffer:
		y, ok := b.(Buffer)
		return ok && x.data == y.data
	case ASCII:
		y, ok := b.(ASCII)
		return ok && x.s == y.s
	case UTF8:
		y, ok := b.(UTF8)
		return ok && x.s == y.s
	case Optional:
		y, ok := b.(Optional)
		if !ok || x.IsSome() != y.IsSome() {
			return false
		}
		return !x.IsSome() || Equal(x.inner, y.inner)
	case Response:
		y, ok := b.(Response)
		return ok && x.ok == y.ok && Equal(x.inner, y.inner)
	case List:
		y, ok := b.(List)
		if !ok || len(x.elems) != len(y.elems) {
			return false
		}
		for i := range x.elems {
			if !Equal(x.elems[i], y.elems[i]) {
				return false
			}
		}
		return true
	case Tuple:
		y, ok := b.(Tuple)
		if !ok || len(x.names) != len(y.names) {
			return false
		}
		for i := range x.names {
			if x.names[i] != y.names[i] || !Equal(x.vals[i], y.vals[i]) {
				return false
			}
		}
		return true
	}
	return false
}
