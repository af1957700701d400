package value

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// Type prefixes of the consensus serialization.
const (
	prefixInt         byte = 0x00
	prefixUInt        byte = 0x01
	prefixBuffer      byte = 0x02
	prefixTrue        byte = 0x03
	prefixFalse       byte = 0x04
	prefixStandard    byte = 0x05
	prefixContract    byte = 0x06
	prefixOk          byte = 0x07
	prefixErr         byte = 0x08
	prefixNone        byte = 0x09
	prefixSome        byte = 0x0a
	prefixList        byte = 0x0b
	prefixTuple       byte = 0x0c
	prefixStringASCII byte = 0x0d
	prefixStringUTF8  byte = 0x0e
)

const maxNestingDepth = 32

// Serialize encodes v in the consensus binary format.
func Serialize(v Value) []byte {
	return appendValue(make([]byte, 0, SerializedSize(v)), v)
}

func appendValue(buf []byte, v Value) []byte {
	switch x := v.(type) {
	case Int:
		buf = append(buf, prefixInt)
		return append(buf, bytes16(&x.n)...)
	case UInt:
		buf = append(buf, prefixUInt)
		return append(buf, bytes16(&x.n)...)
	case Bool:
		if x {
			return append(buf, prefixTrue)
		}
		return append(buf, prefixFalse)
	case Buffer:
		buf = append(buf, prefixBuffer)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(x.data)))
		return append(buf, x.data...)
	case ASCII:
		buf = append(buf, prefixStringASCII)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(x.s)))
		return append(buf, x.s...)
	case UTF8:
		buf = append(buf, prefixStringUTF8)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(x.s)))
		return append(buf, x.s...)
	case Principal:
		if x.name == "" {
			buf = append(buf, prefixStandard, x.version)
			return append(buf, x.hash[:]...)
		}
		buf = append(buf, prefixContract, x.version)
		buf = append(buf, x.hash[:]...)
		buf = append(buf, byte(len(x.name)))
		return append(buf, x.name...)
	case Optional:
		if x.inner == nil {
			return append(buf, prefixNone)
		}
		return appendValue(append(buf, prefixSome), x.inner)
	case Response:
		if x.ok {
			return appendValue(append(buf, prefixOk), x.inner)
		}
		return appendValue(append(buf, prefixErr), x.inner)
	case List:
		buf = append(buf, prefixList)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(x.elems)))
		for _, e := range x.elems {
			buf = appendValue(buf, e)
		}
		return buf
	case Tuple:
		buf = append(buf, prefixTuple)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(x.names)))
		for i, n := range x.names {
			buf = append(buf, byte(len(n)))
			buf = append(buf, n...)
			buf = appendValue(buf, x.vals[i])
		}
		return buf
	}
	panic(fmt.Sprintf("serialize: unexpected value %T", v))
}

// SerializedSize returns len(Serialize(v)) without encoding.
func SerializedSize(v Value) int {
	switch x := v.(type) {
	case Int, UInt:
		return 17
	case Bool:
		return 1
	case Buffer:
		return 5 + len(x.data)
	case ASCII:
		return 5 + len(x.s)
	case UTF8:
		return 5 + len(x.s)
	case Principal:
		if x.name == "" {
			return 22
		}
		return 23 + len(x.name)
	case Optional:
		if x.inner == nil {
			return 1
		}
		return 1 + SerializedSize(x.inner)
	case Response:
		return 1 + SerializedSize(x.inner)
	case List:
		n := 5
		for _, e := range x.elems {
			n += SerializedSize(e)
		}
		return n
	case Tuple:
		n := 5
		for i, name := range x.names {
			n += 1 + len(name) + SerializedSize(x.vals[i])
		}
		return n
	}
	return 0
}

// Deserialize decodes a value produced by Serialize. Trailing bytes are
// rejected.
func Deserialize(b []byte) (Value, error) {
	d := decoder{buf: b}
	v, err := d.value(0)
	if err != nil {
		return nil, err
	}
	if d.pos != len(b) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidEncoding, len(b)-d.pos)
	}
	return v, nil
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.buf) {
		return nil, fmt.Errorf("%w: unexpected end of input at %d", ErrInvalidEncoding, d.pos)
	}
	out := d.buf[d.pos : d.pos+n]
	d.pos += n
	return out, nil
}

func (d *decoder) u32() (int, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	n := binary.BigEndian.Uint32(b)
	if n > MaxValueSize {
		return 0, fmt.Errorf("%w: length %d", ErrValueTooLarge, n)
	}
	return int(n), nil
}

func (d *decoder) value(depth int) (Value, error) {
	if depth > maxNestingDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrInvalidEncoding, maxNestingDepth)
	}
	p, err := d.take(1)
	if err != nil {
		return nil, err
	}
	switch p[0] {
	case prefixInt:
		b, err := d.take(16)
		if err != nil {
			return nil, err
		}
		return intFromBytes16(b), nil
	case prefixUInt:
		b, err := d.take(16)
		if err != nil {
			return nil, err
		}
		return uintFromBytes16(b), nil
	case prefixTrue:
		return Bool(true), nil
	case prefixFalse:
		return Bool(false), nil
	case prefixBuffer, prefixStringASCII, prefixStringUTF8:
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		b, err := d.take(n)
		if err != nil {
			return nil, err
		}
		switch p[0] {
		case prefixBuffer:
			return NewBuffer(b)
		case prefixStringASCII:
			return NewASCII(string(b))
		default:
			if !utf8.Valid(b) {
				return nil, fmt.Errorf("%w: invalid utf-8", ErrInvalidEncoding)
			}
			return NewUTF8(string(b))
		}
	case prefixStandard, prefixContract:
		b, err := d.take(21)
		if err != nil {
			return nil, err
		}
		var hash [20]byte
		copy(hash[:], b[1:])
		std := StandardPrincipal(b[0], hash)
		if p[0] == prefixStandard {
			return std, nil
		}
		l, err := d.take(1)
		if err != nil {
			return nil, err
		}
		name, err := d.take(int(l[0]))
		if err != nil {
			return nil, err
		}
		return ContractPrincipal(std, string(name))
	case prefixOk, prefixErr, prefixSome:
		inner, err := d.value(depth + 1)
		if err != nil {
			return nil, err
		}
		switch p[0] {
		case prefixOk:
			return Ok(inner), nil
		case prefixErr:
			return Err(inner), nil
		default:
			return Some(inner), nil
		}
	case prefixNone:
		return None(), nil
	case prefixList:
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		elems := make([]Value, 0, min(n, 1024))
		for i := 0; i < n; i++ {
			e, err := d.value(depth + 1)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		return NewList(elems)
	case prefixTuple:
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		fields := make([]TupleField, 0, min(n, 256))
		for i := 0; i < n; i++ {
			l, err := d.take(1)
			if err != nil {
				return nil, err
			}
			name, err := d.take(int(l[0]))
			if err != nil {
				return nil, err
			}
			v, err := d.value(depth + 1)
			if err != nil {
				return nil, err
			}
			fields = append(fields, TupleField{Name: string(name), Value: v})
		}
		return NewTuple(fields)
	}
	return nil, fmt.Errorf("%w: unknown type prefix 0x%02x", ErrInvalidEncoding, p[0])
}
