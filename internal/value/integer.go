package value

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

var (
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrUnderflow      = errors.New("arithmetic underflow")
	ErrDivisionByZero = errors.New("division by zero")
	ErrNegativeInput  = errors.New("negative input")
)

// Integers are held in 256-bit two's complement so that every 128-bit
// operation is exact before the range check.
var (
	one       = uint256.NewInt(1)
	maxInt128 = new(uint256.Int).Sub(new(uint256.Int).Lsh(one, 127), one)
	minInt128 = new(uint256.Int).Neg(new(uint256.Int).Lsh(one, 127))
	maxUInt   = new(uint256.Int).Sub(new(uint256.Int).Lsh(one, 128), one)
	two128    = new(uint256.Int).Lsh(one, 128)
)

// Int is a signed 128-bit integer.
type Int struct {
	n uint256.Int
}

// UInt is an unsigned 128-bit integer.
type UInt struct {
	n uint256.Int
}

// NewInt returns n as an Int.
func NewInt(n int64) Int {
	var x uint256.Int
	if n >= 0 {
		x.SetUint64(uint64(n))
	} else {
		x.SetUint64(uint64(-n))
		x.Neg(&x)
	}
	return Int{n: x}
}

// NewUInt returns n as a UInt.
func NewUInt(n uint64) UInt {
	var x uint256.Int
	x.SetUint64(n)
	return UInt{n: x}
}

// ParseInt parses a base-10 signed integer.
func ParseInt(s string) (Int, error) {
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")
	x, err := uint256.FromDecimal(digits)
	if err != nil {
		return Int{}, fmt.Errorf("parse int %q: %w", s, err)
	}
	if neg {
		x.Neg(x)
	}
	if err := checkInt(x); err != nil {
		return Int{}, fmt.Errorf("parse int %q: %w", s, err)
	}
	return Int{n: *x}, nil
}

// ParseUInt parses a base-10 unsigned integer.
func ParseUInt(s string) (UInt, error) {
	x, err := uint256.FromDecimal(s)
	if err != nil {
		return UInt{}, fmt.Errorf("parse uint %q: %w", s, err)
	}
	if x.Gt(maxUInt) {
		return UInt{}, fmt.Errorf("parse uint %q: %w", s, ErrOverflow)
	}
	return UInt{n: *x}, nil
}

// UIntFromBig converts a non-negative big.Int that fits in 128 bits.
func UIntFromBig(b *big.Int) (UInt, error) {
	if b.Sign() < 0 {
		return UInt{}, ErrNegativeInput
	}
	x, overflow := uint256.FromBig(b)
	if overflow || x.Gt(maxUInt) {
		return UInt{}, ErrOverflow
	}
	return UInt{n: *x}, nil
}

func checkInt(x *uint256.Int) error {
	if x.Sgt(maxInt128) {
		return ErrOverflow
	}
	if x.Slt(minInt128) {
		return ErrUnderflow
	}
	return nil
}

func (Int) isValue() {}
func (UInt) isValue() {}

func (Int) Type() TypeSignature { return IntType }
func (UInt) Type() TypeSignature { return UIntType }

func (i Int) String() string {
	if i.n.Sign() < 0 {
		var abs uint256.Int
		abs.Neg(&i.n)
		return "-" + abs.Dec()
	}
	return i.n.Dec()
}

func (u UInt) String() string { return "u" + u.n.Dec() }

// Decimal returns the base-10 digits without the u prefix.
func (u UInt) Decimal() string { return u.n.Dec() }

// Big returns the value as a big.Int.
func (u UInt) Big() *big.Int { return u.n.ToBig() }

// Uint64 returns the value if it fits in a uint64.
func (u UInt) Uint64() (uint64, bool) {
	if !u.n.IsUint64() {
		return 0, false
	}
	return u.n.Uint64(), true
}

// IsZero reports whether u is zero.
func (u UInt) IsZero() bool { return u.n.IsZero() }

// Sign returns -1, 0 or 1.
func (i Int) Sign() int { return i.n.Sign() }

// Int64 returns the value if it fits in an int64.
func (i Int) Int64() (int64, bool) {
	if i.n.Sign() >= 0 {
		if !i.n.IsUint64() || i.n.Uint64() > 1<<63-1 {
			return 0, false
		}
		return int64(i.n.Uint64()), true
	}
	var abs uint256.Int
	abs.Neg(&i.n)
	if !abs.IsUint64() || abs.Uint64() > 1<<63 {
		return 0, false
	}
	return -int64(abs.Uint64()), true
}

// Cmp compares two UInts.
func (u UInt) Cmp(o UInt) int { return u.n.Cmp(&o.n) }

// ArithOp is a checked binary integer operation.
type ArithOp uint8

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
)

func (op ArithOp) String() string {
	return [...]string{"+", "-", "*", "/", "mod", "pow"}[op]
}

// Arith applies op to two integers of the same kind. It never wraps:
// results outside the 128-bit range return ErrOverflow or ErrUnderflow.
func Arith(op ArithOp, a, b Value) (Value, error) {
	switch x := a.(type) {
	case Int:
		y, ok := b.(Int)
		if !ok {
			return nil, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, a.Type(), op, b.Type())
		}
		return intArith(op, x, y)
	case UInt:
		y, ok := b.(UInt)
		if !ok {
			return nil, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, a.Type(), op, b.Type())
		}
		return uintArith(op, x, y)
	default:
		return nil, fmt.Errorf("%w: %s is not an integer", ErrTypeMismatch, a.Type())
	}
}

func intArith(op ArithOp, a, b Int) (Value, error) {
	var z uint256.Int
	switch op {
	case OpAdd:
		z.Add(&a.n, &b.n)
	case OpSub:
		z.Sub(&a.n, &b.n)
	case OpMul:
		z.Mul(&a.n, &b.n)
	case OpDiv:
		if b.n.IsZero() {
			return nil, ErrDivisionByZero
		}
		z.SDiv(&a.n, &b.n)
	case OpMod:
		if b.n.IsZero() {
			return nil, ErrDivisionByZero
		}
		z.SMod(&a.n, &b.n)
	case OpPow:
		if b.n.Sign() < 0 {
			return nil, fmt.Errorf("pow: %w exponent", ErrNegativeInput)
		}
		return intPow(a, b)
	}
	if err := checkInt(&z); err != nil {
		return nil, err
	}
	return Int{n: z}, nil
}

func intPow(base, exp Int) (Value, error) {
	if base.n.IsZero() || base.n.Eq(one) {
		if exp.n.IsZero() {
			return NewInt(1), nil
		}
		return base, nil
	}
	if !exp.n.IsUint64() || exp.n.Uint64() > 127 {
		var minusOne uint256.Int
		minusOne.Neg(one)
		if base.n.Eq(&minusOne) {
			if exp.n[0]&1 == 0 {
				return NewInt(1), nil
			}
			return base, nil
		}
		if base.n.Sign() < 0 && exp.n[0]&1 == 1 {
			return nil, ErrUnderflow
		}
		return nil, ErrOverflow
	}
	result := NewInt(1)
	for i := uint64(0); i < exp.n.Uint64(); i++ {
		next, err := intArith(OpMul, result, base)
		if err != nil {
			return nil, err
		}
		result = next.(Int)
	}
	return result, nil
}

func uintArith(op ArithOp, a, b UInt) (Value, error) {
	var z uint256.Int
	switch op {
	case OpAdd:
		z.Add(&a.n, &b.n)
	case OpSub:
		if a.n.Lt(&b.n) {
			return nil, ErrUnderflow
		}
		z.Sub(&a.n, &b.n)
	case OpMul:
		z.Mul(&a.n, &b.n)
	case OpDiv:
		if b.n.IsZero() {
			return nil, ErrDivisionByZero
		}
		z.Div(&a.n, &b.n)
	case OpMod:
		if b.n.IsZero() {
			return nil, ErrDivisionByZero
		}
		z.Mod(&a.n, &b.n)
	case OpPow:
		if a.n.IsZero() || a.n.Eq(one) {
			if b.n.IsZero() {
				return NewUInt(1), nil
			}
			return a, nil
		}
		if !b.n.IsUint64() || b.n.Uint64() > 128 {
			return nil, ErrOverflow
		}
		result := NewUInt(1)
		for i := uint64(0); i < b.n.Uint64(); i++ {
			next, err := uintArith(OpMul, result, a)
			if err != nil {
				return nil, err
			}
			result = next.(UInt)
		}
		return result, nil
	}
	if z.Gt(maxUInt) {
		return nil, ErrOverflow
	}
	return UInt{n: z}, nil
}

// Compare orders two integers, two strings of the same kind or two
// buffers. It returns -1, 0 or 1.
func Compare(a, b Value) (int, error) {
	switch x := a.(type) {
	case Int:
		if y, ok := b.(Int); ok {
			switch {
			case x.n.Slt(&y.n):
				return -1, nil
			case x.n.Sgt(&y.n):
				return 1, nil
			}
			return 0, nil
		}
	case UInt:
		if y, ok := b.(UInt); ok {
			return x.n.Cmp(&y.n), nil
		}
	case ASCII:
		if y, ok := b.(ASCII); ok {
			return strings.Compare(x.s, y.s), nil
		}
	case UTF8:
		if y, ok := b.(UTF8); ok {
			return strings.Compare(x.s, y.s), nil
		}
	case Buffer:
		if y, ok := b.(Buffer); ok {
			return strings.Compare(x.data, y.data), nil
		}
	}
	return 0, fmt.Errorf("%w: cannot compare %s with %s", ErrTypeMismatch, a.Type(), b.Type())
}

// Sqrti returns the integer square root.
func Sqrti(v Value) (Value, error) {
	switch x := v.(type) {
	case UInt:
		var z uint256.Int
		z.Sqrt(&x.n)
		return UInt{n: z}, nil
	case Int:
		if x.n.Sign() < 0 {
			return nil, fmt.Errorf("sqrti: %w", ErrNegativeInput)
		}
		var z uint256.Int
		z.Sqrt(&x.n)
		return Int{n: z}, nil
	}
	return nil, fmt.Errorf("%w: sqrti of %s", ErrTypeMismatch, v.Type())
}

// Log2 returns floor(log2(v)) for positive v.
func Log2(v Value) (Value, error) {
	switch x := v.(type) {
	case UInt:
		if x.n.IsZero() {
			return nil, fmt.Errorf("log2 of zero: %w", ErrNegativeInput)
		}
		return NewUInt(uint64(x.n.BitLen() - 1)), nil
	case Int:
		if x.n.Sign() <= 0 {
			return nil, fmt.Errorf("log2: %w", ErrNegativeInput)
		}
		return NewInt(int64(x.n.BitLen() - 1)), nil
	}
	return nil, fmt.Errorf("%w: log2 of %s", ErrTypeMismatch, v.Type())
}

// ToUInt converts a non-negative Int.
func ToUInt(i Int) (UInt, error) {
	if i.n.Sign() < 0 {
		return UInt{}, fmt.Errorf("to-uint: %w", ErrNegativeInput)
	}
	return UInt{n: i.n}, nil
}

// ToInt converts a UInt no larger than the Int maximum.
func ToInt(u UInt) (Int, error) {
	if u.n.Gt(maxInt128) {
		return Int{}, fmt.Errorf("to-int: %w", ErrOverflow)
	}
	return Int{n: u.n}, nil
}

// bytes16 returns the 16-byte big-endian two's complement encoding.
func bytes16(x *uint256.Int) []byte {
	b := x.Bytes32()
	return append([]byte(nil), b[16:]...)
}

func intFromBytes16(b []byte) Int {
	var x uint256.Int
	x.SetBytes(b)
	if b[0]&0x80 != 0 {
		x.Sub(&x, two128)
	}
	return Int{n: x}
}

func uintFromBytes16(b []byte) UInt {
	var x uint256.Int
	x.SetBytes(b)
	return UInt{n: x}
}
