package cost

import (
	"fmt"
	"math"
	"math/bits"
)

// Dimension names one axis of execution cost.
type Dimension string

const (
	Runtime     Dimension = "runtime"
	ReadCount   Dimension = "read_count"
	ReadLength  Dimension = "read_length"
	WriteCount  Dimension = "write_count"
	WriteLength Dimension = "write_length"
)

// Dimensions lists every dimension in reporting order.
var Dimensions = []Dimension{Runtime, ReadCount, ReadLength, WriteCount, WriteLength}

// ExecutionCost is a vector of non-negative counters, one per dimension.
type ExecutionCost struct {
	Runtime     uint64 `json:"runtime"`
	ReadCount   uint64 `json:"read_count"`
	ReadLength  uint64 `json:"read_length"`
	WriteCount  uint64 `json:"write_count"`
	WriteLength uint64 `json:"write_length"`
}

// Get returns the counter for d.
func (c ExecutionCost) Get(d Dimension) uint64 {
	switch d {
	case Runtime:
		return c.Runtime
	case ReadCount:
		return c.ReadCount
	case ReadLength:
		return c.ReadLength
	case WriteCount:
		return c.WriteCount
	case WriteLength:
		return c.WriteLength
	}
	return 0
}

// Add returns c+o, saturating at the maximum uint64.
func (c ExecutionCost) Add(o ExecutionCost) ExecutionCost {
	return ExecutionCost{
		Runtime:     saturatingAdd(c.Runtime, o.Runtime),
		ReadCount:   saturatingAdd(c.ReadCount, o.ReadCount),
		ReadLength:  saturatingAdd(c.ReadLength, o.ReadLength),
		WriteCount:  saturatingAdd(c.WriteCount, o.WriteCount),
		WriteLength: saturatingAdd(c.WriteLength, o.WriteLength),
	}
}

// Exceeds returns the first dimension in which c is above limit.
func (c ExecutionCost) Exceeds(limit ExecutionCost) (Dimension, bool) {
	for _, d := range Dimensions {
		if c.Get(d) > limit.Get(d) {
			return d, true
		}
	}
	return "", false
}

// LessOrEqual reports whether every counter of c is at most the matching
// counter of o.
func (c ExecutionCost) LessOrEqual(o ExecutionCost) bool {
	_, exceeded := c.Exceeds(o)
	return !exceeded
}

// IsZero reports whether every counter is zero.
func (c ExecutionCost) IsZero() bool { return c == ExecutionCost{} }

func (c ExecutionCost) String() string {
	return fmt.Sprintf("runtime=%d read_count=%d read_length=%d write_count=%d write_length=%d",
		c.Runtime, c.ReadCount, c.ReadLength, c.WriteCount, c.WriteLength)
}

// Unlimited is a limit that can never be exceeded.
var Unlimited = ExecutionCost{
	Runtime:     math.MaxUint64,
	ReadCount:   math.MaxUint64,
	ReadLength:  math.MaxUint64,
	WriteCount:  math.MaxUint64,
	WriteLength: math.MaxUint64,
}

// FunctionKind is the shape of a cost function.
type FunctionKind string

const (
	Constant FunctionKind = "constant"
	Linear   FunctionKind = "linear"
	LogN     FunctionKind = "logn"
	NLogN    FunctionKind = "nlogn"
)

// Function maps an input size n to a cost. Coefficients are unsigned so
// every function is monotonically non-decreasing in n.
//
//	constant: a
//	linear:   a*n + b
//	logn:     a*log2(n) + b
//	nlogn:    a*n*log2(n) + b
type Function struct {
	Kind FunctionKind `json:"kind"`
	A    uint64       `json:"a"`
	B    uint64       `json:"b"`
}

// ConstantCost returns a constant function.
func ConstantCost(a uint64) Function { return Function{Kind: Constant, A: a} }

// LinearCost returns a*n + b.
func LinearCost(a, b uint64) Function { return Function{Kind: Linear, A: a, B: b} }

// LogNCost returns a*log2(n) + b.
func LogNCost(a, b uint64) Function { return Function{Kind: LogN, A: a, B: b} }

// NLogNCost returns a*n*log2(n) + b.
func NLogNCost(a, b uint64) Function { return Function{Kind: NLogN, A: a, B: b} }

// Eval computes the cost for input size n.
func (f Function) Eval(n uint64) uint64 {
	switch f.Kind {
	case Constant:
		return f.A
	case Linear:
		return saturatingAdd(saturatingMul(f.A, n), f.B)
	case LogN:
		return saturatingAdd(saturatingMul(f.A, log2(n)), f.B)
	case NLogN:
		return saturatingAdd(saturatingMul(saturatingMul(f.A, n), log2(n)), f.B)
	}
	return 0
}

// Validate rejects unknown kinds.
func (f Function) Validate() error {
	switch f.Kind {
	case Constant, Linear, LogN, NLogN:
		return nil
	case "":
		if f.A == 0 && f.B == 0 {
			return nil
		}
	}
	return fmt.Errorf("unknown cost function kind %q", f.Kind)
}

func log2(n uint64) uint64 {
	if n <= 1 {
		return 0
	}
	return uint64(bits.Len64(n) - 1)
}

func saturatingAdd(a, b uint64) uint64 {
	s, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return s
}

func saturatingMul(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}
