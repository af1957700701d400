package eval

import (
	"crypto/sha256"
	"crypto/sha512"
	"slices"

	"golang.org/x/crypto/sha3"

	"github.com/hirosystems/clarinet-sub000/internal/ast"
	"github.com/hirosystems/clarinet-sub000/internal/cost"
	"github.com/hirosystems/clarinet-sub000/internal/store"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

func init() {
	natives["+"] = native{min: 1, max: -1, fn: arith(value.OpAdd)}
	natives["-"] = native{min: 1, max: -1, fn: arith(value.OpSub)}
	natives["*"] = native{min: 1, max: -1, fn: arith(value.OpMul)}
	natives["/"] = native{min: 1, max: -1, fn: arith(value.OpDiv)}
	natives["mod"] = native{min: 2, max: 2, fn: arith(value.OpMod)}
	natives["pow"] = native{min: 2, max: 2, fn: arith(value.OpPow)}
	natives["sqrti"] = native{min: 1, max: 1, fn: func(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
		return value.Sqrti(a[0])
	}}
	natives["log2"] = native{min: 1, max: 1, fn: func(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
		return value.Log2(a[0])
	}}
	natives["<"] = native{min: 2, max: 2, fn: compare(func(c int) bool { return c < 0 })}
	natives[">"] = native{min: 2, max: 2, fn: compare(func(c int) bool { return c > 0 })}
	natives["<="] = native{min: 2, max: 2, fn: compare(func(c int) bool { return c <= 0 })}
	natives[">="] = native{min: 2, max: 2, fn: compare(func(c int) bool { return c >= 0 })}
	natives["is-eq"] = native{min: 1, max: -1, sized: true, fn: isEq}
	natives["not"] = native{min: 1, max: 1, fn: notBool}
	natives["to-int"] = native{min: 1, max: 1, fn: toInt}
	natives["to-uint"] = native{min: 1, max: 1, fn: toUInt}

	natives["sha256"] = native{min: 1, max: 1, sized: true, fn: hashWith(func(b []byte) []byte {
		sum := sha256.Sum256(b)
		return sum[:]
	})}
	natives["sha512"] = native{min: 1, max: 1, sized: true, fn: hashWith(func(b []byte) []byte {
		sum := sha512.Sum512(b)
		return sum[:]
	})}
	natives["sha512/256"] = native{min: 1, max: 1, sized: true, fn: hashWith(func(b []byte) []byte {
		sum := sha512.Sum512_256(b)
		return sum[:]
	})}
	natives["hash160"] = native{min: 1, max: 1, sized: true, fn: hashWith(func(b []byte) []byte {
		sum := value.Hash160(b)
		return sum[:]
	})}
	natives["keccak256"] = native{min: 1, max: 1, sized: true, fn: hashWith(func(b []byte) []byte {
		h := sha3.NewLegacyKeccak256()
		h.Write(b)
		return h.Sum(nil)
	})}

	natives["print"] = native{min: 1, max: 1, sized: true, fn: printValue}
	natives["is-standard"] = native{min: 1, max: 1, fn: isStandard}
	natives["merge"] = native{min: 2, max: 2, fn: merge}
	specialForms["tuple"] = tupleForm
	specialForms["get"] = getForm
}

func arith(op value.ArithOp) func(*execState, *callCtx, []value.Value) (value.Value, error) {
	return func(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
		if op == value.OpSub && len(a) == 1 {
			switch a[0].(type) {
			case value.Int:
				return value.Arith(op, value.NewInt(0), a[0])
			case value.UInt:
				return value.Arith(op, value.NewUInt(0), a[0])
			}
			return nil, typeErrorf("- expects an integer, got %s", a[0].Type())
		}
		switch a[0].(type) {
		case value.Int, value.UInt:
		default:
			return nil, typeErrorf("%s expects integers, got %s", op, a[0].Type())
		}
		acc := a[0]
		for _, v := range a[1:] {
			var err error
			if acc, err = value.Arith(op, acc, v); err != nil {
				return nil, err
			}
		}
		return acc, nil
	}
}

func compare(pred func(int) bool) func(*execState, *callCtx, []value.Value) (value.Value, error) {
	return func(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
		c, err := value.Compare(a[0], a[1])
		if err != nil {
			return nil, err
		}
		return value.Bool(pred(c)), nil
	}
}

func isEq(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
	t := a[0].Type()
	for _, v := range a[1:] {
		var err error
		if t, err = value.LeastSupertype(t, v.Type()); err != nil {
			return nil, err
		}
	}
	for _, v := range a[1:] {
		if !value.Equal(a[0], v) {
			return value.Bool(false), nil
		}
	}
	return value.Bool(true), nil
}

func notBool(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
	b, err := asBool(a[0], "not")
	if err != nil {
		return nil, err
	}
	return value.Bool(!b), nil
}

func toInt(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
	u, ok := a[0].(value.UInt)
	if !ok {
		return nil, typeErrorf("to-int expects uint, got %s", a[0].Type())
	}
	return value.ToInt(u)
}

func toUInt(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
	i, ok := a[0].(value.Int)
	if !ok {
		return nil, typeErrorf("to-uint expects int, got %s", a[0].Type())
	}
	return value.ToUInt(i)
}

// hashInput returns the bytes a hash function consumes: buffers as is,
// integers as 16 little-endian bytes.
func hashInput(v value.Value) ([]byte, error) {
	switch x := v.(type) {
	case value.Buffer:
		return x.Bytes(), nil
	case value.Int, value.UInt:
		b := value.Serialize(x)[1:]
		slices.Reverse(b)
		return b, nil
	}
	return nil, typeErrorf("hash input must be a buffer or an integer, got %s", v.Type())
}

func hashWith(sum func([]byte) []byte) func(*execState, *callCtx, []value.Value) (value.Value, error) {
	return func(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
		in, err := hashInput(a[0])
		if err != nil {
			return nil, err
		}
		return value.NewBuffer(sum(in))
	}
}

func printValue(x *execState, cc *callCtx, a []value.Value) (value.Value, error) {
	x.emit(Event{Type: PrintEvent, Contract: cc.contract.ID.ID(), Value: a[0]})
	return a[0], nil
}

func isStandard(x *execState, _ *callCtx, a []value.Value) (value.Value, error) {
	p, ok := a[0].(value.Principal)
	if !ok {
		return nil, typeErrorf("is-standard expects a principal, got %s", a[0].Type())
	}
	switch p.Version() {
	case value.VersionMainnetSingleSig, value.VersionMainnetMultiSig:
		return value.Bool(x.env.Mainnet), nil
	case value.VersionTestnetSingleSig, value.VersionTestnetMultiSig:
		return value.Bool(!x.env.Mainnet), nil
	}
	return value.Bool(false), nil
}

func merge(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
	t1, ok1 := a[0].(value.Tuple)
	t2, ok2 := a[1].(value.Tuple)
	if !ok1 || !ok2 {
		return nil, typeErrorf("merge expects two tuples, got %s and %s", a[0].Type(), a[1].Type())
	}
	return t1.Merge(t2), nil
}

// (tuple (name expr) ...)
func tupleForm(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("tuple", args, 1, -1); err != nil {
		return nil, err
	}
	if err := x.charge(cost.OpTupleConstruct, uint64(len(args))); err != nil {
		return nil, err
	}
	fields := make([]value.TupleField, 0, len(args))
	for _, pair := range args {
		if !pair.IsList() || len(pair.Children) != 2 || pair.Children[0].Kind != ast.KindAtom {
			return nil, faultf(CodeInvalidSyntax, "tuple field must be (name expr)")
		}
		v, err := x.eval(cc, b, pair.Children[1])
		if err != nil {
			return nil, err
		}
		fields = append(fields, value.TupleField{Name: pair.Children[0].Name, Value: v})
	}
	return value.NewTuple(fields)
}

// (get name tuple) also accepts an optional tuple and returns an
// optional.
func getForm(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("get", args, 2, 2); err != nil {
		return nil, err
	}
	if args[0].Kind != ast.KindAtom {
		return nil, faultf(CodeInvalidSyntax, "get expects a field name")
	}
	v, err := x.eval(cc, b, args[1])
	if err != nil {
		return nil, err
	}
	field := args[0].Name
	switch t := v.(type) {
	case value.Tuple:
		f, ok := t.Get(field)
		if !ok {
			return nil, typeErrorf("tuple has no field %q", field)
		}
		return f, nil
	case value.Optional:
		if !t.IsSome() {
			return value.None(), nil
		}
		inner, ok := t.Inner().(value.Tuple)
		if !ok {
			break
		}
		f, ok := inner.Get(field)
		if !ok {
			return nil, typeErrorf("tuple has no field %q", field)
		}
		return value.Some(f), nil
	}
	return nil, typeErrorf("get expects a tuple, got %s", v.Type())
}

// keyword resolves the built-in names. ok is false for any other name.
func (x *execState) keyword(cc *callCtx, name string) (value.Value, bool, error) {
	switch name {
	case "tx-sender", "contract-caller", "block-height", "burn-block-height",
		"stacks-block-height", "tenure-height", "chain-id", "is-in-mainnet",
		"is-in-regtest", "stx-liquid-supply":
	default:
		return nil, false, nil
	}
	if err := x.checkEpoch(cc, name); err != nil {
		return nil, true, err
	}
	switch name {
	case "tx-sender":
		return cc.sender, true, nil
	case "contract-caller":
		return cc.caller, true, nil
	case "block-height":
		if x.env.Epoch.AtLeast(Epoch30) {
			return value.NewUInt(x.env.TenureHeight), true, nil
		}
		return value.NewUInt(x.env.BlockHeight), true, nil
	case "burn-block-height":
		return value.NewUInt(x.env.BurnHeight), true, nil
	case "stacks-block-height":
		return value.NewUInt(x.env.BlockHeight), true, nil
	case "tenure-height":
		return value.NewUInt(x.env.TenureHeight), true, nil
	case "chain-id":
		return value.NewUInt(uint64(x.env.ChainID)), true, nil
	case "is-in-mainnet":
		return value.Bool(x.env.Mainnet), true, nil
	case "is-in-regtest":
		return value.Bool(false), true, nil
	default:
		supply, err := x.readUInt(store.KeySTXLiquidSupply)
		return supply, true, err
	}
}
