package eval

import (
	"context"
	"fmt"

	"github.com/hirosystems/clarinet-sub000/internal/ast"
	"github.com/hirosystems/clarinet-sub000/internal/cost"
	"github.com/hirosystems/clarinet-sub000/internal/store"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// frame pairs a write overlay with the events emitted into it, so a
// rolled back call drops both together.
type frame struct {
	overlay *store.Overlay
	events  []Event
}

// execState is the mutable state of one top-level call.
type execState struct {
	e       *Evaluator
	ctx     context.Context
	tracker *cost.Tracker
	env     Environment
	frame   *frame
	depth   int
}

// callCtx is the immutable context of a function body: the contract
// whose code runs and the principals it runs as.
type callCtx struct {
	contract *Contract
	sender   value.Principal
	caller   value.Principal
	readOnly bool
}

// bindings is a persistent list of local names. Extending it never
// affects the bindings an outer expression sees.
type bindings struct {
	name  string
	val   value.Value
	trait *TraitRef // set for parameters of trait type
	next  *bindings
}

func (b *bindings) bind(name string, v value.Value, trait *TraitRef) *bindings {
	return &bindings{name: name, val: v, trait: trait, next: b}
}

func (b *bindings) lookup(name string) (*bindings, bool) {
	for e := b; e != nil; e = e.next {
		if e.name == name {
			return e, true
		}
	}
	return nil, false
}

type specialForm func(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error)

// native is a built-in whose arguments are evaluated before it runs.
// max < 0 means variadic. sized natives are charged by the serialized
// size of their arguments rather than by their count.
type native struct {
	min, max int
	sized    bool
	fn       func(x *execState, cc *callCtx, args []value.Value) (value.Value, error)
}

// Populated by init functions of the files that implement them.
// sizedForms are special forms that charge themselves once the size of
// the data they read or write is known.
var (
	specialForms = map[string]specialForm{}
	sizedForms   = map[string]bool{}
	natives      = map[string]native{}
)

// introducedIn and removedIn gate built-ins and keywords by the epoch of
// the contract that uses them.
var introducedIn = map[string]Epoch{
	"slice?":                 Epoch21,
	"index-of?":              Epoch21,
	"element-at?":            Epoch21,
	"stx-account":            Epoch21,
	"stx-transfer-memo?":     Epoch21,
	"is-standard":            Epoch21,
	"chain-id":               Epoch21,
	"is-in-mainnet":          Epoch21,
	"get-stacks-block-info?": Epoch30,
	"get-tenure-info?":       Epoch30,
	"stacks-block-height":    Epoch30,
	"tenure-height":          Epoch30,
}

var removedIn = map[string]Epoch{
	"get-block-info?": Epoch30,
}

func (x *execState) checkEpoch(cc *callCtx, name string) error {
	epoch := cc.contract.Epoch
	if from, ok := introducedIn[name]; ok && !epoch.AtLeast(from) {
		return faultf(CodeEpoch, "%s is not available before epoch %s", name, from)
	}
	if until, ok := removedIn[name]; ok && epoch.AtLeast(until) {
		return faultf(CodeEpoch, "%s is not available from epoch %s", name, until)
	}
	return nil
}

func (x *execState) charge(op string, n uint64) error {
	return x.tracker.Charge(op, n)
}

// chargeSized charges op by the total serialized size of vals.
func (x *execState) chargeSized(op string, vals ...value.Value) error {
	var n uint64
	for _, v := range vals {
		n += uint64(value.SerializedSize(v))
	}
	return x.charge(op, n)
}

// typeCheck charges op by the size of v and reports whether want admits
// it.
func (x *execState) typeCheck(op string, want value.TypeSignature, v value.Value) (bool, error) {
	if err := x.chargeSized(op, v); err != nil {
		return false, err
	}
	return want.Admits(v.Type()), nil
}

func (x *execState) emit(ev Event) {
	x.frame.events = append(x.frame.events, ev)
}

// eval evaluates one expression.
func (x *execState) eval(cc *callCtx, b *bindings, n *ast.Node) (value.Value, error) {
	v, err := x.evalNode(cc, b, n)
	if err != nil {
		return nil, x.locate(cc, n, err)
	}
	return v, nil
}

// locate turns err into a Fault that points at n, unless a deeper
// expression already claimed it. Early returns pass through untouched.
func (x *execState) locate(cc *callCtx, n *ast.Node, err error) error {
	if _, ok := err.(*earlyReturn); ok {
		return err
	}
	f := asFault(err)
	if f.Span == (ast.Span{}) {
		f.Span = n.Span
		if f.Contract == "" && cc != nil && cc.contract != nil {
			f.Contract = cc.contract.ID.ID()
		}
	}
	return f
}

func (x *execState) evalNode(cc *callCtx, b *bindings, n *ast.Node) (value.Value, error) {
	switch n.Kind {
	case ast.KindLiteral:
		if n.Trait != "" {
			return nil, faultf(CodeInvalidSyntax, "trait identifier %s.%s used as a value", n.Value, n.Trait)
		}
		if err := x.charge(cost.OpLiteral, 1); err != nil {
			return nil, err
		}
		return n.Value, nil
	case ast.KindContractRef:
		if n.Trait != "" {
			return nil, faultf(CodeInvalidSyntax, "trait identifier .%s.%s used as a value", n.Name, n.Trait)
		}
		return value.ContractPrincipal(cc.contract.ID.Issuer(), n.Name)
	case ast.KindTraitRef:
		return nil, faultf(CodeInvalidSyntax, "trait reference <%s> used as a value", n.Name)
	case ast.KindTuple:
		if err := x.charge(cost.OpTupleConstruct, uint64(len(n.Fields))); err != nil {
			return nil, err
		}
		fields := make([]value.TupleField, 0, len(n.Fields))
		for _, f := range n.Fields {
			v, err := x.eval(cc, b, f.Value)
			if err != nil {
				return nil, err
			}
			fields = append(fields, value.TupleField{Name: f.Key, Value: v})
		}
		return value.NewTuple(fields)
	case ast.KindAtom:
		return x.lookup(cc, b, n.Name)
	case ast.KindList:
		if len(n.Children) == 0 {
			return nil, faultf(CodeInvalidSyntax, "empty expression")
		}
		if n.Children[0].Kind != ast.KindAtom {
			return nil, faultf(CodeInvalidSyntax, "expected a function name, found %s", n.Children[0].Kind)
		}
		return x.apply(cc, b, n)
	}
	return nil, faultf(CodeInvalidSyntax, "unexpected %s", n.Kind)
}

// lookup resolves a name: local bindings, then keywords, then the
// contract's constants.
func (x *execState) lookup(cc *callCtx, b *bindings, name string) (value.Value, error) {
	if err := x.charge(cost.OpLookupVariable, 1); err != nil {
		return nil, err
	}
	if e, ok := b.lookup(name); ok {
		return e.val, nil
	}
	if v, ok, err := x.keyword(cc, name); ok || err != nil {
		return v, err
	}
	if cc.contract.IsConstant(name) {
		v, ok, err := x.read(store.ConstantKey(cc.contract.ID.ID(), name))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, faultf(CodeUndefinedName, "constant %s is used before its definition", name)
		}
		return v, nil
	}
	return nil, faultf(CodeUndefinedName, "use of unresolved name %q", name)
}

// apply evaluates a list expression: special form, built-in, or a
// function of the current contract.
func (x *execState) apply(cc *callCtx, b *bindings, n *ast.Node) (value.Value, error) {
	head := n.Children[0].Name
	args := n.Children[1:]
	if err := x.checkEpoch(cc, head); err != nil {
		return nil, err
	}

	if sf, ok := specialForms[head]; ok {
		if !sizedForms[head] {
			if err := x.charge(head, uint64(len(args))); err != nil {
				return nil, err
			}
		}
		return sf(x, cc, b, n, args)
	}

	if nf, ok := natives[head]; ok {
		if len(args) < nf.min || (nf.max >= 0 && len(args) > nf.max) {
			return nil, arityError(head, nf.min, nf.max, len(args))
		}
		vals, err := x.evalAll(cc, b, args)
		if err != nil {
			return nil, err
		}
		if nf.sized {
			err = x.chargeSized(head, vals...)
		} else {
			err = x.charge(head, uint64(len(vals)))
		}
		if err != nil {
			return nil, err
		}
		return nf.fn(x, cc, vals)
	}

	if fn, ok := cc.contract.Functions[head]; ok {
		vals, err := x.evalAll(cc, b, args)
		if err != nil {
			return nil, err
		}
		return x.callFunction(cc, n, fn, vals)
	}
	return nil, faultf(CodeUndefinedFunc, "use of unresolved function %q", head)
}

func arityError(name string, min, max, got int) *Fault {
	switch {
	case max < 0:
		return faultf(CodeArity, "%s expects at least %d arguments, got %d", name, min, got)
	case min == max:
		return faultf(CodeArity, "%s expects %d arguments, got %d", name, min, got)
	}
	return faultf(CodeArity, "%s expects %d to %d arguments, got %d", name, min, max, got)
}

func expectArity(name string, args []*ast.Node, min, max int) error {
	if len(args) < min || (max >= 0 && len(args) > max) {
		return arityError(name, min, max, len(args))
	}
	return nil
}

func (x *execState) evalAll(cc *callCtx, b *bindings, nodes []*ast.Node) ([]value.Value, error) {
	vals := make([]value.Value, len(nodes))
	for i, a := range nodes {
		v, err := x.eval(cc, b, a)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// evalBody evaluates expressions in order and returns the last value.
func (x *execState) evalBody(cc *callCtx, b *bindings, body []*ast.Node) (value.Value, error) {
	var v value.Value
	for _, n := range body {
		var err error
		if v, err = x.eval(cc, b, n); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// callFunction applies a user function of cc.contract to evaluated
// arguments. It runs with cc's principals; cc.readOnly is kept and a
// read-only function always runs read-only.
func (x *execState) callFunction(cc *callCtx, site *ast.Node, fn *Function, args []value.Value) (value.Value, error) {
	if err := x.ctx.Err(); err != nil {
		return nil, err
	}
	if len(args) != len(fn.Params) {
		return nil, faultf(CodeArity, "%s expects %d arguments, got %d", fn.Name, len(fn.Params), len(args))
	}
	if err := x.charge(cost.OpUserFunction, uint64(len(args))); err != nil {
		return nil, err
	}
	if x.depth >= x.e.maxDepth {
		return nil, &Fault{
			Kind:    ResourceExceeded,
			Code:    CodeStackDepth,
			Message: fmt.Sprintf("call depth exceeds %d", x.e.maxDepth),
		}
	}

	var b *bindings
	for i, p := range fn.Params {
		ok, err := x.typeCheck(cost.OpInnerTypeCheck, p.Type, args[i])
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, typeErrorf("argument %s of %s expects %s, got %s", p.Name, fn.Name, p.Type, args[i].Type())
		}
		if err := x.charge(cost.OpBindName, 1); err != nil {
			return nil, err
		}
		var trait *TraitRef
		if p.Type.Kind == value.KindTrait {
			ref, ok := cc.contract.ResolveTrait(p.Type.Trait)
			if !ok {
				return nil, faultf(CodeTraitMismatch, "unknown trait %s", p.Type.Trait)
			}
			trait = &ref
		}
		b = b.bind(p.Name, args[i], trait)
	}

	inner := *cc
	inner.readOnly = cc.readOnly || fn.Access == AccessReadOnly

	x.depth++
	defer func() { x.depth-- }()

	v, err := x.evalBody(&inner, b, fn.Body)
	if er, ok := err.(*earlyReturn); ok {
		return er.value, nil
	}
	return v, err
}

// read fetches and decodes a stored value through the current frame.
func (x *execState) read(key string) (value.Value, bool, error) {
	raw, ok, err := x.frame.overlay.Get(x.ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	v, err := value.Deserialize(raw)
	if err != nil {
		return nil, false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return v, true, nil
}

// write stores v at key in the current frame. Writes are refused in a
// read-only context.
func (x *execState) write(cc *callCtx, key string, v value.Value) error {
	if cc.readOnly {
		return faultf(CodeWriteInReadOnly, "write to %s in a read-only context", key)
	}
	return x.frame.overlay.Put(key, value.Serialize(v))
}

func (x *execState) remove(cc *callCtx, key string) error {
	if cc.readOnly {
		return faultf(CodeWriteInReadOnly, "delete of %s in a read-only context", key)
	}
	return x.frame.overlay.Delete(key)
}

// readUInt reads a balance or supply counter; absent means zero.
func (x *execState) readUInt(key string) (value.UInt, error) {
	v, ok, err := x.read(key)
	if err != nil {
		return value.UInt{}, err
	}
	if !ok {
		return value.NewUInt(0), nil
	}
	u, isUInt := v.(value.UInt)
	if !isUInt {
		return value.UInt{}, fmt.Errorf("%s holds %s, want uint", key, v.Type())
	}
	return u, nil
}

// nested runs fn in a child frame. The child's writes and events merge
// into the current frame unless fn fails or returns (err ...).
func (x *execState) nested(fn func() (value.Value, error)) (value.Value, error) {
	parent := x.frame
	child := &frame{overlay: parent.overlay.Nest()}
	x.frame = child
	v, err := fn()
	x.frame = parent

	if err != nil {
		child.overlay.Discard()
		return nil, err
	}
	if r, ok := v.(value.Response); ok && !r.IsOk() {
		child.overlay.Discard()
		return v, nil
	}
	if err := child.overlay.Commit(); err != nil {
		return nil, err
	}
	parent.events = append(parent.events, child.events...)
	return v, nil
}

// initialize evaluates the deploy-time forms of a freshly analyzed
// contract and checks its trait declarations.
func (x *execState) initialize(c *Contract) error {
	cc := &callCtx{contract: c, sender: x.env.Sender, caller: x.env.Sender}
	id := c.ID.ID()
	for _, n := range c.deploy {
		args := n.Args()
		var err error
		switch n.Head() {
		case "define-constant":
			var v value.Value
			if v, err = x.eval(cc, nil, args[1]); err == nil {
				err = x.write(cc, store.ConstantKey(id, args[0].Name), v)
			}
		case "define-data-var":
			dv := c.Vars[args[0].Name]
			var v value.Value
			var admitted bool
			if v, err = x.eval(cc, nil, dv.Init); err == nil {
				admitted, err = x.typeCheck(cost.OpTypeCheck, dv.Type, v)
			}
			if err == nil {
				if !admitted {
					err = x.locate(cc, dv.Init, typeErrorf("data-var %s expects %s, got %s", dv.Name, dv.Type, v.Type()))
				} else {
					err = x.write(cc, store.DataVarKey(id, dv.Name), v)
				}
			}
		case "define-fungible-token":
			ft := c.FTs[args[0].Name]
			var v value.Value
			if v, err = x.eval(cc, nil, ft.Supply); err == nil {
				if _, ok := v.(value.UInt); !ok {
					err = x.locate(cc, ft.Supply, typeErrorf("token supply must be uint, got %s", v.Type()))
				} else {
					err = x.write(cc, store.FTCapKey(id, ft.Name), v)
				}
			}
		default:
			_, err = x.eval(cc, nil, n)
			if _, ok := err.(*earlyReturn); ok {
				err = nil
			}
		}
		if err != nil {
			return err
		}
	}

	for _, ref := range c.UsedTraits {
		if _, _, err := x.loadTrait(c, ref); err != nil {
			return err
		}
	}
	for _, ref := range c.Implements {
		owner, tr, err := x.loadTrait(c, ref)
		if err != nil {
			return err
		}
		if err := conforms(c, owner, ref, tr); err != nil {
			return err
		}
	}
	return nil
}
