package eval

import (
	"github.com/hirosystems/clarinet-sub000/internal/ast"
	"github.com/hirosystems/clarinet-sub000/internal/cost"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// targetKind distinguishes a statically named callee from one passed in
// through a trait-typed parameter.
type targetKind uint8

const (
	targetDirect targetKind = iota
	targetTrait
)

type callTarget struct {
	kind     targetKind
	contract value.Principal
	trait    TraitRef // set for targetTrait
}

func init() {
	specialForms["contract-call?"] = contractCall
	specialForms["as-contract"] = asContract
	natives["contract-of"] = native{min: 1, max: 1, fn: contractOf}
}

// (contract-call? target function args...)
func contractCall(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("contract-call?", args, 2, -1); err != nil {
		return nil, err
	}
	if args[1].Kind != ast.KindAtom {
		return nil, faultf(CodeInvalidSyntax, "contract-call? expects a function name")
	}
	target, err := x.resolveTarget(cc, b, args[0])
	if err != nil {
		return nil, err
	}
	vals, err := x.evalAll(cc, b, args[2:])
	if err != nil {
		return nil, err
	}
	if err := x.charge(cost.OpContractCall, uint64(len(vals))); err != nil {
		return nil, err
	}
	return x.dispatch(cc, n, target, args[1].Name, vals)
}

func (x *execState) resolveTarget(cc *callCtx, b *bindings, n *ast.Node) (callTarget, error) {
	switch n.Kind {
	case ast.KindContractRef:
		p, err := value.ContractPrincipal(cc.contract.ID.Issuer(), n.Name)
		if err != nil {
			return callTarget{}, faultf(CodeInvalidPrincipal, "%v", err)
		}
		return callTarget{kind: targetDirect, contract: p}, nil
	case ast.KindLiteral:
		if p, ok := n.Value.(value.Principal); ok && p.IsContract() {
			return callTarget{kind: targetDirect, contract: p}, nil
		}
	case ast.KindAtom:
		e, ok := b.lookup(n.Name)
		if !ok || e.trait == nil {
			return callTarget{}, faultf(CodeTraitMismatch, "%s is not a trait reference", n.Name)
		}
		p, ok := e.val.(value.Principal)
		if !ok || !p.IsContract() {
			return callTarget{}, faultf(CodeTraitMismatch, "%s does not hold a contract principal", n.Name)
		}
		return callTarget{kind: targetTrait, contract: p, trait: *e.trait}, nil
	}
	return callTarget{}, faultf(CodeInvalidSyntax, "contract-call? expects a contract, found %s", n.Kind)
}

// dispatch runs a public or read-only function of another contract in a
// nested frame. For trait calls the callee must conform to the trait
// and its result must match the trait's declared output.
func (x *execState) dispatch(cc *callCtx, site *ast.Node, target callTarget, function string, args []value.Value) (value.Value, error) {
	callee, err := x.loadContract(target.contract)
	if err != nil {
		return nil, err
	}
	fn, ok := callee.Functions[function]
	if !ok || fn.Access == AccessPrivate {
		return nil, faultf(CodeNoSuchFunction, "%s has no public function %q", callee.ID.ID(), function)
	}
	if fn.Access == AccessPublic && cc.readOnly {
		return nil, faultf(CodeWriteInReadOnly, "public function %s.%s called from a read-only context", callee.ID.ID(), function)
	}

	var returns *value.TypeSignature
	if target.kind == targetTrait {
		owner, tr, err := x.loadTrait(cc.contract, target.trait)
		if err != nil {
			return nil, err
		}
		tf, ok := tr.Function(function)
		if !ok {
			return nil, faultf(CodeTraitMismatch, "trait %s has no function %q", target.trait, function)
		}
		if err := conforms(callee, owner, target.trait, tr); err != nil {
			return nil, err
		}
		r := owner.qualify(tf.Returns)
		returns = &r
	}

	inner := &callCtx{
		contract: callee,
		sender:   cc.sender,
		caller:   cc.contract.ID,
		readOnly: cc.readOnly,
	}
	v, err := x.nested(func() (value.Value, error) {
		return x.callFunction(inner, site, fn, args)
	})
	if err != nil {
		return nil, err
	}
	if returns != nil {
		ok, err := x.typeCheck(cost.OpInnerTypeCheck, *returns, v)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, faultf(CodeTraitMismatch, "%s.%s returned %s, trait %s declares %s",
				callee.ID.ID(), function, v.Type(), target.trait, returns)
		}
	}
	return v, nil
}

// loadTrait finds a trait definition and the contract that declares it.
func (x *execState) loadTrait(from *Contract, ref TraitRef) (*Contract, *Trait, error) {
	owner := from
	if ref.Contract != from.ID {
		var err error
		if owner, err = x.loadContract(ref.Contract); err != nil {
			return nil, nil, err
		}
	}
	tr, ok := owner.Traits[ref.Name]
	if !ok {
		return nil, nil, faultf(CodeTraitMismatch, "trait %s is not defined", ref)
	}
	return owner, tr, nil
}

// conforms checks that impl publishes every function of tr with the
// declared argument types. Trait types are compared by global identity.
func conforms(impl, owner *Contract, ref TraitRef, tr *Trait) error {
	for _, tf := range tr.Functions {
		fn, ok := impl.Functions[tf.Name]
		if !ok || fn.Access == AccessPrivate {
			return faultf(CodeTraitMismatch, "%s does not implement %s: missing %s", impl.ID.ID(), ref, tf.Name)
		}
		if len(fn.Params) != len(tf.Args) {
			return faultf(CodeTraitMismatch, "%s does not implement %s: %s takes %d arguments, trait declares %d",
				impl.ID.ID(), ref, tf.Name, len(fn.Params), len(tf.Args))
		}
		for i, want := range tf.Args {
			got := impl.qualify(fn.Params[i].Type)
			if !owner.qualify(want).Equal(got) {
				return faultf(CodeTraitMismatch, "%s does not implement %s: argument %d of %s is %s, trait declares %s",
					impl.ID.ID(), ref, i+1, tf.Name, fn.Params[i].Type, want)
			}
		}
	}
	return nil
}

// (as-contract expr) evaluates expr with the contract as tx-sender and
// contract-caller. The outer principals are untouched.
func asContract(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("as-contract", args, 1, 1); err != nil {
		return nil, err
	}
	inner := *cc
	inner.sender = cc.contract.ID
	inner.caller = cc.contract.ID
	return x.eval(&inner, b, args[0])
}

// (contract-of trait-param)
func contractOf(x *execState, cc *callCtx, args []value.Value) (value.Value, error) {
	p, ok := args[0].(value.Principal)
	if !ok || !p.IsContract() {
		return nil, typeErrorf("contract-of expects a contract, got %s", args[0].Type())
	}
	return p, nil
}
