package eval

import (
	"github.com/hirosystems/clarinet-sub000/internal/ast"
	"github.com/hirosystems/clarinet-sub000/internal/cost"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

func init() {
	specialForms["if"] = ifForm
	specialForms["let"] = letForm
	specialForms["begin"] = beginForm
	specialForms["match"] = matchForm
	specialForms["asserts!"] = assertsForm
	specialForms["unwrap!"] = unwrapForm
	specialForms["unwrap-err!"] = unwrapErrForm
	specialForms["try!"] = tryForm
	specialForms["and"] = andForm
	specialForms["or"] = orForm

	natives["some"] = native{min: 1, max: 1, fn: func(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
		return value.Some(a[0]), nil
	}}
	natives["ok"] = native{min: 1, max: 1, fn: func(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
		return value.Ok(a[0]), nil
	}}
	natives["err"] = native{min: 1, max: 1, fn: func(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
		return value.Err(a[0]), nil
	}}
	natives["is-some"] = native{min: 1, max: 1, fn: isSome(true)}
	natives["is-none"] = native{min: 1, max: 1, fn: isSome(false)}
	natives["is-ok"] = native{min: 1, max: 1, fn: isOk(true)}
	natives["is-err"] = native{min: 1, max: 1, fn: isOk(false)}
	natives["default-to"] = native{min: 2, max: 2, fn: defaultTo}
	natives["unwrap-panic"] = native{min: 1, max: 1, fn: unwrapPanic}
	natives["unwrap-err-panic"] = native{min: 1, max: 1, fn: unwrapErrPanic}
}

func asBool(v value.Value, what string) (bool, error) {
	b, ok := v.(value.Bool)
	if !ok {
		return false, typeErrorf("%s expects bool, got %s", what, v.Type())
	}
	return bool(b), nil
}

// (if cond then else)
func ifForm(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("if", args, 3, 3); err != nil {
		return nil, err
	}
	c, err := x.eval(cc, b, args[0])
	if err != nil {
		return nil, err
	}
	ok, err := asBool(c, "if")
	if err != nil {
		return nil, err
	}
	if ok {
		return x.eval(cc, b, args[1])
	}
	return x.eval(cc, b, args[2])
}

// (let ((name expr) ...) body...) binds sequentially: each binding sees
// the ones before it.
func letForm(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("let", args, 2, -1); err != nil {
		return nil, err
	}
	if !args[0].IsList() {
		return nil, faultf(CodeInvalidSyntax, "let expects a list of bindings")
	}
	inner := b
	for _, pair := range args[0].Children {
		if !pair.IsList() || len(pair.Children) != 2 || pair.Children[0].Kind != ast.KindAtom {
			return nil, faultf(CodeInvalidSyntax, "let binding must be (name expr)")
		}
		v, err := x.eval(cc, inner, pair.Children[1])
		if err != nil {
			return nil, err
		}
		if err := x.charge(cost.OpBindName, 1); err != nil {
			return nil, err
		}
		var trait *TraitRef
		if pair.Children[1].Kind == ast.KindAtom {
			if e, ok := inner.lookup(pair.Children[1].Name); ok {
				trait = e.trait
			}
		}
		inner = inner.bind(pair.Children[0].Name, v, trait)
	}
	return x.evalBody(cc, inner, args[1:])
}

func beginForm(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("begin", args, 1, -1); err != nil {
		return nil, err
	}
	return x.evalBody(cc, b, args)
}

// (match opt some-name some-branch none-branch)
// (match resp ok-name ok-branch err-name err-branch)
func matchForm(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("match", args, 4, 5); err != nil {
		return nil, err
	}
	v, err := x.eval(cc, b, args[0])
	if err != nil {
		return nil, err
	}
	name := func(i int) (string, error) {
		if args[i].Kind != ast.KindAtom {
			return "", faultf(CodeInvalidSyntax, "match expects a binding name")
		}
		return args[i].Name, nil
	}
	switch m := v.(type) {
	case value.Optional:
		if len(args) != 4 {
			return nil, faultf(CodeArity, "match on an optional expects 4 arguments, got %d", len(args))
		}
		if !m.IsSome() {
			return x.eval(cc, b, args[3])
		}
		someName, err := name(1)
		if err != nil {
			return nil, err
		}
		return x.eval(cc, b.bind(someName, m.Inner(), nil), args[2])
	case value.Response:
		if len(args) != 5 {
			return nil, faultf(CodeArity, "match on a response expects 5 arguments, got %d", len(args))
		}
		okName, err := name(1)
		if err != nil {
			return nil, err
		}
		errName, err := name(3)
		if err != nil {
			return nil, err
		}
		if m.IsOk() {
			return x.eval(cc, b.bind(okName, m.Inner(), nil), args[2])
		}
		return x.eval(cc, b.bind(errName, m.Inner(), nil), args[4])
	}
	return nil, typeErrorf("match expects an optional or a response, got %s", v.Type())
}

// (asserts! cond thrown) returns true or exits the function with thrown.
func assertsForm(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("asserts!", args, 2, 2); err != nil {
		return nil, err
	}
	c, err := x.eval(cc, b, args[0])
	if err != nil {
		return nil, err
	}
	ok, err := asBool(c, "asserts!")
	if err != nil {
		return nil, err
	}
	if ok {
		return value.Bool(true), nil
	}
	thrown, err := x.eval(cc, b, args[1])
	if err != nil {
		return nil, err
	}
	return nil, &earlyReturn{value: thrown}
}

// (unwrap! opt-or-resp thrown)
func unwrapForm(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("unwrap!", args, 2, 2); err != nil {
		return nil, err
	}
	v, err := x.eval(cc, b, args[0])
	if err != nil {
		return nil, err
	}
	inner, ok, err := unwrapValue(v)
	if err != nil {
		return nil, err
	}
	if ok {
		return inner, nil
	}
	thrown, err := x.eval(cc, b, args[1])
	if err != nil {
		return nil, err
	}
	return nil, &earlyReturn{value: thrown}
}

// (unwrap-err! resp thrown)
func unwrapErrForm(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("unwrap-err!", args, 2, 2); err != nil {
		return nil, err
	}
	v, err := x.eval(cc, b, args[0])
	if err != nil {
		return nil, err
	}
	r, ok := v.(value.Response)
	if !ok {
		return nil, typeErrorf("unwrap-err! expects a response, got %s", v.Type())
	}
	if !r.IsOk() {
		return r.Inner(), nil
	}
	thrown, err := x.eval(cc, b, args[1])
	if err != nil {
		return nil, err
	}
	return nil, &earlyReturn{value: thrown}
}

// (try! opt-or-resp) unwraps or exits with none / the err response.
func tryForm(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("try!", args, 1, 1); err != nil {
		return nil, err
	}
	v, err := x.eval(cc, b, args[0])
	if err != nil {
		return nil, err
	}
	inner, ok, err := unwrapValue(v)
	if err != nil {
		return nil, err
	}
	if ok {
		return inner, nil
	}
	return nil, &earlyReturn{value: v}
}

func andForm(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	return shortCircuit(x, cc, b, "and", args, false)
}

func orForm(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	return shortCircuit(x, cc, b, "or", args, true)
}

// shortCircuit stops at the first argument equal to stop.
func shortCircuit(x *execState, cc *callCtx, b *bindings, name string, args []*ast.Node, stop bool) (value.Value, error) {
	if err := expectArity(name, args, 1, -1); err != nil {
		return nil, err
	}
	for _, a := range args {
		v, err := x.eval(cc, b, a)
		if err != nil {
			return nil, err
		}
		ok, err := asBool(v, name)
		if err != nil {
			return nil, err
		}
		if ok == stop {
			return value.Bool(stop), nil
		}
	}
	return value.Bool(!stop), nil
}

// unwrapValue returns the inner value of (some v) or (ok v); ok is false
// for none and (err e).
func unwrapValue(v value.Value) (value.Value, bool, error) {
	switch m := v.(type) {
	case value.Optional:
		return m.Inner(), m.IsSome(), nil
	case value.Response:
		return m.Inner(), m.IsOk(), nil
	}
	return nil, false, typeErrorf("expected an optional or a response, got %s", v.Type())
}

func isSome(want bool) func(*execState, *callCtx, []value.Value) (value.Value, error) {
	return func(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
		o, ok := a[0].(value.Optional)
		if !ok {
			return nil, typeErrorf("expected an optional, got %s", a[0].Type())
		}
		return value.Bool(o.IsSome() == want), nil
	}
}

func isOk(want bool) func(*execState, *callCtx, []value.Value) (value.Value, error) {
	return func(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
		r, ok := a[0].(value.Response)
		if !ok {
			return nil, typeErrorf("expected a response, got %s", a[0].Type())
		}
		return value.Bool(r.IsOk() == want), nil
	}
}

func defaultTo(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
	o, ok := a[1].(value.Optional)
	if !ok {
		return nil, typeErrorf("default-to expects an optional, got %s", a[1].Type())
	}
	if o.IsSome() {
		return o.Inner(), nil
	}
	return a[0], nil
}

func unwrapPanic(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
	inner, ok, err := unwrapValue(a[0])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, faultf(CodeUnwrapFailure, "unwrap-panic on %s", a[0])
	}
	return inner, nil
}

func unwrapErrPanic(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
	r, ok := a[0].(value.Response)
	if !ok {
		return nil, typeErrorf("unwrap-err-panic expects a response, got %s", a[0].Type())
	}
	if r.IsOk() {
		return nil, faultf(CodeUnwrapFailure, "unwrap-err-panic on %s", a[0])
	}
	return r.Inner(), nil
}
