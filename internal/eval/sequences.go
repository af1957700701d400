package eval

import (
	"strings"

	"github.com/hirosystems/clarinet-sub000/internal/ast"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

func init() {
	natives["list"] = native{min: 0, max: -1, fn: func(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
		return value.NewList(a)
	}}
	natives["len"] = native{min: 1, max: 1, fn: seqLen}
	natives["append"] = native{min: 2, max: 2, sized: true, fn: appendElem}
	natives["concat"] = native{min: 2, max: 2, sized: true, fn: concat}
	natives["as-max-len?"] = native{min: 2, max: 2, fn: asMaxLen}
	natives["element-at?"] = native{min: 2, max: 2, fn: elementAt}
	natives["element-at"] = native{min: 2, max: 2, fn: elementAt}
	natives["index-of?"] = native{min: 2, max: 2, sized: true, fn: indexOf}
	natives["index-of"] = native{min: 2, max: 2, sized: true, fn: indexOf}
	natives["slice?"] = native{min: 3, max: 3, sized: true, fn: slice}
	specialForms["map"] = mapForm
	specialForms["filter"] = filterForm
	specialForms["fold"] = foldForm
}

// sequence is a list, buffer or string viewed as its elements. Buffer
// and string elements are length-one values of the same kind.
type sequence struct {
	kind  value.Kind
	elems []value.Value
}

func asSequence(v value.Value) (sequence, error) {
	switch s := v.(type) {
	case value.List:
		return sequence{kind: value.KindList, elems: s.Elements()}, nil
	case value.Buffer:
		data := s.Bytes()
		elems := make([]value.Value, len(data))
		for i := range data {
			b, _ := value.NewBuffer(data[i : i+1])
			elems[i] = b
		}
		return sequence{kind: value.KindBuffer, elems: elems}, nil
	case value.ASCII:
		text := s.Text()
		elems := make([]value.Value, len(text))
		for i := range text {
			a, _ := value.NewASCII(text[i : i+1])
			elems[i] = a
		}
		return sequence{kind: value.KindASCII, elems: elems}, nil
	case value.UTF8:
		var elems []value.Value
		for _, r := range s.Text() {
			u, _ := value.NewUTF8(string(r))
			elems = append(elems, u)
		}
		return sequence{kind: value.KindUTF8, elems: elems}, nil
	}
	return sequence{}, typeErrorf("expected a sequence, got %s", v.Type())
}

// build makes a sequence of the same kind from elems.
func (s sequence) build(elems []value.Value) (value.Value, error) {
	if s.kind == value.KindList {
		return value.NewList(elems)
	}
	var sb strings.Builder
	for _, e := range elems {
		switch x := e.(type) {
		case value.Buffer:
			if s.kind == value.KindBuffer {
				sb.Write(x.Bytes())
				continue
			}
		case value.ASCII:
			if s.kind == value.KindASCII {
				sb.WriteString(x.Text())
				continue
			}
		case value.UTF8:
			if s.kind == value.KindUTF8 {
				sb.WriteString(x.Text())
				continue
			}
		}
		return nil, typeErrorf("cannot add %s to a sequence of kind %s", e.Type(), kindName(s.kind))
	}
	switch s.kind {
	case value.KindBuffer:
		return value.NewBuffer([]byte(sb.String()))
	case value.KindASCII:
		return value.NewASCII(sb.String())
	}
	return value.NewUTF8(sb.String())
}

func kindName(k value.Kind) string {
	switch k {
	case value.KindBuffer:
		return "buff"
	case value.KindASCII:
		return "string-ascii"
	case value.KindUTF8:
		return "string-utf8"
	}
	return "list"
}

func asIndex(v value.Value, what string) (uint64, bool, error) {
	u, ok := v.(value.UInt)
	if !ok {
		return 0, false, typeErrorf("%s expects uint, got %s", what, v.Type())
	}
	n, fits := u.Uint64()
	return n, fits, nil
}

func seqLen(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
	s, err := asSequence(a[0])
	if err != nil {
		return nil, err
	}
	return value.NewUInt(uint64(len(s.elems))), nil
}

func appendElem(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
	l, ok := a[0].(value.List)
	if !ok {
		return nil, typeErrorf("append expects a list, got %s", a[0].Type())
	}
	return value.NewList(append(l.Elements(), a[1]))
}

func concat(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
	s1, err := asSequence(a[0])
	if err != nil {
		return nil, err
	}
	s2, err := asSequence(a[1])
	if err != nil {
		return nil, err
	}
	if s1.kind != s2.kind {
		return nil, typeErrorf("concat of %s and %s", a[0].Type(), a[1].Type())
	}
	return s1.build(append(s1.elems, s2.elems...))
}

func asMaxLen(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
	s, err := asSequence(a[0])
	if err != nil {
		return nil, err
	}
	n, fits, err := asIndex(a[1], "as-max-len?")
	if err != nil {
		return nil, err
	}
	if fits && uint64(len(s.elems)) > n {
		return value.None(), nil
	}
	return value.Some(a[0]), nil
}

func elementAt(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
	s, err := asSequence(a[0])
	if err != nil {
		return nil, err
	}
	i, fits, err := asIndex(a[1], "element-at?")
	if err != nil {
		return nil, err
	}
	if !fits || i >= uint64(len(s.elems)) {
		return value.None(), nil
	}
	return value.Some(s.elems[i]), nil
}

func indexOf(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
	s, err := asSequence(a[0])
	if err != nil {
		return nil, err
	}
	for i, e := range s.elems {
		if value.Equal(e, a[1]) {
			return value.Some(value.NewUInt(uint64(i))), nil
		}
	}
	return value.None(), nil
}

func slice(_ *execState, _ *callCtx, a []value.Value) (value.Value, error) {
	s, err := asSequence(a[0])
	if err != nil {
		return nil, err
	}
	left, lfits, err := asIndex(a[1], "slice?")
	if err != nil {
		return nil, err
	}
	right, rfits, err := asIndex(a[2], "slice?")
	if err != nil {
		return nil, err
	}
	if !lfits || !rfits || left > right || right > uint64(len(s.elems)) {
		return value.None(), nil
	}
	v, err := s.build(s.elems[left:right])
	if err != nil {
		return nil, err
	}
	return value.Some(v), nil
}

// applyNamed calls a built-in or a function of the current contract by
// name with evaluated arguments. Used by map, filter and fold.
func (x *execState) applyNamed(cc *callCtx, name string, args []value.Value) (value.Value, error) {
	if err := x.checkEpoch(cc, name); err != nil {
		return nil, err
	}
	if nf, ok := natives[name]; ok {
		if len(args) < nf.min || (nf.max >= 0 && len(args) > nf.max) {
			return nil, arityError(name, nf.min, nf.max, len(args))
		}
		if err := x.charge(name, uint64(len(args))); err != nil {
			return nil, err
		}
		return nf.fn(x, cc, args)
	}
	switch name {
	case "and", "or":
		stop := name == "or"
		for _, a := range args {
			b, err := asBool(a, name)
			if err != nil {
				return nil, err
			}
			if b == stop {
				return value.Bool(stop), nil
			}
		}
		return value.Bool(!stop), nil
	}
	if fn, ok := cc.contract.Functions[name]; ok {
		return x.callFunction(cc, nil, fn, args)
	}
	return nil, faultf(CodeUndefinedFunc, "use of unresolved function %q", name)
}

func functionName(n *ast.Node, form string) (string, error) {
	if n.Kind != ast.KindAtom {
		return "", faultf(CodeInvalidSyntax, "%s expects a function name", form)
	}
	return n.Name, nil
}

// (map func seq...) applies func across the sequences element-wise,
// stopping at the shortest, and returns a list.
func mapForm(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("map", args, 2, -1); err != nil {
		return nil, err
	}
	name, err := functionName(args[0], "map")
	if err != nil {
		return nil, err
	}
	seqs := make([]sequence, 0, len(args)-1)
	shortest := -1
	for _, a := range args[1:] {
		v, err := x.eval(cc, b, a)
		if err != nil {
			return nil, err
		}
		s, err := asSequence(v)
		if err != nil {
			return nil, err
		}
		seqs = append(seqs, s)
		if shortest < 0 || len(s.elems) < shortest {
			shortest = len(s.elems)
		}
	}
	out := make([]value.Value, 0, shortest)
	for i := 0; i < shortest; i++ {
		call := make([]value.Value, len(seqs))
		for j, s := range seqs {
			call[j] = s.elems[i]
		}
		v, err := x.applyNamed(cc, name, call)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return value.NewList(out)
}

// (filter func seq) keeps the elements for which func returns true.
func filterForm(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("filter", args, 2, 2); err != nil {
		return nil, err
	}
	name, err := functionName(args[0], "filter")
	if err != nil {
		return nil, err
	}
	v, err := x.eval(cc, b, args[1])
	if err != nil {
		return nil, err
	}
	s, err := asSequence(v)
	if err != nil {
		return nil, err
	}
	var kept []value.Value
	for _, e := range s.elems {
		r, err := x.applyNamed(cc, name, []value.Value{e})
		if err != nil {
			return nil, err
		}
		keep, err := asBool(r, "filter")
		if err != nil {
			return nil, err
		}
		if keep {
			kept = append(kept, e)
		}
	}
	return s.build(kept)
}

// (fold func seq init) computes (func elem acc) left to right.
func foldForm(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("fold", args, 3, 3); err != nil {
		return nil, err
	}
	name, err := functionName(args[0], "fold")
	if err != nil {
		return nil, err
	}
	v, err := x.eval(cc, b, args[1])
	if err != nil {
		return nil, err
	}
	s, err := asSequence(v)
	if err != nil {
		return nil, err
	}
	acc, err := x.eval(cc, b, args[2])
	if err != nil {
		return nil, err
	}
	for _, e := range s.elems {
		if acc, err = x.applyNamed(cc, name, []value.Value{e, acc}); err != nil {
			return nil, err
		}
	}
	return acc, nil
}
