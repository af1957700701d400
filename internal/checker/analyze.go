package checker

import (
	"fmt"
	"slices"

	"github.com/hirosystems/clarinet-sub000/internal/ast"
)

// result is what analyzing one expression yields.
type result struct {
	taint taint
	diags []Diagnostic
	// trusts and trustAll are the guards inside the expression; they
	// apply to the expressions after it in the enclosing body.
	trusts   []string
	trustAll bool
}

func (r *result) merge(o result) {
	r.taint = r.taint.union(o.taint)
	r.diags = append(r.diags, o.diags...)
	r.trusts = append(r.trusts, o.trusts...)
	r.trustAll = r.trustAll || o.trustAll
}

// sinks lists the argument positions of state-changing built-ins that
// must not receive unchecked data.
var sinks = map[string][]int{
	"var-set":            {1},
	"map-set":            {1, 2},
	"map-insert":         {1, 2},
	"map-delete":         {1},
	"ft-mint?":           {1, 2},
	"ft-burn?":           {1, 2},
	"ft-transfer?":       {1, 2, 3},
	"nft-mint?":          {1, 2},
	"nft-burn?":          {1, 2},
	"nft-transfer?":      {1, 2, 3},
	"stx-transfer?":      {0, 1, 2},
	"stx-transfer-memo?": {0, 1, 2, 3},
	"stx-burn?":          {0, 1},
}

// namedFirst are forms whose first argument names a definition or a
// function instead of being an expression.
var namedFirst = map[string]bool{
	"var-get": true, "var-set": true,
	"map-get?": true, "map-set": true, "map-insert": true, "map-delete": true,
	"ft-get-balance": true, "ft-get-supply": true, "ft-mint?": true, "ft-burn?": true, "ft-transfer?": true,
	"nft-get-owner?": true, "nft-mint?": true, "nft-burn?": true, "nft-transfer?": true,
	"get": true, "map": true, "filter": true, "fold": true,
	"get-block-info?": true, "get-stacks-block-info?": true, "get-tenure-info?": true,
}

var guards = map[string]bool{
	"asserts!": true, "unwrap!": true, "unwrap-err!": true, "try!": true,
}

// analyze maps an expression and a context to the expression's taint and
// diagnostics.
func (a *analysis) analyze(n *ast.Node, ctx context) result {
	anns := a.annotations[n.Span.StartLine]
	if len(anns) == 0 || ctx.annotated == n.Span.StartLine {
		return a.analyzeNode(n, ctx)
	}
	ctx.annotated = n.Span.StartLine
	ctx, filtered, all, silence := anns.apply(ctx)
	res := a.analyzeNode(n, ctx)
	res.trusts = append(res.trusts, filtered...)
	res.trustAll = res.trustAll || all
	if silence {
		res.diags = nil
		res.taint = nil
	}
	return res
}

func (a *analysis) analyzeNode(n *ast.Node, ctx context) result {
	switch n.Kind {
	case ast.KindAtom:
		return result{taint: ctx.lookup(n.Name)}
	case ast.KindTuple:
		var res result
		for _, f := range n.Fields {
			res.merge(a.analyze(f.Value, ctx))
		}
		return res
	case ast.KindList:
	default:
		return result{}
	}

	head := n.Head()
	args := n.Args()
	switch {
	case head == "let":
		return a.analyzeLet(args, ctx)
	case head == "begin":
		return a.body(args, ctx)
	case head == "if":
		return a.analyzeIf(args, ctx)
	case head == "match":
		return a.analyzeMatch(args, ctx)
	case guards[head]:
		return a.analyzeGuard(args, ctx)
	case head == "tuple":
		var res result
		for _, pair := range args {
			if pair.IsList() && len(pair.Children) == 2 {
				res.merge(a.analyze(pair.Children[1], ctx))
			}
		}
		return res
	case head == "contract-call?":
		return a.analyzeContractCall(args, ctx)
	}

	if fn, ok := a.functions[head]; ok && fn.kind == definePrivate {
		return a.analyzePrivateCall(fn, args, ctx)
	}

	var res result
	exprs := args
	if namedFirst[head] && len(args) > 0 {
		exprs = args[1:]
	}
	argTaint := make(map[*ast.Node]taint, len(args))
	for _, arg := range exprs {
		r := a.analyze(arg, ctx)
		argTaint[arg] = r.taint
		res.merge(r)
	}
	for _, i := range sinks[head] {
		if i < len(args) {
			res.diags = append(res.diags, a.report(args[i], argTaint[args[i]], "use of potentially unchecked data in "+head)...)
		}
	}
	return res
}

// body analyzes expressions in order; guards in one expression trust
// their symbols in every later one. The value is the last expression's.
func (a *analysis) body(nodes []*ast.Node, ctx context) result {
	var res result
	for _, n := range nodes {
		r := a.analyze(n, ctx)
		ctx = ctx.after(r)
		res.diags = append(res.diags, r.diags...)
		res.trusts = append(res.trusts, r.trusts...)
		res.trustAll = res.trustAll || r.trustAll
		res.taint = r.taint
	}
	return res
}

func (a *analysis) analyzeLet(args []*ast.Node, ctx context) result {
	if len(args) == 0 {
		return result{}
	}
	var (
		res   result
		bound []string
	)
	inner := ctx
	for _, pair := range args[0].Children {
		if !pair.IsList() || len(pair.Children) != 2 || pair.Children[0].Kind != ast.KindAtom {
			continue
		}
		r := a.analyze(pair.Children[1], inner)
		res.diags = append(res.diags, r.diags...)
		res.trusts = append(res.trusts, withoutNames(r.trusts, bound)...)
		res.trustAll = res.trustAll || r.trustAll
		name := pair.Children[0].Name
		inner = inner.after(r).bind(name, r.taint)
		bound = append(bound, name)
	}
	b := a.body(args[1:], inner)
	res.diags = append(res.diags, b.diags...)
	// Guards over the let's own bindings do not reach the enclosing body.
	res.trusts = append(res.trusts, withoutNames(b.trusts, bound)...)
	res.trustAll = res.trustAll || b.trustAll
	res.taint = b.taint
	return res
}

func withoutNames(names, drop []string) []string {
	if len(drop) == 0 {
		return names
	}
	var out []string
	for _, n := range names {
		if !slices.Contains(drop, n) {
			out = append(out, n)
		}
	}
	return out
}

// analyzeIf trusts the symbols of the condition in the then-branch only.
func (a *analysis) analyzeIf(args []*ast.Node, ctx context) result {
	if len(args) != 3 {
		return a.all(args, ctx)
	}
	cond := a.analyze(args[0], ctx)
	ctx = ctx.after(cond)
	then := a.analyze(args[1], ctx.checked(mentioned(args[0])))
	els := a.analyze(args[2], ctx)

	res := result{diags: cond.diags, trusts: cond.trusts, trustAll: cond.trustAll}
	res.taint = then.taint.union(els.taint)
	res.diags = append(res.diags, then.diags...)
	res.diags = append(res.diags, els.diags...)
	return res
}

// analyzeMatch trusts the matched symbols in the some/ok branch. The
// err branch binding carries the taint of the matched value.
func (a *analysis) analyzeMatch(args []*ast.Node, ctx context) result {
	if len(args) != 4 && len(args) != 5 {
		return a.all(args, ctx)
	}
	target := a.analyze(args[0], ctx)
	ctx = ctx.after(target)
	okCtx := ctx.checked(mentioned(args[0]))
	if args[1].Kind == ast.KindAtom {
		okCtx = okCtx.bind(args[1].Name, nil)
	}
	okBranch := a.analyze(args[2], okCtx)

	var other result
	if len(args) == 4 {
		other = a.analyze(args[3], ctx)
	} else {
		errCtx := ctx
		if args[3].Kind == ast.KindAtom {
			errCtx = errCtx.bind(args[3].Name, target.taint)
		}
		other = a.analyze(args[4], errCtx)
	}

	res := result{diags: target.diags, trusts: target.trusts, trustAll: target.trustAll}
	res.taint = okBranch.taint.union(other.taint)
	res.diags = append(res.diags, okBranch.diags...)
	res.diags = append(res.diags, other.diags...)
	return res
}

// analyzeGuard handles asserts!, unwrap!, unwrap-err! and try!. The
// guarded value is trusted from here on.
func (a *analysis) analyzeGuard(args []*ast.Node, ctx context) result {
	res := a.all(args, ctx)
	res.taint = nil
	if len(args) > 0 {
		names := mentioned(args[0])
		res.trusts = append(res.trusts, names...)
		if ctx.trustsEverything(names) {
			res.trustAll = true
		}
	}
	return res
}

// analyzeContractCall flags dynamic calls through an unchecked trait
// reference. Static calls are checked in the callee.
func (a *analysis) analyzeContractCall(args []*ast.Node, ctx context) result {
	if len(args) < 2 {
		return a.all(args, ctx)
	}
	res := a.all(args[2:], ctx)
	if target := args[0]; target.Kind == ast.KindAtom {
		res.diags = append(res.diags, a.report(target, ctx.lookup(target.Name), "use of potentially unchecked trait in contract-call?")...)
	}
	return res
}

// analyzePrivateCall treats every argument as a sink unless the callee
// accepts unchecked parameters or, with the callee filter, guards that
// parameter itself.
func (a *analysis) analyzePrivateCall(fn *function, args []*ast.Node, ctx context) result {
	var res result
	for i, arg := range args {
		r := a.analyze(arg, ctx)
		res.merge(r)
		if fn.uncheckedParams {
			continue
		}
		if a.cfg.CalleeFilter && i < len(fn.filters) && fn.filters[i] {
			continue
		}
		res.diags = append(res.diags, a.report(arg, r.taint, fmt.Sprintf("use of potentially unchecked data passed to private function %s", fn.name))...)
	}
	return res
}

// all analyzes independent sub-expressions.
func (a *analysis) all(nodes []*ast.Node, ctx context) result {
	var res result
	for _, n := range nodes {
		res.merge(a.analyze(n, ctx))
	}
	return res
}

// report builds one warning per untrusted source reaching at.
func (a *analysis) report(at *ast.Node, t taint, message string) []Diagnostic {
	out := make([]Diagnostic, 0, len(t))
	for _, s := range t {
		out = append(out, Diagnostic{
			Level:   LevelWarning,
			Code:    CodeUncheckedData,
			Message: message,
			Span:    at.Span,
			Related: []Related{{
				Message: "source of untrusted input here: " + s.name,
				Span:    s.decl,
			}},
		})
	}
	return out
}
