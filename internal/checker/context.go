package checker

import (
	"slices"

	"github.com/hirosystems/clarinet-sub000/internal/ast"
)

// source is the parameter an untrusted value comes from.
type source struct {
	name  string
	decl  ast.Span
	param *binding
}

// taint is the set of sources a value depends on, ordered by declaration.
type taint []source

func (t taint) union(o taint) taint {
	if len(o) == 0 {
		return t
	}
	if len(t) == 0 {
		return o
	}
	out := make(taint, 0, len(t)+len(o))
	out = append(out, t...)
	for _, s := range o {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(x, y source) int {
		switch {
		case x.decl.Less(y.decl):
			return -1
		case y.decl.Less(x.decl):
			return 1
		}
		return 0
	})
	return out
}

// binding and trust are persistent lists: extending a context never
// changes the context it was derived from.
type binding struct {
	name string
	t    taint
	next *binding
}

// trust records a guard over one binding. A later binding of the same
// name is a different binding and starts out untrusted.
type trust struct {
	b    *binding
	next *trust
}

// context is the immutable state passed down the walk.
type context struct {
	cfg      Config
	vars     *binding
	trusted  *trust
	trustAll bool
	// annotated is the line whose annotations are already applied, so a
	// nested expression starting on the same line does not apply them
	// again.
	annotated int
}

func newContext(cfg Config) context {
	return context{cfg: cfg}
}

// withParams binds each parameter as its own taint source.
func (c context) withParams(params []param) context {
	for _, p := range params {
		b := &binding{name: p.name, next: c.vars}
		b.t = taint{{name: p.name, decl: p.decl, param: b}}
		c.vars = b
	}
	return c
}

func (c context) bind(name string, t taint) context {
	c.vars = &binding{name: name, t: t, next: c.vars}
	return c
}

func (c context) resolve(name string) *binding {
	for b := c.vars; b != nil; b = b.next {
		if b.name == name {
			return b
		}
	}
	return nil
}

// trust marks the current bindings of names as checked. Names without a
// binding carry no taint and need no trust.
func (c context) trust(names []string) context {
	for _, n := range names {
		if b := c.resolve(n); b != nil {
			c.trusted = &trust{b: b, next: c.trusted}
		}
	}
	return c
}

func (c context) isTrusted(b *binding) bool {
	for t := c.trusted; t != nil; t = t.next {
		if t.b == b {
			return true
		}
	}
	return false
}

// effective drops the sources that have been checked.
func (c context) effective(t taint) taint {
	if c.trustAll || len(t) == 0 {
		return nil
	}
	var out taint
	for _, s := range t {
		if !c.isTrusted(s.param) {
			out = append(out, s)
		}
	}
	return out
}

func (c context) lookup(name string) taint {
	if c.trustAll {
		return nil
	}
	b := c.resolve(name)
	if b == nil || c.isTrusted(b) {
		return nil
	}
	return c.effective(b.t)
}

// checked returns c after a guard over the given names. In the trusted
// sender and caller modes, a guard naming tx-sender or contract-caller
// trusts everything.
func (c context) checked(names []string) context {
	c = c.trust(names)
	if c.trustsEverything(names) {
		c.trustAll = true
	}
	return c
}

func (c context) trustsEverything(names []string) bool {
	return (c.cfg.TrustedSender && slices.Contains(names, "tx-sender")) ||
		(c.cfg.TrustedCaller && slices.Contains(names, "contract-caller"))
}

// after applies the guards found in an expression to the expressions
// that follow it.
func (c context) after(r result) context {
	c = c.trust(r.trusts)
	if r.trustAll {
		c.trustAll = true
	}
	return c
}
