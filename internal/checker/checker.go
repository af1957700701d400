package checker

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hirosystems/clarinet-sub000/internal/ast"
)

// Diagnostic codes.
const (
	CodeUncheckedData     = "W100" // tainted value reaches a state-changing operation
	CodeUnknownAnnotation = "N100" // annotation not recognized
)

// Level is the severity of a diagnostic. Analysis diagnostics are never
// fatal.
type Level string

const (
	LevelWarning Level = "warning"
	LevelNote    Level = "note"
)

// Related points at a second location that explains a diagnostic.
type Related struct {
	Message string   `json:"message"`
	Span    ast.Span `json:"span"`
}

// Diagnostic is one finding of the check-checker.
type Diagnostic struct {
	Level   Level     `json:"level"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Span    ast.Span  `json:"span"`
	Related []Related `json:"related,omitempty"`
}

func (d Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s [%s] %s", d.Span, d.Level, d.Code, d.Message)
	for _, r := range d.Related {
		fmt.Fprintf(&b, "\n  %s: note: %s", r.Span, r.Message)
	}
	return b.String()
}

// Config selects the relaxations of the analysis.
type Config struct {
	// Strict turns every relaxation below off.
	Strict bool `json:"strict" toml:"strict"`
	// TrustedSender: a guard mentioning tx-sender trusts everything after
	// it in the same body.
	TrustedSender bool `json:"trusted_sender" toml:"trusted_sender"`
	// TrustedCaller: the same for contract-caller.
	TrustedCaller bool `json:"trusted_caller" toml:"trusted_caller"`
	// CalleeFilter: a private function that guards its own parameter
	// counts as the caller having checked that argument.
	CalleeFilter bool `json:"callee_filter" toml:"callee_filter"`
}

func (c Config) effective() Config {
	if c.Strict {
		return Config{Strict: true}
	}
	return c
}

// Check analyzes a contract. It reads nothing but the AST and returns the
// diagnostics ordered by location.
func Check(c *ast.Contract, cfg Config) []Diagnostic {
	a := newAnalysis(c, cfg.effective())
	a.run()
	return a.sorted()
}

// Function kinds the analysis distinguishes.
const (
	definePublic   = "define-public"
	definePrivate  = "define-private"
	defineReadOnly = "define-read-only"
)

// param is a declared function parameter.
type param struct {
	name string
	decl ast.Span
}

// function is the signature of a defined function plus its analysis
// summary.
type function struct {
	kind   string
	name   string
	params []param
	body   *ast.Node
	// uncheckedParams: callers may pass tainted arguments.
	uncheckedParams bool
	// filters[i]: the body guards parameter i.
	filters []bool
}

// analysis is one run of Check. Its only mutable state is the collected
// diagnostics and the per-contract tables built before the walk.
type analysis struct {
	cfg         Config
	contract    *ast.Contract
	functions   map[string]*function
	order       []*function
	annotations map[int]annotations // by line of the annotated expression
	diags       []Diagnostic
}

func newAnalysis(c *ast.Contract, cfg Config) *analysis {
	a := &analysis{
		cfg:       cfg,
		contract:  c,
		functions: map[string]*function{},
	}
	a.annotations = a.collectAnnotations()
	for _, n := range c.Expressions {
		fn, ok := a.signature(n)
		if !ok {
			continue
		}
		a.functions[fn.name] = fn
		a.order = append(a.order, fn)
	}
	for _, fn := range a.order {
		fn.filters = guardedParams(fn)
	}
	return a
}

// signature reads (define-xxx (name (p type)...) body).
func (a *analysis) signature(n *ast.Node) (*function, bool) {
	kind := n.Head()
	switch kind {
	case definePublic, definePrivate, defineReadOnly:
	default:
		return nil, false
	}
	args := n.Args()
	if len(args) < 2 || !args[0].IsList() || len(args[0].Children) == 0 || args[0].Children[0].Kind != ast.KindAtom {
		return nil, false
	}
	sig := args[0].Children
	fn := &function{kind: kind, name: sig[0].Name, body: args[len(args)-1]}
	for _, p := range sig[1:] {
		if !p.IsList() || len(p.Children) != 2 || p.Children[0].Kind != ast.KindAtom {
			continue
		}
		fn.params = append(fn.params, param{name: p.Children[0].Name, decl: p.Span})
	}
	for _, ann := range a.annotations[n.Span.StartLine] {
		if ann.kind == annAllowUncheckedParams {
			fn.uncheckedParams = true
		}
	}
	return fn, true
}

// guardedParams reports which parameters the body of fn guards anywhere.
func guardedParams(fn *function) []bool {
	out := make([]bool, len(fn.params))
	ast.Walk(fn.body, func(n *ast.Node) bool {
		cond := guardCondition(n)
		if cond == nil {
			return true
		}
		names := mentioned(cond)
		for i, p := range fn.params {
			if slices.Contains(names, p.name) {
				out[i] = true
			}
		}
		return true
	})
	return out
}

// guardCondition returns the checked expression of a guard form: the
// condition of asserts! and if, the unwrapped value of unwrap!, unwrap-err!
// and try!, the matched value of match.
func guardCondition(n *ast.Node) *ast.Node {
	args := n.Args()
	if len(args) == 0 {
		return nil
	}
	switch n.Head() {
	case "asserts!", "unwrap!", "unwrap-err!", "try!", "if", "match":
		return args[0]
	}
	return nil
}

// mentioned collects the atoms used in n, sorted and without duplicates.
func mentioned(n *ast.Node) []string {
	var out []string
	ast.Walk(n, func(x *ast.Node) bool {
		if x.Kind == ast.KindAtom {
			out = append(out, x.Name)
		}
		return true
	})
	slices.Sort(out)
	return slices.Compact(out)
}

func (a *analysis) run() {
	for _, fn := range a.order {
		ctx := newContext(a.cfg)
		switch fn.kind {
		case definePublic:
			ctx = ctx.withParams(fn.params)
		case definePrivate:
			// Unannotated private functions rely on their callers;
			// annotated ones accept anything and are checked here.
			if fn.uncheckedParams {
				ctx = ctx.withParams(fn.params)
			}
		default:
			continue
		}
		res := a.analyze(fn.body, ctx)
		a.diags = append(a.diags, res.diags...)
	}
}

func (a *analysis) sorted() []Diagnostic {
	slices.SortStableFunc(a.diags, func(x, y Diagnostic) int {
		switch {
		case x.Span.Less(y.Span):
			return -1
		case y.Span.Less(x.Span):
			return 1
		}
		return strings.Compare(relatedKey(x), relatedKey(y))
	})
	return slices.CompactFunc(a.diags, func(x, y Diagnostic) bool {
		return x.Span == y.Span && x.Code == y.Code && relatedKey(x) == relatedKey(y)
	})
}

func relatedKey(d Diagnostic) string {
	if len(d.Related) == 0 {
		return d.Message
	}
	return d.Related[0].Span.String() + " " + d.Message
}
