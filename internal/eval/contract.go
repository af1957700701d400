package eval

import (
	"fmt"

	"github.com/hirosystems/clarinet-sub000/internal/ast"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// Access is the visibility of a contract function.
type Access string

const (
	AccessPublic   Access = "public"
	AccessReadOnly Access = "read_only"
	AccessPrivate  Access = "private"
)

// Param is a declared function argument.
type Param struct {
	Name string
	Type value.TypeSignature
	Span ast.Span
}

// Function is a user-defined function.
type Function struct {
	Name   string
	Access Access
	Params []Param
	Body   []*ast.Node
	Node   *ast.Node
}

// DataVar is a define-data-var declaration.
type DataVar struct {
	Name string
	Type value.TypeSignature
	Init *ast.Node
}

// Map is a define-map declaration.
type Map struct {
	Name  string
	Key   value.TypeSignature
	Value value.TypeSignature
}

// FungibleToken is a define-fungible-token declaration. Supply is nil
// when the token is uncapped.
type FungibleToken struct {
	Name   string
	Supply *ast.Node
}

// NonFungibleToken is a define-non-fungible-token declaration.
type NonFungibleToken struct {
	Name  string
	Asset value.TypeSignature
}

// TraitFunction is one required function of a trait.
type TraitFunction struct {
	Name    string
	Args    []value.TypeSignature
	Returns value.TypeSignature
}

// Trait is a define-trait declaration.
type Trait struct {
	Name      string
	Functions []TraitFunction
}

// Function looks up a required function by name.
func (t *Trait) Function(name string) (TraitFunction, bool) {
	for _, f := range t.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return TraitFunction{}, false
}

// TraitRef identifies a trait globally: the defining contract and the
// trait name.
type TraitRef struct {
	Contract value.Principal
	Name     string
}

func (r TraitRef) String() string { return r.Contract.ID() + "." + r.Name }

// Contract is the analyzed form of a deployed contract. It is immutable
// once built and shared between calls through the evaluator cache.
type Contract struct {
	ID    value.Principal
	AST   *ast.Contract
	Epoch Epoch

	Functions map[string]*Function
	Vars      map[string]*DataVar
	Maps      map[string]*Map
	FTs       map[string]*FungibleToken
	NFTs      map[string]*NonFungibleToken
	Traits    map[string]*Trait

	// UsedTraits maps use-trait aliases to the trait they import.
	UsedTraits map[string]TraitRef
	Implements []TraitRef

	// Declaration order, for interfaces.
	functionOrder []string
	varOrder      []string
	constOrder    []string
	mapOrder      []string
	ftOrder       []string
	nftOrder      []string

	constants map[string]bool
	// deploy holds the top-level forms evaluated at deploy, in order.
	deploy []*ast.Node
}

// IsConstant reports whether name is a define-constant of c.
func (c *Contract) IsConstant(name string) bool { return c.constants[name] }

// ResolveTrait maps a trait name used in c (a local define-trait or a
// use-trait alias) to its global reference.
func (c *Contract) ResolveTrait(name string) (TraitRef, bool) {
	if _, ok := c.Traits[name]; ok {
		return TraitRef{Contract: c.ID, Name: name}, true
	}
	ref, ok := c.UsedTraits[name]
	return ref, ok
}

// Analyze builds a Contract from its parsed source. It checks the shape
// of every definition; bodies are checked when they run.
func Analyze(id value.Principal, src *ast.Contract, epoch Epoch) (*Contract, error) {
	c := &Contract{
		ID:         id,
		AST:        src,
		Epoch:      epoch,
		Functions:  make(map[string]*Function),
		Vars:       make(map[string]*DataVar),
		Maps:       make(map[string]*Map),
		FTs:        make(map[string]*FungibleToken),
		NFTs:       make(map[string]*NonFungibleToken),
		Traits:     make(map[string]*Trait),
		UsedTraits: make(map[string]TraitRef),
		constants:  make(map[string]bool),
	}
	names := make(map[string]bool)
	declare := func(n *ast.Node, name string) error {
		if names[name] {
			return c.errorf(n, CodeInvalidSyntax, "%q is defined twice", name)
		}
		names[name] = true
		return nil
	}

	for _, n := range src.Expressions {
		head := n.Head()
		args := n.Args()
		var err error
		switch head {
		case "define-public", "define-read-only", "define-private":
			err = c.defineFunction(n, head, args, declare)
		case "define-constant":
			if err = c.expectArgs(n, args, 2); err == nil {
				var name string
				if name, err = c.atomName(args[0]); err == nil {
					if err = declare(n, name); err == nil {
						c.constants[name] = true
						c.constOrder = append(c.constOrder, name)
						c.deploy = append(c.deploy, n)
					}
				}
			}
		case "define-data-var":
			err = c.defineVar(n, args, declare)
		case "define-map":
			err = c.defineMap(n, args, declare)
		case "define-fungible-token":
			err = c.defineFT(n, args, declare)
		case "define-non-fungible-token":
			err = c.defineNFT(n, args, declare)
		case "define-trait":
			err = c.defineTrait(n, args, declare)
		case "use-trait":
			err = c.useTrait(n, args, declare)
		case "impl-trait":
			var ref TraitRef
			if err = c.expectArgs(n, args, 1); err == nil {
				if ref, err = c.traitIdentifier(args[0]); err == nil {
					c.Implements = append(c.Implements, ref)
				}
			}
		default:
			c.deploy = append(c.deploy, n)
		}
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Contract) errorf(n *ast.Node, code FaultCode, format string, args ...any) *Fault {
	f := faultf(code, format, args...)
	f.Contract = c.ID.ID()
	f.Span = n.Span
	return f
}

func (c *Contract) expectArgs(n *ast.Node, args []*ast.Node, want int) error {
	if len(args) != want {
		return c.errorf(n, CodeArity, "%s expects %d arguments, got %d", n.Head(), want, len(args))
	}
	return nil
}

func (c *Contract) atomName(n *ast.Node) (string, error) {
	if n.Kind != ast.KindAtom {
		return "", c.errorf(n, CodeInvalidSyntax, "expected a name, found %s", n.Kind)
	}
	return n.Name, nil
}

func (c *Contract) parseType(n *ast.Node) (value.TypeSignature, error) {
	t, err := ast.ParseType(n)
	if err != nil {
		return value.TypeSignature{}, c.errorf(n, CodeInvalidSyntax, "%v", err)
	}
	return t, nil
}

// parseMapType accepts a type or the tuple shorthand ((name type) ...).
func (c *Contract) parseMapType(n *ast.Node) (value.TypeSignature, error) {
	if n.IsList() && len(n.Children) > 0 && n.Children[0].IsList() {
		fields := make([]value.TupleFieldType, 0, len(n.Children))
		for _, pair := range n.Children {
			if len(pair.Children) != 2 || pair.Children[0].Kind != ast.KindAtom {
				return value.TypeSignature{}, c.errorf(pair, CodeInvalidSyntax, "expected (name type)")
			}
			t, err := c.parseType(pair.Children[1])
			if err != nil {
				return value.TypeSignature{}, err
			}
			fields = append(fields, value.TupleFieldType{Name: pair.Children[0].Name, Type: t})
		}
		t, err := value.TupleType(fields)
		if err != nil {
			return value.TypeSignature{}, c.errorf(n, CodeInvalidSyntax, "%v", err)
		}
		return t, nil
	}
	return c.parseType(n)
}

func (c *Contract) defineFunction(n *ast.Node, head string, args []*ast.Node, declare func(*ast.Node, string) error) error {
	if len(args) < 2 || !args[0].IsList() || len(args[0].Children) == 0 {
		return c.errorf(n, CodeInvalidSyntax, "%s expects a signature and a body", head)
	}
	sig := args[0]
	name, err := c.atomName(sig.Children[0])
	if err != nil {
		return err
	}
	if err := declare(n, name); err != nil {
		return err
	}
	fn := &Function{Name: name, Body: args[1:], Node: n}
	switch head {
	case "define-public":
		fn.Access = AccessPublic
	case "define-read-only":
		fn.Access = AccessReadOnly
	default:
		fn.Access = AccessPrivate
	}
	seen := make(map[string]bool)
	for _, p := range sig.Children[1:] {
		if !p.IsList() || len(p.Children) != 2 || p.Children[0].Kind != ast.KindAtom {
			return c.errorf(p, CodeInvalidSyntax, "expected (name type) in signature of %s", name)
		}
		pname := p.Children[0].Name
		if seen[pname] {
			return c.errorf(p, CodeInvalidSyntax, "argument %q of %s is declared twice", pname, name)
		}
		seen[pname] = true
		t, err := c.parseType(p.Children[1])
		if err != nil {
			return err
		}
		fn.Params = append(fn.Params, Param{Name: pname, Type: t, Span: p.Span})
	}
	c.Functions[name] = fn
	c.functionOrder = append(c.functionOrder, name)
	return nil
}

func (c *Contract) defineVar(n *ast.Node, args []*ast.Node, declare func(*ast.Node, string) error) error {
	if err := c.expectArgs(n, args, 3); err != nil {
		return err
	}
	name, err := c.atomName(args[0])
	if err != nil {
		return err
	}
	if err := declare(n, name); err != nil {
		return err
	}
	t, err := c.parseType(args[1])
	if err != nil {
		return err
	}
	c.Vars[name] = &DataVar{Name: name, Type: t, Init: args[2]}
	c.varOrder = append(c.varOrder, name)
	c.deploy = append(c.deploy, n)
	return nil
}

func (c *Contract) defineMap(n *ast.Node, args []*ast.Node, declare func(*ast.Node, string) error) error {
	if err := c.expectArgs(n, args, 3); err != nil {
		return err
	}
	name, err := c.atomName(args[0])
	if err != nil {
		return err
	}
	if err := declare(n, name); err != nil {
		return err
	}
	kt, err := c.parseMapType(args[1])
	if err != nil {
		return err
	}
	vt, err := c.parseMapType(args[2])
	if err != nil {
		return err
	}
	c.Maps[name] = &Map{Name: name, Key: kt, Value: vt}
	c.mapOrder = append(c.mapOrder, name)
	return nil
}

func (c *Contract) defineFT(n *ast.Node, args []*ast.Node, declare func(*ast.Node, string) error) error {
	if len(args) != 1 && len(args) != 2 {
		return c.errorf(n, CodeArity, "define-fungible-token expects a name and an optional supply")
	}
	name, err := c.atomName(args[0])
	if err != nil {
		return err
	}
	if err := declare(n, name); err != nil {
		return err
	}
	ft := &FungibleToken{Name: name}
	if len(args) == 2 {
		ft.Supply = args[1]
		c.deploy = append(c.deploy, n)
	}
	c.FTs[name] = ft
	c.ftOrder = append(c.ftOrder, name)
	return nil
}

func (c *Contract) defineNFT(n *ast.Node, args []*ast.Node, declare func(*ast.Node, string) error) error {
	if err := c.expectArgs(n, args, 2); err != nil {
		return err
	}
	name, err := c.atomName(args[0])
	if err != nil {
		return err
	}
	if err := declare(n, name); err != nil {
		return err
	}
	t, err := c.parseType(args[1])
	if err != nil {
		return err
	}
	c.NFTs[name] = &NonFungibleToken{Name: name, Asset: t}
	c.nftOrder = append(c.nftOrder, name)
	return nil
}

func (c *Contract) defineTrait(n *ast.Node, args []*ast.Node, declare func(*ast.Node, string) error) error {
	if err := c.expectArgs(n, args, 2); err != nil {
		return err
	}
	name, err := c.atomName(args[0])
	if err != nil {
		return err
	}
	if err := declare(n, name); err != nil {
		return err
	}
	if !args[1].IsList() {
		return c.errorf(args[1], CodeInvalidSyntax, "expected a list of function signatures")
	}
	tr := &Trait{Name: name}
	for _, sig := range args[1].Children {
		if !sig.IsList() || len(sig.Children) != 3 || sig.Children[0].Kind != ast.KindAtom || !sig.Children[1].IsList() {
			return c.errorf(sig, CodeInvalidSyntax, "expected (name (arg-types...) response-type)")
		}
		tf := TraitFunction{Name: sig.Children[0].Name}
		if _, dup := tr.Function(tf.Name); dup {
			return c.errorf(sig, CodeInvalidSyntax, "trait %s declares %s twice", name, tf.Name)
		}
		for _, a := range sig.Children[1].Children {
			t, err := c.parseType(a)
			if err != nil {
				return err
			}
			tf.Args = append(tf.Args, t)
		}
		ret, err := c.parseType(sig.Children[2])
		if err != nil {
			return err
		}
		tf.Returns = ret
		tr.Functions = append(tr.Functions, tf)
	}
	c.Traits[name] = tr
	return nil
}

func (c *Contract) useTrait(n *ast.Node, args []*ast.Node, declare func(*ast.Node, string) error) error {
	if err := c.expectArgs(n, args, 2); err != nil {
		return err
	}
	alias, err := c.atomName(args[0])
	if err != nil {
		return err
	}
	if err := declare(n, alias); err != nil {
		return err
	}
	ref, err := c.traitIdentifier(args[1])
	if err != nil {
		return err
	}
	c.UsedTraits[alias] = ref
	return nil
}

// traitIdentifier reads 'ADDR.contract.trait or .contract.trait.
func (c *Contract) traitIdentifier(n *ast.Node) (TraitRef, error) {
	if n.Trait == "" {
		return TraitRef{}, c.errorf(n, CodeInvalidSyntax, "expected a trait identifier")
	}
	switch n.Kind {
	case ast.KindContractRef:
		p, err := value.ContractPrincipal(c.ID.Issuer(), n.Name)
		if err != nil {
			return TraitRef{}, c.errorf(n, CodeInvalidPrincipal, "%v", err)
		}
		return TraitRef{Contract: p, Name: n.Trait}, nil
	case ast.KindLiteral:
		p, ok := n.Value.(value.Principal)
		if !ok || !p.IsContract() {
			return TraitRef{}, c.errorf(n, CodeInvalidSyntax, "expected a contract principal")
		}
		return TraitRef{Contract: p, Name: n.Trait}, nil
	}
	return TraitRef{}, c.errorf(n, CodeInvalidSyntax, "expected a trait identifier, found %s", n.Kind)
}

// qualify replaces trait names in t with their global identifiers so
// types from different contracts can be compared.
func (c *Contract) qualify(t value.TypeSignature) value.TypeSignature {
	switch t.Kind {
	case value.KindTrait:
		if ref, ok := c.ResolveTrait(t.Trait); ok {
			return value.TraitType(ref.String())
		}
		return t
	case value.KindOptional:
		return value.OptionalType(c.qualify(*t.Elem))
	case value.KindResponse:
		return value.ResponseType(c.qualify(*t.Ok), c.qualify(*t.Err))
	case value.KindList:
		return value.ListType(c.qualify(*t.Elem), t.Length)
	case value.KindTuple:
		fields := make([]value.TupleFieldType, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = value.TupleFieldType{Name: f.Name, Type: c.qualify(f.Type)}
		}
		return value.TypeSignature{Kind: value.KindTuple, Fields: fields}
	}
	return t
}

func (c *Contract) String() string {
	return fmt.Sprintf("contract %s", c.ID.ID())
}
