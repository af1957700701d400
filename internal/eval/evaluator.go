package eval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	lru "github.com/hashicorp/golang-lru"

	"github.com/hirosystems/clarinet-sub000/internal/ast"
	"github.com/hirosystems/clarinet-sub000/internal/cost"
	"github.com/hirosystems/clarinet-sub000/internal/store"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// DefaultMaxCallDepth bounds nested user function and contract calls.
const DefaultMaxCallDepth = 64

const contractCacheSize = 256

// Host gives the evaluator the committed chain: block metadata and
// historical state for at-block and block info lookups.
// *store.Store implements it.
type Host interface {
	Block(ctx context.Context, height uint64) (store.Block, error)
	BlockByHash(ctx context.Context, hash string) (store.Block, error)
	ReaderAt(height uint64) store.Reader
}

// Evaluator executes contract code. It holds no chain state of its own:
// every call reads and writes through the overlay it is given.
type Evaluator struct {
	host      Host
	schedule  *cost.Schedule
	parser    ast.Parser
	logger    *slog.Logger
	maxDepth  int
	contracts *lru.Cache // analyzed contracts by id and record hash
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithSchedule sets the cost schedule. Default: cost.DefaultSchedule().
func WithSchedule(s *cost.Schedule) Option {
	return func(e *Evaluator) {
		e.schedule = s
	}
}

// WithParser replaces the default reader.
func WithParser(p ast.Parser) Option {
	return func(e *Evaluator) {
		e.parser = p
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = l
	}
}

// WithMaxCallDepth sets the call depth limit.
//
// Default: 64 (DefaultMaxCallDepth)
func WithMaxCallDepth(n int) Option {
	return func(e *Evaluator) {
		e.maxDepth = n
	}
}

// New creates an Evaluator over host.
func New(host Host, opts ...Option) (*Evaluator, error) {
	cache, err := lru.New(contractCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating contract cache: %w", err)
	}
	e := &Evaluator{
		host:      host,
		schedule:  cost.DefaultSchedule(),
		parser:    ast.Reader{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxDepth:  DefaultMaxCallDepth,
		contracts: cache,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Schedule returns the cost schedule in use.
func (e *Evaluator) Schedule() *cost.Schedule { return e.schedule }

// Status is the terminal state of a top-level call.
type Status string

const (
	// StatusCommittedOk: the call returned (ok ...) or a non-response
	// value; its writes merge into the parent overlay.
	StatusCommittedOk Status = "committed_ok"
	// StatusRolledBackErr: the call returned (err ...); its writes and
	// events are discarded, its cost is still charged.
	StatusRolledBackErr Status = "rolled_back_err"
	// StatusAborted: the call faulted; nothing it did is kept.
	StatusAborted Status = "aborted"
)

// Outcome is the result of one top-level call.
type Outcome struct {
	Status Status
	Value  value.Value // nil when aborted
	Fault  *Fault      // set when aborted
	Events []Event     // only for committed calls
	Cost   cost.ExecutionCost
}

// Err returns the fault as an error, or nil.
func (o Outcome) Err() error {
	if o.Fault != nil {
		return o.Fault
	}
	return nil
}

// CallMode selects which functions a top-level call may target.
type CallMode int

const (
	// CallPublic allows public functions only.
	CallPublic CallMode = iota
	// CallReadOnly allows read-only and public functions. The caller is
	// expected to discard the overlay afterwards.
	CallReadOnly
	// CallAny allows every function, private ones included.
	CallAny
)

type contractRecord struct {
	Source string `json:"source"`
	Epoch  string `json:"epoch"`
	Height uint64 `json:"height"`
}

// Deploy analyzes source, evaluates its top-level forms and registers
// the contract as <sender>.<name>. A name already registered is a fault.
func (e *Evaluator) Deploy(ctx context.Context, parent *store.Overlay, env Environment, name, source string) Outcome {
	return e.run(ctx, parent, env, func(x *execState) (value.Value, error) {
		id, err := value.ContractPrincipal(env.Sender, name)
		if err != nil {
			return nil, faultf(CodeInvalidPrincipal, "%v", err)
		}
		key := store.ContractKey(id.ID())
		_, exists, err := x.frame.overlay.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, faultf(CodeContractExists, "contract %s already exists", id.ID())
		}

		parsed, err := e.parser.Parse(name, source)
		if err != nil {
			return nil, faultf(CodeInvalidSyntax, "%v", err)
		}
		c, err := Analyze(id, parsed, env.Epoch)
		if err != nil {
			return nil, err
		}
		if err := x.charge(cost.OpContractStorage, uint64(len(source))); err != nil {
			return nil, err
		}
		if err := x.initialize(c); err != nil {
			return nil, err
		}

		record, err := value.MarshalCanonical(map[string]any{
			"source": source,
			"epoch":  string(env.Epoch),
			"height": env.BlockHeight,
		})
		if err != nil {
			return nil, err
		}
		if err := x.frame.overlay.Put(key, record); err != nil {
			return nil, err
		}
		e.logger.Debug("contract deployed", "contract", id.ID(), "epoch", env.Epoch)
		return id, nil
	})
}

// Call invokes function on contract with args as env.Sender.
func (e *Evaluator) Call(ctx context.Context, parent *store.Overlay, env Environment, contract value.Principal, function string, args []value.Value, mode CallMode) Outcome {
	return e.run(ctx, parent, env, func(x *execState) (value.Value, error) {
		c, err := x.loadContract(contract)
		if err != nil {
			return nil, err
		}
		fn, ok := c.Functions[function]
		if !ok {
			return nil, faultf(CodeNoSuchFunction, "%s has no function %q", contract.ID(), function)
		}
		switch {
		case mode == CallPublic && fn.Access != AccessPublic:
			return nil, faultf(CodeNoSuchFunction, "%s.%s is not public", contract.ID(), function)
		case mode == CallReadOnly && fn.Access == AccessPrivate:
			return nil, faultf(CodeNoSuchFunction, "%s.%s is private", contract.ID(), function)
		}
		cc := &callCtx{
			contract: c,
			sender:   env.Sender,
			caller:   env.Sender,
			readOnly: fn.Access == AccessReadOnly,
		}
		return x.callFunction(cc, fn.Node, fn, args)
	})
}

// EvalExpression evaluates source in the context of contract, or of a
// contract-less console owned by env.Sender when contract is the zero
// principal. Writes commit unless the result is (err ...).
func (e *Evaluator) EvalExpression(ctx context.Context, parent *store.Overlay, env Environment, contract value.Principal, source string) Outcome {
	return e.run(ctx, parent, env, func(x *execState) (value.Value, error) {
		c := consoleContract(env)
		if contract.IsContract() {
			var err error
			if c, err = x.loadContract(contract); err != nil {
				return nil, err
			}
		}
		parsed, err := e.parser.Parse("<expr>", source)
		if err != nil {
			return nil, faultf(CodeInvalidSyntax, "%v", err)
		}
		if len(parsed.Expressions) == 0 {
			return nil, faultf(CodeInvalidSyntax, "empty expression")
		}
		cc := &callCtx{contract: c, sender: env.Sender, caller: env.Sender}
		var v value.Value
		for _, n := range parsed.Expressions {
			if v, err = x.eval(cc, nil, n); err != nil {
				return nil, err
			}
		}
		return v, nil
	})
}

// TransferSTX moves amount micro-STX from env.Sender to recipient with
// the same checks and error codes as stx-transfer?.
func (e *Evaluator) TransferSTX(ctx context.Context, parent *store.Overlay, env Environment, amount value.UInt, recipient value.Principal, memo []byte) Outcome {
	return e.run(ctx, parent, env, func(x *execState) (value.Value, error) {
		if err := x.charge(cost.OpSTXTransferEvent, 1); err != nil {
			return nil, err
		}
		cc := &callCtx{contract: consoleContract(env), sender: env.Sender, caller: env.Sender}
		return x.transferSTX(cc, amount, env.Sender, recipient, memo)
	})
}

// Contract loads and analyzes a deployed contract from r.
func (e *Evaluator) Contract(ctx context.Context, r store.Reader, id value.Principal) (*Contract, error) {
	x := e.newState(ctx, store.NewOverlay(r), Environment{}, cost.NewFreeTracker(e.schedule))
	return x.loadContract(id)
}

// Interface returns the published interface of a deployed contract.
func (e *Evaluator) Interface(ctx context.Context, r store.Reader, id value.Principal) (*ContractInterface, error) {
	c, err := e.Contract(ctx, r, id)
	if err != nil {
		return nil, err
	}
	types := make(map[string]value.TypeSignature, len(c.constOrder))
	for _, name := range c.constOrder {
		raw, ok, err := r.Get(ctx, store.ConstantKey(id.ID(), name))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		v, err := value.Deserialize(raw)
		if err != nil {
			return nil, fmt.Errorf("constant %s: %w", name, err)
		}
		types[name] = v.Type()
	}
	return c.Interface(types), nil
}

func (e *Evaluator) newState(ctx context.Context, overlay *store.Overlay, env Environment, tracker *cost.Tracker) *execState {
	return &execState{
		e:       e,
		ctx:     ctx,
		tracker: tracker,
		env:     env,
		frame:   &frame{overlay: overlay},
	}
}

// run executes body as one top-level call in a child of parent and
// settles the outcome: commit into parent, roll back, or abort.
func (e *Evaluator) run(ctx context.Context, parent *store.Overlay, env Environment, body func(*execState) (value.Value, error)) Outcome {
	x := e.newState(ctx, parent.Nest(), env, cost.NewTracker(e.schedule))

	v, err := body(x)
	var er *earlyReturn
	if errors.As(err, &er) {
		v, err = er.value, nil
	}

	out := Outcome{Cost: x.tracker.Used()}
	if err != nil {
		x.frame.overlay.Discard()
		out.Status = StatusAborted
		out.Fault = asFault(err)
		e.logger.Debug("call aborted", "sender", env.Sender.ID(), "fault", out.Fault.Error())
		return out
	}

	out.Value = v
	if r, ok := v.(value.Response); ok && !r.IsOk() {
		x.frame.overlay.Discard()
		out.Status = StatusRolledBackErr
		return out
	}
	if err := x.frame.overlay.Commit(); err != nil {
		out.Status = StatusAborted
		out.Value = nil
		out.Fault = asFault(err)
		return out
	}
	out.Status = StatusCommittedOk
	out.Events = x.frame.events
	return out
}

// loadContract resolves a deployed contract through the current frame.
func (x *execState) loadContract(id value.Principal) (*Contract, error) {
	if !id.IsContract() {
		return nil, faultf(CodeNoSuchContract, "%s is not a contract principal", id.ID())
	}
	raw, ok, err := x.frame.overlay.Get(x.ctx, store.ContractKey(id.ID()))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, faultf(CodeNoSuchContract, "contract %s is not deployed", id.ID())
	}

	sum := sha256.Sum256(raw)
	cacheKey := id.ID() + "@" + hex.EncodeToString(sum[:])
	if cached, hit := x.e.contracts.Get(cacheKey); hit {
		c := cached.(*Contract)
		return c, x.charge(cost.OpLoadContract, uint64(len(c.AST.Source)))
	}

	var rec contractRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("contract record %s: %w", id.ID(), err)
	}
	if err := x.charge(cost.OpLoadContract, uint64(len(rec.Source))); err != nil {
		return nil, err
	}
	parsed, err := x.e.parser.Parse(id.Name(), rec.Source)
	if err != nil {
		return nil, fmt.Errorf("contract %s: %w", id.ID(), err)
	}
	c, err := Analyze(id, parsed, Epoch(rec.Epoch))
	if err != nil {
		return nil, err
	}
	x.e.contracts.Add(cacheKey, c)
	return c, nil
}

// consoleContract is the empty context used for expressions and
// transfers that do not run inside a contract.
func consoleContract(env Environment) *Contract {
	return &Contract{
		ID:         env.Sender,
		AST:        &ast.Contract{},
		Epoch:      env.Epoch,
		Functions:  map[string]*Function{},
		Vars:       map[string]*DataVar{},
		Maps:       map[string]*Map{},
		FTs:        map[string]*FungibleToken{},
		NFTs:       map[string]*NonFungibleToken{},
		Traits:     map[string]*Trait{},
		UsedTraits: map[string]TraitRef{},
		constants:  map[string]bool{},
	}
}
