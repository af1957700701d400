package eval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirosystems/clarinet-sub000/internal/cost"
	"github.com/hirosystems/clarinet-sub000/internal/store"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

var (
	deployer = value.PrincipalFromSeed(value.VersionTestnetSingleSig, "deployer")
	wallet1  = value.PrincipalFromSeed(value.VersionTestnetSingleSig, "wallet_1")
	wallet2  = value.PrincipalFromSeed(value.VersionTestnetSingleSig, "wallet_2")
)

// testChain is an evaluator over an empty in-memory store and the
// overlay of the block being built.
type testChain struct {
	t     *testing.T
	ctx   context.Context
	store *store.Store
	ev    *Evaluator
	block *store.Overlay
	env   Environment
}

func newTestChain(t *testing.T, opts ...Option) *testChain {
	t.Helper()
	s, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ev, err := New(s, opts...)
	require.NoError(t, err)

	c := &testChain{
		t:     t,
		ctx:   context.Background(),
		store: s,
		ev:    ev,
		block: store.NewOverlay(s),
		env: Environment{
			Sender:       deployer,
			BlockHeight:  1,
			TenureHeight: 1,
			BurnHeight:   101,
			Epoch:        Epoch25,
			ChainID:      0x80000000,
		},
	}
	c.fund(deployer, 1_000_000)
	c.fund(wallet1, 1_000_000)
	c.fund(wallet2, 1_000_000)
	return c
}

func (c *testChain) fund(p value.Principal, amount uint64) {
	c.t.Helper()
	require.NoError(c.t, c.block.Put(store.STXBalanceKey(p.ID()), value.Serialize(value.NewUInt(amount))))
}

func (c *testChain) as(sender value.Principal) Environment {
	env := c.env
	env.Sender = sender
	return env
}

func (c *testChain) deploy(name, source string) value.Principal {
	c.t.Helper()
	out := c.ev.Deploy(c.ctx, c.block, c.env, name, source)
	require.Equal(c.t, StatusCommittedOk, out.Status, "deploy %s: %v", name, out.Fault)
	return out.Value.(value.Principal)
}

func (c *testChain) call(sender, contract value.Principal, fn string, args ...value.Value) Outcome {
	return c.ev.Call(c.ctx, c.block, c.as(sender), contract, fn, args, CallPublic)
}

func (c *testChain) expr(src string) Outcome {
	return c.ev.EvalExpression(c.ctx, c.block, c.env, value.Principal{}, src)
}

func (c *testChain) stored(key string) value.Value {
	c.t.Helper()
	raw, ok, err := c.block.Get(c.ctx, key)
	require.NoError(c.t, err)
	if !ok {
		return nil
	}
	v, err := value.Deserialize(raw)
	require.NoError(c.t, err)
	return v
}

func (c *testChain) balance(p value.Principal) string {
	v := c.stored(store.STXBalanceKey(p.ID()))
	if v == nil {
		return "u0"
	}
	return v.String()
}

const counterSource = `
(define-data-var count uint u0)
(define-constant ERR_UNDERFLOW (err u100))

(define-public (increment)
  (begin
    (var-set count (+ (var-get count) u1))
    (print {event: "increment", count: (var-get count)})
    (ok (var-get count))))

(define-public (decrement)
  (begin
    (asserts! (> (var-get count) u0) ERR_UNDERFLOW)
    (var-set count (- (var-get count) u1))
    (ok (var-get count))))

(define-public (set-then-fail (n uint))
  (begin
    (var-set count n)
    (print "about to fail")
    (err u7)))

(define-read-only (get-count) (var-get count))

(define-read-only (sneaky-set)
  (ok (var-set count u99)))
`

// TestDeployAndCall tests the basic counter flow.
func TestDeployAndCall(t *testing.T) {
	c := newTestChain(t)
	counter := c.deploy("counter", counterSource)
	assert.Equal(t, deployer.ID()+".counter", counter.ID())

	out := c.call(wallet1, counter, "increment")
	require.Equal(t, StatusCommittedOk, out.Status)
	assert.Equal(t, "(ok u1)", out.Value.String())
	require.Len(t, out.Events, 1)
	assert.Equal(t, PrintEvent, out.Events[0].Type)
	assert.Equal(t, counter.ID(), out.Events[0].Contract)
	assert.Equal(t, `{count: u1, event: "increment"}`, out.Events[0].Value.String())
	assert.False(t, out.Cost.IsZero())

	assert.Equal(t, "u1", c.stored(store.DataVarKey(counter.ID(), "count")).String())
}

// TestErrResultRollsBack tests that an (err ...) result drops writes and events.
func TestErrResultRollsBack(t *testing.T) {
	c := newTestChain(t)
	counter := c.deploy("counter", counterSource)

	out := c.call(wallet1, counter, "set-then-fail", value.NewUInt(42))
	assert.Equal(t, StatusRolledBackErr, out.Status)
	assert.Equal(t, "(err u7)", out.Value.String())
	assert.Empty(t, out.Events)
	assert.False(t, out.Cost.IsZero())
	assert.Equal(t, "u0", c.stored(store.DataVarKey(counter.ID(), "count")).String())
}

// TestAssertsReturnsEarly tests asserts! exiting the function with its thrown value.
func TestAssertsReturnsEarly(t *testing.T) {
	c := newTestChain(t)
	counter := c.deploy("counter", counterSource)

	out := c.call(wallet1, counter, "decrement")
	assert.Equal(t, StatusRolledBackErr, out.Status)
	assert.Equal(t, "(err u100)", out.Value.String())
}

// TestReadOnlyCannotWrite tests that writes from a read-only function fault.
func TestReadOnlyCannotWrite(t *testing.T) {
	c := newTestChain(t)
	counter := c.deploy("counter", counterSource)

	out := c.ev.Call(c.ctx, c.block, c.as(wallet1), counter, "sneaky-set", nil, CallReadOnly)
	require.Equal(t, StatusAborted, out.Status)
	assert.Equal(t, CodeWriteInReadOnly, out.Fault.Code)
	assert.True(t, IsRuntimeFault(out.Err()))

	out = c.ev.Call(c.ctx, c.block, c.as(wallet1), counter, "get-count", nil, CallReadOnly)
	require.Equal(t, StatusCommittedOk, out.Status)
	assert.Equal(t, "u0", out.Value.String())
}

// TestCallModes tests which functions each mode may target.
func TestCallModes(t *testing.T) {
	c := newTestChain(t)
	id := c.deploy("modes", `
(define-private (secret) u1)
(define-read-only (peek) (secret))
(define-public (poke) (ok (secret)))
`)
	tests := []struct {
		fn   string
		mode CallMode
		ok   bool
	}{
		{"poke", CallPublic, true},
		{"peek", CallPublic, false},
		{"secret", CallPublic, false},
		{"peek", CallReadOnly, true},
		{"poke", CallReadOnly, true},
		{"secret", CallReadOnly, false},
		{"secret", CallAny, true},
	}
	for _, tt := range tests {
		out := c.ev.Call(c.ctx, c.block, c.env, id, tt.fn, nil, tt.mode)
		if tt.ok {
			assert.Equal(t, StatusCommittedOk, out.Status, "%s mode %d", tt.fn, tt.mode)
		} else {
			require.Equal(t, StatusAborted, out.Status, "%s mode %d", tt.fn, tt.mode)
			assert.Equal(t, CodeNoSuchFunction, out.Fault.Code)
		}
	}
}

// TestArgumentTypeCheck tests that call arguments are checked against the signature.
func TestArgumentTypeCheck(t *testing.T) {
	c := newTestChain(t)
	counter := c.deploy("counter", counterSource)

	out := c.call(wallet1, counter, "set-then-fail", value.NewInt(1))
	require.Equal(t, StatusAborted, out.Status)
	assert.Equal(t, CodeTypeMismatch, out.Fault.Code)

	out = c.call(wallet1, counter, "set-then-fail")
	require.Equal(t, StatusAborted, out.Status)
	assert.Equal(t, CodeArity, out.Fault.Code)
}

// TestDuplicateDeploy tests that a contract name can be registered once.
func TestDuplicateDeploy(t *testing.T) {
	c := newTestChain(t)
	c.deploy("counter", counterSource)

	out := c.ev.Deploy(c.ctx, c.block, c.env, "counter", counterSource)
	require.Equal(t, StatusAborted, out.Status)
	assert.Equal(t, CodeContractExists, out.Fault.Code)
}

// TestDeployErrors tests syntax and analysis failures at deploy.
func TestDeployErrors(t *testing.T) {
	c := newTestChain(t)
	tests := []struct {
		name string
		src  string
		code FaultCode
	}{
		{"unbalanced", "(define-public (f) (ok u1)", CodeInvalidSyntax},
		{"duplicate", "(define-constant a u1) (define-constant a u2)", CodeInvalidSyntax},
		{"bad-var-init", "(define-data-var v uint 5)", CodeTypeMismatch},
		{"forward-const", "(define-constant a b) (define-constant b u1)", CodeUndefinedName},
		{"top-level-fault", "(unwrap-panic (some u1)) (unwrap-panic none)", CodeUnwrapFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := c.ev.Deploy(c.ctx, c.block, c.env, tt.name, tt.src)
			require.Equal(t, StatusAborted, out.Status)
			assert.Equal(t, tt.code, out.Fault.Code)
			_, exists, err := c.block.Get(c.ctx, store.ContractKey(deployer.ID()+"."+tt.name))
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

// TestFaultCarriesLocation tests that faults point at the failing expression.
func TestFaultCarriesLocation(t *testing.T) {
	c := newTestChain(t)
	id := c.deploy("panics", "(define-public (boom)\n  (ok (unwrap-panic none)))")

	out := c.call(wallet1, id, "boom")
	require.Equal(t, StatusAborted, out.Status)
	assert.Equal(t, CodeUnwrapFailure, out.Fault.Code)
	assert.Equal(t, id.ID(), out.Fault.Contract)
	assert.Equal(t, 2, out.Fault.Span.StartLine)
	assert.Nil(t, out.Value)
}

// TestArithmetic tests checked arithmetic through expressions.
func TestArithmetic(t *testing.T) {
	c := newTestChain(t)
	tests := []struct {
		src  string
		want string
		code FaultCode
	}{
		{"(+ 1 2 3)", "6", ""},
		{"(- 5)", "-5", ""},
		{"(- u5 u2)", "u3", ""},
		{"(* u3 u4)", "u12", ""},
		{"(/ 7 2)", "3", ""},
		{"(mod u7 u4)", "u3", ""},
		{"(pow 2 10)", "1024", ""},
		{"(sqrti u17)", "u4", ""},
		{"(log2 u8)", "u3", ""},
		{"(to-int u3)", "3", ""},
		{"(to-uint 3)", "u3", ""},
		{"(>= u2 u2)", "true", ""},
		{"(is-eq (list 1 2) (list 1 2))", "true", ""},
		{"(and true (< 1 2) (not false))", "true", ""},
		{"(or false false)", "false", ""},
		{"(+ u340282366920938463463374607431768211455 u1)", "", CodeOverflow},
		{"(- u1 u2)", "", CodeUnderflow},
		{"(/ u1 u0)", "", CodeDivisionByZero},
		{"(to-uint -1)", "", CodeArithmetic},
		{"(+ 1 u1)", "", CodeTypeMismatch},
		{"(is-eq 1 u1)", "", CodeTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			out := c.expr(tt.src)
			if tt.code != "" {
				require.Equal(t, StatusAborted, out.Status)
				assert.Equal(t, tt.code, out.Fault.Code)
				return
			}
			require.Equal(t, StatusCommittedOk, out.Status, "%v", out.Fault)
			assert.Equal(t, tt.want, out.Value.String())
		})
	}
}

// TestControlForms tests let, match, try! and the optional helpers.
func TestControlForms(t *testing.T) {
	c := newTestChain(t)
	tests := []struct {
		src  string
		want string
	}{
		{"(let ((a 1) (b (+ a 1))) (* a b))", "2"},
		{"(if (> 2 1) \"yes\" \"no\")", `"yes"`},
		{"(match (some u5) v (+ v u1) u0)", "u6"},
		{"(match (err u3) v v e (+ e u10))", "u13"},
		{"(default-to u9 none)", "u9"},
		{"(unwrap-err-panic (err u4))", "u4"},
		{"(is-none (get a (some {a: u1})))", "false"},
		{"(get b (merge {a: 1, b: 2} {b: 3}))", "3"},
		{"(begin (try! (ok u1)) (ok u2))", "(ok u2)"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			out := c.expr(tt.src)
			require.Equal(t, StatusCommittedOk, out.Status, "%v", out.Fault)
			assert.Equal(t, tt.want, out.Value.String())
		})
	}
}

// TestSequences tests the sequence built-ins on lists, buffers and strings.
func TestSequences(t *testing.T) {
	c := newTestChain(t)
	id := c.deploy("seq", `
(define-private (double (n int)) (* n 2))
(define-private (is-even (n int)) (is-eq (mod n 2) 0))
(define-private (sum (n int) (acc int)) (+ n acc))
`)
	tests := []struct {
		src  string
		want string
	}{
		{"(len (list 1 2 3))", "u3"},
		{"(len \"hello\")", "u5"},
		{"(append (list 1 2) 3)", "(list 1 2 3)"},
		{"(concat 0x0102 0x03)", "0x010203"},
		{"(concat \"ab\" \"cd\")", `"abcd"`},
		{"(as-max-len? (list 1 2 3) u2)", "none"},
		{"(element-at? (list 1 2 3) u1)", "(some 2)"},
		{"(element-at? (list 1 2 3) u5)", "none"},
		{"(index-of? \"abc\" \"c\")", "(some u2)"},
		{"(slice? (list 1 2 3 4) u1 u3)", "(some (list 2 3))"},
		{"(slice? (list 1 2) u2 u1)", "none"},
		{"(map double (list 1 2 3))", "(list 2 4 6)"},
		{"(map + (list 1 2) (list 10 20 30))", "(list 11 22)"},
		{"(filter is-even (list 1 2 3 4))", "(list 2 4)"},
		{"(fold sum (list 1 2 3) 0)", "6"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			out := c.ev.EvalExpression(c.ctx, c.block, c.env, id, tt.src)
			require.Equal(t, StatusCommittedOk, out.Status, "%v", out.Fault)
			assert.Equal(t, tt.want, out.Value.String())
		})
	}
}

// TestHashes tests the hash built-ins on buffers and integers.
func TestHashes(t *testing.T) {
	c := newTestChain(t)
	tests := []struct {
		src  string
		want string
	}{
		{"(sha256 0x)", "0xe3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"(keccak256 0x)", "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{"(sha512/256 0x)", "0xc672b8d1ef56ed28ab87c3622c5114069bdd3ad7b8f9737498d0c01ecef0967a"},
		{"(hash160 0x)", "0xb472a266d0bd89c13706a4132ccfb16f7c3b9fcb"},
	}
	for _, tt := range tests {
		out := c.expr(tt.src)
		require.Equal(t, StatusCommittedOk, out.Status, "%v", out.Fault)
		assert.Equal(t, tt.want, out.Value.String(), tt.src)
	}

	out := c.expr("(is-eq (sha256 u1) (sha256 0x01000000000000000000000000000000))")
	require.Equal(t, StatusCommittedOk, out.Status, "%v", out.Fault)
	assert.Equal(t, "true", out.Value.String())
}

// TestEpochGating tests that built-ins follow the epoch of the contract.
func TestEpochGating(t *testing.T) {
	c := newTestChain(t)

	c.env.Epoch = Epoch20
	out := c.expr("(element-at? (list 1 2) u0)")
	require.Equal(t, StatusAborted, out.Status)
	assert.Equal(t, CodeEpoch, out.Fault.Code)
	out = c.expr("(element-at (list 1 2) u0)")
	assert.Equal(t, StatusCommittedOk, out.Status)

	c.env.Epoch = Epoch25
	out = c.expr("stacks-block-height")
	require.Equal(t, StatusAborted, out.Status)
	assert.Equal(t, CodeEpoch, out.Fault.Code)
	out = c.expr("block-height")
	require.Equal(t, StatusCommittedOk, out.Status)
	assert.Equal(t, "u1", out.Value.String())

	c.env.Epoch = Epoch30
	c.env.BlockHeight, c.env.TenureHeight = 7, 3
	out = c.expr("(list stacks-block-height tenure-height block-height)")
	require.Equal(t, StatusCommittedOk, out.Status, "%v", out.Fault)
	assert.Equal(t, "(list u7 u3 u3)", out.Value.String())
	out = c.expr("(get-block-info? time u0)")
	require.Equal(t, StatusAborted, out.Status)
	assert.Equal(t, CodeEpoch, out.Fault.Code)
}

// TestStackDepth tests that unbounded recursion is a resource fault.
func TestStackDepth(t *testing.T) {
	c := newTestChain(t, WithMaxCallDepth(8))
	id := c.deploy("loop", `
(define-private (spin (n uint)) (spin (+ n u1)))
(define-public (start) (ok (spin u0)))
`)
	out := c.call(wallet1, id, "start")
	require.Equal(t, StatusAborted, out.Status)
	assert.Equal(t, ResourceExceeded, out.Fault.Kind)
	assert.Equal(t, CodeStackDepth, out.Fault.Code)
	assert.True(t, IsResourceExceeded(out.Err()))
}

// TestBudgetExceeded tests that running past the limit aborts the call.
func TestBudgetExceeded(t *testing.T) {
	schedule := cost.DefaultSchedule()
	schedule.Limit.Runtime = 1_000
	c := newTestChain(t, WithSchedule(schedule))

	out := c.expr("(fold + (list 1 2 3 4 5 6 7 8 9 10) 0)")
	require.Equal(t, StatusAborted, out.Status)
	assert.Equal(t, ResourceExceeded, out.Fault.Kind)
	assert.Equal(t, CodeCostBudget, out.Fault.Code)
	assert.Greater(t, out.Cost.Runtime, uint64(1_000))
}

// TestCostGrowsWithWork tests that more work is never cheaper.
func TestCostGrowsWithWork(t *testing.T) {
	c := newTestChain(t)
	small := c.expr("(fold + (list 1 2) 0)")
	large := c.expr("(fold + (list 1 2 3 4 5 6 7 8) 0)")
	require.Equal(t, StatusCommittedOk, small.Status)
	require.Equal(t, StatusCommittedOk, large.Status)
	assert.True(t, small.Cost.LessOrEqual(large.Cost))
	assert.Greater(t, large.Cost.Runtime, small.Cost.Runtime)
}

const blobSource = `
(define-data-var blob (buff 10000) 0x00)
(define-map blobs uint (buff 10000))
(define-public (put-var (b (buff 10000))) (ok (var-set blob b)))
(define-public (put-map (b (buff 10000))) (ok (map-set blobs u1 b)))
(define-public (get-var) (ok (var-get blob)))
(define-public (get-map) (ok (map-get? blobs u1)))
(define-public (ignore (b (buff 10000))) (ok true))
`

func blob(t *testing.T, n int) value.Value {
	t.Helper()
	b, err := value.NewBuffer(make([]byte, n))
	require.NoError(t, err)
	return b
}

// TestDataCostBySize tests that data operations are charged by the size
// of the data they read and write.
func TestDataCostBySize(t *testing.T) {
	run := func(t *testing.T, n int) (put, get cost.ExecutionCost) {
		c := newTestChain(t)
		id := c.deploy("blobs", blobSource)
		out := c.call(wallet1, id, "put-var", blob(t, n))
		require.Equal(t, StatusCommittedOk, out.Status, "%v", out.Fault)
		put = out.Cost
		out = c.call(wallet1, id, "get-var")
		require.Equal(t, StatusCommittedOk, out.Status, "%v", out.Fault)
		return put, out.Cost
	}
	smallPut, smallGet := run(t, 1)
	largePut, largeGet := run(t, 10_000)
	assert.Less(t, smallPut.WriteLength, largePut.WriteLength)
	assert.GreaterOrEqual(t, largePut.WriteLength-smallPut.WriteLength, uint64(9_999))
	assert.Equal(t, smallPut.WriteCount, largePut.WriteCount)
	assert.Less(t, smallGet.ReadLength, largeGet.ReadLength)
	assert.GreaterOrEqual(t, largeGet.ReadLength-smallGet.ReadLength, uint64(9_999))
}

// TestMapCostBySize tests map-set and map-get? charges.
func TestMapCostBySize(t *testing.T) {
	run := func(t *testing.T, n int) (put, get cost.ExecutionCost) {
		c := newTestChain(t)
		id := c.deploy("blobs", blobSource)
		out := c.call(wallet1, id, "put-map", blob(t, n))
		require.Equal(t, StatusCommittedOk, out.Status, "%v", out.Fault)
		put = out.Cost
		out = c.call(wallet1, id, "get-map")
		require.Equal(t, StatusCommittedOk, out.Status, "%v", out.Fault)
		return put, out.Cost
	}
	smallPut, smallGet := run(t, 1)
	largePut, largeGet := run(t, 10_000)
	assert.Less(t, smallPut.WriteLength, largePut.WriteLength)
	assert.Less(t, smallGet.ReadLength, largeGet.ReadLength)
	assert.GreaterOrEqual(t, largeGet.ReadLength-smallGet.ReadLength, uint64(9_999))
}

// TestWriteLengthBudget tests that an oversized write runs out of budget.
func TestWriteLengthBudget(t *testing.T) {
	schedule := cost.DefaultSchedule()
	schedule.Limit.WriteLength = 1_000
	c := newTestChain(t, WithSchedule(schedule))
	id := c.deploy("blobs", blobSource)

	out := c.call(wallet1, id, "put-var", blob(t, 100))
	require.Equal(t, StatusCommittedOk, out.Status, "%v", out.Fault)

	out = c.call(wallet1, id, "put-var", blob(t, 5_000))
	require.Equal(t, StatusAborted, out.Status)
	assert.Equal(t, CodeCostBudget, out.Fault.Code)
	assert.Greater(t, out.Cost.WriteLength, uint64(1_000))
}

// TestArgumentTypeCheckCost tests that checking arguments against their
// declared types is charged by argument size.
func TestArgumentTypeCheckCost(t *testing.T) {
	c := newTestChain(t)
	id := c.deploy("blobs", blobSource)
	small := c.call(wallet1, id, "ignore", blob(t, 1))
	large := c.call(wallet1, id, "ignore", blob(t, 10_000))
	require.Equal(t, StatusCommittedOk, small.Status)
	require.Equal(t, StatusCommittedOk, large.Status)
	assert.Greater(t, large.Cost.Runtime, small.Cost.Runtime)
	assert.Zero(t, large.Cost.WriteLength)
}

// TestContractInterface tests interface extraction.
func TestContractInterface(t *testing.T) {
	c := newTestChain(t)
	id := c.deploy("shape", `
(define-constant OWNER tx-sender)
(define-data-var total uint u0)
(define-map balances principal uint)
(define-fungible-token gold u1000)
(define-non-fungible-token badge uint)
(define-public (pay (to principal) (amount uint)) (ok true))
(define-read-only (get-total) (var-get total))
(define-private (helper) u1)
`)
	ci, err := c.ev.Interface(c.ctx, c.block, id)
	require.NoError(t, err)
	require.Len(t, ci.Functions, 3)
	assert.Equal(t, "pay", ci.Functions[0].Name)
	assert.Equal(t, AccessPublic, ci.Functions[0].Access)
	assert.Equal(t, "principal", ci.Functions[0].Args[0].Type.String())
	assert.Equal(t, AccessPrivate, ci.Functions[2].Access)
	require.Len(t, ci.Variables, 2)
	assert.Equal(t, VariableInterface{Name: "OWNER", Type: value.PrincipalType, Access: "constant"}, ci.Variables[0])
	assert.Equal(t, "variable", ci.Variables[1].Access)
	assert.Equal(t, []TokenInterface{{Name: "gold"}}, ci.FungibleTokens)
	assert.Equal(t, "badge", ci.NonFungibleTokens[0].Name)
	assert.Equal(t, "Clarity2", ci.ClarityVersion)
}
