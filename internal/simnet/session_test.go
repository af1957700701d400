package simnet

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirosystems/clarinet-sub000/internal/cost"
	"github.com/hirosystems/clarinet-sub000/internal/eval"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

const counterSource = `
(define-data-var count uint u0)
(define-map visits principal uint)

(define-public (increment)
  (begin
    (var-set count (+ (var-get count) u1))
    (map-set visits tx-sender (+ (default-to u0 (map-get? visits tx-sender)) u1))
    (print {event: "increment", count: (var-get count)})
    (ok (var-get count))))

(define-public (reset-and-fail)
  (begin
    (var-set count u99)
    (err u500)))

(define-private (bump (n uint))
  (begin (var-set count (+ (var-get count) n)) (ok (var-get count))))

(define-read-only (get-count) (var-get count))
`

func newSession(t *testing.T, cfg Config) (*Session, context.Context) {
	t.Helper()
	ctx := context.Background()
	s, err := New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, ctx
}

func account(t *testing.T, s *Session, name string) value.Principal {
	t.Helper()
	p, ok := s.Account(name)
	require.True(t, ok, "account %s", name)
	return p
}

// TestNew_Genesis tests that block 0 carries the configured balances.
func TestNew_Genesis(t *testing.T) {
	s, ctx := newSession(t, DefaultConfig())

	assert.Equal(t, uint64(0), s.BlockHeight())
	assert.Equal(t, eval.Epoch25, s.CurrentEpoch())

	genesis, err := s.GetBlock(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, genesisParent, genesis.ParentHash)
	assert.Equal(t, uint64(DefaultGenesisTimestamp), genesis.Timestamp)

	assets, err := s.GetAssetsMap(ctx)
	require.NoError(t, err)
	require.Len(t, assets[STXAsset], 4)
	deployer := s.Deployer()
	assert.Equal(t, "u100000000000000", assets[STXAsset][deployer.ID()].String())

	supply, err := s.EvalExpression(ctx, value.Principal{}, "stx-liquid-supply")
	require.NoError(t, err)
	assert.Equal(t, "u400000000000000", supply.String())
}

// TestCounterScenario tests deploy, calls, reads and the receipt of each.
func TestCounterScenario(t *testing.T) {
	s, ctx := newSession(t, DefaultConfig())
	wallet1 := account(t, s, "wallet_1")

	counter, err := s.DeployContract(ctx, "counter", counterSource, s.Deployer())
	require.NoError(t, err)
	assert.Equal(t, s.Deployer().ID()+".counter", counter.ID())
	assert.Equal(t, uint64(1), s.BlockHeight())

	r, err := s.CallPublic(ctx, wallet1, counter, "increment")
	require.NoError(t, err)
	assert.Equal(t, eval.StatusCommittedOk, r.Status)
	assert.Equal(t, "(ok u1)", r.Result.String())
	assert.Equal(t, uint64(2), r.BlockHeight)
	require.Len(t, r.Events, 1)
	assert.Equal(t, eval.PrintEvent, r.Events[0].Type)
	assert.False(t, r.Cost.IsZero())

	r, err = s.CallPublic(ctx, wallet1, counter, "increment")
	require.NoError(t, err)
	assert.Equal(t, "(ok u2)", r.Result.String())

	got, err := s.CallReadOnly(ctx, wallet1, counter, "get-count")
	require.NoError(t, err)
	assert.Equal(t, "u2", got.String())

	v, err := s.GetDataVar(ctx, "counter", "count")
	require.NoError(t, err)
	assert.Equal(t, "u2", v.String())

	entry, err := s.GetMapEntry(ctx, counter.ID(), "visits", wallet1)
	require.NoError(t, err)
	assert.Equal(t, "(some u2)", entry.String())

	entry, err = s.GetMapEntry(ctx, "counter", "visits", s.Deployer())
	require.NoError(t, err)
	assert.Equal(t, "none", entry.String())

	_, err = s.GetDataVar(ctx, "counter", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestErrResultIsRecordedButNotApplied tests that an (err ...) receipt
// still mines a block and leaves state unchanged.
func TestErrResultIsRecordedButNotApplied(t *testing.T) {
	s, ctx := newSession(t, DefaultConfig())
	counter, err := s.DeployContract(ctx, "counter", counterSource, s.Deployer())
	require.NoError(t, err)

	before, err := s.StateDigest(ctx)
	require.NoError(t, err)

	r, err := s.CallPublic(ctx, s.Deployer(), counter, "reset-and-fail")
	require.NoError(t, err)
	assert.Equal(t, eval.StatusRolledBackErr, r.Status)
	assert.Equal(t, "(err u500)", r.Result.String())
	assert.Equal(t, uint64(2), s.BlockHeight())

	after, err := s.StateDigest(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	receipts, err := s.BlockReceipts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(receipts[0], &rec))
	assert.Equal(t, "rolled_back_err", rec["status"])
	assert.Equal(t, "(err u500)", rec["result"])

	height, found, err := s.FindReceipt(ctx, r.TxID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), height)
	assert.JSONEq(t, string(receipts[0]), string(found))
}

// TestPrivateCalls tests that private functions need CallPrivate.
func TestPrivateCalls(t *testing.T) {
	s, ctx := newSession(t, DefaultConfig())
	counter, err := s.DeployContract(ctx, "counter", counterSource, s.Deployer())
	require.NoError(t, err)

	r, err := s.CallPublic(ctx, s.Deployer(), counter, "bump", value.NewUInt(5))
	require.NoError(t, err)
	require.Equal(t, eval.StatusAborted, r.Status)
	assert.Equal(t, eval.CodeNoSuchFunction, r.Fault.Code)

	r, err = s.CallPrivate(ctx, s.Deployer(), counter, "bump", value.NewUInt(5))
	require.NoError(t, err)
	assert.Equal(t, "(ok u5)", r.Result.String())

	_, err = s.CallReadOnly(ctx, s.Deployer(), counter, "bump", value.NewUInt(5))
	assert.True(t, eval.IsRuntimeFault(err))
}

// TestCallReadOnlyNeverCommits tests that a public function called
// read-only leaves no trace.
func TestCallReadOnlyNeverCommits(t *testing.T) {
	s, ctx := newSession(t, DefaultConfig())
	counter, err := s.DeployContract(ctx, "counter", counterSource, s.Deployer())
	require.NoError(t, err)
	before, err := s.StateDigest(ctx)
	require.NoError(t, err)

	got, err := s.CallReadOnly(ctx, s.Deployer(), counter, "increment")
	require.NoError(t, err)
	assert.Equal(t, "(ok u1)", got.String())

	after, err := s.StateDigest(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, uint64(1), s.BlockHeight())
}

// TestDeployContract_Duplicate tests that a second deploy under the same
// name fails.
func TestDeployContract_Duplicate(t *testing.T) {
	s, ctx := newSession(t, DefaultConfig())
	_, err := s.DeployContract(ctx, "counter", counterSource, s.Deployer())
	require.NoError(t, err)

	_, err = s.DeployContract(ctx, "counter", counterSource, s.Deployer())
	require.Error(t, err)
	assert.True(t, eval.IsRuntimeFault(err))

	// Another deployer may reuse the name.
	_, err = s.DeployContract(ctx, "counter", counterSource, account(t, s, "wallet_1"))
	require.NoError(t, err)
}

// TestInsufficientBalance tests an STX transfer larger than the balance.
func TestInsufficientBalance(t *testing.T) {
	s, ctx := newSession(t, DefaultConfig())
	wallet1 := account(t, s, "wallet_1")
	wallet2 := account(t, s, "wallet_2")

	r, err := s.TransferSTX(ctx, wallet1, wallet2, DefaultBalance+1)
	require.NoError(t, err)
	assert.Equal(t, eval.StatusRolledBackErr, r.Status)
	assert.Equal(t, "(err u1)", r.Result.String())
	assert.Empty(t, r.Events)

	b1, err := s.STXBalance(ctx, wallet1)
	require.NoError(t, err)
	assert.Equal(t, "u100000000000000", b1.String())

	r, err = s.TransferSTX(ctx, wallet1, wallet2, 2_500_000)
	require.NoError(t, err)
	assert.Equal(t, "(ok true)", r.Result.String())

	assets, err := s.GetAssetsMap(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u99999997500000", assets[STXAsset][wallet1.ID()].String())
	assert.Equal(t, "u100000002500000", assets[STXAsset][wallet2.ID()].String())
}

// TestMineBlock_TransactionsSeeEarlierWrites tests ordering inside one
// block and isolation of a failing transaction.
func TestMineBlock_TransactionsSeeEarlierWrites(t *testing.T) {
	s, ctx := newSession(t, DefaultConfig())
	deployer := s.Deployer()
	counter, err := value.ContractPrincipal(deployer, "counter")
	require.NoError(t, err)

	receipts, err := s.MineBlock(ctx, []Tx{
		DeployTx(deployer, "counter", counterSource),
		CallTx(deployer, counter, "increment"),
		CallTx(deployer, counter, "reset-and-fail"),
		CallTx(deployer, counter, "increment"),
		CallTx(deployer, counter, "no-such-function"),
	})
	require.NoError(t, err)
	require.Len(t, receipts, 5)

	assert.Equal(t, counter.String(), receipts[0].Result.String())
	assert.Equal(t, "(ok u1)", receipts[1].Result.String())
	assert.Equal(t, eval.StatusRolledBackErr, receipts[2].Status)
	assert.Equal(t, "(ok u2)", receipts[3].Result.String())
	assert.Equal(t, eval.StatusAborted, receipts[4].Status)
	assert.Nil(t, receipts[4].Result)

	ids := map[string]bool{}
	for i, r := range receipts {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, uint64(1), r.BlockHeight)
		ids[r.TxID] = true
	}
	assert.Len(t, ids, 5, "transaction ids are unique")

	blk, err := s.GetBlock(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, blk.TxCount)
}

// TestRollbackTo tests that rolling back restores the state right after
// the target block.
func TestRollbackTo(t *testing.T) {
	s, ctx := newSession(t, DefaultConfig())
	counter, err := s.DeployContract(ctx, "counter", counterSource, s.Deployer())
	require.NoError(t, err)
	checkpoint := s.BlockHeight()
	digest, err := s.StateDigest(ctx)
	require.NoError(t, err)

	for range 3 {
		_, err := s.CallPublic(ctx, s.Deployer(), counter, "increment")
		require.NoError(t, err)
	}
	_, err = s.TransferSTX(ctx, s.Deployer(), account(t, s, "wallet_1"), 1000)
	require.NoError(t, err)

	require.NoError(t, s.RollbackTo(ctx, checkpoint))
	assert.Equal(t, checkpoint, s.BlockHeight())

	got, err := s.StateDigest(ctx)
	require.NoError(t, err)
	assert.Equal(t, digest, got)

	v, err := s.GetDataVar(ctx, "counter", "count")
	require.NoError(t, err)
	assert.Equal(t, "u0", v.String())

	_, err = s.GetBlock(ctx, checkpoint+1)
	assert.Error(t, err)

	// The chain continues from the checkpoint.
	r, err := s.CallPublic(ctx, s.Deployer(), counter, "increment")
	require.NoError(t, err)
	assert.Equal(t, "(ok u1)", r.Result.String())
	assert.Equal(t, checkpoint+1, r.BlockHeight)

	assert.Error(t, s.RollbackTo(ctx, 100))
}

// TestAtBlock tests historical reads through at-block.
func TestAtBlock(t *testing.T) {
	s, ctx := newSession(t, DefaultConfig())
	counter, err := s.DeployContract(ctx, "counter", counterSource, s.Deployer())
	require.NoError(t, err)
	_, err = s.CallPublic(ctx, s.Deployer(), counter, "increment")
	require.NoError(t, err)
	_, err = s.CallPublic(ctx, s.Deployer(), counter, "increment")
	require.NoError(t, err)

	b2, err := s.GetBlock(ctx, 2)
	require.NoError(t, err)

	got, err := s.EvalExpression(ctx, counter, "(at-block "+b2.Hash+" (var-get count))")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.String())

	got, err = s.EvalExpression(ctx, counter, "(at-block "+b2.Hash+" block-height)")
	require.NoError(t, err)
	assert.Equal(t, "u2", got.String())

	got, err = s.EvalExpression(ctx, counter, "(var-get count)")
	require.NoError(t, err)
	assert.Equal(t, "u2", got.String())

	_, err = s.EvalExpression(ctx, counter, "(at-block 0x"+
		"0000000000000000000000000000000000000000000000000000000000000001 (var-get count))")
	require.Error(t, err)
	var f *eval.Fault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, eval.CodeNoSuchBlock, f.Code)

	_, err = s.EvalExpression(ctx, counter, "(at-block "+b2.Hash+" (var-set count u7))")
	require.ErrorAs(t, err, &f)
	assert.Equal(t, eval.CodeWriteInReadOnly, f.Code)
}

// TestBlockInfo tests get-block-info? against committed blocks.
func TestBlockInfo(t *testing.T) {
	s, ctx := newSession(t, DefaultConfig())
	require.NoError(t, s.MineEmptyBlocks(ctx, 3))
	assert.Equal(t, uint64(3), s.BlockHeight())

	b1, err := s.GetBlock(ctx, 1)
	require.NoError(t, err)

	got, err := s.EvalExpression(ctx, value.Principal{}, "(get-block-info? time u1)")
	require.NoError(t, err)
	assert.Equal(t, "(some u1700000600)", got.String())

	got, err = s.EvalExpression(ctx, value.Principal{}, "(get-block-info? id-header-hash u1)")
	require.NoError(t, err)
	assert.Equal(t, "(some "+b1.Hash+")", got.String())

	got, err = s.EvalExpression(ctx, value.Principal{}, "(get-block-info? time u4)")
	require.NoError(t, err)
	assert.Equal(t, "none", got.String())

	got, err = s.EvalExpression(ctx, value.Principal{}, "(list block-height burn-block-height)")
	require.NoError(t, err)
	assert.Equal(t, "(list u4 u104)", got.String())
}

// TestEpochActivation tests that epoch-gated names follow the configured
// activation heights.
func TestEpochActivation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Epochs = []Activation{
		{Epoch: string(eval.Epoch25), Height: 0},
		{Epoch: string(eval.Epoch30), Height: 3},
	}
	s, ctx := newSession(t, cfg)
	assert.Equal(t, eval.Epoch25, s.CurrentEpoch())

	_, err := s.EvalExpression(ctx, value.Principal{}, "stacks-block-height")
	var f *eval.Fault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, eval.CodeEpoch, f.Code)

	require.NoError(t, s.MineEmptyBlocks(ctx, 2))
	assert.Equal(t, eval.Epoch30, s.CurrentEpoch())

	got, err := s.EvalExpression(ctx, value.Principal{}, "(list stacks-block-height tenure-height block-height)")
	require.NoError(t, err)
	assert.Equal(t, "(list u3 u3 u3)", got.String())

	_, err = s.EvalExpression(ctx, value.Principal{}, "(get-block-info? time u1)")
	require.ErrorAs(t, err, &f)
	assert.Equal(t, eval.CodeEpoch, f.Code)

	blk, err := s.GetBlock(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "2.5", blk.Epoch)
}

// TestContractInterface tests interface extraction through the session.
func TestContractInterface(t *testing.T) {
	s, ctx := newSession(t, DefaultConfig())
	_, err := s.DeployContract(ctx, "counter", counterSource, s.Deployer())
	require.NoError(t, err)

	iface, err := s.GetContractInterface(ctx, "counter")
	require.NoError(t, err)
	names := map[string]eval.Access{}
	for _, fn := range iface.Functions {
		names[fn.Name] = fn.Access
	}
	assert.Equal(t, map[string]eval.Access{
		"increment":      eval.AccessPublic,
		"reset-and-fail": eval.AccessPublic,
		"bump":           eval.AccessPrivate,
		"get-count":      eval.AccessReadOnly,
	}, names)
	require.Len(t, iface.Maps, 1)
	assert.Equal(t, "visits", iface.Maps[0].Name)

	_, err = s.GetContractInterface(ctx, "nothing-here")
	assert.Error(t, err)
}

// TestCostMonotonicity tests that more work never costs less.
func TestCostMonotonicity(t *testing.T) {
	s, ctx := newSession(t, DefaultConfig())
	looper, err := s.DeployContract(ctx, "looper", `
(define-public (sum (xs (list 100 uint)))
  (ok (fold + xs u0)))
`, s.Deployer())
	require.NoError(t, err)

	var prev cost.ExecutionCost
	for i, n := range []int{0, 1, 10, 50, 100} {
		xs := make([]value.Value, n)
		for j := range xs {
			xs[j] = value.NewUInt(uint64(j))
		}
		list, err := value.NewList(xs)
		require.NoError(t, err)
		r, err := s.CallPublic(ctx, s.Deployer(), looper, "sum", list)
		require.NoError(t, err)
		require.Equal(t, eval.StatusCommittedOk, r.Status, "%v", r.Fault)
		if i > 0 {
			assert.True(t, prev.LessOrEqual(r.Cost), "n=%d: %s > %s", n, prev, r.Cost)
			assert.Greater(t, r.Cost.Runtime, prev.Runtime, "n=%d", n)
		}
		prev = r.Cost
	}
}

// scenarioTrace runs a fixed mix of transactions on a fresh session and
// returns the canonical receipts, block hashes and final digest.
func scenarioTrace(t *testing.T) []byte {
	t.Helper()
	s, ctx := newSession(t, DefaultConfig())
	deployer := s.Deployer()
	wallet1 := account(t, s, "wallet_1")
	wallet2 := account(t, s, "wallet_2")
	counter, err := value.ContractPrincipal(deployer, "counter")
	require.NoError(t, err)

	blocks := [][]Tx{
		{DeployTx(deployer, "counter", counterSource)},
		{
			CallTx(wallet1, counter, "increment"),
			CallTx(wallet2, counter, "increment"),
			TransferTx(wallet1, wallet2, 1_000_000),
		},
		{CallTx(wallet1, counter, "reset-and-fail"), TransferTx(wallet2, wallet2, 5)},
		nil,
	}
	var trace []any
	for _, txs := range blocks {
		receipts, err := s.MineBlock(ctx, txs)
		require.NoError(t, err)
		blk, err := s.GetBlock(ctx, s.BlockHeight())
		require.NoError(t, err)
		rs := make([]any, len(receipts))
		for i, r := range receipts {
			rs[i] = r.Canonical()
		}
		trace = append(trace, map[string]any{
			"height":   blk.Height,
			"hash":     blk.Hash,
			"receipts": rs,
		})
	}
	digest, err := s.StateDigest(ctx)
	require.NoError(t, err)

	out, err := value.MarshalCanonical(map[string]any{"blocks": trace, "digest": digest})
	require.NoError(t, err)
	return out
}

// TestDeterminism tests that two sessions fed the same transactions
// produce byte-identical traces.
func TestDeterminism(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir(filepath.Join(t.TempDir(), "golden")),
		goldie.WithNameSuffix(".golden"),
	)
	require.NoError(t, g.Update(t, "scenario", scenarioTrace(t)))
	g.Assert(t, "scenario", scenarioTrace(t))
}

const badgeSource = `
(define-non-fungible-token badge uint)
(define-public (mint (id uint) (to principal)) (nft-mint? badge id to))
(define-public (give (id uint) (to principal)) (nft-transfer? badge id tx-sender to))
(define-public (burn (id uint)) (nft-burn? badge id tx-sender))
`

// TestAssetsMap_NonFungible tests that the assets map counts the
// non-fungible assets held by each owner.
func TestAssetsMap_NonFungible(t *testing.T) {
	s, ctx := newSession(t, DefaultConfig())
	deployer := s.Deployer()
	wallet1 := account(t, s, "wallet_1")
	wallet2 := account(t, s, "wallet_2")
	badge, err := s.DeployContract(ctx, "badge", badgeSource, deployer)
	require.NoError(t, err)

	for _, id := range []uint64{1, 2, 3} {
		r, err := s.CallPublic(ctx, deployer, badge, "mint", value.NewUInt(id), wallet1)
		require.NoError(t, err)
		require.Equal(t, "(ok true)", r.Result.String())
	}
	r, err := s.CallPublic(ctx, wallet1, badge, "give", value.NewUInt(2), wallet2)
	require.NoError(t, err)
	require.Equal(t, "(ok true)", r.Result.String())
	r, err = s.CallPublic(ctx, wallet1, badge, "burn", value.NewUInt(3))
	require.NoError(t, err)
	require.Equal(t, "(ok true)", r.Result.String())

	assets, err := s.GetAssetsMap(ctx)
	require.NoError(t, err)
	held := assets[badge.ID()+".badge"]
	require.Len(t, held, 2)
	assert.Equal(t, "u1", held[wallet1.ID()].String())
	assert.Equal(t, "u1", held[wallet2.ID()].String())
}
