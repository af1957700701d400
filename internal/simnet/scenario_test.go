package simnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirosystems/clarinet-sub000/internal/checker"
	"github.com/hirosystems/clarinet-sub000/internal/eval"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

const perPrincipalCounter = `
(define-map counts principal uint)

(define-read-only (get-count (who principal))
  (default-to u0 (map-get? counts who)))

(define-public (count-up)
  (ok (map-set counts tx-sender (+ (get-count tx-sender) u1))))
`

// TestScenario_CounterRollback counts up in three blocks, then rolls back
// to the block before the first call.
func TestScenario_CounterRollback(t *testing.T) {
	s, ctx := newSession(t, DefaultConfig())
	p := account(t, s, "wallet_1")

	counter, err := s.DeployContract(ctx, "counter", perPrincipalCounter, s.Deployer())
	require.NoError(t, err)
	beforeCalls := s.BlockHeight()

	for i := range 3 {
		r, err := s.CallPublic(ctx, p, counter, "count-up")
		require.NoError(t, err)
		require.True(t, r.Committed(), "call %d: %v", i, r.Fault)
		assert.Equal(t, beforeCalls+uint64(i)+1, r.BlockHeight)
	}

	got, err := s.CallReadOnly(ctx, p, counter, "get-count", p)
	require.NoError(t, err)
	assert.Equal(t, "u3", got.String())

	require.NoError(t, s.RollbackTo(ctx, beforeCalls))

	got, err = s.CallReadOnly(ctx, p, counter, "get-count", p)
	require.NoError(t, err)
	assert.Equal(t, "u0", got.String())
}

const tokenSource = `
(define-fungible-token gold)

(define-public (mint (amount uint) (to principal))
  (ft-mint? gold amount to))

(define-public (transfer (amount uint) (to principal))
  (ft-transfer? gold amount tx-sender to))

(define-public (burn (amount uint))
  (ft-burn? gold amount tx-sender))

(define-read-only (balance-of (who principal))
  (ft-get-balance gold who))

(define-read-only (supply)
  (ft-get-supply gold))
`

func tokenBalance(t *testing.T, s *Session, token, who value.Principal) string {
	t.Helper()
	v, err := s.CallReadOnly(t.Context(), who, token, "balance-of", who)
	require.NoError(t, err)
	return v.String()
}

// TestScenario_InsufficientTokenBalance transfers more than the sender
// holds.
func TestScenario_InsufficientTokenBalance(t *testing.T) {
	s, ctx := newSession(t, DefaultConfig())
	a := account(t, s, "wallet_1")
	b := account(t, s, "wallet_2")

	token, err := s.DeployContract(ctx, "token", tokenSource, s.Deployer())
	require.NoError(t, err)
	r, err := s.CallPublic(ctx, s.Deployer(), token, "mint", value.NewUInt(50), a)
	require.NoError(t, err)
	require.Equal(t, "(ok true)", r.Result.String())

	r, err = s.CallPublic(ctx, a, token, "transfer", value.NewUInt(100), b)
	require.NoError(t, err)
	assert.Equal(t, eval.StatusRolledBackErr, r.Status)
	assert.Equal(t, "(err u1)", r.Result.String())
	assert.Empty(t, r.Events)

	assert.Equal(t, "u50", tokenBalance(t, s, token, a))
	assert.Equal(t, "u0", tokenBalance(t, s, token, b))
}

// TestScenario_TokenConservation checks that balances always sum to the
// minted amount less the burned amount.
func TestScenario_TokenConservation(t *testing.T) {
	s, ctx := newSession(t, DefaultConfig())
	deployer := s.Deployer()
	a := account(t, s, "wallet_1")
	b := account(t, s, "wallet_2")
	c := account(t, s, "wallet_3")

	token, err := value.ContractPrincipal(deployer, "token")
	require.NoError(t, err)
	blocks := [][]Tx{
		{DeployTx(deployer, "token", tokenSource)},
		{
			CallTx(deployer, token, "mint", value.NewUInt(1000), a),
			CallTx(deployer, token, "mint", value.NewUInt(300), b),
		},
		{
			CallTx(a, token, "transfer", value.NewUInt(250), c),
			CallTx(b, token, "transfer", value.NewUInt(301), c),
			CallTx(c, token, "burn", value.NewUInt(50)),
		},
		{
			CallTx(b, token, "burn", value.NewUInt(300)),
			CallTx(a, token, "transfer", value.NewUInt(0), b),
			CallTx(c, token, "transfer", value.NewUInt(200), a),
		},
	}
	var minted, burned uint64 = 1300, 0
	for _, txs := range blocks {
		receipts, err := s.MineBlock(ctx, txs)
		require.NoError(t, err)
		for i, r := range receipts {
			if txs[i].Function == "burn" && r.Status == eval.StatusCommittedOk {
				n, _ := txs[i].Args[0].(value.UInt).Uint64()
				burned += n
			}
		}
	}
	assert.Equal(t, uint64(350), burned)

	assets, err := s.GetAssetsMap(ctx)
	require.NoError(t, err)
	var sum uint64
	for _, bal := range assets[token.ID()+".gold"] {
		n, ok := bal.Uint64()
		require.True(t, ok)
		sum += n
	}
	assert.Equal(t, minted-burned, sum)

	supply, err := s.CallReadOnly(ctx, deployer, token, "supply")
	require.NoError(t, err)
	assert.Equal(t, value.NewUInt(minted-burned).String(), supply.String())

	assert.Equal(t, "u950", tokenBalance(t, s, token, a))
	assert.Equal(t, "u0", tokenBalance(t, s, token, b))
	assert.Equal(t, "u0", tokenBalance(t, s, token, c))
}

// TestRunCheckChecker tests that the session hands contracts to the
// check-checker unchanged.
func TestRunCheckChecker(t *testing.T) {
	s, _ := newSession(t, DefaultConfig())
	src := `(define-public (send (recipient principal))
  (stx-transfer? u100 tx-sender recipient))`

	diags, err := s.RunCheckChecker("send", src, checker.Config{})
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, checker.CodeUncheckedData, diags[0].Code)

	_, err = s.RunCheckChecker("broken", "(define-public", checker.Config{})
	assert.Error(t, err)
}
