package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirosystems/clarinet-sub000/internal/store"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

const tokenSource = `
(define-fungible-token gold u1000)
(define-non-fungible-token badge uint)

(define-public (mint (amount uint) (to principal))
  (ft-mint? gold amount to))

(define-public (send (amount uint) (to principal))
  (ft-transfer? gold amount tx-sender to))

(define-public (burn (amount uint))
  (ft-burn? gold amount tx-sender))

(define-public (mint-badge (id uint) (to principal))
  (nft-mint? badge id to))

(define-public (give-badge (id uint) (to principal))
  (nft-transfer? badge id tx-sender to))

(define-public (burn-badge (id uint))
  (nft-burn? badge id tx-sender))

(define-read-only (balance-of (who principal))
  (ft-get-balance gold who))

(define-read-only (supply)
  (ft-get-supply gold))

(define-read-only (owner-of (id uint))
  (nft-get-owner? badge id))
`

// TestSTXTransferCodes tests the error codes of STX transfers.
func TestSTXTransferCodes(t *testing.T) {
	c := newTestChain(t)
	tests := []struct {
		name   string
		amount uint64
		to     value.Principal
		want   string
	}{
		{"ok", 100, wallet2, "(ok true)"},
		{"insufficient", 10_000_000, wallet2, "(err u1)"},
		{"self", 100, wallet1, "(err u2)"},
		{"zero", 0, wallet2, "(err u3)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := c.ev.TransferSTX(c.ctx, c.block, c.as(wallet1), value.NewUInt(tt.amount), tt.to, nil)
			assert.Equal(t, tt.want, out.Value.String())
		})
	}
	assert.Equal(t, "u999900", c.balance(wallet1))
	assert.Equal(t, "u1000100", c.balance(wallet2))

	out := c.ev.EvalExpression(c.ctx, c.block, c.as(wallet1), value.Principal{},
		"(stx-transfer? u5 '"+wallet2.ID()+" '"+deployer.ID()+")")
	assert.Equal(t, "(err u4)", out.Value.String())
	assert.Equal(t, StatusRolledBackErr, out.Status)
}

// TestSTXTransferEvent tests the event and memo of a committed transfer.
func TestSTXTransferEvent(t *testing.T) {
	c := newTestChain(t)
	out := c.ev.EvalExpression(c.ctx, c.block, c.as(wallet1), value.Principal{},
		"(stx-transfer-memo? u10 tx-sender '"+wallet2.ID()+" 0x6869)")
	require.Equal(t, StatusCommittedOk, out.Status, "%v", out.Fault)
	require.Len(t, out.Events, 1)
	ev := out.Events[0]
	assert.Equal(t, STXTransferEvent, ev.Type)
	assert.Equal(t, "10", ev.Amount)
	assert.Equal(t, []byte("hi"), ev.Memo)
	assert.Equal(t, map[string]any{
		"type":      "stx_transfer_event",
		"sender":    wallet1.ID(),
		"recipient": wallet2.ID(),
		"amount":    "10",
		"memo":      "0x6869",
	}, ev.Canonical())
}

// TestSTXBurnReducesLiquidSupply tests stx-burn? and stx-liquid-supply.
func TestSTXBurnReducesLiquidSupply(t *testing.T) {
	c := newTestChain(t)
	require.NoError(t, c.block.Put(store.KeySTXLiquidSupply, value.Serialize(value.NewUInt(3_000_000))))

	out := c.ev.EvalExpression(c.ctx, c.block, c.as(wallet1), value.Principal{},
		"(begin (try! (stx-burn? u500 tx-sender)) (ok stx-liquid-supply))")
	require.Equal(t, StatusCommittedOk, out.Status, "%v", out.Fault)
	assert.Equal(t, "(ok u2999500)", out.Value.String())
	assert.Equal(t, "u999500", c.balance(wallet1))
}

// TestFungibleTokenConservation tests that supply equals the sum of balances.
func TestFungibleTokenConservation(t *testing.T) {
	c := newTestChain(t)
	token := c.deploy("token", tokenSource)

	steps := []struct {
		sender value.Principal
		fn     string
		args   []value.Value
		want   string
	}{
		{deployer, "mint", []value.Value{value.NewUInt(600), wallet1}, "(ok true)"},
		{deployer, "mint", []value.Value{value.NewUInt(0), wallet1}, "(err u1)"},
		{wallet1, "send", []value.Value{value.NewUInt(250), wallet2}, "(ok true)"},
		{wallet1, "send", []value.Value{value.NewUInt(1000), wallet2}, "(err u1)"},
		{wallet1, "send", []value.Value{value.NewUInt(1), wallet1}, "(err u2)"},
		{wallet1, "send", []value.Value{value.NewUInt(0), wallet2}, "(err u3)"},
		{wallet2, "burn", []value.Value{value.NewUInt(50)}, "(ok true)"},
		{wallet2, "burn", []value.Value{value.NewUInt(500)}, "(err u1)"},
	}
	for i, s := range steps {
		out := c.call(s.sender, token, s.fn, s.args...)
		require.NotNil(t, out.Value, "step %d: %v", i, out.Fault)
		assert.Equal(t, s.want, out.Value.String(), "step %d", i)
	}

	read := func(fn string, args ...value.Value) string {
		out := c.ev.Call(c.ctx, c.block, c.env, token, fn, args, CallReadOnly)
		require.Equal(t, StatusCommittedOk, out.Status, "%v", out.Fault)
		return out.Value.String()
	}
	assert.Equal(t, "u350", read("balance-of", wallet1))
	assert.Equal(t, "u200", read("balance-of", wallet2))
	assert.Equal(t, "u550", read("supply"))

	out := c.call(deployer, token, "mint", value.NewUInt(451), wallet1)
	require.Equal(t, StatusAborted, out.Status)
	assert.Equal(t, CodeSupplyOverflow, out.Fault.Code)
	assert.Equal(t, "u550", read("supply"))
}

// TestNonFungibleTokenCodes tests the error codes of NFT operations.
func TestNonFungibleTokenCodes(t *testing.T) {
	c := newTestChain(t)
	token := c.deploy("token", tokenSource)

	steps := []struct {
		sender value.Principal
		fn     string
		args   []value.Value
		want   string
	}{
		{deployer, "mint-badge", []value.Value{value.NewUInt(1), wallet1}, "(ok true)"},
		{deployer, "mint-badge", []value.Value{value.NewUInt(1), wallet2}, "(err u1)"},
		{wallet2, "give-badge", []value.Value{value.NewUInt(1), deployer}, "(err u1)"},
		{wallet1, "give-badge", []value.Value{value.NewUInt(1), wallet1}, "(err u2)"},
		{wallet1, "give-badge", []value.Value{value.NewUInt(9), wallet2}, "(err u3)"},
		{wallet1, "give-badge", []value.Value{value.NewUInt(1), wallet2}, "(ok true)"},
		{wallet1, "burn-badge", []value.Value{value.NewUInt(1)}, "(err u1)"},
		{wallet2, "burn-badge", []value.Value{value.NewUInt(9)}, "(err u3)"},
	}
	for i, s := range steps {
		out := c.call(s.sender, token, s.fn, s.args...)
		require.NotNil(t, out.Value, "step %d: %v", i, out.Fault)
		assert.Equal(t, s.want, out.Value.String(), "step %d", i)
	}

	out := c.ev.Call(c.ctx, c.block, c.env, token, "owner-of", []value.Value{value.NewUInt(1)}, CallReadOnly)
	require.Equal(t, StatusCommittedOk, out.Status)
	assert.Equal(t, "(some "+wallet2.String()+")", out.Value.String())

	out = c.call(wallet2, token, "burn-badge", value.NewUInt(1))
	require.Equal(t, StatusCommittedOk, out.Status)
	require.Len(t, out.Events, 1)
	assert.Equal(t, NFTBurnEvent, out.Events[0].Type)
	assert.Equal(t, token.ID()+"::badge", out.Events[0].Asset)
}

// TestAsContract tests that as-contract switches the sender for its body only.
func TestAsContract(t *testing.T) {
	c := newTestChain(t)
	vault := c.deploy("vault", `
(define-public (deposit (amount uint))
  (stx-transfer? amount tx-sender (as-contract tx-sender)))

(define-public (withdraw (amount uint))
  (let ((user tx-sender))
    (as-contract (stx-transfer? amount tx-sender user))))

(define-read-only (whoami)
  (list tx-sender (as-contract tx-sender) contract-caller (as-contract contract-caller) tx-sender))
`)

	out := c.call(wallet1, vault, "deposit", value.NewUInt(1000))
	require.Equal(t, StatusCommittedOk, out.Status, "%v", out.Fault)
	assert.Equal(t, "u1000", c.balance(vault))

	out = c.call(wallet1, vault, "withdraw", value.NewUInt(400))
	require.Equal(t, StatusCommittedOk, out.Status, "%v", out.Fault)
	assert.Equal(t, "u600", c.balance(vault))
	assert.Equal(t, "u999400", c.balance(wallet1))
	require.Len(t, out.Events, 1)
	assert.Equal(t, vault.ID(), out.Events[0].Sender)

	out = c.ev.Call(c.ctx, c.block, c.as(wallet1), vault, "whoami", nil, CallReadOnly)
	require.Equal(t, StatusCommittedOk, out.Status, "%v", out.Fault)
	want := value.MustList(wallet1, vault, wallet1, vault, wallet1)
	assert.Equal(t, want.String(), out.Value.String())
}
