package eval

import (
	"github.com/hirosystems/clarinet-sub000/internal/ast"
	"github.com/hirosystems/clarinet-sub000/internal/cost"
	"github.com/hirosystems/clarinet-sub000/internal/store"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

func init() {
	specialForms["ft-get-balance"] = ftGetBalance
	specialForms["ft-get-supply"] = ftGetSupply
	specialForms["ft-mint?"] = ftMint
	specialForms["ft-transfer?"] = ftTransfer
	specialForms["ft-burn?"] = ftBurn
	specialForms["nft-get-owner?"] = nftGetOwner
	specialForms["nft-mint?"] = nftMint
	specialForms["nft-transfer?"] = nftTransfer
	specialForms["nft-burn?"] = nftBurn
	for _, name := range []string{
		"ft-get-balance", "ft-get-supply", "ft-mint?", "ft-transfer?", "ft-burn?",
		"nft-get-owner?", "nft-mint?", "nft-transfer?", "nft-burn?",
	} {
		sizedForms[name] = true
	}

	natives["stx-get-balance"] = native{min: 1, max: 1, fn: stxGetBalance}
	natives["stx-account"] = native{min: 1, max: 1, fn: stxAccount}
	natives["stx-transfer?"] = native{min: 3, max: 3, fn: stxTransfer}
	natives["stx-transfer-memo?"] = native{min: 4, max: 4, sized: true, fn: stxTransfer}
	natives["stx-burn?"] = native{min: 2, max: 2, fn: stxBurn}
}

func errCode(n uint64) value.Value { return value.Err(value.NewUInt(n)) }

var okTrue = value.Ok(value.Bool(true))

func asPrincipal(v value.Value, what string) (value.Principal, error) {
	p, ok := v.(value.Principal)
	if !ok {
		return value.Principal{}, typeErrorf("%s expects a principal, got %s", what, v.Type())
	}
	return p, nil
}

func asAmount(v value.Value, what string) (value.UInt, error) {
	u, ok := v.(value.UInt)
	if !ok {
		return value.UInt{}, typeErrorf("%s expects a uint amount, got %s", what, v.Type())
	}
	return u, nil
}

func add(a, b value.UInt) (value.UInt, error) {
	v, err := value.Arith(value.OpAdd, a, b)
	if err != nil {
		return value.UInt{}, err
	}
	return v.(value.UInt), nil
}

func sub(a, b value.UInt) (value.UInt, error) {
	v, err := value.Arith(value.OpSub, a, b)
	if err != nil {
		return value.UInt{}, err
	}
	return v.(value.UInt), nil
}

func (x *execState) fungible(cc *callCtx, n *ast.Node) (*FungibleToken, error) {
	if n.Kind != ast.KindAtom {
		return nil, faultf(CodeInvalidSyntax, "expected a token name")
	}
	ft, ok := cc.contract.FTs[n.Name]
	if !ok {
		return nil, faultf(CodeUndefinedName, "no fungible token named %q", n.Name)
	}
	return ft, nil
}

func (x *execState) nonFungible(cc *callCtx, n *ast.Node) (*NonFungibleToken, error) {
	if n.Kind != ast.KindAtom {
		return nil, faultf(CodeInvalidSyntax, "expected a token name")
	}
	nft, ok := cc.contract.NFTs[n.Name]
	if !ok {
		return nil, faultf(CodeUndefinedName, "no non-fungible token named %q", n.Name)
	}
	return nft, nil
}

func assetID(cc *callCtx, token string) string {
	return cc.contract.ID.ID() + "::" + token
}

func ftGetBalance(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("ft-get-balance", args, 2, 2); err != nil {
		return nil, err
	}
	ft, err := x.fungible(cc, args[0])
	if err != nil {
		return nil, err
	}
	v, err := x.eval(cc, b, args[1])
	if err != nil {
		return nil, err
	}
	owner, err := asPrincipal(v, "ft-get-balance")
	if err != nil {
		return nil, err
	}
	bal, err := x.readUInt(store.FTBalanceKey(cc.contract.ID.ID(), ft.Name, owner.ID()))
	if err != nil {
		return nil, err
	}
	if err := x.chargeSized("ft-get-balance", owner, bal); err != nil {
		return nil, err
	}
	return bal, nil
}

func ftGetSupply(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("ft-get-supply", args, 1, 1); err != nil {
		return nil, err
	}
	ft, err := x.fungible(cc, args[0])
	if err != nil {
		return nil, err
	}
	supply, err := x.readUInt(store.FTSupplyKey(cc.contract.ID.ID(), ft.Name))
	if err != nil {
		return nil, err
	}
	if err := x.chargeSized("ft-get-supply", supply); err != nil {
		return nil, err
	}
	return supply, nil
}

// (ft-mint? token amount recipient)
// err u1: amount is zero. Minting past the declared supply faults.
func ftMint(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("ft-mint?", args, 3, 3); err != nil {
		return nil, err
	}
	ft, err := x.fungible(cc, args[0])
	if err != nil {
		return nil, err
	}
	vals, err := x.evalAll(cc, b, args[1:])
	if err != nil {
		return nil, err
	}
	if err := x.chargeSized("ft-mint?", vals...); err != nil {
		return nil, err
	}
	amount, err := asAmount(vals[0], "ft-mint?")
	if err != nil {
		return nil, err
	}
	recipient, err := asPrincipal(vals[1], "ft-mint?")
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return errCode(1), nil
	}

	id := cc.contract.ID.ID()
	supply, err := x.readUInt(store.FTSupplyKey(id, ft.Name))
	if err != nil {
		return nil, err
	}
	newSupply, err := add(supply, amount)
	if err != nil {
		return nil, faultf(CodeSupplyOverflow, "supply of %s overflows", ft.Name)
	}
	if ft.Supply != nil {
		limit, err := x.readUInt(store.FTCapKey(id, ft.Name))
		if err != nil {
			return nil, err
		}
		if newSupply.Cmp(limit) > 0 {
			return nil, faultf(CodeSupplyOverflow, "minting %s of %s exceeds the supply of %s", amount, ft.Name, limit)
		}
	}
	balKey := store.FTBalanceKey(id, ft.Name, recipient.ID())
	bal, err := x.readUInt(balKey)
	if err != nil {
		return nil, err
	}
	newBal, err := add(bal, amount)
	if err != nil {
		return nil, err
	}
	if err := x.write(cc, store.FTSupplyKey(id, ft.Name), newSupply); err != nil {
		return nil, err
	}
	if err := x.write(cc, balKey, newBal); err != nil {
		return nil, err
	}
	x.emit(Event{
		Type:      FTMintEvent,
		Contract:  id,
		Asset:     assetID(cc, ft.Name),
		Recipient: recipient.ID(),
		Amount:    amount.Decimal(),
	})
	return okTrue, nil
}

// (ft-transfer? token amount sender recipient)
// err u1: insufficient balance, u2: sender is recipient, u3: zero amount.
func ftTransfer(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("ft-transfer?", args, 4, 4); err != nil {
		return nil, err
	}
	ft, err := x.fungible(cc, args[0])
	if err != nil {
		return nil, err
	}
	vals, err := x.evalAll(cc, b, args[1:])
	if err != nil {
		return nil, err
	}
	if err := x.chargeSized("ft-transfer?", vals...); err != nil {
		return nil, err
	}
	amount, err := asAmount(vals[0], "ft-transfer?")
	if err != nil {
		return nil, err
	}
	sender, err := asPrincipal(vals[1], "ft-transfer?")
	if err != nil {
		return nil, err
	}
	recipient, err := asPrincipal(vals[2], "ft-transfer?")
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return errCode(3), nil
	}
	if sender == recipient {
		return errCode(2), nil
	}

	id := cc.contract.ID.ID()
	fromKey := store.FTBalanceKey(id, ft.Name, sender.ID())
	toKey := store.FTBalanceKey(id, ft.Name, recipient.ID())
	from, err := x.readUInt(fromKey)
	if err != nil {
		return nil, err
	}
	if from.Cmp(amount) < 0 {
		return errCode(1), nil
	}
	to, err := x.readUInt(toKey)
	if err != nil {
		return nil, err
	}
	newFrom, err := sub(from, amount)
	if err != nil {
		return nil, err
	}
	newTo, err := add(to, amount)
	if err != nil {
		return nil, err
	}
	if err := x.write(cc, fromKey, newFrom); err != nil {
		return nil, err
	}
	if err := x.write(cc, toKey, newTo); err != nil {
		return nil, err
	}
	x.emit(Event{
		Type:      FTTransferEvent,
		Contract:  id,
		Asset:     assetID(cc, ft.Name),
		Sender:    sender.ID(),
		Recipient: recipient.ID(),
		Amount:    amount.Decimal(),
	})
	return okTrue, nil
}

// (ft-burn? token amount sender)
// err u1: zero amount or insufficient balance.
func ftBurn(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("ft-burn?", args, 3, 3); err != nil {
		return nil, err
	}
	ft, err := x.fungible(cc, args[0])
	if err != nil {
		return nil, err
	}
	vals, err := x.evalAll(cc, b, args[1:])
	if err != nil {
		return nil, err
	}
	if err := x.chargeSized("ft-burn?", vals...); err != nil {
		return nil, err
	}
	amount, err := asAmount(vals[0], "ft-burn?")
	if err != nil {
		return nil, err
	}
	sender, err := asPrincipal(vals[1], "ft-burn?")
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return errCode(1), nil
	}

	id := cc.contract.ID.ID()
	balKey := store.FTBalanceKey(id, ft.Name, sender.ID())
	bal, err := x.readUInt(balKey)
	if err != nil {
		return nil, err
	}
	if bal.Cmp(amount) < 0 {
		return errCode(1), nil
	}
	supply, err := x.readUInt(store.FTSupplyKey(id, ft.Name))
	if err != nil {
		return nil, err
	}
	newBal, err := sub(bal, amount)
	if err != nil {
		return nil, err
	}
	newSupply, err := sub(supply, amount)
	if err != nil {
		return nil, err
	}
	if err := x.write(cc, balKey, newBal); err != nil {
		return nil, err
	}
	if err := x.write(cc, store.FTSupplyKey(id, ft.Name), newSupply); err != nil {
		return nil, err
	}
	x.emit(Event{
		Type:     FTBurnEvent,
		Contract: id,
		Asset:    assetID(cc, ft.Name),
		Sender:   sender.ID(),
		Amount:   amount.Decimal(),
	})
	return okTrue, nil
}

// nftKey evaluates and type checks an asset identifier.
func (x *execState) nftKey(cc *callCtx, b *bindings, nft *NonFungibleToken, n *ast.Node) (string, value.Value, error) {
	asset, err := x.eval(cc, b, n)
	if err != nil {
		return "", nil, err
	}
	ok, err := x.typeCheck(cost.OpTypeCheck, nft.Asset, asset)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, typeErrorf("token %s expects %s, got %s", nft.Name, nft.Asset, asset.Type())
	}
	return store.NFTOwnerKey(cc.contract.ID.ID(), nft.Name, value.Serialize(asset)), asset, nil
}

func (x *execState) nftOwner(key string) (value.Principal, bool, error) {
	v, ok, err := x.read(key)
	if err != nil || !ok {
		return value.Principal{}, false, err
	}
	p, isPrincipal := v.(value.Principal)
	if !isPrincipal {
		return value.Principal{}, false, typeErrorf("owner record %s holds %s", key, v.Type())
	}
	return p, true, nil
}

func nftGetOwner(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("nft-get-owner?", args, 2, 2); err != nil {
		return nil, err
	}
	nft, err := x.nonFungible(cc, args[0])
	if err != nil {
		return nil, err
	}
	key, asset, err := x.nftKey(cc, b, nft, args[1])
	if err != nil {
		return nil, err
	}
	owner, ok, err := x.nftOwner(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return value.None(), x.chargeSized("nft-get-owner?", asset)
	}
	if err := x.chargeSized("nft-get-owner?", asset, owner); err != nil {
		return nil, err
	}
	return value.Some(owner), nil
}

// (nft-mint? token id recipient)
// err u1: the asset already exists.
func nftMint(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("nft-mint?", args, 3, 3); err != nil {
		return nil, err
	}
	nft, err := x.nonFungible(cc, args[0])
	if err != nil {
		return nil, err
	}
	key, asset, err := x.nftKey(cc, b, nft, args[1])
	if err != nil {
		return nil, err
	}
	v, err := x.eval(cc, b, args[2])
	if err != nil {
		return nil, err
	}
	recipient, err := asPrincipal(v, "nft-mint?")
	if err != nil {
		return nil, err
	}
	if err := x.chargeSized("nft-mint?", asset, recipient); err != nil {
		return nil, err
	}
	if _, exists, err := x.nftOwner(key); err != nil {
		return nil, err
	} else if exists {
		return errCode(1), nil
	}
	if err := x.write(cc, key, recipient); err != nil {
		return nil, err
	}
	x.emit(Event{
		Type:      NFTMintEvent,
		Contract:  cc.contract.ID.ID(),
		Asset:     assetID(cc, nft.Name),
		Recipient: recipient.ID(),
		Value:     asset,
	})
	return okTrue, nil
}

// (nft-transfer? token id sender recipient)
// err u1: sender does not own it, u2: sender is recipient, u3: no such
// asset.
func nftTransfer(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("nft-transfer?", args, 4, 4); err != nil {
		return nil, err
	}
	nft, err := x.nonFungible(cc, args[0])
	if err != nil {
		return nil, err
	}
	key, asset, err := x.nftKey(cc, b, nft, args[1])
	if err != nil {
		return nil, err
	}
	vals, err := x.evalAll(cc, b, args[2:])
	if err != nil {
		return nil, err
	}
	if err := x.chargeSized("nft-transfer?", append([]value.Value{asset}, vals...)...); err != nil {
		return nil, err
	}
	sender, err := asPrincipal(vals[0], "nft-transfer?")
	if err != nil {
		return nil, err
	}
	recipient, err := asPrincipal(vals[1], "nft-transfer?")
	if err != nil {
		return nil, err
	}
	if sender == recipient {
		return errCode(2), nil
	}
	owner, exists, err := x.nftOwner(key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return errCode(3), nil
	}
	if owner != sender {
		return errCode(1), nil
	}
	if err := x.write(cc, key, recipient); err != nil {
		return nil, err
	}
	x.emit(Event{
		Type:      NFTTransferEvent,
		Contract:  cc.contract.ID.ID(),
		Asset:     assetID(cc, nft.Name),
		Sender:    sender.ID(),
		Recipient: recipient.ID(),
		Value:     asset,
	})
	return okTrue, nil
}

// (nft-burn? token id sender)
// err u1: sender does not own it, u3: no such asset.
func nftBurn(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("nft-burn?", args, 3, 3); err != nil {
		return nil, err
	}
	nft, err := x.nonFungible(cc, args[0])
	if err != nil {
		return nil, err
	}
	key, asset, err := x.nftKey(cc, b, nft, args[1])
	if err != nil {
		return nil, err
	}
	v, err := x.eval(cc, b, args[2])
	if err != nil {
		return nil, err
	}
	sender, err := asPrincipal(v, "nft-burn?")
	if err != nil {
		return nil, err
	}
	if err := x.chargeSized("nft-burn?", asset, sender); err != nil {
		return nil, err
	}
	owner, exists, err := x.nftOwner(key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return errCode(3), nil
	}
	if owner != sender {
		return errCode(1), nil
	}
	if err := x.remove(cc, key); err != nil {
		return nil, err
	}
	x.emit(Event{
		Type:     NFTBurnEvent,
		Contract: cc.contract.ID.ID(),
		Asset:    assetID(cc, nft.Name),
		Sender:   sender.ID(),
		Value:    asset,
	})
	return okTrue, nil
}

func stxGetBalance(x *execState, _ *callCtx, a []value.Value) (value.Value, error) {
	p, err := asPrincipal(a[0], "stx-get-balance")
	if err != nil {
		return nil, err
	}
	return x.readUInt(store.STXBalanceKey(p.ID()))
}

// stx-account reports the whole balance as unlocked; stacking is not
// simulated.
func stxAccount(x *execState, _ *callCtx, a []value.Value) (value.Value, error) {
	p, err := asPrincipal(a[0], "stx-account")
	if err != nil {
		return nil, err
	}
	bal, err := x.readUInt(store.STXBalanceKey(p.ID()))
	if err != nil {
		return nil, err
	}
	return value.NewTuple([]value.TupleField{
		{Name: "locked", Value: value.NewUInt(0)},
		{Name: "unlock-height", Value: value.NewUInt(0)},
		{Name: "unlocked", Value: bal},
	})
}

// (stx-transfer? amount sender recipient) and
// (stx-transfer-memo? amount sender recipient memo)
func stxTransfer(x *execState, cc *callCtx, a []value.Value) (value.Value, error) {
	amount, err := asAmount(a[0], "stx-transfer?")
	if err != nil {
		return nil, err
	}
	sender, err := asPrincipal(a[1], "stx-transfer?")
	if err != nil {
		return nil, err
	}
	recipient, err := asPrincipal(a[2], "stx-transfer?")
	if err != nil {
		return nil, err
	}
	var memo []byte
	if len(a) == 4 {
		buf, ok := a[3].(value.Buffer)
		if !ok || buf.Len() > 34 {
			return nil, typeErrorf("stx-transfer-memo? expects (buff 34), got %s", a[3].Type())
		}
		memo = buf.Bytes()
	}
	return x.transferSTX(cc, amount, sender, recipient, memo)
}

// transferSTX moves micro-STX between principals.
// err u1: insufficient balance, u2: sender is recipient, u3: zero amount,
// u4: sender is not tx-sender.
func (x *execState) transferSTX(cc *callCtx, amount value.UInt, sender, recipient value.Principal, memo []byte) (value.Value, error) {
	if amount.IsZero() {
		return errCode(3), nil
	}
	if sender == recipient {
		return errCode(2), nil
	}
	if sender != cc.sender {
		return errCode(4), nil
	}
	fromKey := store.STXBalanceKey(sender.ID())
	toKey := store.STXBalanceKey(recipient.ID())
	from, err := x.readUInt(fromKey)
	if err != nil {
		return nil, err
	}
	if from.Cmp(amount) < 0 {
		return errCode(1), nil
	}
	to, err := x.readUInt(toKey)
	if err != nil {
		return nil, err
	}
	newFrom, err := sub(from, amount)
	if err != nil {
		return nil, err
	}
	newTo, err := add(to, amount)
	if err != nil {
		return nil, err
	}
	if err := x.write(cc, fromKey, newFrom); err != nil {
		return nil, err
	}
	if err := x.write(cc, toKey, newTo); err != nil {
		return nil, err
	}
	ev := Event{
		Type:      STXTransferEvent,
		Sender:    sender.ID(),
		Recipient: recipient.ID(),
		Amount:    amount.Decimal(),
		Memo:      memo,
	}
	if cc.contract != nil && cc.contract.ID.IsContract() {
		ev.Contract = cc.contract.ID.ID()
	}
	x.emit(ev)
	return okTrue, nil
}

// (stx-burn? amount sender)
// err u1: insufficient balance, u3: zero amount, u4: sender is not
// tx-sender. The burned amount leaves the liquid supply.
func stxBurn(x *execState, cc *callCtx, a []value.Value) (value.Value, error) {
	amount, err := asAmount(a[0], "stx-burn?")
	if err != nil {
		return nil, err
	}
	sender, err := asPrincipal(a[1], "stx-burn?")
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return errCode(3), nil
	}
	if sender != cc.sender {
		return errCode(4), nil
	}
	key := store.STXBalanceKey(sender.ID())
	bal, err := x.readUInt(key)
	if err != nil {
		return nil, err
	}
	if bal.Cmp(amount) < 0 {
		return errCode(1), nil
	}
	supply, err := x.readUInt(store.KeySTXLiquidSupply)
	if err != nil {
		return nil, err
	}
	newBal, err := sub(bal, amount)
	if err != nil {
		return nil, err
	}
	newSupply, err := sub(supply, amount)
	if err != nil {
		return nil, err
	}
	if err := x.write(cc, key, newBal); err != nil {
		return nil, err
	}
	if err := x.write(cc, store.KeySTXLiquidSupply, newSupply); err != nil {
		return nil, err
	}
	x.emit(Event{
		Type:   STXBurnEvent,
		Sender: sender.ID(),
		Amount: amount.Decimal(),
	})
	return okTrue, nil
}
