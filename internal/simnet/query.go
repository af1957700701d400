package simnet

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hirosystems/clarinet-sub000/internal/checker"
	"github.com/hirosystems/clarinet-sub000/internal/eval"
	"github.com/hirosystems/clarinet-sub000/internal/store"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// STXAsset names the native token in asset maps.
const STXAsset = "STX"

func (s *Session) decode(ctx context.Context, key string) (value.Value, bool, error) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	v, err := value.Deserialize(raw)
	if err != nil {
		return nil, false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return v, true, nil
}

// GetDataVar returns the committed value of a data variable. contract is
// "ST....name" or a name deployed by the deployer.
func (s *Session) GetDataVar(ctx context.Context, contract, name string) (value.Value, error) {
	id, err := s.contractPrincipal(contract)
	if err != nil {
		return nil, err
	}
	v, ok, err := s.decode(ctx, store.DataVarKey(id.ID(), name))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("data var %s.%s: %w", id.ID(), name, ErrNotFound)
	}
	return v, nil
}

// GetMapEntry returns (some value) for a present key and none otherwise,
// like map-get?.
func (s *Session) GetMapEntry(ctx context.Context, contract, mapName string, key value.Value) (value.Optional, error) {
	id, err := s.contractPrincipal(contract)
	if err != nil {
		return value.None(), err
	}
	v, ok, err := s.decode(ctx, store.MapEntryKey(id.ID(), mapName, value.Serialize(key)))
	if err != nil || !ok {
		return value.None(), err
	}
	return value.Some(v), nil
}

// AssetsMap holds balances by asset then by owner. Assets are "STX" and
// "<contract>.<token>"; owners are principal ids.
type AssetsMap map[string]map[string]value.UInt

// Assets returns the asset names in sorted order.
func (m AssetsMap) Assets() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Owners returns the owners of asset in sorted order.
func (m AssetsMap) Owners(asset string) []string {
	out := make([]string, 0, len(m[asset]))
	for k := range m[asset] {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// GetAssetsMap returns every non-zero STX and fungible token balance at
// the tip. For a non-fungible token the balance is the number of assets
// the owner holds.
func (s *Session) GetAssetsMap(ctx context.Context) (AssetsMap, error) {
	out := AssetsMap{}
	add := func(asset, owner string, raw []byte) error {
		v, err := value.Deserialize(raw)
		if err != nil {
			return fmt.Errorf("balance of %s in %s: %w", owner, asset, err)
		}
		u, ok := v.(value.UInt)
		if !ok {
			return fmt.Errorf("balance of %s in %s is %s", owner, asset, v.Type())
		}
		if u.IsZero() {
			return nil
		}
		if out[asset] == nil {
			out[asset] = map[string]value.UInt{}
		}
		out[asset][owner] = u
		return nil
	}

	stx, err := s.store.ScanPrefix(ctx, store.PrefixSTX)
	if err != nil {
		return nil, err
	}
	for _, kv := range stx {
		if err := add(STXAsset, kv.Key[len(store.PrefixSTX):], kv.Value); err != nil {
			return nil, err
		}
	}

	ft, err := s.store.ScanPrefix(ctx, store.PrefixFT)
	if err != nil {
		return nil, err
	}
	for _, kv := range ft {
		k, ok := store.ParseFTBalanceKey(kv.Key)
		if !ok {
			continue
		}
		if err := add(k.Asset, k.Owner, kv.Value); err != nil {
			return nil, err
		}
	}

	nft, err := s.store.ScanPrefix(ctx, store.PrefixNFT)
	if err != nil {
		return nil, err
	}
	held := map[string]map[string]uint64{}
	for _, kv := range nft {
		contract, token, _, ok := store.ParseNFTOwnerKey(kv.Key)
		if !ok {
			continue
		}
		asset := contract + "." + token
		v, err := value.Deserialize(kv.Value)
		if err != nil {
			return nil, fmt.Errorf("owner of %s: %w", asset, err)
		}
		owner, ok := v.(value.Principal)
		if !ok {
			return nil, fmt.Errorf("owner of %s is %s", asset, v.Type())
		}
		if held[asset] == nil {
			held[asset] = map[string]uint64{}
		}
		held[asset][owner.ID()]++
	}
	for asset, owners := range held {
		out[asset] = make(map[string]value.UInt, len(owners))
		for owner, n := range owners {
			out[asset][owner] = value.NewUInt(n)
		}
	}
	return out, nil
}

// STXBalance returns the micro-STX balance of p at the tip.
func (s *Session) STXBalance(ctx context.Context, p value.Principal) (value.UInt, error) {
	v, ok, err := s.decode(ctx, store.STXBalanceKey(p.ID()))
	if err != nil || !ok {
		return value.NewUInt(0), err
	}
	u, ok := v.(value.UInt)
	if !ok {
		return value.NewUInt(0), fmt.Errorf("balance of %s is %s", p.ID(), v.Type())
	}
	return u, nil
}

// GetContractInterface returns the published interface of a deployed
// contract.
func (s *Session) GetContractInterface(ctx context.Context, contract string) (*eval.ContractInterface, error) {
	id, err := s.contractPrincipal(contract)
	if err != nil {
		return nil, err
	}
	return s.ev.Interface(ctx, s.store, id)
}

// GetBlock returns the metadata of a committed block.
func (s *Session) GetBlock(ctx context.Context, height uint64) (store.Block, error) {
	return s.store.Block(ctx, height)
}

// BlockReceipts returns the stored receipts of a block in order, as
// canonical JSON documents.
func (s *Session) BlockReceipts(ctx context.Context, height uint64) ([]json.RawMessage, error) {
	txs, err := s.store.Transactions(ctx, height)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, len(txs))
	for i, tx := range txs {
		out[i] = json.RawMessage(tx.Record)
	}
	return out, nil
}

// FindReceipt looks a receipt up by transaction id.
func (s *Session) FindReceipt(ctx context.Context, txID string) (uint64, json.RawMessage, error) {
	height, rec, err := s.store.FindTransaction(ctx, txID)
	if err != nil {
		return 0, nil, err
	}
	return height, json.RawMessage(rec.Record), nil
}

// RunCheckChecker parses source with the session's reader and runs the
// check-checker over it.
func (s *Session) RunCheckChecker(name, source string, cfg checker.Config) ([]checker.Diagnostic, error) {
	c, err := s.parser.Parse(name, source)
	if err != nil {
		return nil, err
	}
	return checker.Check(c, cfg), nil
}
