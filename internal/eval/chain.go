package eval

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/hirosystems/clarinet-sub000/internal/ast"
	"github.com/hirosystems/clarinet-sub000/internal/store"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

func init() {
	specialForms["at-block"] = atBlock
	specialForms["get-block-info?"] = blockInfo("get-block-info?", map[string]bool{
		"time": true, "header-hash": true, "burnchain-header-hash": true, "id-header-hash": true,
		"miner-address": true, "vrf-seed": true, "block-reward": true,
		"miner-spend-total": true, "miner-spend-winner": true,
	})
	specialForms["get-stacks-block-info?"] = blockInfo("get-stacks-block-info?", map[string]bool{
		"time": true, "header-hash": true, "id-header-hash": true,
	})
	specialForms["get-tenure-info?"] = blockInfo("get-tenure-info?", map[string]bool{
		"time": true, "burnchain-header-hash": true, "miner-address": true, "vrf-seed": true,
		"block-reward": true, "miner-spend-total": true, "miner-spend-winner": true,
	})
}

// minerAddress is reported as the miner of every simulated block.
var minerAddress = value.PrincipalFromSeed(value.VersionTestnetSingleSig, "simnet-miner")

func hashBytes(h string) []byte {
	b, err := hex.DecodeString(strings.TrimPrefix(h, "0x"))
	if err != nil {
		return nil
	}
	return b
}

// derived returns a 32-byte value bound to a block hash, used for the
// burnchain header hash and the VRF seed.
func derived(label, blockHash string) []byte {
	sum := sha256.Sum256([]byte(label + blockHash))
	return sum[:]
}

// (at-block block-hash expr) evaluates expr read-only against the state
// right after the block with that hash.
func atBlock(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
	if err := expectArity("at-block", args, 2, 2); err != nil {
		return nil, err
	}
	hv, err := x.eval(cc, b, args[0])
	if err != nil {
		return nil, err
	}
	buf, ok := hv.(value.Buffer)
	if !ok || buf.Len() != 32 {
		return nil, typeErrorf("at-block expects (buff 32), got %s", hv.Type())
	}
	blk, err := x.e.host.BlockByHash(x.ctx, "0x"+hex.EncodeToString(buf.Bytes()))
	if errors.Is(err, store.ErrBlockNotFound) {
		return nil, faultf(CodeNoSuchBlock, "no block with hash %s", buf)
	}
	if err != nil {
		return nil, err
	}

	saved, savedEnv := x.frame, x.env
	historical := &frame{overlay: store.NewOverlay(x.e.host.ReaderAt(blk.Height))}
	x.frame = historical
	x.env.BlockHeight = blk.Height
	x.env.TenureHeight = blk.TenureHeight
	x.env.BurnHeight = blk.BurnHeight
	x.env.Timestamp = blk.Timestamp
	defer func() {
		x.frame, x.env = saved, savedEnv
		saved.events = append(saved.events, historical.events...)
	}()

	inner := *cc
	inner.readOnly = true
	return x.eval(&inner, b, args[1])
}

// blockInfo builds the (get-*-info? property height) forms. Heights that
// are not committed yet give none.
func blockInfo(name string, props map[string]bool) specialForm {
	return func(x *execState, cc *callCtx, b *bindings, n *ast.Node, args []*ast.Node) (value.Value, error) {
		if err := expectArity(name, args, 2, 2); err != nil {
			return nil, err
		}
		if args[0].Kind != ast.KindAtom || !props[args[0].Name] {
			return nil, faultf(CodeInvalidSyntax, "%s: unknown property %s", name, args[0].Name)
		}
		prop := args[0].Name
		hv, err := x.eval(cc, b, args[1])
		if err != nil {
			return nil, err
		}
		height, fits, err := asIndex(hv, name)
		if err != nil {
			return nil, err
		}
		if !fits || height >= x.env.BlockHeight {
			return value.None(), nil
		}
		blk, err := x.e.host.Block(x.ctx, height)
		if errors.Is(err, store.ErrBlockNotFound) {
			return value.None(), nil
		}
		if err != nil {
			return nil, err
		}

		var v value.Value
		switch prop {
		case "time":
			v = value.NewUInt(blk.Timestamp)
		case "header-hash", "id-header-hash":
			v, err = value.NewBuffer(hashBytes(blk.Hash))
		case "burnchain-header-hash":
			v, err = value.NewBuffer(derived("burn", blk.Hash))
		case "vrf-seed":
			v, err = value.NewBuffer(derived("vrf", blk.Hash))
		case "miner-address":
			v = minerAddress
		default:
			v = value.NewUInt(0)
		}
		if err != nil {
			return nil, err
		}
		return value.Some(v), nil
	}
}
