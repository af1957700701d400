package value

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/ripemd160"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainTransaction = "clarisim/tx/v1"
	DomainBlock       = "clarisim/block/v1"
	DomainState       = "clarisim/state/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashWithDomain exposes the domain-separated hash for callers that build
// their own canonical payloads (state digests).
func HashWithDomain(domain string, data []byte) string {
	return hashWithDomain(domain, data)
}

// TxID computes the id of a transaction from its canonical payload.
// The payload must include the block height and index so that identical
// calls in different positions get different ids.
func TxID(payload map[string]any) (string, error) {
	canonical, err := MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("TxID: failed to marshal: %w", err)
	}
	return "0x" + hashWithDomain(DomainTransaction, canonical), nil
}

// BlockHash chains a block to its parent.
func BlockHash(parent string, height, timestamp uint64, txIDs []string) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"parent":    parent,
		"height":    height,
		"timestamp": timestamp,
		"txs":       txIDs,
	})
	if err != nil {
		return "", fmt.Errorf("BlockHash: failed to marshal: %w", err)
	}
	return "0x" + hashWithDomain(DomainBlock, canonical), nil
}

// Hash160 returns RIPEMD160(SHA256(data)).
func Hash160(data []byte) [20]byte {
	sha := sha256.Sum256(data)
	r := ripemd160.New()
	r.Write(sha[:])
	var out [20]byte
	copy(out[:], r.Sum(nil))
	return out
}

// PrincipalFromSeed derives a deterministic test account from a seed
// string. Used to bootstrap simulated wallets that have no configured
// address.
func PrincipalFromSeed(version byte, seed string) Principal {
	return StandardPrincipal(version, Hash160([]byte(seed)))
}
