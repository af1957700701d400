package store

import (
	"encoding/hex"
	"strings"
)

// Key layout. Contract ids and principals never contain the separator.
const (
	sep = "::"

	PrefixContract = "contract" + sep
	PrefixConstant = "const" + sep
	PrefixDataVar  = "var" + sep
	PrefixMap      = "map" + sep
	PrefixFT       = "ft" + sep
	PrefixFTSupply = "ft-supply" + sep
	PrefixFTCap    = "ft-cap" + sep
	PrefixNFT      = "nft" + sep
	PrefixSTX      = "stx" + sep

	// KeySTXLiquidSupply holds the total unlocked STX.
	KeySTXLiquidSupply = "stx-liquid-supply"
)

// ContractKey holds the source of a deployed contract.
func ContractKey(contract string) string {
	return PrefixContract + contract
}

// ConstantKey holds a constant evaluated at deploy time.
func ConstantKey(contract, name string) string {
	return PrefixConstant + contract + sep + name
}

// DataVarKey holds the current value of a data-var.
func DataVarKey(contract, name string) string {
	return PrefixDataVar + contract + sep + name
}

// MapEntryKey holds the value stored under a serialized map key.
func MapEntryKey(contract, mapName string, key []byte) string {
	return MapPrefix(contract, mapName) + hex.EncodeToString(key)
}

// MapPrefix covers every entry of one map.
func MapPrefix(contract, mapName string) string {
	return PrefixMap + contract + sep + mapName + sep
}

// FTBalanceKey holds the balance of owner in a fungible token.
func FTBalanceKey(contract, token, owner string) string {
	return PrefixFT + contract + sep + token + sep + owner
}

// FTSupplyKey holds the circulating supply of a fungible token.
func FTSupplyKey(contract, token string) string {
	return PrefixFTSupply + contract + sep + token
}

// FTCapKey holds the maximum supply of a fungible token, when declared.
func FTCapKey(contract, token string) string {
	return PrefixFTCap + contract + sep + token
}

// NFTOwnerKey holds the owner of a serialized asset identifier.
func NFTOwnerKey(contract, token string, asset []byte) string {
	return PrefixNFT + contract + sep + token + sep + hex.EncodeToString(asset)
}

// STXBalanceKey holds the STX balance of owner.
func STXBalanceKey(owner string) string {
	return PrefixSTX + owner
}

// AssetKey identifies a balance key by asset and owner.
type AssetKey struct {
	Asset string // "STX" or "<contract>.<token>"
	Owner string
}

// ParseFTBalanceKey splits an ft balance key.
func ParseFTBalanceKey(key string) (AssetKey, bool) {
	rest, ok := strings.CutPrefix(key, PrefixFT)
	if !ok {
		return AssetKey{}, false
	}
	parts := strings.Split(rest, sep)
	if len(parts) != 3 {
		return AssetKey{}, false
	}
	return AssetKey{Asset: parts[0] + "." + parts[1], Owner: parts[2]}, true
}

// ParseNFTOwnerKey splits an nft owner key into contract, token and the
// serialized asset identifier.
func ParseNFTOwnerKey(key string) (contract, token string, asset []byte, ok bool) {
	rest, found := strings.CutPrefix(key, PrefixNFT)
	if !found {
		return "", "", nil, false
	}
	parts := strings.Split(rest, sep)
	if len(parts) != 3 {
		return "", "", nil, false
	}
	asset, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", "", nil, false
	}
	return parts[0], parts[1], asset, true
}
