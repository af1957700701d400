package value

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Address versions used by the simulated chain.
const (
	VersionMainnetSingleSig byte = 22
	VersionMainnetMultiSig  byte = 20
	VersionTestnetSingleSig byte = 26
	VersionTestnetMultiSig  byte = 21
)

// MaxContractNameLength bounds contract names.
const MaxContractNameLength = 40

var (
	ErrInvalidPrincipal = errors.New("invalid principal")

	contractNamePattern = regexp.MustCompile(`^[a-zA-Z]([a-zA-Z0-9]|[-_])*$`)
)

const c32Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// Principal is a standard principal (an account) or a contract principal
// (an account plus a contract name). Principals are comparable.
type Principal struct {
	version byte
	hash    [20]byte
	name    string
}

// StandardPrincipal builds an account principal.
func StandardPrincipal(version byte, hash [20]byte) Principal {
	return Principal{version: version, hash: hash}
}

// ContractPrincipal builds the principal of contract name deployed by issuer.
func ContractPrincipal(issuer Principal, name string) (Principal, error) {
	if err := ValidateContractName(name); err != nil {
		return Principal{}, err
	}
	return Principal{version: issuer.version, hash: issuer.hash, name: name}, nil
}

// ValidateContractName checks contract name syntax and length.
func ValidateContractName(name string) error {
	if len(name) == 0 || len(name) > MaxContractNameLength {
		return fmt.Errorf("%w: contract name %q must be 1-%d characters", ErrInvalidPrincipal, name, MaxContractNameLength)
	}
	if !contractNamePattern.MatchString(name) {
		return fmt.Errorf("%w: contract name %q", ErrInvalidPrincipal, name)
	}
	return nil
}

// ParsePrincipal parses "ST..." or "ST....contract-name".
func ParsePrincipal(s string) (Principal, error) {
	addr, name, isContract := strings.Cut(s, ".")
	version, hash, err := decodeAddress(addr)
	if err != nil {
		return Principal{}, err
	}
	p := StandardPrincipal(version, hash)
	if !isContract {
		return p, nil
	}
	return ContractPrincipal(p, name)
}

// MustPrincipal is ParsePrincipal that panics. For fixtures and tests.
func MustPrincipal(s string) Principal {
	p, err := ParsePrincipal(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (Principal) isValue() {}

func (Principal) Type() TypeSignature { return PrincipalType }

// IsContract reports whether this is a contract principal.
func (p Principal) IsContract() bool { return p.name != "" }

// Name returns the contract name, empty for standard principals.
func (p Principal) Name() string { return p.name }

// Version returns the address version byte.
func (p Principal) Version() byte { return p.version }

// Hash returns the hash160 of the account.
func (p Principal) Hash() [20]byte { return p.hash }

// Issuer returns the account that deployed a contract principal, or the
// principal itself for standard principals.
func (p Principal) Issuer() Principal { return Principal{version: p.version, hash: p.hash} }

// Address returns the c32check address of the account part.
func (p Principal) Address() string {
	return encodeAddress(p.version, p.hash)
}

// ID returns the address, suffixed with ".name" for contracts.
func (p Principal) ID() string {
	if p.name == "" {
		return p.Address()
	}
	return p.Address() + "." + p.name
}

func (p Principal) String() string { return "'" + p.ID() }

func checksum(version byte, hash []byte) []byte {
	first := sha256.Sum256(append([]byte{version}, hash...))
	second := sha256.Sum256(first[:])
	return second[:4]
}

func encodeAddress(version byte, hash [20]byte) string {
	payload := append(append([]byte(nil), hash[:]...), checksum(version, hash[:])...)
	return "S" + string(c32Alphabet[version&0x1f]) + c32Encode(payload)
}

func decodeAddress(s string) (byte, [20]byte, error) {
	var hash [20]byte
	if len(s) < 5 || s[0] != 'S' {
		return 0, hash, fmt.Errorf("%w: %q", ErrInvalidPrincipal, s)
	}
	version := strings.IndexByte(c32Alphabet, s[1])
	if version < 0 {
		return 0, hash, fmt.Errorf("%w: bad version in %q", ErrInvalidPrincipal, s)
	}
	data, err := c32Decode(s[2:])
	if err != nil {
		return 0, hash, fmt.Errorf("%w: %v", ErrInvalidPrincipal, err)
	}
	if len(data) != 24 {
		return 0, hash, fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidPrincipal, s, len(data))
	}
	if !bytes.Equal(checksum(byte(version), data[:20]), data[20:]) {
		return 0, hash, fmt.Errorf("%w: bad checksum in %q", ErrInvalidPrincipal, s)
	}
	copy(hash[:], data[:20])
	return byte(version), hash, nil
}

// c32Encode encodes bytes in Crockford base-32, keeping one '0' per
// leading zero byte.
func c32Encode(data []byte) string {
	out := make([]byte, 0, len(data)*8/5+1)
	carry, carryBits := 0, 0
	for i := len(data) - 1; i >= 0; i-- {
		b := int(data[i])
		lowBits := 5 - carryBits
		out = append(out, c32Alphabet[((b&(1<<lowBits-1))<<carryBits)+carry])
		carryBits += 8 - 5
		carry = b >> (8 - carryBits)
		if carryBits >= 5 {
			out = append(out, c32Alphabet[carry&0x1f])
			carryBits -= 5
			carry >>= 5
		}
	}
	if carryBits > 0 {
		out = append(out, c32Alphabet[carry])
	}
	for len(out) > 0 && out[len(out)-1] == '0' {
		out = out[:len(out)-1]
	}
	for _, b := range data {
		if b != 0 {
			break
		}
		out = append(out, '0')
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

func c32Decode(s string) ([]byte, error) {
	out := make([]byte, 0, len(s)*5/8+1)
	carry, carryBits := 0, 0
	for i := len(s) - 1; i >= 0; i-- {
		v := strings.IndexByte(c32Alphabet, s[i])
		if v < 0 {
			return nil, fmt.Errorf("invalid c32 character %q", s[i])
		}
		carry += v << carryBits
		carryBits += 5
		if carryBits >= 8 {
			out = append(out, byte(carry&0xff))
			carryBits -= 8
			carry >>= 8
		}
	}
	if carryBits > 0 && carry > 0 {
		out = append(out, byte(carry&0xff))
	}
	for len(out) > 0 && out[len(out)-1] == 0 {
		out = out[:len(out)-1]
	}
	for i := 0; i < len(s) && s[i] == '0'; i++ {
		out = append(out, 0)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
