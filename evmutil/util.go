package evmutil

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeAddress returns the EIP-55 checksummed form of a hex address, or
// an error if it is not a well-formed 20-byte address.
func NormalizeAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid address: %q", address)
	}
	return common.HexToAddress(address).Hex(), nil
}

// AddressesEqual compares two hex addresses case-insensitively, per the base
// spec's address-comparison rule.
func AddressesEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(a, "0x"), strings.TrimPrefix(b, "0x"))
}

// HexToBytes decodes a 0x-prefixed (or bare) hex string into bytes.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

// BytesToHex encodes bytes as a 0x-prefixed hex string.
func BytesToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// RandomNonce generates a 48-bit random nonce as a decimal string. On-chain
// uniqueness enforcement (Permit2's nonce bitmap) is the actual replay
// defense; this only needs to avoid accidental local collisions.
func RandomNonce() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	n := new(big.Int).SetBytes(buf)
	return n.String(), nil
}

// MaxUint160 is 2^160 - 1, the ERC-20 approval amount used for a one-time
// infinite Permit2 approval.
func MaxUint160() *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), 160)
	return max.Sub(max, big.NewInt(1))
}

func bigFromInt64(v int64) *big.Int {
	return big.NewInt(v)
}
