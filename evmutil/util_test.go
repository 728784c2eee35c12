package evmutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	normalized, err := NormalizeAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	require.NoError(t, err)
	assert.Equal(t, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", normalized)

	_, err = NormalizeAddress("not an address")
	assert.Error(t, err)
}

func TestAddressesEqual(t *testing.T) {
	assert.True(t, AddressesEqual(
		"0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		"0x70997970c51812dc3a010c7d01b50e0d17dc79c8",
	))
	assert.False(t, AddressesEqual(
		"0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		"0x0000000000000000000000000000000000dEaD",
	))
}

func TestHexBytesRoundtrip(t *testing.T) {
	original := []byte{0xde, 0xad, 0xbe, 0xef}
	encoded := BytesToHex(original)
	assert.Equal(t, "0xdeadbeef", encoded)

	decoded, err := HexToBytes(encoded)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)

	decoded, err = HexToBytes("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestRandomNonceIsUnique(t *testing.T) {
	first, err := RandomNonce()
	require.NoError(t, err)
	second, err := RandomNonce()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestMaxUint160(t *testing.T) {
	max := MaxUint160()
	assert.Equal(t, "1461501637330902918203684832716283019655932542975", max.String())
}
