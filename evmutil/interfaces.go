// Package evmutil holds the EVM-specific constants, ABI encoding, EIP-712
// hashing, and capability interfaces shared by the client builder, verifier,
// and settler. Chain I/O itself is never performed here directly: callers
// inject a ClientSigner or FacilitatorSigner and evmutil only shapes the
// bytes that cross that boundary.
package evmutil

import (
	"context"
	"math/big"
)

// TypedDataDomain is the EIP-712 domain separator input.
type TypedDataDomain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract string
}

// TypedDataField names one field of an EIP-712 struct type.
type TypedDataField struct {
	Name string
	Type string
}

// TransactionReceipt is the minimal on-chain receipt shape the settler needs.
type TransactionReceipt struct {
	Status      uint64
	BlockNumber uint64
	TxHash      string
}

// ClientSigner is the capability set a payer needs to build an upto
// authorization: an address, and the ability to produce an EIP-712 signature
// over an arbitrary typed message.
type ClientSigner interface {
	Address() string
	SignTypedData(
		ctx context.Context,
		domain TypedDataDomain,
		types map[string][]TypedDataField,
		primaryType string,
		message map[string]interface{},
	) ([]byte, error)
}

// FacilitatorSigner is the capability set the verifier and settler need to
// read chain state, verify a signature, and write a settlement transaction.
type FacilitatorSigner interface {
	// ReadContract calls a read-only contract method and returns its single
	// unpacked return value (or a slice of values for multi-return methods).
	ReadContract(ctx context.Context, contractAddress string, abiJSON []byte, method string, args ...interface{}) (interface{}, error)

	// VerifyTypedData reports whether signature recovers to expectedSigner
	// over the given EIP-712 typed message.
	VerifyTypedData(
		ctx context.Context,
		domain TypedDataDomain,
		types map[string][]TypedDataField,
		primaryType string,
		message map[string]interface{},
		signature []byte,
		expectedSigner string,
	) (bool, error)

	// WriteContract broadcasts a transaction calling method on the contract
	// at contractAddress and returns the transaction hash.
	WriteContract(ctx context.Context, contractAddress string, abiJSON []byte, method string, args ...interface{}) (string, error)

	// WaitForTransactionReceipt blocks until the transaction is mined or the
	// context is cancelled.
	WaitForTransactionReceipt(ctx context.Context, txHash string) (*TransactionReceipt, error)

	// GetBalance returns the balance of address in tokenAddress (ERC-20), or
	// the native balance if tokenAddress is the zero address.
	GetBalance(ctx context.Context, address string, tokenAddress string) (*big.Int, error)

	// GetChainID returns the chain id the signer is configured against.
	GetChainID(ctx context.Context) (*big.Int, error)
}
