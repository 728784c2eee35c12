package verifier

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/radiustechsystems/x402-upto/evmutil"
)

// fakeSigner is an in-memory evmutil.FacilitatorSigner used to test the
// verifier without any chain I/O, per the base spec's capability-injection
// design: production wires a real ethclient, tests wire a fake.
type fakeSigner struct {
	chainID       int64
	allowance     *big.Int
	balance       *big.Int
	allowanceErr  error
	balanceErr    error
	readErr       error
	writeErr      error
	receiptStatus uint64
}

func newFakeSigner() *fakeSigner {
	return &fakeSigner{
		chainID:       84532,
		allowance:     big.NewInt(1_000_000_000),
		balance:       big.NewInt(1_000_000_000),
		receiptStatus: evmutil.TxStatusSuccess,
	}
}

func (f *fakeSigner) GetChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(f.chainID), nil
}

func (f *fakeSigner) VerifyTypedData(
	ctx context.Context,
	domain evmutil.TypedDataDomain,
	fieldTypes map[string][]evmutil.TypedDataField,
	primaryType string,
	message map[string]interface{},
	signature []byte,
	expectedSigner string,
) (bool, error) {
	digest, err := evmutil.HashTypedData(domain, fieldTypes, primaryType, message)
	if err != nil {
		return false, err
	}
	if len(signature) != 65 {
		return false, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return false, err
	}
	recovered := crypto.PubkeyToAddress(*pubKey)
	return strings.EqualFold(recovered.Hex(), expectedSigner), nil
}

func (f *fakeSigner) ReadContract(ctx context.Context, contractAddress string, abiJSON []byte, method string, args ...interface{}) (interface{}, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	switch method {
	case "allowance":
		if f.allowanceErr != nil {
			return nil, f.allowanceErr
		}
		return f.allowance, nil
	default:
		return nil, fmt.Errorf("unexpected method %q", method)
	}
}

func (f *fakeSigner) WriteContract(ctx context.Context, contractAddress string, abiJSON []byte, method string, args ...interface{}) (string, error) {
	if f.writeErr != nil {
		return "", f.writeErr
	}
	return "0xabc123", nil
}

func (f *fakeSigner) WaitForTransactionReceipt(ctx context.Context, txHash string) (*evmutil.TransactionReceipt, error) {
	return &evmutil.TransactionReceipt{Status: f.receiptStatus, BlockNumber: 1, TxHash: txHash}, nil
}

func (f *fakeSigner) GetBalance(ctx context.Context, address string, tokenAddress string) (*big.Int, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return f.balance, nil
}
