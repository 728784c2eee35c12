package facilitator

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/radiustechsystems/x402-upto/evmutil"
)

type fakeSigner struct {
	allowance     *big.Int
	balance       *big.Int
	receiptStatus uint64
}

func newFakeSigner() *fakeSigner {
	return &fakeSigner{
		allowance:     big.NewInt(1_000_000_000),
		balance:       big.NewInt(1_000_000_000),
		receiptStatus: evmutil.TxStatusSuccess,
	}
}

func (f *fakeSigner) GetChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(84532), nil
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
	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return false, err
	}
	return evmutil.AddressesEqual(crypto.PubkeyToAddress(*pubKey).Hex(), expectedSigner), nil
}

func (f *fakeSigner) ReadContract(ctx context.Context, contractAddress string, abiJSON []byte, method string, args ...interface{}) (interface{}, error) {
	if method == "allowance" {
		return f.allowance, nil
	}
	return nil, nil
}

func (f *fakeSigner) WriteContract(ctx context.Context, contractAddress string, abiJSON []byte, method string, args ...interface{}) (string, error) {
	return "0xfacilitatortxhash", nil
}

func (f *fakeSigner) WaitForTransactionReceipt(ctx context.Context, txHash string) (*evmutil.TransactionReceipt, error) {
	return &evmutil.TransactionReceipt{Status: f.receiptStatus, BlockNumber: 1, TxHash: txHash}, nil
}

func (f *fakeSigner) GetBalance(ctx context.Context, address string, tokenAddress string) (*big.Int, error) {
	return f.balance, nil
}
