package client

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiustechsystems/x402-upto/evmutil"

	upto "github.com/radiustechsystems/x402-upto"
)

type fakeClientSigner struct {
	address string
	sign    func(digest []byte) ([]byte, error)
}

func newFakeClientSigner(t *testing.T) *fakeClientSigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	return &fakeClientSigner{
		address: address,
		sign: func(digest []byte) ([]byte, error) {
			sig, err := crypto.Sign(digest, key)
			if err != nil {
				return nil, err
			}
			sig[64] += 27
			return sig, nil
		},
	}
}

func (f *fakeClientSigner) Address() string { return f.address }

func (f *fakeClientSigner) SignTypedData(
	ctx context.Context,
	domain evmutil.TypedDataDomain,
	fieldTypes map[string][]evmutil.TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	digest, err := evmutil.HashTypedData(domain, fieldTypes, primaryType, message)
	if err != nil {
		return nil, err
	}
	return f.sign(digest)
}

func testRequirements() upto.PaymentRequirements {
	return upto.PaymentRequirements{
		Scheme:            upto.Scheme,
		Network:           "eip155:84532",
		Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		MaxAmount:         "1000000",
		PayTo:             "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		MaxTimeoutSeconds: 300,
	}
}

func TestBuildAuthorizationProducesVerifiableSignature(t *testing.T) {
	signer := newFakeClientSigner(t)
	payload, err := BuildAuthorization(context.Background(), signer, testRequirements())
	require.NoError(t, err)

	assert.Equal(t, signer.Address(), payload.Permit2Authorization.From)
	assert.Equal(t, evmutil.UptoProxyAddress, payload.Permit2Authorization.Spender)
	assert.Equal(t, "1000000", payload.Permit2Authorization.Permitted.Amount)
	assert.Nil(t, payload.SettlementAmount)

	domain := evmutil.Permit2Domain(84532)
	amount, _ := new(big.Int).SetString(payload.Permit2Authorization.Permitted.Amount, 10)
	nonce, _ := new(big.Int).SetString(payload.Permit2Authorization.Nonce, 10)
	deadline, _ := new(big.Int).SetString(payload.Permit2Authorization.Deadline, 10)
	validAfter, _ := new(big.Int).SetString(payload.Permit2Authorization.Witness.ValidAfter, 10)
	message := map[string]interface{}{
		"permitted": map[string]interface{}{
			"token":  payload.Permit2Authorization.Permitted.Token,
			"amount": amount,
		},
		"spender":  payload.Permit2Authorization.Spender,
		"nonce":    nonce,
		"deadline": deadline,
		"witness": map[string]interface{}{
			"to":         payload.Permit2Authorization.Witness.To,
			"validAfter": validAfter,
			"extra":      []byte{},
		},
	}
	digest, err := evmutil.HashTypedData(domain, evmutil.GetPermit2EIP712Types(), "PermitWitnessTransferFrom", message)
	require.NoError(t, err)

	signature, err := evmutil.HexToBytes(payload.Signature)
	require.NoError(t, err)
	sig := make([]byte, 65)
	copy(sig, signature)
	sig[64] -= 27
	pubKey, err := crypto.SigToPub(digest, sig)
	require.NoError(t, err)
	recovered := crypto.PubkeyToAddress(*pubKey).Hex()
	assert.Equal(t, signer.Address(), recovered)
}

func TestBuildAuthorizationRejectsNonEVMNetwork(t *testing.T) {
	signer := newFakeClientSigner(t)
	requirements := testRequirements()
	requirements.Network = "solana:mainnet"

	_, err := BuildAuthorization(context.Background(), signer, requirements)
	assert.Error(t, err)
}

func TestBuildApprovalTx(t *testing.T) {
	tx, err := BuildApprovalTx("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	require.NoError(t, err)
	assert.Equal(t, "0x036CbD53842c5426634e7929541eC2318f3dCF7e", tx.To)
	assert.NotEmpty(t, tx.Data)
}

func TestGetPermit2AllowanceReadParams(t *testing.T) {
	params, err := GetPermit2AllowanceReadParams(
		"0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		"0x036CbD53842c5426634e7929541eC2318f3dCF7e",
	)
	require.NoError(t, err)
	assert.Equal(t, "allowance", params.FunctionName)
	assert.Len(t, params.Args, 2)
}
