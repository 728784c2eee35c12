// Package evmsigner provides concrete, go-ethereum-backed implementations of
// evmutil.ClientSigner and evmutil.FacilitatorSigner for production use;
// tests wire the verifier and settler to in-memory fakes instead.
package evmsigner

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/radiustechsystems/x402-upto/evmutil"
)

// zeroAddress denotes the native asset in GetBalance.
const zeroAddress = "0x0000000000000000000000000000000000000000"

// Signer is a single ECDSA key wired to an RPC endpoint. It implements both
// evmutil.ClientSigner (for payer-side use) and evmutil.FacilitatorSigner
// (for facilitator-side use); most deployments only need one side.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	client     *ethclient.Client
	chainID    *big.Int
}

// New creates a Signer from a hex-encoded private key and an RPC URL.
func New(privateKeyHex, rpcURL string) (*Signer, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %q: %w", rpcURL, err)
	}
	chainID, err := client.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	return &Signer{privateKey: privateKey, address: address, client: client, chainID: chainID}, nil
}

// Address returns the signer's Ethereum address.
func (s *Signer) Address() string { return s.address.Hex() }

// GetChainID returns the chain id the underlying RPC client is connected to.
func (s *Signer) GetChainID(ctx context.Context) (*big.Int, error) {
	return s.chainID, nil
}

// SignTypedData signs an EIP-712 typed message with the wrapped private key.
func (s *Signer) SignTypedData(
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
	signature, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign digest: %w", err)
	}
	signature[64] += 27
	return signature, nil
}

// VerifyTypedData recovers the signer of an EIP-712 message and compares it
// to expectedSigner.
func (s *Signer) VerifyTypedData(
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
		return false, fmt.Errorf("recover signer: %w", err)
	}
	recovered := crypto.PubkeyToAddress(*pubKey)
	return strings.EqualFold(recovered.Hex(), expectedSigner), nil
}

// ReadContract calls a read-only method and returns its unpacked result.
func (s *Signer) ReadContract(ctx context.Context, contractAddress string, abiJSON []byte, method string, args ...interface{}) (interface{}, error) {
	contractABI, err := abi.JSON(strings.NewReader(string(abiJSON)))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack call %s: %w", method, err)
	}

	addr := common.HexToAddress(contractAddress)
	result, err := s.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	outputs, err := contractABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(outputs) == 0 {
		return nil, nil
	}
	if len(outputs) == 1 {
		return outputs[0], nil
	}
	return outputs, nil
}

// WriteContract broadcasts a legacy transaction calling method and returns
// its hash.
func (s *Signer) WriteContract(ctx context.Context, contractAddress string, abiJSON []byte, method string, args ...interface{}) (string, error) {
	contractABI, err := abi.JSON(strings.NewReader(string(abiJSON)))
	if err != nil {
		return "", fmt.Errorf("parse abi: %w", err)
	}
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return "", fmt.Errorf("pack call %s: %w", method, err)
	}

	nonce, err := s.client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return "", fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch gas price: %w", err)
	}

	addr := common.HexToAddress(contractAddress)
	tx := types.NewTransaction(nonce, addr, big.NewInt(0), 300000, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}
	if err := s.client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	return signedTx.Hash().Hex(), nil
}

// WaitForTransactionReceipt polls once a second until the transaction mines,
// returning an error if ctx expires or no receipt appears after 30 polls.
func (s *Signer) WaitForTransactionReceipt(ctx context.Context, txHash string) (*evmutil.TransactionReceipt, error) {
	hash := common.HexToHash(txHash)
	for i := 0; i < 30; i++ {
		receipt, err := s.client.TransactionReceipt(ctx, hash)
		if err == nil {
			return &evmutil.TransactionReceipt{
				Status:      receipt.Status,
				BlockNumber: receipt.BlockNumber.Uint64(),
				TxHash:      receipt.TxHash.Hex(),
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil, fmt.Errorf("timed out waiting for receipt of %s", txHash)
}

// GetBalance returns the native balance if tokenAddress is the zero address,
// otherwise the ERC-20 balanceOf.
func (s *Signer) GetBalance(ctx context.Context, address string, tokenAddress string) (*big.Int, error) {
	if strings.EqualFold(tokenAddress, zeroAddress) {
		return s.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	}
	result, err := s.ReadContract(ctx, tokenAddress, []byte(evmutil.ERC20BalanceOfABI), "balanceOf", common.HexToAddress(address))
	if err != nil {
		return nil, err
	}
	balance, ok := result.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf return type %T", result)
	}
	return balance, nil
}
