// Package client builds and signs upto authorization payloads on behalf of
// a payer, and builds the one-time Permit2 approval transaction.
package client

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/radiustechsystems/x402-upto/evmutil"

	upto "github.com/radiustechsystems/x402-upto"
)

// validAfterSkew is the buffer subtracted from now for the witness's
// validAfter, absorbing clock drift between payer and facilitator.
const validAfterSkew = 60 * time.Second

// BuildAuthorization builds and signs an upto payload for the given
// requirements. The returned payload's SettlementAmount is unset; the
// middleware fills it in after metering.
func BuildAuthorization(ctx context.Context, signer evmutil.ClientSigner, requirements upto.PaymentRequirements) (upto.UptoPayload, error) {
	namespace, chainIDStr, err := upto.Network(requirements.Network).Parse()
	if err != nil {
		return upto.UptoPayload{}, fmt.Errorf("unsupported network format: %w", err)
	}
	if namespace != "eip155" {
		return upto.UptoPayload{}, fmt.Errorf("unsupported network format: %q", requirements.Network)
	}
	chainID, ok := new(big.Int).SetString(chainIDStr, 10)
	if !ok {
		return upto.UptoPayload{}, fmt.Errorf("unsupported network format: %q", requirements.Network)
	}

	now := time.Now()
	timeout := requirements.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = 300
	}
	deadline := now.Add(time.Duration(timeout) * time.Second).Unix()
	validAfter := now.Add(-validAfterSkew).Unix()

	nonce, err := evmutil.RandomNonce()
	if err != nil {
		return upto.UptoPayload{}, err
	}

	from, err := evmutil.NormalizeAddress(signer.Address())
	if err != nil {
		return upto.UptoPayload{}, err
	}
	token, err := evmutil.NormalizeAddress(requirements.Asset)
	if err != nil {
		return upto.UptoPayload{}, err
	}
	payTo, err := evmutil.NormalizeAddress(requirements.PayTo)
	if err != nil {
		return upto.UptoPayload{}, err
	}

	authorization := upto.Permit2Authorization{
		From: from,
		Permitted: upto.Permit2TokenPermissions{
			Token:  token,
			Amount: requirements.MaxAmount,
		},
		Spender:  evmutil.UptoProxyAddress,
		Nonce:    nonce,
		Deadline: strconv.FormatInt(deadline, 10),
		Witness: upto.Permit2Witness{
			To:         payTo,
			ValidAfter: strconv.FormatInt(validAfter, 10),
			Extra:      "0x",
		},
	}

	signature, err := signPermit2Authorization(ctx, signer, authorization, chainID)
	if err != nil {
		return upto.UptoPayload{}, fmt.Errorf("sign permit2 authorization: %w", err)
	}

	return upto.UptoPayload{
		Signature:            evmutil.BytesToHex(signature),
		Permit2Authorization: authorization,
	}, nil
}

func signPermit2Authorization(ctx context.Context, signer evmutil.ClientSigner, authorization upto.Permit2Authorization, chainID *big.Int) ([]byte, error) {
	domain := evmutil.Permit2Domain(chainID.Int64())

	amount, ok := new(big.Int).SetString(authorization.Permitted.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid permitted amount: %q", authorization.Permitted.Amount)
	}
	nonce, ok := new(big.Int).SetString(authorization.Nonce, 10)
	if !ok {
		return nil, fmt.Errorf("invalid nonce: %q", authorization.Nonce)
	}
	deadline, ok := new(big.Int).SetString(authorization.Deadline, 10)
	if !ok {
		return nil, fmt.Errorf("invalid deadline: %q", authorization.Deadline)
	}
	validAfter, ok := new(big.Int).SetString(authorization.Witness.ValidAfter, 10)
	if !ok {
		return nil, fmt.Errorf("invalid validAfter: %q", authorization.Witness.ValidAfter)
	}
	extraBytes, err := evmutil.HexToBytes(authorization.Witness.Extra)
	if err != nil {
		return nil, fmt.Errorf("invalid witness extra: %w", err)
	}

	message := map[string]interface{}{
		"permitted": map[string]interface{}{
			"token":  authorization.Permitted.Token,
			"amount": amount,
		},
		"spender":  authorization.Spender,
		"nonce":    nonce,
		"deadline": deadline,
		"witness": map[string]interface{}{
			"to":         authorization.Witness.To,
			"validAfter": validAfter,
			"extra":      extraBytes,
		},
	}

	return signer.SignTypedData(ctx, domain, evmutil.GetPermit2EIP712Types(), "PermitWitnessTransferFrom", message)
}

// ApprovalTx is a token approval transaction ready to be signed and
// broadcast by the payer.
type ApprovalTx struct {
	To   string
	Data string
}

// BuildApprovalTx returns the one-time ERC-20 approval transaction that lets
// Permit2 pull tokenAddress on the payer's behalf: approve(Permit2, 2^160-1).
func BuildApprovalTx(tokenAddress string) (ApprovalTx, error) {
	token, err := evmutil.NormalizeAddress(tokenAddress)
	if err != nil {
		return ApprovalTx{}, err
	}
	contractABI, err := abi.JSON(strings.NewReader(evmutil.ERC20ApproveABI))
	if err != nil {
		return ApprovalTx{}, fmt.Errorf("parse approve ABI: %w", err)
	}
	data, err := contractABI.Pack("approve", common.HexToAddress(evmutil.PERMIT2Address), evmutil.MaxUint160())
	if err != nil {
		return ApprovalTx{}, fmt.Errorf("encode approve call: %w", err)
	}
	return ApprovalTx{To: token, Data: evmutil.BytesToHex(data)}, nil
}

// AllowanceReadParams is the tuple a caller needs to read the current
// Permit2 allowance for tokenAddress before deciding whether an approval
// transaction is necessary at all.
type AllowanceReadParams struct {
	ContractAddress string
	ABI             []byte
	FunctionName    string
	Args            []interface{}
}

// GetPermit2AllowanceReadParams returns the read-contract parameters for
// ERC20.allowance(owner, Permit2).
func GetPermit2AllowanceReadParams(owner, tokenAddress string) (AllowanceReadParams, error) {
	token, err := evmutil.NormalizeAddress(tokenAddress)
	if err != nil {
		return AllowanceReadParams{}, err
	}
	ownerAddr, err := evmutil.NormalizeAddress(owner)
	if err != nil {
		return AllowanceReadParams{}, err
	}
	return AllowanceReadParams{
		ContractAddress: token,
		ABI:             []byte(evmutil.ERC20AllowanceABI),
		FunctionName:    "allowance",
		Args:            []interface{}{common.HexToAddress(ownerAddr), common.HexToAddress(evmutil.PERMIT2Address)},
	}, nil
}
