// Package verifier implements the upto scheme's total-validity predicate
// over an authorization payload, the advertised requirements, and on-chain
// state reached through a FacilitatorSigner.
package verifier

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/radiustechsystems/x402-upto/evmutil"

	upto "github.com/radiustechsystems/x402-upto"
)

// Verify runs the eight ordered checks from cheapest to most expensive,
// returning on the first failure. On success it returns the authorization's
// from address, as written in the payload, as the payer.
func Verify(ctx context.Context, signer evmutil.FacilitatorSigner, payload upto.UptoPayload, requirements upto.PaymentRequirements) (*upto.VerifyResponse, error) {
	auth := payload.Permit2Authorization

	// 1. spender must be the upto proxy.
	if !evmutil.AddressesEqual(auth.Spender, evmutil.UptoProxyAddress) {
		return invalid(upto.ErrInvalidSpender), nil
	}

	// 2. witness.to must match the advertised payTo.
	if !evmutil.AddressesEqual(auth.Witness.To, requirements.PayTo) {
		return invalid(upto.ErrInvalidRecipient), nil
	}

	deadline, ok := new(big.Int).SetString(auth.Deadline, 10)
	if !ok {
		return invalid(upto.ErrPermit2DeadlineExpired), nil
	}
	validAfter, ok := new(big.Int).SetString(auth.Witness.ValidAfter, 10)
	if !ok {
		return invalid(upto.ErrPermit2NotYetValid), nil
	}
	now := big.NewInt(nowUnix())

	// 3. deadline > now.
	if deadline.Cmp(now) <= 0 {
		return invalid(upto.ErrPermit2DeadlineExpired), nil
	}

	// 4. validAfter <= now.
	if validAfter.Cmp(now) > 0 {
		return invalid(upto.ErrPermit2NotYetValid), nil
	}

	permittedAmount, ok := new(big.Int).SetString(auth.Permitted.Amount, 10)
	if !ok {
		return invalid(upto.ErrInsufficientAuthorized), nil
	}
	maxAmount, ok := new(big.Int).SetString(requirements.MaxAmount, 10)
	if !ok {
		return invalid(upto.ErrInsufficientAuthorized), nil
	}

	// 5. permitted.amount >= requirements.maxAmount.
	if permittedAmount.Cmp(maxAmount) < 0 {
		return invalid(upto.ErrInsufficientAuthorized), nil
	}

	// 6. EIP-712 signature recovers to from.
	signature, err := evmutil.HexToBytes(payload.Signature)
	if err != nil {
		return invalid(upto.ErrInvalidPermit2Signature), nil
	}
	chainID, err := signer.GetChainID(ctx)
	if err != nil {
		return invalid(upto.ErrSignatureVerificationFail), nil
	}
	domain := evmutil.Permit2Domain(chainID.Int64())
	message := permit2Message(auth, permittedAmount, deadline, validAfter)
	valid, err := signer.VerifyTypedData(ctx, domain, evmutil.GetPermit2EIP712Types(), "PermitWitnessTransferFrom", message, signature, auth.From)
	if err != nil {
		return invalid(upto.ErrSignatureVerificationFail), nil
	}
	if !valid {
		return invalid(upto.ErrInvalidPermit2Signature), nil
	}

	// 7. Permit2 allowance from `from` covers permitted.amount.
	allowanceResult, err := signer.ReadContract(ctx, auth.Permitted.Token, []byte(evmutil.ERC20AllowanceABI), "allowance", hexAddr(auth.From), hexAddr(evmutil.PERMIT2Address))
	if err != nil {
		return invalid(upto.ErrAllowanceCheckFailed), nil
	}
	allowance, ok := toBigInt(allowanceResult)
	if !ok {
		return invalid(upto.ErrAllowanceCheckFailed), nil
	}
	if allowance.Cmp(permittedAmount) < 0 {
		return invalid(upto.ErrPermit2AllowanceRequired), nil
	}

	// 8. balance of `from` covers permitted.amount.
	balance, err := signer.GetBalance(ctx, auth.From, auth.Permitted.Token)
	if err != nil {
		return invalid(upto.ErrBalanceCheckFailed), nil
	}
	if balance.Cmp(permittedAmount) < 0 {
		return invalid(upto.ErrInsufficientBalance), nil
	}

	return &upto.VerifyResponse{IsValid: true, Payer: auth.From}, nil
}

func invalid(reason string) *upto.VerifyResponse {
	return &upto.VerifyResponse{IsValid: false, InvalidReason: reason}
}

func permit2Message(auth upto.Permit2Authorization, amount, deadline, validAfter *big.Int) map[string]interface{} {
	extraBytes, _ := evmutil.HexToBytes(auth.Witness.Extra)
	return map[string]interface{}{
		"permitted": map[string]interface{}{
			"token":  auth.Permitted.Token,
			"amount": amount,
		},
		"spender":  auth.Spender,
		"nonce":    parseBigOrZero(auth.Nonce),
		"deadline": deadline,
		"witness": map[string]interface{}{
			"to":         auth.Witness.To,
			"validAfter": validAfter,
			"extra":      extraBytes,
		},
	}
}

func parseBigOrZero(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

func toBigInt(v interface{}) (*big.Int, bool) {
	switch n := v.(type) {
	case *big.Int:
		return n, true
	case big.Int:
		return &n, true
	default:
		return nil, false
	}
}

func hexAddr(s string) common.Address { return common.HexToAddress(s) }

func nowUnix() int64 { return time.Now().Unix() }
