// Package settler implements the upto scheme's on-chain settlement
// lifecycle: amount resolution, clamping, zero-amount elision,
// pre-settlement re-verification, and receipt interpretation.
package settler

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/radiustechsystems/x402-upto/evmutil"
	"github.com/radiustechsystems/x402-upto/verifier"

	upto "github.com/radiustechsystems/x402-upto"
)

// Settle resolves the settlement amount, clamps it against the authorized
// ceiling, elides zero-amount settlements without touching the chain,
// re-verifies to close the verify/settle race, and then calls the upto
// proxy's settle method.
func Settle(ctx context.Context, signer evmutil.FacilitatorSigner, payload upto.UptoPayload, requirements upto.PaymentRequirements) (*upto.SettleResponse, error) {
	auth := payload.Permit2Authorization

	permittedAmount, ok := new(big.Int).SetString(auth.Permitted.Amount, 10)
	if !ok {
		return &upto.SettleResponse{Success: false, Error: upto.ErrSettlementExceedsAuthorization}, nil
	}

	amount := permittedAmount
	if payload.SettlementAmount != nil {
		parsed, ok := new(big.Int).SetString(*payload.SettlementAmount, 10)
		if !ok {
			return &upto.SettleResponse{Success: false, Error: upto.ErrSettlementExceedsAuthorization}, nil
		}
		amount = parsed
	}

	// Step 2: clamp check, no chain call.
	if amount.Cmp(permittedAmount) > 0 {
		return &upto.SettleResponse{Success: false, Error: upto.ErrSettlementExceedsAuthorization}, nil
	}

	// Step 3: zero-amount elision, no chain call.
	if amount.Sign() == 0 {
		return &upto.SettleResponse{Success: true, SettledAmount: "0"}, nil
	}

	// Step 4: re-verify to close the window between middleware verify and settle.
	verifyResult, err := verifier.Verify(ctx, signer, payload, requirements)
	if err != nil {
		return &upto.SettleResponse{Success: false, Error: err.Error()}, nil
	}
	if !verifyResult.IsValid {
		return &upto.SettleResponse{Success: false, Error: verifyResult.InvalidReason}, nil
	}

	deadline, ok := new(big.Int).SetString(auth.Deadline, 10)
	if !ok {
		return &upto.SettleResponse{Success: false, Error: upto.ErrSettlementExceedsAuthorization}, nil
	}
	validAfter, ok := new(big.Int).SetString(auth.Witness.ValidAfter, 10)
	if !ok {
		return &upto.SettleResponse{Success: false, Error: upto.ErrSettlementExceedsAuthorization}, nil
	}
	signature, err := evmutil.HexToBytes(payload.Signature)
	if err != nil {
		return &upto.SettleResponse{Success: false, Error: upto.ErrInvalidPermit2Signature}, nil
	}
	nonce, ok := new(big.Int).SetString(auth.Nonce, 10)
	if !ok {
		nonce = big.NewInt(0)
	}
	extraBytes, err := evmutil.HexToBytes(auth.Witness.Extra)
	if err != nil {
		extraBytes = []byte{}
	}

	permitArg := struct {
		Permitted struct {
			Token  common.Address
			Amount *big.Int
		}
		Nonce    *big.Int
		Deadline *big.Int
	}{
		Nonce:    nonce,
		Deadline: deadline,
	}
	permitArg.Permitted.Token = common.HexToAddress(auth.Permitted.Token)
	permitArg.Permitted.Amount = permittedAmount

	witnessArg := struct {
		To         common.Address
		ValidAfter *big.Int
		Extra      []byte
	}{
		To:         common.HexToAddress(auth.Witness.To),
		ValidAfter: validAfter,
		Extra:      extraBytes,
	}

	// Step 5: call settle(permit, amount, owner, witness, signature).
	txHash, err := signer.WriteContract(
		ctx,
		evmutil.UptoProxyAddress,
		[]byte(evmutil.UptoProxySettleABI),
		evmutil.FunctionSettle,
		permitArg,
		amount,
		common.HexToAddress(auth.From),
		witnessArg,
		signature,
	)
	if err != nil {
		return &upto.SettleResponse{Success: false, Error: mapSettleError(err)}, nil
	}

	receipt, err := signer.WaitForTransactionReceipt(ctx, txHash)
	if err != nil {
		return &upto.SettleResponse{Success: false, Error: err.Error(), TxHash: txHash}, nil
	}

	// Step 6: interpret the receipt status.
	if receipt.Status != evmutil.TxStatusSuccess {
		return &upto.SettleResponse{Success: false, Error: upto.ErrTransactionReverted, TxHash: txHash}, nil
	}

	// Step 7: success.
	return &upto.SettleResponse{Success: true, TxHash: txHash, SettledAmount: amount.String()}, nil
}

// mapSettleError turns a chain-write error into the operator-facing message
// the base spec calls for: any thrown exception is mapped to its message.
func mapSettleError(err error) string {
	return fmt.Sprintf("%v", err)
}
