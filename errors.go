package upto

import "fmt"

// Verification failure tags, returned in VerifyResponse.InvalidReason. Order
// matches the verifier's check order.
const (
	ErrInvalidSpender             = "invalid_spender"
	ErrInvalidRecipient           = "invalid_recipient"
	ErrPermit2DeadlineExpired     = "permit2_deadline_expired"
	ErrPermit2NotYetValid         = "permit2_not_yet_valid"
	ErrInsufficientAuthorized     = "insufficient_authorized_amount"
	ErrInvalidPermit2Signature    = "invalid_permit2_signature"
	ErrSignatureVerificationFail  = "signature_verification_failed"
	ErrPermit2AllowanceRequired   = "permit2_allowance_required"
	ErrAllowanceCheckFailed       = "allowance_check_failed"
	ErrInsufficientBalance        = "insufficient_balance"
	ErrBalanceCheckFailed         = "balance_check_failed"
)

// Settlement failure tags, returned in SettleResponse.Error.
const (
	ErrSettlementExceedsAuthorization = "settlement_exceeds_authorization"
	ErrTransactionReverted            = "transaction_reverted"
)

// Middleware-level HTTP error messages.
const (
	ErrPaymentRequired       = "Payment Required"
	ErrInvalidPaymentPayload = "Invalid payment payload"
	ErrFacilitatorUnavailable = "Facilitator unavailable"
)

// PaymentError carries a machine-readable code alongside a human message,
// mirroring the shape used throughout the facilitator and middleware for
// structured failures that still need to render as plain JSON.
type PaymentError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewPaymentError constructs a PaymentError.
func NewPaymentError(code, message string, details map[string]interface{}) *PaymentError {
	return &PaymentError{Code: code, Message: message, Details: details}
}
