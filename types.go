// Package upto implements the upto HTTP micropayment scheme: a payer signs a
// ceiling authorization, a resource server meters actual consumption, and a
// facilitator settles only the consumed amount on chain.
package upto

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Scheme is the payment scheme identifier this module implements.
const Scheme = "upto"

// Network is a CAIP-2 chain identifier, e.g. "eip155:8453".
type Network string

// Parse splits the network into its namespace and reference, e.g.
// "eip155:8453" -> ("eip155", "8453").
func (n Network) Parse() (namespace, reference string, err error) {
	parts := strings.SplitN(string(n), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid network identifier: %q", n)
	}
	return parts[0], parts[1], nil
}

// PaymentRequirements is advertised by the resource server in the 402 body
// and echoed back to the facilitator on verify/settle.
type PaymentRequirements struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	Asset             string `json:"asset"`
	MaxAmount         string `json:"maxAmount"`
	PayTo             string `json:"payTo"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds"`
	Resource          string `json:"resource,omitempty"`
	Description       string `json:"description,omitempty"`
	MimeType          string `json:"mimeType,omitempty"`
}

// Permit2Witness binds a Permit2 authorization to a recipient and a validity
// window, plus opaque extra bytes.
type Permit2Witness struct {
	To         string `json:"to"`
	ValidAfter string `json:"validAfter"`
	Extra      string `json:"extra"`
}

// Permit2TokenPermissions describes the token and ceiling amount permitted.
type Permit2TokenPermissions struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// Permit2Authorization is the payer-signed permit. Amount is the ceiling;
// Spender is always the upto proxy address.
type Permit2Authorization struct {
	From      string                  `json:"from"`
	Permitted Permit2TokenPermissions `json:"permitted"`
	Spender   string                  `json:"spender"`
	Nonce     string                  `json:"nonce"`
	Deadline  string                  `json:"deadline"`
	Witness   Permit2Witness          `json:"witness"`
}

// UptoPayload is transmitted in the X-Payment header, base64 of JSON.
// SettlementAmount is absent on the wire until the middleware fills it in
// after metering, immediately before calling settle.
type UptoPayload struct {
	Signature            string               `json:"signature"`
	Permit2Authorization Permit2Authorization `json:"permit2Authorization"`
	SettlementAmount     *string              `json:"settlementAmount,omitempty"`
}

// EncodeToBase64 base64-encodes the JSON-serialized payload for the
// X-Payment header.
func (p UptoPayload) EncodeToBase64() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal upto payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeUptoPayloadFromBase64 reverses EncodeToBase64.
func DecodeUptoPayloadFromBase64(encoded string) (UptoPayload, error) {
	var payload UptoPayload
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return payload, fmt.Errorf("decode base64 payment header: %w", err)
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("decode payment payload: %w", err)
	}
	return payload, nil
}

// PaymentRequired is the body of a 402 response.
type PaymentRequired struct {
	Error       string                 `json:"error"`
	Accepts     []PaymentRequirements  `json:"accepts"`
	Description string                 `json:"description,omitempty"`
	MimeType    string                 `json:"mimeType,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// VerifyRequest is the body of a POST /verify call.
type VerifyRequest struct {
	Payload      UptoPayload          `json:"payload"`
	Requirements PaymentRequirements  `json:"requirements"`
}

// VerifyResponse is returned by the verifier and by POST /verify verbatim.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleRequest is the body of a POST /settle call.
type SettleRequest struct {
	Payload      UptoPayload         `json:"payload"`
	Requirements PaymentRequirements `json:"requirements"`
}

// SettleResponse is returned by the settler and by POST /settle verbatim.
type SettleResponse struct {
	Success        bool   `json:"success"`
	TxHash         string `json:"txHash,omitempty"`
	SettledAmount  string `json:"settledAmount,omitempty"`
	Error          string `json:"error,omitempty"`
}

// EncodeToBase64 encodes the settle response for the X-Payment-Response header.
func (r SettleResponse) EncodeToBase64(authorizedAmount string) (string, error) {
	body := struct {
		Success          bool   `json:"success"`
		TxHash           string `json:"txHash,omitempty"`
		SettledAmount    string `json:"settledAmount,omitempty"`
		AuthorizedAmount string `json:"authorizedAmount,omitempty"`
	}{
		Success:          r.Success,
		TxHash:           r.TxHash,
		SettledAmount:    r.SettledAmount,
		AuthorizedAmount: authorizedAmount,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal settle response: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// SupportedResponse is returned by GET /supported.
type SupportedResponse struct {
	Schemes     []string `json:"schemes"`
	Networks    []string `json:"networks"`
	Facilitator string   `json:"facilitator"`
}

// StatsResponse is returned by GET /stats.
type StatsResponse struct {
	TotalPayments    int64 `json:"totalPayments"`
	SettledPayments  int64 `json:"settledPayments"`
	TotalAuthorized  string `json:"totalAuthorized"`
	TotalSettled     string `json:"totalSettled"`
	SavingsPercent   int64  `json:"savingsPercent"`
}

// AuditStatus is the lifecycle state of an audit record.
type AuditStatus string

const (
	StatusVerified AuditStatus = "verified"
	StatusSettled  AuditStatus = "settled"
	StatusFailed   AuditStatus = "failed"
)

// AuditRecord mirrors one row of the audit store's payments table.
type AuditRecord struct {
	ID               string
	Payer            string
	Recipient        string
	Token            string
	AuthorizedAmount string
	SettledAmount    string
	Nonce            string
	TxHash           string
	Status           AuditStatus
	Network          string
	CreatedAt        int64
	SettledAt        int64
}
