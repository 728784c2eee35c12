// Package middleware sequences the upto protocol as a gin.HandlerFunc:
// verify before the handler, meter after it, settle after that, and never
// mutate a response that has already been committed to the client.
package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/radiustechsystems/x402-upto/evmutil"

	upto "github.com/radiustechsystems/x402-upto"
)

// MeterFunc computes the smallest-unit amount actually consumed by a
// request, given the handler's response body and status code. It must read
// the body non-destructively; the middleware hands it a copy.
type MeterFunc func(r *http.Request, responseBody []byte, statusCode int, authorizedAmount, payer string) (string, error)

// Options configures one gated route.
type Options struct {
	Network           string
	Asset             string
	PayTo             string
	MaxTimeoutSeconds int
	Description       string
	MimeType          string
	FacilitatorURL    string
	Meter             MeterFunc
}

// Option mutates Options, in the functional-options style of the x402 gin
// middleware's PaymentMiddlewareOptions.
type Option func(*Options)

func WithNetwork(network string) Option { return func(o *Options) { o.Network = network } }
func WithAsset(asset string) Option     { return func(o *Options) { o.Asset = asset } }
func WithMaxTimeoutSeconds(seconds int) Option {
	return func(o *Options) { o.MaxTimeoutSeconds = seconds }
}
func WithDescription(description string) Option {
	return func(o *Options) { o.Description = description }
}
func WithMimeType(mimeType string) Option { return func(o *Options) { o.MimeType = mimeType } }
func WithFacilitatorURL(url string) Option {
	return func(o *Options) { o.FacilitatorURL = url }
}
func WithMeter(meter MeterFunc) Option { return func(o *Options) { o.Meter = meter } }

func defaultOptions() *Options {
	return &Options{
		Network:           "eip155:84532",
		MaxTimeoutSeconds: 300,
		FacilitatorURL:    "http://localhost:4402",
		Meter:             flatRateMeter,
	}
}

// flatRateMeter is the default meter: the full authorized amount is
// consumed, matching the "exact" scheme's all-or-nothing behavior for
// routes that never call WithMeter.
func flatRateMeter(_ *http.Request, _ []byte, _ int, authorizedAmount, _ string) (string, error) {
	return authorizedAmount, nil
}

// Payment returns a gin middleware gating the route behind a payment of
// priceUSD (a decimal dollar string, e.g. "0.01"), payable to payTo.
func Payment(priceUSD, payTo string, opts ...Option) gin.HandlerFunc {
	options := defaultOptions()
	options.PayTo = payTo
	for _, opt := range opts {
		opt(options)
	}

	maxAmount, err := upto.ParseUSDCAmount(priceUSD)
	if err != nil {
		panic(fmt.Sprintf("middleware.Payment: invalid price %q: %v", priceUSD, err))
	}

	asset := options.Asset
	if asset == "" {
		cfg, ok := evmutil.GetNetworkConfig(options.Network)
		if !ok {
			panic(fmt.Sprintf("middleware.Payment: unknown network %q", options.Network))
		}
		asset = cfg.DefaultAsset.Address
	}

	requirements := upto.PaymentRequirements{
		Scheme:            upto.Scheme,
		Network:           options.Network,
		Asset:             asset,
		MaxAmount:         maxAmount,
		PayTo:             options.PayTo,
		MaxTimeoutSeconds: options.MaxTimeoutSeconds,
		Description:       options.Description,
		MimeType:          options.MimeType,
	}

	httpClient := &http.Client{}

	return func(c *gin.Context) {
		headerValue := c.GetHeader("X-Payment")
		if headerValue == "" {
			headerValue = c.GetHeader("Payment-Signature")
		}
		if headerValue == "" {
			respondPaymentRequired(c, requirements, "")
			c.Abort()
			return
		}

		payload, err := upto.DecodeUptoPayloadFromBase64(headerValue)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": upto.ErrInvalidPaymentPayload})
			c.Abort()
			return
		}

		verifyResp, err := callVerify(httpClient, options.FacilitatorURL, payload, requirements)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": upto.ErrFacilitatorUnavailable})
			c.Abort()
			return
		}
		if !verifyResp.IsValid {
			if verifyResp.InvalidReason == upto.ErrPermit2AllowanceRequired {
				c.JSON(http.StatusPreconditionFailed, gin.H{
					"error":   upto.ErrPaymentRequired,
					"reason":  verifyResp.InvalidReason,
					"accepts": []upto.PaymentRequirements{requirements},
				})
			} else {
				respondPaymentRequired(c, requirements, verifyResp.InvalidReason)
			}
			c.Abort()
			return
		}

		writer := &responseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer

		c.Next()

		settlementAmount, err := options.Meter(c.Request, bytes.Clone(writer.body.Bytes()), writer.statusCode, requirements.MaxAmount, verifyResp.Payer)
		if err != nil {
			log.Printf("meter failed, flushing unsettled response: %v", err)
			writer.flush()
			return
		}
		payload.SettlementAmount = &settlementAmount

		settleResp, err := callSettle(httpClient, options.FacilitatorURL, payload, requirements)
		if err != nil {
			log.Printf("settle: facilitator unavailable: %v", err)
			writer.flush()
			return
		}
		if !settleResp.Success {
			log.Printf("settle failed for payer %s: %s", verifyResp.Payer, settleResp.Error)
			writer.flush()
			return
		}

		encoded, err := settleResp.EncodeToBase64(requirements.MaxAmount)
		if err == nil {
			writer.Header().Set("X-Payment-Response", encoded)
		}
		writer.Header().Set("X-Payment-Settled", settleResp.SettledAmount)
		writer.Header().Set("X-Payment-TxHash", settleResp.TxHash)
		writer.flush()
	}
}

// respondPaymentRequired writes the 402 body, branching to an HTML paywall
// for a browser navigation and to plain JSON otherwise.
func respondPaymentRequired(c *gin.Context, requirements upto.PaymentRequirements, reason string) {
	if isWebBrowser(c.Request) {
		c.Data(http.StatusPaymentRequired, "text/html; charset=utf-8", []byte(paywallHTML(requirements)))
		return
	}
	body := gin.H{"error": upto.ErrPaymentRequired, "accepts": []upto.PaymentRequirements{requirements}}
	if requirements.Description != "" {
		body["description"] = requirements.Description
	}
	if requirements.MimeType != "" {
		body["mimeType"] = requirements.MimeType
	}
	if reason != "" {
		body["reason"] = reason
	}
	c.JSON(http.StatusPaymentRequired, body)
}

// isWebBrowser reports whether the request looks like direct browser
// navigation rather than an API call: an html-accepting request from a
// user agent claiming to be Mozilla-derived.
func isWebBrowser(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	userAgent := r.Header.Get("User-Agent")
	return strings.Contains(accept, "text/html") && strings.Contains(userAgent, "Mozilla")
}

func paywallHTML(requirements upto.PaymentRequirements) string {
	amount, err := upto.FormatUSDCAmount(requirements.MaxAmount)
	if err != nil {
		amount = requirements.MaxAmount
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head><title>Payment Required</title></head>
<body>
<h1>Payment Required</h1>
<p>This resource costs up to $%s USDC per request.</p>
<p>Pay to: %s</p>
<p>Network: %s</p>
</body></html>`, amount, requirements.PayTo, requirements.Network)
}

// responseWriter buffers the handler's output so the middleware can decide
// whether to attach settlement headers before anything reaches the client.
type responseWriter struct {
	gin.ResponseWriter
	body       *bytes.Buffer
	statusCode int
	written    bool
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.written = true
}

func (w *responseWriter) Write(data []byte) (int, error) {
	return w.body.Write(data)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

func (w *responseWriter) flush() {
	if !w.written {
		w.statusCode = http.StatusOK
	}
	w.ResponseWriter.WriteHeader(w.statusCode)
	if w.body.Len() > 0 {
		_, _ = w.ResponseWriter.Write(w.body.Bytes())
	}
}

func callVerify(client *http.Client, facilitatorURL string, payload upto.UptoPayload, requirements upto.PaymentRequirements) (*upto.VerifyResponse, error) {
	var result upto.VerifyResponse
	err := postJSON(client, facilitatorURL+"/verify", upto.VerifyRequest{Payload: payload, Requirements: requirements}, &result)
	return &result, err
}

func callSettle(client *http.Client, facilitatorURL string, payload upto.UptoPayload, requirements upto.PaymentRequirements) (*upto.SettleResponse, error) {
	var result upto.SettleResponse
	err := postJSON(client, facilitatorURL+"/settle", upto.SettleRequest{Payload: payload, Requirements: requirements}, &result)
	return &result, err
}

func postJSON(client *http.Client, url string, body, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("call %s: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response from %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d: %s", url, resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}
