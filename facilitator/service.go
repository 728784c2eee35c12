// Package facilitator wires the verifier, settler, and audit store behind
// the HTTP endpoints a resource server's middleware calls.
package facilitator

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/radiustechsystems/x402-upto/audit"
	"github.com/radiustechsystems/x402-upto/evmutil"
	"github.com/radiustechsystems/x402-upto/settler"
	"github.com/radiustechsystems/x402-upto/verifier"

	upto "github.com/radiustechsystems/x402-upto"
)

// Service holds the dependencies the facilitator's HTTP handlers need.
type Service struct {
	Signer             evmutil.FacilitatorSigner
	Store              *audit.Store
	Network            string
	FacilitatorAddress string
}

// New constructs a Service.
func New(signer evmutil.FacilitatorSigner, store *audit.Store, network, facilitatorAddress string) *Service {
	return &Service{Signer: signer, Store: store, Network: network, FacilitatorAddress: facilitatorAddress}
}

// Router builds the gin engine exposing /verify, /settle, /supported,
// /stats, and a health probe at /.
func (s *Service) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", s.handleHealth)
	router.POST("/verify", s.handleVerify)
	router.POST("/settle", s.handleSettle)
	router.GET("/supported", s.handleSupported)
	router.GET("/stats", s.handleStats)

	return router
}

func (s *Service) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "network": s.Network})
}

func (s *Service) handleVerify(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	var req upto.VerifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	result, err := verifier.Verify(c.Request.Context(), s.Signer, req.Payload, req.Requirements)
	if err != nil {
		log.Printf("verify: internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if result.IsValid {
		if err := s.Store.RecordVerified(c.Request.Context(), upto.AuditRecord{
			Payer:            result.Payer,
			Recipient:        req.Requirements.PayTo,
			Token:            req.Payload.Permit2Authorization.Permitted.Token,
			AuthorizedAmount: req.Payload.Permit2Authorization.Permitted.Amount,
			Nonce:            req.Payload.Permit2Authorization.Nonce,
			Network:          req.Requirements.Network,
			CreatedAt:        time.Now().Unix(),
		}); err != nil {
			log.Printf("verify: failed to record audit row: %v", err)
		}
	}

	c.JSON(http.StatusOK, result)
}

func (s *Service) handleSettle(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	var req upto.SettleRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	result, err := settler.Settle(c.Request.Context(), s.Signer, req.Payload, req.Requirements)
	if err != nil {
		log.Printf("settle: internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	nonce := req.Payload.Permit2Authorization.Nonce
	now := time.Now().Unix()
	if result.Success && result.TxHash != "" {
		if err := s.Store.RecordSettled(c.Request.Context(), nonce, result.SettledAmount, result.TxHash, now); err != nil {
			log.Printf("settle: failed to record settled row: %v", err)
		}
	} else {
		if err := s.Store.RecordFailed(c.Request.Context(), nonce, result.Error, now); err != nil {
			log.Printf("settle: failed to record failed row: %v", err)
		}
	}

	c.JSON(http.StatusOK, result)
}

func (s *Service) handleSupported(c *gin.Context) {
	c.JSON(http.StatusOK, upto.SupportedResponse{
		Schemes:     []string{upto.Scheme},
		Networks:    []string{s.Network},
		Facilitator: s.FacilitatorAddress,
	})
}

func (s *Service) handleStats(c *gin.Context) {
	stats, err := s.Store.Stats(c.Request.Context())
	if err != nil {
		log.Printf("stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
