package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/taksu/verifier"
)

// VerifierHandlers contains HTTP handlers for the challenge endpoints
type VerifierHandlers struct {
	svc *verifier.Service
}

// NewVerifierHandlers creates new verifier handlers
func NewVerifierHandlers(svc *verifier.Service) *VerifierHandlers {
	return &VerifierHandlers{
		svc: svc,
	}
}

// GenerateNonce handles the nonce request
func (h *VerifierHandlers) GenerateNonce(c *gin.Context) {
	nonce, err := h.svc.GenerateNonce(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate nonce"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

// VerifyMessage handles the signature verification request
func (h *VerifierHandlers) VerifyMessage(c *gin.Context) {
	message := c.Query("message")
	address := c.Query("address")
	signature := c.Query("signature")

	if message == "" || address == "" || signature == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": "message, address and signature are required",
		})
		return
	}

	valid, err := h.svc.VerifyMessage(c.Request.Context(), message, address, signature)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Verification failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

// Healthz reports liveness
func (h *VerifierHandlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
