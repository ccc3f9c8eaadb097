package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spigotlabs/spigot-api/internal/engine"
)

// ClaimHandler handles claim operations
type ClaimHandler struct {
	common *CommonServices
}

// NewClaimHandler creates a new ClaimHandler instance
func NewClaimHandler(common *CommonServices) *ClaimHandler {
	return &ClaimHandler{common: common}
}

// CreateClaimRequest represents the request body for a claim. Amount applies
// in caller-amount mode; Percent or Random applies in derived-percent mode.
type CreateClaimRequest struct {
	Amount  string `json:"amount,omitempty"`
	Percent uint64 `json:"percent,omitempty"`
	Random  bool   `json:"random,omitempty"`
}

// CreateClaimForRequest adds the recipient for agent-initiated claims.
type CreateClaimForRequest struct {
	Recipient string `json:"recipient" binding:"required"`
	Amount    string `json:"amount,omitempty"`
	Percent   uint64 `json:"percent,omitempty"`
	Random    bool   `json:"random,omitempty"`
}

// ClaimResponse represents a successful payout.
type ClaimResponse struct {
	Object    string `json:"object"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

func (r CreateClaimRequest) toEngineRequest() (engine.ClaimRequest, bool) {
	req := engine.ClaimRequest{Percent: r.Percent, Random: r.Random}
	if r.Amount != "" {
		amount, ok := parseAmount(r.Amount)
		if !ok {
			return engine.ClaimRequest{}, false
		}
		req.Amount = amount
	}
	return req, true
}

// CreateClaim pays the caller from the pool under the current policy.
func (h *ClaimHandler) CreateClaim(c *gin.Context) {
	var body CreateClaimRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req, ok := body.toEngineRequest()
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid amount format", nil)
		return
	}

	caller := CallerAddress(c)
	amount, err := h.common.engine.ClaimSelf(c.Request.Context(), caller, req)
	if err != nil {
		handleEngineError(c, err)
		return
	}

	sendSuccess(c, http.StatusCreated, ClaimResponse{
		Object:    "claim",
		Recipient: caller,
		Amount:    amount.String(),
	})
}

// CreateClaimFor pays an arbitrary recipient; restricted to the authorized
// agent by the engine.
func (h *ClaimHandler) CreateClaimFor(c *gin.Context) {
	var body CreateClaimForRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req, ok := CreateClaimRequest{
		Amount:  body.Amount,
		Percent: body.Percent,
		Random:  body.Random,
	}.toEngineRequest()
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid amount format", nil)
		return
	}

	amount, err := h.common.engine.ClaimFor(c.Request.Context(), CallerAddress(c), body.Recipient, req)
	if err != nil {
		handleEngineError(c, err)
		return
	}

	sendSuccess(c, http.StatusCreated, ClaimResponse{
		Object:    "claim",
		Recipient: body.Recipient,
		Amount:    amount.String(),
	})
}
