package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// AdminHandler handles owner-only policy and role changes. The engine
// enforces the owner check; the handler only shapes requests.
type AdminHandler struct {
	common *CommonServices
}

// NewAdminHandler creates a new AdminHandler instance
func NewAdminHandler(common *CommonServices) *AdminHandler {
	return &AdminHandler{common: common}
}

// UpdateBoundsRequest represents the request body for changing payout bounds
type UpdateBoundsRequest struct {
	MinPercent uint64 `json:"min_percent"`
	MaxPercent uint64 `json:"max_percent" binding:"required"`
}

// UpdateCooldownRequest represents the request body for changing the cooldown
type UpdateCooldownRequest struct {
	CooldownSeconds int64 `json:"cooldown_seconds"`
}

// UpdateAgentRequest represents the request body for changing the agent
type UpdateAgentRequest struct {
	Agent string `json:"agent" binding:"required"`
}

// TransferOwnershipRequest represents the request body for handing off the owner role
type TransferOwnershipRequest struct {
	NewOwner string `json:"new_owner" binding:"required"`
}

// UpdateBounds replaces the payout percent bounds.
func (h *AdminHandler) UpdateBounds(c *gin.Context) {
	var body UpdateBoundsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err := h.common.engine.SetBounds(c.Request.Context(), CallerAddress(c), body.MinPercent, body.MaxPercent)
	if err != nil {
		handleEngineError(c, err)
		return
	}
	sendSuccessMessage(c, http.StatusOK, "Payout bounds updated")
}

// UpdateCooldown replaces the claim cooldown.
func (h *AdminHandler) UpdateCooldown(c *gin.Context) {
	var body UpdateCooldownRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.CooldownSeconds < 0 {
		sendError(c, http.StatusBadRequest, "Cooldown must be non-negative", nil)
		return
	}

	err := h.common.engine.SetCooldown(c.Request.Context(), CallerAddress(c),
		time.Duration(body.CooldownSeconds)*time.Second)
	if err != nil {
		handleEngineError(c, err)
		return
	}
	sendSuccessMessage(c, http.StatusOK, "Cooldown updated")
}

// UpdateAgent replaces the authorized agent.
func (h *AdminHandler) UpdateAgent(c *gin.Context) {
	var body UpdateAgentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err := h.common.engine.SetAuthorizedAgent(c.Request.Context(), CallerAddress(c), body.Agent)
	if err != nil {
		handleEngineError(c, err)
		return
	}
	sendSuccessMessage(c, http.StatusOK, "Authorized agent updated")
}

// TransferOwnership hands the owner role to a new address.
func (h *AdminHandler) TransferOwnership(c *gin.Context) {
	var body TransferOwnershipRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err := h.common.engine.TransferOwnership(c.Request.Context(), CallerAddress(c), body.NewOwner)
	if err != nil {
		handleEngineError(c, err)
		return
	}
	sendSuccessMessage(c, http.StatusOK, "Ownership transferred")
}
