package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// FundingHandler handles deposits and the owner's emergency withdrawal
type FundingHandler struct {
	common *CommonServices
}

// NewFundingHandler creates a new FundingHandler instance
func NewFundingHandler(common *CommonServices) *FundingHandler {
	return &FundingHandler{common: common}
}

// CreateDepositRequest represents the request body for funding the pool
type CreateDepositRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// EmergencyWithdrawRequest represents the owner's drain request
type EmergencyWithdrawRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// CreateDeposit pulls caller-authorized funds into the pool.
func (h *FundingHandler) CreateDeposit(c *gin.Context) {
	var body CreateDepositRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, ok := parseAmount(body.Amount)
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid amount format", nil)
		return
	}

	if err := h.common.engine.Deposit(c.Request.Context(), CallerAddress(c), amount); err != nil {
		handleEngineError(c, err)
		return
	}

	sendSuccessMessage(c, http.StatusCreated, "Deposit received")
}

// EmergencyWithdraw drains funds to the owner, bypassing payout policy.
func (h *FundingHandler) EmergencyWithdraw(c *gin.Context) {
	var body EmergencyWithdrawRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, ok := parseAmount(body.Amount)
	if !ok {
		sendError(c, http.StatusBadRequest, "Invalid amount format", nil)
		return
	}

	if err := h.common.engine.EmergencyWithdraw(c.Request.Context(), CallerAddress(c), amount); err != nil {
		handleEngineError(c, err)
		return
	}

	sendSuccessMessage(c, http.StatusOK, "Emergency withdrawal complete")
}
