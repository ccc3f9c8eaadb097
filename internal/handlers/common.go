package handlers

import (
	"errors"
	"math/big"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigotlabs/spigot-api/internal/engine"
	"github.com/spigotlabs/spigot-api/internal/logger"
	"github.com/spigotlabs/spigot-api/internal/store"
)

// CommonServices holds common dependencies used across handlers
type CommonServices struct {
	engine *engine.Engine
	events *store.MemoryEvents
}

// NewCommonServices creates a new instance of CommonServices
func NewCommonServices(eng *engine.Engine, events *store.MemoryEvents) *CommonServices {
	return &CommonServices{
		engine: eng,
		events: events,
	}
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// sendError is a helper function that combines logging and error response
func sendError(c *gin.Context, statusCode int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
	)
	c.JSON(statusCode, ErrorResponse{Error: message})
}

// sendSuccess is a helper function that sends a success response
func sendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// sendSuccessMessage is a helper function that sends a success message
func sendSuccessMessage(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, SuccessResponse{Message: message})
}

// handleEngineError maps the engine's error taxonomy onto HTTP status codes.
func handleEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrUnauthorized):
		sendError(c, http.StatusForbidden, "Caller is not authorized for this operation", err)
	case errors.Is(err, engine.ErrCooldownActive):
		sendError(c, http.StatusTooManyRequests, "Cooldown has not elapsed", err)
	case errors.Is(err, engine.ErrPercentOutOfRange):
		sendError(c, http.StatusBadRequest, "Requested percent is outside policy bounds", err)
	case errors.Is(err, engine.ErrAmountTooSmall):
		sendError(c, http.StatusBadRequest, "Requested amount is below the policy minimum", err)
	case errors.Is(err, engine.ErrAmountTooLarge):
		sendError(c, http.StatusBadRequest, "Requested amount is above the policy maximum", err)
	case errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidAddress),
		errors.Is(err, engine.ErrInvalidPolicy):
		sendError(c, http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, engine.ErrInsufficientPool):
		sendError(c, http.StatusConflict, "Pool balance is insufficient", err)
	case errors.Is(err, engine.ErrReentrantCall):
		sendError(c, http.StatusConflict, "Another operation is in progress", err)
	case errors.Is(err, engine.ErrTransferFailed):
		sendError(c, http.StatusBadGateway, "Ledger transfer did not succeed", err)
	default:
		sendError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}

// parseAmount parses a decimal string into a non-negative big integer.
func parseAmount(raw string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() < 0 {
		return nil, false
	}
	return amount, true
}
