package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/spigotlabs/spigot-api/internal/engine"
	"github.com/spigotlabs/spigot-api/internal/helpers"
)

// PoolHandler exposes read-only pool observability
type PoolHandler struct {
	common *CommonServices
}

// NewPoolHandler creates a new PoolHandler instance
func NewPoolHandler(common *CommonServices) *PoolHandler {
	return &PoolHandler{common: common}
}

// PoolResponse describes the live pool state and current request bounds.
// Everything is computed at request time; a deposit is visible immediately.
type PoolResponse struct {
	Object           string `json:"object"`
	Balance          string `json:"balance"`
	MinRequestAmount string `json:"min_request_amount"`
	MaxRequestAmount string `json:"max_request_amount"`
	PolicyMode       string `json:"policy_mode"`
	MinPercent       uint64 `json:"min_percent"`
	MaxPercent       uint64 `json:"max_percent"`
	CooldownSeconds  int64  `json:"cooldown_seconds"`
}

// CooldownResponse reports time until an address may claim again.
type CooldownResponse struct {
	Recipient        string `json:"recipient"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	Eligible         bool   `json:"eligible"`
}

// ListEventsResponse wraps the recent event log.
type ListEventsResponse struct {
	Object string         `json:"object"`
	Data   []engine.Event `json:"data"`
}

// GetPool returns the live balance and the request bounds it implies.
func (h *PoolHandler) GetPool(c *gin.Context) {
	ctx := c.Request.Context()

	balance, err := h.common.engine.Balance(ctx)
	if err != nil {
		sendError(c, http.StatusBadGateway, "Failed to read pool balance", err)
		return
	}
	min, err := h.common.engine.MinRequestAmount(ctx)
	if err != nil {
		sendError(c, http.StatusBadGateway, "Failed to compute request bounds", err)
		return
	}
	max, err := h.common.engine.MaxRequestAmount(ctx)
	if err != nil {
		sendError(c, http.StatusBadGateway, "Failed to compute request bounds", err)
		return
	}

	pol := h.common.engine.CurrentPolicy()
	lo, hi := pol.PercentRange()
	sendSuccess(c, http.StatusOK, PoolResponse{
		Object:           "pool",
		Balance:          balance.String(),
		MinRequestAmount: min.String(),
		MaxRequestAmount: max.String(),
		PolicyMode:       string(pol.Mode),
		MinPercent:       lo,
		MaxPercent:       hi,
		CooldownSeconds:  int64(pol.Cooldown.Seconds()),
	})
}

// GetCooldown returns the remaining cooldown for an address.
func (h *PoolHandler) GetCooldown(c *gin.Context) {
	address := c.Param("address")
	if !helpers.IsAddressValid(address) {
		sendError(c, http.StatusBadRequest, "Invalid address format", nil)
		return
	}

	remaining, err := h.common.engine.RemainingCooldown(c.Request.Context(), address)
	if err != nil {
		handleEngineError(c, err)
		return
	}

	sendSuccess(c, http.StatusOK, CooldownResponse{
		Recipient:        helpers.NormalizeAddress(address),
		RemainingSeconds: int64(remaining.Seconds()),
		Eligible:         remaining == 0,
	})
}

// ListEvents returns recent engine events, newest first.
func (h *PoolHandler) ListEvents(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			sendError(c, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = parsed
	}

	events := h.common.events.Recent(limit)
	if events == nil {
		events = []engine.Event{}
	}
	sendSuccess(c, http.StatusOK, ListEventsResponse{
		Object: "list",
		Data:   events,
	})
}
