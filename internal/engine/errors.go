package engine

import (
	"errors"

	"github.com/spigotlabs/spigot-api/internal/metrics"
)

// Every failure of a state-changing operation aborts the whole operation;
// callers match with errors.Is and retry at a higher layer if appropriate.
var (
	ErrUnauthorized      = errors.New("spigot: caller not authorized for operation")
	ErrCooldownActive    = errors.New("spigot: recipient cooldown has not elapsed")
	ErrPercentOutOfRange = errors.New("spigot: requested percent outside policy range")
	ErrAmountTooSmall    = errors.New("spigot: requested amount below policy minimum")
	ErrAmountTooLarge    = errors.New("spigot: requested amount above policy maximum")
	ErrInsufficientPool  = errors.New("spigot: pool balance insufficient")
	ErrInvalidPolicy     = errors.New("spigot: invalid policy bounds")
	ErrInvalidAddress    = errors.New("spigot: invalid address")
	ErrInvalidAmount     = errors.New("spigot: amount must be positive")
	ErrTransferFailed    = errors.New("spigot: ledger transfer did not succeed")
	ErrReentrantCall     = errors.New("spigot: reentrant call rejected")
)

func init() {
	metrics.RegisterReason(ErrUnauthorized, "unauthorized")
	metrics.RegisterReason(ErrCooldownActive, "cooldown_active")
	metrics.RegisterReason(ErrPercentOutOfRange, "percent_out_of_range")
	metrics.RegisterReason(ErrAmountTooSmall, "amount_too_small")
	metrics.RegisterReason(ErrAmountTooLarge, "amount_too_large")
	metrics.RegisterReason(ErrInsufficientPool, "insufficient_pool")
	metrics.RegisterReason(ErrTransferFailed, "transfer_failed")
	metrics.RegisterReason(ErrReentrantCall, "reentrant_call")
}
