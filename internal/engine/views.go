package engine

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/spigotlabs/spigot-api/internal/helpers"
)

// Read-only observability. Everything here is computed live from the current
// policy and ledger balance; nothing is cached, so a deposit immediately
// widens the bounds seen by the next claim.

// Balance reads the live pool balance.
func (e *Engine) Balance(ctx context.Context) (*big.Int, error) {
	return e.ledger.BalanceOf(ctx, e.pool)
}

// MinRequestAmount returns the smallest claim the current balance supports.
func (e *Engine) MinRequestAmount(ctx context.Context) (*big.Int, error) {
	balance, err := e.Balance(ctx)
	if err != nil {
		return nil, err
	}
	e.cfgMu.RLock()
	lo, _ := e.pol.PercentRange()
	e.cfgMu.RUnlock()
	return percentOf(balance, lo), nil
}

// MaxRequestAmount returns the largest claim the current balance supports.
func (e *Engine) MaxRequestAmount(ctx context.Context) (*big.Int, error) {
	balance, err := e.Balance(ctx)
	if err != nil {
		return nil, err
	}
	e.cfgMu.RLock()
	_, hi := e.pol.PercentRange()
	e.cfgMu.RUnlock()
	return percentOf(balance, hi), nil
}

// RemainingCooldown returns how long until the recipient may claim again;
// zero means eligible now. The boundary is inclusive: at exactly
// lastClaim+cooldown the recipient is eligible.
func (e *Engine) RemainingCooldown(ctx context.Context, recipient string) (time.Duration, error) {
	if !helpers.IsAddressValid(recipient) {
		return 0, fmt.Errorf("%w: recipient %q", ErrInvalidAddress, recipient)
	}
	last, err := e.eligibility.LastClaim(ctx, helpers.NormalizeAddress(recipient))
	if err != nil {
		return 0, fmt.Errorf("failed to read eligibility record: %w", err)
	}

	e.cfgMu.RLock()
	cooldown := e.pol.Cooldown
	e.cfgMu.RUnlock()

	remaining := last.Add(cooldown).Sub(e.clock.Now())
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// CurrentPolicy returns a copy of the policy in force.
func (e *Engine) CurrentPolicy() Policy {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.pol
}

// Owner returns the current owner identity.
func (e *Engine) Owner() string {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.owner
}

// Agent returns the current authorized agent, empty when unset.
func (e *Engine) Agent() string {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.agent
}

// PoolAddress returns the engine's on-ledger identity.
func (e *Engine) PoolAddress() string {
	return e.pool
}
