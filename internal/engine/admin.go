package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spigotlabs/spigot-api/internal/helpers"
)

// SetBounds replaces the payout percent bounds. Only meaningful in
// caller-amount mode; the derived-percent range is fixed. Owner only.
func (e *Engine) SetBounds(ctx context.Context, caller string, minPercent, maxPercent uint64) error {
	ctx, err := e.enter(ctx)
	if err != nil {
		return err
	}
	defer e.exit()

	if err := e.requireOwner(caller); err != nil {
		return err
	}

	e.cfgMu.Lock()
	if e.pol.Mode != ModeCallerAmount {
		e.cfgMu.Unlock()
		return fmt.Errorf("%w: bounds are fixed in %s mode", ErrInvalidPolicy, e.pol.Mode)
	}
	next := e.pol
	next.MinPercent = minPercent
	next.MaxPercent = maxPercent
	if err := next.Validate(); err != nil {
		e.cfgMu.Unlock()
		return err
	}
	old := e.pol
	e.pol = next
	e.cfgMu.Unlock()

	e.emit(ctx, Event{
		Kind:     EventBoundsChanged,
		Actor:    helpers.NormalizeAddress(caller),
		OldValue: fmt.Sprintf("[%d,%d]", old.MinPercent, old.MaxPercent),
		NewValue: fmt.Sprintf("[%d,%d]", minPercent, maxPercent),
	})
	e.log.Info("Payout bounds updated",
		zap.Uint64("min_percent", minPercent),
		zap.Uint64("max_percent", maxPercent),
	)
	return nil
}

// SetCooldown replaces the claim cooldown. Owner only.
func (e *Engine) SetCooldown(ctx context.Context, caller string, cooldown time.Duration) error {
	ctx, err := e.enter(ctx)
	if err != nil {
		return err
	}
	defer e.exit()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if cooldown < 0 {
		return fmt.Errorf("%w: negative cooldown", ErrInvalidPolicy)
	}

	e.cfgMu.Lock()
	old := e.pol.Cooldown
	e.pol.Cooldown = cooldown
	e.cfgMu.Unlock()

	e.emit(ctx, Event{
		Kind:     EventCooldownChanged,
		Actor:    helpers.NormalizeAddress(caller),
		OldValue: strconv.FormatInt(int64(old/time.Second), 10),
		NewValue: strconv.FormatInt(int64(cooldown/time.Second), 10),
	})
	e.log.Info("Cooldown updated", zap.Duration("cooldown", cooldown))
	return nil
}

// SetAuthorizedAgent replaces the address allowed to claim on behalf of
// arbitrary recipients. Owner only; the null identity is rejected.
func (e *Engine) SetAuthorizedAgent(ctx context.Context, caller, agent string) error {
	ctx, err := e.enter(ctx)
	if err != nil {
		return err
	}
	defer e.exit()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if !helpers.IsIdentityUsable(agent) {
		return fmt.Errorf("%w: agent %q", ErrInvalidAddress, agent)
	}

	e.cfgMu.Lock()
	old := e.agent
	e.agent = helpers.NormalizeAddress(agent)
	e.cfgMu.Unlock()

	e.emit(ctx, Event{
		Kind:     EventAgentChanged,
		Actor:    helpers.NormalizeAddress(caller),
		OldValue: old,
		NewValue: helpers.NormalizeAddress(agent),
	})
	e.log.Info("Authorized agent updated",
		zap.String("old_agent", old),
		zap.String("new_agent", agent),
	)
	return nil
}

// TransferOwnership hands the owner role to a new address. Owner only.
func (e *Engine) TransferOwnership(ctx context.Context, caller, newOwner string) error {
	ctx, err := e.enter(ctx)
	if err != nil {
		return err
	}
	defer e.exit()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if !helpers.IsIdentityUsable(newOwner) {
		return fmt.Errorf("%w: new owner %q", ErrInvalidAddress, newOwner)
	}

	e.cfgMu.Lock()
	old := e.owner
	e.owner = helpers.NormalizeAddress(newOwner)
	e.cfgMu.Unlock()

	e.emit(ctx, Event{
		Kind:     EventOwnerChanged,
		Actor:    old,
		OldValue: old,
		NewValue: helpers.NormalizeAddress(newOwner),
	})
	e.log.Info("Ownership transferred",
		zap.String("old_owner", old),
		zap.String("new_owner", newOwner),
	)
	return nil
}
