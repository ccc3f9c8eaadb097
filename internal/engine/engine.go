// Package engine implements the claim-authorization-and-payout core: it
// custodies a token pool on an external ledger and releases bounded
// fractions of the live balance to recipients, gated by per-recipient
// cooldowns and role checks.
package engine

import (
	"context"
	"fmt"
	"math/big"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spigotlabs/spigot-api/internal/helpers"
	"github.com/spigotlabs/spigot-api/internal/ledger"
	"github.com/spigotlabs/spigot-api/internal/logger"
	"github.com/spigotlabs/spigot-api/internal/metrics"
)

// EligibilityStore persists the last successful claim time per recipient.
// The zero time means "never claimed". Records are never deleted; a rolled
// back claim restores the previous stamp instead.
type EligibilityStore interface {
	LastClaim(ctx context.Context, recipient string) (time.Time, error)
	SetLastClaim(ctx context.Context, recipient string, t time.Time) error
}

// ClaimRequest carries the caller's sizing choice. Exactly one of Amount
// (caller-amount mode) or Percent/Random (derived-percent mode) applies,
// matching the engine's policy mode.
type ClaimRequest struct {
	Amount  *big.Int
	Percent uint64
	Random  bool
}

// Config wires an Engine.
type Config struct {
	Owner       string
	Agent       string
	PoolAddress string
	Policy      Policy
	Ledger      ledger.Ledger
	Eligibility EligibilityStore
	Events      EventSink
	Clock       clockwork.Clock
	RandPercent func() uint64
}

// Engine is the claim processor. All state-changing operations serialize on
// an internal mutex; a nested entry from within the external transfer call
// carries an in-flight marker on its context and is rejected with
// ErrReentrantCall instead of deadlocking on the mutex.
type Engine struct {
	mu sync.Mutex

	cfgMu sync.RWMutex
	owner string
	agent string
	pol   Policy

	pool        string
	ledger      ledger.Ledger
	eligibility EligibilityStore
	events      EventSink
	clock       clockwork.Clock
	randPercent func() uint64
	log         *zap.Logger
}

// New validates the configuration and builds an engine.
func New(cfg Config) (*Engine, error) {
	if !helpers.IsIdentityUsable(cfg.Owner) {
		return nil, fmt.Errorf("%w: owner %q", ErrInvalidAddress, cfg.Owner)
	}
	if cfg.Agent != "" && !helpers.IsIdentityUsable(cfg.Agent) {
		return nil, fmt.Errorf("%w: agent %q", ErrInvalidAddress, cfg.Agent)
	}
	if !helpers.IsAddressValid(cfg.PoolAddress) {
		return nil, fmt.Errorf("%w: pool %q", ErrInvalidAddress, cfg.PoolAddress)
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	if cfg.Ledger == nil || cfg.Eligibility == nil {
		return nil, fmt.Errorf("%w: ledger and eligibility store are required", ErrInvalidPolicy)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	randPercent := cfg.RandPercent
	if randPercent == nil {
		randPercent = func() uint64 {
			return DerivedPercentMin + rand.Uint64N(DerivedPercentMax-DerivedPercentMin+1)
		}
	}

	return &Engine{
		owner:       helpers.NormalizeAddress(cfg.Owner),
		agent:       helpers.NormalizeAddress(cfg.Agent),
		pool:        helpers.NormalizeAddress(cfg.PoolAddress),
		pol:         cfg.Policy,
		ledger:      cfg.Ledger,
		eligibility: cfg.Eligibility,
		events:      cfg.Events,
		clock:       clock,
		randPercent: randPercent,
		log:         logger.Log,
	}, nil
}

// inFlightKey marks a context as belonging to an operation already holding
// the engine mutex. Ledger calls receive the marked context, so a callback
// that re-enters the engine with it is detected.
type inFlightKey struct{}

// enter begins a state-changing operation. Concurrent callers with fresh
// contexts block on the mutex; only a reentrant call carrying the in-flight
// marker is rejected, before it can deadlock on the mutex.
func (e *Engine) enter(ctx context.Context) (context.Context, error) {
	if ctx.Value(inFlightKey{}) != nil {
		return nil, ErrReentrantCall
	}
	e.mu.Lock()
	return context.WithValue(ctx, inFlightKey{}, struct{}{}), nil
}

func (e *Engine) exit() {
	e.mu.Unlock()
}

// ClaimSelf pays out to the caller under the current policy.
func (e *Engine) ClaimSelf(ctx context.Context, caller string, req ClaimRequest) (*big.Int, error) {
	ctx, err := e.enter(ctx)
	if err != nil {
		metrics.ClaimRejected(metrics.ReasonFor(err))
		return nil, err
	}
	defer e.exit()

	if !helpers.IsIdentityUsable(caller) {
		return nil, fmt.Errorf("%w: caller %q", ErrInvalidAddress, caller)
	}
	return e.claim(ctx, caller, caller, req)
}

// ClaimFor pays out to recipient on the authorized agent's instruction.
// Eligibility and the cooldown stamp apply to the recipient, not the agent.
func (e *Engine) ClaimFor(ctx context.Context, caller, recipient string, req ClaimRequest) (*big.Int, error) {
	ctx, err := e.enter(ctx)
	if err != nil {
		metrics.ClaimRejected(metrics.ReasonFor(err))
		return nil, err
	}
	defer e.exit()

	e.cfgMu.RLock()
	agent := e.agent
	e.cfgMu.RUnlock()
	if agent == "" || helpers.NormalizeAddress(caller) != agent {
		metrics.ClaimRejected(metrics.ReasonFor(ErrUnauthorized))
		return nil, fmt.Errorf("%w: only the authorized agent may claim for others", ErrUnauthorized)
	}
	if !helpers.IsIdentityUsable(recipient) {
		return nil, fmt.Errorf("%w: recipient %q", ErrInvalidAddress, recipient)
	}
	return e.claim(ctx, caller, recipient, req)
}

// claim runs one payout with the reentrancy guard already held. Ordering is
// load-bearing: the eligibility stamp is committed before the external
// transfer so a reentrant callback sees the cooldown already advanced.
func (e *Engine) claim(ctx context.Context, actor, recipient string, req ClaimRequest) (*big.Int, error) {
	recipient = helpers.NormalizeAddress(recipient)
	now := e.clock.Now()

	e.cfgMu.RLock()
	pol := e.pol
	e.cfgMu.RUnlock()

	last, err := e.eligibility.LastClaim(ctx, recipient)
	if err != nil {
		metrics.ClaimRejected(metrics.ReasonFor(err))
		return nil, fmt.Errorf("failed to read eligibility record: %w", err)
	}
	if now.Before(last.Add(pol.Cooldown)) {
		metrics.ClaimRejected(metrics.ReasonFor(ErrCooldownActive))
		return nil, fmt.Errorf("%w: %s remaining", ErrCooldownActive, last.Add(pol.Cooldown).Sub(now))
	}

	balance, err := e.ledger.BalanceOf(ctx, e.pool)
	if err != nil {
		metrics.ClaimRejected(metrics.ReasonFor(err))
		return nil, fmt.Errorf("failed to read pool balance: %w", err)
	}

	amount, err := e.computePayout(balance, pol, req)
	if err != nil {
		metrics.ClaimRejected(metrics.ReasonFor(err))
		return nil, err
	}

	// Stamp before transfer. On transfer failure the previous stamp is
	// restored so the operation has no partial effect.
	if err := e.eligibility.SetLastClaim(ctx, recipient, now); err != nil {
		metrics.ClaimRejected(metrics.ReasonFor(err))
		return nil, fmt.Errorf("failed to stamp eligibility record: %w", err)
	}

	ok, err := e.ledger.Transfer(ctx, recipient, amount)
	if err != nil || !ok {
		if rbErr := e.eligibility.SetLastClaim(ctx, recipient, last); rbErr != nil {
			e.log.Error("Failed to roll back eligibility stamp",
				zap.String("recipient", recipient),
				zap.Error(rbErr),
			)
		}
		metrics.ClaimRejected(metrics.ReasonFor(ErrTransferFailed))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		return nil, ErrTransferFailed
	}

	e.emit(ctx, Event{
		Kind:      EventClaim,
		Actor:     helpers.NormalizeAddress(actor),
		Recipient: recipient,
		Amount:    amount.String(),
	})
	metrics.ClaimPaid()

	e.log.Info("Claim paid",
		zap.String("actor", actor),
		zap.String("recipient", recipient),
		zap.String("amount", amount.String()),
	)
	return amount, nil
}

func (e *Engine) computePayout(balance *big.Int, pol Policy, req ClaimRequest) (*big.Int, error) {
	switch pol.Mode {
	case ModeCallerAmount:
		if err := ValidateAmount(balance, req.Amount, pol.MinPercent, pol.MaxPercent); err != nil {
			return nil, err
		}
		return new(big.Int).Set(req.Amount), nil
	case ModeDerivedPercent:
		percent := req.Percent
		if req.Random {
			percent = e.randPercent()
		}
		lo, hi := pol.PercentRange()
		return PayoutForPercent(balance, percent, lo, hi)
	default:
		return nil, fmt.Errorf("%w: mode %q", ErrInvalidPolicy, pol.Mode)
	}
}

// Deposit pulls caller-authorized funds into the pool. Anyone may fund.
func (e *Engine) Deposit(ctx context.Context, caller string, amount *big.Int) error {
	ctx, err := e.enter(ctx)
	if err != nil {
		return err
	}
	defer e.exit()

	if !helpers.IsIdentityUsable(caller) {
		return fmt.Errorf("%w: caller %q", ErrInvalidAddress, caller)
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	ok, err := e.ledger.TransferFrom(ctx, helpers.NormalizeAddress(caller), e.pool, amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if !ok {
		return ErrTransferFailed
	}

	e.emit(ctx, Event{
		Kind:   EventDeposit,
		Actor:  helpers.NormalizeAddress(caller),
		Amount: amount.String(),
	})
	metrics.DepositReceived()

	e.log.Info("Deposit received",
		zap.String("from", caller),
		zap.String("amount", amount.String()),
	)
	return nil
}

// EmergencyWithdraw drains amount to the owner, bypassing payout policy and
// cooldowns entirely. Owner only.
func (e *Engine) EmergencyWithdraw(ctx context.Context, caller string, amount *big.Int) error {
	ctx, err := e.enter(ctx)
	if err != nil {
		return err
	}
	defer e.exit()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	balance, err := e.ledger.BalanceOf(ctx, e.pool)
	if err != nil {
		return fmt.Errorf("failed to read pool balance: %w", err)
	}
	if amount.Cmp(balance) > 0 {
		return fmt.Errorf("%w: %s > %s", ErrInsufficientPool, amount, balance)
	}

	e.cfgMu.RLock()
	owner := e.owner
	e.cfgMu.RUnlock()

	ok, err := e.ledger.Transfer(ctx, owner, amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if !ok {
		return ErrTransferFailed
	}

	e.emit(ctx, Event{
		Kind:      EventEmergencyWithdraw,
		Actor:     owner,
		Recipient: owner,
		Amount:    amount.String(),
	})
	metrics.EmergencyWithdrawn()

	e.log.Warn("Emergency withdrawal",
		zap.String("owner", owner),
		zap.String("amount", amount.String()),
	)
	return nil
}

func (e *Engine) requireOwner(caller string) error {
	e.cfgMu.RLock()
	owner := e.owner
	e.cfgMu.RUnlock()
	if helpers.NormalizeAddress(caller) != owner {
		return fmt.Errorf("%w: owner required", ErrUnauthorized)
	}
	return nil
}

func (e *Engine) emit(ctx context.Context, event Event) {
	if e.events == nil {
		return
	}
	event.ID = uuid.New()
	event.Timestamp = e.clock.Now()
	if err := e.events.Append(ctx, event); err != nil {
		// Events are observability only; a sink failure never rolls the
		// operation back.
		e.log.Error("Failed to append event",
			zap.String("kind", string(event.Kind)),
			zap.Error(err),
		)
	}
}
