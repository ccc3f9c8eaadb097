package engine

import (
	"fmt"
	"time"
)

// PolicyMode selects how a claim's size is chosen and validated. The two
// modes have different bound semantics and are never mixed: in caller-amount
// mode the min/max percents bound an explicit amount, in derived-percent mode
// the caller (or the engine's random draw) picks a percent from a fixed range.
type PolicyMode string

const (
	// ModeCallerAmount validates an explicit amount against
	// [floor(balance*minPercent/100), floor(balance*maxPercent/100)].
	ModeCallerAmount PolicyMode = "caller_amount"

	// ModeDerivedPercent pays floor(balance*percent/100) for a percent
	// inside the fixed derived range.
	ModeDerivedPercent PolicyMode = "derived_percent"
)

const (
	// MaxPercentCeiling caps the configurable upper bound in caller-amount mode.
	MaxPercentCeiling = 50

	// DerivedPercentMin and DerivedPercentMax fix the allowed range in
	// derived-percent mode.
	DerivedPercentMin = 1
	DerivedPercentMax = 20
)

// Policy holds the payout bounds and cooldown currently in force.
type Policy struct {
	Mode       PolicyMode
	MinPercent uint64
	MaxPercent uint64
	Cooldown   time.Duration
}

// Validate checks the policy invariants: 0 <= min < max <= 50 in
// caller-amount mode, non-negative cooldown in both.
func (p Policy) Validate() error {
	if p.Cooldown < 0 {
		return fmt.Errorf("%w: negative cooldown", ErrInvalidPolicy)
	}
	switch p.Mode {
	case ModeCallerAmount:
		if p.MinPercent >= p.MaxPercent || p.MaxPercent > MaxPercentCeiling {
			return fmt.Errorf("%w: min=%d max=%d", ErrInvalidPolicy, p.MinPercent, p.MaxPercent)
		}
	case ModeDerivedPercent:
		// Bounds are fixed for this mode; nothing configurable to check.
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidPolicy, p.Mode)
	}
	return nil
}

// PercentRange returns the valid percent range for the policy's mode.
func (p Policy) PercentRange() (lo, hi uint64) {
	if p.Mode == ModeDerivedPercent {
		return DerivedPercentMin, DerivedPercentMax
	}
	return p.MinPercent, p.MaxPercent
}
