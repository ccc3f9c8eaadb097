package engine

import (
	"fmt"
	"math/big"
)

var oneHundred = big.NewInt(100)

// percentOf returns floor(balance * percent / 100). Truncation toward zero
// keeps cumulative payouts under the percentage ceiling; the division never
// rounds up.
func percentOf(balance *big.Int, percent uint64) *big.Int {
	out := new(big.Int).Mul(balance, new(big.Int).SetUint64(percent))
	return out.Quo(out, oneHundred)
}

// PayoutForPercent computes the disbursable amount for a percent-denominated
// claim against the given live balance. The percent must fall inside [lo, hi].
func PayoutForPercent(balance *big.Int, percent, lo, hi uint64) (*big.Int, error) {
	if balance == nil || balance.Sign() <= 0 {
		return nil, ErrInsufficientPool
	}
	if percent < lo || percent > hi {
		return nil, fmt.Errorf("%w: %d not in [%d,%d]", ErrPercentOutOfRange, percent, lo, hi)
	}
	amount := percentOf(balance, percent)
	if amount.Sign() == 0 {
		// Balance so small that even the requested percent truncates to zero.
		return nil, ErrAmountTooSmall
	}
	return amount, nil
}

// AmountBounds returns the [min, max] amounts an explicit caller-amount claim
// may request against the given balance under the given percent bounds.
func AmountBounds(balance *big.Int, minPercent, maxPercent uint64) (min, max *big.Int) {
	return percentOf(balance, minPercent), percentOf(balance, maxPercent)
}

// ValidateAmount checks an explicit claim amount against the policy-derived
// bounds for the live balance.
func ValidateAmount(balance, amount *big.Int, minPercent, maxPercent uint64) error {
	if balance == nil || balance.Sign() <= 0 {
		return ErrInsufficientPool
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	min, max := AmountBounds(balance, minPercent, maxPercent)
	if amount.Cmp(min) < 0 {
		return fmt.Errorf("%w: %s < %s", ErrAmountTooSmall, amount, min)
	}
	if amount.Cmp(max) > 0 {
		return fmt.Errorf("%w: %s > %s", ErrAmountTooLarge, amount, max)
	}
	return nil
}
