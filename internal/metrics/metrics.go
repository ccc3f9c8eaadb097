package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClaimsPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spigot_claims_paid_total",
		Help: "Total number of successful claim payouts.",
	})

	ClaimsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spigot_claims_rejected_total",
		Help: "Total number of rejected claim attempts, labelled by reason.",
	}, []string{"reason"})

	Deposits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spigot_deposits_total",
		Help: "Total number of successful pool deposits.",
	})

	EmergencyWithdrawals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spigot_emergency_withdrawals_total",
		Help: "Total number of owner emergency withdrawals.",
	})
)

// reasonMatcher maps a sentinel error to a stable metric label. The engine
// registers its taxonomy at init time to avoid an import cycle.
type reasonMatcher struct {
	target error
	label  string
}

var reasons []reasonMatcher

// RegisterReason associates an error with a rejection label.
func RegisterReason(target error, label string) {
	reasons = append(reasons, reasonMatcher{target: target, label: label})
}

// ReasonFor returns the label registered for err, or "other".
func ReasonFor(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.target) {
			return r.label
		}
	}
	return "other"
}

// ClaimPaid records a successful payout.
func ClaimPaid() { ClaimsPaid.Inc() }

// ClaimRejected records a rejected claim attempt.
func ClaimRejected(reason string) { ClaimsRejected.WithLabelValues(reason).Inc() }

// DepositReceived records a successful deposit.
func DepositReceived() { Deposits.Inc() }

// EmergencyWithdrawn records an owner emergency withdrawal.
func EmergencyWithdrawn() { EmergencyWithdrawals.Inc() }
