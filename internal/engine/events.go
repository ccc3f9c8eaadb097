package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies what state change an event records.
type EventKind string

const (
	EventClaim             EventKind = "claim"
	EventDeposit           EventKind = "deposit"
	EventEmergencyWithdraw EventKind = "emergency_withdraw"
	EventBoundsChanged     EventKind = "bounds_changed"
	EventCooldownChanged   EventKind = "cooldown_changed"
	EventAgentChanged      EventKind = "agent_changed"
	EventOwnerChanged      EventKind = "owner_changed"
)

// Event is an append-only record of one state-changing action. Events are
// written for external monitoring and are never read back by the engine.
// Amounts are decimal strings so arbitrary-precision values survive JSON.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Kind      EventKind `json:"kind"`
	Actor     string    `json:"actor"`
	Recipient string    `json:"recipient,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	OldValue  string    `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventSink receives engine events. Append failures must not fail the
// operation that produced the event; the engine logs and moves on.
type EventSink interface {
	Append(ctx context.Context, event Event) error
}
