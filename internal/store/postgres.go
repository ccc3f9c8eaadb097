package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/spigotlabs/spigot-api/internal/engine"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS eligibility_records (
	recipient  TEXT PRIMARY KEY,
	last_claim TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS engine_events (
	id         UUID PRIMARY KEY,
	kind       TEXT NOT NULL,
	actor      TEXT NOT NULL,
	recipient  TEXT NOT NULL DEFAULT '',
	amount     TEXT NOT NULL DEFAULT '',
	old_value  TEXT NOT NULL DEFAULT '',
	new_value  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS engine_events_created_at_idx ON engine_events (created_at DESC);
`

// Migrate creates the spigot tables if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return errors.Wrap(err, "failed to apply spigot schema")
	}
	return nil
}

// PostgresEligibility persists last-claim stamps in postgres.
type PostgresEligibility struct {
	pool *pgxpool.Pool
}

// NewPostgresEligibility creates a postgres-backed eligibility store.
func NewPostgresEligibility(pool *pgxpool.Pool) *PostgresEligibility {
	return &PostgresEligibility{pool: pool}
}

// LastClaim returns the recipient's last claim time; the zero time when no
// record exists.
func (s *PostgresEligibility) LastClaim(ctx context.Context, recipient string) (time.Time, error) {
	var last time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT last_claim FROM eligibility_records WHERE recipient = $1`,
		recipient,
	).Scan(&last)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, errors.Wrap(err, "failed to query eligibility record")
	}
	return last, nil
}

// SetLastClaim upserts the recipient's last claim time.
func (s *PostgresEligibility) SetLastClaim(ctx context.Context, recipient string, t time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO eligibility_records (recipient, last_claim) VALUES ($1, $2)
		 ON CONFLICT (recipient) DO UPDATE SET last_claim = EXCLUDED.last_claim`,
		recipient, t,
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert eligibility record")
	}
	return nil
}

// PostgresEvents appends engine events to postgres for durable audit.
type PostgresEvents struct {
	pool *pgxpool.Pool
}

// NewPostgresEvents creates a postgres-backed event sink.
func NewPostgresEvents(pool *pgxpool.Pool) *PostgresEvents {
	return &PostgresEvents{pool: pool}
}

// Append inserts one event row.
func (s *PostgresEvents) Append(ctx context.Context, event engine.Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO engine_events (id, kind, actor, recipient, amount, old_value, new_value, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, string(event.Kind), event.Actor, event.Recipient,
		event.Amount, event.OldValue, event.NewValue, event.Timestamp,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert engine event")
	}
	return nil
}

// FanoutEvents forwards each event to every sink. The first sink error is
// returned after all sinks have been attempted.
type FanoutEvents []engine.EventSink

// Append forwards the event to all sinks.
func (f FanoutEvents) Append(ctx context.Context, event engine.Event) error {
	var first error
	for _, sink := range f {
		if err := sink.Append(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
