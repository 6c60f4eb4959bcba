package database

import (
	"context"
	"fmt"

	"brooksengine/internal/journal"
)

// PgxJournal is the Postgres-backed journal.Journal, writing into the
// journal_entries table created by RunMigrations. Opened/Closed events are
// best-effort per spec.md §7: Record returns the error so the caller can log
// and swallow it, but a journal failure never blocks a trade decision.
type PgxJournal struct {
	db *DB
}

// NewPgxJournal constructs a PgxJournal.
func NewPgxJournal(db *DB) *PgxJournal {
	return &PgxJournal{db: db}
}

var _ journal.Journal = (*PgxJournal)(nil)

// Record inserts a new row on EventOpened, updates the matching row by
// signal_id on EventClosed, and ignores EventLegFilled without a write — a
// leg fill doesn't change the position's eventual close-time settlement
// fields, so there is nothing for this table to hold for it.
func (j *PgxJournal) Record(ctx context.Context, e journal.Event) error {
	switch e.Type {
	case journal.EventOpened:
		const query = `
			INSERT INTO journal_entries
				(signal_id, symbol, kind, side, entry_price, quantity, technical_stop, opened_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		_, err := j.db.Pool.Exec(ctx, query,
			e.SignalID, e.Symbol, e.Kind, e.Side, e.EntryPrice, e.Quantity, e.TechnicalStop, e.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("database: insert journal entry: %w", err)
		}
		return nil

	case journal.EventClosed:
		const query = `
			UPDATE journal_entries
			SET exit_price = $2, pnl = $3, reason = $4, closed_at = $5
			WHERE signal_id = $1 AND closed_at IS NULL
		`
		_, err := j.db.Pool.Exec(ctx, query,
			e.SignalID, e.ExitPrice, e.PnL, e.Reason, e.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("database: close journal entry: %w", err)
		}
		return nil

	case journal.EventLegFilled:
		return nil

	default:
		return fmt.Errorf("database: unknown journal event type %q", e.Type)
	}
}
