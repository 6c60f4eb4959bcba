package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"brooksengine/internal/lifecycle"
)

// PositionRepository persists lifecycle.Position snapshots as JSONB,
// indexed by symbol/status for the disaster-recovery reload on restart.
// Grounded on the teacher's repository_position_snapshots.go upsert shape
// (ON CONFLICT DO UPDATE keyed on the natural identity column).
type PositionRepository struct {
	db *DB
}

// NewPositionRepository constructs a PositionRepository.
func NewPositionRepository(db *DB) *PositionRepository {
	return &PositionRepository{db: db}
}

var _ lifecycle.Repository = (*PositionRepository)(nil)

// SavePosition upserts one position's full state as JSONB, keyed on its
// SignalID.
func (r *PositionRepository) SavePosition(ctx context.Context, p *lifecycle.Position) error {
	state, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("database: marshal position: %w", err)
	}

	var closedAt *time.Time
	if !p.ClosedAt.IsZero() {
		closedAt = &p.ClosedAt
	}

	const query = `
		INSERT INTO positions (signal_id, symbol, status, side, opened_at, closed_at, state, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (signal_id) DO UPDATE SET
			status     = EXCLUDED.status,
			closed_at  = EXCLUDED.closed_at,
			state      = EXCLUDED.state,
			updated_at = now()
	`
	_, err = r.db.Pool.Exec(ctx, query,
		p.SignalID, p.Symbol, string(p.Status), p.Side.String(), p.OpenedAt, closedAt, state,
	)
	if err != nil {
		return fmt.Errorf("database: save position: %w", err)
	}
	return nil
}

// LoadOpenPositions reloads every non-closed position for symbol, for the
// orchestrator's restart-recovery path.
func (r *PositionRepository) LoadOpenPositions(ctx context.Context, symbol string) ([]*lifecycle.Position, error) {
	const query = `
		SELECT state FROM positions
		WHERE symbol = $1 AND status != 'closed'
		ORDER BY opened_at ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("database: load open positions: %w", err)
	}
	defer rows.Close()

	var out []*lifecycle.Position
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("database: scan position: %w", err)
		}
		p := &lifecycle.Position{}
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("database: unmarshal position: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: load open positions: %w", err)
	}
	return out, nil
}
