// Package journal defines the trade journal contract (spec.md §4.K/§6.3)
// and a line-delimited-JSON fallback writer. internal/database.PgxJournal
// is the Postgres-backed implementation; both satisfy Journal so
// cmd/engine can swap writers without touching the call sites.
// Grounded on the teacher's repository_trade_lifecycle.go (event-per-state-
// transition shape) and cmd/analyze_trades (the flat record a report tool
// reads back).
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType is the trade lifecycle transition being recorded.
type EventType string

const (
	EventOpened    EventType = "opened"
	EventLegFilled EventType = "leg_filled"
	EventClosed    EventType = "closed"
)

// Event is one journal record. Every field is filled in regardless of
// EventType; consumers read the fields relevant to that type and ignore
// the rest (e.g. PnL is 0 on an "opened" event).
type Event struct {
	SignalID      uuid.UUID `json:"signal_id"`
	Symbol        string    `json:"symbol"`
	Type          EventType `json:"type"`
	Kind          string    `json:"kind"`
	Side          string    `json:"side"`
	EntryPrice    float64   `json:"entry_price"`
	ExitPrice     float64   `json:"exit_price,omitempty"`
	Quantity      float64   `json:"quantity"`
	TechnicalStop float64   `json:"technical_stop"`
	PnL           float64   `json:"pnl,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Journal is the trade-record sink. Implementations are best-effort per
// spec.md §7: a write failure is returned to the caller, which logs at WARN
// and swallows it rather than propagating into the engine's per-bar loop.
type Journal interface {
	Record(ctx context.Context, e Event) error
}

// JSONLJournal appends one JSON object per line to a file, satisfying
// spec.md §6.3's "or equivalent" clause when no database is configured.
// cmd/journal-report reads this format back directly.
type JSONLJournal struct {
	mu   sync.Mutex
	file *os.File
}

// NewJSONLJournal opens (or creates) path for appending.
func NewJSONLJournal(path string) (*JSONLJournal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	return &JSONLJournal{file: f}, nil
}

var _ Journal = (*JSONLJournal)(nil)

// Record appends e as one JSON line.
func (j *JSONLJournal) Record(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("journal: marshal event: %w", err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.file.Write(line); err != nil {
		return fmt.Errorf("journal: write: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (j *JSONLJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
