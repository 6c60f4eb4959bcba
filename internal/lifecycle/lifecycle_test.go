package lifecycle

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"brooksengine/internal/riskstop"
	"brooksengine/internal/session"
	"brooksengine/internal/signal"
)

type mockBroker struct {
	nextID    int
	stops     map[string]float64
	closed    []string
	cancelled []string
}

func newMockBroker() *mockBroker {
	return &mockBroker{stops: make(map[string]float64)}
}

func (b *mockBroker) PlaceStopOrder(ctx context.Context, symbol string, side signal.Side, qty, stopPrice, tp float64, magic signal.Magic) (string, error) {
	b.nextID++
	id := magic.String() + "-order"
	b.stops[id] = stopPrice
	return id, nil
}

func (b *mockBroker) CancelOrder(ctx context.Context, symbol, orderID string) error {
	b.cancelled = append(b.cancelled, orderID)
	return nil
}

func (b *mockBroker) ModifyStop(ctx context.Context, symbol, orderID string, newStop float64) error {
	b.stops[orderID] = newStop
	return nil
}

func (b *mockBroker) ClosePosition(ctx context.Context, symbol string, qty float64, side signal.Side) error {
	b.closed = append(b.closed, symbol)
	return nil
}

func newTestManager(broker Broker) *Manager {
	return NewManager(broker, nil, nil, zerolog.Nop(), riskstop.DefaultConfig(), session.DefaultConfig())
}

func TestOpenPositionStagesTwinLegs(t *testing.T) {
	broker := newMockBroker()
	m := newTestManager(broker)
	sig := signal.New(signal.KindTrendBarBuy, signal.Buy, 99, 0, 0)

	p, err := m.OpenPosition(context.Background(), sig, "BTCUSDT", 0.01, 0.001, 100, 1, 104)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Scalp.OrderID == "" || p.Runner.OrderID == "" {
		t.Fatal("expected both scalp and runner legs to have order ids")
	}
	if m.ActiveCount() != 1 {
		t.Fatalf("expected 1 tracked position, got %d", m.ActiveCount())
	}
}

func TestOpenPositionFallsBackToSingleLegWhenHalfRoundsToZero(t *testing.T) {
	broker := newMockBroker()
	m := newTestManager(broker)
	sig := signal.New(signal.KindTrendBarBuy, signal.Buy, 99, 0, 0)

	p, err := m.OpenPosition(context.Background(), sig, "BTCUSDT", 0.001, 0.01, 100, 1, 104)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Runner.Magic != signal.MagicSingle {
		t.Fatalf("expected single-leg fallback, got magic %v", p.Runner.Magic)
	}
	if p.Scalp.OrderID != "" {
		t.Fatal("expected no scalp leg in single-leg fallback")
	}
}

func TestPromoteBreakevenMovesHardStopToEntry(t *testing.T) {
	broker := newMockBroker()
	m := newTestManager(broker)
	sig := signal.New(signal.KindTrendBarBuy, signal.Buy, 99, 0, 0)
	p, _ := m.OpenPosition(context.Background(), sig, "BTCUSDT", 0.01, 0.001, 100, 1, 104)

	m.OnLegFilled(context.Background(), p.SignalID, signal.MagicRunner, 100.2)
	m.PromoteBreakeven(context.Background(), p.SignalID, 0.05)

	got, _ := m.Get(p.SignalID)
	if got.HardStop != 100.25 {
		t.Fatalf("expected hard stop at entry+tick (100.25), got %v", got.HardStop)
	}
	if !got.BreakevenDone {
		t.Fatal("expected BreakevenDone to be set")
	}
}

func TestTrailStructuralNeverLoosens(t *testing.T) {
	broker := newMockBroker()
	m := newTestManager(broker)
	sig := signal.New(signal.KindTrendBarBuy, signal.Buy, 99, 0, 0)
	p, _ := m.OpenPosition(context.Background(), sig, "BTCUSDT", 0.01, 0.001, 100, 1, 104)
	m.OnLegFilled(context.Background(), p.SignalID, signal.MagicRunner, 100)

	m.TrailStructural(context.Background(), p.SignalID, 100.5)
	got, _ := m.Get(p.SignalID)
	if got.HardStop != 100.5 {
		t.Fatalf("expected stop raised to 100.5, got %v", got.HardStop)
	}

	m.TrailStructural(context.Background(), p.SignalID, 100.1)
	got, _ = m.Get(p.SignalID)
	if got.HardStop != 100.5 {
		t.Fatalf("expected stop to stay at 100.5 (never loosen), got %v", got.HardStop)
	}
}

func TestEvaluateSoftStopClosesOnViolation(t *testing.T) {
	broker := newMockBroker()
	m := newTestManager(broker)
	sig := signal.New(signal.KindTrendBarBuy, signal.Buy, 99, 0, 0)
	p, _ := m.OpenPosition(context.Background(), sig, "BTCUSDT", 0.01, 0.001, 100, 1, 104)
	m.OnLegFilled(context.Background(), p.SignalID, signal.MagicRunner, 100)
	m.OnLegFilled(context.Background(), p.SignalID, signal.MagicScalp, 100)

	m.EvaluateSoftStop(context.Background(), p.SignalID, 98.5, riskstop.SoftStopOnClose, nil, 0)

	if _, ok := m.Get(p.SignalID); ok {
		t.Fatal("expected position to be closed and untracked after soft-stop violation")
	}
	if len(broker.closed) != 1 {
		t.Fatalf("expected one ClosePosition call, got %d", len(broker.closed))
	}
}
