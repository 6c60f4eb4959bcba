// Package broker defines the exchange-agnostic order-placement surface
// internal/lifecycle depends on. Concrete exchange adapters (e.g.
// internal/broker/binance) implement Adapter against their own client.
package broker

import (
	"context"
	"time"

	"brooksengine/internal/signal"
)

// OrderStatus mirrors the subset of exchange order states lifecycle cares
// about.
type OrderStatus string

const (
	StatusNew      OrderStatus = "NEW"
	StatusFilled   OrderStatus = "FILLED"
	StatusPartial  OrderStatus = "PARTIALLY_FILLED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusExpired  OrderStatus = "EXPIRED"
)

// OrderUpdate is an exchange-agnostic fill/status event, adapted from
// internal/binance.FuturesOrder's fields.
type OrderUpdate struct {
	OrderID       string
	ClientOrderID string
	Symbol        string
	Status        OrderStatus
	AvgPrice      float64
	ExecutedQty   float64
	Commission    float64
	UpdateTime    time.Time
}

// Adapter is the minimal exchange surface the engine needs: stop-order
// placement/cancellation/modification, market-close, and current spread,
// matching internal/lifecycle.Broker plus the read methods the
// orchestrator and dispatcher need.
type Adapter interface {
	PlaceStopOrder(ctx context.Context, symbol string, side signal.Side, qty, stopPrice, tp float64, magic signal.Magic) (orderID string, err error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	ModifyStop(ctx context.Context, symbol, orderID string, newStop float64) error
	ClosePosition(ctx context.Context, symbol string, qty float64, side signal.Side) error

	GetOrder(ctx context.Context, symbol, orderID string) (OrderUpdate, error)
	CurrentSpread(ctx context.Context, symbol string) (float64, error)
	LotStep(ctx context.Context, symbol string) (float64, error)
}
