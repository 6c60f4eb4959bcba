// Package binance adapts internal/binance.FuturesClient (the teacher's
// Binance USD-M futures REST client) to the exchange-agnostic
// internal/broker.Adapter surface. Grounded on
// internal/binance/futures_client.go's PlaceFuturesOrder/CancelFuturesOrder/
// GetOrder and internal/binance/futures_types.go's order/exchange-info
// shapes.
package binance

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"brooksengine/internal/binance"
	"brooksengine/internal/broker"
	"brooksengine/internal/orders"
	"brooksengine/internal/signal"
)

// Adapter wraps a binance.FuturesClient for one-way (non-hedge) position
// mode, matching the teacher's default futures configuration.
type Adapter struct {
	client   binance.FuturesClient
	logger   zerolog.Logger
	orderIDs *orders.ClientOrderIdGenerator
}

// New constructs an Adapter. orderIDs may be nil, in which case client
// order ids fall back to a bare "BRK-<magic>-<seq>" scheme with no
// Redis-backed daily sequence or audit-friendly mode/date encoding.
func New(client binance.FuturesClient, logger zerolog.Logger, orderIDs *orders.ClientOrderIdGenerator) *Adapter {
	return &Adapter{
		client:   client,
		logger:   logger.With().Str("component", "broker.binance").Logger(),
		orderIDs: orderIDs,
	}
}

// tradingModeFor maps a position's leg to the orders package's trading
// mode vocabulary: the scalp leg takes profit quickly (ModeScalp), the
// runner leg trails structurally with no fixed target (ModeSwing).
func tradingModeFor(magic signal.Magic) orders.TradingMode {
	switch magic {
	case signal.MagicRunner:
		return orders.ModeSwing
	default:
		return orders.ModeScalp
	}
}

var _ broker.Adapter = (*Adapter)(nil)

func orderSide(side signal.Side) string {
	if side == signal.Buy {
		return "BUY"
	}
	return "SELL"
}

// opposite returns the closing side for a stop/close order on a position
// opened with entrySide.
func opposite(entrySide signal.Side) string {
	if entrySide == signal.Buy {
		return "SELL"
	}
	return "BUY"
}

func clientOrderID(magic signal.Magic) string {
	return fmt.Sprintf("BRK-%s-%d", magic.String(), timeSeq())
}

// timeSeq supplies the sequence part of a bare client order id. It always
// returns 0 and nothing in the module replaces it, so every bare id for a
// given magic reads "BRK-<magic>-0".
var timeSeq = func() int64 { return 0 }

// PlaceStopOrder submits a STOP_MARKET entry order, with an attached
// TAKE_PROFIT_MARKET when tp > 0 (the scalp leg); the runner leg passes
// tp == 0 and carries no fixed target, per spec.md §3.
func (a *Adapter) PlaceStopOrder(ctx context.Context, symbol string, side signal.Side, qty, stopPrice, tp float64, magic signal.Magic) (string, error) {
	entryID, baseID := a.newClientOrderID(ctx, magic, orders.OrderTypeEntry)
	params := binance.FuturesOrderParams{
		Symbol:           symbol,
		Side:             orderSide(side),
		Type:             binance.FuturesOrderTypeStopMarket,
		Quantity:         qty,
		StopPrice:        stopPrice,
		WorkingType:      "MARK_PRICE",
		NewClientOrderId: entryID,
	}
	resp, err := a.client.PlaceFuturesOrder(params)
	if err != nil {
		return "", fmt.Errorf("broker/binance: place stop order: %w", err)
	}

	if tp > 0 {
		tpID := a.relatedClientOrderID(baseID, magic, orders.OrderTypeTP1)
		tpParams := binance.FuturesOrderParams{
			Symbol:           symbol,
			Side:             opposite(side),
			Type:             binance.FuturesOrderTypeTakeProfitMarket,
			Quantity:         qty,
			StopPrice:        tp,
			ReduceOnly:       true,
			WorkingType:      "MARK_PRICE",
			NewClientOrderId: tpID,
		}
		if _, err := a.client.PlaceFuturesOrder(tpParams); err != nil {
			a.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to attach take-profit to stop entry")
		}
	}

	return strconv.FormatInt(resp.OrderId, 10), nil
}

// newClientOrderID issues a structured id via the Redis-backed
// ClientOrderIdGenerator when one is configured, falling back to the
// bare scheme otherwise. Returns the full id and its base (the id with
// the order-type suffix stripped, used to relate the TP leg back to it).
func (a *Adapter) newClientOrderID(ctx context.Context, magic signal.Magic, orderType orders.OrderType) (full, base string) {
	if a.orderIDs == nil {
		id := clientOrderID(magic)
		return id, id
	}
	full, base, err := a.orderIDs.Generate(ctx, tradingModeFor(magic), orderType)
	if err != nil {
		a.logger.Warn().Err(err).Msg("structured client order id generation failed, using bare fallback")
		id := clientOrderID(magic)
		return id, id
	}
	return full, base
}

func (a *Adapter) relatedClientOrderID(baseID string, magic signal.Magic, orderType orders.OrderType) string {
	if a.orderIDs == nil {
		return baseID + "-TP"
	}
	related, err := a.orderIDs.GenerateRelated(baseID, orderType)
	if err != nil {
		a.logger.Warn().Err(err).Msg("related client order id generation failed, using bare fallback")
		return baseID + "-TP"
	}
	return related
}

// CancelOrder cancels a pending order by its exchange order id.
func (a *Adapter) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("broker/binance: invalid order id %q: %w", orderID, err)
	}
	return a.client.CancelFuturesOrder(symbol, id)
}

// ModifyStop cancels and re-places the stop order at newStop; Binance
// futures has no in-place stop-price amend, matching
// internal/binance/futures_client.go's lack of a modify endpoint.
func (a *Adapter) ModifyStop(ctx context.Context, symbol, orderID string, newStop float64) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("broker/binance: invalid order id %q: %w", orderID, err)
	}
	existing, err := a.client.GetOrder(symbol, id)
	if err != nil {
		return fmt.Errorf("broker/binance: fetch order before modify: %w", err)
	}
	if existing.Status != "NEW" {
		return nil // already filled/canceled, nothing to move
	}
	if err := a.client.CancelFuturesOrder(symbol, id); err != nil {
		return fmt.Errorf("broker/binance: cancel before re-place: %w", err)
	}
	params := binance.FuturesOrderParams{
		Symbol:      symbol,
		Side:        existing.Side,
		Type:        binance.FuturesOrderTypeStopMarket,
		Quantity:    existing.OrigQty,
		StopPrice:   newStop,
		WorkingType: "MARK_PRICE",
	}
	_, err = a.client.PlaceFuturesOrder(params)
	return err
}

// ClosePosition submits a reduce-only market order that flattens qty of
// the open position.
func (a *Adapter) ClosePosition(ctx context.Context, symbol string, qty float64, side signal.Side) error {
	params := binance.FuturesOrderParams{
		Symbol:     symbol,
		Side:       opposite(side),
		Type:       binance.FuturesOrderTypeMarket,
		Quantity:   qty,
		ReduceOnly: true,
	}
	_, err := a.client.PlaceFuturesOrder(params)
	return err
}

// GetOrder translates a FuturesOrder into the exchange-agnostic
// OrderUpdate shape.
func (a *Adapter) GetOrder(ctx context.Context, symbol, orderID string) (broker.OrderUpdate, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return broker.OrderUpdate{}, fmt.Errorf("broker/binance: invalid order id %q: %w", orderID, err)
	}
	o, err := a.client.GetOrder(symbol, id)
	if err != nil {
		return broker.OrderUpdate{}, err
	}
	return broker.OrderUpdate{
		OrderID:       strconv.FormatInt(o.OrderId, 10),
		ClientOrderID: o.ClientOrderId,
		Symbol:        o.Symbol,
		Status:        broker.OrderStatus(o.Status),
		AvgPrice:      o.AvgPrice,
		ExecutedQty:   o.ExecutedQty,
	}, nil
}

// CurrentSpread estimates the top-of-book spread from the order-book
// depth endpoint.
func (a *Adapter) CurrentSpread(ctx context.Context, symbol string) (float64, error) {
	depth, err := a.client.GetOrderBookDepth(symbol, 5)
	if err != nil {
		return 0, err
	}
	if len(depth.Bids) == 0 || len(depth.Asks) == 0 {
		return 0, nil
	}
	bid, err := strconv.ParseFloat(depth.Bids[0][0], 64)
	if err != nil {
		return 0, err
	}
	ask, err := strconv.ParseFloat(depth.Asks[0][0], 64)
	if err != nil {
		return 0, err
	}
	return ask - bid, nil
}

// LotStep returns the symbol's LOT_SIZE stepSize, used by
// internal/lifecycle's twin-leg sizing.
func (a *Adapter) LotStep(ctx context.Context, symbol string) (float64, error) {
	info, err := a.client.GetFuturesExchangeInfo()
	if err != nil {
		return 0, err
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		for _, f := range s.Filters {
			if f.FilterType == "LOT_SIZE" && f.StepSize != "" {
				return strconv.ParseFloat(f.StepSize, 64)
			}
		}
	}
	return 0, fmt.Errorf("broker/binance: no LOT_SIZE filter found for %s", symbol)
}
