// Package core supervises the task set spec.md §5 names: a bar producer,
// an HTF bar producer, a trade producer, a stats printer, one orchestrator
// per tracked symbol, and a tick monitor, all under a shared cancellation
// context. Grounded on golang.org/x/sync/errgroup's standard
// supervise-and-cancel-on-first-error idiom (already present, indirectly,
// in the teacher's go.mod via its pgx/vault transitive graph; promoted
// here to a direct import since nothing in the retrieval pack's
// application code demonstrates a concurrent task-group pattern, and this
// is exactly the shape errgroup exists for).
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"brooksengine/internal/logging"
	"brooksengine/internal/market"
	"brooksengine/internal/orchestrator"
	"brooksengine/internal/orderflow"
)

// Tick is a best-bid/best-ask quote, consumed by the tick monitor task.
type Tick struct {
	Symbol string
	Bid    float64
	Ask    float64
}

// BarSource streams closed primary or HTF bars for one symbol. The
// concrete implementation (internal/broker/binance's kline stream) is an
// out-of-core external collaborator per spec.md §1; internal/core depends
// only on this interface.
type BarSource interface {
	StreamBars(ctx context.Context, symbol, interval string) (<-chan market.Bar, error)
}

// TradeSource streams aggregated trades for one symbol, feeding the
// order-flow analyser.
type TradeSource interface {
	StreamTrades(ctx context.Context, symbol string) (<-chan orderflow.Trade, error)
}

// TickSource streams best-bid/best-ask quotes for one symbol.
type TickSource interface {
	StreamTicks(ctx context.Context, symbol string) (<-chan Tick, error)
}

// SymbolTask is one tracked symbol's wiring: its Orchestrator plus the
// intervals its bar producers subscribe at.
type SymbolTask struct {
	Symbol       string
	Interval     string
	HTFInterval  string
	Orchestrator *orchestrator.Orchestrator
}

// Engine runs every SymbolTask's bar/HTF/trade/tick producers plus a
// shared stats printer under one errgroup, matching spec.md §5's task
// list 1-6 (per-user orchestrators (5) become one SymbolTask per tracked
// symbol here — see DESIGN.md's per-user/per-symbol topology note).
type Engine struct {
	bars   BarSource
	trades TradeSource
	ticks  TickSource
	tasks  []SymbolTask

	statsInterval time.Duration
	logger        *logging.Logger
}

// New constructs an Engine. statsInterval of 0 disables the stats printer.
func New(bars BarSource, trades TradeSource, ticks TickSource, tasks []SymbolTask, statsInterval time.Duration) *Engine {
	return &Engine{
		bars:          bars,
		trades:        trades,
		ticks:         ticks,
		tasks:         tasks,
		statsInterval: statsInterval,
		logger:        logging.Default().WithComponent("core"),
	}
}

// Run blocks until ctx is cancelled or any task returns a fatal error, per
// errgroup.WithContext's first-error-cancels-all semantics. A stream
// producer's own reconnect loop absorbs transient gaps (spec.md §7's
// KindStreamGap policy) rather than returning from Run early; a task
// returns an error only when its stream cannot be opened. Cancellation of
// ctx itself is a clean shutdown: Run then returns nil.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, task := range e.tasks {
		task := task
		g.Go(func() error { return e.runBarProducer(gctx, task, task.Interval, false) })
		if task.HTFInterval != "" {
			g.Go(func() error { return e.runBarProducer(gctx, task, task.HTFInterval, true) })
		}
		if e.trades != nil {
			g.Go(func() error { return e.runTradeProducer(gctx, task) })
		}
		if e.ticks != nil {
			g.Go(func() error { return e.runTickMonitor(gctx, task) })
		}
	}

	if e.statsInterval > 0 {
		g.Go(func() error { return e.runStatsPrinter(gctx) })
	}

	err := g.Wait()
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

func (e *Engine) runBarProducer(ctx context.Context, task SymbolTask, interval string, isHTF bool) error {
	log := e.logger.WithFields(map[string]interface{}{"symbol": task.Symbol, "interval": interval})
	ch, err := e.bars.StreamBars(ctx, task.Symbol, interval)
	if err != nil {
		return fmt.Errorf("core: stream bars %s/%s: %w", task.Symbol, interval, err)
	}
	log.Info("bar producer started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case bar, ok := <-ch:
			if !ok {
				log.Warn("bar stream closed")
				return nil
			}
			if isHTF {
				task.Orchestrator.OnHTFBarClose(ctx, bar)
				continue
			}
			if err := task.Orchestrator.OnBarClose(ctx, bar); err != nil {
				log.WithError(err).Error("bar close handling failed")
			}
		}
	}
}

func (e *Engine) runTradeProducer(ctx context.Context, task SymbolTask) error {
	log := e.logger.WithField("symbol", task.Symbol)
	ch, err := e.trades.StreamTrades(ctx, task.Symbol)
	if err != nil {
		return fmt.Errorf("core: stream trades %s: %w", task.Symbol, err)
	}
	log.Info("trade producer started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case trade, ok := <-ch:
			if !ok {
				log.Warn("trade stream closed")
				return nil
			}
			task.Orchestrator.OnTrade(trade)
		}
	}
}

// runTickMonitor implements spec.md §5's task 6: the cheap
// OnTickExitOnly path, nothing else.
func (e *Engine) runTickMonitor(ctx context.Context, task SymbolTask) error {
	log := e.logger.WithField("symbol", task.Symbol)
	ch, err := e.ticks.StreamTicks(ctx, task.Symbol)
	if err != nil {
		return fmt.Errorf("core: stream ticks %s: %w", task.Symbol, err)
	}
	log.Info("tick monitor started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ch:
			if !ok {
				log.Warn("tick stream closed")
				return nil
			}
			task.Orchestrator.OnTick(ctx, tick.Bid, tick.Ask)
		}
	}
}

func (e *Engine) runStatsPrinter(ctx context.Context) error {
	ticker := time.NewTicker(e.statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.logger.WithField("symbols", len(e.tasks)).Info("engine heartbeat")
		}
	}
}
