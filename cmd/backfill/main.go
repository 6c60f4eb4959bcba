// Command backfill fetches historical closed candles for one symbol via
// Binance's REST klines endpoint and replays them through an
// orchestrator.Orchestrator exactly as the live bar producer would, one
// OnBarClose call per candle in open_time order. Used to warm a freshly
// started engine's swing/regime/EMA/ATR state before its WebSocket bar
// producer takes over, and standalone to dry-run the pattern catalogue
// against recent history without placing any order (the orchestrator's
// broker.Adapter is a no-op stub here, never the live Binance adapter).
//
// Grounded on the teacher's internal/binance.FuturesClientImpl.GetFuturesKlines
// (futures_client.go) for the REST fetch shape; there is no teacher
// tools/backfill_bridge.go file in this retrieval pack to adapt directly,
// so the replay loop itself follows internal/orchestrator's own
// OnBarClose contract rather than a teacher backfill tool.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/rs/zerolog"

	"brooksengine/internal/binance"
	"brooksengine/internal/broker"
	"brooksengine/internal/events"
	"brooksengine/internal/market"
	"brooksengine/internal/orchestrator"
	"brooksengine/internal/signal"
)

func main() {
	symbol := flag.String("symbol", "BTCUSDT", "futures symbol to backfill")
	interval := flag.String("interval", "5m", "kline interval")
	limit := flag.Int("limit", 500, "number of historical candles to fetch (max 1500 per Binance)")
	testnet := flag.Bool("testnet", false, "use the futures testnet REST endpoint")
	apiKey := flag.String("api-key", "", "Binance API key (public klines endpoint does not require one, but the client constructor takes one)")
	apiSecret := flag.String("api-secret", "", "Binance API secret")
	flag.Parse()

	client := binance.NewFuturesClient(*apiKey, *apiSecret, *testnet)

	klines, err := client.GetFuturesKlines(*symbol, *interval, *limit)
	if err != nil {
		log.Fatalf("failed to fetch klines for %s/%s: %v", *symbol, *interval, err)
	}
	log.Printf("fetched %d candles for %s/%s", len(klines), *symbol, *interval)

	ocfg := orchestrator.DefaultConfig()
	o := orchestrator.New(*symbol, ocfg, noopAdapter{}, nil, nil, events.NewEventBus(), nil, zerolog.Nop())

	ctx := context.Background()
	for _, k := range klines {
		bar := market.Bar{
			OpenTime: k.OpenTime / 1000,
			Open:     k.Open,
			High:     k.High,
			Low:      k.Low,
			Close:    k.Close,
			Volume:   k.Volume,
		}
		if err := o.OnBarClose(ctx, bar); err != nil {
			log.Printf("open_time=%d: %v", bar.OpenTime, err)
		}
	}
	log.Printf("backfill complete: %d bars buffered", o.PrimaryBufferLen())
}

// noopAdapter satisfies broker.Adapter without ever reaching the
// exchange; a backfill run never opens or closes real positions.
type noopAdapter struct{}

func (noopAdapter) PlaceStopOrder(ctx context.Context, symbol string, side signal.Side, qty, stopPrice, tp float64, magic signal.Magic) (string, error) {
	return "backfill-noop", nil
}
func (noopAdapter) CancelOrder(ctx context.Context, symbol, orderID string) error { return nil }
func (noopAdapter) ModifyStop(ctx context.Context, symbol, orderID string, newStop float64) error {
	return nil
}
func (noopAdapter) ClosePosition(ctx context.Context, symbol string, qty float64, side signal.Side) error {
	return nil
}
func (noopAdapter) GetOrder(ctx context.Context, symbol, orderID string) (broker.OrderUpdate, error) {
	return broker.OrderUpdate{}, nil
}
func (noopAdapter) CurrentSpread(ctx context.Context, symbol string) (float64, error) { return 0, nil }
func (noopAdapter) LotStep(ctx context.Context, symbol string) (float64, error)       { return 0.001, nil }

var _ broker.Adapter = noopAdapter{}
