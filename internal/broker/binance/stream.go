package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"brooksengine/internal/core"
	"brooksengine/internal/market"
	"brooksengine/internal/orderflow"
)

// Stream implements core.BarSource, core.TradeSource, and core.TickSource
// against Binance USD-M futures' combined public WebSocket streams.
// Grounded on internal/binance/user_data_stream.go's
// dial/reconnect/readLoop shape, carried over from a private listen-key
// stream to these public kline/aggTrade/bookTicker streams: same
// dial-retry-on-error loop, same per-message type switch, but keyed on
// stream name suffix rather than an "e" event-type field, since Binance's
// combined-stream envelope wraps each payload in {"stream":..,"data":..}
// instead of tagging the payload itself.
type Stream struct {
	baseURL string
	logger  zerolog.Logger
}

// NewStream constructs a Stream. baseURL is the combined-stream websocket
// base, e.g. "wss://fstream.binance.com/stream" or its testnet
// equivalent; cmd/engine picks it from the credentials' testnet flag.
func NewStream(baseURL string, logger zerolog.Logger) *Stream {
	return &Stream{baseURL: baseURL, logger: logger.With().Str("component", "broker.binance.stream").Logger()}
}

type combinedEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// klineWSEvent is the "kline" field of a kline_<interval> stream payload.
type klineWSEvent struct {
	Kline struct {
		OpenTime int64  `json:"t"`
		Open     string `json:"o"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Close    string `json:"c"`
		Volume   string `json:"v"`
		IsClosed bool   `json:"x"`
		Interval string `json:"i"`
	} `json:"k"`
}

type aggTradeWSEvent struct {
	TradeTime    int64  `json:"T"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	IsBuyerMaker bool   `json:"m"`
}

type bookTickerWSEvent struct {
	BestBid string `json:"b"`
	BestAsk string `json:"a"`
}

// StreamBars implements core.BarSource: it dials a single-stream
// kline_<interval> connection and emits one market.Bar per closed
// candle (x:true), dropping in-progress candle ticks.
func (s *Stream) StreamBars(ctx context.Context, symbol, interval string) (<-chan market.Bar, error) {
	out := make(chan market.Bar)
	stream := fmt.Sprintf("%s@kline_%s", strings.ToLower(symbol), interval)
	go s.run(ctx, stream, func(data json.RawMessage) {
		var ev klineWSEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Warn().Err(err).Str("stream", stream).Msg("failed to parse kline event")
			return
		}
		if !ev.Kline.IsClosed {
			return
		}
		bar := market.Bar{
			OpenTime: ev.Kline.OpenTime / 1000,
			Open:     parseFloat(ev.Kline.Open),
			High:     parseFloat(ev.Kline.High),
			Low:      parseFloat(ev.Kline.Low),
			Close:    parseFloat(ev.Kline.Close),
			Volume:   parseFloat(ev.Kline.Volume),
		}
		select {
		case out <- bar:
		case <-ctx.Done():
		}
	})
	return out, nil
}

// StreamTrades implements core.TradeSource against the aggTrade stream.
func (s *Stream) StreamTrades(ctx context.Context, symbol string) (<-chan orderflow.Trade, error) {
	out := make(chan orderflow.Trade)
	stream := fmt.Sprintf("%s@aggTrade", strings.ToLower(symbol))
	go s.run(ctx, stream, func(data json.RawMessage) {
		var ev aggTradeWSEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Warn().Err(err).Str("stream", stream).Msg("failed to parse aggTrade event")
			return
		}
		trade := orderflow.Trade{
			Time:         time.UnixMilli(ev.TradeTime),
			Price:        parseFloat(ev.Price),
			Qty:          parseFloat(ev.Quantity),
			IsBuyerMaker: ev.IsBuyerMaker,
		}
		select {
		case out <- trade:
		case <-ctx.Done():
		}
	})
	return out, nil
}

// StreamTicks implements core.TickSource against the bookTicker stream.
func (s *Stream) StreamTicks(ctx context.Context, symbol string) (<-chan core.Tick, error) {
	out := make(chan core.Tick)
	stream := fmt.Sprintf("%s@bookTicker", strings.ToLower(symbol))
	go s.run(ctx, stream, func(data json.RawMessage) {
		var ev bookTickerWSEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Warn().Err(err).Str("stream", stream).Msg("failed to parse bookTicker event")
			return
		}
		tick := core.Tick{Symbol: symbol, Bid: parseFloat(ev.BestBid), Ask: parseFloat(ev.BestAsk)}
		select {
		case out <- tick:
		case <-ctx.Done():
		}
	})
	return out, nil
}

// run dials stream and invokes handle for every message until ctx is
// cancelled, reconnecting with a fixed backoff on dial or read failure,
// matching internal/binance/user_data_stream.go's connect/readLoop retry
// shape.
func (s *Stream) run(ctx context.Context, stream string, handle func(json.RawMessage)) {
	url := fmt.Sprintf("%s?streams=%s", s.baseURL, stream)
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			s.logger.Warn().Err(err).Str("stream", stream).Msg("dial failed, retrying in 5s")
			sleepOrDone(ctx, 5*time.Second)
			continue
		}
		s.readLoop(ctx, conn, stream, handle)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn().Str("stream", stream).Msg("connection lost, reconnecting in 3s")
		sleepOrDone(ctx, 3*time.Second)
	}
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn, stream string, handle func(json.RawMessage)) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			s.logger.Warn().Err(err).Str("stream", stream).Msg("read error")
			return
		}
		var env combinedEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			s.logger.Warn().Err(err).Str("stream", stream).Msg("failed to parse combined envelope")
			continue
		}
		handle(env.Data)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
