package pattern

import (
	"brooksengine/internal/signal"
)

// DetectSpike implements spec.md §4.D's Spike detector: a burst of
// consecutive same-direction trend bars with low overlap.
func DetectSpike(ctx Context, cfg Config) (signal.Signal, bool) {
	signal0, ok := ctx.bar(0)
	if !ok || ctx.ATR <= 0 {
		return signal.Signal{}, false
	}

	side := signal.Buy
	if signal0.IsBearish() {
		side = signal.Sell
	}
	if !signal0.IsBullish() && !signal0.IsBearish() {
		return signal.Signal{}, false
	}

	count := 0
	lo, hi := signal0.Low, signal0.High
	for i := 0; i < len(ctx.Bars); i++ {
		b := ctx.Bars[i]
		trendDir := (side == signal.Buy && b.IsBullish()) || (side == signal.Sell && b.IsBearish())
		if !trendDir {
			break
		}
		closeOuter := b.ClosePosition() >= 0.6 || b.ClosePosition() <= 0.4
		isTrend := b.BodyRatio() > 0.5 || (closeOuter && b.Range() > 0.5*ctx.ATR)
		if !isTrend {
			break
		}
		if i+1 < len(ctx.Bars) {
			if b.Overlap(ctx.Bars[i+1]) > cfg.SpikeOverlapMax {
				break
			}
		}
		count++
		lo = minf(lo, b.Low)
		hi = maxf(hi, b.High)
	}

	if count < cfg.MinSpikeBars {
		return signal.Signal{}, false
	}

	var stop float64
	var kind signal.Kind
	if side == signal.Buy {
		stop = lo - 0.3*ctx.ATR
		kind = signal.KindSpikeBuy
	} else {
		stop = hi + 0.3*ctx.ATR
		kind = signal.KindSpikeSell
	}
	if !withinMaxStop(signal0.Close, stop, ctx.ATR, cfg.MaxStopATR) {
		return signal.Signal{}, false
	}

	return signal.New(kind, side, stop, hi-lo, 0), true
}

// DetectMicroChannel implements spec.md §4.D's Micro-Channel detector: >=5
// bars each making a higher-high AND higher-low (symmetric for sells), each
// pullback <=25% of the previous bar's range, confirmed on breakout of the
// previous bar's extreme.
func DetectMicroChannel(ctx Context, cfg Config) (signal.Signal, bool) {
	const minBars = 5
	if len(ctx.Bars) < minBars+1 || ctx.ATR <= 0 {
		return signal.Signal{}, false
	}

	isBuyChannel, isSellChannel := true, true
	for i := 0; i < minBars; i++ {
		cur, next := ctx.Bars[i], ctx.Bars[i+1]
		if !(cur.High > next.High && cur.Low > next.Low) {
			isBuyChannel = false
		}
		if !(cur.High < next.High && cur.Low < next.Low) {
			isSellChannel = false
		}
		if next.Range() > 0 {
			pullback := cur.High - next.Low
			if cur.Low > next.Low {
				pullback = next.High - cur.Low
			}
			if pullback < 0 {
				pullback = -pullback
			}
			if pullback > 0.25*next.Range() {
				isBuyChannel = false
				isSellChannel = false
			}
		}
	}

	signalBar := ctx.Bars[0]
	confirm, ok := ctx.bar(1)
	if !ok {
		return signal.Signal{}, false
	}

	if isBuyChannel && signalBar.High > confirm.High {
		lowest := ctx.Bars[0].Low
		for i := 1; i <= minBars; i++ {
			lowest = minf(lowest, ctx.Bars[i].Low)
		}
		stop := lowest - 0.3*ctx.ATR
		if !withinMaxStop(signalBar.Close, stop, ctx.ATR, cfg.MaxStopATR) {
			return signal.Signal{}, false
		}
		return signal.New(signal.KindMicroChannelBuy, signal.Buy, stop, 0, 0), true
	}
	if isSellChannel && signalBar.Low < confirm.Low {
		highest := ctx.Bars[0].High
		for i := 1; i <= minBars; i++ {
			highest = maxf(highest, ctx.Bars[i].High)
		}
		stop := highest + 0.3*ctx.ATR
		if !withinMaxStop(signalBar.Close, stop, ctx.ATR, cfg.MaxStopATR) {
			return signal.Signal{}, false
		}
		return signal.New(signal.KindMicroChannelSell, signal.Sell, stop, 0, 0), true
	}
	return signal.Signal{}, false
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
