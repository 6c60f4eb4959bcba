package pattern

import "brooksengine/internal/signal"

// DetectDoubleTopBottom implements spec.md §4.D's Double-Top/Bottom
// detector: the two most recent swing extremes on one side sit within
// 0.3xATR of each other and of the current bar's own extreme, confirmed by
// a reversing bar with body-ratio >=0.4 and close-position past the 55%
// mark in the reversal direction.
func DetectDoubleTopBottom(ctx Context, cfg Config) (signal.Signal, bool) {
	cur, ok := ctx.bar(0)
	if !ok || ctx.ATR <= 0 {
		return signal.Signal{}, false
	}

	high1, okH1 := ctx.Swings.RecentSwingHigh(1, true)
	high2, okH2 := ctx.Swings.RecentSwingHigh(2, false)
	if okH1 && okH2 {
		withinEachOther := absf(high1.Price-high2.Price) <= 0.3*ctx.ATR
		withinCurrent := absf(cur.High-high1.Price) <= 0.3*ctx.ATR
		if withinEachOther && withinCurrent && cur.IsBearish() && cur.BodyRatio() >= 0.4 && cur.ClosePosition() <= 0.45 {
			stop := maxf(high1.Price, cur.High) + 0.2*ctx.ATR
			if withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
				return signal.New(signal.KindDoubleTopSell, signal.Sell, stop, high1.Price-cur.Low, 0), true
			}
		}
	}

	low1, okL1 := ctx.Swings.RecentSwingLow(1, true)
	low2, okL2 := ctx.Swings.RecentSwingLow(2, false)
	if okL1 && okL2 {
		withinEachOther := absf(low1.Price-low2.Price) <= 0.3*ctx.ATR
		withinCurrent := absf(cur.Low-low1.Price) <= 0.3*ctx.ATR
		if withinEachOther && withinCurrent && cur.IsBullish() && cur.BodyRatio() >= 0.4 && cur.ClosePosition() >= 0.55 {
			stop := minf(low1.Price, cur.Low) - 0.2*ctx.ATR
			if withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
				return signal.New(signal.KindDoubleTopBuy, signal.Buy, stop, cur.High-low1.Price, 0), true
			}
		}
	}

	return signal.Signal{}, false
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
