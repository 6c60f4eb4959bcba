package pattern

import "brooksengine/internal/signal"

// DetectMTR implements spec.md §4.D's Major Trend Reversal detector: a
// trendline through the last two same-side swing points, broken by a bar
// that closed past it by >=0.1xATR, a failed retest of the broken line
// within 0.2xATR showing a rejection tail, a structural swing confirming
// the new direction, and a confirming bar closing in the outer 50%.
func DetectMTR(ctx Context, cfg Config) (signal.Signal, bool) {
	if sig, ok := detectMTRBuy(ctx, cfg); ok {
		return sig, true
	}
	return detectMTRSell(ctx, cfg)
}

// lineValue linearly interpolates the trendline value at barAge, given two
// points (older first) each carrying its own BarAge.
func lineValue(olderPrice float64, olderAge int, newerPrice float64, newerAge int, atAge int) float64 {
	if olderAge == newerAge {
		return newerPrice
	}
	slope := (newerPrice - olderPrice) / float64(olderAge-newerAge)
	return newerPrice + slope*float64(newerAge-atAge)
}

func detectMTRBuy(ctx Context, cfg Config) (signal.Signal, bool) {
	if ctx.ATR <= 0 {
		return signal.Signal{}, false
	}
	high2, ok2 := ctx.Swings.RecentSwingHigh(2, false)
	high1, ok1 := ctx.Swings.RecentSwingHigh(1, false)
	if !ok1 || !ok2 || high1.Price >= high2.Price || high2.BarAge <= high1.BarAge {
		return signal.Signal{}, false
	}

	cur, ok := ctx.bar(0)
	if !ok {
		return signal.Signal{}, false
	}

	// Search the bars between the newer swing high and now for a break
	// above the descending trendline, then a failed retest closer to now.
	broke := false
	var breakLevel float64
	for age := high1.BarAge - 1; age >= 1; age-- {
		b, ok := ctx.bar(age)
		if !ok {
			break
		}
		level := lineValue(high2.Price, high2.BarAge, high1.Price, high1.BarAge, age)
		if !broke && b.Close > level+0.1*ctx.ATR {
			broke = true
			breakLevel = level
			continue
		}
		if broke {
			// Retest: touches within 0.2xATR of the (approx constant)
			// break level and fails to close back under it.
			if b.Low <= breakLevel+0.2*ctx.ATR && b.Close > breakLevel {
				lowTail := minf(b.Open, b.Close) - b.Low
				if lowTail < 0.15*b.Range() {
					return signal.Signal{}, false
				}
			}
		}
	}
	if !broke {
		return signal.Signal{}, false
	}

	low1, okL1 := ctx.Swings.RecentSwingLow(1, true)
	low2, okL2 := ctx.Swings.RecentSwingLow(2, false)
	if !okL1 || !okL2 || low1.Price <= low2.Price {
		return signal.Signal{}, false // no structural higher-low yet
	}

	if !cur.IsBullish() || cur.ClosePosition() < 0.5 {
		return signal.Signal{}, false
	}

	stop := low1.Price - 0.2*ctx.ATR
	if !withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
		return signal.Signal{}, false
	}
	return signal.New(signal.KindMTRBuy, signal.Buy, stop, high1.Price-low1.Price, 0), true
}

func detectMTRSell(ctx Context, cfg Config) (signal.Signal, bool) {
	if ctx.ATR <= 0 {
		return signal.Signal{}, false
	}
	low2, ok2 := ctx.Swings.RecentSwingLow(2, false)
	low1, ok1 := ctx.Swings.RecentSwingLow(1, false)
	if !ok1 || !ok2 || low1.Price <= low2.Price || low2.BarAge <= low1.BarAge {
		return signal.Signal{}, false
	}

	cur, ok := ctx.bar(0)
	if !ok {
		return signal.Signal{}, false
	}

	broke := false
	var breakLevel float64
	for age := low1.BarAge - 1; age >= 1; age-- {
		b, ok := ctx.bar(age)
		if !ok {
			break
		}
		level := lineValue(low2.Price, low2.BarAge, low1.Price, low1.BarAge, age)
		if !broke && b.Close < level-0.1*ctx.ATR {
			broke = true
			breakLevel = level
			continue
		}
		if broke {
			if b.High >= breakLevel-0.2*ctx.ATR && b.Close < breakLevel {
				highTail := b.High - maxf(b.Open, b.Close)
				if highTail < 0.15*b.Range() {
					return signal.Signal{}, false
				}
			}
		}
	}
	if !broke {
		return signal.Signal{}, false
	}

	high1, okH1 := ctx.Swings.RecentSwingHigh(1, true)
	high2, okH2 := ctx.Swings.RecentSwingHigh(2, false)
	if !okH1 || !okH2 || high1.Price >= high2.Price {
		return signal.Signal{}, false // no structural lower-high yet
	}

	if !cur.IsBearish() || cur.ClosePosition() > 0.5 {
		return signal.Signal{}, false
	}

	stop := high1.Price + 0.2*ctx.ATR
	if !withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
		return signal.Signal{}, false
	}
	return signal.New(signal.KindMTRSell, signal.Sell, stop, high1.Price-low1.Price, 0), true
}
