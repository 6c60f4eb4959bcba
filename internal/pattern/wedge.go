package pattern

import "brooksengine/internal/signal"

// DetectWedge implements spec.md §4.D's Wedge (three-push) detector,
// grounded on original_source/logic/patterns.py's detect_wedge_reversal: the
// last three swing extremes in the same direction, each push smaller than
// the last, spread >=15 bars start-to-end with >=3 bars between adjacent
// pushes, the third push's bar having a smaller body than the first push's
// bar and either closing against the push or showing a long rejecting
// shadow, confirmed by a 2% retrace back through the third push.
func DetectWedge(ctx Context, cfg Config) (signal.Signal, bool) {
	const lookback = 30
	n := lookback
	if len(ctx.Bars) < n {
		n = len(ctx.Bars)
	}
	if n < 20 {
		return signal.Signal{}, false
	}

	if sig, ok := detectWedgeHighs(ctx, cfg, n); ok {
		return sig, true
	}
	return detectWedgeLows(ctx, cfg, n)
}

type wedgePeak struct {
	age   int // BarAge-equivalent: index into ctx.Bars, newest-first
	price float64
}

func detectWedgeHighs(ctx Context, cfg Config, n int) (signal.Signal, bool) {
	var peaks []wedgePeak
	for i := n - 2; i >= 1; i-- {
		b := ctx.Bars[i]
		if b.High > ctx.Bars[i+1].High && b.High > ctx.Bars[i-1].High {
			peaks = append(peaks, wedgePeak{age: i, price: b.High})
		}
	}
	if len(peaks) < 3 {
		return signal.Signal{}, false
	}
	// peaks is oldest-to-newest bar order (built by scanning from the oldest
	// age down to the newest), so the last 3 are the most recent three pushes.
	p1, p2, p3 := peaks[len(peaks)-3], peaks[len(peaks)-2], peaks[len(peaks)-1]

	if !(p1.price < p2.price && p2.price < p3.price && (p2.price-p1.price) > (p3.price-p2.price)) {
		return signal.Signal{}, false
	}
	if p1.age-p3.age < 15 {
		return signal.Signal{}, false
	}
	if p1.age-p2.age < 3 || p2.age-p3.age < 3 {
		return signal.Signal{}, false
	}

	thirdBar := ctx.Bars[p3.age]
	firstBar := ctx.Bars[p1.age]
	if thirdBar.Body() >= firstBar.Body() {
		return signal.Signal{}, false
	}

	isBearish := thirdBar.IsBearish()
	upperShadow := thirdBar.High - maxf(thirdBar.Open, thirdBar.Close)
	body := thirdBar.Body()
	hasLongUpper := upperShadow > body*2
	if body == 0 {
		hasLongUpper = upperShadow > thirdBar.Range()*0.3
	}
	if !isBearish && !hasLongUpper {
		return signal.Signal{}, false
	}

	cur, ok := ctx.bar(0)
	if !ok || cur.Close >= p3.price*0.98 {
		return signal.Signal{}, false
	}
	if cur.ClosePosition() > 0.25 {
		return signal.Signal{}, false
	}

	stop := twoBarStop(ctx, signal.Sell)
	if !withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
		return signal.Signal{}, false
	}
	return signal.New(signal.KindWedgeSell, signal.Sell, stop, p3.price-p1.price, 0), true
}

func detectWedgeLows(ctx Context, cfg Config, n int) (signal.Signal, bool) {
	var troughs []wedgePeak
	for i := n - 2; i >= 1; i-- {
		b := ctx.Bars[i]
		if b.Low < ctx.Bars[i+1].Low && b.Low < ctx.Bars[i-1].Low {
			troughs = append(troughs, wedgePeak{age: i, price: b.Low})
		}
	}
	if len(troughs) < 3 {
		return signal.Signal{}, false
	}
	t1, t2, t3 := troughs[len(troughs)-3], troughs[len(troughs)-2], troughs[len(troughs)-1]

	if !(t1.price > t2.price && t2.price > t3.price && (t1.price-t2.price) > (t2.price-t3.price)) {
		return signal.Signal{}, false
	}
	if t1.age-t3.age < 15 {
		return signal.Signal{}, false
	}
	if t1.age-t2.age < 3 || t2.age-t3.age < 3 {
		return signal.Signal{}, false
	}

	thirdBar := ctx.Bars[t3.age]
	firstBar := ctx.Bars[t1.age]
	if thirdBar.Body() >= firstBar.Body() {
		return signal.Signal{}, false
	}

	isBullish := thirdBar.IsBullish()
	lowerShadow := minf(thirdBar.Open, thirdBar.Close) - thirdBar.Low
	body := thirdBar.Body()
	hasLongLower := lowerShadow > body*2
	if body == 0 {
		hasLongLower = lowerShadow > thirdBar.Range()*0.3
	}
	if !isBullish && !hasLongLower {
		return signal.Signal{}, false
	}

	cur, ok := ctx.bar(0)
	if !ok || cur.Close <= t3.price*1.02 {
		return signal.Signal{}, false
	}
	if cur.ClosePosition() < 0.75 {
		return signal.Signal{}, false
	}

	stop := twoBarStop(ctx, signal.Buy)
	if !withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
		return signal.Signal{}, false
	}
	return signal.New(signal.KindWedgeBuy, signal.Buy, stop, t1.price-t3.price, 0), true
}
