package pattern

import (
	"brooksengine/internal/regime"
	"brooksengine/internal/signal"
)

// DetectFinalFlagReversal implements spec.md §4.D's Final-Flag detector,
// grounded on original_source/logic/final_flag_reversal.py: active only
// while the regime is FinalFlag, requires the current bar to poke through
// the flag's own high/low (beyond the tight channel it followed) and close
// back inside it, confirmed by a same-direction reversal bar.
func DetectFinalFlagReversal(ctx Context, cfg Config) (signal.Signal, bool) {
	cur, ok := ctx.bar(0)
	if !ok || cur.Range() <= 0 || ctx.ATR <= 0 {
		return signal.Signal{}, false
	}
	if ctx.Regime.State != regime.StateFinalFlag {
		return signal.Signal{}, false
	}
	if ctx.Regime.FinalFlagHigh == 0 && ctx.Regime.FinalFlagLow == 0 {
		return signal.Signal{}, false
	}

	if ctx.Regime.FinalFlagDir.String() == "buy" {
		if cur.High <= ctx.Regime.FinalFlagHigh {
			return signal.Signal{}, false
		}
		closeBackBelow := cur.Close < ctx.Regime.FinalFlagHigh*0.999
		closeInLower := (cur.High-cur.Close)/cur.Range() >= 0.5
		if !closeBackBelow && !closeInLower {
			return signal.Signal{}, false
		}
		if !cur.IsBearish() {
			return signal.Signal{}, false
		}
		stop := ctx.Regime.FinalFlagExtreme + 0.5*ctx.ATR
		if !withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
			return signal.Signal{}, false
		}
		base := ctx.Regime.FinalFlagExtreme - ctx.EMA
		if base < ctx.ATR {
			base = 2 * ctx.ATR
		}
		return signal.New(signal.KindFinalFlagSell, signal.Sell, stop, base, 0), true
	}

	if cur.Low >= ctx.Regime.FinalFlagLow {
		return signal.Signal{}, false
	}
	closeBackAbove := cur.Close > ctx.Regime.FinalFlagLow*1.001
	closeInUpper := (cur.Close-cur.Low)/cur.Range() >= 0.5
	if !closeBackAbove && !closeInUpper {
		return signal.Signal{}, false
	}
	if !cur.IsBullish() {
		return signal.Signal{}, false
	}
	stop := ctx.Regime.FinalFlagExtreme - 0.5*ctx.ATR
	if !withinMaxStop(cur.Close, stop, ctx.ATR, cfg.MaxStopATR) {
		return signal.Signal{}, false
	}
	base := ctx.EMA - ctx.Regime.FinalFlagExtreme
	if base < ctx.ATR {
		base = 2 * ctx.ATR
	}
	return signal.New(signal.KindFinalFlagBuy, signal.Buy, stop, base, 0), true
}
