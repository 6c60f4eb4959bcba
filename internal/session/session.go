// Package session implements spec.md §4.L's clock & session gate: a pure
// function of wall-clock time into weekend/Friday-close/Sunday-pre-open
// flags, plus the Monday-gap H/L reset rule. Grounded on
// original_source/utils.py's market-hours helpers.
package session

import "time"

// Config holds the session-boundary tunables.
type Config struct {
	FridayCloseHourUTC   int     // hour (UTC) after which new entries stop on Friday, default 21
	SundayPreOpenHourUTC int     // hour (UTC) before which Sunday is still "weekend", default 22
	MondayGapResetATRMult float64 // default 1.0
}

// DefaultConfig mirrors spec.md §6.2's defaults.
func DefaultConfig() Config {
	return Config{FridayCloseHourUTC: 21, SundayPreOpenHourUTC: 22, MondayGapResetATRMult: 1.0}
}

// Gate is the per-bar clock snapshot spec.md §4.L returns.
type Gate struct {
	IsWeekend      bool
	IsFridayClose  bool
	IsSundayPreOpen bool
}

// Evaluate is the pure TimeCurrent() function.
func Evaluate(now time.Time, cfg Config) Gate {
	now = now.UTC()
	wd := now.Weekday()

	g := Gate{}
	switch wd {
	case time.Saturday:
		g.IsWeekend = true
	case time.Sunday:
		if now.Hour() < cfg.SundayPreOpenHourUTC {
			g.IsWeekend = true
		} else {
			g.IsSundayPreOpen = true
		}
	case time.Friday:
		if now.Hour() >= cfg.FridayCloseHourUTC {
			g.IsFridayClose = true
		}
	}
	return g
}

// IsMondayGapReset implements spec.md §4.L's Monday-gap reset: on the
// first bar of Monday, if |open[1]-close[2]| >= MondayGapResetATRMult*ATR,
// the H/L push counters must reset.
func IsMondayGapReset(barOpenTime time.Time, open1, close2, atr float64, cfg Config) bool {
	if barOpenTime.UTC().Weekday() != time.Monday || atr <= 0 {
		return false
	}
	gap := open1 - close2
	if gap < 0 {
		gap = -gap
	}
	return gap >= cfg.MondayGapResetATRMult*atr
}
