package market

import (
	"context"
	"sync"
	"time"
)

// DedupGuard lets a second process adopting the same account after a
// restart avoid double-appending a bar it has already seen; backed by
// internal/cache's Redis SETNX wrapper. Optional — a nil guard leaves the
// in-process seen-set as the sole dedup mechanism.
type DedupGuard interface {
	ClaimBarOpenTime(ctx context.Context, symbol, timeframe string, openTime int64) (bool, error)
}

// Buffer is a ring buffer of closed bars for one symbol/timeframe, with
// incrementally maintained EMA and ATR, per spec.md §4.A.
type Buffer struct {
	mu sync.RWMutex

	symbol    string
	timeframe string
	capacity  int

	bars []Bar // closed bars, newest-first

	seen     map[int64]struct{}
	seenOrder []int64 // FIFO eviction order for the in-process dedup set

	forming    Bar
	hasForming bool

	emaPeriod int
	atrPeriod int

	ema     float64
	emaSeen int

	atr        float64
	trueRanges []float64 // warm-up accumulator until atrPeriod samples collected

	lastTickRefresh time.Time

	guard DedupGuard
}

// NewBuffer constructs a Buffer sized at least 50+lookback, per spec.md §4.A.
func NewBuffer(symbol, timeframe string, emaPeriod, atrPeriod, lookback int, guard DedupGuard) *Buffer {
	capacity := 50 + lookback
	if capacity < emaPeriod+atrPeriod {
		capacity = emaPeriod + atrPeriod
	}
	return &Buffer{
		symbol:    symbol,
		timeframe: timeframe,
		capacity:  capacity,
		seen:      make(map[int64]struct{}, capacity*2),
		emaPeriod: emaPeriod,
		atrPeriod: atrPeriod,
		guard:     guard,
	}
}

// OnPrimaryBarClose appends a newly closed bar, recomputing EMA/ATR. It
// returns isNew=false (a no-op) if this open_time has already been seen,
// satisfying spec.md §8's "replaying the same bar twice is a no-op" law.
func (b *Buffer) OnPrimaryBarClose(ctx context.Context, bar Bar) (isNew bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, dup := b.seen[bar.OpenTime]; dup {
		return false, nil
	}

	if b.guard != nil {
		claimed, gerr := b.guard.ClaimBarOpenTime(ctx, b.symbol, b.timeframe, bar.OpenTime)
		if gerr == nil && !claimed {
			return false, nil
		}
		// On guard error we fall back to the in-process set only (degraded,
		// not fatal — matches spec.md §7's buffer-underflow-style tolerance).
		err = gerr
	}

	b.markSeen(bar.OpenTime)
	b.bars = append([]Bar{bar}, b.bars...)
	if len(b.bars) > b.capacity {
		b.bars = b.bars[:b.capacity]
	}

	b.updateEMA(bar.Close)
	b.updateATR(bar)

	return true, err
}

func (b *Buffer) markSeen(openTime int64) {
	b.seen[openTime] = struct{}{}
	b.seenOrder = append(b.seenOrder, openTime)
	if len(b.seenOrder) > b.capacity*2 {
		evict := b.seenOrder[0]
		b.seenOrder = b.seenOrder[1:]
		delete(b.seen, evict)
	}
}

func (b *Buffer) updateEMA(close float64) {
	b.emaSeen++
	if b.emaSeen == 1 {
		b.ema = close
		return
	}
	k := 2.0 / (float64(b.emaPeriod) + 1.0)
	b.ema = close*k + b.ema*(1-k)
}

func (b *Buffer) trueRange(bar Bar) float64 {
	if len(b.bars) < 2 {
		return bar.Range()
	}
	prevClose := b.bars[1].Close // bars[0] is the bar just prepended
	tr := bar.Range()
	tr = max(tr, abs(bar.High-prevClose))
	tr = max(tr, abs(bar.Low-prevClose))
	return tr
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func (b *Buffer) updateATR(bar Bar) {
	tr := b.trueRange(bar)
	if len(b.trueRanges) < b.atrPeriod {
		b.trueRanges = append(b.trueRanges, tr)
		sum := 0.0
		for _, v := range b.trueRanges {
			sum += v
		}
		b.atr = sum / float64(len(b.trueRanges))
		return
	}
	// Wilder smoothing once warmed up.
	b.atr = (b.atr*float64(b.atrPeriod-1) + tr) / float64(b.atrPeriod)
}

// EMA returns the current EMA value (0 until the first closed bar).
func (b *Buffer) EMA() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ema
}

// ATR returns the current ATR value (0 until the first closed bar).
func (b *Buffer) ATR() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.atr
}

// Bars returns a value-copy snapshot of the closed-bar slice, newest first.
// Per spec.md §5's shared-resources rule, the buffer is written only by the
// bar producer; every other task reads a snapshot.
func (b *Buffer) Bars() []Bar {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Bar, len(b.bars))
	copy(out, b.bars)
	return out
}

// At returns the closed bar at offset i (0 = last closed), and false if i is
// out of range — the bounds-checked accessor spec.md §9 calls for instead of
// panicking on malformed buffer access.
func (b *Buffer) At(i int) (Bar, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i < 0 || i >= len(b.bars) {
		return Bar{}, false
	}
	return b.bars[i], true
}

// Len returns the number of closed bars currently held.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.bars)
}

// SetForming records the latest forming-bar snapshot for the tick path.
func (b *Buffer) SetForming(bar Bar) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forming = bar
	b.hasForming = true
}

// Forming returns the latest forming-bar snapshot, if any.
func (b *Buffer) Forming() (Bar, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.forming, b.hasForming
}

// OnTick is the cheap per-tick hook: it performs no recomputation unless the
// forming bar's range exceeds 1.5×ATR, in which case it triggers a
// throttled (>=5s apart) ATR refresh so Spike-condition stops don't starve,
// per spec.md §4.A. Returns true if a refresh occurred.
func (b *Buffer) OnTick(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.hasForming || b.atr <= 0 {
		return false
	}
	if b.forming.Range() <= 1.5*b.atr {
		return false
	}
	if !b.lastTickRefresh.IsZero() && now.Sub(b.lastTickRefresh) < 5*time.Second {
		return false
	}

	tr := b.forming.Range()
	if len(b.bars) > 0 {
		tr = max(tr, abs(b.forming.High-b.bars[0].Close))
		tr = max(tr, abs(b.forming.Low-b.bars[0].Close))
	}
	b.atr = (b.atr*float64(b.atrPeriod-1) + tr) / float64(b.atrPeriod)
	b.lastTickRefresh = now
	return true
}

// Symbol returns the buffer's symbol.
func (b *Buffer) Symbol() string { return b.symbol }

// Timeframe returns the buffer's timeframe.
func (b *Buffer) Timeframe() string { return b.timeframe }
