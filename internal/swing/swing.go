// Package swing implements spec.md §4.B's confirmed/tentative swing-point
// tracker, grounded on original_source/logic/swing_tracker.py.
package swing

import "sync"

const (
	maxSwingPoints = 40 // original_source MAX_SWING_POINTS
	maxSwingAge    = 40 // bars
)

// Point mirrors spec.md §3's SwingPoint data model. BarAge counts bars
// elapsed since confirmation/detection and grows by one on every Update.
type Point struct {
	Price float64
	BarAge int
	IsHigh bool
}

// Tracker maintains confirmed swing highs/lows at a configurable depth plus
// one tentative swing per side at depth 1 for lower-latency stop placement.
type Tracker struct {
	mu sync.Mutex

	depth int

	confirmedHighs []Point // newest-first
	confirmedLows  []Point

	tentativeHigh *Point
	tentativeLow  *Point

	cachedSH1, cachedSH2 *Point
	cachedSL1, cachedSL2 *Point
}

// New constructs a Tracker at the given confirmation depth (default 3).
func New(depth int) *Tracker {
	if depth <= 0 {
		depth = 3
	}
	return &Tracker{depth: depth}
}

// BarInput is the minimal per-bar shape the tracker needs, decoupling it
// from market.Bar so it can also drive the 5-minute structural tracker off
// a different bar type if ever needed.
type BarInput struct {
	High float64
	Low  float64
}

// Update is called once per newly closed bar with bars newest-first
// (bars[0] = the bar that just closed). It ages existing swings, drops
// those older than 40 bars, and tests for a newly confirmed or tentative
// swing at the appropriate offsets.
func (t *Tracker) Update(bars []BarInput) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ageAndPrune(&t.confirmedHighs)
	t.ageAndPrune(&t.confirmedLows)

	t.updateTentative(bars)
	t.updateConfirmed(bars)
	t.refreshCache()
}

func (t *Tracker) ageAndPrune(list *[]Point) {
	kept := (*list)[:0]
	for _, p := range *list {
		p.BarAge++
		if p.BarAge <= maxSwingAge {
			kept = append(kept, p)
		}
	}
	*list = kept
	if len(*list) > maxSwingPoints {
		*list = (*list)[:maxSwingPoints]
	}
}

// updateTentative checks offset 2 at depth 1, per spec.md §4.B bullet 4.
func (t *Tracker) updateTentative(bars []BarInput) {
	if isConfirmedHigh(bars, 2, 1) {
		h := Point{Price: bars[2].High, BarAge: 0, IsHigh: true}
		t.tentativeHigh = &h
	}
	if isConfirmedLow(bars, 2, 1) {
		l := Point{Price: bars[2].Low, BarAge: 0, IsHigh: false}
		t.tentativeLow = &l
	}
}

// updateConfirmed checks offset depth+1 at the tracker's configured depth,
// per spec.md §4.B bullet 3.
func (t *Tracker) updateConfirmed(bars []BarInput) {
	offset := t.depth + 1
	if isConfirmedHigh(bars, offset, t.depth) {
		t.confirmedHighs = append([]Point{{Price: bars[offset].High, BarAge: 0, IsHigh: true}}, t.confirmedHighs...)
	}
	if isConfirmedLow(bars, offset, t.depth) {
		t.confirmedLows = append([]Point{{Price: bars[offset].Low, BarAge: 0, IsHigh: false}}, t.confirmedLows...)
	}
}

func isConfirmedHigh(bars []BarInput, offset, depth int) bool {
	if offset-depth < 0 || offset+depth >= len(bars) {
		return false
	}
	c := bars[offset].High
	for k := 1; k <= depth; k++ {
		if bars[offset-k].High >= c || bars[offset+k].High >= c {
			return false
		}
	}
	return true
}

func isConfirmedLow(bars []BarInput, offset, depth int) bool {
	if offset-depth < 0 || offset+depth >= len(bars) {
		return false
	}
	c := bars[offset].Low
	for k := 1; k <= depth; k++ {
		if bars[offset-k].Low <= c || bars[offset+k].Low <= c {
			return false
		}
	}
	return true
}

func (t *Tracker) refreshCache() {
	t.cachedSH1, t.cachedSH2 = nth(t.confirmedHighs, 0), nth(t.confirmedHighs, 1)
	t.cachedSL1, t.cachedSL2 = nth(t.confirmedLows, 0), nth(t.confirmedLows, 1)
}

func nth(list []Point, i int) *Point {
	if i < 0 || i >= len(list) {
		return nil
	}
	p := list[i]
	return &p
}

// RecentSwingHigh returns the nth-most-recent swing high (1-indexed). When
// allowTentative is true and n==1, a tentative swing newer than the most
// recent confirmed one takes priority — O(1) via the 2-deep cache, mirroring
// original_source's cached_sh1/cached_sh2.
func (t *Tracker) RecentSwingHigh(n int, allowTentative bool) (Point, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if allowTentative && n == 1 && t.tentativeHigh != nil {
		if t.cachedSH1 == nil || t.tentativeHigh.BarAge <= t.cachedSH1.BarAge {
			return *t.tentativeHigh, true
		}
	}
	switch n {
	case 1:
		if t.cachedSH1 != nil {
			return *t.cachedSH1, true
		}
	case 2:
		if t.cachedSH2 != nil {
			return *t.cachedSH2, true
		}
	default:
		if n-1 < len(t.confirmedHighs) {
			return t.confirmedHighs[n-1], true
		}
	}
	return Point{}, false
}

// RecentSwingLow mirrors RecentSwingHigh for swing lows.
func (t *Tracker) RecentSwingLow(n int, allowTentative bool) (Point, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if allowTentative && n == 1 && t.tentativeLow != nil {
		if t.cachedSL1 == nil || t.tentativeLow.BarAge <= t.cachedSL1.BarAge {
			return *t.tentativeLow, true
		}
	}
	switch n {
	case 1:
		if t.cachedSL1 != nil {
			return *t.cachedSL1, true
		}
	case 2:
		if t.cachedSL2 != nil {
			return *t.cachedSL2, true
		}
	default:
		if n-1 < len(t.confirmedLows) {
			return t.confirmedLows[n-1], true
		}
	}
	return Point{}, false
}

// RecentHighs/RecentLows expose a bounded snapshot (newest-first) for
// swing-sequence scoring (e.g. AlwaysIn's higher-highs/lower-lows count).
func (t *Tracker) RecentHighs(n int) []Point {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n > len(t.confirmedHighs) {
		n = len(t.confirmedHighs)
	}
	out := make([]Point, n)
	copy(out, t.confirmedHighs[:n])
	return out
}

func (t *Tracker) RecentLows(n int) []Point {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n > len(t.confirmedLows) {
		n = len(t.confirmedLows)
	}
	out := make([]Point, n)
	copy(out, t.confirmedLows[:n])
	return out
}

// StructuralStopBuy reports whether the lower-timeframe tracker has formed
// a new confirmed Higher-Low above entry, and if so the trailed stop
// (swing low minus a 0.2×ATR buffer), per spec.md §4.B/§4.G.
func (t *Tracker) StructuralStopBuy(entry, currentSL, atr float64) (newSL float64, updated bool) {
	low, ok := t.RecentSwingLow(1, false)
	if !ok || low.Price <= entry {
		return currentSL, false
	}
	candidate := low.Price - 0.2*atr
	if candidate > currentSL {
		return candidate, true
	}
	return currentSL, false
}

// StructuralStopSell mirrors StructuralStopBuy for short positions: a new
// confirmed Lower-High below entry trails the stop down.
func (t *Tracker) StructuralStopSell(entry, currentSL, atr float64) (newSL float64, updated bool) {
	high, ok := t.RecentSwingHigh(1, false)
	if !ok || high.Price >= entry {
		return currentSL, false
	}
	candidate := high.Price + 0.2*atr
	if candidate < currentSL {
		return candidate, true
	}
	return currentSL, false
}
