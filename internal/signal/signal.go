// Package signal defines the shared Signal/Kind/Side vocabulary produced by
// the pattern detectors (internal/pattern) and consumed by the dispatcher
// (internal/dispatch), the risk computer (internal/riskstop), and the
// lifecycle manager (internal/lifecycle).
package signal

import "github.com/google/uuid"

// Side is the directional side of a signal or position.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Kind enumerates every pattern-detector signal variant. Numeric values
// mirror original_source/logic/constants.py's SignalType so journal records
// and logs stay comparable with the reference implementation's output.
type Kind int

const (
	KindNone Kind = iota
	KindSpikeBuy
	KindSpikeSell
	KindH1Buy
	KindH2Buy
	KindL1Sell
	KindL2Sell
	KindMicroChannelBuy
	KindMicroChannelSell
	KindDoubleTopBuy
	KindDoubleTopSell
	KindTrendBarBuy
	KindTrendBarSell
	KindReversalBarBuy
	KindReversalBarSell
	KindIIPatternBuy
	KindIIPatternSell
	KindOutsideBarBuy
	KindOutsideBarSell
	KindMeasuredMoveBuy
	KindMeasuredMoveSell
	KindTRBreakoutBuy
	KindTRBreakoutSell
	KindBreakoutPullbackBuy
	KindBreakoutPullbackSell
	KindGapBarBuy
	KindGapBarSell
	KindWedgeBuy
	KindWedgeSell
	KindClimaxBuy
	KindClimaxSell
	KindMTRBuy
	KindMTRSell
	KindFailedBreakoutBuy
	KindFailedBreakoutSell
	KindFinalFlagBuy
	KindFinalFlagSell
	// v2-only detectors, default-disabled per SPEC_FULL.md §6 Open Question 1.
	KindEmergencySpikeBuy
	KindEmergencySpikeSell
	KindMicroChannelH1Buy
	KindMicroChannelH1Sell
)

var kindNames = map[Kind]string{
	KindNone:                 "none",
	KindSpikeBuy:             "spike_buy",
	KindSpikeSell:            "spike_sell",
	KindH1Buy:                "h1_buy",
	KindH2Buy:                "h2_buy",
	KindL1Sell:               "l1_sell",
	KindL2Sell:               "l2_sell",
	KindMicroChannelBuy:      "micro_channel_buy",
	KindMicroChannelSell:     "micro_channel_sell",
	KindDoubleTopBuy:         "double_bottom_buy",
	KindDoubleTopSell:        "double_top_sell",
	KindTrendBarBuy:          "trend_bar_buy",
	KindTrendBarSell:         "trend_bar_sell",
	KindReversalBarBuy:       "reversal_bar_buy",
	KindReversalBarSell:      "reversal_bar_sell",
	KindIIPatternBuy:         "ii_pattern_buy",
	KindIIPatternSell:        "ii_pattern_sell",
	KindOutsideBarBuy:        "outside_bar_buy",
	KindOutsideBarSell:       "outside_bar_sell",
	KindMeasuredMoveBuy:      "measured_move_buy",
	KindMeasuredMoveSell:     "measured_move_sell",
	KindTRBreakoutBuy:        "tr_breakout_buy",
	KindTRBreakoutSell:       "tr_breakout_sell",
	KindBreakoutPullbackBuy:  "breakout_pullback_buy",
	KindBreakoutPullbackSell: "breakout_pullback_sell",
	KindGapBarBuy:            "gap_bar_buy",
	KindGapBarSell:           "gap_bar_sell",
	KindWedgeBuy:             "wedge_buy",
	KindWedgeSell:            "wedge_sell",
	KindClimaxBuy:            "climax_buy",
	KindClimaxSell:           "climax_sell",
	KindMTRBuy:               "mtr_buy",
	KindMTRSell:              "mtr_sell",
	KindFailedBreakoutBuy:    "failed_breakout_buy",
	KindFailedBreakoutSell:   "failed_breakout_sell",
	KindFinalFlagBuy:         "final_flag_buy",
	KindFinalFlagSell:        "final_flag_sell",
	KindEmergencySpikeBuy:    "emergency_spike_buy",
	KindEmergencySpikeSell:   "emergency_spike_sell",
	KindMicroChannelH1Buy:    "micro_channel_h1_buy",
	KindMicroChannelH1Sell:   "micro_channel_h1_sell",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Side derives the directional side implied by the kind's name suffix.
func (k Kind) Side() Side {
	switch k {
	case KindSpikeSell, KindL1Sell, KindL2Sell, KindMicroChannelSell, KindDoubleTopSell,
		KindTrendBarSell, KindReversalBarSell, KindIIPatternSell, KindOutsideBarSell,
		KindMeasuredMoveSell, KindTRBreakoutSell, KindBreakoutPullbackSell, KindGapBarSell,
		KindWedgeSell, KindClimaxSell, KindMTRSell, KindFailedBreakoutSell, KindFinalFlagSell,
		KindEmergencySpikeSell, KindMicroChannelH1Sell:
		return Sell
	default:
		return Buy
	}
}

// IsReversal reports whether kind belongs to the reversal detector group
// (internal/dispatch's second ordering group, spec.md §4.E).
func (k Kind) IsReversal() bool {
	switch k {
	case KindClimaxBuy, KindClimaxSell, KindWedgeBuy, KindWedgeSell, KindMTRBuy, KindMTRSell,
		KindFailedBreakoutBuy, KindFailedBreakoutSell, KindDoubleTopBuy, KindDoubleTopSell,
		KindOutsideBarBuy, KindOutsideBarSell, KindReversalBarBuy, KindReversalBarSell,
		KindIIPatternBuy, KindIIPatternSell, KindMeasuredMoveBuy, KindMeasuredMoveSell,
		KindFinalFlagBuy, KindFinalFlagSell:
		return true
	default:
		return false
	}
}

// Signal is produced by a pattern detector and carries everything the risk
// computer needs to size a stop without re-reading bar state.
type Signal struct {
	ID             uuid.UUID // parent SignalId shared by the twin Scalp/Runner legs, spec.md §9
	Kind           Kind
	Side           Side
	TechnicalStop  float64
	BaseHeight     float64 // measured-move base used by riskstop for tp2
	SourceBarIndex int
}

// New builds a Signal with a freshly minted parent id.
func New(kind Kind, side Side, technicalStop, baseHeight float64, sourceBarIndex int) Signal {
	return Signal{
		ID:             uuid.New(),
		Kind:           kind,
		Side:           side,
		TechnicalStop:  technicalStop,
		BaseHeight:     baseHeight,
		SourceBarIndex: sourceBarIndex,
	}
}

// Magic distinguishes the two legs of a twin-order position.
type Magic int

const (
	MagicScalp Magic = iota
	MagicRunner
	MagicSingle // single-leg fallback when only one lot unit fits
)

func (m Magic) String() string {
	switch m {
	case MagicScalp:
		return "scalp"
	case MagicRunner:
		return "runner"
	default:
		return "single"
	}
}

// PendingStopOrder mirrors spec.md §3's PendingStopOrder data model.
type PendingStopOrder struct {
	OrderID       string
	SignalID      uuid.UUID
	Side          Side
	StopPrice     float64
	TechnicalStop float64
	TP            float64 // tp1 for scalp leg, 0 for runner (no tp attached)
	Kind          Kind
	Magic         Magic
	SubmittedAt   int64 // unix seconds, bar open_time at submission
	ExpiresAt     int64 // SubmittedAt + one period
}

// Expired reports whether the pending order's lifetime (one bar period) has
// elapsed as of nowUnix.
func (p PendingStopOrder) Expired(nowUnix int64) bool {
	return nowUnix >= p.ExpiresAt
}
