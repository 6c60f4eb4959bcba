package pattern

import "brooksengine/internal/signal"

// DetectEmergencySpike and DetectMicroChannelH1 are the v2-only detectors
// named in spec.md §9's Open Question 1. SPEC_FULL.md §6 resolves that
// question by keeping them in the catalogue but default-disabled via
// Config.EmergencySpikeEnabled/MicroChannelH1Enabled, gated by the
// dispatcher rather than guessed on.

// DetectEmergencySpike relaxes DetectSpike's MinSpikeBars by one (never
// below 1), for a faster emergency entry; every other DetectSpike condition
// is unchanged — only consulted when cfg.EmergencySpikeEnabled is true.
func DetectEmergencySpike(ctx Context, cfg Config) (signal.Signal, bool) {
	if !cfg.EmergencySpikeEnabled {
		return signal.Signal{}, false
	}
	relaxed := cfg
	relaxed.MinSpikeBars = cfg.MinSpikeBars - 1
	if relaxed.MinSpikeBars < 1 {
		relaxed.MinSpikeBars = 1
	}
	return DetectSpike(ctx, relaxed)
}

// DetectMicroChannelH1 requires an active H1 push (HLCounter.BuyPushes==1
// or SellPushes==1) on top of DetectMicroChannel's own channel geometry —
// only consulted when cfg.MicroChannelH1Enabled is true.
func DetectMicroChannelH1(ctx Context, cfg Config, hl *HLCounter) (signal.Signal, bool) {
	if !cfg.MicroChannelH1Enabled {
		return signal.Signal{}, false
	}
	sig, ok := DetectMicroChannel(ctx, cfg)
	if !ok {
		return signal.Signal{}, false
	}
	if sig.Side == signal.Buy && hl.BuyPushes() != 1 {
		return signal.Signal{}, false
	}
	if sig.Side == signal.Sell && hl.SellPushes() != 1 {
		return signal.Signal{}, false
	}
	sig.Kind = signal.KindMicroChannelH1Buy
	if sig.Side == signal.Sell {
		sig.Kind = signal.KindMicroChannelH1Sell
	}
	return sig, true
}
