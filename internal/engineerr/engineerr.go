// Package engineerr implements the typed error-kind taxonomy of spec.md §7:
// every error the core produces is classified into one of a small set of
// kinds, each with a fixed retry/skip/drop policy that the broker adapter,
// lifecycle manager, and orchestrator consult rather than re-deciding
// case-by-case.
package engineerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the policy it carries.
type Kind int

const (
	// KindBrokerTransient covers REQUOTE/PRICE_CHANGED/LOCKED/CONTEXT_BUSY:
	// retry up to 4 attempts total, 100ms spacing.
	KindBrokerTransient Kind = iota
	// KindBrokerInvalidStops covers invalid-stops/min-distance rejections:
	// cancel the attempt; skip on entries, widen-and-retry-once on exits.
	KindBrokerInvalidStops
	// KindBrokerReject covers insufficient margin / disabled symbol: drop
	// the signal, log, continue.
	KindBrokerReject
	// KindStreamGap covers a stalled bar/trade stream: reconnect with
	// capped exponential backoff, backfill by open_time on reconnect.
	KindStreamGap
	// KindBufferUnderflow covers ATR=0/EMA=0: emit no signals, skip
	// trailing, continue.
	KindBufferUnderflow
	// KindTrackingDrift covers a tracked SoftStop/position count mismatch
	// against the broker or local arrays: resync, never index OOB.
	KindTrackingDrift
	// KindIllegalQuantity covers a partial-close volume below min_qty:
	// skip the partial, wait for next bar.
	KindIllegalQuantity
	// KindFatal covers credential-missing, symbol-info-unavailable at
	// startup, or persistent OOM: process exits.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindBrokerTransient:
		return "broker_transient"
	case KindBrokerInvalidStops:
		return "broker_invalid_stops"
	case KindBrokerReject:
		return "broker_reject"
	case KindStreamGap:
		return "stream_gap"
	case KindBufferUnderflow:
		return "buffer_underflow"
	case KindTrackingDrift:
		return "tracking_drift"
	case KindIllegalQuantity:
		return "illegal_quantity"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with its policy Kind.
type Error struct {
	Kind Kind
	Op   string // the operation that failed, e.g. "PlaceStop", "StreamBars"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given kind and operation name. A nil err still
// produces a classified error (useful for sentinel conditions with no
// underlying cause, e.g. a quantity check).
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// As extracts the engineerr.Error (and hence its Kind) from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ClassifyOf returns the Kind of err, defaulting to KindBrokerReject (the
// safest "drop and continue" policy) when err isn't a classified *Error.
func ClassifyOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindBrokerReject
}

// RetryPolicy describes how many attempts and what spacing a Kind gets.
type RetryPolicy struct {
	MaxAttempts int
	SpacingMS   int
	WidenOnce   bool // widen stop to minimum and retry once (invalid-stops on exits)
}

// Policy returns the fixed retry policy for a Kind, per spec.md §7's table.
func Policy(k Kind) RetryPolicy {
	switch k {
	case KindBrokerTransient:
		return RetryPolicy{MaxAttempts: 4, SpacingMS: 100}
	case KindBrokerInvalidStops:
		return RetryPolicy{MaxAttempts: 1, SpacingMS: 0, WidenOnce: true}
	default:
		return RetryPolicy{MaxAttempts: 1, SpacingMS: 0}
	}
}

// IsFatal reports whether the process should exit on this error.
func IsFatal(err error) bool {
	return ClassifyOf(err) == KindFatal
}

// Sentinel errors for conditions with no broker-supplied cause.
var (
	ErrCredentialMissing     = New(KindFatal, "startup", errors.New("exchange credential missing"))
	ErrSymbolInfoUnavailable = New(KindFatal, "startup", errors.New("symbol info unavailable"))
	ErrQuantityBelowMinimum  = New(KindIllegalQuantity, "sizeQuantity", errors.New("quantity below min_qty or min_notional"))
)
