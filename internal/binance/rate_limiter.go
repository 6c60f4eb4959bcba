package binance

import (
	"log"
	"strconv"
	"strings"
	"sync"
	"time"
)

// normalPriorityThreshold is the fraction of the per-minute weight/request
// budget the futures REST client is allowed to consume before WaitForSlot
// starts blocking. The teacher's rate limiter graded this per request
// priority (critical/high/normal/low); the trading engine only ever issues
// normal-priority account, order, and market-data calls, so the trimmed
// limiter keeps a single threshold rather than carrying priority tiers
// nothing calls.
const normalPriorityThreshold = 0.60

// RateLimiter implements proactive rate limiting with circuit breaker
type RateLimiter struct {
	mu sync.RWMutex

	// Circuit breaker state
	circuitOpen   bool
	circuitOpenAt time.Time
	banUntil      time.Time

	// Weight tracking (Binance uses weight-based limits)
	currentWeight int
	weightResetAt time.Time
	maxWeight     int // 2400 per minute for futures

	// Request tracking
	requestCount   int
	requestResetAt time.Time
	maxRequests    int // 1200 per minute

	// Backoff state
	consecutiveErrors int
	lastErrorAt       time.Time
}

// Endpoint weights for Binance Futures API
var endpointWeights = map[string]int{
	"/fapi/v2/account": 5,

	"/fapi/v1/order": 1,

	"/fapi/v1/klines":       5,
	"/fapi/v1/depth":        5, // depends on limit
	"/fapi/v1/exchangeInfo": 1,
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		maxWeight:      2400, // Binance Futures limit
		maxRequests:    1200, // Conservative limit
		weightResetAt:  time.Now().Add(time.Minute),
		requestResetAt: time.Now().Add(time.Minute),
	}
}

// Global rate limiter instance
var globalRateLimiter = NewRateLimiter()

// GetRateLimiter returns the global rate limiter
func GetRateLimiter() *RateLimiter {
	return globalRateLimiter
}

// canMakeRequest checks if a request can be made (proactive check)
// This is a READ-ONLY check - does NOT record weight. Use with RecordRequest after.
func (r *RateLimiter) canMakeRequest(endpoint string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Check circuit breaker first
	if r.circuitOpen {
		if time.Now().Before(r.banUntil) {
			return false
		}
		// Circuit can be closed, but need write lock
	}

	// Check if we need to reset counters
	now := time.Now()
	if now.After(r.weightResetAt) || now.After(r.requestResetAt) {
		return true // Will reset on actual request
	}

	threshold := int(float64(r.maxWeight) * normalPriorityThreshold)

	// Check weight limit against threshold
	weight := getEndpointWeight(endpoint)
	if r.currentWeight+weight > threshold {
		return false
	}

	// Check request count limit
	requestThreshold := int(float64(r.maxRequests) * normalPriorityThreshold)
	if r.requestCount >= requestThreshold {
		return false
	}

	return true
}

// WaitForSlot blocks until a request can be made (with timeout)
func (r *RateLimiter) WaitForSlot(endpoint string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if r.canMakeRequest(endpoint) {
			return true
		}

		// Check how long to wait
		r.mu.RLock()
		var waitTime time.Duration
		if r.circuitOpen && time.Now().Before(r.banUntil) {
			waitTime = time.Until(r.banUntil)
			log.Printf("[RATE-LIMITER] Circuit open, waiting %v for ban to expire", waitTime)
		} else {
			// Wait until next reset
			waitTime = time.Until(r.weightResetAt)
			if waitTime < 0 {
				waitTime = 100 * time.Millisecond
			}
		}
		r.mu.RUnlock()

		// Cap wait time
		if waitTime > 5*time.Second {
			waitTime = 5 * time.Second
		}

		time.Sleep(waitTime)
	}

	return false
}

// RecordRequest records a successful request
func (r *RateLimiter) RecordRequest(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	// Reset counters if window expired
	if now.After(r.weightResetAt) {
		r.currentWeight = 0
		r.weightResetAt = now.Add(time.Minute)
	}
	if now.After(r.requestResetAt) {
		r.requestCount = 0
		r.requestResetAt = now.Add(time.Minute)
	}

	// Record this request
	weight := getEndpointWeight(endpoint)
	r.currentWeight += weight
	r.requestCount++

	// Reset consecutive errors on success
	r.consecutiveErrors = 0

	// Close circuit if it was open and ban expired
	if r.circuitOpen && now.After(r.banUntil) {
		log.Printf("[RATE-LIMITER] Circuit breaker closed after successful request")
		r.circuitOpen = false
	}
}

// RecordRateLimitError records a rate limit error and triggers circuit breaker
func (r *RateLimiter) RecordRateLimitError(banUntilMs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.consecutiveErrors++
	r.lastErrorAt = time.Now()

	// Calculate ban duration
	var banUntil time.Time
	if banUntilMs > 0 {
		banUntil = time.UnixMilli(banUntilMs)
	} else {
		// Default: exponential backoff based on consecutive errors
		backoff := time.Duration(1<<uint(r.consecutiveErrors)) * time.Minute
		if backoff > 30*time.Minute {
			backoff = 30 * time.Minute
		}
		banUntil = time.Now().Add(backoff)
	}

	// Open circuit breaker
	r.circuitOpen = true
	r.circuitOpenAt = time.Now()
	r.banUntil = banUntil

	log.Printf("[RATE-LIMITER] circuit breaker open - IP banned until %v (consecutive errors: %d)",
		banUntil.Format("15:04:05"), r.consecutiveErrors)
}

// UpdateFromHeaders updates weight from Binance response headers
func (r *RateLimiter) UpdateFromHeaders(usedWeight int, usedWeight1m int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Use the higher of our tracked weight or reported weight
	if usedWeight1m > r.currentWeight {
		r.currentWeight = usedWeight1m
	}

	// Log if approaching limit
	usagePct := float64(r.currentWeight) / float64(r.maxWeight) * 100
	if usagePct > 60 {
		log.Printf("[RATE-LIMITER] Weight usage: %d/%d (%.1f%%)",
			r.currentWeight, r.maxWeight, usagePct)
	}
}

// getEndpointWeight returns the weight for an endpoint
func getEndpointWeight(endpoint string) int {
	if weight, ok := endpointWeights[endpoint]; ok {
		return weight
	}
	return 1 // Default weight
}

// ParseBanUntilFromError extracts ban timestamp from Binance error message
func ParseBanUntilFromError(errMsg string) int64 {
	// Error format: "banned until 1766824120342"
	const marker = "banned until "
	i := strings.Index(errMsg, marker)
	if i < 0 {
		return 0
	}
	digits := errMsg[i+len(marker):]
	end := 0
	for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
		end++
	}
	banUntil, err := strconv.ParseInt(digits[:end], 10, 64)
	if err != nil {
		return 0
	}

	// Sanity check - should be a millisecond timestamp in the future
	if banUntil > time.Now().UnixMilli() && banUntil < time.Now().Add(24*time.Hour).UnixMilli() {
		return banUntil
	}
	return 0
}
