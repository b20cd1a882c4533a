package infra

import (
	"math"
	"time"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 60 * time.Second
)

// Backoff is an exponential delay schedule capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before retry number retryCount (0-based).
func (b Backoff) Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	// Cap retry count to prevent overflow
	if retryCount > 30 {
		return b.Max
	}
	delay := b.Base * time.Duration(math.Pow(2, float64(retryCount)))
	if delay > b.Max || delay <= 0 {
		delay = b.Max
	}
	return delay
}

// CalculateBackoff returns the reconnect delay used by websocket workers.
func CalculateBackoff(retryCount int) time.Duration {
	// 2^6 = 64 seconds > max 60s
	if retryCount > 6 {
		return reconnectMaxDelay
	}
	return Backoff{Base: reconnectBaseDelay, Max: reconnectMaxDelay}.Delay(retryCount)
}
