package harvest

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// retryableStatuses are the HTTP statuses worth another attempt. 403 is
// included because many publishers use it for transient bot screens.
var retryableStatuses = map[int]bool{
	403: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
	520: true,
}

// RetryableStatus reports whether a status code warrants another attempt.
func RetryableStatus(status int) bool {
	return retryableStatuses[status]
}

// RetryPolicy controls attempt count and jittered exponential backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns the policy used by the service in production.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// Backoff returns the wait before the given zero-based retry attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
