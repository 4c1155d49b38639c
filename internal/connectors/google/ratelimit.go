package google

import (
	"golang.org/x/time/rate"
)

// Conservative defaults, well below Google's 10 requests/sec/user limit
// for the Calendar API.
const (
	requestsPerSecond = 5.0
	burstSize         = 10
)

// newLimiter creates the shared token bucket for Calendar API calls.
func newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burstSize)
}
