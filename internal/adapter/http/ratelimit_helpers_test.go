package http

import (
	"testing"
	"time"

	"github.com/bnema/scenefetch/internal/adapter/http/ratelimit"
)

func ratelimitFixture(t *testing.T) *ratelimit.LoginRateLimiter {
	t.Helper()
	limiter := ratelimit.NewLoginRateLimiter(2, time.Minute, time.Minute)
	t.Cleanup(limiter.Close)
	return limiter
}

func newTracker() *ratelimit.LoginAttemptTracker {
	return ratelimit.NewLoginAttemptTracker()
}
