package client

import (
	"time"

	"golang.org/x/time/rate"
)

// ClickLimiter rejects clicks that arrive within a minimum interval of the
// previous accepted click.
type ClickLimiter struct {
	interval time.Duration
	lim      *rate.Limiter
}

// NewClickLimiter returns a limiter accepting one click per interval.
// A zero interval accepts every click.
func NewClickLimiter(interval time.Duration) *ClickLimiter {
	l := &ClickLimiter{interval: interval}
	l.Reset()
	return l
}

// Allow reports whether a click at now is accepted, and records it if so.
func (l *ClickLimiter) Allow(now time.Time) bool {
	return l.lim.AllowN(now, 1)
}

// Reset forgets the previous click.
func (l *ClickLimiter) Reset() {
	limit := rate.Inf
	if l.interval > 0 {
		limit = rate.Every(l.interval)
	}
	l.lim = rate.NewLimiter(limit, 1)
}
