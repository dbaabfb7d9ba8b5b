package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// limiterIdle is how long a session's limiter is kept after its last flip.
const limiterIdle = 10 * time.Minute

// flipLimiter allows one flip per interval per session.
type flipLimiter struct {
	mu        sync.Mutex
	every     time.Duration
	entries   map[uuid.UUID]*limiterEntry
	lastSweep time.Time
	now       func() time.Time
}

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

func newFlipLimiter(every time.Duration) *flipLimiter {
	return &flipLimiter{
		every:   every,
		entries: make(map[uuid.UUID]*limiterEntry),
		now:     time.Now,
	}
}

// reserve takes the session's token. When none is available it returns how
// long the caller should back off and takes nothing.
func (f *flipLimiter) reserve(id uuid.UUID) time.Duration {
	if f.every <= 0 {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	f.sweep(now)
	e, ok := f.entries[id]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(rate.Every(f.every), 1)}
		f.entries[id] = e
	}
	e.seen = now

	r := e.lim.ReserveN(now, 1)
	if !r.OK() {
		return f.every
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return d
	}
	return 0
}

// sweep assumes f.mu is held.
func (f *flipLimiter) sweep(now time.Time) {
	if now.Sub(f.lastSweep) < time.Minute {
		return
	}
	f.lastSweep = now
	for id, e := range f.entries {
		if now.Sub(e.seen) > limiterIdle {
			delete(f.entries, id)
		}
	}
}

func (f *flipLimiter) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}
