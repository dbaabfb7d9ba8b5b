// Package results archives finished games.
package results

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Result is one finished game.
type Result struct {
	GameID      uuid.UUID     `json:"game_id"`
	SessionID   uuid.UUID     `json:"-"`
	PlayerScore int           `json:"player_score"`
	CPUScore    int           `json:"cpu_score"`
	VsCPU       bool          `json:"vs_cpu"`
	Flips       int           `json:"flips"`
	Duration    time.Duration `json:"duration_ns"`
	FinishedAt  time.Time     `json:"finished_at"`
}

// Recorder stores finished games and lists the most recent ones.
type Recorder interface {
	Record(ctx context.Context, r Result) error
	// Recent returns up to limit results, newest first.
	Recent(ctx context.Context, limit int) ([]Result, error)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Result) error          { return nil }
func (NopRecorder) Recent(context.Context, int) ([]Result, error) { return nil, nil }

// MemoryRecorder keeps the last N results in process.
type MemoryRecorder struct {
	mu   sync.Mutex
	ring []Result
	next int
	full bool
}

// NewMemoryRecorder creates a MemoryRecorder holding at most size results.
func NewMemoryRecorder(size int) *MemoryRecorder {
	if size <= 0 {
		size = 100
	}
	return &MemoryRecorder{ring: make([]Result, size)}
}

func (m *MemoryRecorder) Record(_ context.Context, r Result) error {
	m.mu.Lock()
	m.ring[m.next] = r
	m.next = (m.next + 1) % len(m.ring)
	if m.next == 0 {
		m.full = true
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryRecorder) Recent(_ context.Context, limit int) ([]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.next
	if m.full {
		n = len(m.ring)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Result, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.ring)) % len(m.ring)
		out = append(out, m.ring[idx])
	}
	return out, nil
}
