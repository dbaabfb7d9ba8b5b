package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jason-s-yu/arcana-memory/protocol"
)

// fakeClock is a settable clock whose Sleep advances time instead of blocking.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type flipReply struct {
	res protocol.FlipResult
	err error
}

// scriptedFlipper answers flips from a queue.
type scriptedFlipper struct {
	mu       sync.Mutex
	replies  []flipReply
	calls    []int
	newGames int
	newErr   error
}

func (f *scriptedFlipper) push(res protocol.FlipResult) *scriptedFlipper {
	f.replies = append(f.replies, flipReply{res: res})
	return f
}

func (f *scriptedFlipper) pushErr(err error) *scriptedFlipper {
	f.replies = append(f.replies, flipReply{err: err})
	return f
}

func (f *scriptedFlipper) Flip(_ context.Context, index int) (protocol.FlipResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, index)
	if len(f.replies) == 0 {
		return protocol.FlipResult{}, fmt.Errorf("unexpected flip %d", index)
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.res, r.err
}

func (f *scriptedFlipper) NewGame(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newGames++
	return f.newErr
}

func (f *scriptedFlipper) Calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

// recordingPresenter logs every callback as a short line.
type recordingPresenter struct {
	mu    sync.Mutex
	lines []string
}

func (p *recordingPresenter) add(format string, args ...any) {
	p.mu.Lock()
	p.lines = append(p.lines, fmt.Sprintf(format, args...))
	p.mu.Unlock()
}

func (p *recordingPresenter) OnCardRevealed(i, v int) { p.add("revealed %d %d", i, v) }
func (p *recordingPresenter) OnCardHidden(i int)      { p.add("hidden %d", i) }
func (p *recordingPresenter) OnCardMatched(i int)     { p.add("matched %d", i) }
func (p *recordingPresenter) OnScoreChanged(s int)    { p.add("score %d", s) }
func (p *recordingPresenter) OnGameOver(msg string)   { p.add("game over: %s", msg) }
func (p *recordingPresenter) OnStatus(msg string, sev Severity) {
	p.add("%s: %s", sev, msg)
}

func (p *recordingPresenter) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

func (p *recordingPresenter) Reset() {
	p.mu.Lock()
	p.lines = nil
	p.mu.Unlock()
}
