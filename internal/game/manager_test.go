// internal/game/manager_test.go
package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arcana-memory/engine"
	"github.com/jason-s-yu/arcana-memory/internal/results"
	"github.com/jason-s-yu/arcana-memory/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPublisher collects published events per session.
type recordingPublisher struct {
	mu     sync.Mutex
	events map[uuid.UUID][]GameEvent
}

func (p *recordingPublisher) Publish(sid uuid.UUID, ev GameEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = make(map[uuid.UUID][]GameEvent)
	}
	p.events[sid] = append(p.events[sid], ev)
}

func (p *recordingPublisher) count(sid uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events[sid])
}

func newTestManager(rules engine.HouseRules) (*Manager, *session.MemoryStore, *results.MemoryRecorder, *recordingPublisher) {
	store := session.NewMemoryStore(time.Hour)
	rec := results.NewMemoryRecorder(10)
	pub := &recordingPublisher{}
	m := NewManager(store, rec, pub, rules, WithSeed(func() uint64 { return 42 }))
	return m, store, rec, pub
}

// boardOf reads the stored board of a session.
func boardOf(t *testing.T, store *session.MemoryStore, sid uuid.UUID) engine.Board {
	t.Helper()
	data, err := store.Load(context.Background(), sid)
	require.NoError(t, err)
	g, err := UnmarshalState(data)
	require.NoError(t, err)
	return g.Board
}

func TestManagerCreatesGameOnFirstUse(t *testing.T) {
	ctx := context.Background()
	m, store, _, _ := newTestManager(engine.DefaultHouseRules())
	sid := uuid.New()

	res, err := m.Flip(ctx, sid, 0)
	require.NoError(t, err)
	assert.True(t, res.Valid)

	b := boardOf(t, store, sid)
	assert.Equal(t, engine.FaceUp, b.Cards[0].State)
	idx, ok := b.PendingCard()
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestManagerPersistsBetweenCalls(t *testing.T) {
	ctx := context.Background()
	m, store, _, pub := newTestManager(engine.DefaultHouseRules())
	sid := uuid.New()
	require.NoError(t, m.NewGame(ctx, sid))

	b := boardOf(t, store, sid)
	for i := 0; i < b.Len(); i++ {
		if b.Cards[i].State == engine.Matched {
			continue
		}
		p := -1
		for j := i + 1; j < b.Len(); j++ {
			if b.Cards[j].Value == b.Cards[i].Value {
				p = j
				break
			}
		}
		require.NotEqual(t, -1, p)
		_, err := m.Flip(ctx, sid, i)
		require.NoError(t, err)
		res, err := m.Flip(ctx, sid, p)
		require.NoError(t, err)
		require.True(t, res.IsMatch)
		b.Cards[i].State = engine.Matched
		b.Cards[p].State = engine.Matched
	}

	v, err := m.View(ctx, sid)
	require.NoError(t, err)
	assert.True(t, v.GameOver)
	assert.Equal(t, 22, v.PlayerScore)

	recent, err := m.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1, "finished game is recorded once")
	assert.Equal(t, sid, recent[0].SessionID)
	assert.Equal(t, 22, recent[0].PlayerScore)
	assert.Equal(t, 44, recent[0].Flips)

	assert.Positive(t, pub.count(sid))
}

func TestManagerNewGameResets(t *testing.T) {
	ctx := context.Background()
	m, store, _, pub := newTestManager(engine.DefaultHouseRules())
	sid := uuid.New()

	_, err := m.Flip(ctx, sid, 0)
	require.NoError(t, err)
	before := boardOf(t, store, sid)

	require.NoError(t, m.NewGame(ctx, sid))
	after := boardOf(t, store, sid)
	_, up, _ := after.Counts()
	assert.Zero(t, up)
	assert.Zero(t, after.Flips)
	assert.NotEqual(t, before.Flips, after.Flips)

	pub.mu.Lock()
	last := pub.events[sid][len(pub.events[sid])-1]
	pub.mu.Unlock()
	assert.Equal(t, EventGameNew, last.Type)
}

func TestManagerOutOfRangeNotSaved(t *testing.T) {
	ctx := context.Background()
	m, store, _, _ := newTestManager(engine.DefaultHouseRules())
	sid := uuid.New()

	_, err := m.Flip(ctx, sid, 99)
	assert.ErrorIs(t, err, engine.ErrIndexOutOfRange)
	_, err = store.Load(ctx, sid)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestManagerReplacesCorruptState(t *testing.T) {
	ctx := context.Background()
	m, store, _, _ := newTestManager(engine.DefaultHouseRules())
	sid := uuid.New()
	require.NoError(t, store.Save(ctx, sid, []byte("not json")))

	res, err := m.Flip(ctx, sid, 1)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestManagerSerializesSession(t *testing.T) {
	ctx := context.Background()
	m, store, _, _ := newTestManager(engine.DefaultHouseRules())
	sid := uuid.New()
	require.NoError(t, m.NewGame(ctx, sid))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = m.Flip(ctx, sid, i)
		}(i)
	}
	wg.Wait()

	b := boardOf(t, store, sid)
	assert.Equal(t, uint16(20), b.Flips, "no flip was lost to a concurrent save")
	_, up, matched := b.Counts()
	assert.LessOrEqual(t, up, 1)
	assert.Zero(t, matched%2)
}

func TestManagerCPUTurn(t *testing.T) {
	ctx := context.Background()
	rules := engine.DefaultHouseRules()
	rules.CPUOpponent = true
	m, _, _, _ := newTestManager(rules)
	sid := uuid.New()

	res, err := m.CPUTurn(ctx, sid)
	require.NoError(t, err)
	assert.Len(t, res.CPUMoves, 2)

	solo, _, _, _ := newTestManager(engine.DefaultHouseRules())
	_, err = solo.CPUTurn(ctx, sid)
	assert.ErrorIs(t, err, engine.ErrCPUDisabled)
}

func TestKeyedMutexCleansUp(t *testing.T) {
	var k keyedMutex
	id := uuid.New()
	unlock := k.Lock(id)
	assert.Len(t, k.locks, 1)
	unlock()
	assert.Empty(t, k.locks)
}
