// internal/game/manager.go
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arcana-memory/engine"
	"github.com/jason-s-yu/arcana-memory/internal/results"
	"github.com/jason-s-yu/arcana-memory/internal/session"
	"github.com/jason-s-yu/arcana-memory/protocol"
	"github.com/sirupsen/logrus"
)

// Publisher receives every event of every game, keyed by session.
type Publisher interface {
	Publish(sessionID uuid.UUID, ev GameEvent)
}

// Manager runs games on behalf of sessions. Each call loads the session's
// game from the store, applies one operation under a per-session lock and
// saves it back.
type Manager struct {
	store    session.Store
	recorder results.Recorder
	pub      Publisher
	rules    engine.HouseRules
	seed     func() uint64
	locks    keyedMutex
	log      logrus.FieldLogger
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithSeed sets the source of board seeds.
func WithSeed(seed func() uint64) ManagerOption {
	return func(m *Manager) { m.seed = seed }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a Manager. recorder and pub may be nil.
func NewManager(store session.Store, recorder results.Recorder, pub Publisher, rules engine.HouseRules, opts ...ManagerOption) *Manager {
	if recorder == nil {
		recorder = results.NopRecorder{}
	}
	m := &Manager{
		store:    store,
		recorder: recorder,
		pub:      pub,
		rules:    rules,
		seed:     rand.Uint64,
		log:      logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Rules returns the house rules used for new games.
func (m *Manager) Rules() engine.HouseRules { return m.rules }

// Flip plays a card for the session's player.
func (m *Manager) Flip(ctx context.Context, sessionID uuid.UUID, index int) (protocol.FlipResult, error) {
	var res protocol.FlipResult
	err := m.withGame(ctx, sessionID, func(g *MemoryGame) error {
		var err error
		res, err = g.Flip(index)
		return err
	})
	return res, err
}

// CPUTurn plays one CPU turn in the session's game.
func (m *Manager) CPUTurn(ctx context.Context, sessionID uuid.UUID) (protocol.CPUResult, error) {
	var res protocol.CPUResult
	err := m.withGame(ctx, sessionID, func(g *MemoryGame) error {
		var err error
		res, err = g.CPUTurn()
		return err
	})
	return res, err
}

// View returns the session's board, starting a game if there is none.
func (m *Manager) View(ctx context.Context, sessionID uuid.UUID) (protocol.BoardView, error) {
	var v protocol.BoardView
	err := m.withGame(ctx, sessionID, func(g *MemoryGame) error {
		v = g.View()
		return nil
	})
	return v, err
}

// NewGame replaces the session's game with a freshly dealt one.
func (m *Manager) NewGame(ctx context.Context, sessionID uuid.UUID) error {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	g := m.newGame(sessionID)
	m.attach(ctx, g)
	g.Mu.Lock()
	g.fireEvent(GameEvent{Type: EventGameNew, Message: MsgPickFirst})
	g.Mu.Unlock()
	return m.save(ctx, g)
}

// Recent lists recently finished games.
func (m *Manager) Recent(ctx context.Context, limit int) ([]results.Result, error) {
	return m.recorder.Recent(ctx, limit)
}

func (m *Manager) withGame(ctx context.Context, sessionID uuid.UUID, fn func(g *MemoryGame) error) error {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	g, err := m.load(ctx, sessionID)
	if err != nil {
		return err
	}
	m.attach(ctx, g)
	if err := fn(g); err != nil {
		return err
	}
	return m.save(ctx, g)
}

func (m *Manager) newGame(sessionID uuid.UUID) *MemoryGame {
	g := NewMemoryGame(sessionID, m.seed(), m.rules)
	m.log.WithFields(logrus.Fields{"game": g.ID, "session": sessionID, "cards": g.Board.Len(), "cpu": m.rules.CPUOpponent}).Info("New game dealt.")
	return g
}

func (m *Manager) load(ctx context.Context, sessionID uuid.UUID) (*MemoryGame, error) {
	data, err := m.store.Load(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return m.newGame(sessionID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}
	g, err := UnmarshalState(data)
	if err != nil {
		m.log.WithError(err).WithField("session", sessionID).Warn("Discarding unreadable game state.")
		return m.newGame(sessionID), nil
	}
	if g.SessionID != sessionID {
		m.log.WithFields(logrus.Fields{"session": sessionID, "stored_session": g.SessionID}).Warn("Stored game belongs to another session; starting over.")
		return m.newGame(sessionID), nil
	}
	return g, nil
}

func (m *Manager) save(ctx context.Context, g *MemoryGame) error {
	data, err := g.MarshalState()
	if err != nil {
		return fmt.Errorf("encode game: %w", err)
	}
	if err := m.store.Save(ctx, g.SessionID, data); err != nil {
		return fmt.Errorf("save game: %w", err)
	}
	return nil
}

// attach wires a loaded game to the manager's logger, publisher and recorder.
func (m *Manager) attach(ctx context.Context, g *MemoryGame) {
	g.SetLogger(m.log)
	if m.pub != nil {
		sid := g.SessionID
		g.BroadcastFn = func(ev GameEvent) { m.pub.Publish(sid, ev) }
	}
	g.OnGameEnd = func(g *MemoryGame) {
		player, cpu := g.Board.Scores()
		r := results.Result{
			GameID:      g.ID,
			SessionID:   g.SessionID,
			PlayerScore: player,
			CPUScore:    cpu,
			VsCPU:       g.Board.Rules.CPUOpponent,
			Flips:       int(g.Board.Flips),
			Duration:    g.Duration(),
			FinishedAt:  g.FinishedAt,
		}
		if err := m.recorder.Record(ctx, r); err != nil {
			m.log.WithError(err).WithField("game", g.ID).Error("Failed to record game result.")
		}
	}
}

// keyedMutex serializes work per session id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

// Lock locks id and returns the matching unlock function.
func (k *keyedMutex) Lock(id uuid.UUID) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[uuid.UUID]*refLock)
	}
	l, ok := k.locks[id]
	if !ok {
		l = &refLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
