// internal/game/sync_state.go
package game

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arcana-memory/engine"
	"github.com/jason-s-yu/arcana-memory/protocol"
)

// View returns the client-facing board. Face values of face-down cards are
// never included.
func (g *MemoryGame) View() protocol.BoardView {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.view()
}

// view assumes the game lock is HELD by the caller.
func (g *MemoryGame) view() protocol.BoardView {
	b := &g.Board
	player, cpu := b.Scores()
	v := protocol.BoardView{
		GameID:      g.ID.String(),
		Version:     fmt.Sprintf("%016x", b.PublicHash()),
		Cards:       make([]protocol.CardView, b.Len()),
		PlayerScore: player,
		CPUScore:    cpu,
		Flips:       int(b.Flips),
		GameOver:    b.IsTerminal(),
	}
	for i := 0; i < b.Len(); i++ {
		c := b.Cards[i]
		cv := protocol.CardView{Index: i, State: c.State.String()}
		if c.State != engine.FaceDown {
			cv.Value = int(c.Value)
		}
		v.Cards[i] = cv
	}
	if idx, ok := b.PendingCard(); ok {
		v.FirstCard = &idx
	}
	return v
}

// snapshot is the persisted form of a MemoryGame.
type snapshot struct {
	ID         uuid.UUID    `json:"id"`
	SessionID  uuid.UUID    `json:"session_id"`
	Board      engine.Board `json:"board"`
	CreatedAt  time.Time    `json:"created_at"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// MarshalState encodes the game for a session store.
func (g *MemoryGame) MarshalState() ([]byte, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return json.Marshal(snapshot{
		ID:         g.ID,
		SessionID:  g.SessionID,
		Board:      g.Board,
		CreatedAt:  g.CreatedAt,
		StartedAt:  g.StartedAt,
		FinishedAt: g.FinishedAt,
	})
}

// UnmarshalState decodes a game previously encoded with MarshalState.
func UnmarshalState(data []byte) (*MemoryGame, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode game state: %w", err)
	}
	if s.Board.Len() == 0 || s.Board.Len() > engine.MaxCards || s.Board.Len()%2 != 0 {
		return nil, fmt.Errorf("decode game state: bad board size %d", s.Board.Len())
	}
	g := &MemoryGame{
		ID:         s.ID,
		SessionID:  s.SessionID,
		Board:      s.Board,
		CreatedAt:  s.CreatedAt,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		now:        time.Now,
	}
	g.initLog()
	return g, nil
}
