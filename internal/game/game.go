// internal/game/game.go
package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arcana-memory/engine"
	"github.com/jason-s-yu/arcana-memory/protocol"
	"github.com/sirupsen/logrus"
)

// OnGameEndFunc defines the signature for a callback function executed when a game ends.
type OnGameEndFunc func(g *MemoryGame)

// GameEventType represents the type of a game-related event broadcast to listeners.
type GameEventType string

// Constants defining the various GameEvent types.
const (
	EventGameNew      GameEventType = "game_new"
	EventCardRevealed GameEventType = "card_revealed"
	EventCardHidden   GameEventType = "card_hidden"
	EventCardMatched  GameEventType = "card_matched"
	EventScoreChanged GameEventType = "score_changed"
	EventCPUMove      GameEventType = "cpu_move"
	EventGameOver     GameEventType = "game_over"
	EventSyncState    GameEventType = "sync_state" // Full board view, sent when a listener attaches.
)

// EventCard identifies a card within a GameEvent payload.
type EventCard struct {
	Index int    `json:"index"`
	Value int    `json:"value,omitempty"`
	Name  string `json:"name,omitempty"`
}

// GameEvent is the standard structure for broadcasting game state changes.
type GameEvent struct {
	Type      GameEventType       `json:"type"`
	GameID    uuid.UUID           `json:"game_id"`
	Card      *EventCard          `json:"card,omitempty"`
	By        string              `json:"by,omitempty"` // "player" or "cpu"
	Score     *int                `json:"score,omitempty"`
	CPUScore  *int                `json:"cpu_score,omitempty"`
	Message   string              `json:"message,omitempty"`
	State     *protocol.BoardView `json:"state,omitempty"`
	Timestamp time.Time           `json:"ts"`
}

// Status messages shown to the player.
const (
	MsgPickFirst   = "Pick two cards"
	MsgPickSecond  = "Pick one more card"
	MsgMatch       = "Match!"
	MsgNoMatch     = "No match, try again"
	MsgCardMatched = "That card is already matched"
	MsgCardFaceUp  = "That card is already face up"
	MsgGameOver    = "The game is over, start a new one"
)

// MemoryGame is one session's game: the engine board plus bookkeeping and
// event callbacks.
type MemoryGame struct {
	ID        uuid.UUID // Unique identifier for this game instance.
	SessionID uuid.UUID // Session that owns the game.

	Board engine.Board // The authoritative board.

	CreatedAt  time.Time
	StartedAt  time.Time // First flip; zero until then.
	FinishedAt time.Time // Last pair claimed; zero until then.

	Mu sync.Mutex // Mutex protecting concurrent access to game state.

	BroadcastFn func(ev GameEvent) // Sends an event to listeners of the session.
	OnGameEnd   OnGameEndFunc      // Callback executed when the game finishes.

	log *logrus.Entry
	now func() time.Time
}

// NewMemoryGame creates a dealt game for a session.
func NewMemoryGame(sessionID uuid.UUID, seed uint64, rules engine.HouseRules) *MemoryGame {
	id, _ := uuid.NewRandom()
	g := &MemoryGame{
		ID:        id,
		SessionID: sessionID,
		Board:     engine.NewGame(seed, rules),
		now:       time.Now,
	}
	g.Board.Deal()
	g.CreatedAt = g.now()
	g.initLog()
	return g
}

func (g *MemoryGame) initLog() {
	g.log = logrus.WithFields(logrus.Fields{"game": g.ID, "session": g.SessionID})
}

// SetLogger replaces the logger used for this game's entries.
func (g *MemoryGame) SetLogger(l logrus.FieldLogger) {
	g.log = l.WithFields(logrus.Fields{"game": g.ID, "session": g.SessionID})
}

// Flip plays the card at index for the player.
//
// Moves the rules forbid (matched card, face-up card, finished game) are
// reported as a FlipResult with Valid=false. Only an index outside the board
// is returned as an error.
func (g *MemoryGame) Flip(index int) (protocol.FlipResult, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	out, err := g.Board.Flip(index)
	switch err {
	case nil:
	case engine.ErrCardMatched:
		return g.rejected(index, MsgCardMatched), nil
	case engine.ErrCardFaceUp:
		return g.rejected(index, MsgCardFaceUp), nil
	case engine.ErrGameOver:
		return g.rejected(index, MsgGameOver), nil
	default:
		return protocol.FlipResult{}, fmt.Errorf("flip %d: %w", index, err)
	}

	if g.StartedAt.IsZero() {
		g.StartedAt = g.now()
	}

	res := protocol.FlipResult{
		Valid:        true,
		CardIndex:    out.Index,
		CardValue:    int(out.Value),
		CardName:     engine.ArcanaName(out.Value),
		TurnComplete: out.TurnComplete,
		IsMatch:      out.IsMatch,
		FirstCard:    out.FirstCard,
		PlayerScore:  out.PlayerScore,
		CPUScore:     out.CPUScore,
		GameOver:     out.GameOver,
	}
	g.fireEvent(GameEvent{Type: EventCardRevealed, By: "player", Card: eventCard(out.Index, out.Value)})

	switch {
	case !out.TurnComplete:
		res.Message = MsgPickSecond
	case out.IsMatch:
		res.Message = MsgMatch
		firstValue := g.Board.Cards[out.FirstCard].Value
		g.fireEvent(GameEvent{Type: EventCardMatched, By: "player", Card: eventCard(out.FirstCard, firstValue)})
		g.fireEvent(GameEvent{Type: EventCardMatched, By: "player", Card: eventCard(out.Index, out.Value)})
		g.fireEvent(GameEvent{Type: EventScoreChanged, By: "player", Score: intPtr(out.PlayerScore), CPUScore: intPtr(out.CPUScore)})
	default:
		res.Message = MsgNoMatch
		g.fireEvent(GameEvent{Type: EventCardHidden, Card: &EventCard{Index: out.FirstCard}})
		g.fireEvent(GameEvent{Type: EventCardHidden, Card: &EventCard{Index: out.Index}})
	}
	g.log.WithFields(logrus.Fields{"index": index, "value": out.Value, "turn_complete": out.TurnComplete, "match": out.IsMatch}).Debug("Card flipped.")

	if out.GameOver {
		res.Message = g.finish()
	}
	return res, nil
}

// CPUTurn plays one CPU turn.
func (g *MemoryGame) CPUTurn() (protocol.CPUResult, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	out, err := g.Board.CPUTurn()
	if err != nil {
		return protocol.CPUResult{}, fmt.Errorf("cpu turn: %w", err)
	}

	res := protocol.CPUResult{
		CPUMatch: out.IsMatch,
		CPUScore: out.CPUScore,
		GameOver: out.GameOver,
	}
	for _, m := range out.Moves {
		res.CPUMoves = append(res.CPUMoves, protocol.CPUMove{Index: m.Index, Value: int(m.Value), Name: engine.ArcanaName(m.Value)})
		g.fireEvent(GameEvent{Type: EventCPUMove, By: "cpu", Card: eventCard(m.Index, m.Value)})
	}
	if out.IsMatch {
		for _, m := range out.Moves {
			g.fireEvent(GameEvent{Type: EventCardMatched, By: "cpu", Card: eventCard(m.Index, m.Value)})
		}
		player, cpu := g.Board.Scores()
		g.fireEvent(GameEvent{Type: EventScoreChanged, By: "cpu", Score: intPtr(player), CPUScore: intPtr(cpu)})
	}
	g.log.WithFields(logrus.Fields{"moves": res.CPUMoves, "match": out.IsMatch}).Debug("CPU played.")

	if out.GameOver {
		res.Message = g.finish()
	}
	return res, nil
}

// finish records the end of the game and notifies listeners.
// Assumes lock is held by caller.
func (g *MemoryGame) finish() string {
	g.FinishedAt = g.now()
	player, cpu := g.Board.Scores()
	msg := gameOverMessage(g.Board.Outcome(), player, cpu, g.Board.Rules.CPUOpponent)
	g.fireEvent(GameEvent{Type: EventGameOver, Message: msg, Score: intPtr(player), CPUScore: intPtr(cpu)})
	g.log.WithFields(logrus.Fields{"player_score": player, "cpu_score": cpu, "flips": g.Board.Flips}).Info("Game over.")
	if g.OnGameEnd != nil {
		g.OnGameEnd(g)
	}
	return msg
}

func gameOverMessage(o engine.Outcome, player, cpu int, vsCPU bool) string {
	if !vsCPU {
		return fmt.Sprintf("All pairs found! Final score: %d", player)
	}
	switch o {
	case engine.OutcomePlayerWins:
		return fmt.Sprintf("You win %d to %d!", player, cpu)
	case engine.OutcomeCPUWins:
		return fmt.Sprintf("The CPU wins %d to %d.", cpu, player)
	default:
		return fmt.Sprintf("It's a tie, %d all.", player)
	}
}

// rejected builds the response for a move the rules forbid.
func (g *MemoryGame) rejected(index int, msg string) protocol.FlipResult {
	player, cpu := g.Board.Scores()
	first := engine.NoCard
	if idx, ok := g.Board.PendingCard(); ok {
		first = idx
	}
	return protocol.FlipResult{
		Valid:       false,
		CardIndex:   index,
		Message:     msg,
		FirstCard:   first,
		PlayerScore: player,
		CPUScore:    cpu,
		GameOver:    g.Board.IsTerminal(),
	}
}

// Duration returns how long the game has been played.
func (g *MemoryGame) Duration() time.Duration {
	if g.StartedAt.IsZero() {
		return 0
	}
	if g.FinishedAt.IsZero() {
		return g.now().Sub(g.StartedAt)
	}
	return g.FinishedAt.Sub(g.StartedAt)
}

// fireEvent broadcasts an event via the BroadcastFn callback.
// Assumes lock is held by caller.
func (g *MemoryGame) fireEvent(ev GameEvent) {
	if g.BroadcastFn == nil {
		return
	}
	ev.GameID = g.ID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = g.now()
	}
	g.BroadcastFn(ev)
}

func eventCard(index int, value uint8) *EventCard {
	return &EventCard{Index: index, Value: int(value), Name: engine.ArcanaName(value)}
}

func intPtr(v int) *int { return &v }
