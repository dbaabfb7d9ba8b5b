package client

import (
	"fmt"

	"github.com/jason-s-yu/arcana-memory/engine"
)

// GridCard is the client's view of one card.
type GridCard struct {
	Index   int
	Value   int // 0 while face down
	State   engine.CardState
	Loading bool // a flip request for this card is in flight
}

// Grid is the client-side board. It is not safe for concurrent use; the
// TurnController is its only writer.
type Grid struct {
	cards []GridCard
}

// NewGrid returns n face-down cards.
func NewGrid(n int) *Grid {
	g := &Grid{}
	g.Reset(n)
	return g
}

// Reset turns the grid into n face-down cards.
func (g *Grid) Reset(n int) {
	g.cards = make([]GridCard, n)
	for i := range g.cards {
		g.cards[i] = GridCard{Index: i, State: engine.FaceDown}
	}
}

func (g *Grid) Len() int { return len(g.cards) }

func (g *Grid) valid(i int) bool { return i >= 0 && i < len(g.cards) }

// Card returns the card at i.
func (g *Grid) Card(i int) (GridCard, bool) {
	if !g.valid(i) {
		return GridCard{}, false
	}
	return g.cards[i], true
}

// CanFlip returns nil if the card at i may be flipped, or an error wrapping
// ErrInvalidMove.
func (g *Grid) CanFlip(i int) error {
	if !g.valid(i) {
		return fmt.Errorf("%w: card %d is not on the board", ErrInvalidMove, i)
	}
	switch c := g.cards[i]; {
	case c.Loading:
		return fmt.Errorf("%w: card %d is already being flipped", ErrInvalidMove, i)
	case c.State == engine.Matched:
		return fmt.Errorf("%w: card %d is already matched", ErrInvalidMove, i)
	case c.State == engine.FaceUp:
		return fmt.Errorf("%w: card %d is already face up", ErrInvalidMove, i)
	}
	return nil
}

func (g *Grid) SetLoading(i int, loading bool) {
	if g.valid(i) {
		g.cards[i].Loading = loading
	}
}

// Reveal turns the card face up with the value the server sent.
func (g *Grid) Reveal(i, value int) {
	if g.valid(i) {
		g.cards[i] = GridCard{Index: i, Value: value, State: engine.FaceUp}
	}
}

// Hide turns the card face down again.
func (g *Grid) Hide(i int) {
	if g.valid(i) && g.cards[i].State != engine.Matched {
		g.cards[i] = GridCard{Index: i, State: engine.FaceDown}
	}
}

// Match marks the card as claimed. The value is kept.
func (g *Grid) Match(i int) {
	if g.valid(i) {
		g.cards[i].State = engine.Matched
		g.cards[i].Loading = false
	}
}

// FaceUpUnmatched lists the cards that are face up but not matched.
func (g *Grid) FaceUpUnmatched() []int {
	var out []int
	for _, c := range g.cards {
		if c.State == engine.FaceUp {
			out = append(out, c.Index)
		}
	}
	return out
}

func (g *Grid) MatchedCount() int {
	n := 0
	for _, c := range g.cards {
		if c.State == engine.Matched {
			n++
		}
	}
	return n
}

// Cards returns a copy of every card.
func (g *Grid) Cards() []GridCard {
	out := make([]GridCard, len(g.cards))
	copy(out, g.cards)
	return out
}
