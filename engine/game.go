// Package engine implements the rules of the Arcana memory game.
//
// A Board is a flat value type (fixed arrays, no pointers) so a whole game can
// be copied for undo, JSON-encoded into a session store, and restored without
// any fix-ups. All randomness comes from the board's own seeded RNG, which
// makes every game reproducible from its seed.
package engine

import "errors"

const (
	MaxCards = NumArcana * 2
)

// Errors returned by board operations.
var (
	ErrIndexOutOfRange = errors.New("engine: card index out of range")
	ErrCardMatched     = errors.New("engine: card already matched")
	ErrCardFaceUp      = errors.New("engine: card already face up")
	ErrGameOver        = errors.New("engine: game is over")
	ErrNotDealt        = errors.New("engine: board not dealt")
	ErrTurnPending     = errors.New("engine: player turn in progress")
	ErrCPUDisabled     = errors.New("engine: cpu opponent disabled")
)

// Board holds the complete, self-contained state of one memory game.
type Board struct {
	Cards       [MaxCards]Card `json:"cards"`
	NumCards    uint8          `json:"num_cards"`
	FirstCard   int8           `json:"first_card"` // pending first card of the turn, NoCard if none
	PlayerScore uint16         `json:"player_score"`
	CPUScore    uint16         `json:"cpu_score"`
	Flips       uint16         `json:"flips"`
	Seen        [MaxCards]bool `json:"seen"` // cards the CPU has observed
	Flags       uint16         `json:"flags"`
	RNG         uint64         `json:"rng"`
	Rules       HouseRules     `json:"rules"`
}

// ---------------------------------------------------------------------------
// Flags bitfield
// ---------------------------------------------------------------------------

const (
	FlagDealt    uint16 = 1 << 0
	FlagGameOver uint16 = 1 << 1
)

// IsDealt reports whether Deal has run.
func (b *Board) IsDealt() bool { return b.Flags&FlagDealt != 0 }

// IsTerminal returns true when every pair has been matched.
func (b *Board) IsTerminal() bool { return b.Flags&FlagGameOver != 0 }

// ---------------------------------------------------------------------------
// xorshift64 RNG
// ---------------------------------------------------------------------------

func (b *Board) nextRand() uint64 {
	x := b.RNG
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	b.RNG = x
	return x
}

// randN returns a random number in [0, n).
func (b *Board) randN(n uint64) uint64 {
	return b.nextRand() % n
}

// ---------------------------------------------------------------------------
// NewGame and Deal
// ---------------------------------------------------------------------------

// NewGame initializes a Board with the given seed and rules.
// The cards are laid out in pairs but not yet shuffled.
func NewGame(seed uint64, rules HouseRules) Board {
	var b Board
	b.RNG = seed
	if b.RNG == 0 {
		b.RNG = 1 // xorshift can't start at 0
	}
	b.Rules = rules
	b.FirstCard = NoCard

	pairs := rules.numPairs()
	for v := uint8(1); v <= pairs; v++ {
		b.Cards[2*(v-1)] = Card{Value: v}
		b.Cards[2*(v-1)+1] = Card{Value: v}
	}
	b.NumCards = pairs * 2
	return b
}

// Deal shuffles the cards face down.
func (b *Board) Deal() {
	// Fisher-Yates shuffle.
	for i := int(b.NumCards) - 1; i > 0; i-- {
		j := int(b.randN(uint64(i + 1)))
		b.Cards[i], b.Cards[j] = b.Cards[j], b.Cards[i]
	}
	b.Flags |= FlagDealt
}

// ---------------------------------------------------------------------------
// Query methods
// ---------------------------------------------------------------------------

// Len returns the number of cards in play.
func (b *Board) Len() int { return int(b.NumCards) }

// Card returns the card at index.
func (b *Board) Card(index int) (Card, error) {
	if index < 0 || index >= int(b.NumCards) {
		return Card{}, ErrIndexOutOfRange
	}
	return b.Cards[index], nil
}

// PendingCard returns the face-up first card of the current turn.
func (b *Board) PendingCard() (int, bool) {
	if b.FirstCard == NoCard {
		return NoCard, false
	}
	return int(b.FirstCard), true
}

// Counts returns how many cards are in each state.
func (b *Board) Counts() (faceDown, faceUp, matched int) {
	for i := 0; i < int(b.NumCards); i++ {
		switch b.Cards[i].State {
		case FaceDown:
			faceDown++
		case FaceUp:
			faceUp++
		case Matched:
			matched++
		}
	}
	return faceDown, faceUp, matched
}
