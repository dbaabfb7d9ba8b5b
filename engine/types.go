package engine

// Arcana constants. Card values are 1..NumArcana; value v shows Major Arcana v-1.
const (
	NumArcana = 22
	NoCard    = -1
)

var arcanaNames = [NumArcana]string{
	"The Fool",
	"The Magician",
	"The High Priestess",
	"The Empress",
	"The Emperor",
	"The Hierophant",
	"The Lovers",
	"The Chariot",
	"Strength",
	"The Hermit",
	"Wheel of Fortune",
	"Justice",
	"The Hanged Man",
	"Death",
	"Temperance",
	"The Devil",
	"The Tower",
	"The Star",
	"The Moon",
	"The Sun",
	"Judgement",
	"The World",
}

// ArcanaName returns the Major Arcana shown on a card of the given value,
// or "" when the value is out of range.
func ArcanaName(value uint8) string {
	if value == 0 || value > NumArcana {
		return ""
	}
	return arcanaNames[value-1]
}

// CardState is the visibility of a single card on the board.
type CardState uint8

const (
	FaceDown CardState = iota // 0
	FaceUp                    // 1
	Matched                   // 2
)

// String returns the lower-case name used on the wire and in logs.
func (s CardState) String() string {
	switch s {
	case FaceDown:
		return "face_down"
	case FaceUp:
		return "face_up"
	case Matched:
		return "matched"
	default:
		return "unknown"
	}
}

// Card is one position on the board. Its identity is its index in Board.Cards.
type Card struct {
	Value uint8     `json:"value"`
	State CardState `json:"state"`
}

// Name returns the Major Arcana name of the card's face.
func (c Card) Name() string { return ArcanaName(c.Value) }

// FlipOutcome describes the result of an accepted flip.
type FlipOutcome struct {
	Index        int
	Value        uint8
	TurnComplete bool
	IsMatch      bool
	FirstCard    int // pending first card of the turn; equals Index on a first flip
	PlayerScore  int
	CPUScore     int
	GameOver     bool
}

// CPUMove is one card revealed by the CPU opponent.
type CPUMove struct {
	Index int
	Value uint8
}

// CPUOutcome describes one full CPU turn.
type CPUOutcome struct {
	Moves    [2]CPUMove
	IsMatch  bool
	CPUScore int
	GameOver bool
}
