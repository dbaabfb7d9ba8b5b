package engine

// Outcome is the result of a finished game.
type Outcome uint8

const (
	OutcomeInProgress Outcome = iota
	OutcomePlayerWins
	OutcomeCPUWins
	OutcomeTie
)

// String returns the outcome name used in messages and logs.
func (o Outcome) String() string {
	switch o {
	case OutcomePlayerWins:
		return "player_wins"
	case OutcomeCPUWins:
		return "cpu_wins"
	case OutcomeTie:
		return "tie"
	default:
		return "in_progress"
	}
}

// Scores returns the number of pairs claimed by the player and the CPU.
func (b *Board) Scores() (player, cpu int) {
	return int(b.PlayerScore), int(b.CPUScore)
}

// Outcome returns who won. Solo games (CPU disabled) are always won by the
// player once the board is cleared.
//
// If the game is not over, returns OutcomeInProgress.
func (b *Board) Outcome() Outcome {
	if !b.IsTerminal() {
		return OutcomeInProgress
	}
	switch {
	case b.PlayerScore > b.CPUScore:
		return OutcomePlayerWins
	case b.CPUScore > b.PlayerScore:
		return OutcomeCPUWins
	default:
		return OutcomeTie
	}
}
