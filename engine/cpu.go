package engine

import "math/bits"

// CPUTurn plays one turn for the CPU opponent.
//
// The CPU remembers every card it has seen flipped by either side. If two
// remembered unmatched cards share a value it claims that pair. Otherwise it
// flips two random face-down cards; a lucky pair is claimed, anything else is
// turned back over (but remembered).
func (b *Board) CPUTurn() (CPUOutcome, error) {
	if !b.Rules.CPUOpponent {
		return CPUOutcome{}, ErrCPUDisabled
	}
	if !b.IsDealt() {
		return CPUOutcome{}, ErrNotDealt
	}
	if b.IsTerminal() {
		return CPUOutcome{}, ErrGameOver
	}
	if b.FirstCard != NoCard {
		return CPUOutcome{}, ErrTurnPending
	}

	i, j, ok := b.knownPair()
	if !ok {
		var err error
		i, j, err = b.randomPair()
		if err != nil {
			return CPUOutcome{}, err
		}
	}

	b.Seen[i] = true
	b.Seen[j] = true
	out := CPUOutcome{
		Moves: [2]CPUMove{
			{Index: i, Value: b.Cards[i].Value},
			{Index: j, Value: b.Cards[j].Value},
		},
		IsMatch: b.Cards[i].Value == b.Cards[j].Value,
	}
	if out.IsMatch {
		b.Cards[i].State = Matched
		b.Cards[j].State = Matched
		b.CPUScore++
		b.checkTerminal()
	}
	out.CPUScore = int(b.CPUScore)
	out.GameOver = b.IsTerminal()
	return out, nil
}

// knownPair returns the lowest-indexed remembered pair that is still in play.
func (b *Board) knownPair() (int, int, bool) {
	n := int(b.NumCards)
	for i := 0; i < n; i++ {
		if !b.Seen[i] || b.Cards[i].State != FaceDown {
			continue
		}
		for j := i + 1; j < n; j++ {
			if b.Seen[j] && b.Cards[j].State == FaceDown && b.Cards[j].Value == b.Cards[i].Value {
				return i, j, true
			}
		}
	}
	return NoCard, NoCard, false
}

// randomPair picks two distinct face-down cards.
func (b *Board) randomPair() (int, int, error) {
	mask := b.LegalFlips()
	n := bits.OnesCount64(mask)
	if n < 2 {
		return NoCard, NoCard, ErrGameOver
	}
	x := int(b.randN(uint64(n)))
	y := int(b.randN(uint64(n - 1)))
	if y >= x {
		y++
	}
	return nthLegal(mask, x), nthLegal(mask, y), nil
}
