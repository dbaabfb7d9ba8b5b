package engine

// Flip turns the card at index face up on behalf of the player.
//
// The first flip of a turn leaves the card face up and records it as the
// pending first card. The second flip resolves the turn: a matching pair
// becomes Matched and scores a point, a mismatch turns both cards face down
// again straight away. The board never keeps a mismatched pair face up; how
// long the pair stays visible is up to the client.
func (b *Board) Flip(index int) (FlipOutcome, error) {
	if !b.IsDealt() {
		return FlipOutcome{}, ErrNotDealt
	}
	if index < 0 || index >= int(b.NumCards) {
		return FlipOutcome{}, ErrIndexOutOfRange
	}
	if b.IsTerminal() {
		return FlipOutcome{}, ErrGameOver
	}
	switch b.Cards[index].State {
	case Matched:
		return FlipOutcome{}, ErrCardMatched
	case FaceUp:
		return FlipOutcome{}, ErrCardFaceUp
	}

	b.Cards[index].State = FaceUp
	b.Seen[index] = true
	b.Flips++

	out := FlipOutcome{
		Index:       index,
		Value:       b.Cards[index].Value,
		PlayerScore: int(b.PlayerScore),
		CPUScore:    int(b.CPUScore),
	}

	if b.FirstCard == NoCard {
		b.FirstCard = int8(index)
		out.FirstCard = index
		return out, nil
	}

	first := int(b.FirstCard)
	b.FirstCard = NoCard
	out.FirstCard = first
	out.TurnComplete = true
	out.IsMatch = b.Cards[first].Value == b.Cards[index].Value

	if out.IsMatch {
		b.Cards[first].State = Matched
		b.Cards[index].State = Matched
		b.PlayerScore++
		out.PlayerScore = int(b.PlayerScore)
		b.checkTerminal()
	} else {
		b.Cards[first].State = FaceDown
		b.Cards[index].State = FaceDown
	}
	out.GameOver = b.IsTerminal()
	return out, nil
}

// checkTerminal sets FlagGameOver once no card is left to match.
func (b *Board) checkTerminal() {
	for i := 0; i < int(b.NumCards); i++ {
		if b.Cards[i].State != Matched {
			return
		}
	}
	b.Flags |= FlagGameOver
}
