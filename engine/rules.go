package engine

// HouseRules holds configurable game rule settings.
type HouseRules struct {
	Pairs       uint8 `json:"pairs"`        // 1..NumArcana; 0 treated as NumArcana
	CPUOpponent bool  `json:"cpu_opponent"` // enables Board.CPUTurn
}

// DefaultHouseRules returns the standard rules: every Major Arcana twice, solo play.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		Pairs:       NumArcana,
		CPUOpponent: false,
	}
}

// numPairs returns the effective number of pairs, clamped to [1, NumArcana].
func (r *HouseRules) numPairs() uint8 {
	if r.Pairs == 0 || r.Pairs > NumArcana {
		return NumArcana
	}
	return r.Pairs
}
