package engine

import "math/bits"

// setBit sets bit idx in the mask.
func setBit(mask *uint64, idx int) {
	*mask |= 1 << uint(idx)
}

// LegalFlips returns a bitmask of the cards the player may flip now.
// Bit i is set if card i is face down. Zero heap allocation.
func (b *Board) LegalFlips() uint64 {
	var mask uint64
	if !b.IsDealt() || b.IsTerminal() {
		return mask
	}
	for i := 0; i < int(b.NumCards); i++ {
		if b.Cards[i].State == FaceDown {
			setBit(&mask, i)
		}
	}
	return mask
}

// LegalFlipsList returns legal flips as a slice (for testing; allocates).
func (b *Board) LegalFlipsList() []int {
	mask := b.LegalFlips()
	var out []int
	for mask != 0 {
		i := bits.TrailingZeros64(mask)
		out = append(out, i)
		mask &= mask - 1
	}
	return out
}

// nthLegal returns the index of the n-th (0-based) set bit of mask.
func nthLegal(mask uint64, n int) int {
	for ; n > 0; n-- {
		mask &= mask - 1
	}
	return bits.TrailingZeros64(mask)
}
