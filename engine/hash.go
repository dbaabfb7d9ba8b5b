package engine

// PublicHash returns a 64-bit FNV-1a hash of everything a player can see:
// card states, the values of cards that are face up or matched, scores, the
// pending first card and the flip count. Face-down values are not hashed, so
// the hash can be shown to clients.
func (b *Board) PublicHash() uint64 {
	h := uint64(14695981039346656037) // FNV-1a offset basis
	const prime = uint64(1099511628211)

	for i := 0; i < int(b.NumCards); i++ {
		c := b.Cards[i]
		h ^= uint64(c.State)
		h *= prime
		if c.State != FaceDown {
			h ^= uint64(c.Value) << 8
			h *= prime
		}
	}
	h ^= uint64(b.PlayerScore) << 16
	h *= prime
	h ^= uint64(b.CPUScore) << 24
	h *= prime
	h ^= uint64(b.Flips) << 32
	h *= prime
	h ^= uint64(uint8(b.FirstCard)) << 48
	h *= prime
	h ^= uint64(b.Flags) << 56
	h *= prime
	return h
}
