package client

import (
	"sync"

	"github.com/jason-s-yu/arcana-memory/engine"
)

// Recall is an automatic player. As a Presenter it remembers every value it
// is shown, and Next picks the next card from that memory.
type Recall struct {
	NopPresenter

	mu    sync.Mutex
	known map[int]int
}

func NewRecall() *Recall {
	return &Recall{known: make(map[int]int)}
}

func (r *Recall) OnCardRevealed(index, value int) {
	r.mu.Lock()
	r.known[index] = value
	r.mu.Unlock()
}

func (r *Recall) OnCardMatched(index int) {
	r.mu.Lock()
	delete(r.known, index)
	r.mu.Unlock()
}

// Forget clears the memory, for a new game.
func (r *Recall) Forget() {
	r.mu.Lock()
	clear(r.known)
	r.mu.Unlock()
}

// Next returns the card to flip given the board and the pending first card
// (engine.NoCard if none), or engine.NoCard when nothing can be flipped.
func (r *Recall) Next(cards []GridCard, pending int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	faceDown := func(i int) bool {
		return i >= 0 && i < len(cards) && cards[i].State == engine.FaceDown && !cards[i].Loading
	}

	if pending != engine.NoCard && pending < len(cards) {
		want := cards[pending].Value
		for i, v := range r.known {
			if i != pending && v == want && faceDown(i) {
				return i
			}
		}
	} else {
		seen := make(map[int]int)
		for i := range cards {
			v, ok := r.known[i]
			if !ok || !faceDown(i) {
				continue
			}
			if _, dup := seen[v]; dup {
				return seen[v]
			}
			seen[v] = i
		}
	}

	for i := range cards {
		if _, ok := r.known[i]; !ok && faceDown(i) && i != pending {
			return i
		}
	}
	for i := range cards {
		if faceDown(i) && i != pending {
			return i
		}
	}
	return engine.NoCard
}
