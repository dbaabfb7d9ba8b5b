// Package protocol holds the HTTP+JSON wire types shared by the game server
// and the client.
package protocol

import "strconv"

// Paths served by the game server.
const (
	PathFlip          = "/flip/"
	PathNewGame       = "/new-game"
	PathCPUTurn       = "/cpu-turn"
	PathState         = "/state"
	PathEvents        = "/ws"
	PathRecentResults = "/results/recent"
	PathHealth        = "/healthz"
)

// FlipPath returns the path of the flip endpoint for a card index.
func FlipPath(index int) string { return PathFlip + strconv.Itoa(index) }

/* ===================== Flip ===================== */

// FlipResult is the response of POST /flip/{index}. A 429 response carries the
// same shape with Valid=false and Backoff set.
type FlipResult struct {
	Valid        bool    `json:"valid"`
	CardIndex    int     `json:"card_index"`
	CardValue    int     `json:"card_value"`
	CardName     string  `json:"card_name,omitempty"`
	Message      string  `json:"message"`
	TurnComplete bool    `json:"turn_complete"`
	IsMatch      bool    `json:"is_match"`
	FirstCard    int     `json:"first_card"`
	PlayerScore  int     `json:"player_score"`
	CPUScore     int     `json:"cpu_score"`
	GameOver     bool    `json:"game_over"`
	Backoff      float64 `json:"backoff,omitempty"` // seconds
}

/* ===================== New game ===================== */

// NewGameResponse is the response of POST /new-game.
type NewGameResponse struct {
	Success bool `json:"success"`
}

/* ===================== CPU ===================== */

// CPUMove is one card revealed by the CPU.
type CPUMove struct {
	Index int    `json:"index"`
	Value int    `json:"value"`
	Name  string `json:"name,omitempty"`
}

// CPUResult is the response of POST /cpu-turn.
type CPUResult struct {
	CPUMoves []CPUMove `json:"cpu_moves"`
	CPUMatch bool      `json:"cpu_match"`
	CPUScore int       `json:"cpu_score"`
	GameOver bool      `json:"game_over"`
	Message  string    `json:"message,omitempty"`
}

/* ===================== Board state ===================== */

// CardView is the client-facing card. Value is 0 while the card is face down.
type CardView struct {
	Index int    `json:"index"`
	State string `json:"state"`
	Value int    `json:"value,omitempty"`
}

// BoardView is the response of GET /state. Version changes whenever anything
// visible on the board changes; it is also sent as the ETag.
type BoardView struct {
	GameID      string     `json:"game_id"`
	Version     string     `json:"version"`
	Cards       []CardView `json:"cards"`
	FirstCard   *int       `json:"first_card,omitempty"`
	PlayerScore int        `json:"player_score"`
	CPUScore    int        `json:"cpu_score"`
	Flips       int        `json:"flips"`
	GameOver    bool       `json:"game_over"`
}

/* ===================== Errors ===================== */

// ErrorResponse is returned with non-2xx statuses other than 429.
type ErrorResponse struct {
	Error string `json:"error"`
}
