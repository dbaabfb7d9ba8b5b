// Package session keeps per-browser game state between requests.
//
// A session is identified by a uuid carried in a signed cookie token. The game
// itself lives server side in a Store, encoded as opaque bytes.
package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Store.Load for unknown or expired sessions.
var ErrNotFound = errors.New("session: not found")

// Store persists encoded session state.
type Store interface {
	Load(ctx context.Context, id uuid.UUID) ([]byte, error)
	// Save stores data and (re)starts the session lifetime.
	Save(ctx context.Context, id uuid.UUID, data []byte) error
	Delete(ctx context.Context, id uuid.UUID) error
}
