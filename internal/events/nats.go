package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arcana-memory/internal/game"
	"github.com/nats-io/nats.go"
)

// SubjectPrefix is the root of every subject events are published on.
const SubjectPrefix = "memory.events"

// Subject returns the NATS subject of an event: memory.events.<session>.<type>.
func Subject(sessionID uuid.UUID, eventType game.GameEventType) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, sessionID, eventType)
}

// publisher is the part of *nats.Conn used to forward events.
type publisher interface {
	Publish(subj string, data []byte) error
}

// NATSForwarder publishes events to NATS.
type NATSForwarder struct {
	nc publisher
}

// NewNATSForwarder wraps an open connection.
func NewNATSForwarder(nc *nats.Conn) *NATSForwarder {
	return &NATSForwarder{nc: nc}
}

// ConnectNATS opens a named connection that keeps reconnecting in the background.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("arcana-memory"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

func (f *NATSForwarder) Forward(sessionID uuid.UUID, eventType game.GameEventType, data []byte) error {
	return f.nc.Publish(Subject(sessionID, eventType), data)
}
