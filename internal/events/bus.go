// Package events fans game events out to live listeners and, optionally, to NATS.
package events

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arcana-memory/internal/game"
	"github.com/sirupsen/logrus"
)

// subscriberBuffer is how many events a slow listener may fall behind before
// events are dropped for it.
const subscriberBuffer = 64

// Forwarder ships encoded events to another system.
type Forwarder interface {
	Forward(sessionID uuid.UUID, eventType game.GameEventType, data []byte) error
}

// Bus delivers every published event to the subscribers of its session.
// It implements game.Publisher.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uuid.UUID]map[*Subscription]struct{}
	forward Forwarder
	log     logrus.FieldLogger
}

// NewBus creates a Bus. forward may be nil.
func NewBus(forward Forwarder, log logrus.FieldLogger) *Bus {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bus{
		subs:    make(map[uuid.UUID]map[*Subscription]struct{}),
		forward: forward,
		log:     log,
	}
}

// Subscription receives the events of one session.
type Subscription struct {
	bus       *Bus
	sessionID uuid.UUID
	ch        chan game.GameEvent
	once      sync.Once
}

// Events returns the channel of events. It is closed by Close.
func (s *Subscription) Events() <-chan game.GameEvent { return s.ch }

// Close detaches the subscription from the bus.
func (s *Subscription) Close() {
	s.once.Do(func() {
		b := s.bus
		b.mu.Lock()
		if set, ok := b.subs[s.sessionID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(b.subs, s.sessionID)
			}
		}
		close(s.ch)
		b.mu.Unlock()
	})
}

// Subscribe attaches a listener to a session.
func (b *Bus) Subscribe(sessionID uuid.UUID) *Subscription {
	s := &Subscription{bus: b, sessionID: sessionID, ch: make(chan game.GameEvent, subscriberBuffer)}
	b.mu.Lock()
	set, ok := b.subs[sessionID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[sessionID] = set
	}
	set[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Publish delivers ev to the session's subscribers without blocking and
// forwards it if a Forwarder is configured.
func (b *Bus) Publish(sessionID uuid.UUID, ev game.GameEvent) {
	b.mu.RLock()
	for s := range b.subs[sessionID] {
		select {
		case s.ch <- ev:
		default:
			b.log.WithFields(logrus.Fields{"session": sessionID, "type": ev.Type}).Warn("Dropping event for slow listener.")
		}
	}
	b.mu.RUnlock()

	if b.forward == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		b.log.WithError(err).Error("Failed to encode event.")
		return
	}
	if err := b.forward.Forward(sessionID, ev.Type, data); err != nil {
		b.log.WithError(err).WithField("type", ev.Type).Warn("Failed to forward event.")
	}
}

// Subscribers returns the number of listeners on a session.
func (b *Bus) Subscribers(sessionID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}
