package session

import (
	"go.uber.org/zap"

	"github.com/image-inspector/backend/internal/logger"
	"github.com/image-inspector/backend/internal/models"
)

// Event types pushed to subscribers.
const (
	EventBatch    = "scan:batch"
	EventFinished = "scan:finished"
)

// Event is a progress notification for live subscribers.
type Event struct {
	Type    string                 `json:"type"`
	Session string                 `json:"sessionId"`
	Status  string                 `json:"status"`
	Loaded  int                    `json:"loaded"`
	Total   int                    `json:"total,omitempty"`
	Records []models.ImageMetadata `json:"records,omitempty"`
}

const subscriberBuffer = 64

// Subscribe registers a listener for a session's events. The returned
// cancel function must be called to release it. Slow subscribers miss
// events rather than stalling the consumer.
func (m *Manager) Subscribe(id string) (<-chan Event, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, nil, ErrSessionNotFound
	}

	m.nextSub++
	key := m.nextSub
	ch := make(chan Event, subscriberBuffer)
	state.listeners[key] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if st, ok := m.sessions[id]; ok {
			if c, ok := st.listeners[key]; ok {
				delete(st.listeners, key)
				close(c)
			}
		}
	}
	return ch, cancel, nil
}

// publish must be called with m.mu held.
func (m *Manager) publish(state *SessionState, ev Event) {
	for key, ch := range state.listeners {
		select {
		case ch <- ev:
		default:
			m.log.Debug("dropping event for slow subscriber",
				zap.String("session", logger.ShortID(state.Session.ID)),
				zap.Int("subscriber", key),
				zap.String("type", ev.Type))
		}
	}
}
