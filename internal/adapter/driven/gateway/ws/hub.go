package ws

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/vibelinechat/vibeline/internal/core/domain"
	"github.com/vibelinechat/vibeline/internal/core/port"
)

// Hub is the presence registry: every live connection of every user, keyed by
// user id. A user is online while their entry is non-empty. The hub owns its
// own lock because the gateway mutates it outside the coordinator's critical
// section.
//
// Implements port.Presence.
type Hub struct {
	mu      sync.RWMutex
	clients map[domain.UserID][]port.Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[domain.UserID][]port.Client),
	}
}

// Register adds a connection to the user's set. Adding the same connection id
// twice is a no-op.
func (h *Hub) Register(userID domain.UserID, client port.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.clients[userID] {
		if c.ID() == client.ID() {
			return
		}
	}
	h.clients[userID] = append(h.clients[userID], client)
	log.Info().Str("user_id", userID.String()).Str("connection_id", client.ID()).Msg("Connection registered")
}

// Unregister removes one connection. Removing the last connection makes the
// user offline.
func (h *Hub) Unregister(userID domain.UserID, connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(userID, connectionID)
}

// UnregisterAll clears every connection held by the user.
func (h *Hub) UnregisterAll(userID domain.UserID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, userID)
}

func (h *Hub) removeLocked(userID domain.UserID, connectionID string) {
	conns := h.clients[userID]
	for i, c := range conns {
		if c.ID() == connectionID {
			conns = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(h.clients, userID)
		return
	}
	h.clients[userID] = conns
}

func (h *Hub) IsOnline(userID domain.UserID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[userID]) > 0
}

// ConnectionsFor returns a snapshot of the user's live connections.
func (h *Hub) ConnectionsFor(userID domain.UserID) []port.Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := h.clients[userID]
	out := make([]port.Client, len(conns))
	copy(out, conns)
	return out
}

// Broadcast delivers event to every connection of the user. No registered
// connections is a silent no-op. Sends happen outside the lock so one slow
// connection cannot stall registration; a connection that fails to accept the
// write is dropped and closed.
func (h *Hub) Broadcast(userID domain.UserID, event domain.Event) {
	conns := h.ConnectionsFor(userID)

	var dead []port.Client
	for _, c := range conns {
		if err := c.Send(event); err != nil {
			log.Error().Err(err).Str("user_id", userID.String()).Str("connection_id", c.ID()).Str("event", event.Event).Msg("Error sending event")
			dead = append(dead, c)
		}
	}

	if len(dead) == 0 {
		return
	}
	h.mu.Lock()
	for _, c := range dead {
		h.removeLocked(userID, c.ID())
	}
	h.mu.Unlock()
	for _, c := range dead {
		c.Close()
	}
}

// Close disconnects every client. Used on server shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, conns := range h.clients {
		for _, c := range conns {
			if err := c.Close(); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID()).Msg("Error closing client connection")
			}
		}
		delete(h.clients, userID)
	}
}
