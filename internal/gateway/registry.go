package gateway

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// client is one live WebSocket connection, pinned to the channel it was
// opened against.
type client struct {
	conn      *websocket.Conn
	channelID string
}

// Registry tracks active WebSocket connections per player. A player may
// hold several connections (tabs, devices); direct messages go to all of
// them, channel posts to every connection watching that channel.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[string]*client
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]map[string]*client),
	}
}

// Register adds a connection for a player.
func (r *Registry) Register(playerID, connID string, c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[playerID]; !exists {
		r.conns[playerID] = make(map[string]*client)
	}
	r.conns[playerID][connID] = c
	slog.Info("connection registered", "player_id", playerID, "conn_id", connID, "channel_id", c.channelID)
}

// Unregister removes a connection for a player.
func (r *Registry) Unregister(playerID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conns, ok := r.conns[playerID]; ok {
		if _, exists := conns[connID]; exists {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(r.conns, playerID)
			}
			slog.Info("connection unregistered", "player_id", playerID, "conn_id", connID)
		}
	}
}

// connsOf snapshots a player's live connections.
func (r *Registry) connsOf(playerID string) []*client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*client, 0, len(r.conns[playerID]))
	for _, c := range r.conns[playerID] {
		conns = append(conns, c)
	}
	return conns
}

// watchers snapshots every connection watching a channel.
func (r *Registry) watchers(channelID string) []*client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []*client
	for _, byConn := range r.conns {
		for _, c := range byConn {
			if c.channelID == channelID {
				conns = append(conns, c)
			}
		}
	}
	return conns
}
