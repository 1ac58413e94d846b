// Package gateway provides the WebSocket chat transport: it carries
// commands and free-text turns inbound and implements the engine's
// Notifier for direct messages and channel posts outbound.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/17z7h0m4s/exquisite-corpse/internal/engine"
	"github.com/17z7h0m4s/exquisite-corpse/internal/identity"
	"github.com/17z7h0m4s/exquisite-corpse/internal/store"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const writeTimeout = 10 * time.Second

// DefaultChannel hosts connections that did not name a channel.
const DefaultChannel = "lobby"

// Handler accepts WebSocket connections and routes their messages to the
// engine. It doubles as the engine's Notifier.
type Handler struct {
	repo          store.Repository
	reg           *Registry
	eng           *engine.Engine
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a gateway handler. The engine is attached afterwards
// with SetEngine, since the engine itself needs the gateway as Notifier.
func NewHandler(repo store.Repository, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		repo:          repo,
		reg:           NewRegistry(),
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// SetEngine attaches the engine that inbound messages are dispatched to.
func (h *Handler) SetEngine(eng *engine.Engine) {
	h.eng = eng
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())
	if playerID == "" {
		http.Error(w, "identity required", http.StatusUnauthorized)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	channelID := strings.TrimSpace(r.URL.Query().Get("channel"))
	if channelID == "" {
		channelID = DefaultChannel
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("failed to accept WebSocket", "error", err, "player_id", playerID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "connection ended"); closeErr != nil {
			slog.Debug("failed to close websocket", "error", closeErr, "player_id", playerID)
		}
	}()

	connID := uuid.NewString()
	c := &client{conn: ws, channelID: channelID}
	h.reg.Register(playerID, connID, c)
	defer h.reg.Unregister(playerID, connID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.readLoop(ctx, ws, playerID, channelID)
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, playerID, channelID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			slog.Debug("WebSocket read ended", "player_id", playerID, "error", err)
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.writeMessage(ctx, ws, serverMessage{Type: "error", Text: "malformed message"})
			continue
		}

		switch msg.Type {
		case "command":
			cmd, err := parseCommand(msg)
			if err != nil {
				h.writeMessage(ctx, ws, serverMessage{
					Type: "error",
					Text: "Unknown action. Use: start, join, status, or abandon.",
				})
				continue
			}
			reply := h.eng.HandleCommand(ctx, playerID, channelID, cmd)
			h.deliverReply(ctx, ws, channelID, reply)

		case "say":
			reply := h.eng.HandleDirectText(ctx, playerID, msg.Text)
			h.writeMessage(ctx, ws, serverMessage{Type: "reply", Text: reply.Text})

		default:
			h.writeMessage(ctx, ws, serverMessage{Type: "error", Text: fmt.Sprintf("unknown message type %q", msg.Type)})
		}
	}
}

// deliverReply shows an ephemeral reply only to the sender; a public reply
// is posted to the whole channel, like the original slash-command response.
func (h *Handler) deliverReply(ctx context.Context, ws *websocket.Conn, channelID string, reply engine.Reply) {
	if reply.Ephemeral {
		h.writeMessage(ctx, ws, serverMessage{Type: "reply", Text: reply.Text})
		return
	}
	if err := h.SendToChannel(ctx, channelID, reply.Text); err != nil {
		slog.Warn("failed to post reply to channel", "channel_id", channelID, "error", err)
	}
}

// SendDirect delivers text privately to every live connection of a player.
// Implements engine.Notifier.
func (h *Handler) SendDirect(ctx context.Context, playerID, text string) error {
	conns := h.reg.connsOf(playerID)
	if len(conns) == 0 {
		return fmt.Errorf("player %s has no live connection: %w", playerID, engine.ErrDeliveryFailed)
	}

	delivered := false
	for _, c := range conns {
		if err := h.writeMessage(ctx, c.conn, serverMessage{Type: "dm", Text: text}); err == nil {
			delivered = true
		}
	}
	if !delivered {
		return fmt.Errorf("all connections for %s refused the write: %w", playerID, engine.ErrDeliveryFailed)
	}
	return nil
}

// SendToChannel posts text to every connection watching a channel.
// Implements engine.Notifier. Best effort: an empty channel is not an error.
func (h *Handler) SendToChannel(ctx context.Context, channelID, text string) error {
	for _, c := range h.reg.watchers(channelID) {
		if err := h.writeMessage(ctx, c.conn, serverMessage{Type: "post", Channel: channelID, Text: text}); err != nil {
			slog.Debug("channel post write failed", "channel_id", channelID, "error", err)
		}
	}
	return nil
}

// DisplayName resolves a player's display name from the store, falling back
// to the derived anonymous name. Implements engine.Notifier.
func (h *Handler) DisplayName(ctx context.Context, playerID string) string {
	player, err := h.repo.GetPlayer(ctx, playerID)
	if err != nil || player == nil || player.DisplayName == "" {
		return identity.DeriveDisplayName(playerID)
	}
	return player.DisplayName
}

func (h *Handler) writeMessage(ctx context.Context, ws *websocket.Conn, msg serverMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := ws.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev || h.allowedOrigin == "" {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser client
	}
	return strings.HasPrefix(origin, h.allowedOrigin)
}
