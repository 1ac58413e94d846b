package api

import (
	"context"
	"net/http"
	"time"

	"github.com/17z7h0m4s/exquisite-corpse/internal/identity"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the read-only session API.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/session", h.OwnSession)
	r.Get("/api/channels/{channelID}/session", h.ChannelSession)
	r.Get("/health/ready", h.Ready)
}

// OwnSession reports the session the caller currently occupies.
func (h *Handler) OwnSession(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())

	view, ok := h.eng.SessionForPlayer(playerID)
	if !ok {
		Error(w, http.StatusNotFound, "you are not in a game")
		return
	}
	JSON(w, http.StatusOK, view)
}

// ChannelSession reports the live session hosted by a channel.
func (h *Handler) ChannelSession(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	playerID := identity.PlayerIDFromContext(r.Context())

	view, ok := h.eng.SessionInChannel(channelID, playerID)
	if !ok {
		Error(w, http.StatusNotFound, "no game in this channel")
		return
	}
	JSON(w, http.StatusOK, view)
}

// Ready reports readiness, including database connectivity.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.repo.Ping(ctx); err != nil {
		Error(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
