package engine

import (
	"sync"

	"github.com/17z7h0m4s/exquisite-corpse/internal/domain"
)

// Router is the process-wide index from player identity to session. It
// enforces at most one live session per player and tracks which player's
// next free-text message is a turn submission, and for which channel.
// Not persisted; rebuilt from the store at startup.
type Router struct {
	mu         sync.Mutex
	sessionOf  map[string]string // player -> channel occupying a slot
	awaitingOf map[string]string // player -> channel awaiting their words
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		sessionOf:  make(map[string]string),
		awaitingOf: make(map[string]string),
	}
}

// Bind records playerID as occupying a slot in channelID. Binding to the
// same channel is idempotent; binding to a different one fails.
func (r *Router) Bind(playerID, channelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bound, ok := r.sessionOf[playerID]; ok && bound != channelID {
		return domain.ErrAlreadyBound
	}
	r.sessionOf[playerID] = channelID
	return nil
}

// Unbind removes both index entries for playerID. Idempotent.
func (r *Router) Unbind(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessionOf, playerID)
	delete(r.awaitingOf, playerID)
}

// SessionOf returns the channel whose session playerID occupies.
func (r *Router) SessionOf(playerID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	channelID, ok := r.sessionOf[playerID]
	return channelID, ok
}

// MarkAwaiting records that playerID's next free-text message is a turn
// submission for channelID's session.
func (r *Router) MarkAwaiting(playerID, channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.awaitingOf[playerID] = channelID
}

// ClearAwaiting drops any pending-turn mark for playerID. Idempotent.
func (r *Router) ClearAwaiting(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.awaitingOf, playerID)
}

// AwaitingOf returns the channel awaiting playerID's words, if any.
func (r *Router) AwaitingOf(playerID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	channelID, ok := r.awaitingOf[playerID]
	return channelID, ok
}
