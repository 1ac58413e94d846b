// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/17z7h0m4s/exquisite-corpse/internal/domain"
)

// Repository defines the interface for persisting sessions and players.
type Repository interface {
	// SaveSession writes a full snapshot of the session, last-write-wins.
	SaveSession(ctx context.Context, session *domain.Session) error

	// LoadOpenSessions returns every persisted session whose status is not
	// complete. Called once at startup to rebuild in-memory state.
	LoadOpenSessions(ctx context.Context) ([]*domain.Session, error)

	// DeleteSession removes the record for a channel. Invoked exactly once,
	// synchronously with in-memory teardown, when a session completes.
	DeleteSession(ctx context.Context, channelID string) error

	// GetPlayer retrieves a player by identity, nil if unknown.
	GetPlayer(ctx context.Context, playerID string) (*domain.Player, error)

	// UpsertPlayer creates or updates a player record.
	UpsertPlayer(ctx context.Context, player *domain.Player) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
