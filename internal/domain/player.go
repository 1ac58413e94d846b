package domain

import (
	"time"
)

// Player is a participant known to the service, keyed by the anonymous
// identity the transport layer established.
type Player struct {
	PlayerID    string    `json:"player_id"`
	DisplayName string    `json:"display_name"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
