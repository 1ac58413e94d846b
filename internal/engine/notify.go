package engine

import (
	"context"
	"errors"
	"log/slog"
)

// ErrDeliveryFailed means a direct message could not be delivered to a
// player. Recoverable: the caller falls back to a channel post.
var ErrDeliveryFailed = errors.New("direct delivery failed")

// Notifier is the outbound half of the chat transport. Implementations must
// be safe for concurrent use; the engine never calls SendDirect or
// SendToChannel while holding a session lock.
type Notifier interface {
	// SendDirect delivers text privately to a player. Returns
	// ErrDeliveryFailed (possibly wrapped) when the player is unreachable.
	SendDirect(ctx context.Context, playerID, text string) error

	// SendToChannel posts text to a shared channel.
	SendToChannel(ctx context.Context, channelID, text string) error

	// DisplayName resolves a player's display name for message text.
	DisplayName(ctx context.Context, playerID string) string
}

// notice is an outbound notification queued during a locked state
// transition and delivered after the lock is released. Delivery failure
// never rolls back the transition.
type notice struct {
	playerID  string // direct recipient; empty means channel post
	channelID string
	text      string
	fallback  string // channel fallback when direct delivery fails
}

func (e *Engine) deliver(ctx context.Context, notices []notice) {
	for _, n := range notices {
		if n.playerID == "" {
			if err := e.notify.SendToChannel(ctx, n.channelID, n.text); err != nil {
				slog.Warn("channel post failed", "channel_id", n.channelID, "error", err)
			}
			continue
		}

		err := e.notify.SendDirect(ctx, n.playerID, n.text)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrDeliveryFailed) && n.fallback != "" {
			if fbErr := e.notify.SendToChannel(ctx, n.channelID, n.fallback); fbErr != nil {
				slog.Warn("fallback channel post failed", "channel_id", n.channelID, "error", fbErr)
			}
			continue
		}
		slog.Warn("direct message failed", "player_id", n.playerID, "error", err)
	}
}
