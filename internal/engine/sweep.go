package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/17z7h0m4s/exquisite-corpse/internal/domain"
)

// StartSweeper runs a background goroutine that periodically vacates slots
// whose occupant has been inactive past the timeout, freeing them for
// takeover. Stops when ctx is cancelled.
func (e *Engine) StartSweeper(ctx context.Context, interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("timeout sweeper started", "interval", interval, "timeout", timeout)

		for {
			select {
			case <-ticker.C:
				e.SweepOnce(ctx, time.Now().UTC(), timeout)
			case <-ctx.Done():
				slog.Info("timeout sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// SweepOnce performs a single pass over all live sessions. Only active
// sessions with a non-vacant current-turn occupant are touched; a slot
// already vacated is awaiting takeover and is not re-notified.
func (e *Engine) SweepOnce(ctx context.Context, now time.Time, timeout time.Duration) {
	e.mu.RLock()
	entries := make([]*sessionEntry, 0, len(e.sessions))
	for _, entry := range e.sessions {
		entries = append(entries, entry)
	}
	e.mu.RUnlock()

	var notices []notice
	for _, entry := range entries {
		entry.mu.Lock()
		s := entry.s

		if s.Status != domain.StatusActive || now.Sub(s.LastActivity) <= timeout {
			entry.mu.Unlock()
			continue
		}

		vacated := s.VacateCurrentSlot()
		if vacated == "" {
			entry.mu.Unlock()
			continue
		}

		if err := e.saveSession(ctx, s); err != nil {
			// Restore the slot so the next sweep retries the whole step.
			s.OccupySlot(s.CurrentSlot(), vacated)
			entry.mu.Unlock()
			continue
		}

		e.router.Unbind(vacated)

		name := e.notify.DisplayName(ctx, vacated)
		notices = append(notices, notice{
			channelID: s.ChannelID,
			text: fmt.Sprintf("**%s** timed out.\n\nLast word: **%s**\nSend `join` to continue.",
				name, s.LastWord()),
		})

		slog.Info("slot vacated by timeout", "channel_id", s.ChannelID,
			"player_id", vacated, "idle", now.Sub(s.LastActivity))
		entry.mu.Unlock()
	}

	e.deliver(ctx, notices)
}
