package engine

import (
	"github.com/17z7h0m4s/exquisite-corpse/internal/domain"
)

// SessionView is a read-only snapshot of a live session for the HTTP API.
type SessionView struct {
	ChannelID     string `json:"channel_id"`
	Status        string `json:"status"`
	LinesComplete int    `json:"lines_complete"`
	TotalLines    int    `json:"total_lines"`
	WordsPerTurn  int    `json:"words_per_turn"`
	LastWord      string `json:"last_word,omitempty"`
	SlotOpen      bool   `json:"slot_open"`
	YourTurn      bool   `json:"your_turn,omitempty"`
}

func viewOf(s *domain.Session, playerID string) SessionView {
	yourTurn := playerID != "" &&
		(s.CurrentPlayer() == playerID ||
			(s.Status == domain.StatusPending && s.StarterID == playerID))
	return SessionView{
		ChannelID:     s.ChannelID,
		Status:        string(s.Status),
		LinesComplete: s.LinesComplete(),
		TotalLines:    s.TotalLines,
		WordsPerTurn:  s.WordsPerTurn,
		LastWord:      s.LastWord(),
		SlotOpen:      s.SlotIsOpen(),
		YourTurn:      yourTurn,
	}
}

// SessionForPlayer snapshots the session playerID occupies, if any.
func (e *Engine) SessionForPlayer(playerID string) (SessionView, bool) {
	channelID, ok := e.router.SessionOf(playerID)
	if !ok {
		return SessionView{}, false
	}
	entry, found := e.session(channelID)
	if !found {
		return SessionView{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return viewOf(entry.s, playerID), true
}

// SessionInChannel snapshots the live session hosted by channelID, if any.
func (e *Engine) SessionInChannel(channelID, playerID string) (SessionView, bool) {
	entry, found := e.session(channelID)
	if !found {
		return SessionView{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.s.Status == domain.StatusComplete {
		return SessionView{}, false
	}
	return viewOf(entry.s, playerID), true
}
