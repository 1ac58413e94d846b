package gateway

import (
	"fmt"
	"strings"

	"github.com/17z7h0m4s/exquisite-corpse/internal/engine"
)

// clientMessage is the wire format for inbound WebSocket messages. A
// "command" carries a structured game action; a "say" carries free text
// addressed privately to the game (a turn submission).
type clientMessage struct {
	Type      string `json:"type"`
	Action    string `json:"action,omitempty"`
	Words     string `json:"words,omitempty"`
	Lines     int    `json:"lines,omitempty"`
	WordCount int    `json:"wordcount,omitempty"`
	Text      string `json:"text,omitempty"`
}

// serverMessage is the wire format for outbound WebSocket messages.
type serverMessage struct {
	Type    string `json:"type"` // "reply" | "dm" | "post" | "error"
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

// parseCommand resolves a command message into its closed variant set.
// Unknown actions are rejected here, at the transport boundary.
func parseCommand(msg clientMessage) (engine.Command, error) {
	switch strings.ToLower(strings.TrimSpace(msg.Action)) {
	case "start":
		return engine.StartCommand{
			Words:     msg.Words,
			Lines:     msg.Lines,
			WordCount: msg.WordCount,
		}, nil
	case "join":
		return engine.JoinCommand{Words: msg.Words}, nil
	case "status":
		return engine.StatusCommand{}, nil
	case "abandon":
		return engine.AbandonCommand{}, nil
	default:
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
}
