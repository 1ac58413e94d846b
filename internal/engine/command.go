// Package engine owns all live game state: the session map, the player
// routing indices, and the inactivity sweep. Every command and free-text
// turn flows through an Engine.
package engine

// Command is a structured game command, resolved from the wire format once
// at the transport boundary. The set of variants is closed.
type Command interface {
	isCommand()
}

// StartCommand creates a new session in the caller's channel. If Words is
// empty the session starts pending and the starter is prompted directly.
type StartCommand struct {
	Words     string
	Lines     int // 0 = service default
	WordCount int // 0 = service default
}

// JoinCommand claims the open slot of the channel's session. If Words is
// empty the slot is claimed and the caller is prompted directly.
type JoinCommand struct {
	Words string
}

// StatusCommand reports the caller's own session, or the channel's.
type StatusCommand struct{}

// AbandonCommand vacates the caller's slot and unbinds them.
type AbandonCommand struct{}

func (StartCommand) isCommand()   {}
func (JoinCommand) isCommand()    {}
func (StatusCommand) isCommand()  {}
func (AbandonCommand) isCommand() {}

// Reply is the synchronous textual response to a command or free-text
// message. Ephemeral replies are shown only to the sender; public replies
// are posted to the originating channel.
type Reply struct {
	Text      string
	Ephemeral bool
}
