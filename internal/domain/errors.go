package domain

import (
	"errors"
	"fmt"
)

// Validation and routing errors. These are resolved at the command or
// message handler and never reach the store or the sweep.
var (
	// ErrNotYourTurn means the submitting identity does not hold the slot
	// the current turn belongs to.
	ErrNotYourTurn = errors.New("not your turn")

	// ErrNoPendingTurn means a free-text message arrived from an identity
	// with no turn awaiting a reply.
	ErrNoPendingTurn = errors.New("no pending turn")

	// ErrAlreadyBound means the identity already occupies a slot in a
	// different live session.
	ErrAlreadyBound = errors.New("already in a game")

	// ErrSlotUnavailable means the session has no slot open to claim.
	ErrSlotUnavailable = errors.New("no open slot")

	// ErrSessionExists means the channel already hosts a non-complete session.
	ErrSessionExists = errors.New("channel already has a game")

	// ErrNoSession means the channel hosts no live session.
	ErrNoSession = errors.New("no game in this channel")

	// ErrSessionPending means the starter has not locked in their opening
	// words yet, so nobody can join.
	ErrSessionPending = errors.New("game is waiting for its starter")

	// ErrSelfPlay means the starter tried to claim the second slot of
	// their own open game.
	ErrSelfPlay = errors.New("cannot play against yourself")
)

// WordCountError reports a contribution with the wrong number of words.
// Always recoverable: the player is re-prompted with the expected count.
type WordCountError struct {
	Want int
	Got  int
}

func (e *WordCountError) Error() string {
	return fmt.Sprintf("need exactly %d words, got %d", e.Want, e.Got)
}
