// Package domain contains core domain types for the exquisite corpse game.
package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a game session.
type Status string

const (
	// StatusPending means the starter has not yet supplied their opening words.
	StatusPending Status = "pending"
	// StatusOpen means the opening words are in and a second player can join.
	StatusOpen Status = "open"
	// StatusActive means both slots have been claimed at least once.
	StatusActive Status = "active"
	// StatusComplete means the poem reached its target length.
	StatusComplete Status = "complete"
)

// Slot identifies one of the two alternating player roles.
type Slot int

const (
	// SlotA is held by the starter and acts on even turns.
	SlotA Slot = iota
	// SlotB is held by the second player and acts on odd turns.
	SlotB
)

// PoemPairSeparator joins the two contributions that form one line.
const PoemPairSeparator = " / "

// Session is one exquisite corpse game, keyed by the channel it runs in.
// A channel hosts at most one non-complete session at a time.
type Session struct {
	ChannelID     string
	StarterID     string
	WordsPerTurn  int
	TotalLines    int
	Contributions []string
	Contributors  []string
	PlayerA       string // empty = vacant slot
	PlayerB       string
	Status        Status
	LastActivity  time.Time
	CurrentTurn   int
}

// NewSession creates an open session whose starter already supplied the
// opening contribution. The starter always holds slot A.
func NewSession(channelID, starterID, firstWords string, wordsPerTurn, totalLines int) *Session {
	return &Session{
		ChannelID:     channelID,
		StarterID:     starterID,
		WordsPerTurn:  wordsPerTurn,
		TotalLines:    totalLines,
		Contributions: []string{firstWords},
		Contributors:  []string{starterID},
		PlayerA:       starterID,
		Status:        StatusOpen,
		LastActivity:  time.Now().UTC(),
		CurrentTurn:   1,
	}
}

// NewPendingSession creates a session whose starter will supply the opening
// contribution over a direct prompt.
func NewPendingSession(channelID, starterID string, wordsPerTurn, totalLines int) *Session {
	return &Session{
		ChannelID:    channelID,
		StarterID:    starterID,
		WordsPerTurn: wordsPerTurn,
		TotalLines:   totalLines,
		PlayerA:      starterID,
		Status:       StatusPending,
		LastActivity: time.Now().UTC(),
		CurrentTurn:  1,
	}
}

// CountWords returns the number of whitespace-delimited tokens in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// TotalTurns is the number of contributions a finished poem holds.
func (s *Session) TotalTurns() int {
	return s.TotalLines * 2
}

// CurrentSlot is the slot expected to act next. The parity rule is fixed:
// an even turn counter selects slot A (the starter), odd selects slot B.
func (s *Session) CurrentSlot() Slot {
	if s.CurrentTurn%2 == 0 {
		return SlotA
	}
	return SlotB
}

// CurrentPlayer returns the identity expected to act next, or empty if the
// session is open (no opponent yet) or the expected slot is vacant.
func (s *Session) CurrentPlayer() string {
	if s.Status == StatusOpen {
		return ""
	}
	return s.Occupant(s.CurrentSlot())
}

// Occupant returns the identity holding the given slot, empty if vacant.
func (s *Session) Occupant(slot Slot) string {
	if slot == SlotA {
		return s.PlayerA
	}
	return s.PlayerB
}

// OccupySlot assigns playerID to the given slot.
func (s *Session) OccupySlot(slot Slot, playerID string) {
	if slot == SlotA {
		s.PlayerA = playerID
		return
	}
	s.PlayerB = playerID
}

// LastWord returns the final token of the most recent contribution, or empty
// if nothing has been contributed yet.
func (s *Session) LastWord() string {
	if len(s.Contributions) == 0 {
		return ""
	}
	fields := strings.Fields(s.Contributions[len(s.Contributions)-1])
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// LinesComplete is the number of finished lines (two contributions each).
func (s *Session) LinesComplete() int {
	return len(s.Contributions) / 2
}

// Submit validates and applies a contribution from playerID, driving the
// lifecycle forward: a pending starter's opening words open the session, a
// second player's words activate it, and subsequent words advance turns.
// A player may claim the vacant slot whose turn it is by submitting that
// turn's words; the claim and the advance are one step.
func (s *Session) Submit(playerID, words string) error {
	if got := CountWords(words); got != s.WordsPerTurn {
		return &WordCountError{Want: s.WordsPerTurn, Got: got}
	}

	switch s.Status {
	case StatusPending:
		if playerID != s.StarterID {
			return ErrNotYourTurn
		}
		s.Contributions = []string{words}
		s.Contributors = []string{s.StarterID}
		s.Status = StatusOpen
		s.LastActivity = time.Now().UTC()
		return nil

	case StatusOpen:
		s.PlayerB = playerID
		s.Status = StatusActive
		s.advance(playerID, words)
		return nil

	case StatusActive:
		slot := s.CurrentSlot()
		switch occupant := s.Occupant(slot); occupant {
		case playerID:
		case "":
			s.OccupySlot(slot, playerID)
		default:
			return ErrNotYourTurn
		}
		s.advance(playerID, words)
		return nil

	default:
		return ErrNotYourTurn
	}
}

// advance appends an accepted contribution and moves the turn counter,
// completing the session once the poem is full.
func (s *Session) advance(playerID, words string) {
	s.Contributions = append(s.Contributions, words)
	s.Contributors = append(s.Contributors, playerID)
	s.CurrentTurn++
	s.LastActivity = time.Now().UTC()

	if s.CurrentTurn >= s.TotalTurns() {
		s.Status = StatusComplete
	}
}

// Poem assembles the finished (or in-progress) poem, pairing contributions
// into lines. A trailing unpaired contribution forms its own line.
func (s *Session) Poem() string {
	var lines []string
	for i := 0; i < len(s.Contributions); i += 2 {
		if i+1 < len(s.Contributions) {
			lines = append(lines, s.Contributions[i]+PoemPairSeparator+s.Contributions[i+1])
		} else {
			lines = append(lines, s.Contributions[i])
		}
	}
	return strings.Join(lines, "\n")
}

// UniqueContributors lists distinct contributor identities in first-seen
// order, for completion credits.
func (s *Session) UniqueContributors() []string {
	var seen []string
	for _, id := range s.Contributors {
		found := false
		for _, prev := range seen {
			if prev == id {
				found = true
				break
			}
		}
		if !found {
			seen = append(seen, id)
		}
	}
	return seen
}

// SlotIsOpen reports whether a new player could claim a slot right now.
func (s *Session) SlotIsOpen() bool {
	switch s.Status {
	case StatusPending:
		return false // nothing to respond to until the starter submits
	case StatusOpen:
		return true
	case StatusActive:
		return s.Occupant(s.CurrentSlot()) == ""
	default:
		return false
	}
}

// VacateCurrentSlot clears whichever slot matches the current turn parity
// and returns the identity that held it, empty if it was already vacant.
func (s *Session) VacateCurrentSlot() string {
	slot := s.CurrentSlot()
	vacated := s.Occupant(slot)
	s.OccupySlot(slot, "")
	return vacated
}

// Vacate clears every slot held by playerID, for explicit withdrawal.
func (s *Session) Vacate(playerID string) {
	if s.PlayerA == playerID {
		s.PlayerA = ""
	}
	if s.PlayerB == playerID {
		s.PlayerB = ""
	}
}
