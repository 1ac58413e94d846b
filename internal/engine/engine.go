package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/17z7h0m4s/exquisite-corpse/internal/domain"
	"github.com/17z7h0m4s/exquisite-corpse/internal/shared"
	"github.com/17z7h0m4s/exquisite-corpse/internal/store"
)

const persistFailureReply = "The game could not be saved. Please try again; report this if it keeps happening."

// Engine owns every live session, the routing indices, and a handle to the
// persistence store. All mutation of one session is serialized behind a
// per-session lock; the store is the source of truth across restarts.
type Engine struct {
	repo   store.Repository
	notify Notifier
	router *Router

	defaultLines int
	defaultWords int

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// sessionEntry pairs a session with its exclusive lock. Command handlers,
// the free-text handler and the sweep all take mu before touching s.
type sessionEntry struct {
	mu sync.Mutex
	s  *domain.Session
}

// New creates an engine. Call Load before serving traffic.
func New(repo store.Repository, notify Notifier, defaultLines, defaultWords int) *Engine {
	return &Engine{
		repo:         repo,
		notify:       notify,
		router:       NewRouter(),
		defaultLines: defaultLines,
		defaultWords: defaultWords,
		sessions:     make(map[string]*sessionEntry),
	}
}

// Load rebuilds in-memory state from the store: every non-complete session
// is indexed and its occupants re-bound, and pending turns are re-marked so
// players can resume mid-prompt across a restart. Returns the number of
// sessions resumed.
func (e *Engine) Load(ctx context.Context) (int, error) {
	sessions, err := e.repo.LoadOpenSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("load sessions: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range sessions {
		e.sessions[s.ChannelID] = &sessionEntry{s: s}

		for _, playerID := range []string{s.PlayerA, s.PlayerB} {
			if playerID == "" {
				continue
			}
			if err := e.router.Bind(playerID, s.ChannelID); err != nil {
				slog.Warn("skipping conflicting binding during load",
					"player_id", playerID, "channel_id", s.ChannelID)
			}
		}

		switch {
		case s.Status == domain.StatusPending && s.PlayerA != "":
			e.router.MarkAwaiting(s.PlayerA, s.ChannelID)
		case s.Status == domain.StatusActive && s.CurrentPlayer() != "":
			e.router.MarkAwaiting(s.CurrentPlayer(), s.ChannelID)
		}
	}

	return len(sessions), nil
}

// HandleCommand applies a structured command from playerID in channelID and
// returns the synchronous reply. Asynchronous notifications are delivered
// through the Notifier after all locks are released.
func (e *Engine) HandleCommand(ctx context.Context, playerID, channelID string, cmd Command) Reply {
	switch c := cmd.(type) {
	case StartCommand:
		return e.handleStart(ctx, playerID, channelID, c)
	case JoinCommand:
		return e.handleJoin(ctx, playerID, channelID, c)
	case StatusCommand:
		return e.handleStatus(ctx, playerID, channelID)
	case AbandonCommand:
		return e.handleAbandon(ctx, playerID)
	default:
		return Reply{Text: "Unknown action. Use: start, join, status, or abandon.", Ephemeral: true}
	}
}

func (e *Engine) handleStart(ctx context.Context, playerID, channelID string, cmd StartCommand) Reply {
	if _, ok := e.router.SessionOf(playerID); ok {
		return Reply{Text: "You're already in a game. Try status, or abandon it first.", Ephemeral: true}
	}

	lines := cmd.Lines
	if lines <= 0 {
		lines = e.defaultLines
	}
	wordCount := cmd.WordCount
	if wordCount <= 0 {
		wordCount = e.defaultWords
	}

	words := strings.TrimSpace(cmd.Words)
	if words != "" {
		if got := domain.CountWords(words); got != wordCount {
			return Reply{
				Text:      fmt.Sprintf("Need exactly %d words. You gave %d.", wordCount, got),
				Ephemeral: true,
			}
		}
	}

	e.mu.Lock()
	if existing, ok := e.sessions[channelID]; ok && existing.s.Status != domain.StatusComplete {
		e.mu.Unlock()
		return Reply{Text: "There's already an active game in this channel.", Ephemeral: true}
	}

	var session *domain.Session
	if words != "" {
		session = domain.NewSession(channelID, playerID, words, wordCount, lines)
	} else {
		session = domain.NewPendingSession(channelID, playerID, wordCount, lines)
	}
	e.sessions[channelID] = &sessionEntry{s: session}
	e.mu.Unlock()

	if err := e.router.Bind(playerID, channelID); err != nil {
		e.removeSession(channelID)
		return Reply{Text: "You're already in a game. Try status, or abandon it first.", Ephemeral: true}
	}

	if err := e.saveSession(ctx, session); err != nil {
		return Reply{Text: persistFailureReply, Ephemeral: true}
	}

	name := e.notify.DisplayName(ctx, playerID)
	header := fmt.Sprintf("**Exquisite Corpse** — %d lines, %d words/turn", lines, wordCount)

	if words != "" {
		slog.Info("game started", "channel_id", channelID, "player_id", playerID,
			"lines", lines, "words_per_turn", wordCount)
		return Reply{Text: fmt.Sprintf("%s\n\n*%s* started a poem.\nSend `join` to play.", header, name)}
	}

	e.router.MarkAwaiting(playerID, channelID)
	slog.Info("pending game started", "channel_id", channelID, "player_id", playerID)

	e.deliver(ctx, []notice{{
		playerID:  playerID,
		channelID: channelID,
		text: fmt.Sprintf("**Exquisite Corpse** — You're starting a new poem!\n\nSend your first %d words:",
			wordCount),
		fallback: fmt.Sprintf("*%s* — I can't message you directly. Send your first %d words here once you can.",
			name, wordCount),
	}})

	return Reply{Text: fmt.Sprintf("%s\n\n*%s* is starting a poem...\nSend `join` to play (once ready).", header, name)}
}

func (e *Engine) handleJoin(ctx context.Context, playerID, channelID string, cmd JoinCommand) Reply {
	entry, ok := e.session(channelID)
	if !ok {
		return Reply{Text: "No active game here. Send `start` to begin.", Ephemeral: true}
	}

	entry.mu.Lock()
	s := entry.s

	if s.Status == domain.StatusComplete {
		entry.mu.Unlock()
		return Reply{Text: "No active game here. Send `start` to begin.", Ephemeral: true}
	}
	if s.Status == domain.StatusPending {
		entry.mu.Unlock()
		return Reply{Text: "Game is waiting for the starter to submit their words. Try again shortly.", Ephemeral: true}
	}
	if bound, ok := e.router.SessionOf(playerID); ok && bound != channelID {
		entry.mu.Unlock()
		return Reply{Text: "You're already in a game in another channel. Abandon it first.", Ephemeral: true}
	}
	if !s.SlotIsOpen() {
		entry.mu.Unlock()
		return Reply{Text: "This game already has two active players.", Ephemeral: true}
	}
	if s.Status == domain.StatusOpen && playerID == s.StarterID {
		entry.mu.Unlock()
		return Reply{Text: "You can't play against yourself.", Ephemeral: true}
	}

	name := e.notify.DisplayName(ctx, playerID)
	takeover := s.Status == domain.StatusActive

	words := strings.TrimSpace(cmd.Words)
	if words == "" {
		// Claim the slot now, collect the words over a direct prompt.
		if s.Status == domain.StatusOpen {
			s.PlayerB = playerID
			s.Status = domain.StatusActive
		} else {
			s.OccupySlot(s.CurrentSlot(), playerID)
		}

		if err := e.router.Bind(playerID, channelID); err != nil {
			s.Vacate(playerID)
			entry.mu.Unlock()
			return Reply{Text: "You're already in a game in another channel. Abandon it first.", Ephemeral: true}
		}
		e.router.MarkAwaiting(playerID, channelID)

		if err := e.saveSession(ctx, s); err != nil {
			entry.mu.Unlock()
			return Reply{Text: persistFailureReply, Ephemeral: true}
		}

		prompt := turnPrompt(s)
		fallback := fmt.Sprintf("*%s* — I can't message you directly. Last word: **%s**", name, s.LastWord())
		entry.mu.Unlock()

		e.deliver(ctx, []notice{{playerID: playerID, channelID: channelID, text: prompt, fallback: fallback}})
		return Reply{Text: fmt.Sprintf("*%s* joined! Watch for a direct prompt.", name)}
	}

	if err := s.Submit(playerID, words); err != nil {
		entry.mu.Unlock()
		return errorReply(err, s.WordsPerTurn)
	}
	if err := e.router.Bind(playerID, channelID); err != nil {
		// Submit already validated eligibility; a conflicting binding here
		// means a concurrent command won, so surface that.
		entry.mu.Unlock()
		return Reply{Text: "You're already in a game in another channel. Abandon it first.", Ephemeral: true}
	}

	if err := e.saveSession(ctx, s); err != nil {
		entry.mu.Unlock()
		return Reply{Text: persistFailureReply, Ephemeral: true}
	}

	verb := "joined the poem!"
	if takeover {
		verb = "takes over!"
	}
	reply := Reply{Text: fmt.Sprintf("*%s* %s\nLines: %d/%d", name, verb, s.LinesComplete(), s.TotalLines)}

	notices := e.afterContribution(ctx, entry)
	entry.mu.Unlock()

	e.deliver(ctx, notices)
	return reply
}

func (e *Engine) handleStatus(ctx context.Context, playerID, channelID string) Reply {
	if bound, ok := e.router.SessionOf(playerID); ok {
		if entry, found := e.session(bound); found {
			entry.mu.Lock()
			s := entry.s
			turnStatus := "waiting on the other player"
			if s.CurrentPlayer() == playerID || (s.Status == domain.StatusPending && s.StarterID == playerID) {
				turnStatus = "**your turn**"
			}
			text := fmt.Sprintf("**Your game:** %s\nLines: %d/%d\nStatus: %s\nLast word: **%s**",
				bound, s.LinesComplete(), s.TotalLines, turnStatus, s.LastWord())
			entry.mu.Unlock()
			return Reply{Text: text, Ephemeral: true}
		}
	}

	if entry, ok := e.session(channelID); ok {
		entry.mu.Lock()
		s := entry.s
		if s.Status != domain.StatusComplete {
			gameStatus := "in progress"
			switch s.Status {
			case domain.StatusPending:
				gameStatus = "waiting for the starter's words"
			case domain.StatusOpen:
				gameStatus = "waiting for a second player"
			}
			text := fmt.Sprintf("**Game in this channel:**\nLines: %d/%d\nStatus: %s\nLast word: **%s**",
				s.LinesComplete(), s.TotalLines, gameStatus, s.LastWord())
			entry.mu.Unlock()
			return Reply{Text: text, Ephemeral: true}
		}
		entry.mu.Unlock()
	}

	return Reply{Text: "No active game here or involving you.", Ephemeral: true}
}

func (e *Engine) handleAbandon(ctx context.Context, playerID string) Reply {
	channelID, ok := e.router.SessionOf(playerID)
	if !ok {
		return Reply{Text: "You're not in a game.", Ephemeral: true}
	}

	e.router.Unbind(playerID)

	var notices []notice
	if entry, found := e.session(channelID); found {
		entry.mu.Lock()
		s := entry.s
		s.Vacate(playerID)
		if err := e.saveSession(ctx, s); err != nil {
			entry.mu.Unlock()
			return Reply{Text: persistFailureReply, Ephemeral: true}
		}
		name := e.notify.DisplayName(ctx, playerID)
		notices = append(notices, notice{
			channelID: channelID,
			text: fmt.Sprintf("*%s* left the poem.\n\nLast word: **%s**\nSend `join` with your %d words to continue.",
				name, s.LastWord(), s.WordsPerTurn),
		})
		entry.mu.Unlock()
	}

	slog.Info("player abandoned game", "channel_id", channelID, "player_id", playerID)
	e.deliver(ctx, notices)
	return Reply{Text: "You've left the game.", Ephemeral: true}
}

// HandleDirectText routes a free-text message from a private scope to the
// turn awaiting it, if any.
func (e *Engine) HandleDirectText(ctx context.Context, playerID, text string) Reply {
	channelID, ok := e.router.AwaitingOf(playerID)
	if !ok {
		return Reply{Text: "No pending turn. If you're in a game, wait for your turn.", Ephemeral: true}
	}

	entry, found := e.session(channelID)
	if !found {
		e.router.ClearAwaiting(playerID)
		return Reply{Text: "You don't have a pending turn right now.", Ephemeral: true}
	}

	entry.mu.Lock()
	s := entry.s

	// The slot may have changed between prompting and this reply; a stale
	// mark is cleared and the message rejected as a non-turn.
	expected := s.CurrentPlayer()
	if s.Status == domain.StatusPending {
		expected = s.StarterID
	}
	if expected != playerID {
		entry.mu.Unlock()
		e.router.ClearAwaiting(playerID)
		return Reply{Text: "You don't have a pending turn right now.", Ephemeral: true}
	}

	wasPending := s.Status == domain.StatusPending
	words := strings.TrimSpace(text)

	if err := s.Submit(playerID, words); err != nil {
		entry.mu.Unlock()
		if wc, ok := wordCountOf(err); ok {
			// Mark retained: the player simply tries again.
			return Reply{
				Text:      fmt.Sprintf("Need exactly %d words. You gave %d. Try again:", wc.Want, wc.Got),
				Ephemeral: true,
			}
		}
		return errorReply(err, s.WordsPerTurn)
	}

	e.router.ClearAwaiting(playerID)

	if err := e.saveSession(ctx, s); err != nil {
		entry.mu.Unlock()
		return Reply{Text: persistFailureReply, Ephemeral: true}
	}

	if wasPending {
		name := e.notify.DisplayName(ctx, playerID)
		entry.mu.Unlock()
		e.deliver(ctx, []notice{{
			channelID: channelID,
			text:      fmt.Sprintf("*%s*'s poem is ready!\nSend `join` to play.", name),
		}})
		return Reply{
			Text:      "✓ Your words are locked in.\nWaiting for someone to join in the channel.",
			Ephemeral: true,
		}
	}

	reply := Reply{
		Text:      fmt.Sprintf("✓ Received.\nLines: %d/%d", s.LinesComplete(), s.TotalLines),
		Ephemeral: true,
	}

	notices := e.afterContribution(ctx, entry)
	entry.mu.Unlock()

	e.deliver(ctx, notices)
	return reply
}

// afterContribution finalizes a completed session or queues the next turn
// prompt. Called with the entry lock held; returned notices are delivered
// by the caller after unlocking.
func (e *Engine) afterContribution(ctx context.Context, entry *sessionEntry) []notice {
	s := entry.s
	if s.Status == domain.StatusComplete {
		return e.finalize(ctx, s)
	}

	next := s.CurrentPlayer()
	if next == "" {
		// Expected slot is vacant; the poem waits for a takeover.
		return nil
	}

	e.router.MarkAwaiting(next, s.ChannelID)
	name := e.notify.DisplayName(ctx, next)
	return []notice{{
		playerID:  next,
		channelID: s.ChannelID,
		text:      turnPrompt(s),
		fallback:  fmt.Sprintf("*%s* — I can't message you directly. Last word: **%s**", name, s.LastWord()),
	}}
}

// finalize tears down a completed session: credits are computed, both
// occupants are unbound, and the record is removed from the live map and
// the store in the same step. Returns the completion post.
func (e *Engine) finalize(ctx context.Context, s *domain.Session) []notice {
	for _, playerID := range []string{s.PlayerA, s.PlayerB} {
		if playerID != "" {
			e.router.Unbind(playerID)
		}
	}

	e.removeSession(s.ChannelID)
	if err := e.repo.DeleteSession(ctx, s.ChannelID); err != nil {
		slog.Error("failed to delete completed session", "channel_id", s.ChannelID, "error", err)
	}

	credits := make([]string, 0, 2)
	for _, id := range s.UniqueContributors() {
		credits = append(credits, e.notify.DisplayName(ctx, id))
	}

	slog.Info("game complete", "channel_id", s.ChannelID, "lines", s.TotalLines,
		"contributors", len(credits))

	return []notice{{
		channelID: s.ChannelID,
		text: fmt.Sprintf("**Exquisite Corpse — Complete**\n\n%s\n\n*Contributors: %s*",
			s.Poem(), strings.Join(credits, ", ")),
	}}
}

// saveSession persists a snapshot, retrying briefly on SQLite lock
// contention. A final failure is loud: the in-memory transition stands but
// the caller must withhold its success reply.
func (e *Engine) saveSession(ctx context.Context, s *domain.Session) error {
	const maxRetries = 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		if err = e.repo.SaveSession(ctx, s); err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) || i == maxRetries-1 {
			break
		}
		delay := baseDelay * time.Duration(1<<i)
		slog.Debug("session save hit lock contention, retrying",
			"channel_id", s.ChannelID, "attempt", i+1, "delay", delay)
		time.Sleep(delay)
	}

	slog.Error("failed to persist session", "channel_id", s.ChannelID, "error", err)
	return fmt.Errorf("persist session %s: %w", s.ChannelID, err)
}

func (e *Engine) session(channelID string) (*sessionEntry, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.sessions[channelID]
	return entry, ok
}

func (e *Engine) removeSession(channelID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, channelID)
}

func turnPrompt(s *domain.Session) string {
	return fmt.Sprintf("**Exquisite Corpse** — Your turn!\nLines: %d/%d\n\nLast word: **%s**\n\nReply with exactly %d words:",
		s.LinesComplete(), s.TotalLines, s.LastWord(), s.WordsPerTurn)
}

func wordCountOf(err error) (*domain.WordCountError, bool) {
	var wc *domain.WordCountError
	if errors.As(err, &wc) {
		return wc, true
	}
	return nil, false
}

func errorReply(err error, wordsPerTurn int) Reply {
	if wc, ok := wordCountOf(err); ok {
		return Reply{
			Text:      fmt.Sprintf("Need exactly %d words. You gave %d.", wc.Want, wc.Got),
			Ephemeral: true,
		}
	}
	switch {
	case errors.Is(err, domain.ErrNotYourTurn):
		return Reply{Text: "It's not your turn right now.", Ephemeral: true}
	case errors.Is(err, domain.ErrSlotUnavailable):
		return Reply{Text: "This game already has two active players.", Ephemeral: true}
	default:
		return Reply{Text: fmt.Sprintf("That didn't work: %v (expected %d words).", err, wordsPerTurn), Ephemeral: true}
	}
}
