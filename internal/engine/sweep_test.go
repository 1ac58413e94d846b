package engine

import (
	"context"
	"strings"
	"testing"
	"time"
)

const sweepTimeout = 2 * time.Hour

// setupActiveGame starts a 2-line game with alice and bob; it is alice's
// turn (turn 2) afterwards.
func setupActiveGame(t *testing.T) (*Engine, *fakeRepo, *fakeNotifier) {
	t.Helper()
	eng, repo, notify := newTestEngine()
	ctx := context.Background()

	eng.HandleCommand(ctx, "alice", "chan", StartCommand{Words: "a b c d e f", Lines: 2})
	eng.HandleCommand(ctx, "bob", "chan", JoinCommand{Words: "g h i j k l"})
	return eng, repo, notify
}

func backdate(t *testing.T, eng *Engine, channelID string, age time.Duration) {
	t.Helper()
	entry, ok := eng.session(channelID)
	if !ok {
		t.Fatalf("Session %s not found", channelID)
	}
	entry.mu.Lock()
	entry.s.LastActivity = time.Now().UTC().Add(-age)
	entry.mu.Unlock()
}

func TestSweepVacatesStaleSlot(t *testing.T) {
	eng, repo, notify := setupActiveGame(t)
	backdate(t, eng, "chan", 3*time.Hour)

	eng.SweepOnce(context.Background(), time.Now().UTC(), sweepTimeout)

	stored := repo.stored("chan")
	if stored == nil {
		t.Fatal("Expected session still persisted")
	}
	if stored.PlayerA != "" {
		t.Errorf("Expected slot A (alice's turn) vacated, got %q", stored.PlayerA)
	}
	if stored.PlayerB != "bob" {
		t.Errorf("Expected slot B untouched, got %q", stored.PlayerB)
	}

	if _, ok := eng.router.SessionOf("alice"); ok {
		t.Error("Expected alice unbound")
	}
	if _, ok := eng.router.AwaitingOf("alice"); ok {
		t.Error("Expected alice's awaiting mark cleared")
	}
	if _, ok := eng.router.SessionOf("bob"); !ok {
		t.Error("Expected bob still bound")
	}

	post, ok := notify.lastPost()
	if !ok || !strings.Contains(post.text, "timed out") {
		t.Fatalf("Expected timeout announcement, got %+v", post)
	}
	if !strings.Contains(post.text, "Last word: **l**") {
		t.Errorf("Expected last word in announcement, got %q", post.text)
	}
}

func TestSweepIdempotentOnVacantSlot(t *testing.T) {
	eng, _, notify := setupActiveGame(t)
	backdate(t, eng, "chan", 3*time.Hour)

	eng.SweepOnce(context.Background(), time.Now().UTC(), sweepTimeout)
	posts := len(notify.posts)

	// The vacated session is awaiting takeover; a second sweep with no new
	// activity must not re-notify.
	backdate(t, eng, "chan", 3*time.Hour)
	eng.SweepOnce(context.Background(), time.Now().UTC(), sweepTimeout)

	if len(notify.posts) != posts {
		t.Errorf("Expected no new posts on second sweep, got %d extra", len(notify.posts)-posts)
	}
}

func TestSweepSkipsFreshSessions(t *testing.T) {
	eng, repo, notify := setupActiveGame(t)

	eng.SweepOnce(context.Background(), time.Now().UTC(), sweepTimeout)

	if stored := repo.stored("chan"); stored == nil || stored.PlayerA != "alice" {
		t.Errorf("Expected fresh session untouched, got %+v", stored)
	}
	if len(notify.posts) != 0 {
		t.Errorf("Expected no notifications, got %d", len(notify.posts))
	}
}

func TestSweepSkipsNonActiveSessions(t *testing.T) {
	eng, repo, notify := newTestEngine()
	ctx := context.Background()

	eng.HandleCommand(ctx, "alice", "chan", StartCommand{Words: "a b c d e f", Lines: 2})
	backdate(t, eng, "chan", 3*time.Hour)

	eng.SweepOnce(ctx, time.Now().UTC(), sweepTimeout)

	if stored := repo.stored("chan"); stored == nil || stored.PlayerA != "alice" {
		t.Errorf("Expected open session untouched, got %+v", stored)
	}
	if len(notify.posts) != 0 {
		t.Errorf("Expected no notifications for open session, got %d", len(notify.posts))
	}
}

func TestSweepThenTakeover(t *testing.T) {
	eng, repo, _ := setupActiveGame(t)
	backdate(t, eng, "chan", 3*time.Hour)
	ctx := context.Background()

	eng.SweepOnce(ctx, time.Now().UTC(), sweepTimeout)

	// Alice's reply after being timed out is no longer a turn.
	reply := eng.HandleDirectText(ctx, "alice", "m n o p q r")
	if !strings.Contains(reply.Text, "No pending turn") {
		t.Errorf("Expected late reply rejected, got %q", reply.Text)
	}

	// Carol claims the vacated slot with the pending turn's words.
	reply = eng.HandleCommand(ctx, "carol", "chan", JoinCommand{Words: "m n o p q r"})
	if reply.Ephemeral || !strings.Contains(reply.Text, "takes over") {
		t.Errorf("Expected takeover announcement, got %q", reply.Text)
	}

	stored := repo.stored("chan")
	if stored == nil || stored.PlayerA != "carol" || stored.CurrentTurn != 3 {
		t.Fatalf("Expected carol in slot A on turn 3, got %+v", stored)
	}
}
