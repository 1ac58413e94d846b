package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/17z7h0m4s/exquisite-corpse/internal/domain"
	"github.com/17z7h0m4s/exquisite-corpse/internal/engine"
	"github.com/go-chi/chi/v5"
)

type fakeRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	pingErr  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{sessions: make(map[string]*domain.Session)}
}

func (f *fakeRepo) SaveSession(_ context.Context, session *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *session
	f.sessions[session.ChannelID] = &copy
	return nil
}

func (f *fakeRepo) LoadOpenSessions(_ context.Context) ([]*domain.Session, error) { return nil, nil }

func (f *fakeRepo) DeleteSession(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, channelID)
	return nil
}

func (f *fakeRepo) GetPlayer(_ context.Context, _ string) (*domain.Player, error) { return nil, nil }
func (f *fakeRepo) UpsertPlayer(_ context.Context, _ *domain.Player) error        { return nil }
func (f *fakeRepo) Ping(_ context.Context) error                                  { return f.pingErr }
func (f *fakeRepo) Close() error                                                  { return nil }

type noopNotifier struct{}

func (noopNotifier) SendDirect(_ context.Context, _, _ string) error    { return nil }
func (noopNotifier) SendToChannel(_ context.Context, _, _ string) error { return nil }
func (noopNotifier) DisplayName(_ context.Context, playerID string) string {
	return playerID
}

func newTestRouter(t *testing.T) (chi.Router, *engine.Engine, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	eng := engine.New(repo, noopNotifier{}, 4, 6)

	r := chi.NewRouter()
	NewHandler(repo, eng).RegisterRoutes(r)
	return r, eng, repo
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestChannelSessionNotFound(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/channels/empty/session", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestChannelSessionReportsLiveGame(t *testing.T) {
	r, eng, _ := newTestRouter(t)

	eng.HandleCommand(context.Background(), "alice", "chan",
		engine.StartCommand{Words: "a b c d e f", Lines: 2})

	req := httptest.NewRequest(http.MethodGet, "/api/channels/chan/session", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var view engine.SessionView
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatalf("Failed to decode view: %v", err)
	}
	if view.Status != "open" || view.TotalLines != 2 || view.LastWord != "f" {
		t.Errorf("Unexpected view: %+v", view)
	}
	if !view.SlotOpen {
		t.Error("Expected open slot in view")
	}
}

func TestOwnSessionWithoutIdentity(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for anonymous caller, got %d", w.Code)
	}
}

func TestReadyReflectsDatabaseHealth(t *testing.T) {
	r, _, repo := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	repo.pingErr = context.DeadlineExceeded
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 when database is down, got %d", w.Code)
	}
}
