// Package identity provides anonymous per-device identity primitives.
// The engine trusts whatever identity the transport establishes here.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/17z7h0m4s/exquisite-corpse/internal/domain"
	"github.com/17z7h0m4s/exquisite-corpse/internal/store"
)

const (
	AnonCookieName    = "corpse_anon_id"
	DisplayNameHeader = "X-Display-Name"
	anonCookieMaxAge  = 30 * 24 * time.Hour
)

type contextKey int

const (
	playerIDKey contextKey = iota
	displayNameKey
)

var (
	anonIDPattern      = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	displayNamePattern = regexp.MustCompile(`^[A-Za-z0-9 ._-]{1,32}$`)
)

// PlayerIDFromContext extracts the player ID from the request context.
func PlayerIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(playerIDKey).(string); ok {
		return v
	}
	return ""
}

// DisplayNameFromContext extracts the display name from the request context.
func DisplayNameFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(displayNameKey).(string); ok {
		return v
	}
	return ""
}

func generateAnonID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return "anon_" + hex.EncodeToString(buf), nil
}

func isValidAnonID(id string) bool {
	return anonIDPattern.MatchString(id)
}

// DeriveDisplayName builds a stable fallback name from an anonymous ID.
func DeriveDisplayName(playerID string) string {
	if len(playerID) > 13 {
		return "anon-" + playerID[len(playerID)-8:]
	}
	return "anon-player"
}

func displayNameFromRequest(r *http.Request, playerID string) string {
	name := strings.TrimSpace(r.Header.Get(DisplayNameHeader))
	if name == "" {
		name = strings.TrimSpace(r.URL.Query().Get("name"))
	}
	if name == "" || !displayNamePattern.MatchString(name) {
		return DeriveDisplayName(playerID)
	}
	return name
}

func ensurePlayer(ctx context.Context, repo store.Repository, playerID, displayName string) error {
	player, err := repo.GetPlayer(ctx, playerID)
	if err != nil {
		return err
	}

	now := time.Now()
	if player == nil {
		return repo.UpsertPlayer(ctx, &domain.Player{
			PlayerID:    playerID,
			DisplayName: displayName,
			LastSeenAt:  now,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	player.DisplayName = displayName
	player.LastSeenAt = now
	player.UpdatedAt = now
	return repo.UpsertPlayer(ctx, player)
}

func getOrCreateAnonID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(AnonCookieName); err == nil && isValidAnonID(c.Value) {
		setAnonCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := generateAnonID()
	if err != nil {
		return "", err
	}
	setAnonCookie(w, id, isDev)
	return id, nil
}

func setAnonCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(anonCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

// Middleware injects anonymous per-device identity and a display name,
// ensuring a player row exists for display-name resolution.
func Middleware(repo store.Repository, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			playerID, err := getOrCreateAnonID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish anonymous identity"}`, http.StatusInternalServerError)
				return
			}

			displayName := displayNameFromRequest(r, playerID)
			if err := ensurePlayer(r.Context(), repo, playerID, displayName); err != nil {
				http.Error(w, `{"error":"failed to initialize anonymous player"}`, http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), playerIDKey, playerID)
			ctx = context.WithValue(ctx, displayNameKey, displayName)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
