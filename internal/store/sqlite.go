package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/17z7h0m4s/exquisite-corpse/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		channel_id TEXT PRIMARY KEY,
		starter_id TEXT NOT NULL,
		words_per_turn INTEGER NOT NULL,
		total_lines INTEGER NOT NULL,
		contributions TEXT NOT NULL DEFAULT '[]',
		contributors TEXT NOT NULL DEFAULT '[]',
		player_a TEXT,
		player_b TEXT,
		status TEXT NOT NULL,
		last_activity TEXT NOT NULL,
		current_turn INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);

	CREATE TABLE IF NOT EXISTS players (
		player_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveSession writes a full snapshot of the session.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *domain.Session) error {
	contributions, err := json.Marshal(session.Contributions)
	if err != nil {
		return fmt.Errorf("encode contributions: %w", err)
	}
	contributors, err := json.Marshal(session.Contributors)
	if err != nil {
		return fmt.Errorf("encode contributors: %w", err)
	}

	query := `
	INSERT INTO sessions (channel_id, starter_id, words_per_turn, total_lines,
		contributions, contributors, player_a, player_b, status,
		last_activity, current_turn)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(channel_id) DO UPDATE SET
		starter_id = excluded.starter_id,
		words_per_turn = excluded.words_per_turn,
		total_lines = excluded.total_lines,
		contributions = excluded.contributions,
		contributors = excluded.contributors,
		player_a = excluded.player_a,
		player_b = excluded.player_b,
		status = excluded.status,
		last_activity = excluded.last_activity,
		current_turn = excluded.current_turn`

	_, err = s.db.ExecContext(ctx, query,
		session.ChannelID, session.StarterID, session.WordsPerTurn, session.TotalLines,
		string(contributions), string(contributors),
		nullable(session.PlayerA), nullable(session.PlayerB),
		string(session.Status),
		session.LastActivity.UTC().Format(time.RFC3339Nano),
		session.CurrentTurn,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LoadOpenSessions returns every persisted session that has not completed.
func (s *SQLiteStore) LoadOpenSessions(ctx context.Context) ([]*domain.Session, error) {
	query := `
		SELECT channel_id, starter_id, words_per_turn, total_lines,
		       contributions, contributors, player_a, player_b, status,
		       last_activity, current_turn
		FROM sessions WHERE status != ?`

	rows, err := s.db.QueryContext(ctx, query, string(domain.StatusComplete))
	if err != nil {
		return nil, fmt.Errorf("query open sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close open sessions rows", "error", closeErr)
		}
	}()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open sessions: %w", err)
	}

	return sessions, nil
}

func scanSession(rows *sql.Rows) (*domain.Session, error) {
	var session domain.Session
	var contributions, contributors, status, lastActivity string
	var playerA, playerB sql.NullString

	if err := rows.Scan(
		&session.ChannelID, &session.StarterID, &session.WordsPerTurn, &session.TotalLines,
		&contributions, &contributors, &playerA, &playerB, &status,
		&lastActivity, &session.CurrentTurn,
	); err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	if err := json.Unmarshal([]byte(contributions), &session.Contributions); err != nil {
		return nil, fmt.Errorf("decode contributions: %w", err)
	}
	if err := json.Unmarshal([]byte(contributors), &session.Contributors); err != nil {
		return nil, fmt.Errorf("decode contributors: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, lastActivity)
	if err != nil {
		return nil, fmt.Errorf("parse last_activity: %w", err)
	}

	session.PlayerA = playerA.String
	session.PlayerB = playerB.String
	session.Status = domain.Status(status)
	session.LastActivity = ts

	return &session, nil
}

// DeleteSession removes a session record.
func (s *SQLiteStore) DeleteSession(ctx context.Context, channelID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE channel_id = ?`, channelID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// GetPlayer retrieves a player by identity.
func (s *SQLiteStore) GetPlayer(ctx context.Context, playerID string) (*domain.Player, error) {
	query := `
		SELECT player_id, display_name, last_seen_at, created_at, updated_at
		FROM players WHERE player_id = ?`

	row := s.db.QueryRowContext(ctx, query, playerID)

	var player domain.Player
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&player.PlayerID, &player.DisplayName, &lastSeen, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan player row: %w", err)
	}

	player.LastSeenAt = time.Unix(lastSeen, 0)
	player.CreatedAt = time.Unix(createdAt, 0)
	player.UpdatedAt = time.Unix(updatedAt, 0)

	return &player, nil
}

// UpsertPlayer creates or updates a player record.
func (s *SQLiteStore) UpsertPlayer(ctx context.Context, player *domain.Player) error {
	query := `
	INSERT INTO players (player_id, display_name, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(player_id) DO UPDATE SET
		display_name = excluded.display_name,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		player.PlayerID, player.DisplayName,
		player.LastSeenAt.Unix(), player.CreatedAt.Unix(), player.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func nullable(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
