// Package db provides the persistence layer used by the web server. It wraps
// a SQLite database holding each visitor's query history and the result
// snapshots behind share links. Callers open a single DB with New and reuse it
// for all operations.
package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"

	"Similar-Music-Go/pkg/music"
)

// MaxHistory bounds how many entries are kept per session. Older entries are
// dropped when a new one is appended.
const MaxHistory = 50

// DB wraps a sql.DB connection and exposes helper methods for the
// application's persistence layer.
type DB struct {
	*sql.DB
}

// New opens the SQLite database located at path. If the file does not
// exist it is created along with the required schema. ":memory:" opens a
// private in-memory database, which is what the tests use.
func New(path string) (*DB, error) {
	d, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// Each connection to ":memory:" is a separate database.
	if path == ":memory:" {
		d.SetMaxOpenConns(1)
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS history (id INTEGER PRIMARY KEY AUTOINCREMENT, session_id TEXT NOT NULL, input_title TEXT NOT NULL, recommendations TEXT NOT NULL, created_at TIMESTAMP NOT NULL)`,
		`CREATE INDEX IF NOT EXISTS idx_history_session ON history(session_id, id)`,
		`CREATE TABLE IF NOT EXISTS shares (id TEXT PRIMARY KEY, query TEXT, result TEXT NOT NULL, created_at TIMESTAMP NOT NULL)`,
	}
	// Errors here likely mean the database file is not writable.
	for _, s := range stmts {
		if _, err := d.Exec(s); err != nil {
			d.Close()
			return nil, fmt.Errorf("init db: %w", err)
		}
	}
	return &DB{d}, nil
}

// AppendHistory stores e for sessionID and trims the session to the newest
// MaxHistory entries.
func (db *DB) AppendHistory(ctx context.Context, sessionID string, e music.HistoryEntry) error {
	recs, err := json.Marshal(e.Recommendations)
	if err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO history(session_id, input_title, recommendations, created_at) VALUES(?,?,?,?)`,
		sessionID, e.InputTitle, string(recs), e.CreatedAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM history WHERE session_id=? AND id NOT IN (SELECT id FROM history WHERE session_id=? ORDER BY id DESC LIMIT ?)`,
		sessionID, sessionID, MaxHistory); err != nil {
		return err
	}
	return tx.Commit()
}

// ListHistory returns the entries stored for sessionID, oldest first.
func (db *DB) ListHistory(ctx context.Context, sessionID string) ([]music.HistoryEntry, error) {
	rows, err := db.QueryContext(ctx, `SELECT input_title, recommendations, created_at FROM history WHERE session_id=? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []music.HistoryEntry
	for rows.Next() {
		var (
			e    music.HistoryEntry
			recs string
		)
		if err := rows.Scan(&e.InputTitle, &recs, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(recs), &e.Recommendations); err != nil {
			return nil, fmt.Errorf("decode history row: %w", err)
		}
		out = append(out, e)
	}
	// rows.Err returns the first error encountered while iterating.
	return out, rows.Err()
}

// ClearHistory deletes every entry of sessionID.
func (db *DB) ClearHistory(ctx context.Context, sessionID string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM history WHERE session_id=?`, sessionID)
	return err
}

// SessionHistory is the music.HistoryStore of one visitor.
type SessionHistory struct {
	db        *DB
	sessionID string
}

var _ music.HistoryStore = (*SessionHistory)(nil)

// History returns the store for sessionID.
func (db *DB) History(sessionID string) *SessionHistory {
	return &SessionHistory{db: db, sessionID: sessionID}
}

func (h *SessionHistory) Append(ctx context.Context, e music.HistoryEntry) error {
	return h.db.AppendHistory(ctx, h.sessionID, e)
}

func (h *SessionHistory) All(ctx context.Context) ([]music.HistoryEntry, error) {
	return h.db.ListHistory(ctx, h.sessionID)
}

// Share is a stored result reachable through a short link.
type Share struct {
	ID        string
	Query     string
	Result    music.RecommendationResult
	CreatedAt time.Time
}

// randomString returns a URL-safe base64 string with n bytes of entropy. It is
// used for generating non-guessable IDs.
func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CreateShare stores a snapshot of res under a random ID and returns the ID
// for link construction.
func (db *DB) CreateShare(ctx context.Context, query string, res music.RecommendationResult) (string, error) {
	body, err := json.Marshal(res)
	if err != nil {
		return "", err
	}
	id, err := randomString(9)
	if err != nil {
		return "", err
	}
	_, err = db.ExecContext(ctx, `INSERT INTO shares(id, query, result, created_at) VALUES(?,?,?,?)`, id, query, string(body), time.Now().UTC())
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetShare looks up a snapshot by ID. sql.ErrNoRows is returned if the ID
// does not exist.
func (db *DB) GetShare(ctx context.Context, id string) (Share, error) {
	var (
		s    Share
		body string
	)
	err := db.QueryRowContext(ctx, `SELECT id, query, result, created_at FROM shares WHERE id=?`, id).Scan(&s.ID, &s.Query, &body, &s.CreatedAt)
	if err != nil {
		return Share{}, err
	}
	if err := json.Unmarshal([]byte(body), &s.Result); err != nil {
		return Share{}, fmt.Errorf("decode share %s: %w", id, err)
	}
	if s.Result.Similar == nil {
		s.Result.Similar = []music.Recommendation{}
	}
	return s, nil
}

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
