package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"imgapi/internal/model"

	_ "modernc.org/sqlite"
)

const (
	// keySeparator joins the image URL and the unique suffix of a history key
	keySeparator = "_"

	// labelPrefixLen is how much of the image URL a history label shows
	labelPrefixLen = 20
)

// HistoryStore keeps the runs of one session in a private in-memory SQLite
// database. Nothing is written to disk; closing the store discards history.
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore opens an empty in-memory history
func NewHistoryStore() (*HistoryStore, error) {
	db, err := sql.Open("sqlite", "file::memory:")
	if err != nil {
		return nil, err
	}

	// Every pooled connection would otherwise see its own empty :memory: database
	db.SetMaxOpenConns(1)

	s := &HistoryStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// initSchema creates the history table
func (s *HistoryStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT UNIQUE NOT NULL,
		timestamp DATETIME NOT NULL,
		endpoint TEXT NOT NULL,
		image_url TEXT NOT NULL,
		method TEXT NOT NULL DEFAULT '',
		project_id TEXT NOT NULL DEFAULT '',
		params TEXT NOT NULL DEFAULT '{}',
		status_code INTEGER NOT NULL,
		response TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// NewKey builds a history key for imageURL. The suffix is a UUID, so two runs
// against the same image never collide.
func NewKey(imageURL string) string {
	return imageURL + keySeparator + uuid.New().String()
}

// RecordSuccess inserts rec and returns its key. A key is generated when rec.Key is empty.
func (s *HistoryStore) RecordSuccess(ctx context.Context, rec *model.ResponseRecord) (string, error) {
	if rec.Key == "" {
		rec.Key = NewKey(rec.ImageURL)
	}

	paramsJSON, err := json.Marshal(rec.Params)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO history (
			key, timestamp, endpoint, image_url, method, project_id,
			params, status_code, response, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Key, rec.Timestamp.UTC(), rec.Endpoint, rec.ImageURL, rec.Method, rec.ProjectID,
		string(paramsJSON), rec.StatusCode, string(rec.Response), rec.DurationMs,
	)
	if err != nil {
		return "", fmt.Errorf("insert history entry: %w", err)
	}
	return rec.Key, nil
}

// ListRecent returns every entry, newest first
func (s *HistoryStore) ListRecent(ctx context.Context) ([]model.HistoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, timestamp, image_url
		FROM history
		ORDER BY seq DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.HistoryItem{}
	for rows.Next() {
		var key, imageURL string
		var ts time.Time
		if err := rows.Scan(&key, &ts, &imageURL); err != nil {
			return nil, err
		}
		items = append(items, model.HistoryItem{
			Key:   key,
			Label: Label(ts.Local(), key),
		})
	}
	return items, rows.Err()
}

// Label composes the display string of a history entry from its timestamp and key
func Label(ts time.Time, key string) string {
	prefix := key
	if idx := strings.LastIndex(key, keySeparator); idx != -1 {
		prefix = key[:idx]
	}
	if runes := []rune(prefix); len(runes) > labelPrefixLen {
		prefix = string(runes[:labelPrefixLen])
	}
	return fmt.Sprintf("%s - %s...", ts.Format(model.TimestampLayout), prefix)
}

// Get returns the record stored under key, or model.ErrNotFound
func (s *HistoryStore) Get(ctx context.Context, key string) (*model.ResponseRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, timestamp, endpoint, image_url, method, project_id,
		       params, status_code, response, duration_ms
		FROM history
		WHERE key = ?`, key)

	var rec model.ResponseRecord
	var paramsJSON, response string

	err := row.Scan(
		&rec.Key, &rec.Timestamp, &rec.Endpoint, &rec.ImageURL, &rec.Method, &rec.ProjectID,
		&paramsJSON, &rec.StatusCode, &response, &rec.DurationMs,
	)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.Timestamp = rec.Timestamp.Local()
	rec.Response = json.RawMessage(response)
	if err := json.Unmarshal([]byte(paramsJSON), &rec.Params); err != nil {
		return nil, fmt.Errorf("failed to parse params JSON: %w", err)
	}
	if rec.Params == nil {
		rec.Params = map[string]string{}
	}

	return &rec, nil
}

// Delete removes the entry stored under key, or returns model.ErrNotFound
func (s *HistoryStore) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM history WHERE key = ?", key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Clear removes every entry
func (s *HistoryStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM history")
	return err
}

// Count returns the number of stored entries
func (s *HistoryStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM history").Scan(&n)
	return n, err
}
