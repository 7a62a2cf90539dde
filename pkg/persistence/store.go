// Package persistence provides the SQLite session store: seen items,
// interactions, and the counters behind the session report. The store is a
// plain constructed value passed to whoever needs it; there is no singleton.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"feedpilot/pkg/logx"
	"feedpilot/pkg/proto"
)

const schema = `
CREATE TABLE IF NOT EXISTS items (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	author     TEXT NOT NULL DEFAULT '',
	text       TEXT NOT NULL DEFAULT '',
	language   TEXT NOT NULL DEFAULT '',
	like_count    INTEGER NOT NULL DEFAULT 0,
	comment_count INTEGER NOT NULL DEFAULT 0,
	seen_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS interactions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	item_id    TEXT NOT NULL DEFAULT '',
	kind       TEXT NOT NULL,
	payload    TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_interactions_session_kind
	ON interactions(session_id, kind);
`

// Store is the SQLite-backed session store.
type Store struct {
	db        *sql.DB
	sessionID string
	logger    *logx.Logger
}

// Open opens (creating if needed) the database at dbPath and prepares the
// schema. sessionID scopes every row written by this process.
func Open(dbPath, sessionID string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	logger := logx.NewLogger("persistence")
	logger.Info("database ready: %s (session %s)", dbPath, sessionID)
	return &Store{db: db, sessionID: sessionID, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// RecordItem marks an item as seen. Recording the same id again is a no-op;
// the posts-viewed counter never double-counts.
func (s *Store) RecordItem(ctx context.Context, item *proto.ContentItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO items (id, session_id, author, text, language, like_count, comment_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID, s.sessionID, item.Author, item.Text, string(item.Language),
		item.Metrics.LikeCount, item.Metrics.CommentCount,
	)
	if err != nil {
		return fmt.Errorf("failed to record item %s: %w", item.ID, err)
	}
	return nil
}

// RecordInteraction appends one interaction row.
func (s *Store) RecordInteraction(ctx context.Context, itemID string, kind proto.InteractionKind, payload map[string]any) error {
	encoded := "{}"
	if len(payload) > 0 {
		data, err := json.Marshal(payload)
		if err != nil {
			s.logger.Warn("payload for %s not serializable: %v", kind, err)
		} else {
			encoded = string(data)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (session_id, item_id, kind, payload)
		VALUES (?, ?, ?, ?)`,
		s.sessionID, itemID, string(kind), encoded,
	)
	if err != nil {
		return fmt.Errorf("failed to record %s interaction: %w", kind, err)
	}
	return nil
}

// ItemsSeen returns how many distinct items this session recorded.
func (s *Store) ItemsSeen(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE session_id = ?`, s.sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

// InteractionCount returns how many interactions of kind this session
// recorded.
func (s *Store) InteractionCount(ctx context.Context, kind proto.InteractionKind) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM interactions WHERE session_id = ? AND kind = ?`,
		s.sessionID, string(kind),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s interactions: %w", kind, err)
	}
	return count, nil
}

// SessionSummary aggregates the session counters for the report.
type SessionSummary struct {
	SessionID    string                        `json:"session_id"`
	ItemsSeen    int                           `json:"items_seen"`
	Interactions map[proto.InteractionKind]int `json:"interactions"`
	GeneratedAt  time.Time                     `json:"generated_at"`
}

// Summary builds the session summary.
func (s *Store) Summary(ctx context.Context) (*SessionSummary, error) {
	items, err := s.ItemsSeen(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM interactions
		WHERE session_id = ? GROUP BY kind`, s.sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate interactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	interactions := make(map[proto.InteractionKind]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan interaction row: %w", err)
		}
		interactions[proto.InteractionKind(kind)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read interaction rows: %w", err)
	}

	return &SessionSummary{
		SessionID:    s.sessionID,
		ItemsSeen:    items,
		Interactions: interactions,
		GeneratedAt:  time.Now().UTC(),
	}, nil
}
