package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// TimeLayout is fixed-width and always UTC so that text comparison and
// ORDER BY match chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime renders t for storage.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// NullTime renders t for storage, mapping the zero time to NULL.
func NullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return FormatTime(t)
}

// ParseTime parses a stored timestamp. Empty or NULL values give the zero time.
func ParseTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(TimeLayout, s.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s.String, err)
	}
	return t, nil
}

// Schema is the full database schema. Every statement is idempotent.
const Schema = `
	CREATE TABLE IF NOT EXISTS profile (
		user_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		avatar_url TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		online INTEGER NOT NULL DEFAULT 0,
		last_seen_at TEXT,
		updated_at TEXT
	);

	CREATE TABLE IF NOT EXISTS conversation (
		id TEXT PRIMARY KEY,
		participant_a TEXT NOT NULL,
		participant_b TEXT NOT NULL,
		last_message TEXT NOT NULL DEFAULT '',
		last_message_time TEXT,
		last_message_sender_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conversation_participant_a ON conversation(participant_a, updated_at);
	CREATE INDEX IF NOT EXISTS idx_conversation_participant_b ON conversation(participant_b, updated_at);

	CREATE TABLE IF NOT EXISTS message (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		text TEXT NOT NULL,
		read INTEGER NOT NULL DEFAULT 0,
		read_at TEXT,
		created_at TEXT NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversation(id)
	);

	CREATE INDEX IF NOT EXISTS idx_message_conversation ON message(conversation_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_message_unread ON message(conversation_id, receiver_id, read);

	CREATE TABLE IF NOT EXISTS outbox (
		id TEXT PRIMARY KEY,
		action_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL,
		last_attempted_at TEXT,
		created_at TEXT NOT NULL,
		error_message TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, created_at);
	`

// InitDB initializes the database schema.
// PRE: db is a valid database connection
// POST: All tables and indexes exist, foreign keys enforced
func InitDB(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// DSN builds the connection string for a file database with WAL,
// busy timeout and foreign keys enabled.
func DSN(path string) string {
	return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
}
