package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vortex/internal/adapters/storage"
	domain "vortex/internal/domain/profile"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new SQLiteStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a profile by user ID.
func (s *SQLiteStore) GetByID(ctx context.Context, userID string) (domain.Profile, error) {
	var p domain.Profile
	var lastSeen, updated sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, display_name, avatar_url, email, online, last_seen_at, updated_at
		 FROM profile WHERE user_id = ?`, userID).
		Scan(&p.UserID, &p.DisplayName, &p.AvatarURL, &p.Email, &p.Online, &lastSeen, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Profile{}, fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}
	if err != nil {
		return domain.Profile{}, err
	}
	if p.LastSeenAt, err = storage.ParseTime(lastSeen); err != nil {
		return domain.Profile{}, err
	}
	if p.UpdatedAt, err = storage.ParseTime(updated); err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}

// Save persists a profile (insert or update).
// PRE: p has been validated
// POST: The stored row equals p
func (s *SQLiteStore) Save(ctx context.Context, p domain.Profile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profile (user_id, display_name, avatar_url, email, online, last_seen_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   display_name=excluded.display_name, avatar_url=excluded.avatar_url,
		   email=excluded.email, online=excluded.online,
		   last_seen_at=excluded.last_seen_at, updated_at=excluded.updated_at`,
		p.UserID, p.DisplayName, p.AvatarURL, p.Email, p.Online,
		storage.NullTime(p.LastSeenAt), storage.NullTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save profile %s: %w", p.UserID, err)
	}
	return nil
}

// SetPresence updates the online flag and last-seen time.
// PRE: userID is non-empty
// POST: Returns an error wrapping domain.ErrNotFound when the profile is missing
func (s *SQLiteStore) SetPresence(ctx context.Context, userID string, online bool, at time.Time) error {
	ts := storage.FormatTime(at)
	res, err := s.db.ExecContext(ctx,
		`UPDATE profile SET online = ?, last_seen_at = ?, updated_at = ? WHERE user_id = ?`,
		online, ts, ts, userID)
	if err != nil {
		return fmt.Errorf("set presence %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("set presence %s: %w", userID, domain.ErrNotFound)
	}
	return nil
}
