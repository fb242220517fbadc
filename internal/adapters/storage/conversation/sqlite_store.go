package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vortex/internal/adapters/storage"
	domain "vortex/internal/domain/conversation"
	"vortex/internal/domain/message"
)

const selectColumns = `SELECT id, participant_a, participant_b, last_message, last_message_time,
	last_message_sender_id, created_at, updated_at FROM conversation`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new SQLiteStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a conversation by its ID.
// PRE: id is non-empty
// POST: Returns the conversation or an error wrapping domain.ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Conversation, error) {
	return scanConversation(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
}

// ListByParticipant returns the conversations of userID, most recent first.
// PRE: userID is non-empty
// POST: Ordered by updated_at DESC, ties broken by id
func (s *SQLiteStore) ListByParticipant(ctx context.Context, userID string) ([]domain.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE participant_a = ? OR participant_b = ? ORDER BY updated_at DESC, id ASC`,
		userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations for %s: %w", userID, err)
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// RecordMessage creates the conversation if needed, appends m and advances
// the summary, all in one transaction.
// PRE: m has been validated
// POST: On error nothing is written; a stored conversation under the same
//       ID but with other participants is never written to
// INVARIANT: last_message_time never moves backwards
func (s *SQLiteStore) RecordMessage(ctx context.Context, m message.Message) (domain.Conversation, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Conversation{}, false, fmt.Errorf("begin record message: %w", err)
	}
	defer tx.Rollback()

	c := domain.New(m.SenderID, m.ReceiverID, m.CreatedAt)
	if err := c.Validate(); err != nil {
		return domain.Conversation{}, false, err
	}
	if c.ID != m.ConversationID {
		return domain.Conversation{}, false, fmt.Errorf("message conversation %q does not match participants %q", m.ConversationID, c.ID)
	}
	createdAt := storage.FormatTime(m.CreatedAt)

	res, err := tx.ExecContext(ctx,
		`INSERT INTO conversation (id, participant_a, participant_b, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		c.ID, c.Participants[0], c.Participants[1], createdAt, createdAt)
	if err != nil {
		return domain.Conversation{}, false, fmt.Errorf("create conversation %s: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Conversation{}, false, err
	}
	created := n == 1
	if !created {
		var a, b string
		if err := tx.QueryRowContext(ctx,
			`SELECT participant_a, participant_b FROM conversation WHERE id = ?`, c.ID).Scan(&a, &b); err != nil {
			return domain.Conversation{}, false, fmt.Errorf("load conversation %s: %w", c.ID, err)
		}
		if [2]string{a, b} != c.Participants {
			return domain.Conversation{}, false, fmt.Errorf("%w: %s is held by %s and %s", domain.ErrParticipantClash, c.ID, a, b)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO message (id, conversation_id, sender_id, receiver_id, text, read, read_at, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, NULL, ?)`,
		m.ID, m.ConversationID, m.SenderID, m.ReceiverID, m.Text, createdAt); err != nil {
		return domain.Conversation{}, false, fmt.Errorf("insert message %s: %w", m.ID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversation SET last_message = ?, last_message_time = ?, last_message_sender_id = ?, updated_at = ?
		 WHERE id = ? AND (last_message_time IS NULL OR last_message_time <= ?)`,
		m.Text, createdAt, m.SenderID, createdAt, c.ID, createdAt); err != nil {
		return domain.Conversation{}, false, fmt.Errorf("update summary %s: %w", c.ID, err)
	}

	stored, err := scanConversation(tx.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, c.ID))
	if err != nil {
		return domain.Conversation{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Conversation{}, false, fmt.Errorf("commit record message: %w", err)
	}
	return stored, created, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (domain.Conversation, error) {
	var c domain.Conversation
	var lastTime sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.Participants[0], &c.Participants[1], &c.LastMessage, &lastTime,
		&c.LastMessageSenderID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Conversation{}, fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	if c.LastMessageTime, err = storage.ParseTime(lastTime); err != nil {
		return domain.Conversation{}, err
	}
	if c.CreatedAt, err = storage.ParseTime(sql.NullString{String: createdAt, Valid: true}); err != nil {
		return domain.Conversation{}, err
	}
	if c.UpdatedAt, err = storage.ParseTime(sql.NullString{String: updatedAt, Valid: true}); err != nil {
		return domain.Conversation{}, err
	}
	return c, nil
}
