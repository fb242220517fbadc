package message

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vortex/internal/adapters/storage"
	domain "vortex/internal/domain/message"
)

const selectColumns = `SELECT id, conversation_id, sender_id, receiver_id, text, read, read_at, created_at FROM message`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new SQLiteStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Message by its ID.
// PRE: id is non-empty
// POST: Returns the message or an error wrapping domain.ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Message, error) {
	m, err := scanMessage(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Message{}, fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}
	return m, err
}

// ListByConversation returns the messages of a conversation in send order.
// A positive limit keeps only the most recent limit messages.
// PRE: conversationID is non-empty
// POST: Ordered by created_at ascending, equal timestamps in insertion order
func (s *SQLiteStore) ListByConversation(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx,
			`SELECT * FROM (`+selectColumnsWithRowID+` WHERE conversation_id = ?
			   ORDER BY created_at DESC, rowid DESC LIMIT ?)
			 ORDER BY created_at ASC, seq ASC`,
			conversationID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			selectColumnsWithRowID+` WHERE conversation_id = ? ORDER BY created_at ASC, rowid ASC`,
			conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("list messages for %s: %w", conversationID, err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var seq int64
		m, err := scanMessageWith(rows, &seq)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

const selectColumnsWithRowID = `SELECT id, conversation_id, sender_id, receiver_id, text, read, read_at, created_at, rowid AS seq FROM message`

// ListUnread returns unread messages in a conversation addressed to receiverID.
func (s *SQLiteStore) ListUnread(ctx context.Context, conversationID, receiverID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE conversation_id = ? AND receiver_id = ? AND read = 0
		 ORDER BY created_at ASC, rowid ASC`,
		conversationID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("list unread for %s: %w", conversationID, err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MarkRead flips a single message to read.
// PRE: id is non-empty
// POST: Returns true if the message moved from unread to read; a message
//       that is already read or missing returns false
// INVARIANT: read_at is written once
func (s *SQLiteStore) MarkRead(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE message SET read = 1, read_at = ? WHERE id = ? AND read = 0`,
		storage.FormatTime(at), id)
	if err != nil {
		return false, fmt.Errorf("mark message %s read: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CountUnread counts unread messages in a conversation addressed to receiverID.
func (s *SQLiteStore) CountUnread(ctx context.Context, conversationID, receiverID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM message WHERE conversation_id = ? AND receiver_id = ? AND read = 0`,
		conversationID, receiverID).Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (domain.Message, error) {
	return scanMessageWith(row)
}

func scanMessageWith(row scanner, extra ...any) (domain.Message, error) {
	var m domain.Message
	var readAt sql.NullString
	var createdAt string
	dest := append([]any{&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Read, &readAt, &createdAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.Message{}, err
	}
	var err error
	if m.ReadAt, err = storage.ParseTime(readAt); err != nil {
		return domain.Message{}, err
	}
	if m.CreatedAt, err = storage.ParseTime(sql.NullString{String: createdAt, Valid: true}); err != nil {
		return domain.Message{}, err
	}
	return m, nil
}
