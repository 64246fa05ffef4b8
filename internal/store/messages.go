// ABOUTME: Message repository operations over the SQLite engine
// ABOUTME: Append-only transcript entries with globally monotonic sequence numbers

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// AppendMessage appends one transcript entry for a profile. The
// sequence number is assigned by the database (AUTOINCREMENT) and is
// globally monotonic across all profiles, which is strictly stronger
// than the per-profile ordering retrieval relies on. Fails with
// ErrForeignKey when the profile does not exist. No update or delete
// operation exists for messages.
func (s *SQLiteStore) AppendMessage(ctx context.Context, profileID, role, content string) (*Message, error) {
	msg := &Message{
		ProfileID: profileID,
		Role:      role,
		Content:   content,
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		msg.CreatedAt = nowUTC()
		result, err := tx.ExecContext(ctx, `
			INSERT INTO messages (profile_id, role, content, created_at)
			VALUES (?, ?, ?, ?)
		`, profileID, role, content, formatTime(msg.CreatedAt))
		if err != nil {
			return err
		}

		msg.Seq, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading sequence number: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, classify("appending message", err)
	}

	s.logger.Debug("appended message", "profile_id", profileID, "seq", msg.Seq, "role", role)
	return msg, nil
}

// ListMessages returns a profile's messages in ascending sequence
// order. When limit > 0, the most recent limit messages are returned,
// still ascending. An unknown profile yields an empty slice.
func (s *SQLiteStore) ListMessages(ctx context.Context, profileID string, limit int) ([]*Message, error) {
	var query string
	var args []any

	if limit > 0 {
		// Select the most recent N, then flip back to chronological order.
		query = `
			SELECT seq, profile_id, role, content, created_at
			FROM (
				SELECT seq, profile_id, role, content, created_at
				FROM messages
				WHERE profile_id = ?
				ORDER BY seq DESC
				LIMIT ?
			)
			ORDER BY seq ASC
		`
		args = []any{profileID, limit}
	} else {
		query = `
			SELECT seq, profile_id, role, content, created_at
			FROM messages
			WHERE profile_id = ?
			ORDER BY seq ASC
		`
		args = []any{profileID}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("querying messages", err)
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		var msg Message
		var createdAt string
		if err := rows.Scan(&msg.Seq, &msg.ProfileID, &msg.Role, &msg.Content, &createdAt); err != nil {
			return nil, classify("scanning message", err)
		}
		if msg.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, classify("scanning message", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterating messages", err)
	}
	return messages, nil
}
