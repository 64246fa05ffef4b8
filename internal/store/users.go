// ABOUTME: User repository operations over the SQLite engine
// ABOUTME: Upsert-by-id with attribute document merging, plus lookup

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SaveUser upserts a user: unknown ids are inserted, known ids have the
// attribute document merged (RFC 7396 semantics via SQLite json_patch)
// and the update timestamp refreshed. The merge happens inside the
// engine's conflict resolution, so concurrent saves never interleave
// half-merged documents. Idempotent for identical input, modulo
// timestamps.
func (s *SQLiteStore) SaveUser(ctx context.Context, id string, attributes map[string]any) (*User, error) {
	doc, err := marshalDoc(attributes)
	if err != nil {
		return nil, classify("saving user", err)
	}

	var user *User
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(nowUTC())
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (user_id, attributes, created_at, updated_at)
			VALUES (?, json(?), ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				attributes = json_patch(users.attributes, excluded.attributes),
				updated_at = excluded.updated_at
		`, id, doc, now, now)
		if err != nil {
			return err
		}

		user, err = scanUser(tx.QueryRowContext(ctx, `
			SELECT user_id, attributes, created_at, updated_at
			FROM users
			WHERE user_id = ?
		`, id))
		return err
	})
	if err != nil {
		return nil, classify("saving user", err)
	}

	s.logger.Debug("saved user", "user_id", id)
	return user, nil
}

// GetUser retrieves a user by id. Returns ErrNotFound for unknown ids.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		SELECT user_id, attributes, created_at, updated_at
		FROM users
		WHERE user_id = ?
	`, id))
	if err != nil {
		return nil, classify("querying user", err)
	}
	return user, nil
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	var attrs, createdAt, updatedAt string

	err := row.Scan(&user.ID, &attrs, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	if user.Attributes, err = unmarshalDoc(attrs); err != nil {
		return nil, err
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}
