// ABOUTME: Study-progress repository operations over the SQLite engine
// ABOUTME: Per-profile work items upserted on (profile, category, item)

package store

import (
	"context"
	"database/sql"
)

// SaveProgress upserts a progress item keyed by (profile, category,
// item). New items are inserted; existing ones take the new status,
// completion percentage and notes with a refreshed update timestamp.
// Fails with ErrForeignKey when the profile does not exist.
func (s *SQLiteStore) SaveProgress(ctx context.Context, p *Progress) (*Progress, error) {
	if p.Status == "" {
		p.Status = ProgressPending
	}

	var saved *Progress
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(nowUTC())
		_, err := tx.ExecContext(ctx, `
			INSERT INTO progress (profile_id, category, item, status, completion, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(profile_id, category, item) DO UPDATE SET
				status     = excluded.status,
				completion = excluded.completion,
				notes      = excluded.notes,
				updated_at = excluded.updated_at
		`, p.ProfileID, p.Category, p.Item, p.Status, p.Completion, p.Notes, now, now)
		if err != nil {
			return err
		}

		saved, err = scanProgressRow(tx.QueryRowContext(ctx, `
			SELECT id, profile_id, category, item, status, completion, notes, created_at, updated_at
			FROM progress
			WHERE profile_id = ? AND category = ? AND item = ?
		`, p.ProfileID, p.Category, p.Item))
		return err
	})
	if err != nil {
		return nil, classify("saving progress", err)
	}

	s.logger.Debug("saved progress", "profile_id", p.ProfileID, "category", p.Category, "item", p.Item)
	return saved, nil
}

// ListProgress returns a profile's progress items in creation order.
func (s *SQLiteStore) ListProgress(ctx context.Context, profileID string) ([]*Progress, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile_id, category, item, status, completion, notes, created_at, updated_at
		FROM progress
		WHERE profile_id = ?
		ORDER BY id ASC
	`, profileID)
	if err != nil {
		return nil, classify("querying progress", err)
	}
	defer rows.Close()

	items := []*Progress{}
	for rows.Next() {
		item, err := scanProgress(rows)
		if err != nil {
			return nil, classify("scanning progress", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterating progress", err)
	}
	return items, nil
}

func scanProgressRow(row *sql.Row) (*Progress, error) {
	item, err := scanProgress(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return item, err
}

func scanProgress(row rowScanner) (*Progress, error) {
	var p Progress
	var notes sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&p.ID, &p.ProfileID, &p.Category, &p.Item, &p.Status, &p.Completion, &notes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.Notes = notes.String

	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
