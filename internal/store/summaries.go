// ABOUTME: Conversation-summary repository operations over the SQLite engine
// ABOUTME: Append-only per-profile summaries with JSON-encoded topic lists

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SaveSummary appends a conversation summary for a profile. Fails with
// ErrForeignKey when the profile does not exist.
func (s *SQLiteStore) SaveSummary(ctx context.Context, profileID, period, content string, keyTopics []string) (*Summary, error) {
	topics, err := json.Marshal(keyTopics)
	if err != nil {
		return nil, classify("saving summary", fmt.Errorf("encoding key topics: %w", err))
	}

	summary := &Summary{
		ProfileID: profileID,
		Period:    period,
		Content:   content,
		KeyTopics: keyTopics,
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		summary.CreatedAt = nowUTC()
		result, err := tx.ExecContext(ctx, `
			INSERT INTO summaries (profile_id, period, content, key_topics, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, profileID, period, content, string(topics), formatTime(summary.CreatedAt))
		if err != nil {
			return err
		}
		summary.ID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return nil, classify("saving summary", err)
	}

	s.logger.Debug("saved summary", "profile_id", profileID, "period", period)
	return summary, nil
}

// ListSummaries returns a profile's summaries in creation order.
func (s *SQLiteStore) ListSummaries(ctx context.Context, profileID string) ([]*Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile_id, period, content, key_topics, created_at
		FROM summaries
		WHERE profile_id = ?
		ORDER BY id ASC
	`, profileID)
	if err != nil {
		return nil, classify("querying summaries", err)
	}
	defer rows.Close()

	summaries := []*Summary{}
	for rows.Next() {
		var summary Summary
		var topics sql.NullString
		var createdAt string
		if err := rows.Scan(&summary.ID, &summary.ProfileID, &summary.Period, &summary.Content, &topics, &createdAt); err != nil {
			return nil, classify("scanning summary", err)
		}
		if topics.String != "" {
			if err := json.Unmarshal([]byte(topics.String), &summary.KeyTopics); err != nil {
				return nil, classify("scanning summary", fmt.Errorf("decoding key topics: %w", err))
			}
		}
		if summary.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, classify("scanning summary", err)
		}
		summaries = append(summaries, &summary)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterating summaries", err)
	}
	return summaries, nil
}
