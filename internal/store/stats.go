// ABOUTME: Usage-stat repository operations over the SQLite engine
// ABOUTME: Pure appends with time-ranged listing and per-day aggregation

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// RecordStat appends one usage record. Stats carry no foreign key;
// the detail document is stored opaquely.
func (s *SQLiteStore) RecordStat(ctx context.Context, category string, detail map[string]any) (*Stat, error) {
	doc, err := marshalDoc(detail)
	if err != nil {
		return nil, classify("recording stat", err)
	}

	stat := &Stat{
		Category: category,
		Detail:   detail,
	}
	if stat.Detail == nil {
		stat.Detail = map[string]any{}
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		stat.CreatedAt = nowUTC()
		result, err := tx.ExecContext(ctx, `
			INSERT INTO stats (category, detail, created_at)
			VALUES (?, json(?), ?)
		`, category, doc, formatTime(stat.CreatedAt))
		if err != nil {
			return err
		}
		stat.Seq, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading sequence number: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, classify("recording stat", err)
	}

	s.logger.Debug("recorded stat", "seq", stat.Seq, "category", category)
	return stat, nil
}

// ListStats returns usage records in ascending sequence (time) order,
// optionally bounded by the filter's time range.
func (s *SQLiteStore) ListStats(ctx context.Context, filter StatFilter) ([]*Stat, error) {
	query := `
		SELECT seq, category, detail, created_at
		FROM stats
		WHERE 1=1
	`
	var args []any
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, formatTime(filter.Since))
	}
	if !filter.Until.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, formatTime(filter.Until))
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("querying stats", err)
	}
	defer rows.Close()

	stats := []*Stat{}
	for rows.Next() {
		var stat Stat
		var detail, createdAt string
		if err := rows.Scan(&stat.Seq, &stat.Category, &detail, &createdAt); err != nil {
			return nil, classify("scanning stat", err)
		}
		if stat.Detail, err = unmarshalDoc(detail); err != nil {
			return nil, classify("scanning stat", err)
		}
		if stat.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, classify("scanning stat", err)
		}
		stats = append(stats, &stat)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterating stats", err)
	}
	return stats, nil
}

// AggregateStats counts records per day and category over the last
// `days` days, most recent day first.
func (s *SQLiteStore) AggregateStats(ctx context.Context, days int) ([]*StatCount, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := nowUTC().AddDate(0, 0, -days)

	rows, err := s.db.QueryContext(ctx, `
		SELECT DATE(created_at), category, COUNT(*)
		FROM stats
		WHERE created_at >= ?
		GROUP BY DATE(created_at), category
		ORDER BY DATE(created_at) DESC, category ASC
	`, formatTime(cutoff))
	if err != nil {
		return nil, classify("aggregating stats", err)
	}
	defer rows.Close()

	counts := []*StatCount{}
	for rows.Next() {
		var c StatCount
		if err := rows.Scan(&c.Date, &c.Category, &c.Count); err != nil {
			return nil, classify("scanning stat count", err)
		}
		counts = append(counts, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterating stat counts", err)
	}
	return counts, nil
}
