// ABOUTME: Profile repository operations over the SQLite engine
// ABOUTME: Create with foreign-key enforcement, full-replace update, and per-user listing

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CreateProfile creates a profile owned by userID with the given
// configuration document and a generated id. Fails with ErrForeignKey
// when the user does not exist; the failed insert leaves no row.
func (s *SQLiteStore) CreateProfile(ctx context.Context, userID string, config map[string]any) (*Profile, error) {
	doc, err := marshalDoc(config)
	if err != nil {
		return nil, classify("creating profile", err)
	}

	profile := &Profile{
		ID:     uuid.New().String(),
		UserID: userID,
		Config: config,
	}
	if profile.Config == nil {
		profile.Config = map[string]any{}
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		now := nowUTC()
		profile.CreatedAt = now
		profile.UpdatedAt = now
		_, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (profile_id, user_id, config, created_at, updated_at)
			VALUES (?, ?, json(?), ?, ?)
		`, profile.ID, userID, doc, formatTime(now), formatTime(now))
		return err
	})
	if err != nil {
		return nil, classify("creating profile", err)
	}

	s.logger.Debug("created profile", "profile_id", profile.ID, "user_id", userID)
	return profile, nil
}

// GetProfile retrieves a profile by id. Returns ErrNotFound for
// unknown ids.
func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*Profile, error) {
	profile, err := scanProfileRow(s.db.QueryRowContext(ctx, `
		SELECT profile_id, user_id, config, created_at, updated_at
		FROM profiles
		WHERE profile_id = ?
	`, id))
	if err != nil {
		return nil, classify("querying profile", err)
	}
	return profile, nil
}

// UpdateProfile fully replaces the configuration document of an
// existing profile and refreshes its update timestamp. There is no
// upsert: unknown ids fail with ErrNotFound.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, id string, config map[string]any) (*Profile, error) {
	doc, err := marshalDoc(config)
	if err != nil {
		return nil, classify("updating profile", err)
	}

	var profile *Profile
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE profiles
			SET config = json(?), updated_at = ?
			WHERE profile_id = ?
		`, doc, formatTime(nowUTC()), id)
		if err != nil {
			return err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("getting rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return ErrNotFound
		}

		profile, err = scanProfileRow(tx.QueryRowContext(ctx, `
			SELECT profile_id, user_id, config, created_at, updated_at
			FROM profiles
			WHERE profile_id = ?
		`, id))
		return err
	})
	if err != nil {
		return nil, classify("updating profile", err)
	}

	s.logger.Debug("updated profile", "profile_id", id)
	return profile, nil
}

// ListProfilesForUser returns the user's profiles in creation order.
// An unknown user, or a user with no profiles, yields an empty slice,
// not an error.
func (s *SQLiteStore) ListProfilesForUser(ctx context.Context, userID string) ([]*Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT profile_id, user_id, config, created_at, updated_at
		FROM profiles
		WHERE user_id = ?
		ORDER BY rowid ASC
	`, userID)
	if err != nil {
		return nil, classify("querying profiles", err)
	}
	defer rows.Close()

	profiles := []*Profile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, classify("scanning profile", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterating profiles", err)
	}
	return profiles, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfileRow(row *sql.Row) (*Profile, error) {
	profile, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return profile, err
}

func scanProfile(row rowScanner) (*Profile, error) {
	var profile Profile
	var config, createdAt, updatedAt string

	if err := row.Scan(&profile.ID, &profile.UserID, &config, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if profile.Config, err = unmarshalDoc(config); err != nil {
		return nil, err
	}
	if profile.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if profile.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &profile, nil
}
