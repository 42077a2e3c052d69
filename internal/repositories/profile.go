package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/attunefm/attune/internal/models"
	"github.com/attunefm/attune/internal/shared"
)

// ProfileRepository implements [models.Repository] for [models.Profile] persistence.
type ProfileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new [ProfileRepository] with the given database connection
func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create inserts a new profile into the database with generated ID and sequence
func (r *ProfileRepository) Create(profile *models.Profile) error {
	sequence, err := NextSequence(r.db, "profiles")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	profile.SetID(id)
	profile.SetSequence(sequence)

	if err := profile.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO profiles (id, sequence, username, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, id, sequence, profile.Username(), profile.CreatedAt(), profile.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}

	return nil
}

// Get retrieves a profile by ID, excluding soft-deleted profiles
func (r *ProfileRepository) Get(id string) (*models.Profile, error) {
	query := `
		SELECT id, sequence, username, created_at, updated_at, deleted_at
		FROM profiles
		WHERE id = ? AND deleted_at IS NULL
	`
	return r.scanOne(r.db.QueryRow(query, id), id)
}

// Latest returns the most recently updated profile, used to pre-fill the
// username prompt on relaunch. Returns nil without error when no profile
// exists yet.
func (r *ProfileRepository) Latest() (*models.Profile, error) {
	query := `
		SELECT id, sequence, username, created_at, updated_at, deleted_at
		FROM profiles
		WHERE deleted_at IS NULL
		ORDER BY updated_at DESC
		LIMIT 1
	`
	profile, err := r.scanOne(r.db.QueryRow(query), "")
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return profile, nil
}

func (r *ProfileRepository) scanOne(row *sql.Row, id string) (*models.Profile, error) {
	var (
		profileID string
		sequence  int
		username  string
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := row.Scan(&profileID, &sequence, &username, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		if id == "" {
			return nil, err
		}
		return nil, fmt.Errorf("profile not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}

	profile := models.NewProfile(sequence, username)
	profile.SetID(profileID)
	profile.SetCreatedAt(createdAt)
	profile.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		profile.SetDeletedAt(&deletedAt.Time)
	}

	return profile, nil
}

// Update modifies an existing profile in the database
func (r *ProfileRepository) Update(profile *models.Profile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	profile.SetUpdatedAt(now)

	query := `
		UPDATE profiles
		SET username = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, profile.Username(), now, profile.ID())
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("profile not found or already deleted: %s", profile.ID())
	}

	return nil
}

// Delete soft-deletes a profile by ID
func (r *ProfileRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE profiles
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("profile not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves all profiles, excluding soft-deleted ones, newest first
func (r *ProfileRepository) List() ([]*models.Profile, error) {
	query := `
		SELECT id, sequence, username, created_at, updated_at, deleted_at
		FROM profiles
		WHERE deleted_at IS NULL
		ORDER BY sequence DESC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	profiles := []*models.Profile{}
	for rows.Next() {
		var (
			profileID string
			sequence  int
			username  string
			createdAt time.Time
			updatedAt time.Time
			deletedAt sql.NullTime
		)
		if err := rows.Scan(&profileID, &sequence, &username, &createdAt, &updatedAt, &deletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profile := models.NewProfile(sequence, username)
		profile.SetID(profileID)
		profile.SetCreatedAt(createdAt)
		profile.SetUpdatedAt(updatedAt)
		profiles = append(profiles, profile)
	}

	return profiles, rows.Err()
}
