package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/attunefm/attune/internal/models"
	"github.com/attunefm/attune/internal/shared"
)

// PreferencesRepository implements [models.Repository] for [models.Preferences] persistence.
//
// Each profile owns at most one preferences row; ForProfile is the usual
// entry point and creates the row with engine defaults on first access.
type PreferencesRepository struct {
	db *sql.DB
}

// NewPreferencesRepository creates a new [PreferencesRepository] with the given database connection
func NewPreferencesRepository(db *sql.DB) *PreferencesRepository {
	return &PreferencesRepository{db: db}
}

// Create inserts a new preferences row with generated ID and sequence
func (r *PreferencesRepository) Create(prefs *models.Preferences) error {
	sequence, err := NextSequence(r.db, "preferences")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	prefs.SetID(id)
	prefs.SetSequence(sequence)

	if err := prefs.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO preferences (
			id, sequence, profile_id,
			crossfade_enabled, crossfade_window_secs, crossfade_ramp_secs,
			equalizer_preset, sleep_timer_minutes,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id, sequence, prefs.ProfileID(),
		prefs.CrossfadeEnabled(), prefs.CrossfadeWindow(), prefs.CrossfadeRamp(),
		prefs.EqualizerPreset(), prefs.SleepTimerMinutes(),
		prefs.CreatedAt(), prefs.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert preferences: %w", err)
	}

	return nil
}

// ForProfile returns the preferences row for a profile, creating it with
// defaults when missing.
func (r *PreferencesRepository) ForProfile(profileID string) (*models.Preferences, error) {
	query := `
		SELECT id, sequence, profile_id,
			crossfade_enabled, crossfade_window_secs, crossfade_ramp_secs,
			equalizer_preset, sleep_timer_minutes,
			created_at, updated_at
		FROM preferences
		WHERE profile_id = ?
	`

	prefs, err := scanPreferences(r.db.QueryRow(query, profileID))
	if err == sql.ErrNoRows {
		prefs = models.NewPreferences(0, profileID)
		if err := r.Create(prefs); err != nil {
			return nil, err
		}
		return prefs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query preferences: %w", err)
	}
	return prefs, nil
}

func scanPreferences(row *sql.Row) (*models.Preferences, error) {
	var (
		id                string
		sequence          int
		profileID         string
		crossfadeEnabled  bool
		crossfadeWindow   int
		crossfadeRamp     int
		equalizerPreset   string
		sleepTimerMinutes int
		createdAt         time.Time
		updatedAt         time.Time
	)

	err := row.Scan(&id, &sequence, &profileID,
		&crossfadeEnabled, &crossfadeWindow, &crossfadeRamp,
		&equalizerPreset, &sleepTimerMinutes,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	prefs := models.NewPreferences(sequence, profileID)
	prefs.SetID(id)
	prefs.SetCrossfadeEnabled(crossfadeEnabled)
	prefs.SetCrossfadeWindow(crossfadeWindow)
	prefs.SetCrossfadeRamp(crossfadeRamp)
	prefs.SetEqualizerPreset(equalizerPreset)
	prefs.SetSleepTimerMinutes(sleepTimerMinutes)
	prefs.SetCreatedAt(createdAt)
	prefs.SetUpdatedAt(updatedAt)
	return prefs, nil
}

// Update persists changed preference values
func (r *PreferencesRepository) Update(prefs *models.Preferences) error {
	if err := prefs.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	prefs.SetUpdatedAt(now)

	query := `
		UPDATE preferences
		SET crossfade_enabled = ?, crossfade_window_secs = ?, crossfade_ramp_secs = ?,
			equalizer_preset = ?, sleep_timer_minutes = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		prefs.CrossfadeEnabled(), prefs.CrossfadeWindow(), prefs.CrossfadeRamp(),
		prefs.EqualizerPreset(), prefs.SleepTimerMinutes(), now, prefs.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("preferences not found: %s", prefs.ID())
	}

	return nil
}

// Delete removes the preferences row for a profile
func (r *PreferencesRepository) Delete(profileID string) error {
	_, err := r.db.Exec(`DELETE FROM preferences WHERE profile_id = ?`, profileID)
	if err != nil {
		return fmt.Errorf("failed to delete preferences: %w", err)
	}
	return nil
}
