package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/attunefm/attune/internal/models"
	"github.com/attunefm/attune/internal/shared"
)

// HistoryRepository implements persistence for [models.HistoryEntry] rows.
//
// History is append-mostly: one row per track transition, pruned by age.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new [HistoryRepository] with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Create inserts a history row with generated ID and sequence
func (r *HistoryRepository) Create(entry *models.HistoryEntry) error {
	sequence, err := NextSequence(r.db, "history")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	entry.SetID(id)
	entry.SetSequence(sequence)

	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO history (id, sequence, track_id, title, artist, cause, played_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, id, sequence, entry.TrackID(), entry.Title(), entry.Artist(),
		string(entry.Cause()), entry.PlayedAt(), entry.CreatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	return nil
}

// Recent returns the newest entries up to limit, most recent first
func (r *HistoryRepository) Recent(limit int) ([]*models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, sequence, track_id, title, artist, cause, played_at, created_at
		FROM history
		ORDER BY played_at DESC, sequence DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []*models.HistoryEntry{}
	for rows.Next() {
		entry, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// ForTrack returns every play of one track, most recent first
func (r *HistoryRepository) ForTrack(trackID string) ([]*models.HistoryEntry, error) {
	query := `
		SELECT id, sequence, track_id, title, artist, cause, played_at, created_at
		FROM history
		WHERE track_id = ?
		ORDER BY played_at DESC
	`

	rows, err := r.db.Query(query, trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []*models.HistoryEntry{}
	for rows.Next() {
		entry, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func scanHistory(rows *sql.Rows) (*models.HistoryEntry, error) {
	var (
		id        string
		sequence  int
		trackID   string
		title     string
		artist    string
		cause     string
		playedAt  time.Time
		createdAt time.Time
	)
	if err := rows.Scan(&id, &sequence, &trackID, &title, &artist, &cause, &playedAt, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan history entry: %w", err)
	}

	track := models.Track{ID: trackID, Title: title, Artist: artist}
	entry := models.NewHistoryEntry(sequence, track, models.TransitionCause(cause))
	entry.SetID(id)
	entry.SetPlayedAt(playedAt)
	entry.SetCreatedAt(createdAt)
	return entry, nil
}

// PruneOlderThan deletes entries played before the cutoff and reports how
// many rows were removed.
func (r *HistoryRepository) PruneOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM history WHERE played_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return result.RowsAffected()
}
