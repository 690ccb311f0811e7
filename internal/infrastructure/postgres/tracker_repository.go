package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nursinghomes/internal/domain/update"
)

// TrackerRepository stores the single last-update row.
type TrackerRepository struct {
	db *DB
}

func NewTrackerRepository(db *DB) *TrackerRepository {
	return &TrackerRepository{db: db}
}

func (r *TrackerRepository) Get(ctx context.Context) (*update.Tracker, error) {
	var t update.Tracker
	err := r.db.QueryRowContext(ctx,
		`SELECT last_update, updated_at FROM update_tracker WHERE id = 1`,
	).Scan(&t.LastUpdate, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get update tracker: %w", err)
	}
	return &t, nil
}

func (r *TrackerRepository) Set(ctx context.Context, lastUpdate time.Time) error {
	query := `
		INSERT INTO update_tracker (id, last_update, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE
		SET last_update = EXCLUDED.last_update, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, lastUpdate.UTC()); err != nil {
		return fmt.Errorf("failed to set update tracker: %w", err)
	}
	return nil
}
