package store

import (
	"context"

	"github.com/jparatte/media-gallery/internal/rank"
)

// ExportRows snapshots the catalog for CSV export, ordered by id.
func (s *Store) ExportRows(ctx context.Context) ([]ExportRow, error) {
	var rows []ExportRow
	query := "SELECT id, original_name, storage_key, media_type, like_score, rating, created_at FROM media_file ORDER BY id"
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}

// ResetLikes zeroes every like score and reports rows affected.
func (s *Store) ResetLikes(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE media_file SET like_score = 0")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetRatings sets every rating back to the initial value.
func (s *Store) ResetRatings(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE media_file SET rating = ?", rank.InitialRating)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
