package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
)

var ErrTagAttached = errors.New("tag already on file")
var ErrEmptyTag = errors.New("tag name is empty")

var errAlreadyAttached = errors.New("already attached")

// NormalizeTag lowercases and trims a tag name, collapsing interior
// whitespace. Tags are stored normalized; lookups normalize first.
func NormalizeTag(in string) string {
	trimmed := strings.TrimSpace(in)
	if trimmed == "" {
		return ""
	}
	return strings.ToLower(strings.Join(strings.Fields(trimmed), " "))
}

// AddTag attaches a tag to a file, creating the tag row on first use.
// Attaching a tag the file already carries is rejected.
func (s *Store) AddTag(ctx context.Context, fileID int64, name string) (*Tag, error) {
	name = NormalizeTag(name)
	if name == "" {
		return nil, ErrEmptyTag
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists int64
	if err := tx.GetContext(ctx, &exists, "SELECT id FROM media_file WHERE id = ?", fileID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	tagID, err := attachTagTx(ctx, tx, fileID, name)
	if errors.Is(err, errAlreadyAttached) {
		return nil, ErrTagAttached
	}
	if err != nil {
		return nil, err
	}

	var tag Tag
	if err := tx.GetContext(ctx, &tag, "SELECT id, name, created_at FROM tag WHERE id = ?", tagID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &tag, nil
}

// attachTagTx finds or creates the tag row by normalized name and
// links it to the file. errAlreadyAttached signals an existing link.
func attachTagTx(ctx context.Context, tx *sqlx.Tx, fileID int64, name string) (int64, error) {
	res, err := tx.ExecContext(ctx, "INSERT INTO tag (name) VALUES (?) ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)", name)
	if err != nil {
		return 0, err
	}
	tagID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO file_tag (file_id, tag_id) VALUES (?, ?)", fileID, tagID); err != nil {
		if isDuplicate(err) {
			return tagID, errAlreadyAttached
		}
		return 0, err
	}
	return tagID, nil
}

// RemoveTag detaches a tag from a file and, when that was the last
// reference, deletes the tag row in the same transaction. The
// zero-reference check runs at delete time rather than off a cached
// count, so a concurrent re-attach keeps the tag alive.
func (s *Store) RemoveTag(ctx context.Context, fileID, tagID int64) (string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var name string
	if err := tx.GetContext(ctx, &name, "SELECT name FROM tag WHERE id = ?", tagID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM file_tag WHERE file_id = ? AND tag_id = ?", fileID, tagID)
	if err != nil {
		return "", err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return "", ErrNotFound
	}

	if err := deleteTagIfOrphanTx(ctx, tx, tagID); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return name, nil
}

func deleteTagIfOrphanTx(ctx context.Context, tx *sqlx.Tx, tagID int64) error {
	_, err := tx.ExecContext(ctx,
		"DELETE FROM tag WHERE id = ? AND NOT EXISTS (SELECT 1 FROM file_tag WHERE tag_id = ?)",
		tagID, tagID)
	return err
}

// CleanupOrphanTags removes every tag with zero file references in a
// single statement, so references attached while the sweep runs are
// never deleted out from under a file.
func (s *Store) CleanupOrphanTags(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM tag WHERE NOT EXISTS (SELECT 1 FROM file_tag WHERE file_tag.tag_id = tag.id)")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SearchTags returns up to ten tags whose name contains the query.
func (s *Store) SearchTags(ctx context.Context, q string) ([]Tag, error) {
	q = NormalizeTag(q)
	if q == "" {
		return nil, nil
	}
	var tags []Tag
	err := s.db.SelectContext(ctx, &tags,
		"SELECT id, name, created_at FROM tag WHERE name LIKE ? ORDER BY name LIMIT 10", "%"+q+"%")
	return tags, err
}

// ListTags returns every tag ordered by name.
func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	err := s.db.SelectContext(ctx, &tags, "SELECT id, name, created_at FROM tag ORDER BY name")
	return tags, err
}
