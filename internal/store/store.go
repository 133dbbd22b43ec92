package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jparatte/media-gallery/internal/rank"
)

var ErrNotFound = errors.New("not found")
var ErrDuplicate = errors.New("duplicate content")
var ErrSameFile = errors.New("cannot compare a file with itself")
var ErrNotEnoughFiles = errors.New("not enough files")

const fileColumns = "id, storage_key, original_name, media_type, size_bytes, content_digest, like_score, rating, width, height, created_at"

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateFile inserts the catalog row and attaches its tags in one
// transaction. The unique index on content_digest is the authoritative
// dedup guarantee: a concurrent identical upload losing the insert
// race gets ErrDuplicate and must clean up its own file.
func (s *Store) CreateFile(ctx context.Context, in FileCreate) (*MediaFile, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `INSERT INTO media_file (storage_key, original_name, media_type, size_bytes, content_digest, width, height)
	VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, query,
		in.StorageKey, in.OriginalName, in.MediaType, in.SizeBytes, in.ContentDigest, in.Width, in.Height,
	)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	for _, name := range in.Tags {
		name = NormalizeTag(name)
		if name == "" {
			continue
		}
		if _, err := attachTagTx(ctx, tx, id, name); err != nil && !errors.Is(err, errAlreadyAttached) {
			return nil, err
		}
	}

	file, err := s.getFileByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return file, nil
}

// FindByDigest is the advisory pre-insert dedup check. A nil result
// with ErrNotFound means no file with that digest is cataloged yet.
func (s *Store) FindByDigest(ctx context.Context, digest string) (*MediaFile, error) {
	return s.fetchFile(ctx, nil, "content_digest = ?", digest)
}

func (s *Store) GetFile(ctx context.Context, id int64) (*MediaFile, error) {
	return s.fetchFile(ctx, nil, "id = ?", id)
}

func (s *Store) getFileByID(ctx context.Context, tx *sqlx.Tx, id int64) (*MediaFile, error) {
	return s.fetchFile(ctx, tx, "id = ?", id)
}

func (s *Store) fetchFile(ctx context.Context, tx *sqlx.Tx, where string, arg any) (*MediaFile, error) {
	query := "SELECT " + fileColumns + " FROM media_file WHERE " + where
	var f MediaFile
	var err error
	if tx != nil {
		err = tx.GetContext(ctx, &f, query, arg)
	} else {
		err = s.db.GetContext(ctx, &f, query, arg)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.attachTagNames(ctx, tx, []*MediaFile{&f}); err != nil {
		return nil, err
	}
	return &f, nil
}

// DeleteFile removes the row, its tag associations, and any tags left
// without references, in one transaction. The removed file is returned
// so the caller can delete the bytes on disk afterwards.
func (s *Store) DeleteFile(ctx context.Context, id int64) (*MediaFile, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	file, err := s.getFileByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	var tagIDs []int64
	if err := tx.SelectContext(ctx, &tagIDs, "SELECT tag_id FROM file_tag WHERE file_id = ?", id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM file_tag WHERE file_id = ?", id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM media_file WHERE id = ?", id); err != nil {
		return nil, err
	}
	for _, tagID := range tagIDs {
		if err := deleteTagIfOrphanTx(ctx, tx, tagID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return file, nil
}

// AdjustLike adds delta to a file's like score and returns the new
// value. The score is an unbounded signed counter; dislikes may push
// it below zero.
func (s *Store) AdjustLike(ctx context.Context, id int64, delta int) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "UPDATE media_file SET like_score = like_score + ? WHERE id = ?", delta, id)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return 0, ErrNotFound
	}
	var score int
	if err := tx.GetContext(ctx, &score, "SELECT like_score FROM media_file WHERE id = ?", id); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return score, nil
}

// RecordComparison applies one pairwise outcome. Both current ratings
// are read under row locks (taken in ascending id order) and both new
// ratings written before commit, so concurrent comparisons involving
// the same file never compute from stale values.
func (s *Store) RecordComparison(ctx context.Context, winnerID, loserID int64, kFactor int) (winnerRating, loserRating int, err error) {
	if winnerID == loserID {
		return 0, 0, ErrSameFile
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	var rows []struct {
		ID     int64 `db:"id"`
		Rating int   `db:"rating"`
	}
	query := "SELECT id, rating FROM media_file WHERE id IN (?, ?) ORDER BY id FOR UPDATE"
	if err := tx.SelectContext(ctx, &rows, query, winnerID, loserID); err != nil {
		return 0, 0, err
	}
	if len(rows) != 2 {
		return 0, 0, ErrNotFound
	}

	ratings := map[int64]int{rows[0].ID: rows[0].Rating, rows[1].ID: rows[1].Rating}
	winnerRating, loserRating = rank.Outcome(ratings[winnerID], ratings[loserID], kFactor)

	if _, err := tx.ExecContext(ctx, "UPDATE media_file SET rating = ? WHERE id = ?", winnerRating, winnerID); err != nil {
		return 0, 0, err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE media_file SET rating = ? WHERE id = ?", loserRating, loserID); err != nil {
		return 0, 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return winnerRating, loserRating, nil
}

// RandomFile returns one uniformly random file.
func (s *Store) RandomFile(ctx context.Context) (*MediaFile, error) {
	var f MediaFile
	err := s.db.GetContext(ctx, &f, "SELECT "+fileColumns+" FROM media_file ORDER BY RAND() LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.attachTagNames(ctx, nil, []*MediaFile{&f}); err != nil {
		return nil, err
	}
	return &f, nil
}

// RandomPair selects two distinct random files for comparison. With
// matchingTypes set, a media type is picked at random first and both
// files drawn from it.
func (s *Store) RandomPair(ctx context.Context, matchingTypes bool) ([]MediaFile, error) {
	where := "1=1"
	args := []any{}
	if matchingTypes {
		var mediaType string
		err := s.db.GetContext(ctx, &mediaType, "SELECT DISTINCT media_type FROM media_file ORDER BY RAND() LIMIT 1")
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotEnoughFiles
		}
		if err != nil {
			return nil, err
		}
		where = "media_type = ?"
		args = append(args, mediaType)
	}

	query := "SELECT " + fileColumns + " FROM media_file WHERE " + where + " ORDER BY RAND() LIMIT 2"
	var files []MediaFile
	if err := s.db.SelectContext(ctx, &files, query, args...); err != nil {
		return nil, err
	}
	if len(files) < 2 {
		return nil, ErrNotEnoughFiles
	}
	if err := s.attachTagNames(ctx, nil, filePtrs(files)); err != nil {
		return nil, err
	}
	return files, nil
}

// RandomChallenger picks a random opponent for king-of-the-hill mode,
// excluding the current champion and optionally restricted to its
// media type.
func (s *Store) RandomChallenger(ctx context.Context, excludeID int64, mediaType string) (*MediaFile, error) {
	where := "id != ?"
	args := []any{excludeID}
	if mediaType != "" {
		where += " AND media_type = ?"
		args = append(args, mediaType)
	}
	query := "SELECT " + fileColumns + " FROM media_file WHERE " + where + " ORDER BY RAND() LIMIT 1"
	var f MediaFile
	err := s.db.GetContext(ctx, &f, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.attachTagNames(ctx, nil, []*MediaFile{&f}); err != nil {
		return nil, err
	}
	return &f, nil
}

// AdventureFiles returns up to limit random files with at least
// minLikes, optionally restricted by media type. Fewer matches than
// requested surfaces ErrNotEnoughFiles with however many were found.
func (s *Store) AdventureFiles(ctx context.Context, minLikes int, mediaType string, limit int) ([]MediaFile, error) {
	where := "like_score >= ?"
	args := []any{minLikes}
	if mediaType != "" && mediaType != "both" {
		where += " AND media_type = ?"
		args = append(args, mediaType)
	}
	args = append(args, limit)

	query := "SELECT " + fileColumns + " FROM media_file WHERE " + where + " ORDER BY RAND() LIMIT ?"
	var files []MediaFile
	if err := s.db.SelectContext(ctx, &files, query, args...); err != nil {
		return nil, err
	}
	if err := s.attachTagNames(ctx, nil, filePtrs(files)); err != nil {
		return nil, err
	}
	if len(files) < limit {
		return files, ErrNotEnoughFiles
	}
	return files, nil
}

func (s *Store) attachTagNames(ctx context.Context, tx *sqlx.Tx, files []*MediaFile) error {
	if len(files) == 0 {
		return nil
	}
	ids := make([]int64, len(files))
	index := make(map[int64]*MediaFile)
	for i, f := range files {
		ids[i] = f.ID
		index[f.ID] = f
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := "SELECT ft.file_id, t.name FROM file_tag ft JOIN tag t ON t.id = ft.tag_id WHERE ft.file_id IN (" + placeholders + ") ORDER BY t.name"
	rows, err := (func() (*sqlx.Rows, error) {
		if tx != nil {
			return tx.QueryxContext(ctx, query, toAny(ids)...)
		}
		return s.db.QueryxContext(ctx, query, toAny(ids)...)
	})()
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var fileID int64
		var name string
		if err := rows.Scan(&fileID, &name); err != nil {
			return err
		}
		index[fileID].Tags = append(index[fileID].Tags, name)
	}
	return rows.Err()
}

func filePtrs(files []MediaFile) []*MediaFile {
	ptrs := make([]*MediaFile, len(files))
	for i := range files {
		ptrs[i] = &files[i]
	}
	return ptrs
}

func toAny[T comparable](vals []T) []any {
	res := make([]any, len(vals))
	for i, v := range vals {
		res[i] = v
	}
	return res
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
