package store

import "time"

type MediaFile struct {
	ID            int64     `db:"id"`
	StorageKey    string    `db:"storage_key"`
	OriginalName  string    `db:"original_name"`
	MediaType     string    `db:"media_type"`
	SizeBytes     int64     `db:"size_bytes"`
	ContentDigest string    `db:"content_digest"`
	LikeScore     int       `db:"like_score"`
	Rating        int       `db:"rating"`
	Width         int       `db:"width"`
	Height        int       `db:"height"`
	CreatedAt     time.Time `db:"created_at"`
	Tags          []string  `db:"-"`
}

type Tag struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

type FileCreate struct {
	StorageKey    string
	OriginalName  string
	MediaType     string
	SizeBytes     int64
	ContentDigest string
	Width         int
	Height        int
	Tags          []string
}

// ListParams are the pre-parsed browse filters. MediaType "both" (or
// empty) applies no type filter; Tag is an exact, case-insensitive
// tag name.
type ListParams struct {
	MediaType string
	Tag       string
	Sort      string
	Page      int
	PageSize  int
}

// PageInfo reports pagination after clamping. Page is the page that
// was actually served, which may differ from the requested one.
type PageInfo struct {
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

type ExportRow struct {
	ID           int64     `db:"id"`
	OriginalName string    `db:"original_name"`
	StorageKey   string    `db:"storage_key"`
	MediaType    string    `db:"media_type"`
	LikeScore    int       `db:"like_score"`
	Rating       int       `db:"rating"`
	CreatedAt    time.Time `db:"created_at"`
}
