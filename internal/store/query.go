package store

import (
	"context"
	"strings"
)

const defaultPageSize = 25

var allowedSort = map[string]string{
	"newest": "f.created_at DESC",
	"oldest": "f.created_at ASC",
	"top":    "f.like_score DESC",
	"elo":    "f.rating DESC",
	"random": "RAND()",
}

// clampPage resolves a requested page against the item count. There
// is always at least one page, even when empty, and out-of-range
// requests land on the nearest valid page instead of erroring. A
// non-positive pageSize is coerced to the default.
func clampPage(page, totalItems, pageSize int) (clamped, totalPages int) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	totalPages = (totalItems + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	return page, totalPages
}

// ListFiles runs the browse query: optional type and tag filters, one
// of five sort modes, and page clamping. Out-of-range pages never
// error; they resolve to the nearest valid page, reported in PageInfo.
// The "random" sort re-randomizes on every call, so repeated requests
// with identical parameters may return different pages; callers must
// not expect stable ordering from it.
func (s *Store) ListFiles(ctx context.Context, params ListParams) ([]MediaFile, PageInfo, error) {
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	where := []string{"1=1"}
	args := []any{}
	join := ""

	if params.MediaType != "" && params.MediaType != "both" {
		where = append(where, "f.media_type = ?")
		args = append(args, params.MediaType)
	}
	if params.Tag != "" {
		join = "JOIN file_tag ft ON ft.file_id = f.id JOIN tag t ON t.id = ft.tag_id"
		where = append(where, "t.name = ?")
		args = append(args, NormalizeTag(params.Tag))
	}

	orderClause := allowedSort[params.Sort]
	if orderClause == "" {
		orderClause = allowedSort["newest"]
	}

	base := "FROM media_file f " + join + " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(DISTINCT f.id) "+base, args...); err != nil {
		return nil, PageInfo{}, err
	}

	page, totalPages := clampPage(params.Page, total, pageSize)
	info := PageInfo{Page: page, PageSize: pageSize, TotalItems: total, TotalPages: totalPages}

	cols := strings.ReplaceAll(fileColumns, ", ", ", f.")
	query := "SELECT f." + cols + " " + base + " GROUP BY f.id ORDER BY " + orderClause + " LIMIT ? OFFSET ?"
	listArgs := append(append([]any{}, args...), pageSize, (page-1)*pageSize)

	var files []MediaFile
	if err := s.db.SelectContext(ctx, &files, query, listArgs...); err != nil {
		return nil, PageInfo{}, err
	}
	if err := s.attachTagNames(ctx, nil, filePtrs(files)); err != nil {
		return nil, PageInfo{}, err
	}
	return files, info, nil
}
