package httpapi

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jparatte/media-gallery/internal/config"
	"github.com/jparatte/media-gallery/internal/ingest"
	"github.com/jparatte/media-gallery/internal/media"
	"github.com/jparatte/media-gallery/internal/rank"
	"github.com/jparatte/media-gallery/internal/store"
	"github.com/jparatte/media-gallery/internal/video"
)

type Server struct {
	cfg      *config.Config
	store    *store.Store
	media    *media.Manager
	pipeline *ingest.Pipeline
	trimmer  *video.Trimmer
	logger   *slog.Logger
}

func NewRouter(cfg *config.Config, st *store.Store, mediaMgr *media.Manager, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	s := &Server{
		cfg:      cfg,
		store:    st,
		media:    mediaMgr,
		pipeline: ingest.New(st, mediaMgr, cfg.MaxUploadBytes, logger),
		trimmer:  video.NewTrimmer(cfg.FFmpegPath),
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(logger))

	if len(cfg.CORSAllowedOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept"},
			AllowCredentials: true,
		})
		r.Use(c.Handler)
	}

	r.Get("/healthz", s.GetHealthz)
	r.Get("/readyz", s.GetReadyz)

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.Upload)
		r.Get("/files", s.ListFiles)
		r.Get("/files/{id}", s.GetFile)
		r.Delete("/files/{id}", s.DeleteFile)
		r.Post("/files/{id}/like", s.Like)
		r.Post("/files/{id}/dislike", s.Dislike)
		r.Post("/files/{id}/tags", s.AddTag)
		r.Delete("/files/{id}/tags/{tagID}", s.RemoveTag)
		r.Post("/files/{id}/trim", s.TrimVideo)
		r.Get("/tags", s.ListTags)
		r.Get("/tags/search", s.SearchTags)
		r.Get("/random-file", s.RandomFile)
		r.Get("/compare-files", s.CompareFiles)
		r.Post("/vote/{winnerID}/{loserID}", s.Vote)
		r.Post("/adventure-start", s.AdventureStart)
		r.Get("/export", s.ExportCSV)
		r.Post("/reset-likes", s.ResetLikes)
		r.Post("/reset-elo", s.ResetRatings)
		r.Post("/maintenance/cleanup-tags", s.CleanupTags)
	})

	r.Get("/uploads/*", s.ServeUpload)

	return r
}

type fileJSON struct {
	ID           int64     `json:"id"`
	OriginalName string    `json:"originalName"`
	MediaType    string    `json:"mediaType"`
	SizeBytes    int64     `json:"sizeBytes"`
	LikeScore    int       `json:"likeScore"`
	Rating       int       `json:"rating"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"createdAt"`
	URL          string    `json:"url"`
}

func toFileJSON(f *store.MediaFile) fileJSON {
	tags := f.Tags
	if tags == nil {
		tags = []string{}
	}
	return fileJSON{
		ID:           f.ID,
		OriginalName: f.OriginalName,
		MediaType:    f.MediaType,
		SizeBytes:    f.SizeBytes,
		LikeScore:    f.LikeScore,
		Rating:       f.Rating,
		Width:        f.Width,
		Height:       f.Height,
		Tags:         tags,
		CreatedAt:    f.CreatedAt,
		URL:          "/uploads/" + f.StorageKey,
	}
}

func (s *Server) GetHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) GetReadyz(w http.ResponseWriter, _ *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "database unreachable", map[string]any{"error": err.Error()})
		return
	}
	if err := s.media.IsWritable(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "storage not writable", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type skippedFile struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// Upload ingests each file of a multipart batch independently; one
// file's failure never aborts the rest.
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "multipart body required", nil)
		return
	}

	var uploaded []fileJSON
	var skipped []skippedFile
	for {
		part, err := reader.NextPart()
		if err != nil {
			break
		}
		if part.FormName() != "files[]" && part.FormName() != "file" {
			part.Close()
			continue
		}
		name := part.FileName()
		if name == "" {
			part.Close()
			continue
		}

		outcome := s.pipeline.Ingest(r.Context(), part, name)
		part.Close()
		switch outcome.Status {
		case ingest.StatusCreated:
			uploaded = append(uploaded, toFileJSON(outcome.File))
		case ingest.StatusDuplicate:
			skipped = append(skipped, skippedFile{Filename: name, Reason: "duplicate"})
		case ingest.StatusInvalid:
			skipped = append(skipped, skippedFile{Filename: name, Reason: "unsupported file type"})
		case ingest.StatusTooLarge:
			skipped = append(skipped, skippedFile{Filename: name, Reason: "file too large"})
		default:
			skipped = append(skipped, skippedFile{Filename: name, Reason: "storage error"})
		}
	}

	if len(uploaded) == 0 && len(skipped) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "no files provided", nil)
		return
	}

	message := fmt.Sprintf("Successfully uploaded %d files!", len(uploaded))
	if len(skipped) > 0 {
		message += fmt.Sprintf(" Skipped %d files.", len(skipped))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  message,
		"uploaded": uploaded,
		"skipped":  skipped,
	})
}

func (s *Server) ListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := store.ListParams{
		MediaType: q.Get("type"),
		Tag:       q.Get("tag"),
		Sort:      q.Get("sort"),
		Page:      queryInt(q.Get("page"), 1),
		PageSize:  queryInt(q.Get("count"), s.cfg.DefaultPageSize),
	}
	files, info, err := s.store.ListFiles(r.Context(), params)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to list files", map[string]any{"error": err.Error()})
		return
	}
	items := make([]fileJSON, 0, len(files))
	for i := range files {
		items = append(items, toFileJSON(&files[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"page":       info.Page,
		"pageSize":   info.PageSize,
		"totalItems": info.TotalItems,
		"totalPages": info.TotalPages,
	})
}

func (s *Server) GetFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	file, err := s.store.GetFile(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "file not found")
		return
	}
	writeJSON(w, http.StatusOK, toFileJSON(file))
}

func (s *Server) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	file, err := s.store.DeleteFile(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "file not found")
		return
	}
	if err := s.media.Remove(file.StorageKey); err != nil {
		s.logger.Error("remove file from disk", "key", file.StorageKey, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("File %q deleted successfully", file.OriginalName),
	})
}

func (s *Server) Like(w http.ResponseWriter, r *http.Request) {
	s.adjustLike(w, r, 1)
}

func (s *Server) Dislike(w http.ResponseWriter, r *http.Request) {
	s.adjustLike(w, r, -1)
}

func (s *Server) adjustLike(w http.ResponseWriter, r *http.Request, delta int) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	score, err := s.store.AdjustLike(r.Context(), id, delta)
	if err != nil {
		writeStoreError(w, err, "file not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"likeScore": score})
}

func (s *Server) AddTag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var payload struct {
		TagName string `json:"tagName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	tag, err := s.store.AddTag(r.Context(), id, payload.TagName)
	switch {
	case errors.Is(err, store.ErrEmptyTag):
		writeError(w, http.StatusBadRequest, "bad_request", "tag name is required", nil)
		return
	case errors.Is(err, store.ErrTagAttached):
		writeError(w, http.StatusBadRequest, "bad_request", "tag already exists on this file", nil)
		return
	case err != nil:
		writeStoreError(w, err, "file not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tag":     map[string]any{"id": tag.ID, "name": tag.Name},
	})
}

func (s *Server) RemoveTag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	tagID, ok := pathID(w, r, "tagID")
	if !ok {
		return
	}
	name, err := s.store.RemoveTag(r.Context(), id, tagID)
	if err != nil {
		writeStoreError(w, err, "tag not found on this file")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Tag %q removed successfully", name),
	})
}

func (s *Server) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.store.ListTags(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to list tags", map[string]any{"error": err.Error()})
		return
	}
	writeTagList(w, tags)
}

func (s *Server) SearchTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.store.SearchTags(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to search tags", map[string]any{"error": err.Error()})
		return
	}
	writeTagList(w, tags)
}

func writeTagList(w http.ResponseWriter, tags []store.Tag) {
	items := make([]map[string]any, 0, len(tags))
	for _, t := range tags {
		items = append(items, map[string]any{"id": t.ID, "name": t.Name})
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) RandomFile(w http.ResponseWriter, r *http.Request) {
	file, err := s.store.RandomFile(r.Context())
	if err != nil {
		writeStoreError(w, err, "no files found")
		return
	}
	writeJSON(w, http.StatusOK, toFileJSON(file))
}

func (s *Server) CompareFiles(w http.ResponseWriter, r *http.Request) {
	matching := queryBool(r.URL.Query().Get("matchingTypes"))
	pair, err := s.store.RandomPair(r.Context(), matching)
	if errors.Is(err, store.ErrNotEnoughFiles) {
		writeError(w, http.StatusNotFound, "not_found", "need at least 2 files for comparison", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to select files", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file1": toFileJSON(&pair[0]),
		"file2": toFileJSON(&pair[1]),
	})
}

// Vote records a pairwise outcome and, in king-of-the-hill mode, also
// returns the winner paired with a fresh random challenger.
func (s *Server) Vote(w http.ResponseWriter, r *http.Request) {
	winnerID, ok := pathID(w, r, "winnerID")
	if !ok {
		return
	}
	loserID, ok := pathID(w, r, "loserID")
	if !ok {
		return
	}

	var payload struct {
		KingOfHill    bool `json:"kingOfHill"`
		MatchingTypes bool `json:"matchingTypes"`
	}
	// Body is optional; a bare vote carries no mode flags.
	_ = json.NewDecoder(r.Body).Decode(&payload)

	winnerRating, loserRating, err := s.store.RecordComparison(r.Context(), winnerID, loserID, rank.DefaultK)
	if errors.Is(err, store.ErrSameFile) {
		writeError(w, http.StatusBadRequest, "bad_request", "cannot compare a file with itself", nil)
		return
	}
	if err != nil {
		writeStoreError(w, err, "file not found")
		return
	}

	resp := map[string]any{
		"success":   true,
		"winnerElo": winnerRating,
		"loserElo":  loserRating,
	}

	if payload.KingOfHill {
		winner, err := s.store.GetFile(r.Context(), winnerID)
		if err == nil {
			mediaType := ""
			if payload.MatchingTypes {
				mediaType = winner.MediaType
			}
			challenger, err := s.store.RandomChallenger(r.Context(), winnerID, mediaType)
			if err == nil {
				resp["next"] = map[string]any{
					"file1": toFileJSON(winner),
					"file2": toFileJSON(challenger),
				}
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) AdventureStart(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.AdventureEnabled {
		writeError(w, http.StatusNotFound, "not_found", "feature disabled", nil)
		return
	}
	var payload struct {
		RiskLevel int    `json:"riskLevel"`
		Steps     int    `json:"steps"`
		FileType  string `json:"fileType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	if payload.Steps <= 0 {
		payload.Steps = 8
	}

	files, err := s.store.AdventureFiles(r.Context(), payload.RiskLevel, payload.FileType, payload.Steps)
	if errors.Is(err, store.ErrNotEnoughFiles) {
		writeError(w, http.StatusBadRequest, "not_enough_files",
			fmt.Sprintf("not enough files matching criteria: found %d, need %d", len(files), payload.Steps), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to select files", map[string]any{"error": err.Error()})
		return
	}

	items := make([]fileJSON, 0, len(files))
	for i := range files {
		items = append(items, toFileJSON(&files[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"files":      items,
		"totalSteps": payload.Steps,
		"riskLevel":  payload.RiskLevel,
	})
}

// TrimVideo cuts a clip out of a video with ffmpeg and ingests the
// result as a new catalog entry carrying over the source's tags and
// like score.
func (s *Server) TrimVideo(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.VideoEditEnabled {
		writeError(w, http.StatusNotFound, "not_found", "feature disabled", nil)
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var payload struct {
		StartTime    float64 `json:"startTime"`
		EndTime      float64 `json:"endTime"`
		KeepOriginal *bool   `json:"keepOriginal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	keepOriginal := payload.KeepOriginal == nil || *payload.KeepOriginal

	file, err := s.store.GetFile(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "file not found")
		return
	}
	if file.MediaType != string(media.KindVideo) {
		writeError(w, http.StatusBadRequest, "bad_request", "file is not a video", nil)
		return
	}

	tmp, err := os.CreateTemp("", "trim-*"+strings.ToLower(path.Ext(file.StorageKey)))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to create work file", nil)
		return
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := s.trimmer.Trim(r.Context(), s.media.Path(file.StorageKey), tmpPath, payload.StartTime, payload.EndTime); err != nil {
		if errors.Is(err, video.ErrBadRange) {
			writeError(w, http.StatusBadRequest, "bad_request", "start time must be less than end time", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "trim_failed", "video processing failed", map[string]any{"error": err.Error()})
		return
	}

	trimmed, err := os.Open(tmpPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to read trimmed file", nil)
		return
	}
	defer trimmed.Close()

	ext := path.Ext(file.OriginalName)
	base := strings.TrimSuffix(file.OriginalName, ext)
	newName := fmt.Sprintf("%s_trimmed_%.1fs-%.1fs%s", base, payload.StartTime, payload.EndTime, ext)

	outcome := s.pipeline.Ingest(r.Context(), trimmed, newName)
	if outcome.Status != ingest.StatusCreated {
		writeError(w, http.StatusInternalServerError, "trim_failed",
			fmt.Sprintf("could not catalog trimmed video: %s", outcome.Status), nil)
		return
	}

	// Carry the source's tags and like score over to the clip.
	for _, tag := range file.Tags {
		if _, err := s.store.AddTag(r.Context(), outcome.File.ID, tag); err != nil && !errors.Is(err, store.ErrTagAttached) {
			s.logger.Error("copy tag to trimmed video", "tag", tag, "error", err)
		}
	}
	if file.LikeScore != 0 {
		if _, err := s.store.AdjustLike(r.Context(), outcome.File.ID, file.LikeScore); err != nil {
			s.logger.Error("copy like score to trimmed video", "error", err)
		}
	}

	if !keepOriginal {
		if _, err := s.store.DeleteFile(r.Context(), file.ID); err != nil {
			s.logger.Error("delete original after trim", "id", file.ID, "error", err)
		} else if err := s.media.Remove(file.StorageKey); err != nil {
			s.logger.Error("remove original after trim", "key", file.StorageKey, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"newFileId": outcome.File.ID,
	})
}

func (s *Server) ExportCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ExportRows(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to export", map[string]any{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=media_export.csv")
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "original_name", "storage_key", "media_type", "like_score", "rating", "created_at"})
	for _, row := range rows {
		_ = cw.Write([]string{
			strconv.FormatInt(row.ID, 10),
			row.OriginalName,
			row.StorageKey,
			row.MediaType,
			strconv.Itoa(row.LikeScore),
			strconv.Itoa(row.Rating),
			row.CreatedAt.Format(time.RFC3339),
		})
	}
	cw.Flush()
}

func (s *Server) ResetLikes(w http.ResponseWriter, r *http.Request) {
	affected, err := s.store.ResetLikes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to reset likes", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "affected": affected})
}

func (s *Server) ResetRatings(w http.ResponseWriter, r *http.Request) {
	affected, err := s.store.ResetRatings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to reset ratings", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "affected": affected})
}

func (s *Server) CleanupTags(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CleanupOrphanTags(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to cleanup tags", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Cleaned up %d orphaned tags", count),
	})
}

func (s *Server) ServeUpload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" || strings.Contains(key, "..") {
		writeError(w, http.StatusNotFound, "not_found", "file not found", nil)
		return
	}
	http.ServeFile(w, r, s.media.Path(path.Clean(key)))
}

func writeStoreError(w http.ResponseWriter, err error, notFoundMsg string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", notFoundMsg, nil)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, map[string]any{"code": code, "message": message, "details": details})
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
		})
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid id", nil)
		return 0, false
	}
	return id, true
}

func queryInt(v string, def int) int {
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func queryBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true" || v == "yes"
}
