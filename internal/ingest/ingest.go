// Package ingest runs the upload pipeline: stage and hash the byte
// stream, classify it, deduplicate by content digest, promote the
// file into sharded storage, and catalog it with auto-derived tags.
package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/jparatte/media-gallery/internal/media"
	"github.com/jparatte/media-gallery/internal/store"
)

type Status string

const (
	StatusCreated   Status = "created"
	StatusDuplicate Status = "duplicate"
	StatusInvalid   Status = "invalid"
	StatusTooLarge  Status = "too_large"
	StatusIOError   Status = "io_error"
)

// Outcome is the per-file ingestion result. File is set only for
// StatusCreated; Err carries the underlying cause for StatusIOError
// and is meant for logging, not for client responses.
type Outcome struct {
	Status Status
	File   *store.MediaFile
	Err    error
}

type Pipeline struct {
	store    *store.Store
	media    *media.Manager
	maxBytes int64
	logger   *slog.Logger
}

func New(st *store.Store, mgr *media.Manager, maxBytes int64, logger *slog.Logger) *Pipeline {
	return &Pipeline{store: st, media: mgr, maxBytes: maxBytes, logger: logger}
}

// Ingest processes one upload. Identical content is rejected as a
// duplicate whether it is caught by the advisory digest lookup or by
// the database uniqueness constraint when two identical uploads race;
// in both cases the pipeline cleans up its own bytes. No catalog lock
// is held while the stream is being written.
func (p *Pipeline) Ingest(ctx context.Context, r io.Reader, originalName string) Outcome {
	staged, err := p.media.Stage(ctx, r, originalName, p.maxBytes)
	if err != nil {
		switch {
		case errors.Is(err, media.ErrTooLarge):
			return Outcome{Status: StatusTooLarge}
		case errors.Is(err, media.ErrUnclassifiable):
			return Outcome{Status: StatusInvalid}
		}
		p.logger.Error("staging failed", "file", originalName, "error", err)
		return Outcome{Status: StatusIOError, Err: err}
	}

	// Advisory check; the unique index on content_digest decides races.
	if _, err := p.store.FindByDigest(ctx, staged.Digest); err == nil {
		staged.Discard()
		return Outcome{Status: StatusDuplicate}
	} else if !errors.Is(err, store.ErrNotFound) {
		staged.Discard()
		p.logger.Error("digest lookup failed", "file", originalName, "error", err)
		return Outcome{Status: StatusIOError, Err: err}
	}

	key := p.media.NewStorageKey(staged.Ext)
	if err := p.media.Promote(staged, key); err != nil {
		p.logger.Error("promote failed", "file", originalName, "key", key, "error", err)
		return Outcome{Status: StatusIOError, Err: err}
	}

	file, err := p.store.CreateFile(ctx, store.FileCreate{
		StorageKey:    key,
		OriginalName:  originalName,
		MediaType:     string(staged.Kind),
		SizeBytes:     staged.Size,
		ContentDigest: staged.Digest,
		Width:         staged.Width,
		Height:        staged.Height,
		Tags:          media.ExtractTags(originalName),
	})
	if err != nil {
		if removeErr := p.media.Remove(key); removeErr != nil {
			p.logger.Error("cleanup after failed insert", "key", key, "error", removeErr)
		}
		if errors.Is(err, store.ErrDuplicate) {
			return Outcome{Status: StatusDuplicate}
		}
		p.logger.Error("catalog insert failed", "file", originalName, "error", err)
		return Outcome{Status: StatusIOError, Err: err}
	}

	return Outcome{Status: StatusCreated, File: file}
}
