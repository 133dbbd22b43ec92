package media

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const copyBlockSize = 64 * 1024

var ErrTooLarge = errors.New("upload too large")
var ErrUnclassifiable = errors.New("unclassifiable content")

// Manager handles filesystem operations under the storage root.
//
// Files are sharded into subdirectories named after the first two
// characters of a randomly generated identifier. The shard choice is
// independent of content so directories fill evenly; content
// addressing is the catalog's digest column, not the path.
type Manager struct {
	root string
}

func NewManager(root string) *Manager {
	return &Manager{root: root}
}

// Staged is an upload persisted to a temporary file, hashed and
// classified but not yet promoted into a shard.
type Staged struct {
	Digest string
	Size   int64
	Kind   Kind
	Ext    string
	Width  int
	Height int

	tmpPath string
}

// Stage streams the upload to a temp file under the root, computing
// SHA-256 over the same bytes in fixed-size blocks so arbitrarily
// large files never enter memory whole. maxBytes is enforced during
// the copy; over-limit uploads fail with ErrTooLarge before the
// transfer completes. On any error the temp file is removed.
func (m *Manager) Stage(ctx context.Context, r io.Reader, filename string, maxBytes int64) (*Staged, error) {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, err
	}

	lim := &io.LimitedReader{R: r, N: maxBytes + 1}
	br := bufio.NewReader(lim)
	head, _ := br.Peek(512)

	tmp, err := os.CreateTemp(m.root, "upload-*")
	if err != nil {
		return nil, err
	}
	staged := &Staged{tmpPath: tmp.Name()}
	ok := false
	defer func() {
		tmp.Close()
		if !ok {
			os.Remove(staged.tmpPath)
		}
	}()

	hash := sha256.New()
	mw := io.MultiWriter(tmp, hash)
	written, err := io.CopyBuffer(mw, br, make([]byte, copyBlockSize))
	if err != nil {
		return nil, err
	}
	if written > maxBytes {
		return nil, ErrTooLarge
	}

	kind := Classify(head, filename)
	if kind == KindUnknown {
		return nil, ErrUnclassifiable
	}

	staged.Digest = hex.EncodeToString(hash.Sum(nil))
	staged.Size = written
	staged.Kind = kind
	staged.Ext = strings.ToLower(filepath.Ext(filename))

	if kind == KindImage {
		// Dimensions are informational; undecodable formats (svg
		// among others) just leave them at zero.
		if _, err := tmp.Seek(0, io.SeekStart); err == nil {
			if cfg, _, err := image.DecodeConfig(tmp); err == nil {
				staged.Width = cfg.Width
				staged.Height = cfg.Height
			}
		}
	}

	if err := tmp.Close(); err != nil {
		return nil, err
	}
	ok = true
	return staged, nil
}

// Discard removes the staged temp file. Safe to call after a failed
// or abandoned ingestion.
func (s *Staged) Discard() {
	if s != nil && s.tmpPath != "" {
		os.Remove(s.tmpPath)
	}
}

// NewStorageKey returns a fresh slash-separated relative key of the
// form "ab/abcdef...123.jpg": a random identifier plus the staged
// extension, sharded by the identifier's first two characters.
func (m *Manager) NewStorageKey(ext string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return path.Join(id[:2], id+ext)
}

// Promote moves a staged file into its shard path with a rename, so
// readers never observe a partially written file. On failure the temp
// file is removed.
func (m *Manager) Promote(s *Staged, key string) error {
	dst := m.Path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		s.Discard()
		return err
	}
	if err := os.Rename(s.tmpPath, dst); err != nil {
		s.Discard()
		return err
	}
	return nil
}

// Path resolves a storage key to an absolute filesystem path.
func (m *Manager) Path(key string) string {
	return filepath.Join(m.root, filepath.FromSlash(key))
}

// Remove deletes the file for a storage key. A missing file is not an
// error; the catalog row is authoritative.
func (m *Manager) Remove(key string) error {
	err := os.Remove(m.Path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (m *Manager) IsWritable() error {
	testPath := filepath.Join(m.root, ".writetest")
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(testPath, []byte("ok"), 0o644); err != nil {
		return err
	}
	return os.Remove(testPath)
}
