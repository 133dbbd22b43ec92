package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func pngBytes(extra int) []byte {
	return append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0xab}, extra)...)
}

func TestStageHashesWhileWriting(t *testing.T) {
	m := NewManager(t.TempDir())
	content := pngBytes(200 * 1024) // a few copy blocks

	staged, err := m.Stage(context.Background(), bytes.NewReader(content), "test.png", 1<<20)
	require.NoError(t, err)
	defer staged.Discard()

	sum := sha256.Sum256(content)
	require.Equal(t, hex.EncodeToString(sum[:]), staged.Digest)
	require.Equal(t, int64(len(content)), staged.Size)
	require.Equal(t, KindImage, staged.Kind)
	require.Equal(t, ".png", staged.Ext)
}

func TestStageTooLarge(t *testing.T) {
	m := NewManager(t.TempDir())
	content := pngBytes(1024)

	_, err := m.Stage(context.Background(), bytes.NewReader(content), "big.png", 100)
	require.ErrorIs(t, err, ErrTooLarge)
	requireNoLeftovers(t, m.root)
}

func TestStageUnclassifiable(t *testing.T) {
	m := NewManager(t.TempDir())

	_, err := m.Stage(context.Background(), strings.NewReader("just some text"), "notes.txt", 1<<20)
	require.ErrorIs(t, err, ErrUnclassifiable)
	requireNoLeftovers(t, m.root)
}

func TestStageLowercasesExtension(t *testing.T) {
	m := NewManager(t.TempDir())

	staged, err := m.Stage(context.Background(), bytes.NewReader(pngBytes(16)), "SHOUTING.PNG", 1<<20)
	require.NoError(t, err)
	defer staged.Discard()
	require.Equal(t, ".png", staged.Ext)
}

func TestNewStorageKey(t *testing.T) {
	m := NewManager(t.TempDir())

	key := m.NewStorageKey(".jpg")
	dir, file := filepath.Split(filepath.FromSlash(key))
	require.Len(t, strings.TrimSuffix(dir, string(filepath.Separator)), 2, "shard directory is two characters")
	require.True(t, strings.HasPrefix(file, strings.TrimSuffix(dir, string(filepath.Separator))), "shard is the identifier prefix")
	require.True(t, strings.HasSuffix(file, ".jpg"))

	// Keys are random, not content-derived.
	require.NotEqual(t, key, m.NewStorageKey(".jpg"))
}

func TestPromoteMovesStagedFile(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	content := pngBytes(64)

	staged, err := m.Stage(context.Background(), bytes.NewReader(content), "a.png", 1<<20)
	require.NoError(t, err)

	key := m.NewStorageKey(staged.Ext)
	require.NoError(t, m.Promote(staged, key))

	got, err := os.ReadFile(m.Path(key))
	require.NoError(t, err)
	require.Equal(t, content, got)
	requireNoLeftovers(t, root) // temp file gone, only the shard remains
}

func TestRemoveMissingFileIsNoError(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Remove("ab/abcdef.png"))
}

// requireNoLeftovers fails if any upload-* temp file survived.
func requireNoLeftovers(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasPrefix(e.Name(), "upload-"), "leftover temp file %s", e.Name())
	}
}
