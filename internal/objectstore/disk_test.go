package objectstore

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDiskStore(t *testing.T) *DiskStore {
	t.Helper()
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestDiskPutGetRoundTrip(t *testing.T) {
	t.Parallel()

	store := newDiskStore(t)
	ctx := context.Background()
	payload := []byte("mp3 bytes")

	require.NoError(t, store.Put(ctx, "user-1/123-track.mp3", bytes.NewReader(payload), "audio/mpeg"))

	rc, err := store.Get(ctx, "user-1/123-track.mp3")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	ok, err := store.Exists(ctx, "user-1/123-track.mp3")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDiskGetMissingKey(t *testing.T) {
	t.Parallel()

	store := newDiskStore(t)
	_, err := store.Get(context.Background(), "nope.mp3")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := store.Exists(context.Background(), "nope.mp3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiskDelete(t *testing.T) {
	t.Parallel()

	store := newDiskStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "m.mp3", strings.NewReader("x"), "audio/mpeg"))
	require.NoError(t, store.Delete(ctx, "m.mp3"))
	assert.ErrorIs(t, store.Delete(ctx, "m.mp3"), ErrNotFound)
}

func TestDiskRejectsTraversal(t *testing.T) {
	t.Parallel()

	store := newDiskStore(t)
	ctx := context.Background()
	// Cleaned traversal stays inside the root and must not escape it.
	require.NoError(t, store.Put(ctx, "../escape.mp3", strings.NewReader("x"), "audio/mpeg"))
	path, err := store.pathFor("../escape.mp3")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, store.root))

	rc, err := store.Get(ctx, "../escape.mp3")
	require.NoError(t, err)
	rc.Close()
}

func TestDiskOverwriteIsAtomicRename(t *testing.T) {
	t.Parallel()

	store := newDiskStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "k", strings.NewReader("one"), "audio/mpeg"))
	require.NoError(t, store.Put(ctx, "k", strings.NewReader("two"), "audio/mpeg"))

	rc, err := store.Get(ctx, "k")
	require.NoError(t, err)
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	assert.Equal(t, "two", string(got))
}

func TestKeyLayout(t *testing.T) {
	t.Parallel()

	assert.Regexp(t, regexp.MustCompile(`^user-1/\d+-my_track\.mp3$`), UploadKey("user-1", "my track.mp3"))
	assert.Equal(t, "t1/stems/vocals.wav", StemKey("t1", "vocals", "wav"))
	assert.Equal(t, "m1.mp3", MixKey("m1"))
	assert.Equal(t, "preview-a-b.mp3", PreviewKey("a", "b"))
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"track.mp3":          "track.mp3",
		"my song (live).mp3": "my_song__live_.mp3",
		"../../etc/passwd":   ".._.._etc_passwd",
		"":                   "upload",
		"///":                "upload",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeName(in), "input %q", in)
	}
}
