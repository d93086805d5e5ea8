package imagestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visorlab/visor/internal/errors"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "images"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveGeneratesUniqueNames(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	a, err := s.Save(ctx, "olivine.JPG", strings.NewReader("one"))
	require.NoError(t, err)
	b, err := s.Save(ctx, "olivine.JPG", strings.NewReader("two"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, ".jpg"))

	f, err := s.Open(a)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	_, err = os.Stat(filepath.Join(s.Dir(), b))
	assert.NoError(t, err)
}

func TestSaveDefaultExtension(t *testing.T) {
	t.Parallel()

	name, err := newStore(t).Save(context.Background(), "noext", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, DefaultExt, filepath.Ext(name))
}

func TestSaveCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newStore(t).Save(ctx, "a.jpg", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenRejectsPaths(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	for _, name := range []string{"", "..", "../secret.jpg", "sub/a.jpg"} {
		_, err := s.Open(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}

	_, err := s.Open("missing.jpg")
	assert.True(t, errors.IsNotFound(err))
}

func TestRemove(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	name, err := s.Save(context.Background(), "a.jpg", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(name))
	require.NoError(t, s.Remove(name))
	_, err = os.Stat(filepath.Join(s.Dir(), name))
	assert.True(t, os.IsNotExist(err))
}
