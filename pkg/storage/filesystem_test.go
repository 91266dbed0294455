package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndOpen(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := s.Save("photo.jpg", []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", name)
	assert.True(t, s.Exists("photo.jpg"))

	file, err := s.Open("photo.jpg")
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(len("payload")), info.Size())
}

func TestLocalStorageSaveStream(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.SaveStream("streamed.png", strings.NewReader("stream payload"))
	require.NoError(t, err)

	data, err := os.ReadFile(s.Path("streamed.png"))
	require.NoError(t, err)
	assert.Equal(t, "stream payload", string(data))
}

func TestLocalStorageResolveStripsPathComponents(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "escape.jpg"), s.Path("../../escape.jpg"))
}

func TestLocalStorageDeleteMissingIsNoop(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, s.Delete("never-existed.jpg"))
}

func TestLocalStorageListOlderThan(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = s.Save("fresh.jpg", []byte("x"))
	require.NoError(t, err)
	_, err = s.Save("stale.jpg", []byte("x"))
	require.NoError(t, err)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "stale.jpg"), old, old))

	names, err := s.ListOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"stale.jpg"}, names)
}
