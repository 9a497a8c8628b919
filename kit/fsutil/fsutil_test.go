package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsHidden(t *testing.T) {
	require.True(t, IsHidden(".tmp"))
	require.True(t, IsHidden(".DS_Store"))
	require.False(t, IsHidden("home"))
	require.False(t, IsHidden("a.js"))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0600))

	dest := filepath.Join(dir, "nested", "deeper", "dest.txt")
	require.NoError(t, CopyFile(src, dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestCopyFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := CopyFile(filepath.Join(dir, "nope"), filepath.Join(dir, "out"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "file.js")

	require.NoError(t, WriteFileAtomicBytes(path, []byte("one")))
	require.NoError(t, WriteFileAtomicBytes(path, []byte("two")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "two", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteFileAtomicFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.js")

	err := WriteFileAtomic(path, func(*os.File) error { return errors.New("boom") })
	require.EqualError(t, err, "boom")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRel(t *testing.T) {
	got, err := Rel("/project", filepath.Join("/project", "public", "js", "app.js"))
	require.NoError(t, err)
	require.Equal(t, "public/js/app.js", got)
}
