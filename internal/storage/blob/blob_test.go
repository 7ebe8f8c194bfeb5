package blob

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s, err := New(fs, "/data/http_upload", 0)
	require.NoError(t, err)
	return s, fs
}

func TestStageCommitOpen(t *testing.T) {
	s, fs := newTestStore(t)

	staged, err := s.Stage("tok", strings.NewReader("hello world"), 11)
	require.NoError(t, err)
	assert.Equal(t, int64(11), staged.Written)

	rel := RelPath("tok", "a.txt")
	require.NoError(t, s.Commit(staged, rel))

	exists, _ := afero.Exists(fs, staged.Path)
	assert.False(t, exists, "temp file must be gone after commit")

	f, size, err := s.Open(rel)
	require.NoError(t, err)
	defer f.Close()
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))
	assert.Equal(t, int64(11), size)
}

func TestStageReadsAtMostLimitPlusOne(t *testing.T) {
	s, _ := newTestStore(t)

	staged, err := s.Stage("tok", strings.NewReader("0123456789"), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(5), staged.Written)
	s.Discard(staged)
}

func TestDiscardRemovesEmptyDir(t *testing.T) {
	s, fs := newTestStore(t)

	staged, err := s.Stage("tok", strings.NewReader("x"), 1)
	require.NoError(t, err)
	s.Discard(staged)

	exists, _ := afero.DirExists(fs, s.FullPath("tok"))
	assert.False(t, exists)
}

func TestDeleteMissingIsNotAnError(t *testing.T) {
	s, _ := newTestStore(t)
	assert.NoError(t, s.Delete(RelPath("nope", "missing.txt")))
}

func TestOpenMissing(t *testing.T) {
	s, _ := newTestStore(t)
	_, _, err := s.Open(RelPath("nope", "missing.txt"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRemoveDirIfEmpty(t *testing.T) {
	s, fs := newTestStore(t)
	require.NoError(t, afero.WriteFile(fs, s.FullPath("tok/a.txt"), []byte("a"), 0o640))
	require.NoError(t, afero.WriteFile(fs, s.FullPath("tok/b.txt"), []byte("b"), 0o640))

	removed, err := s.RemoveDirIfEmpty(s.FullPath("tok"))
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, s.Delete("tok/a.txt"))
	require.NoError(t, s.Delete("tok/b.txt"))
	removed, err = s.RemoveDirIfEmpty(s.Dir("tok/a.txt"))
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.RemoveDirIfEmpty(s.FullPath("tok"))
	require.NoError(t, err)
	assert.True(t, removed, "missing directory counts as removed")
}

func TestCheckPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := New(fs, "/data", 40)
	require.NoError(t, err)

	assert.NoError(t, s.CheckPath("abcdefgh", "short.txt"))
	assert.True(t, errors.Is(s.CheckPath("abcdefgh", strings.Repeat("x", 40)), ErrPathTooLong))

	wide, err := New(fs, "/data", 0)
	require.NoError(t, err)
	assert.True(t, errors.Is(wide.CheckPath("abcdefgh", strings.Repeat("x", 256)), ErrPathTooLong))
}
