// Package blob stores uploaded file contents under a root directory, one
// directory per slot token.
package blob

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const (
	// DefaultMaxPathLength matches PATH_MAX on Linux.
	DefaultMaxPathLength = 4096
	// maxNameLength matches NAME_MAX on common filesystems.
	maxNameLength = 255
)

var (
	ErrNotFound    = errors.New("blob not found")
	ErrPathTooLong = errors.New("path too long")
)

// Store manages blobs on an afero filesystem.
type Store struct {
	fs            afero.Fs
	root          string
	maxPathLength int
}

// Staged is a fully written temporary file awaiting Commit or Discard.
type Staged struct {
	Dir     string
	Path    string
	Written int64
}

func New(fs afero.Fs, root string, maxPathLength int) (*Store, error) {
	if maxPathLength <= 0 {
		maxPathLength = DefaultMaxPathLength
	}
	if err := fs.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	return &Store{fs: fs, root: root, maxPathLength: maxPathLength}, nil
}

// RelPath is the storage reference for a slot's blob.
func RelPath(token, name string) string {
	return filepath.Join(token, name)
}

// FullPath returns the path of rel on the underlying filesystem.
func (s *Store) FullPath(rel string) string {
	return filepath.Join(s.root, rel)
}

// CheckPath reports ErrPathTooLong if the blob for token/name could not be
// created on a typical filesystem.
func (s *Store) CheckPath(token, name string) error {
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name is %d bytes", ErrPathTooLong, len(name))
	}
	full := s.FullPath(RelPath(token, name))
	if len(full) > s.maxPathLength {
		return fmt.Errorf("%w: %d > %d", ErrPathTooLong, len(full), s.maxPathLength)
	}
	return nil
}

// Stage writes at most limit+1 bytes of r to a temporary file in the token
// directory. The caller compares Written against the expected size.
func (s *Store) Stage(token string, r io.Reader, limit int64) (*Staged, error) {
	dir := s.FullPath(token)
	if err := s.fs.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	tmp := filepath.Join(dir, ".upload-"+uuid.NewString()+".tmp")

	f, err := s.fs.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	staged := &Staged{Dir: dir, Path: tmp}
	written, err := io.Copy(f, io.LimitReader(r, limit+1))
	staged.Written = written
	if err != nil {
		f.Close()
		s.Discard(staged)
		return nil, fmt.Errorf("write blob: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		s.Discard(staged)
		return nil, fmt.Errorf("sync blob: %w", err)
	}
	if err := f.Close(); err != nil {
		s.Discard(staged)
		return nil, fmt.Errorf("close blob: %w", err)
	}
	return staged, nil
}

// Commit moves a staged file to its final location.
func (s *Store) Commit(staged *Staged, rel string) error {
	if err := s.fs.Rename(staged.Path, s.FullPath(rel)); err != nil {
		return fmt.Errorf("commit blob: %w", err)
	}
	return nil
}

// Discard removes a staged file and its directory if that became empty.
func (s *Store) Discard(staged *Staged) {
	_ = s.fs.Remove(staged.Path)
	_, _ = s.RemoveDirIfEmpty(staged.Dir)
}

// Open returns the blob and its size. The caller closes the file.
func (s *Store) Open(rel string) (afero.File, int64, error) {
	f, err := s.fs.Open(s.FullPath(rel))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, rel)
		}
		return nil, 0, fmt.Errorf("open blob %s: %w", rel, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat blob %s: %w", rel, err)
	}
	return f, info.Size(), nil
}

// Delete removes a blob. A missing blob is not an error.
func (s *Store) Delete(rel string) error {
	err := s.fs.Remove(s.FullPath(rel))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %s: %w", rel, err)
	}
	return nil
}

// RemoveDirIfEmpty removes dir (absolute on the store's filesystem) only when
// it has no entries. A missing directory counts as removed.
func (s *Store) RemoveDirIfEmpty(dir string) (bool, error) {
	exists, err := afero.DirExists(s.fs, dir)
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", dir, err)
	}
	if !exists {
		return true, nil
	}
	empty, err := afero.IsEmpty(s.fs, dir)
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", dir, err)
	}
	if !empty {
		return false, nil
	}
	if err := s.fs.Remove(dir); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("remove %s: %w", dir, err)
	}
	return true, nil
}

// Dir returns the absolute directory holding rel.
func (s *Store) Dir(rel string) string {
	return filepath.Dir(s.FullPath(rel))
}
