// Package storage is the filesystem collaborator of the build engine: file
// existence, modification times, deletion and directory creation, backed by
// an afero filesystem so the engine can run against disk or memory.
package storage

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
)

// Storage answers the questions the engine asks about paths.
type Storage interface {
	// Exists reports whether path exists, as a file or a directory.
	Exists(path string) bool
	// ModTime returns the modification time of path.
	ModTime(path string) (time.Time, error)
	// Remove deletes a file or an empty directory.
	Remove(path string) error
	// MkdirAll creates path and any missing parents.
	MkdirAll(path string) error
	// Fs exposes the backing filesystem to actions that write through it.
	Fs() afero.Fs
}

type aferoStorage struct {
	fs afero.Fs
}

// New wraps an afero filesystem.
func New(fs afero.Fs) Storage {
	return &aferoStorage{fs: fs}
}

// NewOS returns storage backed by the real filesystem.
func NewOS() Storage {
	return New(afero.NewOsFs())
}

// NewMemory returns storage backed by an in-memory filesystem.
func NewMemory() Storage {
	return New(afero.NewMemMapFs())
}

func (s *aferoStorage) Fs() afero.Fs { return s.fs }

func (s *aferoStorage) Exists(path string) bool {
	_, err := s.fs.Stat(path)
	return err == nil
}

func (s *aferoStorage) ModTime(path string) (time.Time, error) {
	info, err := s.fs.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.ModTime(), nil
}

func (s *aferoStorage) Remove(path string) error {
	info, err := s.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		entries, err := afero.ReadDir(s.fs, path)
		if err != nil {
			return fmt.Errorf("reading directory %s: %w", path, err)
		}
		if len(entries) > 0 {
			return fmt.Errorf("directory %s is not empty", path)
		}
	}
	if err := s.fs.Remove(path); err != nil {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

func (s *aferoStorage) MkdirAll(path string) error {
	if path == "" || path == "." {
		return nil
	}
	if err := s.fs.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", path, err)
	}
	return nil
}
