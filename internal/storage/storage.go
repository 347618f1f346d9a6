// Package storage is the byte-level file capability the CMS core consumes.
// Every read and write goes through an afero.Fs so the same code serves the
// OS filesystem and in-memory filesystems in tests.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

var (
	ErrDirNotFound  = errors.New("directory not found")
	ErrFileNotFound = errors.New("file not found")
	ErrInvalidName  = errors.New("invalid file name")
)

// Store wraps a filesystem with the handful of operations the CMS needs.
type Store struct {
	fs afero.Fs
}

func New(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// Fs exposes the underlying filesystem.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

func (s *Store) IsDir(path string) bool {
	ok, err := afero.DirExists(s.fs, path)
	return err == nil && ok
}

func (s *Store) IsFile(path string) bool {
	info, err := s.fs.Stat(path)
	return err == nil && !info.IsDir()
}

// ReadFile returns the contents of dir/name.
func (s *Store) ReadFile(dir, name string) ([]byte, error) {
	if !s.IsDir(dir) {
		return nil, fmt.Errorf("%w: %s", ErrDirNotFound, dir)
	}
	clean := SanitizeName(name)
	if clean == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	data, err := afero.ReadFile(s.fs, filepath.Join(dir, clean))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filepath.Join(dir, clean))
	}
	return data, err
}

// WriteFile replaces dir/name as a whole. The data is written to a temporary
// sibling first and renamed over the target so readers never observe a
// partially written file.
func (s *Store) WriteFile(dir, name string, data []byte) error {
	if !s.IsDir(dir) {
		return fmt.Errorf("%w: %s", ErrDirNotFound, dir)
	}
	clean := SanitizeName(name)
	if clean == "" {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	target := filepath.Join(dir, clean)

	tmp, err := afero.TempFile(s.fs, dir, "."+clean+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", target, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := s.fs.Rename(tmpName, target); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", target, err)
	}
	return nil
}

// ReadJSON decodes dir/name into v.
func (s *Store) ReadJSON(dir, name string, v any) error {
	data, err := s.ReadFile(dir, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON in %s: %w", filepath.Join(dir, name), err)
	}
	return nil
}

// WriteJSON encodes v as indented JSON into dir/name.
func (s *Store) WriteJSON(dir, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return s.WriteFile(dir, name, data)
}

// ListDirs returns the names of the visible sub-directories of dir.
func (s *Store) ListDirs(dir string) ([]string, error) {
	return s.list(dir, true)
}

// ListFiles returns the names of the regular files in dir.
func (s *Store) ListFiles(dir string) ([]string, error) {
	return s.list(dir, false)
}

func (s *Store) list(dir string, dirs bool) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDirNotFound, dir)
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() != dirs || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// CreateDir creates parent/name and returns its path.
func (s *Store) CreateDir(parent, name string) (string, error) {
	if !s.IsDir(parent) {
		return "", fmt.Errorf("%w: %s", ErrDirNotFound, parent)
	}
	clean := SanitizeName(name)
	if clean == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	path := filepath.Join(parent, clean)
	if err := s.fs.Mkdir(path, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return path, nil
}

// MkdirAll creates path and any missing parents.
func (s *Store) MkdirAll(path string) error {
	return s.fs.MkdirAll(path, 0755)
}

// Rename moves a file or directory.
func (s *Store) Rename(from, to string) error {
	if err := s.fs.Rename(from, to); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", from, to, err)
	}
	return nil
}

// RemoveFile deletes dir/name.
func (s *Store) RemoveFile(dir, name string) error {
	path := filepath.Join(dir, SanitizeName(name))
	if !s.IsFile(path) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	return s.fs.Remove(path)
}

// RemoveDir deletes dir recursively.
func (s *Store) RemoveDir(dir string) error {
	if !s.IsDir(dir) {
		return fmt.Errorf("%w: %s", ErrDirNotFound, dir)
	}
	if err := s.fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete directory %s: %w", dir, err)
	}
	return nil
}

// UniqueName returns a sanitized version of suggested that does not collide
// with any entry of dir: "name", then "name-1", "name-2" and so on.
func (s *Store) UniqueName(dir, suggested string) (string, error) {
	clean := SanitizeName(suggested)
	if clean == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, suggested)
	}
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDirNotFound, dir)
	}
	taken := make(map[string]bool, len(entries))
	for _, entry := range entries {
		taken[entry.Name()] = true
	}
	if !taken[clean] {
		return clean, nil
	}
	ext := filepath.Ext(clean)
	base := strings.TrimSuffix(clean, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s-%d%s", base, n, ext)
		if !taken[candidate] {
			return candidate, nil
		}
	}
}

var (
	invalidNameChars = regexp.MustCompile(`[^A-Za-z0-9\-_.]`)
	invalidExtChars  = regexp.MustCompile(`[^a-z0-9]`)
)

// SanitizeName strips everything but ASCII letters, digits, '-', '_' and '.'
// from a file name. It returns "" when nothing usable is left.
func SanitizeName(name string) string {
	name = filepath.Base(name)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		// ".hidden" has no extension, only a name.
		base, ext = ext, ""
	}
	base = strings.Trim(invalidNameChars.ReplaceAllString(base, ""), ".-")
	ext = invalidExtChars.ReplaceAllString(strings.TrimPrefix(ext, "."), "")
	if base == "" {
		return ""
	}
	max := 255
	if ext != "" {
		max -= len(ext) + 1
	}
	if len(base) > max {
		base = base[:max]
	}
	if ext == "" {
		return base
	}
	return base + "." + ext
}
