package content

import (
	"errors"
	"fmt"
	"path/filepath"

	"violet/internal/route"
	"violet/internal/storage"
)

const (
	PageFile  = "page.md"
	DraftFile = "draft.md"
)

// ErrPageNotFound is returned when a URL has no page directory.
var ErrPageNotFound = errors.New("page not found")

// Store reads and writes the page files below the pages directory.
type Store struct {
	files    *storage.Store
	pagesDir string
}

func NewStore(files *storage.Store, pagesDir string) *Store {
	return &Store{files: files, pagesDir: pagesDir}
}

func (s *Store) Files() *storage.Store {
	return s.files
}

// PagesDir is the root of the page directory tree.
func (s *Store) PagesDir() string {
	return s.pagesDir
}

// Dir returns the directory backing the page at url.
func (s *Store) Dir(url string) string {
	return filepath.Join(append([]string{s.pagesDir}, route.PathSegments(url)...)...)
}

// Exists reports whether url has a published page file.
func (s *Store) Exists(url string) bool {
	return s.files.IsFile(filepath.Join(s.Dir(url), PageFile))
}

// HasDraft reports whether url has a draft next to its page file.
func (s *Store) HasDraft(url string) bool {
	return s.files.IsFile(filepath.Join(s.Dir(url), DraftFile))
}

// LoadRaw returns the unparsed published page file of url.
func (s *Store) LoadRaw(url string) (string, error) {
	dir, err := s.pageDir(url)
	if err != nil {
		return "", err
	}
	data, err := s.files.ReadFile(dir, PageFile)
	if err != nil {
		return "", fmt.Errorf("could not read page %s: %w", url, err)
	}
	return string(data), nil
}

// Load parses the page at url. With draft set the draft file is preferred and
// the published file is used when no draft exists.
func (s *Store) Load(url string, draft bool) (*Page, error) {
	dir, err := s.pageDir(url)
	if err != nil {
		return nil, err
	}
	name := PageFile
	if draft && s.HasDraft(url) {
		name = DraftFile
	}
	data, err := s.files.ReadFile(dir, name)
	if err != nil {
		return nil, fmt.Errorf("could not read page %s: %w", url, err)
	}
	page := Parse(string(data))
	return &page, nil
}

// Save writes fm and body to the page file of url, or to its draft file.
func (s *Store) Save(url string, fm Frontmatter, body string, draft bool) error {
	dir, err := s.pageDir(url)
	if err != nil {
		return err
	}
	name := PageFile
	if draft {
		name = DraftFile
	}
	if err := s.files.WriteFile(dir, name, []byte(Serialize(fm, body))); err != nil {
		return fmt.Errorf("could not save page %s: %w", url, err)
	}
	return nil
}

// DiscardDraft removes the draft of url. A missing draft is not an error.
func (s *Store) DiscardDraft(url string) error {
	dir, err := s.pageDir(url)
	if err != nil {
		return err
	}
	if !s.HasDraft(url) {
		return nil
	}
	if err := s.files.RemoveFile(dir, DraftFile); err != nil {
		return fmt.Errorf("could not discard draft of %s: %w", url, err)
	}
	return nil
}

func (s *Store) pageDir(url string) (string, error) {
	dir := s.Dir(url)
	if !s.files.IsDir(dir) {
		return "", fmt.Errorf("%w: %s", ErrPageNotFound, url)
	}
	return dir, nil
}
