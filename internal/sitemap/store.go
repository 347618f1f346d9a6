package sitemap

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"violet/internal/config"
	"violet/internal/content"
	"violet/internal/route"
	"violet/internal/storage"
)

// FileName is the cached tree inside the pages directory.
const FileName = "sitemap.json"

var (
	ErrNotFound    = errors.New("page not found in site tree")
	ErrDirNotFound = errors.New("page directory not found")
	ErrInvalidMove = errors.New("a page cannot be moved into itself")
)

// Fields are the node values a page update may change.
type Fields struct {
	Title         string
	Published     bool
	Visible       bool
	PublishDate   string
	UnpublishDate string
	// Slug renames the page directory when set and different from the
	// current one.
	Slug string
}

// FieldsFromFrontmatter maps saved page frontmatter onto node fields,
// applying the same defaults as a rebuild.
func FieldsFromFrontmatter(fm content.Frontmatter) Fields {
	n := nodeFromFrontmatter("", fm)
	return Fields{
		Title:         n.Title,
		Published:     n.Published,
		Visible:       n.Visible,
		PublishDate:   n.PublishDate,
		UnpublishDate: n.UnpublishDate,
	}
}

// Store loads, mutates and persists the site tree. Mutations made through
// one Store are serialized; separate processes writing the same tree still
// race and the last write wins.
type Store struct {
	mu     sync.Mutex
	pages  *content.Store
	files  *storage.Store
	routes config.Routes
	logger *slog.Logger
}

func NewStore(pages *content.Store, routes config.Routes, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		pages:  pages,
		files:  pages.Files(),
		routes: routes,
		logger: logger,
	}
}

func (s *Store) dir() string {
	return s.pages.PagesDir()
}

// Load reads the cached tree, rebuilding and persisting it from the page
// directories when the cache is missing or unreadable.
func (s *Store) Load() (*Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree := s.emptyTree()
	err := s.files.ReadJSON(s.dir(), FileName, tree)
	if err == nil {
		return tree, nil
	}
	s.logger.Info("rebuilding site tree", "reason", err)

	tree, err = s.rebuild()
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild site tree: %w", err)
	}
	if err := s.save(tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// Invalidate drops the cached tree so the next Load rebuilds it.
func (s *Store) Invalidate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.files.IsFile(filepath.Join(s.dir(), FileName)) {
		return nil
	}
	return s.files.RemoveFile(s.dir(), FileName)
}

func (s *Store) emptyTree() *Tree {
	return newTree(s.routes.Home, s.routes.HideInURL)
}

func (s *Store) save(tree *Tree) error {
	if err := s.files.WriteJSON(s.dir(), FileName, tree); err != nil {
		return fmt.Errorf("failed to save site tree: %w", err)
	}
	return nil
}

func (s *Store) rebuild() (*Tree, error) {
	tree := s.emptyTree()
	if err := s.walk(tree, s.dir(), "", noParent); err != nil {
		return nil, err
	}
	return tree, nil
}

func (s *Store) walk(tree *Tree, dir, parentURL string, parent NodeID) error {
	names, err := s.files.ListDirs(dir)
	if err != nil {
		return err
	}
	collate.New(language.Und, collate.Numeric, collate.IgnoreCase).SortStrings(names)

	for _, name := range names {
		if !s.files.IsFile(filepath.Join(dir, name, content.PageFile)) {
			continue
		}
		url := parentURL + "/" + name
		page, err := s.pages.Load(url, false)
		if err != nil {
			return err
		}
		id := tree.add(nodeFromFrontmatter(url, page.Frontmatter), parent)
		if err := s.walk(tree, filepath.Join(dir, name), url, id); err != nil {
			return err
		}
	}
	return nil
}

func nodeFromFrontmatter(url string, fm content.Frontmatter) Node {
	n := Node{URL: url, Title: "Untitled"}
	if title, ok := fm.String("title"); ok && title != "" {
		n.Title = title
	}
	n.Published, _ = fm.Bool("published")
	n.Visible, _ = fm.Bool("visible")
	n.PublishDate, _ = fm.String("publishDate")
	n.UnpublishDate, _ = fm.String("unpublishDate")
	return n
}

// parentDir resolves a parent URL; "" and "/" address the top level.
func (s *Store) parentDir(tree *Tree, parentURL string) (NodeID, string, error) {
	if parentURL == "" || parentURL == "/" {
		return noParent, s.dir(), nil
	}
	id, ok := tree.Find(parentURL)
	if !ok {
		return noParent, "", fmt.Errorf("%w: %s", ErrNotFound, parentURL)
	}
	dir := s.pages.Dir(parentURL)
	if !s.files.IsDir(dir) {
		return noParent, "", fmt.Errorf("%w: %s", ErrDirNotFound, parentURL)
	}
	return id, dir, nil
}

// NewPage describes a page to create.
type NewPage struct {
	Title     string
	Slug      string
	Template  string
	Visible   bool
	Published bool
}

// Create adds a page as the last child of parentURL. The slug is sanitized
// and made unique among its siblings, the directory is created with a seeded
// page file and the tree is persisted.
func (s *Store) Create(tree *Tree, parentURL string, p NewPage) (NodeID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, parentDir, err := s.parentDir(tree, parentURL)
	if err != nil {
		return 0, err
	}
	slug, err := s.files.UniqueName(parentDir, p.Slug)
	if err != nil {
		return 0, err
	}
	template := p.Template
	if template == "" {
		template = "default"
	}

	dir, err := s.files.CreateDir(parentDir, slug)
	if err != nil {
		return 0, err
	}
	var fm content.Frontmatter
	fm.Set("title", p.Title)
	fm.Set("template", template)
	fm.Set("robots", "index, follow")
	fm.Set("published", p.Published)
	fm.Set("visible", p.Visible)
	if err := s.files.WriteFile(dir, content.PageFile, []byte(content.Serialize(fm, "# "+p.Title))); err != nil {
		return 0, err
	}

	url := "/" + slug
	if parent != noParent {
		url = route.Join(tree.Node(parent).URL, slug)
	}
	id := tree.add(Node{
		URL:       url,
		Title:     p.Title,
		Published: p.Published,
		Visible:   p.Visible,
	}, parent)

	return id, s.save(tree)
}

// Move re-parents the page at source under targetParent at index. When the
// physical parent changes the directory is renamed first, using a unique name
// among its new siblings; only then is the tree rewritten and persisted.
func (s *Store) Move(tree *Tree, source, targetParent string, index int) (NodeID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sourceDir := s.pages.Dir(source)
	if !s.files.IsDir(sourceDir) {
		return 0, fmt.Errorf("%w: %s", ErrDirNotFound, source)
	}
	id, ok := tree.Find(source)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, source)
	}
	parent, targetDir, err := s.parentDir(tree, targetParent)
	if err != nil {
		return 0, err
	}
	if parent != noParent && tree.isWithin(parent, id) {
		return 0, fmt.Errorf("%w: %s into %s", ErrInvalidMove, source, targetParent)
	}

	name := filepath.Base(sourceDir)
	if filepath.Dir(sourceDir) != targetDir {
		name, err = s.files.UniqueName(targetDir, name)
		if err != nil {
			return 0, err
		}
		if err := s.files.Rename(sourceDir, filepath.Join(targetDir, name)); err != nil {
			return 0, err
		}
	}

	tree.detach(id)
	tree.insert(id, parent, index)
	parentURL := ""
	if parent != noParent {
		parentURL = tree.Node(parent).URL
	}
	tree.setURL(id, route.Join(parentURL, name))

	return id, s.save(tree)
}

// Update replaces the scalar fields of the page at url. A changed Slug renames
// the directory and rewrites the URLs below it; the node is only touched once
// the rename succeeded. It returns false when url is not in the tree.
func (s *Store) Update(tree *Tree, url string, f Fields) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := tree.Find(url)
	if !ok {
		return false, nil
	}

	url = tree.Node(id).URL
	if f.Slug != "" && storage.SanitizeName(f.Slug) != route.Slug(url) {
		dir := s.pages.Dir(url)
		if !s.files.IsDir(dir) {
			return false, fmt.Errorf("%w: %s", ErrDirNotFound, url)
		}
		name, err := s.files.UniqueName(filepath.Dir(dir), f.Slug)
		if err != nil {
			return false, err
		}
		if err := s.files.Rename(dir, filepath.Join(filepath.Dir(dir), name)); err != nil {
			return false, err
		}
		parentURL := ""
		if parent, ok := tree.Parent(id); ok {
			parentURL = tree.Node(parent).URL
		}
		url = route.Join(parentURL, name)
	}

	node := &tree.nodes[id].node
	node.Title = f.Title
	if node.Title == "" {
		node.Title = "Untitled"
	}
	node.Published = f.Published
	node.Visible = f.Visible
	node.PublishDate = f.PublishDate
	node.UnpublishDate = f.UnpublishDate
	tree.setURL(id, url)

	return true, s.save(tree)
}

// Delete removes the page at url with its subtree and its directory.
func (s *Store) Delete(tree *Tree, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := tree.Find(url)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	dir := s.pages.Dir(url)
	if !s.files.IsDir(dir) {
		return fmt.Errorf("%w: %s", ErrDirNotFound, url)
	}
	if err := s.files.RemoveDir(dir); err != nil {
		return err
	}
	tree.detach(id)
	return s.save(tree)
}
