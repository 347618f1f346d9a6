package content

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"violet/internal/storage"
)

func TestParse(t *testing.T) {
	raw := "---\ntitle: Hello: World\npublished: true\nvisible: false\nno colon here\n\n---\n\n# Body A\n~~~section-marker~~~\n  Body B  \n"
	page := Parse(raw)

	title, ok := page.Frontmatter.String("title")
	require.True(t, ok)
	assert.Equal(t, "Hello: World", title)

	published, ok := page.Frontmatter.Bool("published")
	require.True(t, ok)
	assert.True(t, published)

	visible, ok := page.Frontmatter.Bool("visible")
	require.True(t, ok)
	assert.False(t, visible)

	assert.Equal(t, []string{"title", "published", "visible"}, page.Frontmatter.Keys())
	assert.Equal(t, []string{"# Body A", "Body B"}, page.Sections)
	assert.Equal(t, "", page.Section(5))
}

func TestParseWithoutFrontmatter(t *testing.T) {
	page := Parse("\n\nJust text\n---\nmore")
	assert.Equal(t, 0, page.Frontmatter.Len())
	assert.Equal(t, "Just text\n---\nmore", page.Content)
	assert.Equal(t, []string{"Just text\n---\nmore"}, page.Sections)
}

func TestParseUnclosedFrontmatter(t *testing.T) {
	page := Parse("---\ntitle: x\nbody")
	assert.Equal(t, 0, page.Frontmatter.Len())
	assert.Equal(t, "---\ntitle: x\nbody", page.Content)
}

func TestSerializeRoundTripScalars(t *testing.T) {
	var fm Frontmatter
	fm.Set("title", "About")
	fm.Set("template", "default")
	fm.Set("published", true)
	fm.Set("visible", false)

	body := JoinSections([]string{"Body A", "Body B"})
	page := Parse(Serialize(fm, body))

	assert.Equal(t, fm.Keys(), page.Frontmatter.Keys())
	for _, key := range fm.Keys() {
		want, _ := fm.Get(key)
		got, _ := page.Frontmatter.Get(key)
		assert.Equal(t, want, got, key)
	}
	assert.Equal(t, []string{"Body A", "Body B"}, page.Sections)
}

func TestSerializeFlattensArraysAndDropsObjects(t *testing.T) {
	var fm Frontmatter
	fm.Set("title", "Tags")
	fm.Set("tags", []string{"go", "cms"})
	fm.Set("meta", map[string]any{"name": "og:title"})
	fm.Set("redirectURL", nil)

	out := Serialize(fm, "body")
	assert.Equal(t, "---\ntitle: Tags\ntags: go,cms\n---\nbody", out)

	page := Parse(out)
	tags, ok := page.Frontmatter.String("tags")
	require.True(t, ok)
	assert.Equal(t, "go,cms", tags)
	_, ok = page.Frontmatter.Get("meta")
	assert.False(t, ok)
}

func TestFrontmatterDelete(t *testing.T) {
	var fm Frontmatter
	fm.Set("a", "1")
	fm.Set("b", "2")
	fm.Set("c", "3")
	fm.Delete("b")
	fm.Delete("missing")
	assert.Equal(t, []string{"a", "c"}, fm.Keys())
}

func TestFrontmatterFromMap(t *testing.T) {
	fm := FrontmatterFromMap(map[string]any{"visible": true, "title": "x"})
	assert.Equal(t, []string{"title", "visible"}, fm.Keys())
}

func newTestStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/site/pages/blog", 0755))
	require.NoError(t, afero.WriteFile(fs, "/site/pages/blog/page.md", []byte("---\ntitle: Blog\n---\nPublished"), 0644))
	return NewStore(storage.New(fs), "/site/pages"), fs
}

func TestStoreDraftFallsBackToPage(t *testing.T) {
	s, _ := newTestStore(t)

	page, err := s.Load("/blog", true)
	require.NoError(t, err)
	assert.Equal(t, "Published", page.Content)
	assert.False(t, s.HasDraft("/blog"))
}

func TestStoreDraftLifecycle(t *testing.T) {
	s, fs := newTestStore(t)

	var fm Frontmatter
	fm.Set("title", "Blog")
	require.NoError(t, s.Save("/blog", fm, "Draft", true))
	assert.True(t, s.HasDraft("/blog"))

	draft, err := s.Load("/blog", true)
	require.NoError(t, err)
	assert.Equal(t, "Draft", draft.Content)

	published, err := s.Load("/blog", false)
	require.NoError(t, err)
	assert.Equal(t, "Published", published.Content)

	require.NoError(t, s.DiscardDraft("/blog"))
	assert.False(t, s.HasDraft("/blog"))
	require.NoError(t, s.DiscardDraft("/blog"))

	ok, err := afero.Exists(fs, "/site/pages/blog/page.md")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStoreMissingPage(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Load("/nope", false)
	assert.ErrorIs(t, err, ErrPageNotFound)

	require.NoError(t, s.Files().Fs().MkdirAll("/site/pages/empty", 0755))
	_, err = s.Load("/empty", false)
	assert.ErrorIs(t, err, storage.ErrFileNotFound)
}

func TestStoreDirResolvesPagesPrefix(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Equal(t, "/site/pages/blog", s.Dir("/pages/blog"))
	assert.Equal(t, "/site/pages", s.Dir("/"))
	assert.True(t, s.Exists("/blog"))
}
