package render

import (
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"violet/internal/config"
	"violet/internal/content"
	_ "violet/internal/plugin/builtin"
	"violet/internal/storage"
)

const root = "/site"

var layout = config.Layout{Root: root}

type record struct{ status, bytes int }

type recorder struct{ records []record }

func (r *recorder) Record(status, bytes int) {
	r.records = append(r.records, record{status, bytes})
}

func write(t *testing.T, fs afero.Fs, path, data string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(data), 0644))
}

func writePage(t *testing.T, fs afero.Fs, rel, frontmatter, body string) {
	t.Helper()
	write(t, fs, filepath.Join(layout.PagesDir(), rel, content.PageFile), "---\n"+frontmatter+"\n---\n"+body)
}

const (
	defaultTemplate = "<html><title>{{meta|title}}</title><nav>{{menu}}</nav><main>{CONTENT}</main><aside>{#SIDEBAR#}</aside>{#FOOTER#}</html>"
	sidebarTemplate = `<div class="side">{CONTENT}</div>`
	errorTemplate   = "<h1>{CONTENT}</h1>"
)

func newSite(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	themeDir := filepath.Join(layout.ThemeDir("violet"), "templates")
	write(t, fs, filepath.Join(themeDir, "default.html"), defaultTemplate)
	write(t, fs, filepath.Join(themeDir, "sections", "sidebar.html"), sidebarTemplate)
	write(t, fs, filepath.Join(themeDir, "error.html"), errorTemplate)

	live := "published: true\nvisible: true\ntemplate: default"
	writePage(t, fs, "home", "title: Home\n"+live, "Body A\n"+content.SectionMarker+"\nBody B")
	writePage(t, fs, "about", "title: About\n"+live, "About us")
	writePage(t, fs, "future", "title: Future\n"+live+"\npublishDate: 2024-05-02", "Soon")
	writePage(t, fs, "expired", "title: Expired\n"+live+"\nunpublishDate: 2024-05-01", "Gone")
	writePage(t, fs, "hidden", "title: Hidden\npublished: false\nvisible: true\ntemplate: default", "Published text")
	write(t, fs, filepath.Join(layout.PagesDir(), "hidden", content.DraftFile), "---\ntemplate: default\n---\nDraft text")
	writePage(t, fs, "notemplate", "title: No template\npublished: true", "x")
	writePage(t, fs, "badtemplate", "title: Bad\npublished: true\ntemplate: nope", "x")
	writePage(t, fs, "moved", "title: Moved\npublished: true\nredirectURL: https://example.com/new", "x")
	writePage(t, fs, "local", "title: Local\npublished: true\nredirectURL: /about", "x")
	return fs
}

func renderer(fs afero.Fs, day int) *Renderer {
	now := time.Date(2024, time.May, day, 12, 0, 0, 0, time.UTC)
	return New(storage.New(fs), layout, WithClock(func() time.Time { return now }))
}

func get(t *testing.T, r *Renderer, path, query string) (*Response, *recorder) {
	t.Helper()
	rec := &recorder{}
	resp, err := r.Render(Request{Path: path, Query: query, Log: rec})
	require.NoError(t, err)
	return resp, rec
}

func TestRenderPage(t *testing.T) {
	resp, rec := get(t, renderer(newSite(t), 1), "/", "")

	want := "<html><title>{{meta|title}}</title><nav>{{menu}}</nav>" +
		"<main><p>Body A</p>\n</main>" +
		`<aside><div class="side"><p>Body B</p>` + "\n</div></aside></html>"
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, want, resp.Body)
	assert.Equal(t, []record{{200, len(want)}}, rec.records)
}

func TestRenderRedirectsToCanonicalRoute(t *testing.T) {
	r := renderer(newSite(t), 1)
	tests := []struct {
		path, query, location string
	}{
		{"/home", "", "/"},
		{"/home/about.html", "x=1", "/about?x=1"},
		{"/about/", "", "/about"},
		{"", "", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, rec := get(t, r, tt.path, tt.query)
			assert.Equal(t, http.StatusMovedPermanently, resp.Status)
			assert.Equal(t, tt.location, resp.Location)
			assert.Empty(t, resp.Body)
			assert.Equal(t, []record{{301, 0}}, rec.records)
		})
	}
}

func TestRenderFrontmatterRedirect(t *testing.T) {
	r := renderer(newSite(t), 1)

	resp, _ := get(t, r, "/moved", "")
	assert.Equal(t, http.StatusMovedPermanently, resp.Status)
	assert.Equal(t, "https://example.com/new", resp.Location)

	resp, _ = get(t, r, "/local", "")
	assert.Equal(t, "/about", resp.Location)
}

func TestRenderNotFound(t *testing.T) {
	r := renderer(newSite(t), 1)
	tests := []struct {
		path, body string
	}{
		{"/missing", "<h1>404 – Not found</h1>"},
		{"/hidden", "<h1>404 – Not found</h1>"},
		{"/expired", "<h1>404 – Not found</h1>"},
		{"/notemplate", "<h1>No template specified.</h1>"},
		{"/badtemplate", `<h1>Template "nope" does not exist.</h1>`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, rec := get(t, r, tt.path, "")
			assert.Equal(t, http.StatusNotFound, resp.Status)
			assert.Equal(t, tt.body, resp.Body)
			assert.Equal(t, []record{{404, len(tt.body)}}, rec.records)
		})
	}
}

func TestRenderPublishDate(t *testing.T) {
	fs := newSite(t)

	resp, _ := get(t, renderer(fs, 1), "/future", "")
	assert.Equal(t, http.StatusNotFound, resp.Status)

	resp, _ = get(t, renderer(fs, 2), "/future", "")
	assert.Equal(t, http.StatusOK, resp.Status)

	resp, _ = get(t, renderer(fs, 3), "/future", "")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, "<p>Soon</p>")
}

func TestRenderDraft(t *testing.T) {
	r := renderer(newSite(t), 1)

	rec := &recorder{}
	resp, err := r.Render(Request{Path: "/hidden", Query: "draft", DraftAllowed: true, Log: rec})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, "<p>Draft text</p>")
	assert.Empty(t, rec.records)

	// Without permission the query is an ordinary query string.
	resp, rec = get(t, r, "/hidden", "draft")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Len(t, rec.records, 1)

	rec = &recorder{}
	resp, err = r.Render(Request{Path: "/hidden", Query: "draft=1", DraftAllowed: true, Log: rec})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestRenderCustomErrorPage(t *testing.T) {
	fs := newSite(t)
	write(t, fs, filepath.Join(layout.ConfigDir(), "violet.yaml"), "Routes:\n  Redirect404: /about\n")

	resp, rec := get(t, renderer(fs, 1), "/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Contains(t, resp.Body, "<main><p>About us</p>\n</main>")
	assert.Equal(t, []record{{404, len(resp.Body)}}, rec.records)
}

func TestRenderErrorPageThatIsMissing(t *testing.T) {
	tests := []struct {
		errorRoute, body string
	}{
		{"/nowhere", "<h1>404 - Not found</h1>"},
		{"/notemplate", "No template specified."},
	}
	for _, tt := range tests {
		t.Run(tt.errorRoute, func(t *testing.T) {
			fs := newSite(t)
			write(t, fs, filepath.Join(layout.ConfigDir(), "violet.yaml"), "Routes:\n  Redirect404: "+tt.errorRoute+"\n")

			resp, rec := get(t, renderer(fs, 1), "/missing", "")
			assert.Equal(t, http.StatusNotFound, resp.Status)
			assert.Equal(t, tt.body, resp.Body)
			assert.Equal(t, []record{{404, len(tt.body)}}, rec.records)
		})
	}
}

func TestRenderWithoutErrorTemplate(t *testing.T) {
	fs := newSite(t)
	require.NoError(t, fs.Remove(filepath.Join(layout.ThemeDir("violet"), "templates", "error.html")))

	resp, _ := get(t, renderer(fs, 1), "/badtemplate", "")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, `Template "nope" does not exist.`, resp.Body)
}

func TestRenderSectionsArePositional(t *testing.T) {
	fs := newSite(t)
	themeDir := filepath.Join(layout.ThemeDir("violet"), "templates")
	write(t, fs, filepath.Join(themeDir, "twocol.html"), "<main>{CONTENT}</main><aside>{#SIDEBAR#}</aside><main>{CONTENT}</main>")
	writePage(t, fs, "cols", "published: true\ntemplate: twocol", "Body A"+content.SectionMarker+"Body B"+content.SectionMarker+"Body C")

	resp, _ := get(t, renderer(fs, 1), "/cols", "")
	assert.Equal(t,
		"<main><p>Body A</p>\n</main><aside><div class=\"side\"><p>Body B</p>\n</div></aside><main><p>Body A</p>\n</main>",
		resp.Body)
}

func TestRenderPlugins(t *testing.T) {
	fs := newSite(t)
	write(t, fs, filepath.Join(layout.ConfigDir(), "violet.yaml"), "Website:\n  Title: Site\n")
	write(t, fs, filepath.Join(layout.PluginDir(), "menu", "config.yaml"), "enabled: true\n")
	write(t, fs, filepath.Join(layout.PluginDir(), "meta", "config.yaml"), "enabled: true\n")

	r := renderer(fs, 1)
	resp, _ := get(t, r, "/about", "")
	assert.Contains(t, resp.Body, "<title>Site · About</title>")
	assert.Contains(t, resp.Body, `<nav><ul><li><a href="/about">About</a></li><li><a href="/">Home</a></li></ul></nav>`)

	write(t, fs, filepath.Join(layout.ThemeDir("violet"), "templates", "error.html"), "<title>{{meta|title}}</title>{CONTENT}")
	resp, _ = get(t, r, "/missing", "")
	assert.Equal(t, "<title>Site</title>404 – Not found", resp.Body)
}

func TestRenderUnderRootURL(t *testing.T) {
	fs := newSite(t)
	write(t, fs, filepath.Join(layout.ConfigDir(), "violet.yaml"), "RootURL: /sub/\n")
	writePage(t, fs, "links", "published: true\ntemplate: default", "[About](/home/about) ![logo](/media/logo.png)")
	r := renderer(fs, 1)

	resp, _ := get(t, r, "/sub/about", "")
	assert.Equal(t, http.StatusOK, resp.Status)

	resp, _ = get(t, r, "/sub/home", "")
	assert.Equal(t, "/sub/", resp.Location)

	resp, _ = get(t, r, "/sub/links", "")
	assert.Contains(t, resp.Body, `<a href="/sub/about">About</a>`)
	assert.Contains(t, resp.Body, `src="/sub/media/logo.png"`)
}

func TestRenderBrokenSite(t *testing.T) {
	fs := newSite(t)
	write(t, fs, filepath.Join(layout.PagesDir(), "sitemap.json"),
		`[{"url":"/ghost","title":"Ghost","published":true,"visible":true,"children":[]}]`)

	_, err := renderer(fs, 1).Render(Request{Path: "/ghost"})
	assert.Error(t, err)
}
