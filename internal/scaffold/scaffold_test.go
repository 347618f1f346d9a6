package scaffold

import (
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"violet/internal/config"
	_ "violet/internal/plugin/builtin"
	"violet/internal/render"
	"violet/internal/storage"
)

func TestCreateNewSiteRenders(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := storage.New(fs)
	require.NoError(t, CreateNewSite(files, "/mysite"))

	layout := config.Layout{Root: "/mysite"}
	now := time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)
	r := render.New(files, layout, render.WithClock(func() time.Time { return now }))

	resp, err := r.Render(render.Request{Path: "/"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Body, "<title>My violet site · Home</title>")
	assert.Contains(t, resp.Body, `<nav><ul><li><a href="/">Home</a></li></ul></nav>`)
	assert.Contains(t, resp.Body, `action="/search"`)
	assert.Contains(t, resp.Body, "Today is May 1, 2024.")
	assert.Contains(t, resp.Body, `<section class="sidebar"><p>Edit pages/home/page.md to change this text.</p>`)
	assert.NotContains(t, resp.Body, "{{")

	resp, err = r.Render(render.Request{Path: "/missing"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Contains(t, resp.Body, "<h1>404 – Not found</h1>")
	assert.Contains(t, resp.Body, "<title>My violet site</title>")
}

func TestCreateNewSiteRefusesNonEmptyDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, filepath.Join("/mysite", "keep.txt"), []byte("x"), 0644))

	err := CreateNewSite(storage.New(fs), "/mysite")
	assert.ErrorIs(t, err, ErrNotEmpty)
}
