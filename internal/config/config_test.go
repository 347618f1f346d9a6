package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSiteConfigDefaults(t *testing.T) {
	cfg, err := LoadSiteConfig(afero.NewMemMapFs(), "/site/config")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "home", cfg.Routes.HomeSlug())
	assert.Equal(t, "/home", cfg.Routes.LinkPrefix())
}

func TestLoadSiteConfigFromFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/site/config/violet.yaml", []byte(`RootURL: /blog/
Theme: dark
Website:
  Title: My Blog
  Meta:
    - name: og:type
      content: website
Routes:
  Home: /start
  HideInURL: false
Markdown:
  Sanitize: true
`), 0644))

	cfg, err := LoadSiteConfig(fs, "/site/config")
	require.NoError(t, err)
	assert.Equal(t, "/blog", cfg.RootURL)
	assert.Equal(t, "dark", cfg.Theme)
	assert.Equal(t, "My Blog", cfg.Website.Title)
	assert.Equal(t, []MetaTag{{Name: "og:type", Content: "website"}}, cfg.Website.Meta)
	assert.Equal(t, "/start", cfg.Routes.Home)
	assert.False(t, cfg.Routes.HideInURL)
	assert.Equal(t, "", cfg.Routes.LinkPrefix())
	assert.Equal(t, ErrorRoute, cfg.Routes.Redirect404)
	assert.True(t, cfg.Markdown.Sanitize)
	assert.True(t, cfg.Markdown.EscapeHTML)
}

func TestLoadSiteConfigEnvironment(t *testing.T) {
	t.Setenv("VIOLET_THEME", "fromenv")
	cfg, err := LoadSiteConfig(afero.NewMemMapFs(), "/site/config")
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.Theme)
}

func TestLoadSiteConfigInvalid(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/site/config/violet.yaml", []byte("Routes: ["), 0644))
	_, err := LoadSiteConfig(fs, "/site/config")
	assert.Error(t, err)
}

func TestLayout(t *testing.T) {
	l := Layout{Root: "/site"}
	assert.Equal(t, "/site/pages", l.PagesDir())
	assert.Equal(t, "/site/themes/violet", l.ThemeDir("violet"))
	assert.Equal(t, "/site/logs", l.LogDir())
}
