// Package scaffold creates the directory skeleton of a new site.
package scaffold

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"violet/internal/config"
	"violet/internal/content"
	"violet/internal/plugin"
	"violet/internal/storage"
)

var ErrNotEmpty = errors.New("target directory is not empty")

// CreateNewSite writes a site with the default theme, a home page, a search
// page and a config file for every built-in plugin below root.
func CreateNewSite(files *storage.Store, root string) error {
	if ok, _ := afero.IsEmpty(files.Fs(), root); files.IsDir(root) && !ok {
		return fmt.Errorf("%w: %s", ErrNotEmpty, root)
	}
	layout := config.Layout{Root: root}
	themeDir := layout.ThemeDir(config.Default().Theme)

	for _, dir := range []string{
		layout.ConfigDir(), layout.PagesDir(), layout.PluginDir(), layout.MediaDir(), layout.LogDir(),
		filepath.Join(themeDir, "templates", "sections"), filepath.Join(themeDir, "css"),
	} {
		if err := files.MkdirAll(dir); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	pages := content.NewStore(files, layout.PagesDir())
	type file struct{ path, data string }
	out := []file{
		{filepath.Join(layout.ConfigDir(), "violet.yaml"), siteConfig},
		{filepath.Join(themeDir, "templates", "default.html"), defaultTemplate},
		{filepath.Join(themeDir, "templates", "error.html"), errorTemplate},
		{filepath.Join(themeDir, "templates", "sections", "sidebar.html"), sidebarTemplate},
		{filepath.Join(themeDir, "css", "style.css"), styleSheet},
		{filepath.Join(pages.Dir("/home"), content.PageFile), homePage},
		{filepath.Join(pages.Dir("/search"), content.PageFile), searchPage},
		{filepath.Join(layout.PluginDir(), "date", "i18n", "en.json"), englishDates},
	}
	for name, cfg := range pluginConfigs {
		out = append(out, file{filepath.Join(layout.PluginDir(), name, plugin.ConfigFile), cfg})
	}

	for _, f := range out {
		dir := filepath.Dir(f.path)
		if err := files.MkdirAll(dir); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		if err := files.WriteFile(dir, filepath.Base(f.path), []byte(f.data)); err != nil {
			return fmt.Errorf("failed to write file %s: %w", f.path, err)
		}
	}
	return nil
}

const siteConfig = `RootURL: ""
Theme: violet
Website:
  Title: My violet site
  Description: A new site powered by violet.
  Keywords: violet, cms
  Meta:
    - name: og:type
      content: website
    - name: twitter:card
      content: summary
Routes:
  Home: /home
  HideInURL: true
  Redirect404: /error
Markdown:
  AutoLineBreak: true
  AutoURLLinks: false
  EscapeHTML: true
  Sanitize: false
`

const defaultTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{meta|title}}</title>
  <meta name="description" content="{{meta|description}}">
  <meta name="keywords" content="{{meta|keywords}}">
  <meta name="robots" content="{{meta|robots}}">
  {{meta|properties}}
  {{meta|canonicalurl}}
  <link rel="stylesheet" href="{{meta|themeurl}}/css/style.css">
</head>
<body>
  <header>
    <a href="{{meta|rooturl}}/">{{meta|title}}</a>
    {{search}}
    <nav>{{menu}}</nav>
  </header>
  <main>{CONTENT}</main>
  <aside>{#SIDEBAR#}</aside>
</body>
</html>
`

const errorTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{meta|title}}</title>
  <link rel="stylesheet" href="{{meta|themeurl}}/css/style.css">
</head>
<body>
  <nav>{{menu}}</nav>
  <main><h1>{CONTENT}</h1></main>
</body>
</html>
`

const sidebarTemplate = `<section class="sidebar">{{submenu}}{CONTENT}</section>`

const styleSheet = `body { font-family: sans-serif; max-width: 60rem; margin: 0 auto; padding: 1rem; }
nav ul { list-style: none; padding: 0; display: flex; gap: 1rem; }
aside { border-top: 1px solid #ccc; margin-top: 2rem; }
`

const homePage = `---
title: Home
template: default
robots: index, follow
published: true
visible: true
---
# Welcome

Today is {{date|today@en}}.
~~~section-marker~~~
{# The second section fills the sidebar placeholder. #}
Edit pages/home/page.md to change this text.
`

const searchPage = `---
title: Search
template: default
robots: noindex
published: true
visible: false
---
# Search results

{{search}}
`

var pluginConfigs = map[string]string{
	"menu": `enabled: true
info:
  version: 1.0.0
  description: Navigation menu of the visible pages.
config:
  - label: Show Submenus
    value: false
`,
	"submenu": `enabled: true
info:
  version: 1.0.0
  description: Lists the child pages of a page.
config:
  - label: Hide invisible pages
    value: true
`,
	"meta": `enabled: true
hidden: true
info:
  version: 1.0.0
  description: Page title, description and meta tags.
`,
	"date": `enabled: true
info:
  version: 1.0.0
  description: Localized publication and current dates.
`,
	"includepage": `enabled: true
info:
  version: 1.0.0
  description: Includes the first section of another page.
`,
	"tableofcontents": `enabled: true
info:
  version: 1.0.0
  description: Child pages with their summary.
config:
  - label: Link text
    value: Read more
  - label: Hide invisible pages
    value: true
`,
	"search": `enabled: true
info:
  version: 1.0.0
  description: Full text search over the published pages.
config:
  - label: Searchresult Page
    value: /search
  - label: Hide invisible pages
    value: false
`,
}

const englishDates = `{
  "main": {
    "en": {
      "dates": {
        "calendars": {
          "gregorian": {
            "months": {
              "format": {
                "abbreviated": {"1": "Jan", "2": "Feb", "3": "Mar", "4": "Apr", "5": "May", "6": "Jun",
                  "7": "Jul", "8": "Aug", "9": "Sep", "10": "Oct", "11": "Nov", "12": "Dec"},
                "wide": {"1": "January", "2": "February", "3": "March", "4": "April", "5": "May", "6": "June",
                  "7": "July", "8": "August", "9": "September", "10": "October", "11": "November", "12": "December"}
              }
            },
            "dateFormats": {"long": "MMMM d, y"}
          }
        }
      }
    }
  }
}
`
