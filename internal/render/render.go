// Package render turns a request path into a finished page. Every request
// re-reads the site configuration, the site tree, the page file, the theme
// and the plugin configuration from the site directory.
package render

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"violet/internal/accesslog"
	"violet/internal/config"
	"violet/internal/content"
	"violet/internal/markdown"
	"violet/internal/plugin"
	"violet/internal/sitemap"
	"violet/internal/storage"
	"violet/internal/theme"
)

// DraftQuery is the query string that asks for the draft of a page.
const DraftQuery = "draft"

// Request is one page request.
type Request struct {
	// Path is the request path including the site's root URL.
	Path string
	// Query is the raw query string without '?'.
	Query string
	// DraftAllowed reports whether the caller may see drafts. A draft is only
	// rendered when it is set and Query is exactly "draft".
	DraftAllowed bool
	// Log receives the status and body size of the response. Nil discards.
	Log accesslog.Sink
}

// Response is the outcome of a render.
type Response struct {
	Status int
	// Location is set for redirects.
	Location string
	Body     string
}

// Renderer renders the pages of one site directory.
type Renderer struct {
	files  *storage.Store
	layout config.Layout
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Renderer)

// WithClock replaces the clock publication dates are compared against.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) { r.logger = logger }
}

func New(files *storage.Store, layout config.Layout, opts ...Option) *Renderer {
	r := &Renderer{
		files:  files,
		layout: layout,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// site bundles everything a render reads, loaded fresh for each request.
type site struct {
	cfg      config.SiteConfig
	pages    *content.Store
	tree     *sitemap.Tree
	themes   *theme.Loader
	markdown *markdown.Renderer
	plugins  *plugin.Registry
}

func (r *Renderer) load() (*site, error) {
	cfg, err := config.LoadSiteConfig(r.files.Fs(), r.layout.ConfigDir())
	if err != nil {
		return nil, err
	}
	pages := content.NewStore(r.files, r.layout.PagesDir())
	tree, err := sitemap.NewStore(pages, cfg.Routes, r.logger).Load()
	if err != nil {
		return nil, err
	}
	md := markdown.New(markdown.OptionsFromConfig(cfg))

	plugins, err := plugin.LoadAll(r.files, r.layout.PluginDir(), plugin.Env{
		Site:     cfg,
		ThemeURL: cfg.RootURL + "/themes/" + cfg.Theme,
		Pages:    pages,
		Files:    r.files,
		Markdown: md,
		Logger:   r.logger,
	})
	if err != nil {
		return nil, err
	}

	return &site{
		cfg:      cfg,
		pages:    pages,
		tree:     tree,
		themes:   theme.NewLoader(r.files, r.layout.ThemeDir(cfg.Theme)),
		markdown: md,
		plugins:  plugins,
	}, nil
}

// Render answers req. Missing pages, unpublished pages and missing templates
// are answered with a 404 response. The returned error reports a broken site
// directory; callers answer it with a generic server error.
func (r *Renderer) Render(req Request) (*Response, error) {
	s, err := r.load()
	if err != nil {
		return nil, fmt.Errorf("could not load site: %w", err)
	}
	if req.Log == nil {
		req.Log = accesslog.Nop{}
	}

	run := &run{
		site:   s,
		req:    req,
		logger: r.logger,
		status: http.StatusOK,
		ctx: plugin.Context{
			Query: req.Query,
			Draft: req.DraftAllowed && req.Query == DraftQuery,
			Tree:  s.tree,
			Today: r.now().Format(time.DateOnly),
		},
	}
	if err := run.execute(); err != nil {
		return nil, err
	}
	return &run.resp, nil
}

// stripRoot makes path relative to the root URL the site is served under.
func stripRoot(path, rootURL string) string {
	if rootURL == "" || !strings.HasPrefix(path, rootURL) {
		return path
	}
	rest := path[len(rootURL):]
	if rest == "" || strings.HasPrefix(rest, "/") {
		return rest
	}
	return path
}
