package render

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"violet/internal/config"
	"violet/internal/plugin"
	"violet/internal/route"
	"violet/internal/sitemap"
	"violet/internal/theme"
	"violet/internal/util"
)

type state int

const (
	stateResolveRoute state = iota
	stateLookupPage
	stateCheckVisibility
	stateLoadContent
	stateCheckRedirect
	stateLoadTemplate
	stateRenderSections
	stateAssembleDocument
	stateRedirect301
	stateRender404
	stateDone
)

var stateNames = [...]string{
	stateResolveRoute:     "ResolveRoute",
	stateLookupPage:       "LookupPage",
	stateCheckVisibility:  "CheckVisibility",
	stateLoadContent:      "LoadContent",
	stateCheckRedirect:    "CheckRedirect",
	stateLoadTemplate:     "LoadTemplate",
	stateRenderSections:   "RenderSections",
	stateAssembleDocument: "AssembleDocument",
	stateRedirect301:      "Redirect301",
	stateRender404:        "Render404",
	stateDone:             "Done",
}

func (s state) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const (
	errorPageTemplate = "error"
	notFoundMessage   = "404 – Not found"
	minimalNotFound   = "<h1>404 - Not found</h1>"
)

// run is the state of one request moving through the pipeline.
type run struct {
	site   *site
	req    Request
	logger *slog.Logger
	ctx    plugin.Context

	// hasRetried404 is set on the first transition to Render404. A second
	// transition answers with the minimal error body.
	hasRetried404 bool
	// status is pinned to 404 while the configured error page renders.
	status int

	node     sitemap.Node
	tmpl     *theme.Template
	sections map[string]string

	// target and targetQuery describe a pending 301.
	target      string
	targetQuery string
	// message explains a pending 404.
	message string

	resp Response
}

func (r *run) execute() error {
	st := stateResolveRoute
	for st != stateDone {
		next, err := r.step(st)
		if err != nil {
			return fmt.Errorf("%s %s: %w", st, r.ctx.Route, err)
		}
		st = next
	}
	return nil
}

func (r *run) step(st state) (state, error) {
	switch st {
	case stateResolveRoute:
		return r.resolveRoute()
	case stateLookupPage:
		return r.lookupPage()
	case stateCheckVisibility:
		return r.checkVisibility()
	case stateLoadContent:
		return r.loadContent()
	case stateCheckRedirect:
		return r.checkRedirect()
	case stateLoadTemplate:
		return r.loadTemplate()
	case stateRenderSections:
		return r.renderSections()
	case stateAssembleDocument:
		return r.assembleDocument()
	case stateRedirect301:
		return r.redirect301()
	case stateRender404:
		return r.render404()
	}
	return stateDone, fmt.Errorf("unknown render state %d", int(st))
}

func (r *run) notFound(message string) (state, error) {
	r.message = message
	return stateRender404, nil
}

func (r *run) resolveRoute() (state, error) {
	routes := r.site.cfg.Routes
	path := stripRoot(r.req.Path, r.site.cfg.RootURL)
	clean := route.Canonicalize(path, routes.Home, routes.HideInURL)
	if !route.IsCanonical(path, clean) {
		r.target, r.targetQuery = clean, r.req.Query
		return stateRedirect301, nil
	}
	r.ctx.Route = clean
	return stateLookupPage, nil
}

func (r *run) lookupPage() (state, error) {
	id, ok := r.site.tree.FindByRoute(r.ctx.Route, true)
	if !ok {
		return r.notFound("")
	}
	r.node = r.site.tree.Node(id)
	return stateCheckVisibility, nil
}

func (r *run) checkVisibility() (state, error) {
	if r.ctx.Draft {
		return stateLoadContent, nil
	}
	if !r.node.Live(r.ctx.Today) {
		return r.notFound("")
	}
	return stateLoadContent, nil
}

func (r *run) loadContent() (state, error) {
	page, err := r.site.pages.Load(r.node.URL, r.ctx.Draft)
	if err != nil {
		return stateDone, err
	}
	r.ctx.Page = page
	return stateCheckRedirect, nil
}

func (r *run) checkRedirect() (state, error) {
	if target, _ := r.ctx.Page.Frontmatter.String("redirectURL"); target != "" {
		r.target, r.targetQuery = target, ""
		return stateRedirect301, nil
	}
	return stateLoadTemplate, nil
}

func (r *run) loadTemplate() (state, error) {
	name, _ := r.ctx.Page.Frontmatter.String("template")
	if name == "" {
		return r.notFound("No template specified.")
	}
	tmpl, err := r.site.themes.Load(name)
	if errors.Is(err, theme.ErrTemplateNotFound) {
		return r.notFound(`Template "` + name + `" does not exist.`)
	}
	if err != nil {
		return stateDone, err
	}
	r.tmpl = tmpl
	return stateRenderSections, nil
}

// renderSections maps the i-th stored section onto the i-th placeholder of
// the template.
func (r *run) renderSections() (state, error) {
	plugins := r.site.plugins
	r.sections = make(map[string]string, len(r.tmpl.Sections))

	for i, sec := range r.tmpl.Sections {
		var wrapper string
		if sec.Sub != nil {
			wrapper = plugins.Invoke(plugin.OnTemplateLoaded, r.ctx, *sec.Sub)
		}

		body := plugins.Invoke(plugin.OnContentLoaded, r.ctx, r.ctx.Page.Section(i))
		html, err := r.site.markdown.Render(body)
		if err != nil {
			return stateDone, err
		}

		if sec.Sub != nil {
			html = strings.ReplaceAll(wrapper, theme.ContentPlaceholder, html)
		}
		r.sections[sec.Placeholder] = html
	}
	return stateAssembleDocument, nil
}

func (r *run) assembleDocument() (state, error) {
	plugins := r.site.plugins
	doc := plugins.Invoke(plugin.OnTemplateLoaded, r.ctx, r.tmpl.Page)
	for _, placeholder := range theme.Placeholders(doc) {
		if html, ok := r.sections[placeholder]; ok {
			doc = strings.ReplaceAll(doc, placeholder, html)
		}
	}
	doc = plugins.Invoke(plugin.OnBeforeRender, r.ctx, doc)
	r.finish(r.status, theme.StripLeftovers(doc))
	return stateDone, nil
}

func (r *run) redirect301() (state, error) {
	target := r.target
	if strings.HasPrefix(target, "/") {
		target = r.site.cfg.RootURL + target
	}
	if r.targetQuery != "" {
		target += "?" + r.targetQuery
	}
	location := util.SanitizeURL(target)
	if location == "" {
		location = r.site.cfg.RootURL + "/"
	}

	r.resp = Response{Status: http.StatusMovedPermanently, Location: location}
	r.record(http.StatusMovedPermanently, 0)
	return stateDone, nil
}

// render404 answers a missing page. The first pass renders the configured
// error page: the theme's error template for the built-in error route, or a
// retry of the pipeline for any other route. Once hasRetried404 is set the
// minimal body is sent instead.
func (r *run) render404() (state, error) {
	r.logger.Debug("page not found", "route", r.ctx.Route, "reason", r.message)

	if r.hasRetried404 {
		return r.minimal404()
	}
	r.hasRetried404 = true
	r.ctx.Is404 = true

	errorRoute := r.site.cfg.Routes.Redirect404
	r.ctx.Route = errorRoute

	switch {
	case errorRoute == config.ErrorRoute:
		html, ok, err := r.site.themes.PageTemplate(errorPageTemplate)
		if err != nil {
			return stateDone, err
		}
		if !ok || html == "" {
			return r.minimal404()
		}
		message := r.message
		if message == "" {
			message = notFoundMessage
		}
		html = strings.ReplaceAll(html, theme.ContentPlaceholder, message)
		html = r.site.plugins.Invoke(plugin.OnTemplateLoaded, r.ctx, html)
		html = r.site.plugins.Invoke(plugin.OnBeforeRender, r.ctx, html)
		r.finish(http.StatusNotFound, html)
		return stateDone, nil

	case errorRoute != "":
		r.status = http.StatusNotFound
		r.ctx.Page = nil
		r.message = ""
		return stateLookupPage, nil
	}
	return r.minimal404()
}

func (r *run) minimal404() (state, error) {
	body := r.message
	if body == "" {
		body = minimalNotFound
	}
	r.finish(http.StatusNotFound, body)
	return stateDone, nil
}

func (r *run) finish(status int, body string) {
	r.resp = Response{Status: status, Body: body}
	r.record(status, len(body))
}

// record writes the access log line. Draft renders are never logged.
func (r *run) record(status, bytes int) {
	if r.ctx.Draft {
		return
	}
	r.req.Log.Record(status, bytes)
}
