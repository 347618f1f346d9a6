package builtin

import (
	"strings"

	"violet/internal/plugin"
	"violet/internal/util"
)

const titleSeparator = " · "

// meta fills the head of a template from the site settings and the page
// frontmatter.
type meta struct {
	env plugin.Env
}

func newMeta(env plugin.Env, _ plugin.Options) (plugin.Plugin, error) {
	return &meta{env: env}, nil
}

func (m *meta) SubscribedEvents() map[plugin.Event]plugin.Handler {
	return map[plugin.Event]plugin.Handler{plugin.OnTemplateLoaded: m.render}
}

func (m *meta) frontmatter(ctx plugin.Context, key string) string {
	if ctx.Page == nil {
		return ""
	}
	s, _ := ctx.Page.Frontmatter.String(key)
	return strings.TrimSpace(s)
}

func (m *meta) render(ctx plugin.Context, value string) (string, bool) {
	site := m.env.Site
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "title":
		title := site.Website.Title
		if page := m.frontmatter(ctx, "title"); page != "" && !ctx.Is404 {
			title += titleSeparator + page
		}
		return util.SanitizeAttribute(title), true
	case "description":
		return util.SanitizeAttribute(m.orSite(ctx, "description", site.Website.Description)), true
	case "keywords":
		return util.SanitizeAttribute(m.orSite(ctx, "keywords", site.Website.Keywords)), true
	case "robots":
		return util.SanitizeAttribute(m.frontmatter(ctx, "robots")), true
	case "properties":
		var b strings.Builder
		for _, tag := range site.Website.Meta {
			attr := "property"
			if strings.HasPrefix(tag.Name, "twitter:") {
				attr = "name"
			}
			b.WriteString(`<meta ` + attr + `="` + util.SanitizeAttribute(tag.Name) +
				`" content="` + util.SanitizeAttribute(tag.Content) + `">` + "\n")
		}
		return b.String(), true
	case "canonicalurl":
		canonical := m.frontmatter(ctx, "canonicalURL")
		if canonical == "" {
			return "", true
		}
		return `<link rel="canonical" href="` + util.SanitizeURL(canonical) + `">` + "\n", true
	case "themeurl":
		return util.SanitizeURL(m.env.ThemeURL), true
	case "rooturl":
		return util.SanitizeURL(site.RootURL), true
	}
	return "", false
}

func (m *meta) orSite(ctx plugin.Context, key, fallback string) string {
	if v := m.frontmatter(ctx, key); v != "" {
		return v
	}
	return fallback
}
