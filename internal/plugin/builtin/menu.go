package builtin

import (
	"strings"

	"violet/internal/plugin"
	"violet/internal/sitemap"
	"violet/internal/util"
)

// menu renders the navigation as nested lists of the live, visible pages.
type menu struct {
	env      plugin.Env
	submenus bool
}

func newMenu(env plugin.Env, opts plugin.Options) (plugin.Plugin, error) {
	return &menu{env: env, submenus: opts.Bool("Show Submenus")}, nil
}

func (m *menu) SubscribedEvents() map[plugin.Event]plugin.Handler {
	return map[plugin.Event]plugin.Handler{plugin.OnTemplateLoaded: m.render}
}

func (m *menu) render(ctx plugin.Context, _ string) (string, bool) {
	if ctx.Tree == nil {
		return "", true
	}
	return m.list(ctx, ctx.Tree.Roots()), true
}

func (m *menu) list(ctx plugin.Context, ids []sitemap.NodeID) string {
	var b strings.Builder
	for _, id := range ids {
		n := ctx.Tree.Node(id)
		if !n.Visible || !n.Live(ctx.Today) {
			continue
		}
		b.WriteString(`<li><a href="` + href(m.env, ctx.Tree, id) + `">`)
		b.WriteString(util.SanitizeAttribute(n.Title) + "</a>")
		if m.submenus {
			b.WriteString(m.list(ctx, ctx.Tree.Children(id)))
		}
		b.WriteString("</li>")
	}
	if b.Len() == 0 {
		return ""
	}
	return "<ul>" + b.String() + "</ul>"
}
