package builtin

import (
	"strings"

	"violet/internal/plugin"
	"violet/internal/sitemap"
	"violet/internal/util"
)

// submenu lists the children of the current page, or of the page named in
// the tag value.
type submenu struct {
	env           plugin.Env
	hideInvisible bool
}

func newSubmenu(env plugin.Env, opts plugin.Options) (plugin.Plugin, error) {
	return &submenu{env: env, hideInvisible: opts.Bool(optHideInvisible)}, nil
}

func (s *submenu) SubscribedEvents() map[plugin.Event]plugin.Handler {
	return map[plugin.Event]plugin.Handler{
		plugin.OnTemplateLoaded: s.html,
		plugin.OnContentLoaded:  s.markdown,
	}
}

func (s *submenu) children(ctx plugin.Context, value string) []sitemap.NodeID {
	rt := ctx.Route
	if v := strings.TrimSpace(value); v != "" {
		rt = v
	}
	parent, ok := findPage(ctx, s.env, rt)
	if !ok {
		return nil
	}
	var out []sitemap.NodeID
	for _, id := range ctx.Tree.Children(parent) {
		if listable(ctx.Tree.Node(id), ctx.Today, s.hideInvisible) {
			out = append(out, id)
		}
	}
	return out
}

func (s *submenu) html(ctx plugin.Context, value string) (string, bool) {
	ids := s.children(ctx, value)
	if len(ids) == 0 {
		return "", true
	}
	var b strings.Builder
	b.WriteString("<ul>")
	for _, id := range ids {
		b.WriteString(`<li><a href="` + href(s.env, ctx.Tree, id) + `">`)
		b.WriteString(util.SanitizeAttribute(ctx.Tree.Node(id).Title) + "</a></li>")
	}
	b.WriteString("</ul>")
	return b.String(), true
}

// markdown emits a list the markdown renderer turns into links; the root URL
// is added there.
func (s *submenu) markdown(ctx plugin.Context, value string) (string, bool) {
	var b strings.Builder
	for _, id := range s.children(ctx, value) {
		b.WriteString("* [" + ctx.Tree.Node(id).Title + "](" + ctx.Tree.CleanURL(id) + ")\n")
	}
	return b.String(), true
}
