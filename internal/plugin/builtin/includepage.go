package builtin

import (
	"strings"

	"violet/internal/content"
	"violet/internal/plugin"
	"violet/internal/util"
)

// includePage inserts the first section of another page. In templates the
// section is rendered to HTML; inside content it stays markdown and is
// rendered with the surrounding section.
type includePage struct {
	env plugin.Env
}

func newIncludePage(env plugin.Env, _ plugin.Options) (plugin.Plugin, error) {
	return &includePage{env: env}, nil
}

func (p *includePage) SubscribedEvents() map[plugin.Event]plugin.Handler {
	return map[plugin.Event]plugin.Handler{
		plugin.OnTemplateLoaded: p.html,
		plugin.OnContentLoaded:  p.markdown,
	}
}

func (p *includePage) section(ctx plugin.Context, value string) (string, bool) {
	rt := strings.TrimSpace(value)
	id, ok := findPage(ctx, p.env, rt)
	if !ok || p.env.Pages == nil {
		return "Page not found: " + rt, false
	}
	raw, err := p.env.Pages.LoadRaw(ctx.Tree.Node(id).URL)
	if err != nil {
		return "Page not found: " + rt, false
	}
	page := content.Parse(raw)
	return page.Section(0), true
}

func (p *includePage) markdown(ctx plugin.Context, value string) (string, bool) {
	text, _ := p.section(ctx, value)
	return text, true
}

func (p *includePage) html(ctx plugin.Context, value string) (string, bool) {
	text, found := p.section(ctx, value)
	if !found {
		return util.SanitizeAttribute(text), true
	}
	if p.env.Markdown == nil {
		return text, true
	}
	out, err := p.env.Markdown.Render(text)
	if err != nil {
		p.env.Logger.Warn("could not render included page", "route", value, "error", err)
		return "", true
	}
	return out, true
}
