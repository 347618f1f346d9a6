package builtin

import (
	"net/url"
	"strings"

	"violet/internal/content"
	"violet/internal/plugin"
	"violet/internal/sitemap"
	"violet/internal/util"
)

// search renders a search form in templates and, on the result page, a list
// of the pages whose content contains the q query parameter.
type search struct {
	env           plugin.Env
	resultPage    string
	hideInvisible bool
}

func newSearch(env plugin.Env, opts plugin.Options) (plugin.Plugin, error) {
	page := opts.String("Searchresult Page")
	if page == "" {
		page = "/search"
	}
	return &search{
		env:           env,
		resultPage:    page,
		hideInvisible: opts.Bool(optHideInvisible),
	}, nil
}

func (s *search) SubscribedEvents() map[plugin.Event]plugin.Handler {
	return map[plugin.Event]plugin.Handler{
		plugin.OnTemplateLoaded: s.form,
		plugin.OnContentLoaded:  s.results,
	}
}

func (s *search) form(plugin.Context, string) (string, bool) {
	action := util.SanitizeURL(s.env.Site.RootURL + s.resultPage)
	return `<form accept-charset="UTF-8" method="get" action="` + action +
		`" class="searchform"><input type="text" name="q" value=""></form>`, true
}

func (s *search) results(ctx plugin.Context, _ string) (string, bool) {
	values, _ := url.ParseQuery(ctx.Query)
	term := strings.ToLower(strings.TrimSpace(values.Get("q")))
	if term == "" || ctx.Tree == nil || s.env.Pages == nil {
		return "", true
	}

	var b strings.Builder
	ctx.Tree.Walk(func(id sitemap.NodeID, _ int) bool {
		n := ctx.Tree.Node(id)
		clean := ctx.Tree.CleanURL(id)
		if clean == s.resultPage || !listable(n, ctx.Today, s.hideInvisible) {
			return false
		}
		raw, err := s.env.Pages.LoadRaw(n.URL)
		if err != nil {
			return true
		}
		page := content.Parse(raw)
		if strings.Contains(strings.ToLower(page.Content), term) {
			b.WriteString("* [" + n.Title + "](" + clean + ")\n")
		}
		return true
	})
	return b.String(), true
}
