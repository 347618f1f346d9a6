package builtin

import (
	"regexp"
	"strings"

	"violet/internal/plugin"
)

var summaryComment = regexp.MustCompile(`\{#([^#]+)#\}`)

// tableOfContents lists the children of the current page with their summary,
// the first {# ... #} comment found in each child's page file.
type tableOfContents struct {
	env           plugin.Env
	linkText      string
	hideInvisible bool
}

func newTableOfContents(env plugin.Env, opts plugin.Options) (plugin.Plugin, error) {
	linkText := opts.String("Link text")
	if linkText == "" {
		linkText = "Read more"
	}
	return &tableOfContents{
		env:           env,
		linkText:      linkText,
		hideInvisible: opts.Bool(optHideInvisible),
	}, nil
}

func (t *tableOfContents) SubscribedEvents() map[plugin.Event]plugin.Handler {
	return map[plugin.Event]plugin.Handler{plugin.OnContentLoaded: t.render}
}

func (t *tableOfContents) render(ctx plugin.Context, _ string) (string, bool) {
	parent, ok := findPage(ctx, t.env, ctx.Route)
	if !ok {
		return "", true
	}
	var b strings.Builder
	for _, id := range ctx.Tree.Children(parent) {
		n := ctx.Tree.Node(id)
		if !listable(n, ctx.Today, t.hideInvisible) {
			continue
		}
		b.WriteString("## " + n.Title + "\n")
		b.WriteString(t.summary(n.URL))
		b.WriteString("\n[" + t.linkText + "](" + ctx.Tree.CleanURL(id) + ")\n")
	}
	return b.String(), true
}

func (t *tableOfContents) summary(url string) string {
	if t.env.Pages == nil {
		return ""
	}
	raw, err := t.env.Pages.LoadRaw(url)
	if err != nil {
		return ""
	}
	m := summaryComment.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
