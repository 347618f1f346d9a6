// Package builtin contains the plugins that ship with violet. Importing it
// registers them with the plugin package.
package builtin

import (
	"violet/internal/plugin"
	"violet/internal/route"
	"violet/internal/sitemap"
	"violet/internal/util"
)

func init() {
	plugin.Register("menu", newMenu)
	plugin.Register("submenu", newSubmenu)
	plugin.Register("meta", newMeta)
	plugin.Register("date", newDate)
	plugin.Register("includepage", newIncludePage)
	plugin.Register("tableofcontents", newTableOfContents)
	plugin.Register("search", newSearch)
}

const optHideInvisible = "Hide invisible pages"

// listable reports whether n may appear in a generated page list. Unlike
// the menu, lists only drop invisible pages when hideInvisible is set.
func listable(n sitemap.Node, today string, hideInvisible bool) bool {
	if !n.Published || !n.InDate(today) {
		return false
	}
	return n.Visible || !hideInvisible
}

// findPage resolves a public route against the tree.
func findPage(ctx plugin.Context, env plugin.Env, rt string) (sitemap.NodeID, bool) {
	if ctx.Tree == nil {
		return 0, false
	}
	clean := route.Canonicalize(rt, env.Site.Routes.Home, env.Site.Routes.HideInURL)
	return ctx.Tree.FindByRoute(clean, true)
}

// href is the sanitized public link of a node.
func href(env plugin.Env, tree *sitemap.Tree, id sitemap.NodeID) string {
	return util.SanitizeURL(env.Site.RootURL + tree.CleanURL(id))
}
