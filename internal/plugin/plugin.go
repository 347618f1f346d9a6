// Package plugin dispatches the inline plugin tags ({{name}} and
// {{name|value}}) found in templates and page content to compiled-in plugins.
//
// Plugins register a Factory under their name. Every render loads the plugins
// enabled in the site's plugin directory, instantiates them with their
// options and records which handler each one contributes per event. There is
// no reflection involved: a plugin hands out its handlers through
// SubscribedEvents.
package plugin

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"violet/internal/config"
	"violet/internal/content"
	"violet/internal/markdown"
	"violet/internal/sitemap"
	"violet/internal/storage"
)

// Event names a point in the render pipeline.
type Event string

const (
	// OnTemplateLoaded runs over page and section templates.
	OnTemplateLoaded Event = "onTemplateLoaded"
	// OnContentLoaded runs over every page section before markdown.
	OnContentLoaded Event = "onContentLoaded"
	// OnBeforeRender runs once per subscribed plugin over the assembled
	// document. No tags are scanned.
	OnBeforeRender Event = "onBeforeRender"
)

// Context is the read-only view of the current render handed to handlers.
type Context struct {
	Route string
	// Query is the raw query string without '?'.
	Query string
	Draft bool
	// Is404 is set once the render has switched to the not-found path.
	Is404 bool
	Tree  *sitemap.Tree
	Page  *content.Page
	// Today is the render date as YYYY-MM-DD.
	Today string
	// Text is the text currently being rewritten, including every
	// substitution made so far.
	Text string
}

// Handler returns the replacement for one tag. Returning false leaves the
// tag untouched.
type Handler func(ctx Context, value string) (string, bool)

// Plugin exposes the handlers of one plugin instance.
type Plugin interface {
	SubscribedEvents() map[Event]Handler
}

// PageReader reads raw page files.
type PageReader interface {
	LoadRaw(url string) (string, error)
}

// Env is what a plugin can reach besides the render Context.
type Env struct {
	Site     config.SiteConfig
	ThemeURL string
	Pages    PageReader
	Files    *storage.Store
	Markdown *markdown.Renderer
	// Dir is the plugin's own directory.
	Dir    string
	Logger *slog.Logger
}

// Factory creates a plugin instance for one render.
type Factory func(env Env, opts Options) (Plugin, error)

// Options are the label/value pairs from a plugin's config file.
type Options map[string]any

// Bool returns the option as a boolean; missing or non-boolean options are
// false.
func (o Options) Bool(label string) bool {
	switch v := o[label].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// String returns the option as a string.
func (o Options) String(label string) string {
	switch v := o[label].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

var (
	catalogueMu sync.RWMutex
	catalogue   = make(map[string]Factory)
)

// Register makes a plugin available under name. It panics when name is
// already taken.
func Register(name string, factory Factory) {
	catalogueMu.Lock()
	defer catalogueMu.Unlock()

	id := Identity(name)
	if _, dup := catalogue[id]; dup {
		panic("plugin: Register called twice for " + name)
	}
	catalogue[id] = factory
}

func lookup(name string) (Factory, bool) {
	catalogueMu.RLock()
	defer catalogueMu.RUnlock()
	f, ok := catalogue[Identity(name)]
	return f, ok
}

// Registered lists the identities of all compiled-in plugins.
func Registered() []string {
	catalogueMu.RLock()
	defer catalogueMu.RUnlock()
	names := make([]string, 0, len(catalogue))
	for name := range catalogue {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Identity folds a plugin name so that tags match regardless of case.
func Identity(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
