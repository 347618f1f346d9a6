// internal/markdown/render.go
package markdown

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"

	"violet/internal/config"
)

var htmlSanitizer = bluemonday.UGCPolicy()

// Options are the per-request switches of the markdown dialect.
type Options struct {
	// RootURL is prepended to root-relative links and images.
	RootURL string
	// HomePrefix is stripped from the front of link destinations. Empty
	// disables stripping.
	HomePrefix string

	EscapeHTML    bool
	AutoURLLinks  bool
	AutoLineBreak bool
	Sanitize      bool
}

// OptionsFromConfig derives the markdown options of a site.
func OptionsFromConfig(cfg config.SiteConfig) Options {
	return Options{
		RootURL:       cfg.RootURL,
		HomePrefix:    cfg.Routes.LinkPrefix(),
		EscapeHTML:    cfg.Markdown.EscapeHTML,
		AutoURLLinks:  cfg.Markdown.AutoURLLinks,
		AutoLineBreak: cfg.Markdown.AutoLineBreak,
		Sanitize:      cfg.Markdown.Sanitize,
	}
}

// Renderer converts page sections to HTML.
type Renderer struct {
	md       goldmark.Markdown
	sanitize bool
}

// New builds a renderer for opts. The dialect is GFM tables and
// strikethrough plus footnotes and definition lists, with CMS link rewriting
// and pass-through of plugin tags and comments that sit on lines of their own.
func New(opts Options) *Renderer {
	extensions := []goldmark.Extender{
		extension.Table,
		extension.Strikethrough,
		extension.Footnote,
		extension.DefinitionList,
		PluginTags,
	}
	if opts.AutoURLLinks {
		extensions = append(extensions, extension.Linkify)
	}

	if opts.EscapeHTML {
		extensions = append(extensions, escapedHTML)
	}

	var rendererOptions []renderer.Option
	if !opts.EscapeHTML {
		rendererOptions = append(rendererOptions, html.WithUnsafe())
	}
	if opts.AutoLineBreak {
		rendererOptions = append(rendererOptions, html.WithHardWraps())
	}

	md := goldmark.New(
		goldmark.WithExtensions(extensions...),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(
				util.Prioritized(newLinkTransformer(opts.RootURL, opts.HomePrefix), 100),
			),
		),
		goldmark.WithRendererOptions(rendererOptions...),
	)
	return &Renderer{md: md, sanitize: opts.Sanitize}
}

// Render converts markdown source to HTML.
func (r *Renderer) Render(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	if r.sanitize {
		return string(htmlSanitizer.SanitizeBytes(buf.Bytes())), nil
	}
	return buf.String(), nil
}
