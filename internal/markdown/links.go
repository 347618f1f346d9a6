// internal/markdown/links.go
package markdown

import (
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// linkTransformer walks the AST and points link and image destinations at
// public routes.
type linkTransformer struct {
	rootURL    string
	homePrefix string
}

func newLinkTransformer(rootURL, homePrefix string) parser.ASTTransformer {
	return &linkTransformer{
		rootURL:    strings.TrimRight(rootURL, "/"),
		homePrefix: strings.TrimRight(homePrefix, "/"),
	}
}

func (t *linkTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Link:
			v.Destination = []byte(t.rewriteLink(string(v.Destination)))
		case *ast.Image:
			v.Destination = []byte(t.withRoot(string(v.Destination)))
		}
		return ast.WalkContinue, nil
	})
}

// rewriteLink strips the hidden home route from dest and then prefixes the
// root URL. "/home/about" becomes "/about" and "/home" becomes "/".
func (t *linkTransformer) rewriteLink(dest string) string {
	if t.homePrefix != "" && hasPathPrefix(dest, t.homePrefix) {
		dest = dest[len(t.homePrefix):]
		if dest == "" || dest[0] != '/' {
			dest = "/" + dest
		}
	}
	return t.withRoot(dest)
}

func (t *linkTransformer) withRoot(dest string) string {
	if t.rootURL == "" || !strings.HasPrefix(dest, "/") || strings.HasPrefix(dest, "//") {
		return dest
	}
	if hasPathPrefix(dest, t.rootURL) {
		return dest
	}
	return t.rootURL + dest
}

// hasPathPrefix reports whether prefix is a leading run of whole path
// segments of p.
func hasPathPrefix(p, prefix string) bool {
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	if len(p) == len(prefix) {
		return true
	}
	switch p[len(prefix)] {
	case '/', '?', '#':
		return true
	}
	return false
}
