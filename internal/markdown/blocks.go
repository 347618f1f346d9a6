// internal/markdown/blocks.go
package markdown

import (
	"bytes"
	"regexp"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// PluginTags keeps lines that consist only of a plugin tag ({{name|value}})
// or a comment ({#...#}) out of paragraph markup. Tags are written as escaped
// text, comments are dropped. A tag or comment that does not close on its
// first line runs until a line ending in "}}" or "#}".
var PluginTags goldmark.Extender = &pluginTags{}

type pluginTags struct{}

func (e *pluginTags) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithBlockParsers(
		util.Prioritized(&pluginBlockParser{}, 50),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&pluginBlockRenderer{}, 100),
	))
}

var kindPluginBlock = ast.NewNodeKind("PluginBlock")

type pluginBlock struct {
	ast.BaseBlock
	comment bool
	open    bool
}

func (n *pluginBlock) Kind() ast.NodeKind { return kindPluginBlock }
func (n *pluginBlock) IsRaw() bool        { return true }

func (n *pluginBlock) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Comment": boolString(n.comment),
	}, nil)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

var (
	tagLine     = regexp.MustCompile(`^\{\{[^|}]+(\|[^}]+)?\}\}$`)
	commentLine = regexp.MustCompile(`^\{#[^}]+#\}$`)
	tagEnd      = regexp.MustCompile(`^[^}]*\}\}$`)
	commentEnd  = regexp.MustCompile(`^[^}]*#\}$`)
)

type pluginBlockParser struct{}

var _ parser.BlockParser = (*pluginBlockParser)(nil)

func (b *pluginBlockParser) Trigger() []byte {
	return []byte{'{'}
}

func (b *pluginBlockParser) Open(parent ast.Node, reader text.Reader, pc parser.Context) (ast.Node, parser.State) {
	line, segment := reader.PeekLine()
	pos := pc.BlockOffset()
	if pos < 0 || pos >= len(line) || line[pos] != '{' {
		return nil, parser.NoChildren
	}
	trimmed := bytes.TrimRight(line[pos:], " \t\r\n")

	node := &pluginBlock{}
	switch {
	case tagLine.Match(trimmed):
	case commentLine.Match(trimmed):
		node.comment = true
	case bytes.HasPrefix(trimmed, []byte("{{")):
		node.open = true
	case bytes.HasPrefix(trimmed, []byte("{#")):
		node.comment = true
		node.open = true
	default:
		return nil, parser.NoChildren
	}

	if !node.comment {
		node.Lines().Append(segment.WithStart(segment.Start + pos))
	}
	reader.Advance(segment.Len() - 1)
	return node, parser.NoChildren
}

func (b *pluginBlockParser) Continue(node ast.Node, reader text.Reader, pc parser.Context) parser.State {
	n := node.(*pluginBlock)
	if !n.open {
		return parser.Close
	}
	line, segment := reader.PeekLine()
	if line == nil {
		return parser.Close
	}
	trimmed := bytes.TrimRight(line, " \t\r\n")

	end := tagEnd
	if n.comment {
		end = commentEnd
	}
	if !n.comment {
		n.Lines().Append(segment)
	}
	if end.Match(trimmed) {
		n.open = false
		reader.Advance(segment.Len())
		return parser.Close
	}
	reader.Advance(segment.Len() - 1)
	return parser.Continue | parser.NoChildren
}

func (b *pluginBlockParser) Close(node ast.Node, reader text.Reader, pc parser.Context) {}

func (b *pluginBlockParser) CanInterruptParagraph() bool {
	return true
}

func (b *pluginBlockParser) CanAcceptIndentedLine() bool {
	return false
}

type pluginBlockRenderer struct{}

func (r *pluginBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(kindPluginBlock, r.render)
}

func (r *pluginBlockRenderer) render(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkSkipChildren, nil
	}
	n := node.(*pluginBlock)
	if n.comment {
		return ast.WalkSkipChildren, nil
	}
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		value := bytes.TrimRight(seg.Value(source), " \t\r\n")
		w.Write(util.EscapeHTML(value))
		w.WriteByte('\n')
	}
	return ast.WalkSkipChildren, nil
}
