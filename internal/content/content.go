// Package content parses and stores page files: an optional frontmatter block
// followed by a body split into positional sections.
package content

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// SectionMarker separates the sections of a page body.
	SectionMarker = "~~~section-marker~~~"

	frontmatterDelim = "---"
)

// Frontmatter is an ordered set of page metadata. Values are string, bool,
// []string or map[string]any; only strings and bools are ever read from disk.
// The zero value is ready to use.
type Frontmatter struct {
	keys   []string
	values map[string]any
}

// Set adds or replaces key. A new key is appended after the existing ones.
func (f *Frontmatter) Set(key string, value any) {
	if f.values == nil {
		f.values = make(map[string]any)
	}
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

func (f *Frontmatter) Delete(key string) {
	if _, ok := f.values[key]; !ok {
		return
	}
	delete(f.values, key)
	for i, k := range f.keys {
		if k == key {
			f.keys = append(f.keys[:i:i], f.keys[i+1:]...)
			break
		}
	}
}

func (f Frontmatter) Get(key string) (any, bool) {
	v, ok := f.values[key]
	return v, ok
}

// String returns the value of key when it is a string.
func (f Frontmatter) String(key string) (string, bool) {
	s, ok := f.values[key].(string)
	return s, ok
}

// Bool returns the value of key when it is a bool.
func (f Frontmatter) Bool(key string) (bool, bool) {
	b, ok := f.values[key].(bool)
	return b, ok
}

// Keys returns the keys in insertion order.
func (f Frontmatter) Keys() []string {
	return append([]string(nil), f.keys...)
}

func (f Frontmatter) Len() int {
	return len(f.keys)
}

// FrontmatterFromMap builds a Frontmatter from an unordered map, for example
// decoded JSON. Keys are sorted to give a stable file layout.
func FrontmatterFromMap(m map[string]any) Frontmatter {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var fm Frontmatter
	for _, k := range keys {
		fm.Set(k, m[k])
	}
	return fm
}

// Page is the parsed form of a page file.
type Page struct {
	Frontmatter Frontmatter
	// Content is the body after the frontmatter block, left-trimmed.
	Content string
	// Sections is Content split on SectionMarker, each piece trimmed.
	Sections []string
}

// Section returns the i-th section or "" when the page has fewer sections.
func (p *Page) Section(i int) string {
	if i < 0 || i >= len(p.Sections) {
		return ""
	}
	return p.Sections[i]
}

// Parse reads a page file. A frontmatter block is recognised only when the
// text starts with a "---" line and a closing "---" line follows; its lines
// are split once on ':' with "true" and "false" read as booleans and
// everything else kept as a trimmed string.
func Parse(raw string) Page {
	page := Page{}
	body := raw

	if block, rest, ok := splitFrontmatter(raw); ok {
		page.Frontmatter = parseFrontmatter(block)
		body = rest
	}

	page.Content = strings.TrimLeft(body, " \t\r\n")
	page.Sections = SplitSections(page.Content)
	return page
}

// SplitSections splits a page body on SectionMarker and trims every piece.
func SplitSections(body string) []string {
	pieces := strings.Split(body, SectionMarker)
	for i, p := range pieces {
		pieces[i] = strings.TrimSpace(p)
	}
	return pieces
}

// JoinSections is the inverse of SplitSections for already trimmed sections.
func JoinSections(sections []string) string {
	return strings.Join(sections, "\n"+SectionMarker+"\n")
}

func splitFrontmatter(raw string) (block, rest string, ok bool) {
	first, remainder, found := strings.Cut(raw, "\n")
	if !found || strings.TrimRight(first, "\r") != frontmatterDelim {
		return "", "", false
	}
	offset := 0
	for offset <= len(remainder) {
		line, next, more := strings.Cut(remainder[offset:], "\n")
		if strings.TrimRight(line, "\r") == frontmatterDelim {
			block = remainder[:offset]
			if more {
				rest = next
			}
			return block, rest, true
		}
		if !more {
			break
		}
		offset += len(line) + 1
	}
	return "", "", false
}

func parseFrontmatter(block string) Frontmatter {
	var fm Frontmatter
	for _, line := range strings.Split(block, "\n") {
		key, value, found := strings.Cut(line, ":")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		switch value {
		case "true":
			fm.Set(key, true)
		case "false":
			fm.Set(key, false)
		default:
			fm.Set(key, value)
		}
	}
	return fm
}

// Serialize writes fm and content back into the page file format. Nil and
// object values are dropped and arrays are flattened to a comma separated
// string, so only scalar frontmatter survives a Parse(Serialize(...)) round
// trip unchanged.
func Serialize(fm Frontmatter, content string) string {
	var b strings.Builder
	b.WriteString(frontmatterDelim + "\n")
	for _, key := range fm.keys {
		line, ok := formatValue(fm.values[key])
		if !ok {
			continue
		}
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(frontmatterDelim + "\n")
	b.WriteString(content)
	return b.String()
}

func formatValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case bool:
		if val {
			return "true", true
		}
		return "false", true
	case string:
		return val, true
	case []string:
		return strings.Join(val, ","), true
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := formatValue(item)
			if ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ","), true
	case map[string]any:
		return "", false
	default:
		return fmt.Sprint(val), true
	}
}
