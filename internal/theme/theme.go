// Package theme loads page templates and their section sub-templates from
// the active theme.
package theme

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"violet/internal/storage"
)

const (
	// ContentPlaceholder marks the main content of a page template.
	ContentPlaceholder = "{CONTENT}"

	templatesDir = "templates"
	sectionsDir  = "sections"
	templateExt  = ".html"
)

var (
	ErrTemplateNotFound = errors.New("template not found")

	placeholderPattern = regexp.MustCompile(`\{CONTENT\}|\{#([A-Z0-9-]+)#\}`)
	leftoverPattern    = regexp.MustCompile(`\{#[A-Za-z0-9-]+#\}`)
)

// Section pairs a placeholder with its optional sub-template. Sub is nil
// when the section renders without a wrapper.
type Section struct {
	Placeholder string
	// Name is the lower-cased section name; "content" for {CONTENT}.
	Name string
	Sub  *string
}

// Template is a loaded page template. Sections are in placeholder discovery
// order, which is the order stored page sections are mapped onto.
type Template struct {
	Name     string
	Page     string
	Sections []Section
}

// Info describes one available page template.
type Info struct {
	Name     string   `json:"name"`
	Sections []string `json:"sections"`
}

// Placeholders returns the distinct placeholders of text in document order.
// Only the first occurrence of a repeated placeholder counts.
func Placeholders(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, match := range placeholderPattern.FindAllString(text, -1) {
		if seen[match] {
			continue
		}
		seen[match] = true
		out = append(out, match)
	}
	return out
}

// StripLeftovers removes named placeholders that received no content.
func StripLeftovers(text string) string {
	return leftoverPattern.ReplaceAllString(text, "")
}

func sectionName(placeholder string) string {
	if placeholder == ContentPlaceholder {
		return "content"
	}
	return strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(placeholder, "{#"), "#}"))
}

// Loader reads templates from one theme directory.
type Loader struct {
	files *storage.Store
	dir   string
}

func NewLoader(files *storage.Store, themeDir string) *Loader {
	return &Loader{files: files, dir: filepath.Join(themeDir, templatesDir)}
}

// List returns every page template of the theme in natural name order.
func (l *Loader) List() ([]Info, error) {
	if !l.files.IsDir(l.dir) {
		return nil, nil
	}
	names, err := l.files.ListFiles(l.dir)
	if err != nil {
		return nil, fmt.Errorf("could not list templates: %w", err)
	}
	collate.New(language.Und, collate.Numeric, collate.IgnoreCase).SortStrings(names)

	var infos []Info
	for _, name := range names {
		if !strings.EqualFold(filepath.Ext(name), templateExt) {
			continue
		}
		data, err := l.files.ReadFile(l.dir, name)
		if err != nil {
			return nil, fmt.Errorf("could not read template %s: %w", name, err)
		}
		info := Info{Name: strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name))), Sections: []string{}}
		for _, match := range placeholderPattern.FindAllString(string(data), -1) {
			info.Sections = append(info.Sections, sectionName(match))
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// PageTemplate returns the raw page template name. ok is false when the
// theme has no such template.
func (l *Loader) PageTemplate(name string) (string, bool, error) {
	return l.read(l.dir, name)
}

// Load reads the page template name together with the sub-templates of its
// named sections.
func (l *Loader) Load(name string) (*Template, error) {
	page, ok, err := l.PageTemplate(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}

	tmpl := &Template{Name: strings.ToLower(name), Page: page}
	for _, placeholder := range Placeholders(page) {
		section := Section{Placeholder: placeholder, Name: sectionName(placeholder)}
		if placeholder != ContentPlaceholder {
			sub, found, err := l.read(filepath.Join(l.dir, sectionsDir), section.Name)
			if err != nil {
				return nil, err
			}
			if found {
				section.Sub = &sub
			}
		}
		tmpl.Sections = append(tmpl.Sections, section)
	}
	return tmpl, nil
}

func (l *Loader) read(dir, name string) (string, bool, error) {
	file := strings.ToLower(storage.SanitizeName(name)) + templateExt
	if !l.files.IsFile(filepath.Join(dir, file)) {
		return "", false, nil
	}
	data, err := l.files.ReadFile(dir, file)
	if err != nil {
		return "", false, fmt.Errorf("could not read template %s: %w", file, err)
	}
	return string(data), true, nil
}
