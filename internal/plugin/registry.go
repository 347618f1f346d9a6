package plugin

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"violet/internal/storage"
)

// ConfigFile is the per-plugin configuration inside its directory.
const ConfigFile = "config.yaml"

var tagPattern = regexp.MustCompile(`\{\{([^|}]+)(?:\|([^}]+))?\}\}`)

// Manifest is the content of a plugin's config file.
type Manifest struct {
	Enabled bool `yaml:"enabled"`
	Hidden  bool `yaml:"hidden"`
	Info    struct {
		Version     string `yaml:"version"`
		Description string `yaml:"description"`
	} `yaml:"info"`
	Config []Option `yaml:"config"`
}

// Option is one configurable plugin setting.
type Option struct {
	Label string `yaml:"label"`
	Value any    `yaml:"value"`
}

// Options flattens the option list; entries without label or value are
// ignored.
func (m Manifest) Options() Options {
	opts := make(Options, len(m.Config))
	for _, o := range m.Config {
		if o.Label == "" || o.Value == nil {
			continue
		}
		opts[o.Label] = o.Value
	}
	return opts
}

// ReadManifest parses the config file in dir.
func ReadManifest(files *storage.Store, dir string) (Manifest, error) {
	var m Manifest
	data, err := files.ReadFile(dir, ConfigFile)
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("invalid plugin config %s: %w", filepath.Join(dir, ConfigFile), err)
	}
	return m, nil
}

// Registry maps events to the handlers of the plugins loaded for one render.
type Registry struct {
	events map[Event]map[string]Handler
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{events: make(map[Event]map[string]Handler)}
}

// Add records the handlers of p under name. Plugins added earlier run
// earlier for OnBeforeRender.
func (r *Registry) Add(name string, p Plugin) {
	id := Identity(name)
	if _, seen := r.indexOf(id); !seen {
		r.order = append(r.order, id)
	}
	for event, h := range p.SubscribedEvents() {
		if h == nil {
			continue
		}
		if r.events[event] == nil {
			r.events[event] = make(map[string]Handler)
		}
		r.events[event][id] = h
	}
}

func (r *Registry) indexOf(id string) (int, bool) {
	for i, existing := range r.order {
		if existing == id {
			return i, true
		}
	}
	return -1, false
}

// Loaded returns the identities of the loaded plugins in load order.
func (r *Registry) Loaded() []string {
	return append([]string(nil), r.order...)
}

// Subscribed reports whether the plugin name handles event.
func (r *Registry) Subscribed(event Event, name string) bool {
	_, ok := r.events[event][Identity(name)]
	return ok
}

// LoadAll instantiates every enabled plugin found below dir, visiting plugin
// directories in name order. Directories without a readable config, disabled
// plugins and plugins that are not compiled in are skipped.
func LoadAll(files *storage.Store, dir string, env Env) (*Registry, error) {
	reg := NewRegistry()
	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if !files.IsDir(dir) {
		return reg, nil
	}
	names, err := files.ListDirs(dir)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	for _, name := range names {
		pluginDir := filepath.Join(dir, name)
		manifest, err := ReadManifest(files, pluginDir)
		if err != nil {
			if !errors.Is(err, storage.ErrFileNotFound) {
				logger.Warn("skipping plugin", "plugin", name, "error", err)
			}
			continue
		}
		if !manifest.Enabled {
			continue
		}
		factory, ok := lookup(name)
		if !ok {
			logger.Debug("plugin is not compiled in", "plugin", name)
			continue
		}
		pluginEnv := env
		pluginEnv.Dir = pluginDir
		pluginEnv.Logger = logger.With("plugin", Identity(name))
		p, err := factory(pluginEnv, manifest.Options())
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", name, err)
		}
		reg.Add(name, p)
	}
	return reg, nil
}

// Invoke runs event over text and returns the rewritten text.
//
// For OnBeforeRender every subscribed plugin is called once with the whole
// text. For the other events text is scanned left to right for plugin tags.
// Each tag whose plugin handles the event is replaced at its position by the
// handler's result and scanning resumes after the inserted text, so later
// handlers see the substitutions made before them in ctx.Text. Unknown or
// unsubscribed tags stay as they are.
func (r *Registry) Invoke(event Event, ctx Context, text string) string {
	handlers := r.events[event]
	if len(handlers) == 0 {
		return text
	}

	if event == OnBeforeRender {
		for _, id := range r.order {
			h, ok := handlers[id]
			if !ok {
				continue
			}
			ctx.Text = text
			if out, replaced := h(ctx, text); replaced {
				text = out
			}
		}
		return text
	}

	pos := 0
	for pos < len(text) {
		loc := tagPattern.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		id := Identity(text[pos+loc[2] : pos+loc[3]])
		value := ""
		if loc[4] >= 0 {
			value = text[pos+loc[4] : pos+loc[5]]
		}

		h, ok := handlers[id]
		if id == "" || !ok {
			pos = end
			continue
		}
		ctx.Text = text
		out, replaced := h(ctx, value)
		if !replaced {
			pos = end
			continue
		}
		text = text[:start] + out + text[end:]
		pos = start + len(out)
	}
	return text
}
