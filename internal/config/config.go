// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// ErrorRoute is the built-in 404 route. When Routes.Redirect404 is set to it,
// the theme's error template is rendered instead of a page from the tree.
const ErrorRoute = "/error"

// SiteConfig holds the configuration from config/violet.yaml.
// The `mapstructure` tags are used by viper to map file keys to struct fields.
type SiteConfig struct {
	// RootURL is the URL prefix the site is served under ("" or "/sub").
	RootURL  string   `mapstructure:"RootURL"`
	Theme    string   `mapstructure:"Theme"`
	Website  Website  `mapstructure:"Website"`
	Routes   Routes   `mapstructure:"Routes"`
	Markdown Markdown `mapstructure:"Markdown"`
}

type Website struct {
	Title       string    `mapstructure:"Title"`
	Description string    `mapstructure:"Description"`
	Keywords    string    `mapstructure:"Keywords"`
	Meta        []MetaTag `mapstructure:"Meta"`
}

// MetaTag is one <meta> property rendered by the meta plugin.
type MetaTag struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Content string `mapstructure:"content" yaml:"content"`
}

type Routes struct {
	Home        string `mapstructure:"Home"`
	HideInURL   bool   `mapstructure:"HideInURL"`
	Redirect404 string `mapstructure:"Redirect404"`
}

// HomeSlug returns the configured home route without surrounding slashes.
func (r Routes) HomeSlug() string {
	return strings.Trim(r.Home, "/")
}

// LinkPrefix returns the home route that markdown links are stripped of,
// or "" when the home route is visible in URLs.
func (r Routes) LinkPrefix() string {
	if !r.HideInURL || r.HomeSlug() == "" {
		return ""
	}
	return "/" + r.HomeSlug()
}

type Markdown struct {
	AutoLineBreak bool `mapstructure:"AutoLineBreak"`
	AutoURLLinks  bool `mapstructure:"AutoURLLinks"`
	EscapeHTML    bool `mapstructure:"EscapeHTML"`
	// Sanitize runs rendered sections through an HTML sanitizer.
	Sanitize bool `mapstructure:"Sanitize"`
}

// Default returns the configuration used when no file overrides a value.
func Default() SiteConfig {
	return SiteConfig{
		Theme: "violet",
		Website: Website{
			Title: "violetCMS",
		},
		Routes: Routes{
			Home:        "/home",
			HideInURL:   true,
			Redirect404: ErrorRoute,
		},
		Markdown: Markdown{
			AutoLineBreak: true,
			AutoURLLinks:  false,
			EscapeHTML:    true,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("RootURL", d.RootURL)
	v.SetDefault("Theme", d.Theme)
	v.SetDefault("Website.Title", d.Website.Title)
	v.SetDefault("Website.Description", d.Website.Description)
	v.SetDefault("Website.Keywords", d.Website.Keywords)
	v.SetDefault("Routes.Home", d.Routes.Home)
	v.SetDefault("Routes.HideInURL", d.Routes.HideInURL)
	v.SetDefault("Routes.Redirect404", d.Routes.Redirect404)
	v.SetDefault("Markdown.AutoLineBreak", d.Markdown.AutoLineBreak)
	v.SetDefault("Markdown.AutoURLLinks", d.Markdown.AutoURLLinks)
	v.SetDefault("Markdown.EscapeHTML", d.Markdown.EscapeHTML)
	v.SetDefault("Markdown.Sanitize", d.Markdown.Sanitize)
}

// LoadSiteConfig reads violet.{yaml,yml,json} from configDir on fs. A missing
// file is not an error: defaults and VIOLET_* environment variables apply.
func LoadSiteConfig(fs afero.Fs, configDir string) (SiteConfig, error) {
	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)

	v.AddConfigPath(configDir)
	v.SetConfigName("violet")

	v.SetEnvPrefix("VIOLET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return SiteConfig{}, fmt.Errorf("could not read config in %s: %w", configDir, err)
		}
	}

	cfg := SiteConfig{}
	if err := v.Unmarshal(&cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("could not parse config in %s: %w", configDir, err)
	}
	cfg.RootURL = strings.TrimRight(cfg.RootURL, "/")
	return cfg, nil
}

// Layout resolves the CMS directories below a site root.
type Layout struct {
	Root string
}

func (l Layout) ConfigDir() string { return filepath.Join(l.Root, "config") }
func (l Layout) PagesDir() string  { return filepath.Join(l.Root, "pages") }
func (l Layout) PluginDir() string { return filepath.Join(l.Root, "plugins") }
func (l Layout) ThemesDir() string { return filepath.Join(l.Root, "themes") }
func (l Layout) MediaDir() string  { return filepath.Join(l.Root, "media") }
func (l Layout) LogDir() string    { return filepath.Join(l.Root, "logs") }

// ThemeDir is the directory of the named theme.
func (l Layout) ThemeDir(theme string) string {
	return filepath.Join(l.ThemesDir(), theme)
}
