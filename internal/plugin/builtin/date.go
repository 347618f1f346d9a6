package builtin

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"violet/internal/plugin"
	"violet/internal/storage"
)

const fallbackDateLayout = "January 2, 2006"

var dateToken = regexp.MustCompile(`'[^']+'|y{1,4}|M{1,4}|d{1,2}|.`)

// calendar is the part of a CLDR gregorian calendar the date plugin uses.
type calendar struct {
	Months struct {
		Format struct {
			Wide        map[string]string `json:"wide"`
			Abbreviated map[string]string `json:"abbreviated"`
		} `json:"format"`
	} `json:"months"`
	DateFormats struct {
		Long string `json:"long"`
	} `json:"dateFormats"`
}

type cldrFile struct {
	Main map[string]struct {
		Dates struct {
			Calendars struct {
				Gregorian calendar `json:"gregorian"`
			} `json:"calendars"`
		} `json:"dates"`
	} `json:"main"`
}

// date prints the publication date of the page or today's date in the long
// format of a locale: {{date|published@de}}, {{date|today@en}}.
type date struct {
	env       plugin.Env
	files     *storage.Store
	calendars map[string]*calendar
}

func newDate(env plugin.Env, _ plugin.Options) (plugin.Plugin, error) {
	return &date{env: env, files: env.Files, calendars: make(map[string]*calendar)}, nil
}

func (d *date) SubscribedEvents() map[plugin.Event]plugin.Handler {
	return map[plugin.Event]plugin.Handler{plugin.OnContentLoaded: d.render}
}

func (d *date) render(ctx plugin.Context, value string) (string, bool) {
	which, locale, _ := strings.Cut(strings.TrimSpace(value), "@")

	raw := ctx.Today
	if strings.TrimSpace(which) == "published" {
		raw = ""
		if ctx.Page != nil {
			raw, _ = ctx.Page.Frontmatter.String("publishDate")
			if raw == "" {
				raw, _ = ctx.Page.Frontmatter.String("date")
			}
		}
	}
	t, err := parseDay(raw)
	if err != nil {
		return "", true
	}

	cal := d.calendar(strings.TrimSpace(locale))
	if cal == nil || cal.DateFormats.Long == "" {
		return t.Format(fallbackDateLayout), true
	}
	return formatDate(t, cal), true
}

func parseDay(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, strings.TrimSpace(s))
}

// calendar loads i18n/<locale>.json from the plugin directory, falling back to
// the file of the locale's base language. Results are cached for the render.
func (d *date) calendar(locale string) *calendar {
	if locale == "" || d.files == nil {
		return nil
	}
	if cal, ok := d.calendars[locale]; ok {
		return cal
	}

	candidates := []string{locale}
	if tag, err := language.Parse(locale); err == nil {
		if base, conf := tag.Base(); conf != language.No && base.String() != locale {
			candidates = append(candidates, base.String())
		}
	}

	var cal *calendar
	for _, name := range candidates {
		if cal = d.readCalendar(name); cal != nil {
			break
		}
	}
	d.calendars[locale] = cal
	return cal
}

func (d *date) readCalendar(name string) *calendar {
	data, err := d.files.ReadFile(filepath.Join(d.env.Dir, "i18n"), name+".json")
	if err != nil {
		return nil
	}
	var f cldrFile
	if err := json.Unmarshal(data, &f); err != nil {
		if d.env.Logger != nil {
			d.env.Logger.Warn("invalid locale data", "locale", name, "error", err)
		}
		return nil
	}
	for _, main := range f.Main {
		cal := main.Dates.Calendars.Gregorian
		return &cal
	}
	return nil
}

// formatDate interprets the CLDR pattern subset y, M, d and quoted literals.
func formatDate(t time.Time, cal *calendar) string {
	month := strconv.Itoa(int(t.Month()))
	var b strings.Builder
	for _, tok := range dateToken.FindAllString(cal.DateFormats.Long, -1) {
		switch {
		case strings.HasPrefix(tok, "'") && len(tok) > 1:
			b.WriteString(strings.Trim(tok, "'"))
		case tok == "yy":
			b.WriteString(fmt.Sprintf("%02d", t.Year()%100))
		case tok[0] == 'y':
			b.WriteString(strconv.Itoa(t.Year()))
		case tok == "MMMM":
			b.WriteString(monthName(cal.Months.Format.Wide, month, t))
		case tok == "MMM":
			names := cal.Months.Format.Abbreviated
			if len(names) == 0 {
				names = cal.Months.Format.Wide
			}
			b.WriteString(monthName(names, month, t))
		case tok == "MM":
			b.WriteString(fmt.Sprintf("%02d", int(t.Month())))
		case tok == "M":
			b.WriteString(month)
		case tok == "dd":
			b.WriteString(fmt.Sprintf("%02d", t.Day()))
		case tok == "d":
			b.WriteString(strconv.Itoa(t.Day()))
		default:
			b.WriteString(tok)
		}
	}
	return b.String()
}

func monthName(names map[string]string, month string, t time.Time) string {
	if name, ok := names[month]; ok {
		return name
	}
	return t.Month().String()
}
