package util

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

var (
	percentEscape = regexp.MustCompile(`%[0-9a-fA-F]{2}`)
	// urlChars is the set of characters allowed in a URL before it is
	// re-encoded.
	urlChars = regexp.MustCompile(`[^A-Za-z0-9$\-_.+!*'(),{}|\\^~\[\]` + "`" + `<>#%";/?:@&=]`)
)

// Canonicalize decodes HTML entities and strips ASCII control characters.
func Canonicalize(s string) string {
	s = html.UnescapeString(s)
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// SanitizeURL normalizes a URL for use in an href attribute. Percent
// escapes are decoded until none are left, characters that cannot appear in a
// URL are dropped and every path segment is escaped again. Schemes other
// than http and https yield "".
func SanitizeURL(raw string) string {
	s := Canonicalize(raw)
	for percentEscape.MatchString(s) {
		decoded, err := url.QueryUnescape(s)
		if err != nil || decoded == s {
			break
		}
		s = decoded
	}
	s = urlChars.ReplaceAllString(s, "")

	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}

	var b strings.Builder
	if u.Scheme != "" {
		b.WriteString(u.Scheme + "://")
	}
	if u.User != nil {
		b.WriteString(u.User.String() + "@")
	}
	b.WriteString(u.Host)

	segments := strings.Split(u.Path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	b.WriteString(strings.Join(segments, "/"))

	if u.RawQuery != "" {
		b.WriteString("?" + u.RawQuery)
	}
	if u.Fragment != "" {
		b.WriteString("#" + u.Fragment)
	}
	return b.String()
}

// SanitizeAttribute makes s safe to place inside a quoted HTML attribute.
func SanitizeAttribute(s string) string {
	return html.EscapeString(Canonicalize(s))
}
