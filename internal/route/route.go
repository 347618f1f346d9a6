// Package route maps raw request paths to the canonical routes pages are
// published under.
package route

import (
	"strings"
)

// Canonicalize returns the clean route for rawPath. Empty and "." segments
// are dropped, ".." pops the previous segment (underflow is ignored), the home
// slug is elided from the front when hideHome is set and a trailing
// ".html"/".php" suffix is stripped. The result always starts with "/".
//
// Home elision and suffix stripping are repeated until nothing changes, so
// Canonicalize(Canonicalize(x)) == Canonicalize(x) for every x.
func Canonicalize(rawPath, home string, hideHome bool) string {
	segments := resolve(rawPath)
	homeSlug := strings.Trim(home, "/")

	for {
		changed := false
		if hideHome && homeSlug != "" && len(segments) > 0 && segments[0] == homeSlug {
			segments = segments[1:]
			changed = true
		}
		if n := len(segments); n > 0 {
			if last, ok := stripSuffix(segments[n-1]); ok {
				segments[n-1] = last
				if strings.EqualFold(last, "index") {
					segments = segments[:n-1]
				}
				// "..html" leaves a dot segment behind.
				segments = resolve(strings.Join(segments, "/"))
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return "/" + strings.Join(segments, "/")
}

// IsCanonical reports whether raw is already in its canonical form.
func IsCanonical(raw, canonical string) bool {
	return raw == canonical
}

// PathSegments splits a stored page URL into the directory names below the
// pages directory. Dot segments are resolved and a leading "pages" segment is
// dropped so "/pages/blog" and "/blog" address the same directory.
func PathSegments(url string) []string {
	segments := resolve(url)
	if len(segments) > 0 && segments[0] == "pages" {
		segments = segments[1:]
	}
	return segments
}

// Join builds the URL of a child page.
func Join(parent, slug string) string {
	return strings.TrimRight(parent, "/") + "/" + slug
}

// Slug returns the last segment of url.
func Slug(url string) string {
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}

func resolve(path string) []string {
	var segments []string
	for _, segment := range strings.Split(path, "/") {
		switch segment {
		case "", ".":
		case "..":
			if len(segments) > 0 {
				segments = segments[:len(segments)-1]
			}
		default:
			segments = append(segments, segment)
		}
	}
	return segments
}

var suffixes = []string{".html", ".php"}

func stripSuffix(segment string) (string, bool) {
	for _, suffix := range suffixes {
		n := len(segment) - len(suffix)
		if n >= 0 && strings.EqualFold(segment[n:], suffix) {
			return segment[:n], true
		}
	}
	return segment, false
}
