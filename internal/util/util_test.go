package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/about", "/about"},
		{"/sub/blog/post", "/sub/blog/post"},
		{"/a b", "/ab"},
		{"/a%2520b", "/ab"},
		{"https://example.com/x?y=1#top", "https://example.com/x?y=1#top"},
		{"javascript:alert(1)", ""},
		{"JaVaScRiPt&#58;alert(1)", ""},
		{"/search?q=go", "/search?q=go"},
		{"/tab\there", "/tabhere"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeURL(tt.in))
		})
	}
}

func TestSanitizeAttribute(t *testing.T) {
	assert.Equal(t, "Tom &amp; Jerry", SanitizeAttribute("Tom & Jerry"))
	assert.Equal(t, "&#34;quoted&#34;", SanitizeAttribute(`"quoted"`))
	assert.Equal(t, "&lt;b&gt;", SanitizeAttribute("&lt;b&gt;"))
	assert.Equal(t, "ab", SanitizeAttribute("a\x00b"))
}
