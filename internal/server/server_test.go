package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"violet/internal/config"
	"violet/internal/content"
	"violet/internal/storage"
)

var layout = config.Layout{Root: "/site"}

func write(t *testing.T, fs afero.Fs, path, data string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(data), 0644))
}

func newTestServer(t *testing.T, opts Options, configYAML string) (*Server, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	if configYAML != "" {
		write(t, fs, filepath.Join(layout.ConfigDir(), "violet.yaml"), configYAML)
	}
	templates := filepath.Join(layout.ThemeDir("violet"), "templates")
	write(t, fs, filepath.Join(templates, "default.html"), "<html><body>{CONTENT}</body></html>")
	write(t, fs, filepath.Join(templates, "error.html"), "<html><body>{CONTENT}</body></html>")
	write(t, fs, filepath.Join(layout.ThemeDir("violet"), "css", "site.css"), "body{}")
	write(t, fs, filepath.Join(layout.MediaDir(), "a.txt"), "media")

	pages := layout.PagesDir()
	write(t, fs, filepath.Join(pages, "home", content.PageFile), "---\npublished: true\ntemplate: default\n---\nWelcome")
	write(t, fs, filepath.Join(pages, "wip", content.PageFile), "---\npublished: false\ntemplate: default\n---\nLive")
	write(t, fs, filepath.Join(pages, "wip", content.DraftFile), "---\ntemplate: default\n---\nDraft")

	s, err := New(storage.New(fs), layout, opts)
	require.NoError(t, err)
	return s, fs
}

func do(t *testing.T, h http.Handler, target string) *http.Response {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec.Result()
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestServePages(t *testing.T) {
	s, fs := newTestServer(t, Options{LiveReload: true}, "")
	h := s.Handler()

	resp := do(t, h, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	page := body(t, resp)
	assert.Contains(t, page, "<p>Welcome</p>")
	assert.Contains(t, page, "new WebSocket")
	assert.True(t, strings.HasSuffix(page, "</body></html>"))

	resp = do(t, h, "/home")
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp = do(t, h, "/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body(t, resp), "404 – Not found")

	entries, err := afero.ReadDir(fs, layout.LogDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	logData, err := afero.ReadFile(fs, filepath.Join(layout.LogDir(), entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(logData), "\n"))
	assert.Contains(t, string(logData), `"GET /nope HTTP/1.1" 404 `)

	metrics := body(t, do(t, h, "/metrics"))
	assert.Contains(t, metrics, `violet_responses_total{status="200"} 1`)
	assert.Contains(t, metrics, `violet_responses_total{status="301"} 1`)
	assert.Contains(t, metrics, `violet_responses_total{status="404"} 1`)
}

func TestServeDrafts(t *testing.T) {
	s, _ := newTestServer(t, Options{}, "")
	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), "/wip?draft").StatusCode)

	s, _ = newTestServer(t, Options{Drafts: true}, "")
	resp := do(t, s.Handler(), "/wip?draft")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "<p>Draft</p>")
}

func TestServeStaticFiles(t *testing.T) {
	s, _ := newTestServer(t, Options{}, "")
	h := s.Handler()

	resp := do(t, h, "/themes/violet/css/site.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "body{}", body(t, resp))
	assert.Equal(t, "media", body(t, do(t, h, "/media/a.txt")))
}

func TestServeUnderRootURL(t *testing.T) {
	s, _ := newTestServer(t, Options{}, "RootURL: /sub\n")
	h := s.Handler()

	assert.Contains(t, body(t, do(t, h, "/sub/")), "<p>Welcome</p>")
	assert.Equal(t, "media", body(t, do(t, h, "/sub/media/a.txt")))

	resp := do(t, h, "/sub/home")
	assert.Equal(t, "/sub/", resp.Header.Get("Location"))
}

func TestServeBrokenSite(t *testing.T) {
	s, fs := newTestServer(t, Options{}, "")
	write(t, fs, filepath.Join(layout.ConfigDir(), "violet.yaml"), "Routes: [")

	resp := do(t, s.Handler(), "/")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal Server Error\n", body(t, resp))
}

func TestLiveReloadBroadcast(t *testing.T) {
	s, _ := newTestServer(t, Options{}, "")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.clientCount() == 1 }, time.Second, 10*time.Millisecond)
	s.hub.broadcastMessage([]byte("reload"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "reload", string(msg))
}

func TestInjectLiveReload(t *testing.T) {
	assert.Equal(t, "no body tag", injectLiveReload("no body tag"))
	assert.Equal(t, "<body>x"+liveReloadScript+"</body>", injectLiveReload("<body>x</body>"))
}
