// Package server is the development preview server. It renders every page
// request through the render pipeline, serves theme and media files, and
// reloads connected browsers when site files change.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"

	"violet/internal/accesslog"
	"violet/internal/config"
	"violet/internal/content"
	"violet/internal/render"
	"violet/internal/sitemap"
	"violet/internal/storage"
)

type Options struct {
	Addr string
	// Drafts lets ?draft requests render page drafts.
	Drafts bool
	// LiveReload injects the reload script into rendered pages.
	LiveReload bool
	Logger     *slog.Logger
}

type Server struct {
	files    *storage.Store
	layout   config.Layout
	renderer *render.Renderer
	hub      *Hub
	access   *accesslog.File
	metrics  *accesslog.Metrics
	registry *prometheus.Registry
	opts     Options
	logger   *slog.Logger
}

func New(files *storage.Store, layout config.Layout, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := prometheus.NewRegistry()
	metrics, err := accesslog.NewMetrics(registry)
	if err != nil {
		return nil, err
	}
	return &Server{
		files:    files,
		layout:   layout,
		renderer: render.New(files, layout, render.WithLogger(logger)),
		hub:      newHub(logger),
		access:   accesslog.NewFile(files.Fs(), layout.LogDir(), logger),
		metrics:  metrics,
		registry: registry,
		opts:     opts,
		logger:   logger,
	}, nil
}

type loggerKey struct{}

func requestLogger(r *http.Request, fallback *slog.Logger) *slog.Logger {
	if l, ok := r.Context().Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return fallback
}

// withRequestID tags every request with a fresh ID, echoed in X-Request-Id and
// attached to the request's logger.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		logger := s.logger.With("request_id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), loggerKey{}, logger)))
	})
}

// Handler returns the router of the preview server.
func (s *Server) Handler() http.Handler {
	cfg, err := config.LoadSiteConfig(s.files.Fs(), s.layout.ConfigDir())
	if err != nil {
		s.logger.Warn("using default configuration for routing", "error", err)
		cfg = config.Default()
	}
	httpFs := afero.NewHttpFs(s.files.Fs())

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.withRequestID)

	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(s.hub, w, r)
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	site := func(r chi.Router) {
		for prefix, dir := range map[string]string{
			"/themes/": s.layout.ThemesDir(),
			"/media/":  s.layout.MediaDir(),
		} {
			files := http.FileServer(httpFs.Dir(dir))
			r.Handle(prefix+"*", http.StripPrefix(cfg.RootURL+prefix, noCache(files)))
		}
		r.HandleFunc("/*", s.servePage)
	}
	if cfg.RootURL == "" {
		site(r)
		return r
	}
	r.Route(cfg.RootURL, site)
	// Paths outside the root URL still reach the pipeline, which answers 404.
	r.HandleFunc("/*", s.servePage)
	return r
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r, s.logger)
	sink := accesslog.Multi{
		s.access.For(accesslog.Request{
			RemoteAddr: remoteIP(r.RemoteAddr),
			Method:     r.Method,
			URI:        r.RequestURI,
			Proto:      r.Proto,
			Referer:    r.Referer(),
			UserAgent:  r.UserAgent(),
			Time:       time.Now(),
		}),
		s.metrics,
	}

	resp, err := s.renderer.Render(render.Request{
		Path:         r.URL.Path,
		Query:        r.URL.RawQuery,
		DraftAllowed: s.opts.Drafts,
		Log:          sink,
	})
	if err != nil {
		logger.Error("render failed", "path", r.URL.Path, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	setNoCacheHeaders(w)
	if resp.Status == http.StatusMovedPermanently {
		http.Redirect(w, r, resp.Location, http.StatusMovedPermanently)
		return
	}

	body := resp.Body
	if s.opts.LiveReload {
		body = injectLiveReload(body)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", fmt.Sprint(len(body)))
	w.WriteHeader(resp.Status)
	w.Write([]byte(body))
	logger.Debug("served page", "path", r.URL.Path, "status", resp.Status)
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func setNoCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setNoCacheHeaders(w)
		next.ServeHTTP(w, r)
	})
}

func injectLiveReload(body string) string {
	if i := strings.LastIndex(body, "</body>"); i >= 0 {
		return body[:i] + liveReloadScript + body[i:]
	}
	return body
}

// Run serves the site until ctx is cancelled. When the site lives on the
// OS filesystem its directories are watched: page changes drop the cached
// site tree and every change reloads connected browsers.
func (s *Server) Run(ctx context.Context) error {
	if _, ok := s.files.Fs().(*afero.OsFs); ok {
		watcher, err := s.watch()
		if err != nil {
			return err
		}
		defer watcher.Close()
		go s.watchForChanges(ctx, watcher)
	}

	srv := &http.Server{Addr: s.opts.Addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("serving site", "addr", s.opts.Addr, "drafts", s.opts.Drafts)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) watch() (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create file watcher: %w", err)
	}
	for _, dir := range []string{
		s.layout.ConfigDir(), s.layout.PagesDir(), s.layout.PluginDir(), s.layout.ThemesDir(),
	} {
		if err := s.addWatchTree(watcher, dir); err != nil {
			watcher.Close()
			return nil, err
		}
	}
	return watcher, nil
}

// addWatchTree watches dir and every directory below it.
func (s *Server) addWatchTree(watcher *fsnotify.Watcher, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			s.logger.Warn("could not watch directory", "dir", path, "error", err)
		}
		return nil
	})
}

// ignored reports files the server writes itself.
func (s *Server) ignored(name string) bool {
	base := filepath.Base(name)
	return base == sitemap.FileName || strings.HasSuffix(base, ".tmp")
}

func (s *Server) watchForChanges(ctx context.Context, watcher *fsnotify.Watcher) {
	var lastChange time.Time
	const debounceDuration = 500 * time.Millisecond
	pagesDir := filepath.Clean(s.layout.PagesDir())

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if s.ignored(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					s.addWatchTree(watcher, event.Name)
				}
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
				continue
			}
			if strings.HasPrefix(filepath.Clean(event.Name), pagesDir) {
				s.invalidateTree()
			}
			if time.Since(lastChange) > debounceDuration {
				time.Sleep(100 * time.Millisecond)
				s.logger.Info("change detected, reloading browsers", "file", event.Name)
				s.hub.broadcastMessage([]byte("reload"))
				lastChange = time.Now()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

func (s *Server) invalidateTree() {
	pages := content.NewStore(s.files, s.layout.PagesDir())
	if err := sitemap.NewStore(pages, config.Routes{}, s.logger).Invalidate(); err != nil {
		s.logger.Error("could not drop cached site tree", "error", err)
	}
}

const liveReloadScript = `
<script>
  (function() {
    let socket = new WebSocket("ws://" + window.location.host + "/ws");
    socket.onmessage = function(event) {
      if (event.data === "reload") {
        window.location.reload();
      }
    };
    socket.onerror = function() {
      console.error("Live reload connection error. Please restart 'violet serve'.");
    };
  })();
</script>
`
