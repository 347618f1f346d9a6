// Package export writes a site as static files: every public route rendered
// to <route>/index.html plus the theme assets and media files.
package export

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"violet/internal/config"
	"violet/internal/content"
	"violet/internal/render"
	"violet/internal/sitemap"
	"violet/internal/storage"
)

type Options struct {
	// CleanDestination empties the output directory first.
	CleanDestination bool
	Logger           *slog.Logger
}

// Result counts what an export wrote.
type Result struct {
	Pages   int
	Skipped int
	Assets  int
}

// assetExts are the theme and media files copied to the output.
var assetExts = map[string]bool{
	".css": true, ".js": true, ".txt": true, ".svg": true, ".ico": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".woff": true, ".woff2": true, ".pdf": true,
}

// Site renders every published page of the site at layout into outputDir.
// Pages that redirect or answer 404 are skipped. The error page is written
// to 404.html when the site has one.
func Site(files *storage.Store, layout config.Layout, r *render.Renderer, outputDir string, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fs := files.Fs()
	var res Result

	if err := fs.MkdirAll(outputDir, 0755); err != nil {
		return res, err
	}
	if opts.CleanDestination {
		logger.Info("cleaning destination directory", "dir", outputDir)
		entries, err := afero.ReadDir(fs, outputDir)
		if err != nil {
			return res, err
		}
		for _, entry := range entries {
			if err := fs.RemoveAll(filepath.Join(outputDir, entry.Name())); err != nil {
				return res, err
			}
		}
	}

	cfg, err := config.LoadSiteConfig(fs, layout.ConfigDir())
	if err != nil {
		return res, err
	}
	pages := content.NewStore(files, layout.PagesDir())
	tree, err := sitemap.NewStore(pages, cfg.Routes, logger).Load()
	if err != nil {
		return res, err
	}

	var routes []string
	tree.Walk(func(id sitemap.NodeID, _ int) bool {
		routes = append(routes, tree.CleanURL(id))
		return true
	})

	for _, rt := range routes {
		resp, err := r.Render(render.Request{Path: cfg.RootURL + rt})
		if err != nil {
			return res, fmt.Errorf("failed to render %s: %w", rt, err)
		}
		if resp.Status != http.StatusOK {
			logger.Debug("skipping route", "route", rt, "status", resp.Status)
			res.Skipped++
			continue
		}
		dest := filepath.Join(outputDir, filepath.FromSlash(rt), "index.html")
		if err := writeFile(fs, dest, resp.Body); err != nil {
			return res, err
		}
		res.Pages++
	}

	if resp, err := r.Render(render.Request{Path: cfg.RootURL + "/404"}); err == nil && resp.Status == http.StatusNotFound {
		if err := writeFile(fs, filepath.Join(outputDir, "404.html"), resp.Body); err != nil {
			return res, err
		}
	}

	for _, dir := range []struct{ src, dest string }{
		{layout.ThemeDir(cfg.Theme), filepath.Join(outputDir, "themes", cfg.Theme)},
		{layout.MediaDir(), filepath.Join(outputDir, "media")},
	} {
		n, err := copyAssets(fs, dir.src, dir.dest)
		if err != nil {
			return res, err
		}
		res.Assets += n
	}
	return res, nil
}

func writeFile(fs afero.Fs, path, body string) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return afero.WriteFile(fs, path, []byte(body), 0644)
}

// copyAssets copies the asset files below srcDir, leaving out the theme's
// templates.
func copyAssets(fs afero.Fs, srcDir, destDir string) (int, error) {
	if ok, _ := afero.DirExists(fs, srcDir); !ok {
		return 0, nil
	}
	copied := 0
	err := afero.Walk(fs, srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "templates" {
				return filepath.SkipDir
			}
			return nil
		}
		if !assetExts[strings.ToLower(filepath.Ext(info.Name()))] {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if err := copyFile(fs, path, filepath.Join(destDir, rel)); err != nil {
			return err
		}
		copied++
		return nil
	})
	return copied, err
}

func copyFile(fs afero.Fs, from, to string) error {
	if err := fs.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return err
	}
	src, err := fs.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := fs.Create(to)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
