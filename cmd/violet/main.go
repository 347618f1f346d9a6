// Command violet renders, serves and exports a flat-file violet site.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"violet/internal/config"
	"violet/internal/content"
	"violet/internal/export"
	_ "violet/internal/plugin/builtin"
	"violet/internal/render"
	"violet/internal/scaffold"
	"violet/internal/server"
	"violet/internal/sitemap"
	"violet/internal/storage"
	"violet/internal/theme"
)

const Version = "0.3.0"

type app struct {
	siteDir  string
	logLevel string
	logger   *slog.Logger
	files    *storage.Store
}

func (a *app) layout() config.Layout {
	return config.Layout{Root: a.siteDir}
}

func (a *app) config() (config.SiteConfig, error) {
	return config.LoadSiteConfig(a.files.Fs(), a.layout().ConfigDir())
}

// sitemap loads the site tree together with the store that mutates it.
func (a *app) sitemap() (*sitemap.Store, *sitemap.Tree, *content.Store, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, nil, nil, err
	}
	pages := content.NewStore(a.files, a.layout().PagesDir())
	store := sitemap.NewStore(pages, cfg.Routes, a.logger)
	tree, err := store.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	return store, tree, pages, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func rootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "violet",
		Short:         "A flat-file CMS rendering pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(a.logLevel)
			if err != nil {
				return err
			}
			a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(a.logger)
			a.files = storage.New(afero.NewOsFs())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.siteDir, "site", ".", "site root directory")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		renderCmd(a),
		serveCmd(a),
		exportCmd(a),
		templatesCmd(a),
		treeCmd(a),
		pageCmd(a),
		newCmd(a),
		versionCmd(),
	)
	return root
}

func renderCmd(a *app) *cobra.Command {
	var query string
	var drafts bool
	cmd := &cobra.Command{
		Use:   "render <path>",
		Short: "Render one request path and print the document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := render.New(a.files, a.layout(), render.WithLogger(a.logger))
			resp, err := r.Render(render.Request{Path: args[0], Query: query, DraftAllowed: drafts})
			if err != nil {
				return err
			}
			if resp.Location != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d %s\n", resp.Status, resp.Location)
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d\n", resp.Status)
			fmt.Fprint(cmd.OutOrStdout(), resp.Body)
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "raw query string of the request")
	cmd.Flags().BoolVar(&drafts, "drafts", false, "allow ?draft to render page drafts")
	return cmd
}

func serveCmd(a *app) *cobra.Command {
	opts := server.Options{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the preview server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Logger = a.logger
			s, err := server.New(a.files, a.layout(), opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return s.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&opts.Drafts, "drafts", false, "allow ?draft to render page drafts")
	cmd.Flags().BoolVar(&opts.LiveReload, "live-reload", true, "reload browsers when site files change")
	return cmd
}

func exportCmd(a *app) *cobra.Command {
	var out string
	var clean bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the site as static files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !filepath.IsAbs(out) {
				out = filepath.Join(a.siteDir, out)
			}
			r := render.New(a.files, a.layout(), render.WithLogger(a.logger))
			res, err := export.Site(a.files, a.layout(), r, out, export.Options{CleanDestination: clean, Logger: a.logger})
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d pages (%d skipped) and %d assets to %s\n",
				res.Pages, res.Skipped, res.Assets, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "public", "output directory, relative to the site root")
	cmd.Flags().BoolVar(&clean, "clean", false, "empty the output directory first")
	return cmd
}

func templatesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the page templates of the active theme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			infos, err := theme.NewLoader(a.files, a.layout().ThemeDir(cfg.Theme)).List()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(infos)
		},
	}
}

func treeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the site tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tree, _, err := a.sitemap()
			if err != nil {
				return err
			}
			tree.Walk(func(id sitemap.NodeID, depth int) bool {
				n := tree.Node(id)
				var flags []string
				if !n.Published {
					flags = append(flags, "unpublished")
				}
				if !n.Visible {
					flags = append(flags, "hidden")
				}
				line := strings.Repeat("  ", depth) + n.URL + "  " + n.Title
				if len(flags) > 0 {
					line += " (" + strings.Join(flags, ", ") + ")"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
				return true
			})
			return nil
		},
	}
}

func newCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create new site skeletons",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "site <dir>",
		Short: "Create a new site with the default theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := scaffold.CreateNewSite(a.files, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created site in %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "violet %s\n", Version)
		},
	}
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
