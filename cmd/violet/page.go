package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"violet/internal/sitemap"
)

func pageCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "page",
		Short: "Create, move, update and delete pages",
	}
	cmd.AddCommand(pageCreateCmd(a), pageMoveCmd(a), pageUpdateCmd(a), pageDeleteCmd(a))
	return cmd
}

func pageCreateCmd(a *app) *cobra.Command {
	var p sitemap.NewPage
	cmd := &cobra.Command{
		Use:   "create <parent>",
		Short: "Create a page as the last child of parent (\"/\" for the top level)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, tree, _, err := a.sitemap()
			if err != nil {
				return err
			}
			parent := args[0]
			if parent == "/" {
				parent = ""
			}
			if p.Slug == "" {
				p.Slug = strings.ToLower(strings.Join(strings.Fields(p.Title), "-"))
			}
			id, err := store.Create(tree, parent, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", tree.Node(id).URL)
			return nil
		},
	}
	cmd.Flags().StringVar(&p.Title, "title", "Untitled", "page title")
	cmd.Flags().StringVar(&p.Slug, "slug", "", "directory name, derived from the title when empty")
	cmd.Flags().StringVar(&p.Template, "template", "default", "page template")
	cmd.Flags().BoolVar(&p.Visible, "visible", true, "show the page in menus")
	cmd.Flags().BoolVar(&p.Published, "published", false, "publish the page")
	return cmd
}

func pageMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <page> <parent> <index>",
		Short: "Move a page below parent (\"/\" for the top level) at index",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[2])
			}
			store, tree, _, err := a.sitemap()
			if err != nil {
				return err
			}
			parent := args[1]
			if parent == "/" {
				parent = ""
			}
			id, err := store.Move(tree, args[0], parent, index)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to %s\n", args[0], tree.Node(id).URL)
			return nil
		},
	}
}

// pageUpdateCmd rewrites the frontmatter of a page from the flags that were
// given and then syncs the site tree from the saved frontmatter.
func pageUpdateCmd(a *app) *cobra.Command {
	var (
		title, slug, template, publishDate, unpublishDate string
		published, visible                               bool
	)
	cmd := &cobra.Command{
		Use:   "update <page>",
		Short: "Change the title, slug, template, visibility or dates of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, tree, pages, err := a.sitemap()
			if err != nil {
				return err
			}
			url := args[0]
			page, err := pages.Load(url, false)
			if err != nil {
				return err
			}
			fm := page.Frontmatter
			flags := cmd.Flags()
			for _, field := range []struct {
				name  string
				value any
			}{
				{"title", title},
				{"template", template},
				{"published", published},
				{"visible", visible},
				{"publishDate", publishDate},
				{"unpublishDate", unpublishDate},
			} {
				if !flags.Changed(field.name) {
					continue
				}
				if s, ok := field.value.(string); ok && s == "" {
					fm.Delete(field.name)
					continue
				}
				fm.Set(field.name, field.value)
			}
			if err := pages.Save(url, fm, page.Content, false); err != nil {
				return err
			}

			fields := sitemap.FieldsFromFrontmatter(fm)
			fields.Slug = slug
			ok, err := store.Update(tree, url, fields)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s", sitemap.ErrNotFound, url)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", url)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "page title")
	f.StringVar(&slug, "slug", "", "new directory name")
	f.StringVar(&template, "template", "", "page template")
	f.StringVar(&publishDate, "publishDate", "", "first day the page is live (YYYY-MM-DD, empty to clear)")
	f.StringVar(&unpublishDate, "unpublishDate", "", "first day the page is gone (YYYY-MM-DD, empty to clear)")
	f.BoolVar(&published, "published", false, "publish the page")
	f.BoolVar(&visible, "visible", false, "show the page in menus")
	return cmd
}

func pageDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <page>",
		Short: "Delete a page with all pages below it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, tree, _, err := a.sitemap()
			if err != nil {
				return err
			}
			if err := store.Delete(tree, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
