package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestPageUpdateKeepsFrontmatterOrder(t *testing.T) {
	dir := t.TempDir()
	execute(t, "--log-level", "error", "new", "site", dir)

	execute(t, "--site", dir, "--log-level", "error", "page", "update", "/search",
		"--unpublishDate", "2030-01-01", "--publishDate", "2029-01-01", "--title", "Find")

	data, err := os.ReadFile(filepath.Join(dir, "pages", "search", "page.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "---\n"+
		"title: Find\n"+
		"template: default\n"+
		"robots: noindex\n"+
		"published: true\n"+
		"visible: false\n"+
		"publishDate: 2029-01-01\n"+
		"unpublishDate: 2030-01-01\n"+
		"---\n")

	assert.Contains(t, execute(t, "--site", dir, "--log-level", "error", "tree"), "/search  Find (hidden)")
}
