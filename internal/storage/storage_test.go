package storage

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/site/pages", 0755))
	return New(fs)
}

func TestWriteFileReplacesContent(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.WriteFile("/site/pages", "page.md", []byte("first")))
	require.NoError(t, s.WriteFile("/site/pages", "page.md", []byte("second")))

	data, err := s.ReadFile("/site/pages", "page.md")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	files, err := s.ListFiles("/site/pages")
	require.NoError(t, err)
	assert.Equal(t, []string{"page.md"}, files, "no temp files may remain")
}

func TestWriteFileMissingDir(t *testing.T) {
	s := newTestStore(t)
	err := s.WriteFile("/site/nope", "page.md", nil)
	assert.ErrorIs(t, err, ErrDirNotFound)
}

func TestReadFileMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReadFile("/site/pages", "draft.md")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestJSONRoundTrip(t *testing.T) {
	s := newTestStore(t)
	in := map[string]any{"enabled": true}
	require.NoError(t, s.WriteJSON("/site/pages", "x.json", in))

	var out map[string]any
	require.NoError(t, s.ReadJSON("/site/pages", "x.json", &out))
	assert.Equal(t, true, out["enabled"])

	require.NoError(t, s.WriteFile("/site/pages", "bad.json", []byte("{")))
	assert.Error(t, s.ReadJSON("/site/pages", "bad.json", &out))
}

func TestListDirsSkipsFilesAndHidden(t *testing.T) {
	s := newTestStore(t)
	fs := s.Fs()
	require.NoError(t, fs.MkdirAll("/site/pages/about", 0755))
	require.NoError(t, fs.MkdirAll("/site/pages/.git", 0755))
	require.NoError(t, afero.WriteFile(fs, "/site/pages/sitemap.json", []byte("[]"), 0644))

	dirs, err := s.ListDirs("/site/pages")
	require.NoError(t, err)
	assert.Equal(t, []string{"about"}, dirs)

	_, err = s.ListDirs("/site/missing")
	assert.ErrorIs(t, err, ErrDirNotFound)
}

func TestUniqueName(t *testing.T) {
	s := newTestStore(t)
	fs := s.Fs()

	name, err := s.UniqueName("/site/pages", "blog")
	require.NoError(t, err)
	assert.Equal(t, "blog", name)

	require.NoError(t, fs.Mkdir("/site/pages/blog", 0755))
	name, err = s.UniqueName("/site/pages", "blog")
	require.NoError(t, err)
	assert.Equal(t, "blog-1", name)

	require.NoError(t, fs.Mkdir("/site/pages/blog-1", 0755))
	name, err = s.UniqueName("/site/pages", "blog")
	require.NoError(t, err)
	assert.Equal(t, "blog-2", name)

	_, err = s.UniqueName("/site/pages", "../")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"blog", "blog"},
		{"My Page!", "MyPage"},
		{"../../etc/passwd", "passwd"},
		{"-draft-", "draft"},
		{"photo.JPG", "photo"},
		{"photo.jpg", "photo.jpg"},
		{"über", "ber"},
		{"..", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}
}

func TestRemoveDir(t *testing.T) {
	s := newTestStore(t)
	fs := s.Fs()
	require.NoError(t, fs.MkdirAll("/site/pages/a/b", 0755))

	require.NoError(t, s.RemoveDir("/site/pages/a"))
	assert.False(t, s.IsDir("/site/pages/a"))
	assert.ErrorIs(t, s.RemoveDir("/site/pages/a"), ErrDirNotFound)
}
