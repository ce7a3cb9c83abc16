package output

import (
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagemd/internal/scraper"
)

func pathFor(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse("https://example.com" + raw)
	require.NoError(t, err)
	p, err := filepath.Rel("out", PathFor("out", u, ".md"))
	require.NoError(t, err)
	return filepath.ToSlash(p)
}

func TestPathFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/a", "a.md"},
		{"/a/b", "a/b.md"},
		{"", "_index.md"},
		{"/", "_index.md"},
		{"/a/", "a/_index.md"},
		{"/a//b", "a/_/b.md"},
		{"/_index", "%5Findex.md"},
		{"/.hidden", "%2Ehidden.md"},
		{"/notes.md", "notes%2Emd.md"},
		{"/notes.md/x", "notes%2Emd/x.md"},
		{"/a%2Fb", "a%2Fb.md"},
		{"/a b", "a%20b.md"},
		{"/a~b", "a%7Eb.md"},
		{"/a?x=1", "a~x%3D1.md"},
		{"/?q", "_index~q.md"},
		{"/caf%C3%A9", "caf%C3%A9.md"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, pathFor(t, tt.path))
		})
	}
}

func TestPathFor_Extension(t *testing.T) {
	u, err := url.Parse("https://example.com/data.json/a")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "data%2Ejson", "a.json"), PathFor("out", u, ".json"))
	assert.Equal(t, filepath.Join("out", "data.json", "a.md"), PathFor("out", u, ""))
}

func TestPathFor_Injective(t *testing.T) {
	paths := []string{
		"/", "/a", "/a/", "/a/b", "/a/b/", "/a_b", "/a/_index", "/a/index",
		"/_", "/a//b", "/a/_/b", "/a%2Fb", "/a.md", "/a.md/b", "/a%2Emd",
		"/a?", "/a?x", "/a~x", "/a?x=1", "/a?x=2", "/a/?x=1", "/A", "/a%20b",
		"/a+b", "/..a", "/.a", "/%2E%2E", "/a/./b/../c", "/index", "/index.md",
		"/a~", "/a%7E", "/q?a~b", "/q~a%7Eb",
	}

	files := map[string]string{}
	dirs := map[string]bool{}
	for _, p := range paths {
		u, err := url.Parse("https://example.com" + p)
		require.NoError(t, err)
		key := scraper.Key(u)
		got := filepath.ToSlash(PathFor("out", u, ".md"))

		if prev, ok := files[got]; ok && prev != key {
			t.Errorf("%q and %q both map to %s", prev, key, got)
		}
		files[got] = key
		for d := filepath.Dir(got); d != "out" && d != "."; d = filepath.Dir(d) {
			dirs[filepath.ToSlash(d)] = true
		}
	}
	for f := range files {
		assert.False(t, dirs[f], "%s is both a file and a directory", f)
	}
}

func TestPathFor_StaysUnderRoot(t *testing.T) {
	for _, raw := range []string{"/../../etc/passwd", "/%2E%2E/%2E%2E/x", "/a/%2E%2E%2F%2E%2E%2Fx"} {
		u, err := url.Parse("https://example.com" + raw)
		require.NoError(t, err)
		got := PathFor("out", u, ".md")
		assert.True(t, strings.HasPrefix(got, "out"+string(filepath.Separator)), "%s -> %s", raw, got)
		assert.NotContains(t, filepath.ToSlash(got), "/../")
	}
}
