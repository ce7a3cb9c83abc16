package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agent = "pagemd/1.0 (+https://github.com/pagemd/pagemd)"

func serve(t *testing.T, status int, body string) *url.URL {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)
	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	return u
}

func TestLoad_Disallow(t *testing.T) {
	base := serve(t, http.StatusOK, "User-agent: *\nDisallow: /private\n")
	p := Load(context.Background(), http.DefaultClient, base, agent)

	assert.True(t, p.Allowed(base.String()+"/public"))
	assert.False(t, p.Allowed(base.String()+"/private/page"))
}

func TestLoad_EmptyDisallowAllowsAll(t *testing.T) {
	base := serve(t, http.StatusOK, "User-agent: *\nDisallow:\n")
	p := Load(context.Background(), http.DefaultClient, base, agent)
	assert.True(t, p.Allowed(base.String()+"/anything"))
}

func TestLoad_AgentSpecificGroup(t *testing.T) {
	base := serve(t, http.StatusOK, "User-agent: *\nDisallow: /tmp\n\nUser-agent: pagemd\nDisallow: /docs\nCrawl-delay: 4\n")
	p := Load(context.Background(), http.DefaultClient, base, agent)

	assert.False(t, p.Allowed(base.String()+"/docs/a"))
	assert.True(t, p.Allowed(base.String()+"/blog"))
	assert.Equal(t, 4*time.Second, p.CrawlDelay())
}

func TestLoad_WildcardEmptyDisallowOverridesRules(t *testing.T) {
	tests := []struct {
		name string
		body string
		path string
	}{
		{"same group", "User-agent: *\nDisallow:\nDisallow: /private\n", "/private"},
		{"agent group", "User-agent: *\nDisallow:\n\nUser-agent: pagemd\nDisallow: /docs\n", "/docs/a"},
		{"shared group", "User-agent: bot\nUser-agent: *\nDisallow:   # open\n\nUser-agent: pagemd\nDisallow: /\n", "/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := serve(t, http.StatusOK, tt.body)
			p := Load(context.Background(), http.DefaultClient, base, agent)
			assert.True(t, p.Allowed(base.String()+tt.path))
		})
	}
}

func TestParse_EmptyDisallowOutsideWildcard(t *testing.T) {
	p, err := Parse([]byte("User-agent: other\nDisallow:\n\nUser-agent: *\nDisallow: /a\n"), agent)
	require.NoError(t, err)
	assert.False(t, p.Allowed("https://example.com/a"))
}

func TestLoad_MissingOrBrokenAllowsAll(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		base := serve(t, status, "User-agent: *\nDisallow: /\n")
		p := Load(context.Background(), http.DefaultClient, base, agent)
		assert.True(t, p.Allowed(base.String()+"/a"), "status %d", status)
	}
}

func TestLoad_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	base, err := url.Parse(ts.URL)
	require.NoError(t, err)
	ts.Close()

	p := Load(context.Background(), http.DefaultClient, base, agent)
	assert.True(t, p.Allowed(base.String()+"/a"))
	assert.Equal(t, time.Duration(0), p.CrawlDelay())
}

func TestNilPolicyAllows(t *testing.T) {
	var p *Policy
	assert.True(t, p.Allowed("https://example.com/a"))
	assert.True(t, AllowAll().Allowed("https://example.com/a"))
}

func TestParse(t *testing.T) {
	p, err := Parse([]byte("User-agent: *\nDisallow: /a/\n"), agent)
	require.NoError(t, err)
	assert.False(t, p.Allowed("https://example.com/a/x?y=1"))
	assert.True(t, p.Allowed("https://example.com/ab"))
}
