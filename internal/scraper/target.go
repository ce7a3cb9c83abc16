package scraper

import (
	"fmt"
	"net/url"
	"strings"
)

// Target is one page scheduled for processing: the path as given and the
// URL it resolves to against the base.
type Target struct {
	Path string
	URL  *url.URL
}

// NewTarget resolves path against base. The fragment is dropped and the
// result must stay on the base scheme and host.
func NewTarget(base *url.URL, path string) (Target, error) {
	ref, err := url.Parse(strings.TrimSpace(path))
	if err != nil {
		return Target{}, fmt.Errorf("invalid target %q: %w", path, err)
	}
	u := base.ResolveReference(ref)
	u.Fragment = ""
	u.RawFragment = ""
	if !SameSite(base, u) {
		return Target{}, fmt.Errorf("target %q resolves outside %s://%s", path, base.Scheme, base.Host)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return Target{Path: path, URL: u}, nil
}

func (t Target) String() string {
	return t.URL.String()
}

// Key identifies the target within its site. Targets with the same key are
// the same resource and produce the same output file.
func (t Target) Key() string {
	return Key(t.URL)
}

// Key canonicalizes the path and query of u.
func Key(u *url.URL) string {
	segs := Segments(u)
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	key := "/" + strings.Join(segs, "/")
	if u.RawQuery != "" || u.ForceQuery {
		key += "?" + u.RawQuery
	}
	return key
}

// Segments returns the decoded path segments of u without the leading
// slash. A trailing slash yields a final empty segment; "/" yields [""].
func Segments(u *url.URL) []string {
	p := strings.TrimPrefix(u.EscapedPath(), "/")
	segs := strings.Split(p, "/")
	for i, s := range segs {
		if dec, err := url.PathUnescape(s); err == nil {
			segs[i] = dec
		}
	}
	return segs
}

// SameSite reports whether u shares the scheme and host of base.
func SameSite(base, u *url.URL) bool {
	return strings.EqualFold(base.Scheme, u.Scheme) && strings.EqualFold(base.Host, u.Host)
}
