package output

import (
	"net/url"
	"path/filepath"
	"strings"

	"pagemd/internal/scraper"
)

const (
	indexName    = "_index" // file for a path ending in "/"
	emptySegment = "_"      // directory for an empty segment ("//")
	querySep     = "~"
)

// PathFor maps a page URL to a file under root with the given extension
// (".md" when empty).
//
//	/a/b     -> root/a/b.md
//	/        -> root/_index.md
//	/a/      -> root/a/_index.md
//	/a?x=1   -> root/a~x%3D1.md
//
// Segment bytes outside [A-Za-z0-9._-] are %XX escaped, as are a leading
// "_" or "." and the "." of a segment that would end in ext. Generated names
// ("_", "_index", "~") therefore never collide with escaped ones, distinct
// paths map to distinct files, no file shares a name with a directory, and
// nothing escapes root.
func PathFor(root string, u *url.URL, ext string) string {
	if ext == "" {
		ext = ".md"
	}
	segs := scraper.Segments(u)
	parts := make([]string, len(segs))
	last := len(segs) - 1
	for i, s := range segs {
		switch {
		case s == "" && i == last:
			parts[i] = indexName
		case s == "":
			parts[i] = emptySegment
		default:
			parts[i] = escapeSegment(s, ext)
		}
	}
	if u.RawQuery != "" || u.ForceQuery {
		parts[last] += querySep + escapeSegment(u.RawQuery, ext)
	}
	parts[last] += ext
	return filepath.Join(append([]string{root}, parts...)...)
}

func escapeSegment(s, ext string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	extAt := -1
	if len(s) >= len(ext) && strings.EqualFold(s[len(s)-len(ext):], ext) {
		extAt = len(s) - len(ext)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		keep := isUnreserved(c)
		if i == 0 && (c == '_' || c == '.') {
			keep = false
		}
		if i == extAt {
			keep = false
		}
		if keep {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return 'a' <= c && c <= 'z' ||
		'A' <= c && c <= 'Z' ||
		'0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_'
}
