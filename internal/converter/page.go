package converter

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Title returns the text of the document's <title>, if any.
func Title(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// Links returns the absolute http(s) link targets in html, resolved against
// base, without fragments, deduplicated in document order.
func Links(html string, base *url.URL) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var links []string
	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		raw, _ := s.Attr("href")
		u, ok := resolveRef(base, raw)
		if !ok || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		u.Fragment = ""
		u.RawFragment = ""
		link := u.String()
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})
	return links
}
