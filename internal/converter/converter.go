// Package converter turns rendered HTML into Markdown.
//
// Conversion is total: malformed markup is parsed best-effort and anything
// the rule set does not recognize degrades to its text content.
package converter

import (
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
)

// removedTags never contribute text to the output.
var removedTags = []string{"head", "script", "style", "noscript", "iframe", "template", "svg"}

// Converter holds a configured html-to-markdown converter. It is safe to
// reuse across pages.
type Converter struct {
	conv *md.Converter
}

// New creates a Converter with ATX headings, fenced code blocks, "-" bullets
// and GitHub-flavored tables.
func New() *Converter {
	conv := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		CodeBlockStyle:   "fenced",
		BulletListMarker: "-",
		EmDelimiter:      "_",
		StrongDelimiter:  "**",
	})
	conv.Use(plugin.GitHubFlavored())
	conv.Remove(removedTags...)
	return &Converter{conv: conv}
}

// Convert returns the Markdown for html.
func (c *Converter) Convert(html string) string {
	return c.ConvertPage(html, nil)
}

// ConvertPage returns the Markdown for html, resolving relative links and
// image sources against base when it is non-nil.
func (c *Converter) ConvertPage(html string, base *url.URL) (markdown string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find(strings.Join(removedTags, ",")).Remove()
	if base != nil {
		absolutize(doc, base)
	}

	defer func() {
		if r := recover(); r != nil {
			markdown = plainText(doc.Selection)
		}
	}()
	return strings.TrimSpace(c.conv.Convert(doc.Selection))
}

func absolutize(doc *goquery.Document, base *url.URL) {
	resolve := func(attr string) func(int, *goquery.Selection) {
		return func(_ int, s *goquery.Selection) {
			raw, _ := s.Attr(attr)
			if abs, ok := resolveRef(base, raw); ok {
				s.SetAttr(attr, abs.String())
			}
		}
	}
	doc.Find("a[href]").Each(resolve("href"))
	doc.Find("img[src]").Each(resolve("src"))
}

func resolveRef(base *url.URL, raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return nil, false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	return base.ResolveReference(ref), true
}

// plainText collapses the text content of s.
func plainText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
