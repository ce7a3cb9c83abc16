package fetcher

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod"

	"pagemd/internal/scraper"
)

// contentSelectors are tried in order by the content level.
var contentSelectors = []string{"article", "main", "[role=main]", ".content", ".article", ".post", ".entry-content"}

// Extractor reads HTML out of a rendered page.
type Extractor struct {
	page *rod.Page
}

// NewExtractor creates a new Extractor instance
func NewExtractor(page *rod.Page) *Extractor {
	return &Extractor{
		page: page,
	}
}

// Extract returns HTML for level. selector is only used by css and xpath.
func (e *Extractor) Extract(level, selector string) (string, error) {
	switch level {
	case scraper.LevelFull:
		return e.extractFull()
	case scraper.LevelBody:
		return e.extractBody()
	case scraper.LevelContent:
		return e.extractContent()
	case scraper.LevelCSS:
		return e.extractByCSS(selector)
	case scraper.LevelXPath:
		return e.extractByXPath(selector)
	default:
		return "", fmt.Errorf("unsupported level: %s", level)
	}
}

func (e *Extractor) extractFull() (string, error) {
	result, err := e.page.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("failed to get full HTML: %w", err)
	}

	html := result.Value.Str()
	if !strings.Contains(html, "<!DOCTYPE") {
		html = "<!DOCTYPE html>\n" + html
	}
	return html, nil
}

func (e *Extractor) extractBody() (string, error) {
	result, err := e.page.Eval(`() => {
		const body = document.body;
		return body ? body.innerHTML : '';
	}`)
	if err != nil {
		return "", fmt.Errorf("failed to extract body HTML: %w", err)
	}
	return result.Value.Str(), nil
}

// extractContent picks the first non-empty main-content container, or the body.
func (e *Extractor) extractContent() (string, error) {
	for _, sel := range contentSelectors {
		has, el, err := e.page.Has(sel)
		if err != nil {
			return "", fmt.Errorf("failed to query %q: %w", sel, err)
		}
		if !has {
			continue
		}
		html, err := el.HTML()
		if err == nil && strings.TrimSpace(html) != "" {
			return html, nil
		}
	}

	html, err := e.extractBody()
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}
	return html, nil
}

func (e *Extractor) extractByCSS(selector string) (string, error) {
	elements, err := e.page.Elements(selector)
	if err != nil {
		return "", fmt.Errorf("failed to query CSS selector: %w", err)
	}
	return joinHTML(elements)
}

func (e *Extractor) extractByXPath(xpath string) (string, error) {
	elements, err := e.page.ElementsX(xpath)
	if err != nil {
		return "", fmt.Errorf("failed to query XPath: %w", err)
	}
	return joinHTML(elements)
}

func joinHTML(elements rod.Elements) (string, error) {
	parts := make([]string, 0, len(elements))
	for _, el := range elements {
		html, err := el.HTML()
		if err != nil {
			return "", fmt.Errorf("failed to get element HTML: %w", err)
		}
		parts = append(parts, html)
	}
	return strings.Join(parts, "\n"), nil
}
