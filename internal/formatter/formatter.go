package formatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.yaml.in/yaml/v3"

	"pagemd/internal/scraper"
)

const (
	Markdown = "markdown"
	JSON     = "json"
)

// Formats lists the supported output formats.
var Formats = []string{Markdown, JSON}

// Options tunes the rendered output.
type Options struct {
	FrontMatter bool // prefix Markdown with a YAML metadata block
}

// Extension returns the file extension for format.
func Extension(format string) string {
	switch format {
	case JSON:
		return ".json"
	default:
		return ".md"
	}
}

// Format renders doc in the requested format.
func Format(doc *scraper.Document, format string, opts Options) ([]byte, error) {
	switch format {
	case Markdown:
		return formatMarkdown(doc, opts)
	case JSON:
		return formatJSON(doc)
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

type frontMatter struct {
	Title     string `yaml:"title,omitempty"`
	Source    string `yaml:"source"`
	FetchedAt string `yaml:"fetched_at"`
}

func formatMarkdown(doc *scraper.Document, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if opts.FrontMatter {
		meta, err := yaml.Marshal(frontMatter{
			Title:     doc.Title,
			Source:    doc.SourceURL,
			FetchedAt: doc.FetchedAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal front matter: %w", err)
		}
		buf.WriteString("---\n")
		buf.Write(meta)
		buf.WriteString("---\n\n")
	}
	buf.WriteString(doc.Markdown)
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

type jsonOutput struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Markdown  string `json:"markdown"`
	FetchedAt string `json:"fetched_at"`
	LoadTime  int64  `json:"load_time_ms"`
}

func formatJSON(doc *scraper.Document) ([]byte, error) {
	out, err := json.MarshalIndent(jsonOutput{
		URL:       doc.SourceURL,
		Title:     doc.Title,
		Markdown:  doc.Markdown,
		FetchedAt: doc.FetchedAt.UTC().Format(time.RFC3339),
		LoadTime:  doc.LoadTime.Milliseconds(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(out, '\n'), nil
}
