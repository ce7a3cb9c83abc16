package formatter

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"pagemd/internal/scraper"
)

func testDoc() *scraper.Document {
	return &scraper.Document{
		SourceURL: "https://example.com/a",
		Title:     "Page: A",
		Markdown:  "# A\n\nbody",
		FetchedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		LoadTime:  1500 * time.Millisecond,
	}
}

func TestFormat_Markdown(t *testing.T) {
	out, err := Format(testDoc(), Markdown, Options{})
	require.NoError(t, err)
	assert.Equal(t, "# A\n\nbody\n", string(out))
}

func TestFormat_MarkdownFrontMatter(t *testing.T) {
	out, err := Format(testDoc(), Markdown, Options{FrontMatter: true})
	require.NoError(t, err)

	s := string(out)
	require.True(t, strings.HasPrefix(s, "---\n"))
	parts := strings.SplitN(strings.TrimPrefix(s, "---\n"), "---\n", 2)
	require.Len(t, parts, 2)

	var meta map[string]string
	require.NoError(t, yaml.Unmarshal([]byte(parts[0]), &meta))
	assert.Equal(t, "Page: A", meta["title"])
	assert.Equal(t, "https://example.com/a", meta["source"])
	assert.Equal(t, "2026-03-04T05:06:07Z", meta["fetched_at"])
	assert.Equal(t, "\n# A\n\nbody\n", parts[1])
}

func TestFormat_JSON(t *testing.T) {
	out, err := Format(testDoc(), JSON, Options{})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "https://example.com/a", got["url"])
	assert.Equal(t, "# A\n\nbody", got["markdown"])
	assert.Equal(t, float64(1500), got["load_time_ms"])
}

func TestFormat_Unknown(t *testing.T) {
	_, err := Format(testDoc(), "csv", Options{})
	assert.Error(t, err)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".md", Extension(Markdown))
	assert.Equal(t, ".json", Extension(JSON))
}
