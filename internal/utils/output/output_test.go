package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/batchcrawl/pkg/models"
)

func samplePages() []*models.PageSummary {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []*models.PageSummary{
		{URL: "https://example.com/a", StatusCode: 200, Title: "A, with comma", Links: 3, Words: 120, FetchedAt: at, Markdown: "# A\n\nbody"},
		nil,
		{URL: "https://example.com/b", StatusCode: 200, Cached: true, FetchedAt: at},
	}
}

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"json", "JSONL", "csv", "md", "markdown"} {
		_, err := ParseFormat(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)

	assert.Equal(t, FormatCSV, FormatFromPath("out/results.csv"))
	assert.Equal(t, FormatJSONLines, FormatFromPath("results.jsonl"))
	assert.Equal(t, FormatJSON, FormatFromPath("results.txt"))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, samplePages()))

	var decoded []models.PageSummary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "A, with comma", decoded[0].Title)
	assert.Empty(t, decoded[0].Markdown)
	assert.True(t, decoded[1].Cached)
}

func TestWriteJSONLines(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONLines(&buf, samplePages()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first models.PageSummary
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "# A\n\nbody", first.Markdown)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, samplePages()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "A, with comma", records[1][4])
	assert.Equal(t, "120", records[1][8])
	assert.Equal(t, "true", records[2][11])
	assert.Equal(t, "2026-03-01T12:00:00Z", records[2][12])
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, samplePages()))

	out := buf.String()
	assert.Contains(t, out, "# A, with comma\n\n<https://example.com/a>")
	assert.Contains(t, out, "# A\n\nbody")
	assert.Contains(t, out, "# https://example.com/b")
	assert.Equal(t, 1, strings.Count(out, "---"))
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	require.NoError(t, Save(path, FormatFromPath(path), samplePages()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}
