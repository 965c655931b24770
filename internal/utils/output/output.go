// Package output writes page summaries in the formats the CLI offers.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/law-makers/batchcrawl/pkg/models"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON      Format = "json"
	FormatJSONLines Format = "jsonl"
	FormatCSV       Format = "csv"
	FormatMarkdown  Format = "md"
)

// ParseFormat converts a name into a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatJSONLines, FormatCSV, FormatMarkdown:
		return f, nil
	case "markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown output format %q (must be json, jsonl, csv, or md)", s)
	}
}

// FormatFromPath guesses the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	if f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		return f
	}
	return FormatJSON
}

// Write encodes pages to w.
func Write(w io.Writer, format Format, pages []*models.PageSummary) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, pages)
	case FormatJSONLines:
		return WriteJSONLines(w, pages)
	case FormatCSV:
		return WriteCSV(w, pages)
	case FormatMarkdown:
		return WriteMarkdown(w, pages)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// Save writes pages to path, creating or truncating it.
func Save(path string, format Format, pages []*models.PageSummary) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return Write(file, format, pages)
}
