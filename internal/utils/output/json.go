package output

import (
	"encoding/json"
	"io"

	"github.com/law-makers/batchcrawl/pkg/models"
)

// WriteJSON writes pages as one indented JSON array. Markdown bodies are
// left out; use the markdown format for those.
func WriteJSON(w io.Writer, pages []*models.PageSummary) error {
	export := make([]models.PageSummary, 0, len(pages))
	for _, p := range pages {
		if p == nil {
			continue
		}
		cp := *p
		cp.Markdown = ""
		export = append(export, cp)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(export)
}

// WriteJSONLines writes one compact JSON object per page.
func WriteJSONLines(w io.Writer, pages []*models.PageSummary) error {
	enc := json.NewEncoder(w)
	for _, p := range pages {
		if p == nil {
			continue
		}
		if err := enc.Encode(p); err != nil {
			return err
		}
	}
	return nil
}
