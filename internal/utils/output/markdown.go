package output

import (
	"fmt"
	"io"

	"github.com/law-makers/batchcrawl/pkg/models"
)

// WriteMarkdown writes every page as a section headed by its title and URL.
// Pages fetched without Markdown conversion contribute only the heading.
func WriteMarkdown(w io.Writer, pages []*models.PageSummary) error {
	written := 0
	for _, p := range pages {
		if p == nil {
			continue
		}
		if written > 0 {
			if _, err := io.WriteString(w, "\n---\n\n"); err != nil {
				return err
			}
		}

		title := p.Title
		if title == "" {
			title = p.URL
		}
		if _, err := fmt.Fprintf(w, "# %s\n\n<%s>\n\n", title, p.URL); err != nil {
			return err
		}
		if p.Markdown != "" {
			if _, err := fmt.Fprintf(w, "%s\n", p.Markdown); err != nil {
				return err
			}
		}
		written++
	}
	return nil
}
