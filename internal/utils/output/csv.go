package output

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/law-makers/batchcrawl/pkg/models"
)

var csvHeader = []string{
	"url", "final_url", "status_code", "content_type", "title", "description",
	"links", "images", "words", "content_length", "batch_id", "cached",
	"fetched_at", "response_time_ms",
}

// WriteCSV writes one row per page with a header row first.
func WriteCSV(w io.Writer, pages []*models.PageSummary) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, p := range pages {
		if p == nil {
			continue
		}
		row := []string{
			p.URL,
			p.FinalURL,
			strconv.Itoa(p.StatusCode),
			p.ContentType,
			p.Title,
			p.Description,
			strconv.Itoa(p.Links),
			strconv.Itoa(p.Images),
			strconv.Itoa(p.Words),
			strconv.Itoa(p.ContentLength),
			p.BatchID,
			strconv.FormatBool(p.Cached),
			p.FetchedAt.Format(time.RFC3339),
			strconv.FormatInt(p.ResponseTime, 10),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
