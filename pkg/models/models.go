package models

import "time"

// PageSummary is what the fetch work function produces for one URL.
type PageSummary struct {
	URL           string    `json:"url"`
	FinalURL      string    `json:"final_url,omitempty"`
	StatusCode    int       `json:"status_code"`
	ContentType   string    `json:"content_type,omitempty"`
	Title         string    `json:"title,omitempty"`
	Description   string    `json:"description,omitempty"`
	Links         int       `json:"links"`
	Images        int       `json:"images"`
	Words         int       `json:"words"`
	ContentLength int       `json:"content_length"`
	Markdown      string    `json:"markdown,omitempty"`
	BatchID       string    `json:"batch_id,omitempty"`
	Cached        bool      `json:"cached,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`
	ResponseTime  int64     `json:"response_time_ms"`
}

// FetchOptions contains options applied to every fetch of a run
type FetchOptions struct {
	Headers  map[string]string
	Selector string        // content root for word count and markdown; defaults to body
	Markdown bool          // convert the content root to Markdown
	CacheTTL time.Duration // 0 uses the cache default; negative disables caching
}
