package urlutil

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// ValidateURL checks that urlStr is an absolute http(s) URL with a host
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: must be http or https, got %q", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("invalid URL: missing host")
	}

	return nil
}

// ResolveURL resolves a possibly-relative href against a base URL
func ResolveURL(base, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(u).String()
}

// Rejected is a line of a URL list that was not a valid URL.
type Rejected struct {
	Line int
	Text string
	Err  error
}

// ReadList reads one URL per line. Blank lines and lines starting with '#'
// are skipped, duplicates are dropped keeping the first occurrence, and
// invalid URLs are reported in rejected rather than failing the read.
func ReadList(r io.Reader) (urls []string, rejected []Rejected, err error) {
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(r)
	line := 0

	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if verr := ValidateURL(text); verr != nil {
			rejected = append(rejected, Rejected{Line: line, Text: text, Err: verr})
			continue
		}
		if seen[text] {
			continue
		}
		seen[text] = true
		urls = append(urls, text)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read URL list: %w", err)
	}
	return urls, rejected, nil
}
