package urlutil

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	valid := []string{
		"http://example.com",
		"https://example.com/path",
	}
	for _, u := range valid {
		if err := ValidateURL(u); err != nil {
			t.Fatalf("expected valid, got error: %v", err)
		}
	}

	invalid := []string{"ftp://example.com", "//example.com", "http:///"}
	for _, u := range invalid {
		if err := ValidateURL(u); err == nil {
			t.Fatalf("expected invalid for %s", u)
		}
	}
}

func TestResolveURL(t *testing.T) {
	cases := map[string]string{
		"/about":              "https://example.com/about",
		"next":                "https://example.com/docs/next",
		"https://other.org/x": "https://other.org/x",
		"?page=2":             "https://example.com/docs/index?page=2",
	}
	for href, want := range cases {
		if got := ResolveURL("https://example.com/docs/index", href); got != want {
			t.Errorf("ResolveURL(%q) = %q, want %q", href, got, want)
		}
	}
}

func TestReadList(t *testing.T) {
	input := `# seed list
https://example.com/a

https://example.com/b
not a url
https://example.com/a
ftp://example.com/c
`
	urls, rejected, err := ReadList(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(urls) != 2 || urls[0] != "https://example.com/a" || urls[1] != "https://example.com/b" {
		t.Fatalf("unexpected urls: %v", urls)
	}
	if len(rejected) != 2 {
		t.Fatalf("expected 2 rejected lines, got %v", rejected)
	}
	if rejected[0].Line != 5 || rejected[1].Line != 7 {
		t.Errorf("unexpected rejected line numbers: %+v", rejected)
	}
}
