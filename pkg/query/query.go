// Package query parses the free-text search box input into an artist and a
// title.
package query

import "strings"

// separators split "artist - title". Both the hyphen and the en-dash form
// must be surrounded by spaces so hyphenated names are left intact.
var separators = []string{" - ", " – "}

// Query is a parsed search. Artist is empty in title-only mode.
type Query struct {
	Artist string
	Title  string
}

// Parse splits raw on the earliest separator. Input without a separator is
// treated as a bare title.
func Parse(raw string) Query {
	raw = strings.TrimSpace(raw)
	idx, sepLen := -1, 0
	for _, sep := range separators {
		if i := strings.Index(raw, sep); i >= 0 && (idx < 0 || i < idx) {
			idx, sepLen = i, len(sep)
		}
	}
	if idx < 0 {
		return Query{Title: raw}
	}
	return Query{
		Artist: strings.TrimSpace(raw[:idx]),
		Title:  strings.TrimSpace(raw[idx+sepLen:]),
	}
}

// HasArtist reports whether the input named an artist.
func (q Query) HasArtist() bool { return q.Artist != "" }

// String renders the query back in "artist - title" form.
func (q Query) String() string {
	if !q.HasArtist() {
		return q.Title
	}
	return q.Artist + " - " + q.Title
}
