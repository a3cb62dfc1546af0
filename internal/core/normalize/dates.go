package normalize

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var publishedLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"02/01/2006",
}

// ParsePublishedDate parses the publication timestamps found in feeds
// and scraped pages. Known layouts are tried first, then a lenient
// parse; nil means the value was empty or unparseable.
func ParsePublishedDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}

	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return nil
	}

	t = t.UTC()

	return &t
}
