package core

import (
	"strings"
	"time"
)

// DateLayout is the canonical rendering of publication dates.
const DateLayout = "2006-01-02"

// UnknownDate is the sentinel used when a source's publication date cannot be
// determined.
var UnknownDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"02/01/2006",
	"2006/01/02",
}

// IsUnknownDate reports whether t is the unknown-date sentinel.
func IsUnknownDate(t time.Time) bool {
	return t.Equal(UnknownDate)
}

// FormatDate renders t as YYYY-MM-DD. The zero time renders as the sentinel.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		t = UnknownDate
	}
	return t.UTC().Format(DateLayout)
}

// ParseDate parses the date formats seen in scraped records and PDF info
// dictionaries. Unparseable or empty input yields UnknownDate.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return UnknownDate
	}

	// PDF dates look like D:20230514093000+02'00'
	if strings.HasPrefix(s, "D:") {
		s = strings.TrimPrefix(s, "D:")
		if len(s) >= 8 {
			if t, err := time.Parse("20060102", s[:8]); err == nil {
				return t.UTC()
			}
		}
		return UnknownDate
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
	}
	return UnknownDate
}
