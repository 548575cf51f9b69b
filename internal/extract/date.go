package extract

import (
	"regexp"
	"time"
)

// reDates match the Gregorian date formats banks print on receipts:
// "05-Nov-2025", "5 November 2025" and the "on 05/Nov/2025" phrasing.
var reDates = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d{1,2}[-/]\w{3}[-/]\d{4})`),
	regexp.MustCompile(`(?i)(\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{4})`),
	regexp.MustCompile(`(?i)on\s+(\d{1,2}[-/]\w{3}[-/]\d{4})`),
}

// dateLayouts are tried in order when parsing an extracted date string.
var dateLayouts = []string{
	"2-Jan-2006",
	"2/Jan/2006",
	"2 Jan 2006",
	"2 January 2006",
}

// Date extracts the first parsable Gregorian date string from receipt text.
// The raw matched string is returned unchanged; empty means not found.
func Date(text string) string {
	for _, re := range reDates {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// ParseDate parses a date string previously returned by Date. The boolean is
// false when none of the known layouts apply.
func ParseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
