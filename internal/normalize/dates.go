package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date handling for the free-form strings sources print: single dates in a
// handful of layouts, and ranges like "Jan 12 - 14, 2024",
// "15 Jan - 20 Feb 2024", "Dec 17, 2025 - Feb 09, 2026". Ranges split on
// "-", "–", or " to "; a right side without a month inherits the left
// month; a left side without a year inherits the right year. Ordinal
// suffixes (1st, 2nd, 3rd, 4th) are stripped before parsing. All outputs
// are UTC midnight unless the source carried a time.

var ordinalPattern = regexp.MustCompile(`(?i)(\d{1,2})(st|nd|rd|th)\b`)

var singleDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"01/02/2006",
	"2006/01/02",
}

var monthsByName = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// ParseDate parses one date in any supported layout. The result is UTC.
func ParseDate(text string) (time.Time, bool) {
	text = cleanDateText(text)
	if t, ok := parseDateStrict(text); ok {
		return t, true
	}
	// Token extraction covers shapes the layouts miss, like
	// "17 December, 2025".
	if side, ok := extractDateTokens(text); ok && side.complete() {
		return side.time(), true
	}
	return time.Time{}, false
}

// parseDateStrict tries the known layouts only. Separated from ParseDate
// so range splitting can probe a side without the token fallback
// misreading a whole range as its first date.
func parseDateStrict(text string) (time.Time, bool) {
	if text == "" {
		return time.Time{}, false
	}
	for _, layout := range singleDateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseDateRange parses a date or date range. A single date yields
// (start, nil). Both ends nil with ok=false means nothing was parseable.
func ParseDateRange(text string) (*time.Time, *time.Time, bool) {
	text = cleanDateText(text)
	if text == "" {
		return nil, nil, false
	}

	// A clean single date (including ISO, whose hyphens must not be
	// treated as range separators) ends here.
	if t, ok := parseDateStrict(text); ok {
		return &t, nil, true
	}

	left, right, found := splitRange(text)
	if !found {
		if t, ok := ParseDate(text); ok {
			return &t, nil, true
		}
		return nil, nil, false
	}

	leftTok := sideTokens(left)
	rightTok := sideTokens(right)

	// "Jan 12 - 14, 2024": the right side borrows January, the left
	// side borrows 2024.
	if !rightTok.hasMonth && leftTok.hasMonth {
		rightTok.month, rightTok.hasMonth = leftTok.month, true
	}
	if !leftTok.hasYear && rightTok.hasYear {
		leftTok.year, leftTok.hasYear = rightTok.year, true
	}
	if !rightTok.hasYear && leftTok.hasYear {
		rightTok.year, rightTok.hasYear = leftTok.year, true
	}

	var start, end *time.Time
	if leftTok.complete() {
		t := leftTok.time()
		start = &t
	}
	if rightTok.complete() {
		t := rightTok.time()
		end = &t
	}
	if start == nil && end == nil {
		return nil, nil, false
	}
	return start, end, true
}

// sideTokens tokenizes one side of a range, falling back to the strict
// layouts for all-numeric sides like "2026-02-09" or "01/02/2026".
func sideTokens(text string) dateTokens {
	tok, _ := extractDateTokens(text)
	if tok.complete() {
		return tok
	}
	if t, ok := parseDateStrict(text); ok {
		return dateTokens{
			month: t.Month(), day: t.Day(), year: t.Year(),
			hasMonth: true, hasDay: true, hasYear: true,
		}
	}
	return tok
}

func cleanDateText(text string) string {
	text = strings.TrimSpace(text)
	text = ordinalPattern.ReplaceAllString(text, "$1")
	text = strings.ReplaceAll(text, "–", "-")
	text = strings.ReplaceAll(text, "—", "-")
	return text
}

// splitRange cuts a range into its two sides. Spaced separators are
// preferred so ISO dates keep their internal hyphens.
func splitRange(text string) (string, string, bool) {
	low := strings.ToLower(text)
	if idx := strings.Index(low, " to "); idx >= 0 {
		return strings.TrimSpace(text[:idx]), strings.TrimSpace(text[idx+4:]), true
	}
	if idx := strings.Index(text, " - "); idx >= 0 {
		return strings.TrimSpace(text[:idx]), strings.TrimSpace(text[idx+3:]), true
	}
	if idx := strings.Index(text, "-"); idx >= 0 {
		return strings.TrimSpace(text[:idx]), strings.TrimSpace(text[idx+1:]), true
	}
	return "", "", false
}

type dateTokens struct {
	month    time.Month
	day      int
	year     int
	hasMonth bool
	hasDay   bool
	hasYear  bool
}

func (d dateTokens) complete() bool {
	return d.hasMonth && d.hasDay && d.hasYear
}

func (d dateTokens) time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

var tokenPattern = regexp.MustCompile(`[A-Za-z]+|\d+`)

// extractDateTokens pulls month name, day, and year out of one side of a
// range, in any order. Numbers with four digits are years; the first
// remaining small number is the day.
func extractDateTokens(text string) (dateTokens, bool) {
	var out dateTokens
	for _, token := range tokenPattern.FindAllString(text, -1) {
		if month, ok := monthsByName[strings.ToLower(token)]; ok {
			if !out.hasMonth {
				out.month, out.hasMonth = month, true
			}
			continue
		}
		if n, err := strconv.Atoi(token); err == nil {
			switch {
			case len(token) == 4:
				if !out.hasYear {
					out.year, out.hasYear = n, true
				}
			case n >= 1 && n <= 31:
				if !out.hasDay {
					out.day, out.hasDay = n, true
				}
			}
		}
	}
	if !out.hasMonth && !out.hasDay && !out.hasYear {
		return out, false
	}
	return out, true
}
