// Package normalize holds the pure string transforms applied to selected
// extracted values. Both are total: on any parse failure the input comes
// back unchanged, so a messy value degrades to raw text in the report
// instead of failing the document.
package normalize

import (
	"regexp"
	"strings"
	"time"
)

// dateLayouts are tried in order. Day-first layouts come before
// month-first ones because Indian cheques carry DD MM YYYY date boxes.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"02 01 2006",
	"02012006",
	"02/01/06",
	"02-01-06",
	"2 January 2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// Date parses a cheque date string and returns it as YYYY-MM-DD.
// Unparseable input is returned unchanged.
func Date(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

var nonAmount = regexp.MustCompile(`[^\d.]`)

// Amount cleans an amount string to a plain number representation:
// currency symbols, commas and spelled suffixes are stripped, and any
// dots except the last one are treated as grouping separators.
func Amount(s string) string {
	if strings.TrimSpace(s) == "" {
		return s
	}
	cleaned := nonAmount.ReplaceAllString(s, "")
	if strings.Count(cleaned, ".") > 1 {
		parts := strings.Split(cleaned, ".")
		cleaned = strings.Join(parts[:len(parts)-1], "") + "." + parts[len(parts)-1]
	}
	if cleaned == "" {
		return s
	}
	return cleaned
}
