// Package etcal converts Gregorian dates and month names to their Ethiopian
// (Amete Mihret) calendar equivalents. Receipts carry Gregorian dates while
// the sheet-of-record is organized by Ethiopian month, so the pipeline needs
// an actual calendar conversion, not a translation of month names.
package etcal

import (
	"fmt"
	"strings"
	"time"
)

// Months lists the thirteen Ethiopian months in calendar order.
var Months = []string{
	"Meskerem",
	"Tikimt",
	"Hidar",
	"Tahsas",
	"Tir",
	"Yekatit",
	"Megabit",
	"Miyazya",
	"Ginbot",
	"Sene",
	"Hamle",
	"Nehase",
	"Pagume",
}

// AmharicNames maps the Latin Ethiopian month name to its Amharic spelling
// used for user-facing display.
var AmharicNames = map[string]string{
	"Meskerem": "መስከረም",
	"Tikimt":   "ጥቅምት",
	"Hidar":    "ህዳር",
	"Tahsas":   "ታህሳስ",
	"Tir":      "ጥር",
	"Yekatit":  "የካቲት",
	"Megabit":  "መጋቢት",
	"Miyazya":  "ሚያዝያ",
	"Ginbot":   "ግንቦት",
	"Sene":     "ሰኔ",
	"Hamle":    "ሐምሌ",
	"Nehase":   "ነሐሴ",
	"Pagume":   "ጳጉሜ",
}

// gregorianEquivalents maps a lowercase Gregorian month name to the
// Ethiopian month that covers most of it. This is the month-level
// approximation used when only a month name is available; the scan in
// MonthFromText also accepts the three-letter abbreviation of each name.
var gregorianEquivalents = map[string]string{
	"january":   "Tir",
	"february":  "Yekatit",
	"march":     "Megabit",
	"april":     "Miyazya",
	"may":       "Ginbot",
	"june":      "Sene",
	"july":      "Hamle",
	"august":    "Nehase",
	"september": "Pagume",
	"october":   "Meskerem",
	"november":  "Tikimt",
	"december":  "Hidar",
}

// amharicMonthTokens lists Amharic month spellings (including the የ- "of"
// prefix and common OCR-shortened forms) in calendar order, so a text naming
// two months always resolves to the earlier one.
var amharicMonthTokens = []struct {
	month  string
	tokens []string
}{
	{"Meskerem", []string{"መስከረም", "የመስከረም"}},
	{"Tikimt", []string{"ጥቅምት", "የጥቅምት", "ጥቅም", "የጥቅም"}},
	{"Hidar", []string{"ህዳር", "የህዳር", "የሕዳር", "ሕዳር"}},
	{"Tahsas", []string{"ታህሳስ", "የታህሳስ", "ታህሳ", "የታህሳ"}},
	{"Tir", []string{"ጥር", "የጥር"}},
	{"Yekatit", []string{"የካቲት", "የካት"}},
	{"Megabit", []string{"መጋቢት", "የመጋቢት", "መጋቢ", "የመጋቢ"}},
	{"Miyazya", []string{"ሚያዝያ", "የሚያዝያ", "ሚያዝ", "የሚያዝ"}},
	{"Ginbot", []string{"ግንቦት", "የግንቦት", "ግንቦ", "የግንቦ"}},
	{"Sene", []string{"ሰኔ", "የሰኔ"}},
	{"Hamle", []string{"ሐምሌ", "የሐምሌ"}},
	{"Nehase", []string{"ነሐሴ", "የነሐሴ"}},
	{"Pagume", []string{"ጳጉሜ", "የጳጉሜ"}},
}

// gregorianOrder fixes the scan order of the Gregorian pass; map iteration
// would pick an arbitrary winner when two month names appear.
var gregorianOrder = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// latinAliases covers common user misspellings of the Latin month names.
var latinAliases = map[string]string{
	"hedar": "Hidar",
}

// IsMonth reports whether name is a recognized Ethiopian month (Latin form).
func IsMonth(name string) bool {
	for _, m := range Months {
		if strings.EqualFold(m, name) {
			return true
		}
	}
	return false
}

// MonthIndex returns the zero-based calendar position of an Ethiopian month,
// or -1 when the name is not recognized.
func MonthIndex(name string) int {
	for i, m := range Months {
		if strings.EqualFold(m, name) {
			return i
		}
	}
	return -1
}

// MonthFromText scans free text for an Ethiopian month, an Amharic month
// name, or a Gregorian month and returns the Ethiopian month name. It mirrors
// the lookup priority of the extraction pipeline: an already-Ethiopian month
// wins over an Amharic spelling, which wins over a Gregorian conversion.
// Empty string means no month was found.
func MonthFromText(text string) string {
	if text == "" {
		return ""
	}
	lower := strings.ToLower(text)

	for _, m := range Months {
		if strings.Contains(lower, strings.ToLower(m)) {
			return m
		}
	}
	for alias, m := range latinAliases {
		if strings.Contains(lower, alias) {
			return m
		}
	}
	for _, entry := range amharicMonthTokens {
		for _, token := range entry.tokens {
			if strings.Contains(text, token) {
				return entry.month
			}
		}
	}
	for _, name := range gregorianOrder {
		if strings.Contains(lower, name) || strings.Contains(lower, name[:3]) {
			return gregorianEquivalents[name]
		}
	}
	return ""
}

// newYearDay returns the Gregorian day in September on which the Ethiopian
// new year falls for the given Gregorian year: September 12 when the
// following February has 29 days (i.e. the Gregorian year preceding a leap
// February), September 11 otherwise.
func newYearDay(gregorianYear int) int {
	next := gregorianYear + 1
	isLeap := next%4 == 0 && (next%100 != 0 || next%400 == 0)
	if isLeap {
		return 12
	}
	return 11
}

// Year converts a Gregorian date to the Ethiopian (Amete Mihret) year.
// Dates before the new-year boundary are eight years behind, dates on or
// after it are seven.
func Year(t time.Time) int {
	boundary := time.Date(t.Year(), time.September, newYearDay(t.Year()), 0, 0, 0, 0, t.Location())
	if t.Before(boundary) {
		return t.Year() - 8
	}
	return t.Year() - 7
}

// FromGregorian converts a Gregorian date to its Ethiopian month and year.
// The month is the month-level equivalent (the Ethiopian month covering most
// of the Gregorian one).
func FromGregorian(t time.Time) (month string, year int) {
	key := strings.ToLower(t.Month().String())
	return gregorianEquivalents[key], Year(t)
}

// Display formats a Gregorian date as "Month Year" in the Ethiopian
// calendar, e.g. "Hidar 2017".
func Display(t time.Time) string {
	m, y := FromGregorian(t)
	return fmt.Sprintf("%s %d", m, y)
}
