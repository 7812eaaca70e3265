package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ems-analytics-be/pkg/refine/scope"
)

// Normalizer converts relative and absolute time phrases into explicit
// calendar ranges. All ranges are closed-open and calendar-aligned;
// nothing here is ever a rolling window relative to "now".
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

var (
	lastNMonthsPattern   = regexp.MustCompile(`\blast\s+(\d+)\s+months?\b`)
	fiscalYearPattern    = regexp.MustCompile(`\b(?:fy|fiscal year)\s*(\d{4})(?:\s*[-/]\s*(\d{2,4}))?`)
	monthYearPattern     = regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december)\b(?:\s+(\d{4}))?`)
	lastMonthNamePattern = regexp.MustCompile(`\blast\s+(january|february|march|april|may|june|july|august|september|october|november|december)\b`)
	mayMonthCuePattern   = regexp.MustCompile(`\b(in|for|during|of|since|until|till|before|after)\s+may\b`)
)

var monthsByName = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// Normalize resolves a time phrase found in the turn text against the
// reference date. Returns nil when the text contains no recognizable
// time phrase, which means "all time", not an error.
func (n *Normalizer) Normalize(text string, today time.Time) *scope.TimeFilter {
	lower := strings.ToLower(text)
	firstOfThisMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	// "last N months" must win over "last month" for N > 1.
	if m := lastNMonthsPattern.FindStringSubmatch(lower); m != nil {
		count, err := strconv.Atoi(m[1])
		if err == nil && count > 0 {
			start := firstOfThisMonth.AddDate(0, -count, 0)
			return &scope.TimeFilter{
				Start:        start,
				EndExclusive: firstOfThisMonth,
				Label:        fmt.Sprintf("last %d months (%s to %s)", count, start.Format("January 2006"), firstOfThisMonth.AddDate(0, -1, 0).Format("January 2006")),
			}
		}
	}

	if strings.Contains(lower, "last month") || strings.Contains(lower, "previous month") {
		start := firstOfThisMonth.AddDate(0, -1, 0)
		return &scope.TimeFilter{
			Start:        start,
			EndExclusive: firstOfThisMonth,
			Label:        "last month (" + start.Format("January 2006") + ")",
		}
	}

	if strings.Contains(lower, "this month") || strings.Contains(lower, "current month") {
		return &scope.TimeFilter{
			Start:        firstOfThisMonth,
			EndExclusive: midnight.AddDate(0, 0, 1),
			Label:        "this month (" + today.Format("January 2006") + ")",
		}
	}

	if strings.Contains(lower, "this year") || strings.Contains(lower, "current year") {
		start := time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, today.Location())
		return &scope.TimeFilter{
			Start:        start,
			EndExclusive: midnight.AddDate(0, 0, 1),
			Label:        "this year (" + strconv.Itoa(today.Year()) + ")",
		}
	}

	if strings.Contains(lower, "yesterday") {
		start := midnight.AddDate(0, 0, -1)
		return &scope.TimeFilter{
			Start:        start,
			EndExclusive: midnight,
			Label:        "yesterday (" + start.Format("2 January 2006") + ")",
		}
	}

	if strings.Contains(lower, "today") {
		return &scope.TimeFilter{
			Start:        midnight,
			EndExclusive: midnight.AddDate(0, 0, 1),
			Label:        "today (" + midnight.Format("2 January 2006") + ")",
		}
	}

	if m := fiscalYearPattern.FindStringSubmatch(lower); m != nil {
		startYear, err := strconv.Atoi(m[1])
		if err == nil {
			// Fiscal year runs April 1 through March 31.
			start := time.Date(startYear, time.April, 1, 0, 0, 0, 0, today.Location())
			return &scope.TimeFilter{
				Start:        start,
				EndExclusive: start.AddDate(1, 0, 0),
				Label:        fmt.Sprintf("fiscal year %d-%02d", startYear, (startYear+1)%100),
			}
		}
	}

	// "last <month>" means that month of the previous year.
	if m := lastMonthNamePattern.FindStringSubmatch(lower); m != nil {
		month := monthsByName[m[1]]
		start := time.Date(today.Year()-1, month, 1, 0, 0, 0, 0, today.Location())
		return &scope.TimeFilter{
			Start:        start,
			EndExclusive: start.AddDate(0, 1, 0),
			Label:        start.Format("January 2006"),
		}
	}

	// Named month, current year unless a year is stated.
	if m := monthYearPattern.FindStringSubmatch(lower); m != nil {
		// The modal verb "may" only reads as the month when a year or a
		// preposition cue ("in may", "for may") anchors it.
		if m[1] == "may" && m[2] == "" && !mayMonthCuePattern.MatchString(lower) {
			return nil
		}
		month := monthsByName[m[1]]
		year := today.Year()
		if m[2] != "" {
			if y, err := strconv.Atoi(m[2]); err == nil {
				year = y
			}
		}
		start := time.Date(year, month, 1, 0, 0, 0, 0, today.Location())
		return &scope.TimeFilter{
			Start:        start,
			EndExclusive: start.AddDate(0, 1, 0),
			Label:        start.Format("January 2006"),
		}
	}

	return nil
}

// HasTimePhrase reports whether the text contains any phrase Normalize
// would resolve, without building the filter.
func (n *Normalizer) HasTimePhrase(text string, today time.Time) bool {
	return n.Normalize(text, today) != nil
}
