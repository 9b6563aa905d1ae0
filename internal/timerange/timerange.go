// Package timerange turns spoken time references ("last month", "march",
// "2024") into inclusive calendar date ranges.
package timerange

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Range is an inclusive date range. A nil bound is open on that side; both
// nil means no time constraint was recognised.
type Range struct {
	Start *civil.Date
	End   *civil.Date
}

// IsZero reports whether the range carries no constraint
func (r Range) IsZero() bool {
	return r.Start == nil && r.End == nil
}

var yearPattern = regexp.MustCompile(`20\d\d`)

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// Resolve maps phrase to a range relative to today. It never consults the
// wall clock. Unrecognised phrases resolve to the zero Range.
func Resolve(phrase string, today civil.Date) Range {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return Range{}
	}

	switch phrase {
	case "this month", "current month":
		return monthRange(today.Year, today.Month)
	case "last month", "previous month":
		lastOfPrevious := civil.Date{Year: today.Year, Month: today.Month, Day: 1}.AddDays(-1)
		return monthRange(lastOfPrevious.Year, lastOfPrevious.Month)
	case "this year", "current year":
		return yearRange(today.Year)
	case "last year", "previous year":
		return yearRange(today.Year - 1)
	}

	for i, name := range monthNames {
		if !strings.Contains(phrase, name) {
			continue
		}
		month := time.Month(i + 1)
		year := today.Year
		// "december" asked in january means the december just gone
		if month > today.Month {
			year--
		}
		return monthRange(year, month)
	}

	if m := yearPattern.FindString(phrase); m != "" {
		year, _ := strconv.Atoi(m)
		return yearRange(year)
	}

	return Range{}
}

func monthRange(year int, month time.Month) Range {
	start := civil.Date{Year: year, Month: month, Day: 1}
	next := civil.Date{Year: year, Month: month + 1, Day: 1}
	if month == time.December {
		next = civil.Date{Year: year + 1, Month: time.January, Day: 1}
	}
	end := next.AddDays(-1)
	return Range{Start: &start, End: &end}
}

func yearRange(year int) Range {
	start := civil.Date{Year: year, Month: time.January, Day: 1}
	end := civil.Date{Year: year, Month: time.December, Day: 31}
	return Range{Start: &start, End: &end}
}
