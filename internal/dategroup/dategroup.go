// Package dategroup turns a flat list of diary entries into the date-bucketed,
// newest-first structure the UI renders.
//
// Everything in here is a pure function: no I/O, no state, no error returns.
// The caller recomputes the grouping from the current entry list on every
// render — groupings are derived data and are never stored anywhere.
//
// WHY STRING DATES?
// Entry dates are ISO "YYYY-MM-DD" strings. For that exact format, plain
// lexicographic comparison IS chronological comparison ("2024-03-10" >
// "2024-01-05" both as strings and as dates), so sorting group keys needs
// no time parsing at all.
package dategroup

import (
	"sort"
	"time"

	"github.com/mshiraki/hibi/internal/model"
)

// GroupByDate partitions entries into buckets keyed by their exact Date value.
//
// Guarantees:
//   - lossless: every input entry lands in exactly one bucket
//   - stable: entries within a bucket keep their input order
//   - empty input yields an empty (non-nil) map
func GroupByDate(entries []model.Entry) map[string][]model.Entry {
	groups := make(map[string][]model.Entry, len(entries))
	for _, e := range entries {
		groups[e.Date] = append(groups[e.Date], e)
	}
	return groups
}

// SortedDates returns the group keys in descending order — newest date first.
// Keys are unique (they're map keys), so ties are impossible.
func SortedDates(groups map[string][]model.Entry) []string {
	dates := make([]string, 0, len(groups))
	for d := range groups {
		dates = append(dates, d)
	}
	// sort.Slice with > gives descending order. For ISO date strings this is
	// reverse-chronological.
	sort.Slice(dates, func(i, j int) bool { return dates[i] > dates[j] })
	return dates
}

// FormatForDisplay renders an ISO date as a long-form label for group
// headings, e.g. "2024-03-10" → "March 10, 2024".
//
// Deliberately NOT hardened: a malformed date is returned unchanged rather
// than reported as an error. Dates are validated at save time, so anything
// malformed here came from outside the app and is only a cosmetic problem.
func FormatForDisplay(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("January 2, 2006")
}
