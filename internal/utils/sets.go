package utils

import (
	"sort"
	"strings"
	"time"
)

// DayLayout is the calendar-day format used for records and per-day keys.
const DayLayout = "2006-01-02"

// Day returns the calendar day of t in loc as YYYY-MM-DD.
func Day(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}

// ParseSet splits a comma-delimited value into a set. Blank items are skipped.
//
// Example:
//
//	s := utils.ParseSet("a, b,,c") // {a, b, c}
func ParseSet(v string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out[p] = struct{}{}
		}
	}
	return out
}

// FormatSet joins a set into a sorted comma-delimited value so the stored
// form is stable across runs.
func FormatSet(s map[string]struct{}) string {
	items := make([]string, 0, len(s))
	for k := range s {
		items = append(items, k)
	}
	sort.Strings(items)
	return strings.Join(items, ",")
}
