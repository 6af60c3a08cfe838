package history

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ReportDate identifies the day a snapshot of counts belongs to, formatted as
// MM-DD. The county only publishes month and day so the year is implicit.
//
// Both parts are always zero-padded, which makes lexical order the same as
// calendar order within a year.
type ReportDate string

// NoDate sorts before every real ReportDate.
const NoDate ReportDate = ""

func padDatePart(part string, max int) (string, error) {
	part = strings.TrimSpace(part)
	if part == "" || len(part) > 2 {
		return "", fmt.Errorf("invalid date part '%s'", part)
	}
	n, err := strconv.Atoi(part)
	if err != nil || n < 1 || n > max {
		return "", fmt.Errorf("invalid date part '%s'", part)
	}
	return fmt.Sprintf("%02d", n), nil
}

// NormalizeDate parses "M-D", "MM-DD" or "M/D" into a zero-padded ReportDate.
func NormalizeDate(raw string) (ReportDate, error) {
	sep := "-"
	if !strings.Contains(raw, sep) {
		sep = "/"
	}
	month, day, ok := strings.Cut(raw, sep)
	if !ok {
		return NoDate, fmt.Errorf("invalid report date '%s'", raw)
	}
	month, err := padDatePart(month, 12)
	if err != nil {
		return NoDate, fmt.Errorf("invalid report date '%s': %w", raw, err)
	}
	day, err = padDatePart(day, 31)
	if err != nil {
		return NoDate, fmt.Errorf("invalid report date '%s': %w", raw, err)
	}
	return ReportDate(month + "-" + day), nil
}

// CountRecord is a single counter of a single report date.
type CountRecord struct {
	Date    ReportDate
	Section string
	RowName string
	Count   int
}

func (r CountRecord) String() string {
	return fmt.Sprintf("%s %s/%s=%d", r.Date, r.Section, r.RowName, r.Count)
}

// MaxDate returns the most recent date in the table or NoDate if it is empty.
func MaxDate(records []CountRecord) ReportDate {
	max := NoDate
	for _, r := range records {
		if r.Date > max {
			max = r.Date
		}
	}
	return max
}

// Dates returns the distinct dates in the table, ascending.
func Dates(records []CountRecord) []ReportDate {
	var dates []ReportDate
	for _, r := range records {
		if !slices.Contains(dates, r.Date) {
			dates = append(dates, r.Date)
		}
	}
	slices.Sort(dates)
	return dates
}

// OnDate returns the records reported on the given date, in table order.
func OnDate(records []CountRecord, date ReportDate) []CountRecord {
	var out []CountRecord
	for _, r := range records {
		if r.Date == date {
			out = append(out, r)
		}
	}
	return out
}

// Compare orders records by section, row name, then date.
func Compare(a, b CountRecord) int {
	if c := strings.Compare(a.Section, b.Section); c != 0 {
		return c
	}
	if c := strings.Compare(a.RowName, b.RowName); c != 0 {
		return c
	}
	return strings.Compare(string(a.Date), string(b.Date))
}

// Merge returns a new table holding every record of `old` and `fresh`, sorted
// with Compare. Neither input is modified.
func Merge(old, fresh []CountRecord) []CountRecord {
	merged := make([]CountRecord, 0, len(old)+len(fresh))
	merged = append(merged, old...)
	merged = append(merged, fresh...)
	slices.SortStableFunc(merged, Compare)
	return merged
}
