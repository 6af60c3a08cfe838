package tracker

import "dph-tracker/internal/history"

// IsFresh checks if the date is newer than everything in the history, an
// empty history accepts any date.
func IsFresh(date history.ReportDate, records []history.CountRecord) bool {
	return date > history.MaxDate(records)
}
