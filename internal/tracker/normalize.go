package tracker

import (
	"dph-tracker/internal/history"
	"strconv"
	"strings"
	"unicode/utf8"
)

type RejectReason string

const (
	RejectNoCount     RejectReason = "no count"
	RejectShortLabel  RejectReason = "short label"
	RejectNonNumeric  RejectReason = "non-numeric count"
	RejectSectionName RejectReason = "restates section"
)

// Rejection is a classified row that did not make it into the history.
type Rejection struct {
	Row    Row
	Reason RejectReason
}

// placeholder the county uses for "none"
const zeroPlaceholder = "--"

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// CleanLabel lower-cases a label and strips footnote markers and sub-item
// prefixes, "- Long Beach*" -> "long beach".
func CleanLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	label = strings.ReplaceAll(label, "*", "")
	label = strings.TrimLeft(label, "- ")
	return strings.TrimSpace(label)
}

// ParseCount turns the text of a count cell into a number. Thousands
// separators are not understood, "1,234" is not a count.
func ParseCount(count string) (int, bool) {
	count = strings.TrimSpace(count)
	if count == zeroPlaceholder {
		return 0, true
	}
	count = strings.ReplaceAll(count, "*", "")
	if !isDigits(count) {
		return 0, false
	}
	n, err := strconv.Atoi(count)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Normalize turns classified rows into records of the given date. Rows that
// don't hold a usable count, or that only repeat the name of their section,
// are rejected. Rows of the final section may contain its name.
func Normalize(date history.ReportDate, rows []Row, finalSection string) ([]history.CountRecord, []Rejection) {
	finalSection = NormalizeSectionName(finalSection)

	records := make([]history.CountRecord, 0, len(rows))
	var rejected []Rejection
	reject := func(r Row, reason RejectReason) {
		rejected = append(rejected, Rejection{Row: r, Reason: reason})
	}

	for _, r := range rows {
		if !r.HasCount {
			reject(r, RejectNoCount)
			continue
		}
		if utf8.RuneCountInString(strings.TrimSpace(r.Label)) <= 1 {
			reject(r, RejectShortLabel)
			continue
		}

		section := NormalizeSectionName(r.Section)
		label := CleanLabel(r.Label)
		if label == "" {
			reject(r, RejectShortLabel)
			continue
		}

		count, ok := ParseCount(r.Count)
		if !ok {
			reject(r, RejectNonNumeric)
			continue
		}
		if section != finalSection && strings.Contains(NormalizeSectionName(label), section) {
			reject(r, RejectSectionName)
			continue
		}

		records = append(records, history.CountRecord{
			Date:    date,
			Section: section,
			RowName: label,
			Count:   count,
		})
	}

	return records, rejected
}
