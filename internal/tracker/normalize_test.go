package tracker

import (
	"dph-tracker/internal/history"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCount(t *testing.T) {
	table := []struct {
		input    string
		expected int
		ok       bool
	}{
		{input: "57", expected: 57, ok: true},
		{input: " 57 ", expected: 57, ok: true},
		{input: "57*", expected: 57, ok: true},
		{input: "--", expected: 0, ok: true},
		{input: "0", expected: 0, ok: true},
		// thousands separators are not supported, such rows are dropped
		{input: "1,234*", ok: false},
		{input: "1,234", ok: false},
		{input: "", ok: false},
		{input: "*", ok: false},
		{input: "-5", ok: false},
		{input: "n/a", ok: false},
		{input: "12.5", ok: false},
		{input: "99999999999999999999999", ok: false},
	}

	for _, test := range table {
		count, ok := ParseCount(test.input)
		require.Equal(t, test.ok, ok, test.input)
		if test.ok {
			require.Equal(t, test.expected, count, test.input)
		}
	}
}

func TestCleanLabel(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "Long Beach", expected: "long beach"},
		{input: "- Long Beach*", expected: "long beach"},
		{input: "  -- city of burbank", expected: "city of burbank"},
		{input: "Under Investigation**", expected: "under investigation"},
		{input: "0-17", expected: "0-17"},
	}

	for _, test := range table {
		require.Equal(t, test.expected, CleanLabel(test.input))
	}
}

func TestNormalize(t *testing.T) {
	rows := []Row{
		row("deaths", "- Long Beach*", "57"),
		row("deaths", "pasadena", "--"),
		row("deaths", "glendale", "1,234*"),
		row("deaths", "x", "3"),
		row("deaths", "*", "3"),
		row("deaths", "deaths", "12"),
		row("deaths", "deaths (total)", "12"),
		row("city / community", "city of burbank", "31*"),
		row("under investigation", "under investigation", "9"),
		{Section: "under investigation", Label: "trailing"},
	}
	original := append([]Row(nil), rows...)

	records, rejected := Normalize("04-02", rows, "under investigation")

	require.Equal(t, []history.CountRecord{
		{Date: "04-02", Section: "deaths", RowName: "long beach", Count: 57},
		{Date: "04-02", Section: "deaths", RowName: "pasadena", Count: 0},
		{Date: "04-02", Section: "city/community", RowName: "city of burbank", Count: 31},
		{Date: "04-02", Section: "under investigation", RowName: "under investigation", Count: 9},
	}, records)

	reasons := []RejectReason{}
	for _, r := range rejected {
		reasons = append(reasons, r.Reason)
	}
	require.Equal(t, []RejectReason{
		RejectNonNumeric,
		RejectShortLabel,
		RejectShortLabel,
		RejectSectionName,
		RejectSectionName,
		RejectNoCount,
	}, reasons)

	require.Equal(t, original, rows)
}

func TestNormalizeSpacedSectionName(t *testing.T) {
	rows := []Row{
		row("city/community", "City / Community Total", "1200"),
		row("city/community", "city of burbank", "31"),
	}

	records, rejected := Normalize("04-02", rows, "under investigation")
	require.Equal(t, []history.CountRecord{
		{Date: "04-02", Section: "city/community", RowName: "city of burbank", Count: 31},
	}, records)
	require.Len(t, rejected, 1)
	require.Equal(t, RejectSectionName, rejected[0].Reason)
}

func TestIsFresh(t *testing.T) {
	records := []history.CountRecord{
		{Date: "03-09", Section: "deaths", RowName: "long beach", Count: 1},
		{Date: "03-05", Section: "deaths", RowName: "long beach", Count: 1},
	}

	require.True(t, IsFresh("03-10", records))
	require.False(t, IsFresh("03-09", records))
	require.False(t, IsFresh("03-05", records))
	require.True(t, IsFresh("01-01", nil))

	date, err := history.NormalizeDate("3-9")
	require.NoError(t, err)
	require.False(t, IsFresh(date, records))
}
