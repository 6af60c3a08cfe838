package history

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDate(t *testing.T) {
	table := []struct {
		input    string
		expected ReportDate
		err      bool
	}{
		{input: "3-9", expected: "03-09"},
		{input: "03-09", expected: "03-09"},
		{input: "4/2", expected: "04-02"},
		{input: "12-31", expected: "12-31"},
		{input: " 4 - 1 ", expected: "04-01"},
		{input: "13-01", err: true},
		{input: "04-32", err: true},
		{input: "0-5", err: true},
		{input: "april-5", err: true},
		{input: "405", err: true},
		{input: "", err: true},
	}

	for _, test := range table {
		date, err := NormalizeDate(test.input)
		if test.err {
			require.Error(t, err, test.input)
			continue
		}
		require.NoError(t, err, test.input)
		require.Equal(t, test.expected, date)
	}
}

func TestZeroPadOrdering(t *testing.T) {
	// without padding "3-05" > "3-9" lexically
	require.Greater(t, "3-9", "3-05")

	a, err := NormalizeDate("3-05")
	require.NoError(t, err)
	b, err := NormalizeDate("3-9")
	require.NoError(t, err)
	require.Equal(t, ReportDate("03-05"), a)
	require.Equal(t, ReportDate("03-09"), b)
	require.Less(t, a, b)
}

func TestMaxDate(t *testing.T) {
	require.Equal(t, NoDate, MaxDate(nil))

	records := []CountRecord{
		{Date: "03-30", Section: "deaths", RowName: "long beach", Count: 1},
		{Date: "04-02", Section: "deaths", RowName: "pasadena", Count: 1},
		{Date: "04-01", Section: "deaths", RowName: "pasadena", Count: 1},
	}
	require.Equal(t, ReportDate("04-02"), MaxDate(records))
	require.Equal(t, []ReportDate{"03-30", "04-01", "04-02"}, Dates(records))
	require.Len(t, OnDate(records, "04-01"), 1)
}

func TestMerge(t *testing.T) {
	old := []CountRecord{
		{Date: "04-01", Section: "laboratory confirmed cases", RowName: "los angeles county (excl. lb and pas)", Count: 3305},
		{Date: "04-01", Section: "deaths", RowName: "long beach", Count: 2},
	}
	fresh := []CountRecord{
		{Date: "04-02", Section: "deaths", RowName: "pasadena", Count: 1},
		{Date: "04-02", Section: "deaths", RowName: "long beach", Count: 3},
	}
	oldCopy := append([]CountRecord(nil), old...)
	freshCopy := append([]CountRecord(nil), fresh...)

	merged := Merge(old, fresh)

	expected := []CountRecord{
		{Date: "04-01", Section: "deaths", RowName: "long beach", Count: 2},
		{Date: "04-02", Section: "deaths", RowName: "long beach", Count: 3},
		{Date: "04-02", Section: "deaths", RowName: "pasadena", Count: 1},
		{Date: "04-01", Section: "laboratory confirmed cases", RowName: "los angeles county (excl. lb and pas)", Count: 3305},
	}
	if diff := cmp.Diff(expected, merged); diff != "" {
		t.Fatal(diff)
	}

	// inputs are left alone
	require.Equal(t, oldCopy, old)
	require.Equal(t, freshCopy, fresh)
}

func TestMergeKeepsDuplicates(t *testing.T) {
	dup := CountRecord{Date: "04-02", Section: "gender", RowName: "other", Count: 4}
	merged := Merge(nil, []CountRecord{dup, dup})
	require.Len(t, merged, 2)
}
