package tracker

import (
	"context"
	"dph-tracker/internal/chrono"
	"dph-tracker/internal/history"
	"dph-tracker/internal/telemetry"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	page Page
	err  error
}

func (s fakeSource) FetchPage(ctx context.Context) (Page, error) {
	return s.page, s.err
}

type fakePublisher struct {
	err     error
	updates *[]Update
}

func (p fakePublisher) Name() string {
	return "fake"
}

func (p fakePublisher) Publish(ctx context.Context, update Update) error {
	*p.updates = append(*p.updates, update)
	return p.err
}

var collectedAt = time.Date(2020, time.April, 2, 12, 20, 0, 0, chrono.LA())

var existing = []history.CountRecord{
	{Date: "04-01", Section: "laboratory confirmed cases", RowName: "los angeles county (excl. lb and pas)", Count: 3305},
}

func deathsPage() Page {
	return Page{
		Caption: "Locations and Demographics as of 4/2 12:00pm",
		Date:    "04-02",
		Pairs: []Pair{
			pair("deaths", "long beach"),
			pair("long beach", "3"),
			pair("pasadena", "1"),
		},
	}
}

func setupTracker(t *testing.T, source Source, publishers ...Publisher) (Tracker, history.CSVStore, telemetry.RecorderAPI) {
	tel := telemetry.NewRecorderAPI()
	store := history.NewCSVStore(t.TempDir(), tel)
	vocab := mustVocabulary(t, "deaths", "age group")
	tracker := NewTracker(source, store, vocab, chrono.FixedTime{Time: collectedAt}, tel, publishers...)
	return tracker, store, tel
}

func TestRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	var updates []Update
	tracker, store, _ := setupTracker(t, fakeSource{page: deathsPage()}, fakePublisher{updates: &updates})
	require.NoError(t, store.Commit(ctx, nil, existing))

	outcome, err := tracker.Run(ctx)
	require.NoError(t, err)
	require.True(t, outcome.Updated)
	require.Equal(t, history.ReportDate("04-02"), outcome.Date)
	require.Equal(t, history.ReportDate("04-01"), outcome.LatestKnown)
	require.Equal(t, []string{
		"L.A. County tracker updated with counts from 04-02.",
		"Collected at 2020-04-02 12:20:00",
	}, outcome.Status())

	expected := []history.CountRecord{
		{Date: "04-02", Section: "deaths", RowName: "long beach", Count: 3},
		{Date: "04-02", Section: "deaths", RowName: "pasadena", Count: 1},
		existing[0],
	}
	primary, err := store.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(expected, primary); diff != "" {
		t.Fatal(diff)
	}

	previous, err := store.LoadPrevious(ctx)
	require.NoError(t, err)
	require.Equal(t, existing, previous)

	last, err := store.LastUpdate(ctx)
	require.NoError(t, err)
	require.Equal(t, "2020-04-02 12:20:00", last)

	require.Len(t, updates, 1)
	require.Len(t, updates[0].Records, 2)
	require.Equal(t, expected, updates[0].History)
}

func TestRunIdempotent(t *testing.T) {
	ctx := context.Background()
	tracker, store, _ := setupTracker(t, fakeSource{page: deathsPage()})
	require.NoError(t, store.Commit(ctx, nil, existing))

	_, err := tracker.Run(ctx)
	require.NoError(t, err)

	primary, err := os.ReadFile(store.PrimaryPath())
	require.NoError(t, err)
	previous, err := os.ReadFile(store.PreviousPath())
	require.NoError(t, err)

	outcome, err := tracker.Run(ctx)
	require.NoError(t, err)
	require.False(t, outcome.Updated)
	require.Empty(t, outcome.Added)
	require.Equal(t, "2020-04-02 12:20:00", outcome.LastUpdate)
	require.Equal(t, []string{
		"Last update occurred at 2020-04-02 12:20:00",
		"No new LA County coronavirus count updates as of 2020-04-02 12:20:00",
	}, outcome.Status())

	primaryAfter, err := os.ReadFile(store.PrimaryPath())
	require.NoError(t, err)
	previousAfter, err := os.ReadFile(store.PreviousPath())
	require.NoError(t, err)
	require.Equal(t, string(primary), string(primaryAfter))
	require.Equal(t, string(previous), string(previousAfter))

	log, err := os.ReadFile(store.LogPath())
	require.NoError(t, err)
	require.Equal(t, "2020-04-02 12:20:00", string(log))
}

func TestRunStalePageWithoutLog(t *testing.T) {
	ctx := context.Background()
	page := deathsPage()
	page.Date = "04-01"
	tracker, store, _ := setupTracker(t, fakeSource{page: page})
	require.NoError(t, store.Commit(ctx, nil, existing))

	outcome, err := tracker.Run(ctx)
	require.NoError(t, err)
	require.False(t, outcome.Updated)
	require.Equal(t, []string{
		"No new LA County coronavirus count updates as of 2020-04-02 12:20:00",
	}, outcome.Status())
}

func TestRunFirstRun(t *testing.T) {
	ctx := context.Background()
	tracker, store, _ := setupTracker(t, fakeSource{page: deathsPage()})

	outcome, err := tracker.Run(ctx)
	require.NoError(t, err)
	require.True(t, outcome.Updated)
	require.Equal(t, history.NoDate, outcome.LatestKnown)

	previous, err := store.LoadPrevious(ctx)
	require.NoError(t, err)
	require.Empty(t, previous)

	primary, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, primary, 2)
}

func TestRunWithoutRecords(t *testing.T) {
	ctx := context.Background()
	page := Page{
		Caption: "Locations and Demographics as of 4/2 12:00pm",
		Date:    "04-02",
		Pairs:   []Pair{pair("layout changed", "n/a")},
	}
	var updates []Update
	tracker, store, tel := setupTracker(t, fakeSource{page: page}, fakePublisher{updates: &updates})
	require.NoError(t, store.Commit(ctx, nil, existing))
	require.NoError(t, store.RecordUpdate(ctx, collectedAt.Add(-24*time.Hour)))

	readAll := func() (string, string, string) {
		primary, err := os.ReadFile(store.PrimaryPath())
		require.NoError(t, err)
		previous, err := os.ReadFile(store.PreviousPath())
		require.NoError(t, err)
		log, err := os.ReadFile(store.LogPath())
		require.NoError(t, err)
		return string(primary), string(previous), string(log)
	}
	primary, previous, log := readAll()

	for i := 0; i < 2; i++ {
		outcome, err := tracker.Run(ctx)
		require.NoError(t, err)
		require.False(t, outcome.Updated)
		require.Empty(t, outcome.Added)
		require.Equal(t, []string{
			"Last update occurred at 2020-04-01 12:20:00",
			"No new LA County coronavirus count updates as of 2020-04-02 12:20:00",
		}, outcome.Status())

		primaryAfter, previousAfter, logAfter := readAll()
		require.Equal(t, primary, primaryAfter)
		require.Equal(t, previous, previousAfter)
		require.Equal(t, log, logAfter)
	}

	require.Empty(t, updates)
	require.True(t, tel.HasReport("warning", report_normalizer_no_rows))
}

func TestRunFetchFailure(t *testing.T) {
	ctx := context.Background()
	tracker, store, tel := setupTracker(t, fakeSource{err: errors.New("connection refused")})

	_, err := tracker.Run(ctx)
	require.ErrorContains(t, err, "connection refused")
	require.True(t, tel.HasReport("broken", report_tracker_run))

	_, err = os.Stat(store.PrimaryPath())
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(store.PreviousPath())
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(store.LogPath())
	require.True(t, os.IsNotExist(err))
}

func TestRunPublisherFailure(t *testing.T) {
	ctx := context.Background()
	var updates []Update
	tracker, store, tel := setupTracker(
		t,
		fakeSource{page: deathsPage()},
		fakePublisher{updates: &updates, err: errors.New("broker down")},
	)

	outcome, err := tracker.Run(ctx)
	require.NoError(t, err)
	require.True(t, outcome.Updated)
	require.Len(t, updates, 1)
	require.True(t, tel.HasReport("warning", report_tracker_publish))

	primary, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, primary, 2)
}

func TestRunReportsMissingHeader(t *testing.T) {
	tracker, _, tel := setupTracker(t, fakeSource{page: deathsPage()})

	outcome, err := tracker.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"age group"}, outcome.Classification.Missing)
	require.True(t, tel.HasReport("warning", report_classifier_missing_header))
}
