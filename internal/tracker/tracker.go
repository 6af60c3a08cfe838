package tracker

import (
	"context"
	"dph-tracker/internal/chrono"
	"dph-tracker/internal/history"
	"dph-tracker/internal/telemetry"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("dph-tracker.internal.tracker")

const (
	report_tracker_run        = "tracker.run"
	report_tracker_update_log = "tracker.update-log"
	report_tracker_publish    = "tracker.publish"
	report_normalizer_reject  = "normalizer.reject"
	report_normalizer_dup     = "normalizer.duplicate-record"
	report_normalizer_no_rows = "normalizer.no-records"
)

// Page is what the county page boils down to: the date of its numbers and the
// candidate pairs of its table, in document order.
type Page struct {
	Caption string
	Date    history.ReportDate
	Pairs   []Pair
}

// Source fetches the current county page.
type Source interface {
	FetchPage(ctx context.Context) (Page, error)
}

// Update is handed to every Publisher after the history was committed.
type Update struct {
	Date        history.ReportDate
	Records     []history.CountRecord
	History     []history.CountRecord
	CollectedAt time.Time
}

// Publisher forwards a committed update somewhere else, failing to publish
// does not fail the run.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, update Update) error
}

// Outcome describes what a run did.
type Outcome struct {
	Updated     bool
	Date        history.ReportDate
	LatestKnown history.ReportDate
	CollectedAt time.Time
	// LastUpdate is the newest entry of the update log, only set when nothing
	// was updated.
	LastUpdate string

	Added          []history.CountRecord
	Classification Classification
	Rejected       []Rejection
}

// Status renders the outcome as the lines printed at the end of a run.
func (o Outcome) Status() []string {
	at := chrono.FormatLog(o.CollectedAt)
	if o.Updated {
		return []string{
			fmt.Sprintf("L.A. County tracker updated with counts from %s.", o.Date),
			fmt.Sprintf("Collected at %s", at),
		}
	}
	var lines []string
	if o.LastUpdate != "" {
		lines = append(lines, fmt.Sprintf("Last update occurred at %s", o.LastUpdate))
	}
	return append(lines, fmt.Sprintf("No new LA County coronavirus count updates as of %s", at))
}

type Tracker struct {
	source     Source
	store      history.Store
	vocab      Vocabulary
	publishers []Publisher
	time       chrono.TimeAPI
	tel        telemetry.API
}

func NewTracker(
	source Source,
	store history.Store,
	vocab Vocabulary,
	time chrono.TimeAPI,
	tel telemetry.API,
	publishers ...Publisher,
) Tracker {
	return Tracker{
		source:     source,
		store:      store,
		vocab:      vocab,
		publishers: publishers,
		time:       time,
		tel:        telemetry.NewScopedAPI("tracker", tel),
	}
}

// Run performs a single fetch-parse-merge cycle. Nothing is written unless the
// page holds a date newer than the history and at least one record of it
// survives normalization. A failure to load the history,
// fetch the page or commit the merge is returned as an error, anything else
// is only reported.
func (t Tracker) Run(ctx context.Context) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	old, err := t.store.Load(ctx)
	if err != nil {
		err = fmt.Errorf("load history: %w", err)
		t.tel.ReportBroken(report_tracker_run, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load history")
		return Outcome{}, err
	}

	page, err := t.source.FetchPage(ctx)
	if err != nil {
		err = fmt.Errorf("fetch page: %w", err)
		t.tel.ReportBroken(report_tracker_run, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch page")
		return Outcome{}, err
	}

	outcome := Outcome{
		Date:        page.Date,
		LatestKnown: history.MaxDate(old),
		CollectedAt: t.time.Now(),
	}
	span.SetAttributes(
		attribute.String("date", string(page.Date)),
		attribute.String("latest_known", string(outcome.LatestKnown)),
	)

	if !IsFresh(page.Date, old) {
		lastUpdate, err := t.store.LastUpdate(ctx)
		if err != nil {
			t.tel.ReportWarning(report_tracker_update_log, err)
		}
		outcome.LastUpdate = lastUpdate
		t.tel.ReportDebug("no new date", page.Date, outcome.LatestKnown)
		return outcome, nil
	}

	outcome.Classification = Classify(t.vocab, page.Pairs, t.tel)
	outcome.Added, outcome.Rejected = Normalize(page.Date, outcome.Classification.Rows, t.vocab.Final())
	t.reportNormalized(outcome)
	if len(outcome.Added) == 0 {
		lastUpdate, err := t.store.LastUpdate(ctx)
		if err != nil {
			t.tel.ReportWarning(report_tracker_update_log, err)
		}
		outcome.LastUpdate = lastUpdate
		return outcome, nil
	}

	merged := history.Merge(old, outcome.Added)
	err = t.store.Commit(ctx, old, merged)
	if err != nil {
		err = fmt.Errorf("commit history: %w", err)
		t.tel.ReportBroken(report_tracker_run, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to commit history")
		return Outcome{}, err
	}
	outcome.Updated = true

	err = t.store.RecordUpdate(ctx, outcome.CollectedAt)
	if err != nil {
		t.tel.ReportWarning(report_tracker_update_log, err)
	}

	update := Update{
		Date:        page.Date,
		Records:     outcome.Added,
		History:     merged,
		CollectedAt: outcome.CollectedAt,
	}
	for _, p := range t.publishers {
		err := p.Publish(ctx, update)
		if err != nil {
			t.tel.ReportWarning(report_tracker_publish, p.Name(), err)
		}
	}

	return outcome, nil
}

func (t Tracker) reportNormalized(outcome Outcome) {
	for _, r := range outcome.Rejected {
		t.tel.ReportDebug(report_normalizer_reject, string(r.Reason), r.Row.Section, r.Row.Label, r.Row.Count)
	}

	type recordKey struct {
		section string
		rowName string
	}
	seen := map[recordKey]struct{}{}
	for _, r := range outcome.Added {
		key := recordKey{section: r.Section, rowName: r.RowName}
		if _, ok := seen[key]; ok {
			t.tel.ReportWarning(report_normalizer_dup, r.Section, r.RowName)
			continue
		}
		seen[key] = struct{}{}
	}

	if len(outcome.Added) == 0 {
		t.tel.ReportWarning(report_normalizer_no_rows, outcome.Date)
	}
	t.tel.ReportCount("records.added", int64(len(outcome.Added)))
	t.tel.ReportCount("records.rejected", int64(len(outcome.Rejected)))
}
