package telemetry

import (
	"strings"
	"sync"
)

// Report is a single call made against a RecorderAPI.
type Report struct {
	Kind   string
	ID     string
	Params []any
}

// RecorderAPI keeps every report in memory so tests can assert on what a
// component reported. Reports are also forwarded to Inner when it is set.
type RecorderAPI struct {
	Inner API

	mutex   *sync.Mutex
	reports *[]Report
}

func NewRecorderAPI() RecorderAPI {
	return RecorderAPI{
		mutex:   &sync.Mutex{},
		reports: &[]Report{},
	}
}

func (r RecorderAPI) record(kind, id string, params []any) {
	r.mutex.Lock()
	*r.reports = append(*r.reports, Report{Kind: kind, ID: id, Params: params})
	r.mutex.Unlock()
}

func (r RecorderAPI) ReportBroken(id string, params ...any) {
	r.record("broken", id, params)
	if r.Inner != nil {
		r.Inner.ReportBroken(id, params...)
	}
}

func (r RecorderAPI) ReportWarning(id string, params ...any) {
	r.record("warning", id, params)
	if r.Inner != nil {
		r.Inner.ReportWarning(id, params...)
	}
}

func (r RecorderAPI) ReportDebug(msg string, params ...any) {
	r.record("debug", msg, params)
	if r.Inner != nil {
		r.Inner.ReportDebug(msg, params...)
	}
}

func (r RecorderAPI) ReportCount(id string, count int64) {
	r.record("count", id, []any{count})
	if r.Inner != nil {
		r.Inner.ReportCount(id, count)
	}
}

// Reports returns a copy of the reports of the given kind ("broken", "warning",
// "debug", "count"), an empty kind returns everything.
func (r RecorderAPI) Reports(kind string) []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out []Report
	for _, report := range *r.reports {
		if kind == "" || report.Kind == kind {
			out = append(out, report)
		}
	}
	return out
}

// HasReport checks if a report of the given kind was made with an id
// containing `substr`.
func (r RecorderAPI) HasReport(kind, substr string) bool {
	for _, report := range r.Reports(kind) {
		if strings.Contains(report.ID, substr) {
			return true
		}
	}
	return false
}
