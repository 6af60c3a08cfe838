package history

import (
	"context"
	"dph-tracker/internal/chrono"
	"dph-tracker/internal/telemetry"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	PrimaryFile  = "county_coronavirus_tracking.csv"
	PreviousFile = "county_coronavirus_tracking_yesterday.csv"
	UpdateLog    = "last_update_time.txt"
)

const (
	report_csv_load   = "csv.load"
	report_csv_commit = "csv.commit"
	report_csv_log    = "csv.update-log"
)

var columns = []string{"date", "section", "row_name", "count"}

// CSVStore keeps the history as csv files in a single directory.
type CSVStore struct {
	dir string
	tel telemetry.API
}

func NewCSVStore(dir string, tel telemetry.API) CSVStore {
	return CSVStore{
		dir: dir,
		tel: telemetry.NewScopedAPI("history", tel),
	}
}

func (s CSVStore) PrimaryPath() string {
	return filepath.Join(s.dir, PrimaryFile)
}

func (s CSVStore) PreviousPath() string {
	return filepath.Join(s.dir, PreviousFile)
}

func (s CSVStore) LogPath() string {
	return filepath.Join(s.dir, UpdateLog)
}

func (s CSVStore) Load(ctx context.Context) ([]CountRecord, error) {
	records, err := ReadCSVFile(s.PrimaryPath())
	if errors.Is(err, os.ErrNotExist) {
		s.tel.ReportWarning(report_csv_load, "history file does not exist, starting empty", s.PrimaryPath())
		return nil, nil
	}
	if err != nil {
		s.tel.ReportBroken(report_csv_load, err, s.PrimaryPath())
		return nil, err
	}
	return records, nil
}

func (s CSVStore) LoadPrevious(ctx context.Context) ([]CountRecord, error) {
	records, err := ReadCSVFile(s.PreviousPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return records, err
}

func (s CSVStore) Commit(ctx context.Context, previous, merged []CountRecord) error {
	err := os.MkdirAll(s.dir, 0777)
	if err != nil {
		s.tel.ReportBroken(report_csv_commit, err, s.dir)
		return err
	}

	err = writeFileAtomic(s.PreviousPath(), func(w io.Writer) error {
		return WriteCSV(w, previous)
	})
	if err != nil {
		s.tel.ReportBroken(report_csv_commit, fmt.Errorf("write previous: %w", err))
		return err
	}

	err = writeFileAtomic(s.PrimaryPath(), func(w io.Writer) error {
		return WriteCSV(w, merged)
	})
	if err != nil {
		s.tel.ReportBroken(report_csv_commit, fmt.Errorf("write primary: %w", err))
		return err
	}

	s.tel.ReportCount("history.records", int64(len(merged)))
	return nil
}

func (s CSVStore) LastUpdate(ctx context.Context) (string, error) {
	contents, err := os.ReadFile(s.LogPath())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	first, _, _ := strings.Cut(string(contents), "\n")
	return strings.TrimSpace(first), nil
}

func (s CSVStore) RecordUpdate(ctx context.Context, at time.Time) error {
	stamp := chrono.FormatLog(at)

	existing, err := os.ReadFile(s.LogPath())
	if err != nil && !os.IsNotExist(err) {
		s.tel.ReportBroken(report_csv_log, err)
		return err
	}

	contents := stamp
	if len(existing) > 0 {
		contents = stamp + "\n" + string(existing)
	}
	err = writeFileAtomic(s.LogPath(), func(w io.Writer) error {
		_, err := io.WriteString(w, contents)
		return err
	})
	if err != nil {
		s.tel.ReportBroken(report_csv_log, err)
	}
	return err
}

// writeFileAtomic writes to a temporary file next to `path` and renames it
// over `path` once fully written.
func writeFileAtomic(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	err = write(tmp)
	if err != nil {
		tmp.Close()
		return err
	}
	err = tmp.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// WriteCSV writes the table with a `date,section,row_name,count` header.
func WriteCSV(w io.Writer, records []CountRecord) error {
	writer := csv.NewWriter(w)
	err := writer.Write(columns)
	if err != nil {
		return err
	}
	for _, r := range records {
		err = writer.Write([]string{
			string(r.Date),
			r.Section,
			r.RowName,
			strconv.Itoa(r.Count),
		})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadCSV reads a table written by WriteCSV, columns are located by their
// header so their order does not matter.
func ReadCSV(r io.Reader) ([]CountRecord, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	index := map[string]int{}
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, c := range columns {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("missing column '%s'", c)
		}
	}

	var records []CountRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		date, err := NormalizeDate(row[index["date"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		count, err := strconv.Atoi(row[index["count"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: parse count: %w", line, err)
		}
		records = append(records, CountRecord{
			Date:    date,
			Section: row[index["section"]],
			RowName: row[index["row_name"]],
			Count:   count,
		})
	}
	return records, nil
}

func ReadCSVFile(path string) ([]CountRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}
