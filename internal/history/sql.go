package history

import (
	"context"
	"database/sql"
	"dph-tracker/internal/chrono"
	"dph-tracker/internal/telemetry"
	"fmt"
	"time"

	_ "embed"
)

//go:embed schema.sql
var Schema string

const (
	report_db_query  = "db.query"
	report_db_commit = "db.commit"
)

const (
	tablePrimary  = "count_record"
	tablePrevious = "count_record_previous"
)

// SQLStore keeps the history in a sqlite (or libsql) database, the primary
// table, the rollback table and the update log are separate tables.
type SQLStore struct {
	db  *sql.DB
	tel telemetry.API
}

// NewSQLStore expects Schema to already be applied to `db`.
func NewSQLStore(db *sql.DB, tel telemetry.API) SQLStore {
	return SQLStore{
		db:  db,
		tel: telemetry.NewScopedAPI("history", tel),
	}
}

func (s SQLStore) load(ctx context.Context, table string) ([]CountRecord, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"select date, section, row_name, count from %s order by section, row_name, date",
		table,
	))
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "load", table)
		return nil, err
	}
	defer rows.Close()

	var records []CountRecord
	for rows.Next() {
		var r CountRecord
		var date string
		err := rows.Scan(&date, &r.Section, &r.RowName, &r.Count)
		if err != nil {
			s.tel.ReportBroken(report_db_query, err, "scan", table)
			return nil, err
		}
		r.Date, err = NormalizeDate(date)
		if err != nil {
			s.tel.ReportBroken(report_db_query, err, "scan", table)
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s SQLStore) Load(ctx context.Context) ([]CountRecord, error) {
	return s.load(ctx, tablePrimary)
}

func (s SQLStore) LoadPrevious(ctx context.Context) ([]CountRecord, error) {
	return s.load(ctx, tablePrevious)
}

func replaceTable(ctx context.Context, tx *sql.Tx, table string, records []CountRecord) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf("delete from %s", table))
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"insert into %s (date, section, row_name, count) values (?, ?, ?, ?)",
		table,
	))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		_, err = stmt.ExecContext(ctx, string(r.Date), r.Section, r.RowName, r.Count)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s SQLStore) Commit(ctx context.Context, previous, merged []CountRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.tel.ReportBroken(report_db_commit, fmt.Errorf("begin tx: %w", err))
		return err
	}
	defer tx.Rollback()

	err = replaceTable(ctx, tx, tablePrevious, previous)
	if err != nil {
		s.tel.ReportBroken(report_db_commit, fmt.Errorf("write previous: %w", err))
		return err
	}
	err = replaceTable(ctx, tx, tablePrimary, merged)
	if err != nil {
		s.tel.ReportBroken(report_db_commit, fmt.Errorf("write primary: %w", err))
		return err
	}

	err = tx.Commit()
	if err != nil {
		s.tel.ReportBroken(report_db_commit, err)
		return err
	}
	s.tel.ReportCount("history.records", int64(len(merged)))
	return nil
}

func (s SQLStore) LastUpdate(ctx context.Context) (string, error) {
	var stamp string
	err := s.db.QueryRowContext(ctx, "select time from update_log order by id desc limit 1").Scan(&stamp)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "LastUpdate")
		return "", err
	}
	return stamp, nil
}

func (s SQLStore) RecordUpdate(ctx context.Context, at time.Time) error {
	_, err := s.db.ExecContext(ctx, "insert into update_log (time) values (?)", chrono.FormatLog(at))
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "RecordUpdate")
	}
	return err
}
