package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"chargecal/chargeapi"
	"chargecal/holiday"
	"chargecal/internal/timeutil"
	"chargecal/timecharge"
)

var (
	ErrTimeChargeNotFound = errors.New("time charge not found")
	// ErrTimeChargeLocked is returned when an approved or declined time charge is
	// changed without being reopened first.
	ErrTimeChargeLocked = errors.New("time charge is locked")
)

// SQLiteStore persists time charges, leaves and holidays locally. It implements
// chargeapi.Client so the engine can run without a remote API.
type SQLiteStore struct {
	db  *sql.DB
	loc *time.Location
}

var _ chargeapi.Client = (*SQLiteStore)(nil)

func OpenSQLite(path string, loc *time.Location) (*SQLiteStore, error) {
	if loc == nil {
		loc = time.Local
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Keep one connection so in-memory databases and write transactions behave.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &SQLiteStore{db: db, loc: loc}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Location() *time.Location {
	return s.loc
}

func (s *SQLiteStore) ensureSchema() error {
	// Timestamps are stored as zone-less local text in the business timezone so
	// they sort and range-compare as strings.
	const schema = `
CREATE TABLE IF NOT EXISTS time_charges (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	start_local TEXT NOT NULL,
	end_local TEXT NOT NULL,
	time_charge_type INTEGER NOT NULL CHECK(time_charge_type IN (1, 2, 3)),
	is_ot INTEGER NOT NULL DEFAULT 0,
	next_day_ot INTEGER NOT NULL DEFAULT 0,
	ot_type TEXT NOT NULL DEFAULT 'none',
	status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'approved', 'declined')),
	project_id TEXT NOT NULL DEFAULT '',
	project_code TEXT NOT NULL DEFAULT '',
	project_name TEXT NOT NULL DEFAULT '',
	stage_id TEXT NOT NULL DEFAULT '',
	stage_name TEXT NOT NULL DEFAULT '',
	activity TEXT NOT NULL DEFAULT '',
	task_id TEXT NOT NULL DEFAULT '',
	task_name TEXT NOT NULL DEFAULT '',
	remarks TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_time_charges_start ON time_charges(start_local);

CREATE TABLE IF NOT EXISTS leaves (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	leave_date TEXT NOT NULL,
	start_local TEXT NOT NULL DEFAULT '',
	end_local TEXT NOT NULL DEFAULT '',
	leave_type TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	remarks TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_leaves_date ON leaves(leave_date);

CREATE TABLE IF NOT EXISTS holidays (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL CHECK(kind IN ('fixed', 'dynamic')),
	holiday_date TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	UNIQUE(kind, holiday_date)
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

const timeChargeColumns = `
	id,
	start_local,
	end_local,
	time_charge_type,
	is_ot,
	next_day_ot,
	ot_type,
	status,
	project_id,
	project_code,
	project_name,
	stage_id,
	stage_name,
	activity,
	task_id,
	task_name,
	remarks`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTimeCharge(row rowScanner) (chargeapi.TimeCharge, error) {
	var (
		id        int64
		charge    chargeapi.TimeCharge
		isOT      int
		nextDayOT int
		projectID string
		stageID   string
		taskID    string
	)
	if err := row.Scan(
		&id,
		&charge.StartTime,
		&charge.EndTime,
		&charge.TimeChargeType,
		&isOT,
		&nextDayOT,
		&charge.OTType,
		&charge.Status,
		&projectID,
		&charge.ProjectCode,
		&charge.ProjectName,
		&stageID,
		&charge.StageName,
		&charge.Activity,
		&taskID,
		&charge.DepartmentalTaskName,
		&charge.Remarks,
	); err != nil {
		return chargeapi.TimeCharge{}, err
	}
	charge.ID = chargeapi.FlexibleID(strconv.FormatInt(id, 10))
	charge.IsOT = isOT != 0
	charge.NextDayOT = nextDayOT != 0
	charge.ProjectID = chargeapi.FlexibleID(projectID)
	charge.StageID = chargeapi.FlexibleID(stageID)
	charge.DepartmentalTaskID = chargeapi.FlexibleID(taskID)
	return charge, nil
}

func (s *SQLiteStore) ListTimeCharges(ctx context.Context, year int, month time.Month) ([]chargeapi.TimeCharge, error) {
	period := timeutil.Period{Year: year, Month: month}
	first, _ := period.Bounds(s.loc)
	next, _ := period.Next().Bounds(s.loc)

	query := `SELECT` + timeChargeColumns + `
FROM time_charges
WHERE start_local >= ? AND start_local < ?
ORDER BY start_local, id;`

	rows, err := s.db.QueryContext(ctx, query, timeutil.FormatLocal(first), timeutil.FormatLocal(next))
	if err != nil {
		return nil, fmt.Errorf("query time charges: %w", err)
	}
	defer rows.Close()

	out := make([]chargeapi.TimeCharge, 0, 64)
	for rows.Next() {
		charge, err := scanTimeCharge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan time charge: %w", err)
		}
		out = append(out, charge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate time charges: %w", err)
	}
	return out, nil
}

// GetTimeCharge returns one stored time charge as a record.
func (s *SQLiteStore) GetTimeCharge(ctx context.Context, id string) (timecharge.Record, error) {
	rowID, err := parseRowID(id)
	if err != nil {
		return timecharge.Record{}, err
	}
	charge, err := s.getTimeCharge(ctx, s.db, rowID)
	if err != nil {
		return timecharge.Record{}, err
	}
	return charge.Record(s.loc)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) getTimeCharge(ctx context.Context, q querier, id int64) (chargeapi.TimeCharge, error) {
	query := `SELECT` + timeChargeColumns + `
FROM time_charges
WHERE id = ?;`

	charge, err := scanTimeCharge(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chargeapi.TimeCharge{}, fmt.Errorf("time charge %d: %w", id, ErrTimeChargeNotFound)
		}
		return chargeapi.TimeCharge{}, fmt.Errorf("query time charge %d: %w", id, err)
	}
	return charge, nil
}

func (s *SQLiteStore) CreateTimeCharge(ctx context.Context, payload chargeapi.Payload) (chargeapi.MutationResult, error) {
	record, err := s.recordFromPayload(payload)
	if err != nil {
		return chargeapi.MutationResult{}, err
	}

	const insertStmt = `
INSERT INTO time_charges (
	start_local,
	end_local,
	time_charge_type,
	is_ot,
	next_day_ot,
	ot_type,
	status,
	project_id,
	project_code,
	project_name,
	stage_id,
	stage_name,
	activity,
	task_id,
	task_name,
	remarks
) VALUES (?, ?, ?, ?, ?, ?, 'pending', ?, ?, ?, ?, ?, ?, ?, ?, ?);`

	res, err := s.db.ExecContext(
		ctx,
		insertStmt,
		timeutil.FormatLocal(record.Start),
		timeutil.FormatLocal(record.End),
		record.Kind.ChargeTypeCode(),
		boolInt(record.IsOvertime),
		boolInt(record.NextDayOvertime),
		otTypeOf(payload),
		record.ProjectID,
		record.ProjectCode,
		record.ProjectLabel,
		record.StageID,
		record.StageLabel,
		record.Activity,
		record.TaskID,
		record.TaskLabel,
		record.Remarks,
	)
	if err != nil {
		return chargeapi.MutationResult{}, fmt.Errorf("insert time charge: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return chargeapi.MutationResult{}, fmt.Errorf("read inserted row id: %w", err)
	}
	return chargeapi.MutationResult{ID: chargeapi.FlexibleID(strconv.FormatInt(id, 10)), Message: "created"}, nil
}

// UpdateTimeCharge replaces all editable fields. Approved and declined rows are
// rejected with ErrTimeChargeLocked.
func (s *SQLiteStore) UpdateTimeCharge(ctx context.Context, id string, payload chargeapi.Payload) (chargeapi.MutationResult, error) {
	rowID, err := parseRowID(id)
	if err != nil {
		return chargeapi.MutationResult{}, err
	}
	record, err := s.recordFromPayload(payload)
	if err != nil {
		return chargeapi.MutationResult{}, err
	}

	const updateStmt = `
UPDATE time_charges
SET start_local = ?,
	end_local = ?,
	time_charge_type = ?,
	is_ot = ?,
	next_day_ot = ?,
	ot_type = ?,
	project_id = ?,
	project_code = ?,
	project_name = ?,
	stage_id = ?,
	stage_name = ?,
	activity = ?,
	task_id = ?,
	task_name = ?,
	remarks = ?,
	updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND status = 'pending';`

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.getTimeCharge(ctx, tx, rowID)
		if err != nil {
			return err
		}
		if timecharge.ParseStatus(current.Status).IsFinal() {
			return fmt.Errorf("update time charge %d (%s): %w", rowID, current.Status, ErrTimeChargeLocked)
		}

		_, err = tx.ExecContext(
			ctx,
			updateStmt,
			timeutil.FormatLocal(record.Start),
			timeutil.FormatLocal(record.End),
			record.Kind.ChargeTypeCode(),
			boolInt(record.IsOvertime),
			boolInt(record.NextDayOvertime),
			otTypeOf(payload),
			record.ProjectID,
			record.ProjectCode,
			record.ProjectLabel,
			record.StageID,
			record.StageLabel,
			record.Activity,
			record.TaskID,
			record.TaskLabel,
			record.Remarks,
			rowID,
		)
		if err != nil {
			return fmt.Errorf("update time charge %d: %w", rowID, err)
		}
		return nil
	})
	if err != nil {
		return chargeapi.MutationResult{}, err
	}
	return chargeapi.MutationResult{ID: chargeapi.FlexibleID(strconv.FormatInt(rowID, 10)), Message: "updated"}, nil
}

// DeleteTimeCharge removes a pending or declined row. Approved rows are locked.
func (s *SQLiteStore) DeleteTimeCharge(ctx context.Context, id string) error {
	rowID, err := parseRowID(id)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.getTimeCharge(ctx, tx, rowID)
		if err != nil {
			return err
		}
		if timecharge.ParseStatus(current.Status) == timecharge.StatusApproved {
			return fmt.Errorf("delete time charge %d: %w", rowID, ErrTimeChargeLocked)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM time_charges WHERE id = ?;`, rowID); err != nil {
			return fmt.Errorf("delete time charge %d: %w", rowID, err)
		}
		return nil
	})
}

// ReopenTimeCharges moves every listed row back to pending, or none of them.
func (s *SQLiteStore) ReopenTimeCharges(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return errors.New("reopen requires at least one id")
	}
	return s.transition(ctx, ids, func(record *timecharge.Record) error { return record.Reopen() })
}

// Approve marks pending rows approved.
func (s *SQLiteStore) Approve(ctx context.Context, ids ...string) error {
	return s.transition(ctx, ids, func(record *timecharge.Record) error { return record.Approve() })
}

// Decline marks pending rows declined.
func (s *SQLiteStore) Decline(ctx context.Context, ids ...string) error {
	return s.transition(ctx, ids, func(record *timecharge.Record) error { return record.Decline() })
}

func (s *SQLiteStore) transition(ctx context.Context, ids []string, apply func(*timecharge.Record) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			rowID, err := parseRowID(id)
			if err != nil {
				return err
			}
			current, err := s.getTimeCharge(ctx, tx, rowID)
			if err != nil {
				return err
			}

			record := timecharge.Record{ID: id, Status: timecharge.ParseStatus(current.Status)}
			if err := apply(&record); err != nil {
				return err
			}
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE time_charges SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?;`,
				string(record.Status),
				rowID,
			); err != nil {
				return fmt.Errorf("set status of time charge %d: %w", rowID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListLeaves(ctx context.Context, periodStart, periodEnd time.Time, _ int) ([]chargeapi.Leave, error) {
	const query = `
SELECT id, leave_date, start_local, end_local, leave_type, status, remarks
FROM leaves
WHERE leave_date >= ? AND leave_date <= ?
ORDER BY leave_date, id;`

	rows, err := s.db.QueryContext(ctx, query, periodStart.Format(timeutil.DateLayout), periodEnd.Format(timeutil.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("query leaves: %w", err)
	}
	defer rows.Close()

	out := make([]chargeapi.Leave, 0, 16)
	for rows.Next() {
		var (
			id    int64
			leave chargeapi.Leave
		)
		if err := rows.Scan(&id, &leave.Date, &leave.StartTime, &leave.EndTime, &leave.LeaveType, &leave.Status, &leave.Remarks); err != nil {
			return nil, fmt.Errorf("scan leave: %w", err)
		}
		leave.ID = chargeapi.FlexibleID(strconv.FormatInt(id, 10))
		out = append(out, leave)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaves: %w", err)
	}
	return out, nil
}

// InsertLeave stores a leave and returns its id. A leave without times covers
// its whole date.
func (s *SQLiteStore) InsertLeave(ctx context.Context, leave chargeapi.Leave) (string, error) {
	record, err := leave.Record(s.loc)
	if err != nil {
		return "", err
	}

	startLocal, endLocal := "", ""
	if strings.TrimSpace(leave.StartTime) != "" && strings.TrimSpace(leave.EndTime) != "" {
		startLocal = timeutil.FormatLocal(record.Start)
		endLocal = timeutil.FormatLocal(record.End)
	}
	status := timecharge.ParseStatus(leave.Status)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO leaves (leave_date, start_local, end_local, leave_type, status, remarks) VALUES (?, ?, ?, ?, ?, ?);`,
		record.Start.Format(timeutil.DateLayout),
		startLocal,
		endLocal,
		record.LeaveType,
		string(status),
		record.Remarks,
	)
	if err != nil {
		return "", fmt.Errorf("insert leave: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("read inserted row id: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// ListHolidays returns every fixed holiday and the dynamic ones inside the range.
func (s *SQLiteStore) ListHolidays(ctx context.Context, periodStart, periodEnd time.Time, _ int) (chargeapi.Holidays, error) {
	const query = `
SELECT kind, holiday_date, name
FROM holidays
WHERE kind = 'fixed' OR (holiday_date >= ? AND holiday_date <= ?)
ORDER BY kind, holiday_date;`

	rows, err := s.db.QueryContext(ctx, query, periodStart.Format(timeutil.DateLayout), periodEnd.Format(timeutil.DateLayout))
	if err != nil {
		return chargeapi.Holidays{}, fmt.Errorf("query holidays: %w", err)
	}
	defer rows.Close()

	out := chargeapi.Holidays{Fixed: []chargeapi.HolidayEntry{}, Dynamic: []chargeapi.HolidayEntry{}}
	for rows.Next() {
		var (
			kind  string
			entry chargeapi.HolidayEntry
		)
		if err := rows.Scan(&kind, &entry.Date, &entry.Name); err != nil {
			return chargeapi.Holidays{}, fmt.Errorf("scan holiday: %w", err)
		}
		if holiday.Kind(kind) == holiday.KindFixed {
			out.Fixed = append(out.Fixed, entry)
		} else {
			out.Dynamic = append(out.Dynamic, entry)
		}
	}
	if err := rows.Err(); err != nil {
		return chargeapi.Holidays{}, fmt.Errorf("iterate holidays: %w", err)
	}
	return out, nil
}

// InsertHolidays upserts holiday entries keyed by kind and date and returns the
// number of rows written.
func (s *SQLiteStore) InsertHolidays(ctx context.Context, entries []holiday.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	const upsertStmt = `
INSERT INTO holidays (kind, holiday_date, name) VALUES (?, ?, ?)
ON CONFLICT(kind, holiday_date) DO UPDATE SET name = excluded.name;`

	written := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertStmt)
		if err != nil {
			return fmt.Errorf("prepare holiday upsert: %w", err)
		}
		defer stmt.Close()

		for _, entry := range entries {
			if entry.Date.IsZero() {
				continue
			}
			kind := holiday.KindDynamic
			date := entry.Date.Format(timeutil.DateLayout)
			if entry.Kind == holiday.KindFixed {
				kind = holiday.KindFixed
				date = entry.Date.Format("01-02")
			}
			res, err := stmt.ExecContext(ctx, string(kind), date, strings.TrimSpace(entry.Name))
			if err != nil {
				return fmt.Errorf("upsert holiday %s: %w", date, err)
			}
			if rows, err := res.RowsAffected(); err == nil && rows > 0 {
				written++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) recordFromPayload(payload chargeapi.Payload) (timecharge.Record, error) {
	if err := payload.Validate(); err != nil {
		return timecharge.Record{}, err
	}
	record, err := payload.Record(s.loc)
	if err != nil {
		return timecharge.Record{}, fmt.Errorf("%w: %w", chargeapi.ErrInvalidPayload, err)
	}
	if !record.End.After(record.Start) {
		return timecharge.Record{}, fmt.Errorf("%w: end_time %q must be after start_time %q", chargeapi.ErrInvalidPayload, payload.EndTime, payload.StartTime)
	}
	return record, nil
}

func parseRowID(id string) (int64, error) {
	rowID, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || rowID <= 0 {
		return 0, fmt.Errorf("time charge id %q: %w", id, ErrTimeChargeNotFound)
	}
	return rowID, nil
}

func otTypeOf(payload chargeapi.Payload) string {
	return string(holiday.ParseOTType(payload.OTType))
}

func boolInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
