package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/pdf2zh-engine/internal/model"

	_ "modernc.org/sqlite"
)

// MemoryPath keeps the history in memory for the lifetime of the process.
const MemoryPath = ":memory:"

const createJobsTable = `
CREATE TABLE IF NOT EXISTS jobs (
    id              TEXT PRIMARY KEY,
    status          TEXT NOT NULL,
    service         TEXT NOT NULL,
    source_path     TEXT NOT NULL,
    source_filename TEXT,
    lang_in         TEXT NOT NULL,
    lang_out        TEXT NOT NULL,
    filename        TEXT,
    error           TEXT,
    duration_ms     INTEGER,
    created_at      DATETIME NOT NULL,
    finished_at     DATETIME
)`

const createEventsTable = `
CREATE TABLE IF NOT EXISTS job_events (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id     TEXT NOT NULL REFERENCES jobs(id),
    seq        INTEGER NOT NULL,
    event      TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    UNIQUE (job_id, seq)
)`

const jobColumns = `id, status, service, source_path, source_filename, lang_in, lang_out,
	filename, error, duration_ms, created_at, finished_at`

// ErrNotFound is returned when a job is not found.
var ErrNotFound = errors.New("job not found")

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if dbPath == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for name, stmt := range map[string]string{"jobs": createJobsTable, "job_events": createEventsTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create %s table: %w", name, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateJob inserts a new job record.
func (s *SQLiteStore) CreateJob(ctx context.Context, j *model.JobRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Status, j.Service, j.SourcePath, j.SourceFilename, j.LangIn, j.LangOut,
		j.Filename, j.Error, j.DurationMS, j.CreatedAt, j.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*model.JobRecord, error) {
	j := &model.JobRecord{}
	var sourceFilename, filename, errMsg sql.NullString
	err := row.Scan(
		&j.ID, &j.Status, &j.Service, &j.SourcePath, &sourceFilename, &j.LangIn, &j.LangOut,
		&filename, &errMsg, &j.DurationMS, &j.CreatedAt, &j.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	j.SourceFilename = sourceFilename.String
	j.Filename = filename.String
	j.Error = errMsg.String
	return j, nil
}

// GetJob retrieves a job by ID.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.JobRecord, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// ListJobs returns a paginated list of jobs ordered newest first, along with
// the total count of all jobs.
func (s *SQLiteStore) ListJobs(ctx context.Context, limit, offset int) ([]*model.JobRecord, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.JobRecord
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate jobs: %w", err)
	}

	return jobs, total, nil
}

// FinishJob moves a running job to its terminal status and records the
// outcome fields. The transition is validated against the current status
// inside a transaction.
func (s *SQLiteStore) FinishJob(ctx context.Context, j *model.JobRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM jobs WHERE id = ?", j.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read job status: %w", err)
	}

	if !model.ValidTransition(current, j.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, j.Status)
	}

	finishedAt := j.FinishedAt
	if finishedAt == nil {
		now := time.Now().UTC()
		finishedAt = &now
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, filename = ?, error = ?, duration_ms = ?, finished_at = ?
		WHERE id = ?`,
		j.Status, j.Filename, j.Error, j.DurationMS, finishedAt, j.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit job update: %w", err)
	}
	return nil
}

// GetJobStats returns aggregate statistics over all recorded jobs.
func (s *SQLiteStore) GetJobStats(ctx context.Context) (*JobStats, error) {
	stats := &JobStats{
		CountByStatus:  make(map[string]int),
		CountByService: make(map[string]int),
	}

	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(duration_ms) FROM jobs",
	).Scan(&stats.Total, &avg)
	if err != nil {
		return nil, fmt.Errorf("aggregate jobs: %w", err)
	}
	stats.AvgDurationMS = avg.Float64

	if err := s.countBy(ctx, "status", stats.CountByStatus); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "service", stats.CountByService); err != nil {
		return nil, err
	}
	return stats, nil
}

// countBy fills dst with row counts grouped by column. column is always a
// fixed identifier, never user input.
func (s *SQLiteStore) countBy(ctx context.Context, column string, dst map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) FROM jobs GROUP BY "+column,
	)
	if err != nil {
		return fmt.Errorf("count by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan %s count: %w", column, err)
		}
		dst[key] = n
	}
	return rows.Err()
}

// InsertEvent appends a job event at position seq.
func (s *SQLiteStore) InsertEvent(ctx context.Context, jobID string, seq int, ev model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO job_events (job_id, seq, event, created_at) VALUES (?, ?, ?, ?)",
		jobID, seq, string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvents returns the persisted events of a job in sequence order.
func (s *SQLiteStore) GetEvents(ctx context.Context, jobID string) ([]model.EventRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, job_id, seq, event, created_at FROM job_events WHERE job_id = ? ORDER BY seq",
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	defer rows.Close()

	var events []model.EventRecord
	for rows.Next() {
		var rec model.EventRecord
		var data string
		if err := rows.Scan(&rec.ID, &rec.JobID, &rec.Seq, &data, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &rec.Event); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", rec.Seq, err)
		}
		events = append(events, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
