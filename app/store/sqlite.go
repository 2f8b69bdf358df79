package store

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver
)

// ApplicationInfo represents a single application attempt with timing
type ApplicationInfo struct {
	ID         int64     `json:"id"`
	JobID      string    `json:"job_id"`
	Title      string    `json:"title"`
	Company    string    `json:"company"`
	URL        string    `json:"url"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// SQLiteStore keeps application history in sqlite for the status server
type SQLiteStore struct {
	db *sqlx.DB
}

// appRow is the db-level representation, timestamps as unix seconds
type appRow struct {
	ID         int64  `db:"id"`
	JobID      string `db:"job_id"`
	Title      string `db:"title"`
	Company    string `db:"company"`
	URL        string `db:"url"`
	Status     string `db:"status"`
	StartedAt  int64  `db:"started_at"`
	FinishedAt int64  `db:"finished_at"`
}

// NewSQLiteStore opens (or creates) the history database
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to set WAL mode: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Initialize creates the database schema
func (s *SQLiteStore) Initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS applications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id TEXT NOT NULL,
			title TEXT,
			company TEXT,
			url TEXT,
			status TEXT NOT NULL,
			started_at INTEGER,
			finished_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_applications_job_id ON applications(job_id)`,
		`CREATE INDEX IF NOT EXISTS idx_applications_started_at ON applications(started_at)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// RecordApplication inserts one application attempt
func (s *SQLiteStore) RecordApplication(app ApplicationInfo) error {
	row := appRow{
		JobID:      app.JobID,
		Title:      app.Title,
		Company:    app.Company,
		URL:        app.URL,
		Status:     app.Status,
		StartedAt:  app.StartedAt.Unix(),
		FinishedAt: app.FinishedAt.Unix(),
	}
	_, err := s.db.NamedExec(`INSERT INTO applications (job_id, title, company, url, status, started_at, finished_at)
		VALUES (:job_id, :title, :company, :url, :status, :started_at, :finished_at)`, row)
	if err != nil {
		return fmt.Errorf("failed to record application for %s: %w", app.JobID, err)
	}
	return nil
}

// ListApplications returns most recent applications, newest first
func (s *SQLiteStore) ListApplications(limit int) ([]ApplicationInfo, error) {
	if limit <= 0 {
		limit = 100
	}
	rows := []appRow{}
	err := s.db.Select(&rows, `SELECT id, job_id, title, company, url, status, started_at, finished_at
		FROM applications ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}

	res := make([]ApplicationInfo, 0, len(rows))
	for _, r := range rows {
		res = append(res, ApplicationInfo{
			ID:         r.ID,
			JobID:      r.JobID,
			Title:      r.Title,
			Company:    r.Company,
			URL:        r.URL,
			Status:     r.Status,
			StartedAt:  time.Unix(r.StartedAt, 0),
			FinishedAt: time.Unix(r.FinishedAt, 0),
		})
	}
	return res, nil
}

// StatusCounts aggregates the number of applications per status
func (s *SQLiteStore) StatusCounts() (map[string]int, error) {
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"cnt"`
	}{}
	if err := s.db.Select(&rows, `SELECT status, COUNT(*) AS cnt FROM applications GROUP BY status`); err != nil {
		return nil, fmt.Errorf("failed to count statuses: %w", err)
	}
	res := map[string]int{}
	for _, r := range rows {
		res[r.Status] = r.Count
	}
	return res, nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
