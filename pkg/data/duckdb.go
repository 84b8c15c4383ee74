package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
)

const schema = `CREATE TABLE IF NOT EXISTS downloads (
	run_id      VARCHAR,
	issue_id    VARCHAR,
	title       VARCHAR,
	issue       VARCHAR,
	issue_date  VARCHAR,
	output      VARCHAR,
	status      VARCHAR,
	error       VARCHAR,
	finished_at TIMESTAMP
)`

// InitDuckDB opens the history database at path, creating parent directories
// and the schema when missing.
func InitDuckDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return db, nil
}

// Repository is the download history ledger. It is append-only and never
// consulted to skip work.
type Repository struct {
	db *sql.DB
}

func NewDuckDBRepository(path string) (*Repository, error) {
	db, err := InitDuckDB(path)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) SaveDownload(rec *DownloadRecord) error {
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT INTO downloads VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.IssueID, rec.Title, rec.Issue, rec.Date,
		rec.Output, rec.Status, rec.Error, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save download %s: %w", rec.IssueID, err)
	}
	return nil
}

// ListDownloads returns the most recent records first. limit <= 0 returns all.
func (r *Repository) ListDownloads(limit int) ([]*DownloadRecord, error) {
	query := `SELECT run_id, issue_id, title, issue, issue_date, output, status, error, finished_at
		FROM downloads ORDER BY finished_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}
	defer rows.Close()

	var records []*DownloadRecord
	for rows.Next() {
		rec := &DownloadRecord{}
		if err := rows.Scan(&rec.RunID, &rec.IssueID, &rec.Title, &rec.Issue, &rec.Date,
			&rec.Output, &rec.Status, &rec.Error, &rec.FinishedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *Repository) Close() error {
	return r.db.Close()
}
