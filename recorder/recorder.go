// Package recorder keeps a local history of finished jobs in a sqlite
// database. History outlives sessions: session records are deleted once
// a job completes, the history row is what remains.
package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/clemsonciti/slrun"
	_ "github.com/mattn/go-sqlite3"
)

type Recorder struct {
	db *sql.DB
}

// Entry is one row of job history.
type Entry struct {
	JobID      string
	Command    []string
	WorkDir    string
	Status     slrun.Status
	ExitCode   int
	CreatedAt  time.Time
	FinishedAt time.Time
}

// DefaultPath returns the history database path, ~/.slrun/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to find home directory: %w", err)
	}
	return path.Join(home, ".slrun", "history.db"), nil
}

func New(filename string) (*Recorder, error) {
	var r Recorder
	var err error

	dirName := path.Dir(filename)
	err = os.MkdirAll(dirName, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory %v: %w", dirName, err)
	}

	r.db, err = sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open db filename %v: %w", filename, err)
	}
	err = r.migrate()
	if err != nil {
		return nil, fmt.Errorf("failed to migrate db filename %v: %w", filename, err)
	}

	return &r, nil
}

func (r *Recorder) migrate() error {
	_, err := r.db.Exec(`
	CREATE TABLE IF NOT EXISTS job_history (
		job_id TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		work_dir TEXT NOT NULL,
		status TEXT NOT NULL,
		exit_code INTEGER,
		created_at_unix INTEGER NOT NULL,
		finished_at_unix INTEGER
	)`)
	if err != nil {
		return fmt.Errorf("failed to create job_history table: %w", err)
	}
	return nil
}

// RecordSubmit inserts a row for a freshly submitted job. A resubmission
// with the same id (scheduler ids do recycle eventually) replaces the old
// row.
func (r *Recorder) RecordSubmit(sess *slrun.JobSession) error {
	_, err := r.db.Exec(`
	INSERT INTO job_history(job_id, command, work_dir, status, created_at_unix)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (job_id)
	DO UPDATE SET
		command = excluded.command,
		work_dir = excluded.work_dir,
		status = excluded.status,
		created_at_unix = excluded.created_at_unix,
		exit_code = NULL,
		finished_at_unix = NULL
	`, sess.JobID, strings.Join(sess.Command, " "), sess.WorkDir,
		string(sess.LastStatus), sess.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to record job submission: %w", err)
	}
	return nil
}

// RecordFinal marks a job finished with its final status and exit code.
// If the submission row is missing (older database, or history was added
// mid-session) the row is created.
func (r *Recorder) RecordFinal(sess *slrun.JobSession, status slrun.Status, exitCode int) error {
	_, err := r.db.Exec(`
	INSERT INTO job_history(job_id, command, work_dir, status,
		exit_code, created_at_unix, finished_at_unix)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (job_id)
	DO UPDATE SET
		status = excluded.status,
		exit_code = excluded.exit_code,
		finished_at_unix = excluded.finished_at_unix
	`, sess.JobID, strings.Join(sess.Command, " "), sess.WorkDir,
		string(status), exitCode, sess.CreatedAt.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record job completion: %w", err)
	}
	return nil
}

// Recent returns up to limit history entries, newest first.
func (r *Recorder) Recent(limit int) ([]Entry, error) {
	rows, err := r.db.Query(`
	SELECT job_id, command, work_dir, status,
		COALESCE(exit_code, 0),
		created_at_unix,
		COALESCE(finished_at_unix, 0)
	FROM job_history
	ORDER BY created_at_unix DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query job history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var command string
		var status string
		var createdUnix, finishedUnix int64
		err = rows.Scan(&e.JobID, &command, &e.WorkDir, &status,
			&e.ExitCode, &createdUnix, &finishedUnix)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job history row: %w", err)
		}
		e.Command = strings.Fields(command)
		e.Status = slrun.Status(status)
		e.CreatedAt = time.Unix(createdUnix, 0)
		if finishedUnix != 0 {
			e.FinishedAt = time.Unix(finishedUnix, 0)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Recorder) Close() error {
	return r.db.Close()
}
