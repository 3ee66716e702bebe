package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// JobRun is one recorded execution of a scheduled job.
type JobRun struct {
	JobName    string
	StartedAt  time.Time
	FinishedAt time.Time
	Success    bool
	Summary    string
}

// JobRunRepository persists the scheduler's job-run history: ephemeral
// operational data, not subject to any retention invariant.
type JobRunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewJobRunRepository constructs a JobRunRepository.
func NewJobRunRepository(db *sql.DB, log zerolog.Logger) *JobRunRepository {
	return &JobRunRepository{db: db, log: log.With().Str("repo", "job_runs").Logger()}
}

// Start records a job beginning and returns its row id, to be passed to Finish.
func (r *JobRunRepository) Start(ctx context.Context, jobName string, startedAt time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO job_runs (job_name, started_at) VALUES (?, ?)
	`, jobName, startedAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("insert job run: %w", err)
	}
	return result.LastInsertId()
}

// Finish records the outcome of a started job run.
func (r *JobRunRepository) Finish(ctx context.Context, id int64, finishedAt time.Time, success bool, summary string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE job_runs SET finished_at = ?, success = ?, summary = ? WHERE id = ?
	`, finishedAt.Unix(), boolToInt(success), summary, id)
	if err != nil {
		return fmt.Errorf("update job run: %w", err)
	}
	return nil
}

// Last returns the most recent run of a named job, if any.
func (r *JobRunRepository) Last(ctx context.Context, jobName string) (JobRun, bool, error) {
	var run JobRun
	var started int64
	var finished sql.NullInt64
	var success sql.NullInt64
	var summary sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT job_name, started_at, finished_at, success, summary
		FROM job_runs WHERE job_name = ? ORDER BY started_at DESC LIMIT 1
	`, jobName).Scan(&run.JobName, &started, &finished, &success, &summary)
	if err == sql.ErrNoRows {
		return JobRun{}, false, nil
	}
	if err != nil {
		return JobRun{}, false, fmt.Errorf("query last job run: %w", err)
	}

	run.StartedAt = time.Unix(started, 0).UTC()
	if finished.Valid {
		run.FinishedAt = time.Unix(finished.Int64, 0).UTC()
	}
	run.Success = success.Valid && success.Int64 == 1
	run.Summary = summary.String
	return run, true, nil
}
