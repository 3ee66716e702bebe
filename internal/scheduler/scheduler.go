// Package scheduler drives the market-data core's background jobs
// (prewarm, scan, snapshot, FX check) on a cron schedule, adapted from the
// teacher's trader-go/internal/scheduler with one addition: every run is
// recorded to a job-run history table instead of only being logged.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one background unit of work the Scheduler can run and record.
type Job interface {
	Name() string
	Run(ctx context.Context) (summary string, err error)
}

// RunHistory records the outcome of a job run for later inspection
// (surfaced at GET /scan/status and GET /prewarm-status).
type RunHistory interface {
	Start(ctx context.Context, jobName string, startedAt time.Time) (int64, error)
	Finish(ctx context.Context, id int64, finishedAt time.Time, success bool, summary string) error
	Last(ctx context.Context, jobName string) (LastRun, bool, error)
}

// LastRun is the subset of a recorded job run the scheduler's status
// endpoints need. Declared here rather than importing repository.JobRun so
// this package doesn't depend on the concrete persistence layer.
type LastRun struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Success    bool
	Summary    string
}

// Clock abstracts job-run timestamps for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Scheduler manages background jobs on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	history RunHistory
	clk     Clock
	log     zerolog.Logger
}

// New constructs a Scheduler. history may be nil to skip persisted run
// history (jobs still run and log normally).
func New(history RunHistory, clk Clock, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		history: history,
		clk:     clk,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler's cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the scheduler, waiting for any in-flight job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

// AddJob registers a job on a standard five-field cron schedule
// ("*/5 * * * *", "@hourly", "@every 30s", ...).
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.RunNow(job)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("schedule", schedule).Str("job", job.Name()).Msg("job registered")
	return nil
}

// RunNow executes a job immediately, outside its schedule, recording its
// outcome the same way a scheduled firing would.
func (s *Scheduler) RunNow(job Job) {
	ctx := context.Background()
	startedAt := s.clk.Now()

	var runID int64
	if s.history != nil {
		id, err := s.history.Start(ctx, job.Name(), startedAt)
		if err != nil {
			s.log.Warn().Err(err).Str("job", job.Name()).Msg("failed to record job start")
		}
		runID = id
	}

	s.log.Debug().Str("job", job.Name()).Msg("running job")
	summary, err := job.Run(ctx)
	finishedAt := s.clk.Now()

	if err != nil {
		s.log.Error().Err(err).Str("job", job.Name()).Msg("job failed")
	} else {
		s.log.Debug().Str("job", job.Name()).Str("summary", summary).Msg("job completed")
	}

	if s.history != nil && runID != 0 {
		if herr := s.history.Finish(ctx, runID, finishedAt, err == nil, summary); herr != nil {
			s.log.Warn().Err(herr).Str("job", job.Name()).Msg("failed to record job finish")
		}
	}
}

// LastRun returns the most recent recorded run of a named job.
func (s *Scheduler) LastRun(ctx context.Context, jobName string) (LastRun, bool, error) {
	if s.history == nil {
		return LastRun{}, false, nil
	}
	return s.history.Last(ctx, jobName)
}
