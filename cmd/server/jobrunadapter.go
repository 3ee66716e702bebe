package main

import (
	"context"
	"time"

	"github.com/aristath/marketcore/internal/repository"
	"github.com/aristath/marketcore/internal/scheduler"
)

// jobRunHistory adapts *repository.JobRunRepository to scheduler.RunHistory,
// translating repository.JobRun into the scheduler's own LastRun shape so
// internal/scheduler never has to import the persistence layer.
type jobRunHistory struct {
	repo *repository.JobRunRepository
}

func (j *jobRunHistory) Start(ctx context.Context, jobName string, startedAt time.Time) (int64, error) {
	return j.repo.Start(ctx, jobName, startedAt)
}

func (j *jobRunHistory) Finish(ctx context.Context, id int64, finishedAt time.Time, success bool, summary string) error {
	return j.repo.Finish(ctx, id, finishedAt, success, summary)
}

func (j *jobRunHistory) Last(ctx context.Context, jobName string) (scheduler.LastRun, bool, error) {
	run, ok, err := j.repo.Last(ctx, jobName)
	if err != nil || !ok {
		return scheduler.LastRun{}, ok, err
	}
	return scheduler.LastRun{
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Success:    run.Success,
		Summary:    run.Summary,
	}, true, nil
}
