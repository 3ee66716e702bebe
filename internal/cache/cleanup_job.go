package cache

import "github.com/rs/zerolog"

// CleanupJob deletes expired L2 rows. It implements the scheduler.Job
// interface and is registered on a daily cron tick.
type CleanupJob struct {
	fabric *Fabric
	log    zerolog.Logger
}

func NewCleanupJob(fabric *Fabric, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{fabric: fabric, log: log.With().Str("job", "cache_cleanup").Logger()}
}

func (j *CleanupJob) Name() string { return "cache_cleanup" }

func (j *CleanupJob) Run() error {
	n, err := j.fabric.DeleteExpired()
	if err != nil {
		return err
	}
	j.log.Info().Int64("rows_deleted", n).Msg("expired cache entries purged")
	return nil
}
