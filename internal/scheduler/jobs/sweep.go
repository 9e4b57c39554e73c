package jobs

import (
	"context"
	"time"

	"github.com/quantfeed/marketpulse/internal/pipeline"
	"github.com/quantfeed/marketpulse/pkg/logger"
)

// SweepJob retires expired predictors and predictions every few minutes.
type SweepJob struct {
	sweeper  *pipeline.Sweeper
	schedule string
	logger   *logger.Logger
}

// NewSweepJob creates the expiry sweep job.
func NewSweepJob(schedule string, sweeper *pipeline.Sweeper, log *logger.Logger) *SweepJob {
	return &SweepJob{
		sweeper:  sweeper,
		schedule: schedule,
		logger:   log,
	}
}

// Name implements scheduler.Job.
func (j *SweepJob) Name() string { return "expiry-sweep" }

// Schedule implements scheduler.Job.
func (j *SweepJob) Schedule() string { return j.schedule }

// Run implements scheduler.Job.
func (j *SweepJob) Run(ctx context.Context) error {
	res, err := j.sweeper.Sweep(ctx, time.Now())
	if err != nil {
		return err
	}
	j.logger.WithFields(map[string]interface{}{
		"predictors":  res.ExpiredPredictors,
		"predictions": res.ExpiredPredictions,
	}).Info("Sweep job finished")
	return nil
}
