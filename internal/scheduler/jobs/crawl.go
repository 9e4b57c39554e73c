// Package jobs defines the scheduled pipeline jobs.
package jobs

import (
	"context"

	"github.com/quantfeed/marketpulse/internal/ingest/collector"
	"github.com/quantfeed/marketpulse/pkg/logger"
)

// CrawlJob runs one crawl cycle for one feed. Each feed gets its own timer
// so a slow news fetch never delays the quote cycle.
type CrawlJob struct {
	feed      string
	schedule  string
	collector *collector.Collector
	logger    *logger.Logger
}

// NewCrawlJob creates a crawl job for the named feed.
func NewCrawlJob(feed, schedule string, c *collector.Collector, log *logger.Logger) *CrawlJob {
	return &CrawlJob{
		feed:      feed,
		schedule:  schedule,
		collector: c,
		logger:    log,
	}
}

// Name implements scheduler.Job.
func (j *CrawlJob) Name() string { return "crawl-" + j.feed }

// Schedule implements scheduler.Job.
func (j *CrawlJob) Schedule() string { return j.schedule }

// Run implements scheduler.Job.
func (j *CrawlJob) Run(ctx context.Context) error {
	res, err := j.collector.Crawl(ctx, j.feed)
	if err != nil {
		return err
	}
	j.logger.WithFields(map[string]interface{}{
		"feed":     j.feed,
		"sources":  res.Sources,
		"failed":   res.Failed,
		"accepted": res.Stats.Accepted,
		"emitted":  res.Stats.Emitted,
	}).Info("Crawl job finished")
	return nil
}
