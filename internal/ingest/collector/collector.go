// Package collector orchestrates crawl cycles across the source adapters.
package collector

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/quantfeed/marketpulse/internal/contracts"
	"github.com/quantfeed/marketpulse/internal/pipeline"
	"github.com/quantfeed/marketpulse/pkg/config"
)

// Feed pairs an adapter with the symbols it crawls.
type Feed struct {
	Adapter contracts.SourceAdapter
	Symbols []string
}

// Collector fans a crawl cycle out over a worker pool, paces upstream
// calls with a shared rate limiter and feeds everything fetched into the
// pipeline under the production scope.
type Collector struct {
	feeds   map[string]Feed
	pipe    *pipeline.Pipeline
	workers int
	limiter *rate.Limiter
	log     zerolog.Logger
}

// New creates a collector over the given feeds.
func New(cfg config.CrawlConfig, pipe *pipeline.Pipeline, feeds []Feed, log zerolog.Logger) *Collector {
	byName := make(map[string]Feed, len(feeds))
	for _, f := range feeds {
		byName[f.Adapter.Name()] = f
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Collector{
		feeds:   byName,
		pipe:    pipe,
		workers: workers,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		log:     log.With().Str("component", "collector").Logger(),
	}
}

// Result summarizes one crawl cycle for one feed.
type Result struct {
	Feed    string               `json:"feed"`
	Sources int                  `json:"sources"`
	Failed  int                  `json:"failed"`
	Stats   pipeline.IngestStats `json:"stats"`
}

// Crawl runs one cycle for the named feed. Symbols are fetched through a
// worker pool; a symbol's failure is carried as a failed source, never an
// aborted cycle.
func (c *Collector) Crawl(ctx context.Context, feedName string) (Result, error) {
	feed, ok := c.feeds[feedName]
	if !ok {
		return Result{}, fmt.Errorf("unknown feed %q", feedName)
	}
	res := Result{Feed: feedName}

	jobs := make(chan string)
	var (
		mu      sync.Mutex
		sources []contracts.Source
	)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				if err := c.limiter.Wait(ctx); err != nil {
					return
				}
				batch, err := feed.Adapter.Execute(ctx, []string{symbol})
				if err != nil {
					c.log.Warn().Err(err).Str("feed", feedName).Str("symbol", symbol).Msg("adapter batch failed")
					continue
				}
				mu.Lock()
				sources = append(sources, batch...)
				mu.Unlock()
			}
		}()
	}

	for _, symbol := range feed.Symbols {
		select {
		case jobs <- symbol:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return res, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	res.Sources = len(sources)
	for i := range sources {
		if sources[i].Failed() {
			res.Failed++
		}
	}

	stats, err := c.pipe.Ingest(ctx, contracts.ScopeProduction, sources)
	if err != nil {
		return res, err
	}
	res.Stats = stats

	c.log.Info().
		Str("feed", feedName).
		Int("sources", res.Sources).
		Int("failed", res.Failed).
		Int("accepted", stats.Accepted).
		Int("emitted", stats.Emitted).
		Msg("crawl cycle complete")
	return res, nil
}

// CrawlAll runs one cycle for every registered feed.
func (c *Collector) CrawlAll(ctx context.Context) ([]Result, error) {
	out := make([]Result, 0, len(c.feeds))
	for name := range c.feeds {
		res, err := c.Crawl(ctx, name)
		if err != nil {
			return out, fmt.Errorf("feed %s: %w", name, err)
		}
		out = append(out, res)
	}
	return out, nil
}

// Feeds lists the registered feed names.
func (c *Collector) Feeds() []string {
	out := make([]string, 0, len(c.feeds))
	for name := range c.feeds {
		out = append(out, name)
	}
	return out
}
