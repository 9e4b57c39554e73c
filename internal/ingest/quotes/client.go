// Package quotes implements the stock quote feed adapter.
package quotes

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/quantfeed/marketpulse/internal/contracts"
	"github.com/quantfeed/marketpulse/pkg/config"
	"github.com/quantfeed/marketpulse/pkg/httputil"
	"github.com/quantfeed/marketpulse/pkg/logger"
)

// Adapter fetches delayed quotes from the configured feed. It carries no
// cache and no state beyond its HTTP client; dedup is the pipeline's job.
type Adapter struct {
	cfg  config.QuoteFeedConfig
	http *httputil.Client
	log  *logger.Logger
}

// New creates a quote feed adapter.
func New(cfg config.QuoteFeedConfig, log *logger.Logger) *Adapter {
	return &Adapter{
		cfg:  cfg,
		http: httputil.New(log, cfg.Timeout).WithRetry(3, time.Second),
		log:  log,
	}
}

// Name implements contracts.SourceAdapter.
func (a *Adapter) Name() string { return "quotes" }

// TargetType implements contracts.SourceAdapter.
func (a *Adapter) TargetType() contracts.TargetType { return contracts.TargetStock }

// quoteResponse mirrors the feed's quote payload.
type quoteResponse struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"change_percent"`
	Volume        float64 `json:"volume"`
}

// Execute fetches one source per symbol. A failed symbol comes back with
// Err set and no claims; the rest of the batch is unaffected.
func (a *Adapter) Execute(ctx context.Context, symbols []string) ([]contracts.Source, error) {
	out := make([]contracts.Source, 0, len(symbols))
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out = append(out, a.fetch(ctx, symbol))
	}
	return out, nil
}

func (a *Adapter) fetch(ctx context.Context, symbol string) contracts.Source {
	src := contracts.Source{
		ID:           uuid.NewString(),
		Provider:     a.Name(),
		TargetSymbol: symbol,
		TargetType:   a.TargetType(),
		FetchedAt:    time.Now(),
	}

	endpoint := fmt.Sprintf("%s/v1/quote?symbol=%s&apikey=%s",
		a.cfg.BaseURL, url.QueryEscape(symbol), url.QueryEscape(a.cfg.APIKey))

	var quote quoteResponse
	if err := a.http.GetJSON(ctx, endpoint, &quote); err != nil {
		a.log.WithError(err).WithField("symbol", symbol).Warn("quote fetch failed")
		src.Err = err.Error()
		return src
	}

	now := time.Now()
	src.Claims = []contracts.Claim{
		{Type: contracts.ClaimPrice, Value: quote.Price, Timestamp: now},
		{Type: contracts.ClaimChangePercent, Value: quote.ChangePercent, Timestamp: now},
		{Type: contracts.ClaimVolume, Value: quote.Volume, Timestamp: now},
	}
	return src
}
