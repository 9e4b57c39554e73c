// Package crypto implements the crypto market data adapter.
package crypto

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

// Adapter fetches spot tickers from the configured crypto data feed.
type Adapter struct {
	cfg  config.CryptoFeedConfig
	http *httputil.Client
	log  *logger.Logger
}

// New creates a crypto market data adapter.
func New(cfg config.CryptoFeedConfig, log *logger.Logger) *Adapter {
	return &Adapter{
		cfg:  cfg,
		http: httputil.New(log, cfg.Timeout).WithRetry(3, time.Second),
		log:  log,
	}
}

// Name implements contracts.SourceAdapter.
func (a *Adapter) Name() string { return "crypto" }

// TargetType implements contracts.SourceAdapter.
func (a *Adapter) TargetType() contracts.TargetType { return contracts.TargetCrypto }

// tickerResponse mirrors the feed's ticker payload.
type tickerResponse struct {
	Symbol       string  `json:"symbol"`
	PriceUSD     float64 `json:"price_usd"`
	Change24hPct float64 `json:"change_24h_pct"`
	MarketCap    float64 `json:"market_cap"`
	Volume24h    float64 `json:"volume_24h"`
}

// Execute fetches one source per symbol, tolerating per-symbol failures.
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

	endpoint := fmt.Sprintf("%s/v1/ticker/%s?apikey=%s",
		a.cfg.BaseURL, url.PathEscape(symbol), url.QueryEscape(a.cfg.APIKey))

	var ticker tickerResponse
	if err := a.http.GetJSON(ctx, endpoint, &ticker); err != nil {
		a.log.WithError(err).WithField("symbol", symbol).Warn("ticker fetch failed")
		src.Err = err.Error()
		return src
	}

	now := time.Now()
	src.Claims = []contracts.Claim{
		{Type: contracts.ClaimPrice, Value: ticker.PriceUSD, Timestamp: now},
		{Type: contracts.ClaimChangePercent, Value: ticker.Change24hPct, Timestamp: now},
		{Type: contracts.ClaimMarketCap, Value: ticker.MarketCap, Timestamp: now},
		{Type: contracts.ClaimVolume, Value: ticker.Volume24h, Timestamp: now},
	}
	return src
}
