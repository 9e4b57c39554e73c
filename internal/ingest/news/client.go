// Package news implements the RSS news feed adapter.
package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/quantfeed/marketpulse/internal/contracts"
	"github.com/quantfeed/marketpulse/pkg/config"
	"github.com/quantfeed/marketpulse/pkg/httputil"
	"github.com/quantfeed/marketpulse/pkg/logger"
)

// Adapter fetches topic feeds and extracts one source per article. RSS
// descriptions frequently embed HTML; the adapter reduces them to plain
// text before they reach the hasher so markup churn between fetches does
// not defeat dedup.
type Adapter struct {
	cfg  config.NewsFeedConfig
	http *httputil.Client
	log  *logger.Logger
}

// New creates a news feed adapter.
func New(cfg config.NewsFeedConfig, log *logger.Logger) *Adapter {
	return &Adapter{
		cfg:  cfg,
		http: httputil.New(log, cfg.Timeout).WithRetry(2, time.Second),
		log:  log,
	}
}

// Name implements contracts.SourceAdapter.
func (a *Adapter) Name() string { return "news" }

// TargetType implements contracts.SourceAdapter. News topics are keyed by
// stock symbols; crypto topics still synthesize correctly because target
// type flows from the claims, not the adapter.
func (a *Adapter) TargetType() contracts.TargetType { return contracts.TargetStock }

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
}

// Execute fetches one feed per topic and returns a source per article.
// A failed topic yields a single failed source for that topic.
func (a *Adapter) Execute(ctx context.Context, topics []string) ([]contracts.Source, error) {
	var out []contracts.Source
	for _, topic := range topics {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		endpoint := fmt.Sprintf("%s?topic=%s", a.cfg.BaseURL, url.QueryEscape(topic))
		resp, err := a.http.Get(ctx, endpoint)
		if err != nil {
			a.log.WithError(err).WithField("topic", topic).Warn("news fetch failed")
			out = append(out, failedSource(topic, err))
			continue
		}

		sources, err := ParseFeed(topic, resp.Body)
		resp.Body.Close()
		if err != nil {
			a.log.WithError(err).WithField("topic", topic).Warn("news parse failed")
			out = append(out, failedSource(topic, err))
			continue
		}
		out = append(out, sources...)
	}
	return out, nil
}

// ParseFeed decodes an RSS document into one source per item.
func ParseFeed(topic string, r io.Reader) ([]contracts.Source, error) {
	var feed rssFeed
	if err := xml.NewDecoder(r).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode rss: %w", err)
	}

	now := time.Now()
	out := make([]contracts.Source, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}

		published := now
		if t, err := parsePubDate(item.PubDate); err == nil {
			published = t
		}

		out = append(out, contracts.Source{
			ID:           uuid.NewString(),
			Provider:     "news",
			TargetSymbol: topic,
			TargetType:   contracts.TargetStock,
			Claims: []contracts.Claim{
				{
					Type:      contracts.ClaimHeadline,
					Text:      title,
					Timestamp: published,
					Metadata: map[string]string{
						"description": StripHTML(item.Description),
						"link":        strings.TrimSpace(item.Link),
					},
				},
			},
			FetchedAt: now,
		})
	}
	return out, nil
}

// StripHTML reduces an HTML fragment to its text content.
func StripHTML(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" || !strings.Contains(fragment, "<") {
		return fragment
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.TrimSpace(doc.Text())
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
}

func parsePubDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized pubDate %q", s)
}

func failedSource(topic string, err error) contracts.Source {
	return contracts.Source{
		ID:           uuid.NewString(),
		Provider:     "news",
		TargetSymbol: topic,
		TargetType:   contracts.TargetStock,
		FetchedAt:    time.Now(),
		Err:          err.Error(),
	}
}
