package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl [feed]",
	Short: "Run one crawl cycle",
	Long: `Runs a single crawl cycle for one feed and pushes everything
fetched through the pipeline under the production scope.

Feeds:
  quotes - stock quote feed
  crypto - crypto market data feed
  news   - news headline feed
  all    - every configured feed

Example:
  go run ./cmd/pulse crawl quotes
  go run ./cmd/pulse crawl all`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	feed := args[0]

	fmt.Printf("=== MarketPulse Crawler ===\n\n")
	fmt.Printf("Feed: %s\n\n", feed)

	ctx := cmd.Context()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if feed == "all" {
		results, err := a.collector.CrawlAll(ctx)
		if err != nil {
			return fmt.Errorf("crawl all: %w", err)
		}
		for _, res := range results {
			printCrawlResult(res.Feed, res.Sources, res.Failed, res.Stats.Accepted, res.Stats.Emitted)
		}
		fmt.Println("\n✅ Crawl cycle completed")
		return nil
	}

	res, err := a.collector.Crawl(ctx, feed)
	if err != nil {
		return fmt.Errorf("crawl %s: %w", feed, err)
	}
	printCrawlResult(res.Feed, res.Sources, res.Failed, res.Stats.Accepted, res.Stats.Emitted)
	fmt.Println("\n✅ Crawl cycle completed")
	return nil
}

func printCrawlResult(feed string, sources, failed, accepted, emitted int) {
	fmt.Printf("📊 %s\n", feed)
	fmt.Printf("   Sources: %d (failed: %d)\n", sources, failed)
	fmt.Printf("   Signals accepted: %d\n", accepted)
	fmt.Printf("   Predictions emitted: %d\n", emitted)
}
