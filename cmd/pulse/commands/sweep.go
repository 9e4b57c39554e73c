package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfeed/marketpulse/internal/pipeline"
)

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one expiry sweep",
	Long: `Marks predictors and predictions past their expiry as expired.

Expiry is a logical delete: rows stay for audit and drop out of the
active pools. The sweep never re-evaluates a target.

Example:
  go run ./cmd/pulse sweep`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	fmt.Println("=== MarketPulse Expiry Sweep ===")

	ctx := cmd.Context()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sweeper := pipeline.NewSweeper(a.predictors, a.predictions, a.bus, a.log.Zerolog())

	res, err := sweeper.Sweep(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	fmt.Printf("\n✅ Sweep completed\n")
	fmt.Printf("   Expired predictors:  %d\n", res.ExpiredPredictors)
	fmt.Printf("   Expired predictions: %d\n", res.ExpiredPredictions)
	return nil
}
